package paging

import "fmt"

// Key is an optional pagination cursor. The engine never inspects Value; it
// only threads keys between pages and compares them for cache reuse.
type Key[K comparable] struct {
	Value K
	Valid bool
}

// Some wraps k as a present key.
func Some[K comparable](k K) Key[K] {
	return Key[K]{Value: k, Valid: true}
}

// None returns the absent key.
func None[K comparable]() Key[K] {
	return Key[K]{}
}

// Or returns k when it is present, otherwise fallback.
func (k Key[K]) Or(fallback Key[K]) Key[K] {
	if k.Valid {
		return k
	}
	return fallback
}

func (k Key[K]) String() string {
	if !k.Valid {
		return "<none>"
	}
	return fmt.Sprintf("%v", k.Value)
}

// Direction selects which edge of the virtual list a load extends.
type Direction int

const (
	// Down extends the list forward, after the last page.
	Down Direction = iota
	// Up extends the list backward, before the first page.
	Up
)

func (d Direction) String() string {
	switch d {
	case Down:
		return "down"
	case Up:
		return "up"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// ParseDirection converts "down" or "up" into a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "down", "":
		return Down, nil
	case "up":
		return Up, nil
	default:
		return Down, fmt.Errorf("unknown direction %q (want down|up)", s)
	}
}
