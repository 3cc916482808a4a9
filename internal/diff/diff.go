// Package diff computes edit operations that turn one ordered list into
// another. The engine applies them to its source chain in order; every
// index refers to the list as it is after the preceding operations.
//
// Elements are compared with ==, and lists must not contain duplicates.
package diff

import (
	"fmt"
	"slices"
)

// Op is one edit: Insert, Remove or Move.
type Op[E comparable] interface {
	op()
	String() string
}

// Insert places Items starting at Index.
type Insert[E comparable] struct {
	Index int
	Items []E
}

// Remove deletes Count elements starting at Index.
type Remove struct {
	Index int
	Count int
}

// Move relocates the element at From so that it ends up at To.
type Move struct {
	From int
	To   int
}

func (Insert[E]) op() {}
func (Remove) op()    {}
func (Move) op()      {}

func (o Insert[E]) String() string { return fmt.Sprintf("insert(%d, %d items)", o.Index, len(o.Items)) }
func (o Remove) String() string    { return fmt.Sprintf("remove(%d, %d)", o.Index, o.Count) }
func (o Move) String() string      { return fmt.Sprintf("move(%d -> %d)", o.From, o.To) }

// Func computes the operations turning old into new.
type Func[E comparable] func(old, new []E) []Op[E]

// Apply runs ops against a copy of list.
func Apply[E comparable](list []E, ops []Op[E]) ([]E, error) {
	out := slices.Clone(list)
	for i, op := range ops {
		switch o := op.(type) {
		case Insert[E]:
			if o.Index < 0 || o.Index > len(out) {
				return nil, fmt.Errorf("op %d %s: index out of range [0,%d]", i, o, len(out))
			}
			out = slices.Insert(out, o.Index, o.Items...)
		case Remove:
			if o.Count < 0 || o.Index < 0 || o.Index+o.Count > len(out) {
				return nil, fmt.Errorf("op %d %s: range out of bounds [0,%d)", i, o, len(out))
			}
			out = slices.Delete(out, o.Index, o.Index+o.Count)
		case Move:
			if o.From < 0 || o.From >= len(out) || o.To < 0 || o.To >= len(out) {
				return nil, fmt.Errorf("op %d %s: index out of range [0,%d)", i, o, len(out))
			}
			out = move(out, o.From, o.To)
		default:
			return nil, fmt.Errorf("op %d: unknown operation %T", i, op)
		}
	}
	return out, nil
}

func move[E any](list []E, from, to int) []E {
	v := list[from]
	list = slices.Delete(list, from, from+1)
	return slices.Insert(list, to, v)
}

// Sequential removes what new lacks, then walks new left to right, moving
// elements that are present later and inserting the missing ones. It keeps
// elements (and therefore their loaded pages) alive across reorders.
func Sequential[E comparable](old, new []E) []Op[E] {
	want := make(map[E]struct{}, len(new))
	for _, e := range new {
		want[e] = struct{}{}
	}

	cur := slices.Clone(old)
	var ops []Op[E]

	for i := len(cur) - 1; i >= 0; i-- {
		if _, ok := want[cur[i]]; ok {
			continue
		}
		cur = slices.Delete(cur, i, i+1)
		if n := len(ops); n > 0 {
			if r, ok := ops[n-1].(Remove); ok && r.Index == i+1 {
				ops[n-1] = Remove{Index: i, Count: r.Count + 1}
				continue
			}
		}
		ops = append(ops, Remove{Index: i, Count: 1})
	}

	for i, e := range new {
		if i < len(cur) && cur[i] == e {
			continue
		}
		if j := indexFrom(cur, e, i+1); j >= 0 {
			ops = append(ops, Move{From: j, To: i})
			cur = move(cur, j, i)
			continue
		}
		ops = append(ops, Insert[E]{Index: i, Items: []E{e}})
		cur = slices.Insert(cur, i, e)
	}
	return ops
}

func indexFrom[E comparable](list []E, e E, from int) int {
	for j := from; j < len(list); j++ {
		if list[j] == e {
			return j
		}
	}
	return -1
}

// LCS keeps the longest common subsequence of old and new and expresses
// everything else as removals followed by insertions. It never emits Move,
// so a reordered element is reloaded rather than carried over.
func LCS[E comparable](old, new []E) []Op[E] {
	n, m := len(old), len(new)
	// lengths[i][j] is the LCS length of old[i:] and new[j:].
	lengths := make([][]int, n+1)
	for i := range lengths {
		lengths[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if old[i] == new[j] {
				lengths[i][j] = lengths[i+1][j+1] + 1
			} else {
				lengths[i][j] = max(lengths[i+1][j], lengths[i][j+1])
			}
		}
	}

	keepOld := make([]bool, n)
	keepNew := make([]bool, m)
	for i, j := 0, 0; i < n && j < m; {
		switch {
		case old[i] == new[j]:
			keepOld[i], keepNew[j] = true, true
			i++
			j++
		case lengths[i+1][j] >= lengths[i][j+1]:
			i++
		default:
			j++
		}
	}

	var ops []Op[E]
	for i := n - 1; i >= 0; i-- {
		if keepOld[i] {
			continue
		}
		if k := len(ops); k > 0 {
			if r, ok := ops[k-1].(Remove); ok && r.Index == i+1 {
				ops[k-1] = Remove{Index: i, Count: r.Count + 1}
				continue
			}
		}
		ops = append(ops, Remove{Index: i, Count: 1})
	}
	for j := 0; j < m; j++ {
		if keepNew[j] {
			continue
		}
		if k := len(ops); k > 0 {
			if ins, ok := ops[k-1].(Insert[E]); ok && ins.Index+len(ins.Items) == j {
				ins.Items = append(ins.Items, new[j])
				ops[k-1] = ins
				continue
			}
		}
		ops = append(ops, Insert[E]{Index: j, Items: []E{new[j]}})
	}
	return ops
}
