package paging

import "fmt"

// LoadResult is the outcome of one Source.Load call. Variants: Success,
// Failure and NothingToLoad.
type LoadResult[K comparable, T any] interface {
	loadResult()
}

// Emission is one value of a page's data stream.
type Emission[K comparable, T any] struct {
	Items []T
	// Rekey replaces the page's continuation key with NextKey. Live pages
	// use it when the tail of a feed moves.
	Rekey   bool
	NextKey Key[K]
}

// Success carries a page. Stream delivers the page contents; the first value
// materializes the page and later values update it in place. The source
// closes Stream when no further updates will come.
type Success[K comparable, T any] struct {
	Stream     <-chan Emission[K, T]
	NextKey    Key[K]
	ReturnData any
	// Cached is stored by the engine and handed back in LoadParams.Cached
	// when the same page is loaded again with the same key.
	Cached any
}

// Failure reports a failed load.
type Failure struct {
	ReturnData any
	Err        error
}

// NothingToLoad reports that the source has no page for the request. It is
// a normal terminal outcome, not an error.
type NothingToLoad struct {
	ReturnData any
}

func (Success[K, T]) loadResult() {}
func (Failure) loadResult()       {}
func (NothingToLoad) loadResult() {}

// Static returns a closed stream that emits items once.
func Static[K comparable, T any](items []T) <-chan Emission[K, T] {
	ch := make(chan Emission[K, T], 1)
	ch <- Emission[K, T]{Items: items}
	close(ch)
	return ch
}

// StaticPage is shorthand for a single-shot Success.
func StaticPage[K comparable, T any](items []T, next Key[K]) Success[K, T] {
	return Success[K, T]{Stream: Static[K](items), NextKey: next}
}

// OutcomeKind classifies an Outcome.
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota + 1
	OutcomeFailure
	OutcomeNothingToLoad
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeNothingToLoad:
		return "nothing_to_load"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is what Engine.Load reports to its caller: the result kind plus the
// key that was used and whether more data is reachable in that direction.
type Outcome[K comparable] struct {
	Kind       OutcomeKind
	HasNext    bool
	CurrentKey Key[K]
	ReturnData any
	Err        error
}
