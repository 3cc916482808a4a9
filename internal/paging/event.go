package paging

import "fmt"

// Event describes one mutation of the virtual list. Variants: PageAdded,
// PageChanged, PageRemoved and Invalidated. Consumers must apply every
// variant, in order, to reconstruct the list.
type Event[T any] interface {
	event(T)
}

// ChangeKind qualifies a PageChanged event.
type ChangeKind int

const (
	// ChangeNormal replaces the items of a live page.
	ChangeNormal ChangeKind = iota
	// ChangeToPlaceholder turns a page into Size null slots.
	ChangeToPlaceholder
	// ChangeFromPlaceholder fills a placeholder page with loaded items.
	ChangeFromPlaceholder
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeNormal:
		return "normal"
	case ChangeToPlaceholder:
		return "to_placeholder"
	case ChangeFromPlaceholder:
		return "from_placeholder"
	default:
		return fmt.Sprintf("change(%d)", int(k))
	}
}

// InvalidateBehavior selects what Invalidate keeps, and tags resend batches.
type InvalidateBehavior int

const (
	// InvalidateAll drops every page.
	InvalidateAll InvalidateBehavior = iota
	// InvalidateKeepFirst keeps the first live page and its live updates.
	InvalidateKeepFirst
	// InvalidateResend marks a resynchronisation batch: nothing was dropped,
	// the pages that follow are the complete current state.
	InvalidateResend
)

func (b InvalidateBehavior) String() string {
	switch b {
	case InvalidateAll:
		return "all"
	case InvalidateKeepFirst:
		return "keep_first"
	case InvalidateResend:
		return "resend"
	default:
		return fmt.Sprintf("behavior(%d)", int(b))
	}
}

// ParseInvalidateBehavior converts a behavior name back into its value.
func ParseInvalidateBehavior(s string) (InvalidateBehavior, error) {
	switch s {
	case "all", "":
		return InvalidateAll, nil
	case "keep_first":
		return InvalidateKeepFirst, nil
	default:
		return InvalidateAll, fmt.Errorf("unknown invalidate behavior %q (want all|keep_first)", s)
	}
}

// PageAdded reports a new page. Placeholders is non-zero only when a resend
// replays a page that is currently a placeholder (Items is then nil).
type PageAdded[T any] struct {
	Index        int
	SourceIndex  int
	Items        []T
	Placeholders int
}

// PageChanged reports new contents for an existing page. For
// ChangeToPlaceholder Items is nil and Size counts the null slots.
type PageChanged[T any] struct {
	Index int
	Items []T
	Kind  ChangeKind
	Size  int
}

// PageRemoved reports a page dropped from the list. Its index is never
// given to a different page.
type PageRemoved[T any] struct {
	Index     int
	ItemCount int
}

// Invalidated clears the list.
type Invalidated[T any] struct {
	Behavior InvalidateBehavior
}

func (PageAdded[T]) event(T)   {}
func (PageChanged[T]) event(T) {}
func (PageRemoved[T]) event(T) {}
func (Invalidated[T]) event(T) {}

// Batch is the set of events produced by one mutation, stamped with the
// engine's logical clock.
type Batch[T any] struct {
	Seq    int64
	Events []Event[T]
}

// Describe renders an event as a single stable line. Used by traces and
// golden files.
func Describe[T any](ev Event[T]) string {
	switch e := ev.(type) {
	case PageAdded[T]:
		if e.Placeholders > 0 {
			return fmt.Sprintf("added index=%d source=%d placeholders=%d", e.Index, e.SourceIndex, e.Placeholders)
		}
		return fmt.Sprintf("added index=%d source=%d items=%v", e.Index, e.SourceIndex, e.Items)
	case PageChanged[T]:
		if e.Kind == ChangeToPlaceholder {
			return fmt.Sprintf("changed index=%d kind=%s size=%d", e.Index, e.Kind, e.Size)
		}
		return fmt.Sprintf("changed index=%d kind=%s items=%v", e.Index, e.Kind, e.Items)
	case PageRemoved[T]:
		return fmt.Sprintf("removed index=%d count=%d", e.Index, e.ItemCount)
	case Invalidated[T]:
		return fmt.Sprintf("invalidated behavior=%s", e.Behavior)
	default:
		panic(fmt.Sprintf("paging: unknown event %T", ev))
	}
}
