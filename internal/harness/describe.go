package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/pagechain/internal/paging"
)

func describeStep(s Step) string {
	switch s.Action {
	case ActionLoad, ActionDrain:
		dir, _ := paging.ParseDirection(s.Direction)
		return fmt.Sprintf("%s %s", s.Action, dir)
	case ActionInvalidate:
		behavior, _ := paging.ParseInvalidateBehavior(s.Behavior)
		if s.DropCache {
			return fmt.Sprintf("invalidate %s drop_cache", behavior)
		}
		return fmt.Sprintf("invalidate %s", behavior)
	case ActionSetSources:
		name := s.Diff
		if name == "" {
			name = "sequential"
		}
		return fmt.Sprintf("set_sources [%s] diff=%s", strings.Join(s.Sources, " "), name)
	case ActionAddSource, ActionMoveSource:
		return fmt.Sprintf("%s %s at %d", s.Action, s.Source, s.Index)
	case ActionRemoveSource:
		return fmt.Sprintf("remove_source %s", s.Source)
	case ActionPush:
		return fmt.Sprintf("push %s page %d items=%v", s.Source, s.Page, s.Items)
	default:
		return s.Action
	}
}

func describeOutcome(o StepOutcome) string {
	if o.Outcome == "" {
		if o.Error != "" {
			return "error: " + o.Error
		}
		return "ok"
	}

	var b strings.Builder
	switch o.Action {
	case ActionDrain:
		fmt.Fprintf(&b, "%d loads, last %s", o.Loads, o.Outcome)
	default:
		fmt.Fprintf(&b, "%s has_next=%t", o.Outcome, o.HasNext)
	}
	if o.Error != "" {
		fmt.Fprintf(&b, " error=%q", o.Error)
	}
	return b.String()
}

func countPlaceholders(slots []paging.Slot[int]) int {
	n := 0
	for _, s := range slots {
		if s.Null {
			n++
		}
	}
	return n
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func isLoad(action string) bool {
	return action == ActionLoad || action == ActionDrain
}
