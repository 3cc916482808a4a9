package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/pagechain/internal/paging"
)

// ReplayState is the list a session describes after folding all of its
// events.
type ReplayState struct {
	Session      string
	Batches      int
	Events       int
	Pages        []int
	Items        []json.RawMessage
	Placeholders int
}

// Replay reads a session and folds it. An event that does not fit the
// state built so far is reported with its batch sequence and position.
func (j *Journal) Replay(ctx context.Context, session string) (*ReplayState, error) {
	records, err := j.ReadSession(ctx, session)
	if err != nil {
		return nil, err
	}
	return Fold(session, records)
}

// Fold applies records in order to an empty list.
func Fold(session string, records []Record) (*ReplayState, error) {
	var list paging.ListState[json.RawMessage]
	state := &ReplayState{Session: session}

	lastSeq := int64(-1)
	for _, r := range records {
		ev, err := r.Decode()
		if err != nil {
			return nil, fmt.Errorf("batch %d position %d: %w", r.Seq, r.Position, err)
		}
		if err := list.ApplyEvent(ev); err != nil {
			return nil, fmt.Errorf("batch %d position %d: %w", r.Seq, r.Position, err)
		}
		if r.Seq != lastSeq {
			state.Batches++
			lastSeq = r.Seq
		}
		state.Events++
	}

	state.Pages = list.Indices()
	state.Items = list.Items()
	state.Placeholders = list.Placeholders()
	return state, nil
}
