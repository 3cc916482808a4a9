package journal

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/pagechain/internal/paging"
)

// Event kinds as stored in the kind column.
const (
	KindAdded       = "added"
	KindChanged     = "changed"
	KindRemoved     = "removed"
	KindInvalidated = "invalidated"
)

// Record is one stored event.
type Record struct {
	Seq      int64
	Position int
	Kind     string
	Index    int
	Payload  json.RawMessage
}

type addedPayload struct {
	Source       int             `json:"source"`
	Items        json.RawMessage `json:"items"`
	Placeholders int             `json:"placeholders,omitempty"`
}

type changedPayload struct {
	Change string          `json:"change"`
	Items  json.RawMessage `json:"items,omitempty"`
	Size   int             `json:"size"`
}

type removedPayload struct {
	Count int `json:"count"`
}

type invalidatedPayload struct {
	Behavior string `json:"behavior"`
}

// EncodeBatch converts a published batch into records. Items are encoded
// with encoding/json and stored in canonical form.
func EncodeBatch[T any](batch paging.Batch[T]) ([]Record, error) {
	out := make([]Record, 0, len(batch.Events))
	for i, ev := range batch.Events {
		rec, err := encodeEvent[T](ev)
		if err != nil {
			return nil, fmt.Errorf("batch %d event %d: %w", batch.Seq, i, err)
		}
		rec.Seq = batch.Seq
		rec.Position = i
		out = append(out, rec)
	}
	return out, nil
}

func encodeEvent[T any](ev paging.Event[T]) (Record, error) {
	var (
		rec     Record
		payload any
	)
	switch e := ev.(type) {
	case paging.PageAdded[T]:
		items, err := encodeItems(e.Items)
		if err != nil {
			return rec, err
		}
		rec.Kind, rec.Index = KindAdded, e.Index
		payload = addedPayload{Source: e.SourceIndex, Items: items, Placeholders: e.Placeholders}
	case paging.PageChanged[T]:
		rec.Kind, rec.Index = KindChanged, e.Index
		p := changedPayload{Change: e.Kind.String(), Size: e.Size}
		if e.Kind != paging.ChangeToPlaceholder {
			items, err := encodeItems(e.Items)
			if err != nil {
				return rec, err
			}
			p.Items = items
		}
		payload = p
	case paging.PageRemoved[T]:
		rec.Kind, rec.Index = KindRemoved, e.Index
		payload = removedPayload{Count: e.ItemCount}
	case paging.Invalidated[T]:
		rec.Kind = KindInvalidated
		payload = invalidatedPayload{Behavior: e.Behavior.String()}
	default:
		return rec, fmt.Errorf("unknown event %T", ev)
	}

	raw, err := canonicalJSON(payload)
	if err != nil {
		return rec, fmt.Errorf("encode %s payload: %w", rec.Kind, err)
	}
	rec.Payload = raw
	return rec, nil
}

func encodeItems[T any](items []T) (json.RawMessage, error) {
	if items == nil {
		items = []T{}
	}
	raw, err := canonicalJSON(items)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	return raw, nil
}

// Decode rebuilds the event of a record. Items are left as raw JSON.
func (r Record) Decode() (paging.Event[json.RawMessage], error) {
	switch r.Kind {
	case KindAdded:
		var p addedPayload
		if err := json.Unmarshal(r.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.Kind, err)
		}
		items, err := splitItems(p.Items)
		if err != nil {
			return nil, err
		}
		return paging.PageAdded[json.RawMessage]{Index: r.Index, SourceIndex: p.Source, Items: items, Placeholders: p.Placeholders}, nil
	case KindChanged:
		var p changedPayload
		if err := json.Unmarshal(r.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.Kind, err)
		}
		kind, err := parseChangeKind(p.Change)
		if err != nil {
			return nil, err
		}
		items, err := splitItems(p.Items)
		if err != nil {
			return nil, err
		}
		return paging.PageChanged[json.RawMessage]{Index: r.Index, Items: items, Kind: kind, Size: p.Size}, nil
	case KindRemoved:
		var p removedPayload
		if err := json.Unmarshal(r.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.Kind, err)
		}
		return paging.PageRemoved[json.RawMessage]{Index: r.Index, ItemCount: p.Count}, nil
	case KindInvalidated:
		var p invalidatedPayload
		if err := json.Unmarshal(r.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.Kind, err)
		}
		behavior, err := parseBehavior(p.Behavior)
		if err != nil {
			return nil, err
		}
		return paging.Invalidated[json.RawMessage]{Behavior: behavior}, nil
	default:
		return nil, fmt.Errorf("unknown record kind %q", r.Kind)
	}
}

func splitItems(raw json.RawMessage) ([]json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return items, nil
}

func parseChangeKind(s string) (paging.ChangeKind, error) {
	for _, k := range []paging.ChangeKind{paging.ChangeNormal, paging.ChangeToPlaceholder, paging.ChangeFromPlaceholder} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown change kind %q", s)
}

func parseBehavior(s string) (paging.InvalidateBehavior, error) {
	if s == paging.InvalidateResend.String() {
		return paging.InvalidateResend, nil
	}
	return paging.ParseInvalidateBehavior(s)
}
