package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session id is unknown.
var ErrSessionNotFound = errors.New("session not found")

// Session summarizes one recorded session.
type Session struct {
	ID      string
	Name    string
	Batches int
	Events  int
}

// Sessions lists every session ordered by id. Session ids are UUIDv7, so
// this is creation order.
func (j *Journal) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT s.id, s.name,
		       COUNT(DISTINCT e.batch_seq),
		       COUNT(e.batch_seq)
		FROM sessions s
		LEFT JOIN events e ON e.session_id = s.id
		GROUP BY s.id, s.name
		ORDER BY s.id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.ID, &s.Name, &s.Batches, &s.Events); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// LatestSession returns the most recently created session.
func (j *Journal) LatestSession(ctx context.Context) (Session, error) {
	sessions, err := j.Sessions(ctx)
	if err != nil {
		return Session{}, err
	}
	if len(sessions) == 0 {
		return Session{}, ErrSessionNotFound
	}
	return sessions[len(sessions)-1], nil
}

// ReadSession returns the records of a session ordered by batch sequence
// and position.
func (j *Journal) ReadSession(ctx context.Context, session string) ([]Record, error) {
	var exists int
	err := j.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE id = ?`, session).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, session)
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT batch_seq, position, kind, page_index, payload
		FROM events
		WHERE session_id = ?
		ORDER BY batch_seq ASC, position ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var (
			r       Record
			payload string
		)
		if err := rows.Scan(&r.Seq, &r.Position, &r.Kind, &r.Index, &payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		r.Payload = json.RawMessage(payload)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return records, nil
}
