package journal

import (
	"context"
	"fmt"
)

// CreateSession registers a session. Creating an existing session is a
// no-op.
func (j *Journal) CreateSession(ctx context.Context, id, name string) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name)
		VALUES (?, ?)
		ON CONFLICT(id) DO NOTHING
	`, id, name)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// WriteBatch stores the records of one batch in a single transaction.
// Records already stored under the same (seq, position) are ignored, so
// rewriting a batch is idempotent.
func (j *Journal) WriteBatch(ctx context.Context, session string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write batch: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (session_id, batch_seq, position, kind, page_index, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, batch_seq, position) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write batch: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, session, r.Seq, r.Position, r.Kind, r.Index, string(r.Payload)); err != nil {
			return fmt.Errorf("write batch %d position %d: %w", r.Seq, r.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write batch: commit: %w", err)
	}
	return nil
}
