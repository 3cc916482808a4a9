package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/pagechain/internal/paging"
)

// RecorderOption configures a Recorder.
type RecorderOption func(*recorderOptions)

type recorderOptions struct {
	logger    *slog.Logger
	generator SessionGenerator
}

// WithRecorderLogger sets the logger for write failures.
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(o *recorderOptions) { o.logger = l }
}

// WithSessionGenerator overrides the UUIDv7 session ids.
func WithSessionGenerator(g SessionGenerator) RecorderOption {
	return func(o *recorderOptions) { o.generator = g }
}

// Recorder is an engine subscriber that writes every batch to a journal
// session. Handle only enqueues; a single writer goroutine encodes and
// stores batches in order.
type Recorder[T any] struct {
	journal *Journal
	session string
	logger  *slog.Logger
	queue   *queue[paging.Batch[T]]
	done    chan struct{}

	mu      sync.Mutex
	err     error
	written int
}

// NewRecorder creates a session named name and starts the writer.
func NewRecorder[T any](ctx context.Context, j *Journal, name string, opts ...RecorderOption) (*Recorder[T], error) {
	o := recorderOptions{logger: slog.Default(), generator: UUIDv7Generator{}}
	for _, opt := range opts {
		opt(&o)
	}

	session := o.generator.Generate()
	if err := j.CreateSession(ctx, session, name); err != nil {
		return nil, err
	}

	r := &Recorder[T]{
		journal: j,
		session: session,
		logger:  o.logger.With("session", session),
		queue:   newQueue[paging.Batch[T]](),
		done:    make(chan struct{}),
	}
	go r.run(context.WithoutCancel(ctx))
	return r, nil
}

// Session returns the id of the recorded session.
func (r *Recorder[T]) Session() string {
	return r.session
}

// Handle enqueues a batch. It is meant to be passed to Engine.Subscribe.
// Batches handed in after Close are dropped.
func (r *Recorder[T]) Handle(batch paging.Batch[T]) {
	if !r.queue.Enqueue(batch) {
		r.logger.Warn("batch dropped after recorder close", "seq", batch.Seq)
	}
}

// Written returns the number of batches stored so far.
func (r *Recorder[T]) Written() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Close flushes queued batches, stops the writer and returns the first
// write error.
func (r *Recorder[T]) Close() error {
	r.queue.Close()
	<-r.done

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Recorder[T]) run(ctx context.Context) {
	defer close(r.done)
	for {
		for {
			batch, ok := r.queue.TryDequeue()
			if !ok {
				break
			}
			r.write(ctx, batch)
		}
		if r.queue.Drained() {
			return
		}
		<-r.queue.Wait()
	}
}

func (r *Recorder[T]) write(ctx context.Context, batch paging.Batch[T]) {
	records, err := EncodeBatch(batch)
	if err == nil {
		err = r.journal.WriteBatch(ctx, r.session, records)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.logger.Error("journal write failed", "seq", batch.Seq, "error", err)
		if r.err == nil {
			r.err = fmt.Errorf("record batch %d: %w", batch.Seq, err)
		}
		return
	}
	r.written++
}
