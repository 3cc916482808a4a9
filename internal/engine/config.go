package engine

import (
	"log/slog"

	"github.com/roach88/pagechain/internal/paging"
	"github.com/roach88/pagechain/internal/pagestore"
)

// DefaultPageSize is used when neither the config nor a source sets one.
const DefaultPageSize = 20

// Config holds the per-engine paging parameters.
type Config[K comparable] struct {
	// PageSize is the fallback page size.
	PageSize int

	// DefaultParams, when set, provides the key (and optionally the page
	// size) for the first load of an empty list whose source has no
	// defaults of its own.
	DefaultParams func() paging.LoadParams[K]

	// MaxItems caps live items across all pages. Zero disables trimming.
	MaxItems int

	// MaxCachedPages caps the result cache. Zero means unbounded.
	MaxCachedPages int

	// PlaceholdersOnEvict keeps evicted pages as null slots.
	PlaceholdersOnEvict bool

	// CollectOnlyLatest conflates live updates that queue up while the
	// engine is busy, delivering only the newest.
	CollectOnlyLatest bool

	// StorePageItems keeps page items in the store. Without it only sizes
	// are kept and resend batches replay pages as placeholders.
	StorePageItems bool

	// DefaultErrorHandler converts load errors of sources without their own
	// handler. Nil wraps the error in a plain Failure.
	DefaultErrorHandler paging.ErrorHandler[K]

	// MaxBackfillPages bounds how many pages a single backfill may load
	// from one source. Zero uses DefaultMaxBackfillPages.
	MaxBackfillPages int
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig[K comparable]() Config[K] {
	return Config[K]{
		PageSize:       DefaultPageSize,
		StorePageItems: true,
	}
}

func (c Config[K]) storeConfig() pagestore.Config {
	return pagestore.Config{
		MaxItems:       c.MaxItems,
		MaxCachedPages: c.MaxCachedPages,
		Placeholders:   c.PlaceholdersOnEvict,
		StoreItems:     c.StorePageItems,
	}
}

type options struct {
	logger  *slog.Logger
	metrics *Metrics
	clock   *Clock
}

// Option configures ambient engine dependencies.
type Option func(*options)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics attaches a metrics bundle (see NewMetrics).
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithClock sets the clock stamping batches. Used to resume a journal
// session at its last sequence number.
func WithClock(c *Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}
