package paging

import "context"

// LoadParams is everything a source receives for one page load. Sources are
// stateless with respect to the engine: the key, size, direction, extra
// parameters and any cached result arrive on every call.
type LoadParams[K comparable] struct {
	PageSize  int
	Key       Key[K]
	Direction Direction
	// Extra carries caller-defined parameters passed to Engine.Load.
	Extra any
	// Cached is the result a previous load of the same page stored, only
	// set when that load used the same key.
	Cached any
	// Entry is set when the source is entered without a continuation: the
	// first load of an empty list or a crossing from the neighbouring
	// source. Key is then the default key or absent. An absent key with
	// Entry unset means the source start page itself, reloaded next to a
	// page already held. Sources paging from both ends start at their last
	// page for an Up entry.
	Entry bool
}

// Source is a pageable data provider.
//
// Load may block on I/O and must honour ctx. A returned error (or a panic)
// is routed to the source's ErrorHandler when it implements one, otherwise
// to the engine default handler.
type Source[K comparable, T any] interface {
	Load(ctx context.Context, params LoadParams[K]) (LoadResult[K, T], error)
}

// ErrorHandler converts a load error into a Failure. Handlers must not
// panic; a panicking handler is treated as a fatal configuration error.
type ErrorHandler[K comparable] func(err error, params LoadParams[K]) Failure

// DefaultParamser is implemented by sources with their own defaults. The
// engine consults the key only for the very first page of an empty list, and
// the page size whenever it is positive. ok=false means no defaults.
type DefaultParamser[K comparable] interface {
	DefaultParams() (params LoadParams[K], ok bool)
}

// ErrorHandling is implemented by sources with their own error handler. A
// nil handler defers to the engine default.
type ErrorHandling[K comparable] interface {
	LoadErrorHandler() ErrorHandler[K]
}

// LoadFunc is the signature wrapped by FuncSource.
type LoadFunc[K comparable, T any] func(ctx context.Context, params LoadParams[K]) (LoadResult[K, T], error)

// FuncSource adapts a function into a Source. It is always used through a
// pointer so that sources keep a comparable identity in the chain.
type FuncSource[K comparable, T any] struct {
	name     string
	load     LoadFunc[K, T]
	defaults *LoadParams[K]
	onError  ErrorHandler[K]
}

// FuncSourceOption configures a FuncSource.
type FuncSourceOption[K comparable, T any] func(*FuncSource[K, T])

// WithDefaultParams sets per-source default parameters.
func WithDefaultParams[K comparable, T any](p LoadParams[K]) FuncSourceOption[K, T] {
	return func(s *FuncSource[K, T]) {
		s.defaults = &p
	}
}

// WithErrorHandler sets a per-source error handler.
func WithErrorHandler[K comparable, T any](h ErrorHandler[K]) FuncSourceOption[K, T] {
	return func(s *FuncSource[K, T]) {
		s.onError = h
	}
}

// NewFuncSource creates a named source backed by fn.
func NewFuncSource[K comparable, T any](name string, fn LoadFunc[K, T], opts ...FuncSourceOption[K, T]) *FuncSource[K, T] {
	s := &FuncSource[K, T]{name: name, load: fn}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load implements Source.
func (s *FuncSource[K, T]) Load(ctx context.Context, params LoadParams[K]) (LoadResult[K, T], error) {
	return s.load(ctx, params)
}

// DefaultParams implements DefaultParamser.
func (s *FuncSource[K, T]) DefaultParams() (LoadParams[K], bool) {
	if s.defaults == nil {
		return LoadParams[K]{}, false
	}
	return *s.defaults, true
}

// LoadErrorHandler implements ErrorHandling.
func (s *FuncSource[K, T]) LoadErrorHandler() ErrorHandler[K] {
	return s.onError
}

func (s *FuncSource[K, T]) String() string {
	return s.name
}
