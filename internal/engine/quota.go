package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxBackfillPages bounds a single backfill when the config leaves
// MaxBackfillPages unset.
const DefaultMaxBackfillPages = 1000

// QuotaEnforcer counts the pages one backfill loads from a source and stops
// it at a limit, so a source that never reports the end of its data cannot
// hold the load mutex forever.
type QuotaEnforcer struct {
	maxPages int
	current  int
}

// NewQuotaEnforcer creates an enforcer allowing maxPages loads.
func NewQuotaEnforcer(maxPages int) *QuotaEnforcer {
	if maxPages <= 0 {
		maxPages = DefaultMaxBackfillPages
	}
	return &QuotaEnforcer{maxPages: maxPages}
}

// Check counts one more page and fails once the limit is passed.
func (q *QuotaEnforcer) Check(source string) error {
	q.current++
	if q.current > q.maxPages {
		return &PagesExceededError{
			Source: source,
			Pages:  q.current,
			Limit:  q.maxPages,
		}
	}
	return nil
}

// Current returns the number of counted pages.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxPages returns the limit.
func (q *QuotaEnforcer) MaxPages() int {
	return q.maxPages
}

// PagesExceededError is returned when a backfill reaches its page limit.
type PagesExceededError struct {
	Source string
	Pages  int
	Limit  int
}

// Error implements the error interface.
func (e *PagesExceededError) Error() string {
	return fmt.Sprintf("backfill of source %s exceeded page limit: %d pages > %d limit",
		e.Source, e.Pages, e.Limit)
}

// IsPagesExceededError reports whether err is a PagesExceededError.
func IsPagesExceededError(err error) bool {
	var pe *PagesExceededError
	return errors.As(err, &pe)
}
