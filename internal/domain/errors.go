package domain

import "errors"

// Error taxonomy for provider calls. The scheduler branches its retry
// policy on these; the query layer never sees them.
var (
	ErrNotFound    = errors.New("not found")
	ErrAuth        = errors.New("provider rejected credentials")
	ErrPermanent   = errors.New("provider rejected query")
	ErrTransient   = errors.New("transient provider failure")
	ErrRateLimited = errors.New("rate limited")

	// ErrConflict is returned when a concurrent writer committed the same
	// canonical record first; callers re-resolve against the committed row.
	ErrConflict = errors.New("write conflict")
)

// Retryable reports whether a failed provider call should be rescheduled
// with backoff. Auth and permanent failures need operator action.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrRateLimited)
}
