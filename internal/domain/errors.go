package domain

import "errors"

var (
	ErrLockHeld      = errors.New("lock already held")
	ErrValidation    = errors.New("invalid signal payload")
	ErrSizing        = errors.New("sizing failed")
	ErrContextDone   = errors.New("context cancelled")
	ErrNoCredentials = errors.New("venue credentials not configured")

	// Venue failure classes. Adapters wrap exactly one of these so callers
	// can classify with errors.Is.
	ErrTransientVenue    = errors.New("transient venue error")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrVenueRejected     = errors.New("venue rejected request")
	ErrUnknownVenue      = errors.New("unknown venue error")
	ErrVenueUnavailable  = errors.New("venue client unavailable")
)

// IsTransient reports whether err is worth retrying against the venue.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientVenue)
}
