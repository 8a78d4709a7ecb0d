package status

import "errors"

var (
	ErrNotFound         = errors.New("cave: not found")
	ErrForbidden        = errors.New("cave: forbidden")
	ErrExpired          = errors.New("cave: expired")
	ErrCapacityExceeded = errors.New("cave: participation limit reached")
	ErrEventInactive    = errors.New("cave: event is not active")
	ErrEventReferenced  = errors.New("cave: event is referenced by sessions")
)
