package fsrs

import "errors"

// Sentinel errors returned by the scheduler. Check them with errors.Is.
var (
	ErrInvalidParameters = errors.New("fsrs: invalid parameters")
	ErrInvalidRating     = errors.New("fsrs: invalid rating")
	ErrInvalidState      = errors.New("fsrs: invalid card state")
	ErrInvalidCard       = errors.New("fsrs: invalid card")
	ErrInvalidTime       = errors.New("fsrs: invalid review time")
)
