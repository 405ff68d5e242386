package queue

import "errors"

var (
	ErrDoctorNotAccepting     = errors.New("doctor not accepting queue entries")
	ErrNotWaiting             = errors.New("patient is not waiting")
	ErrPermutationMismatch    = errors.New("permutation does not match waiting set")
	ErrInvalidTarget          = errors.New("invalid target position")
	ErrAlreadySkipped         = errors.New("patient already skipped")
	ErrInvalidOutcome         = errors.New("invalid outcome")
	ErrConcurrentModification = errors.New("concurrent queue modification")
)
