package types

import "errors"

var (
	ErrNotFound         = errors.New("record not found")
	ErrVersionConflict  = errors.New("record was modified concurrently")
	ErrUnauthorized     = errors.New("not authorized")
	ErrInvalidOption    = errors.New("invalid option")
	ErrNoPendingRequest = errors.New("no pending request")
	ErrWrongState       = errors.New("record is not in the expected state")
)
