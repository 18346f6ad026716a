package domain

import "errors"

// Error taxonomy shared by both services. Every operation failure wraps
// exactly one of these sentinels so callers can branch with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrDuplicate    = errors.New("already exists")
	ErrInvalidState = errors.New("invalid state")
	ErrExternalCall = errors.New("external call failed")
	ErrZeroAmount   = errors.New("zero amount")
	ErrLockHeld     = errors.New("lock already held")
)
