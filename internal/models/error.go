package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Account state errors
	ErrAccountDisabled  = errors.New("account is disabled")
	ErrAccountSuspended = errors.New("account is suspended")

	// Abuse guard errors
	ErrAccountLockedBySystem = errors.New("account temporarily locked after repeated failed logins")
)
