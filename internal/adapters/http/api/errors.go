package api

import "errors"

// Sentinel kinds for request parsing errors.
var (
	ErrInvalidID     = errors.New("invalid user id")
	ErrInvalidBody   = errors.New("invalid request body")
	ErrInvalidLimit  = errors.New("invalid limit")
	ErrInvalidRadius = errors.New("invalid radius")
)
