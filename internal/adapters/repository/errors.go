package repository

import "errors"

// Sentinel kinds for score store errors.
var (
	ErrNotFound = errors.New("user not found")
	ErrClosed   = errors.New("store closed")
)
