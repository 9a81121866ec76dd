package ranking

import "errors"

// Sentinel kinds for ranking errors.
var (
	ErrNotFound      = errors.New("user not ranked")
	ErrInvalidLimit  = errors.New("invalid top-n limit")
	ErrInvalidRadius = errors.New("invalid neighbour radius")
	ErrRebuildFailed = errors.New("rank index rebuild failed")
)
