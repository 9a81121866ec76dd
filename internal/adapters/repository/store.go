// Package repository holds the score store: the system of record for users
// and their scores.
package repository

import (
	"context"

	"github.com/okian/leaderboard/internal/domain/model"
)

// Store provides read/write access to users and scores. Inputs are
// validated by the caller; implementations only report ErrNotFound or
// storage failures.
type Store interface {
	// Add inserts a user and assigns its id.
	Add(ctx context.Context, username string, score int64, avatarURL string) (model.User, error)

	// UpdateScore sets the score of user id. Returns ErrNotFound if absent.
	UpdateScore(ctx context.Context, id int64, score int64) (model.User, error)

	// Get returns user id. Returns ErrNotFound if absent.
	Get(ctx context.Context, id int64) (model.User, error)

	// List returns every user ordered by score desc, id asc.
	List(ctx context.Context) ([]model.User, error)

	// Count returns the number of users.
	Count(ctx context.Context) (int, error)

	// Close releases the store's resources.
	Close() error
}
