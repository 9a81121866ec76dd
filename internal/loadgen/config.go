// Package loadgen drives a running leaderboard over HTTP: it creates users,
// updates their scores concurrently, then checks the rankings it reads back.
package loadgen

import (
	"errors"
	"fmt"
	"time"
)

// Defaults for Config.
const (
	DefaultBaseURL  = "http://localhost:8080"
	DefaultUsers    = 1000
	DefaultUpdates  = 3
	DefaultTopN     = 50
	DefaultRadius   = 5
	DefaultSamples  = 20
	DefaultMaxScore = 10000
	DefaultTimeout  = 10 * time.Second
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid loadgen config")

// Config holds configuration for a load run.
type Config struct {
	BaseURL  string        // Base URL of the service
	Users    int           // Number of users to create
	Updates  int           // Score updates per user after creation
	TopN     int           // Limit passed to getTopUsers during verification
	Radius   int           // Radius passed to getUserWithNeighbors
	Samples  int           // Users whose rank and neighbours are checked
	MaxScore int64         // Scores are drawn from [0, MaxScore]
	Workers  int           // Concurrent HTTP workers
	Timeout  time.Duration // Per-request timeout
	Seed     uint64        // Seed of the score plan; equal seeds give equal plans
	Prefix   string        // Username prefix; a random one is used when empty
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.BaseURL == "":
		return fmt.Errorf("%w: base url is required", ErrInvalidConfig)
	case c.Users <= 0:
		return fmt.Errorf("%w: users must be positive", ErrInvalidConfig)
	case c.Updates < 0:
		return fmt.Errorf("%w: updates must not be negative", ErrInvalidConfig)
	case c.TopN <= 0:
		return fmt.Errorf("%w: top must be positive", ErrInvalidConfig)
	case c.Radius < 0:
		return fmt.Errorf("%w: radius must not be negative", ErrInvalidConfig)
	case c.Samples < 0:
		return fmt.Errorf("%w: samples must not be negative", ErrInvalidConfig)
	case c.MaxScore < 0:
		return fmt.Errorf("%w: max score must not be negative", ErrInvalidConfig)
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// Stats holds run statistics.
type Stats struct {
	UsersCreated    int
	ScoreUpdates    int
	Failures        int
	UsersVerified   int
	TopEntries      int
	NeighborWindows int
	StartTime       time.Time
	EndTime         time.Time
	Duration        time.Duration
}
