package ranking

import (
	"time"

	"github.com/okian/leaderboard/pkg/logger"
)

// Policy decides when mutations pay for a rebuild.
type Policy string

// Refresh policies.
const (
	// PolicyLazy only marks the index stale on write; the next read rebuilds.
	PolicyLazy Policy = "lazy"
	// PolicyEager rebuilds before the write returns.
	PolicyEager Policy = "eager"
)

// Option applies a configuration option to the Coordinator.
type Option func(*Coordinator)

// WithPolicy sets the refresh policy.
func WithPolicy(p Policy) Option {
	return func(c *Coordinator) {
		if p == PolicyLazy || p == PolicyEager {
			c.policy = p
		}
	}
}

// WithRebuildTimeout bounds each rebuild, including the store read.
func WithRebuildTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRefreshInterval sets how often the background loop checks for
// staleness. Zero disables the ticker.
func WithRefreshInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d >= 0 {
			c.interval = d
		}
	}
}

// WithLogger sets a custom logger for the coordinator.
func WithLogger(l logger.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}
