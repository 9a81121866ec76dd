// Package notify carries "the leaderboard changed" signals between service
// instances that share one score store, so each can mark its rank index
// stale. The payload is the publisher's instance id; instances ignore their
// own signals.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/okian/leaderboard/pkg/logger"
	"github.com/okian/leaderboard/pkg/metrics"
)

// DefaultChannel is the channel name used when none is configured.
const DefaultChannel = "refresh_leaderboard"

// Notifier publishes and receives refresh signals.
type Notifier interface {
	// InstanceID identifies this process in published payloads.
	InstanceID() string
	// Publish announces a committed mutation to other instances.
	Publish(ctx context.Context) error
	// Listen calls onSignal for every signal from another instance until ctx
	// is done. It returns nil on cancellation.
	Listen(ctx context.Context, onSignal func()) error
	// Close releases connections.
	Close() error
}

type settings struct {
	channel    string
	instanceID string
	retryDelay time.Duration
	logger     logger.Logger
}

func newSettings(opts []Option) settings {
	s := settings{
		channel:    DefaultChannel,
		instanceID: uuid.NewString(),
		retryDelay: time.Second,
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logger.Named("notify")
	}
	return s
}

// Option applies a configuration option to a notifier.
type Option func(*settings)

// WithChannel sets the channel name.
func WithChannel(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.channel = name
		}
	}
}

// WithInstanceID overrides the generated instance id.
func WithInstanceID(id string) Option {
	return func(s *settings) {
		if id != "" {
			s.instanceID = id
		}
	}
}

// WithRetryDelay sets the pause before re-listening after a connection error.
func WithRetryDelay(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.retryDelay = d
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// dispatch filters out our own signals and counts the rest.
func (s settings) dispatch(payload string, onSignal func()) {
	if payload == s.instanceID {
		metrics.RecordNotification(metrics.DirectionIgnored)
		return
	}
	metrics.RecordNotification(metrics.DirectionReceived)
	onSignal()
}

// subscribeFunc holds one subscription open until it fails or ctx is done.
// It calls subscribed once the broker confirms the subscription.
type subscribeFunc func(ctx context.Context, subscribed func()) error

// listen runs subscribe until ctx is done, pausing retryDelay after each
// failure. Signals published while disconnected are lost, so every
// subscription after the first reports one signal to onSignal.
func (s settings) listen(ctx context.Context, transport string, subscribe subscribeFunc, onSignal func()) error {
	connected := false
	subscribed := func() {
		s.logger.Info(ctx, "listening for refresh signals",
			logger.String("transport", transport),
			logger.String("channel", s.channel),
			logger.Bool("resubscribed", connected),
		)
		if connected {
			metrics.RecordNotification(metrics.DirectionResubscribed)
			onSignal()
		}
		connected = true
	}
	for {
		err := subscribe(ctx, subscribed)
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Warn(ctx, "refresh signal subscription interrupted",
			logger.String("transport", transport),
			logger.String("channel", s.channel),
			logger.Error(err),
		)
		if !s.sleep(ctx) {
			return nil
		}
	}
}

// sleep waits for the retry delay or ctx, whichever comes first.
func (s settings) sleep(ctx context.Context) bool {
	t := time.NewTimer(s.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
