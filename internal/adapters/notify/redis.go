package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/okian/leaderboard/pkg/metrics"
)

// Redis signals through Redis pub/sub.
type Redis struct {
	settings
	client *redis.Client
}

var _ Notifier = (*Redis)(nil)

// NewRedis builds a client from a redis:// URL.
func NewRedis(url string, opts ...Option) (*Redis, error) {
	ropts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("notify: parse redis url: %w", err)
	}
	return NewRedisClient(redis.NewClient(ropts), opts...), nil
}

// NewRedisClient wraps an existing client.
func NewRedisClient(client *redis.Client, opts ...Option) *Redis {
	return &Redis{settings: newSettings(opts), client: client}
}

// InstanceID implements Notifier.
func (r *Redis) InstanceID() string { return r.instanceID }

// Publish implements Notifier.
func (r *Redis) Publish(ctx context.Context) error {
	if err := r.client.Publish(ctx, r.channel, r.instanceID).Err(); err != nil {
		return fmt.Errorf("notify: publish %s: %w", r.channel, err)
	}
	metrics.RecordNotification(metrics.DirectionPublished)
	return nil
}

// Listen implements Notifier. A dropped subscription is retried after the
// retry delay.
func (r *Redis) Listen(ctx context.Context, onSignal func()) error {
	return r.listen(ctx, "redis", func(ctx context.Context, subscribed func()) error {
		return r.subscribe(ctx, subscribed, onSignal)
	}, onSignal)
}

func (r *Redis) subscribe(ctx context.Context, subscribed, onSignal func()) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	// Wait for confirmation that subscription is created.
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	subscribed()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("notify: subscription to %s closed", r.channel)
			}
			r.dispatch(msg.Payload, onSignal)
		}
	}
}

// Close implements Notifier.
func (r *Redis) Close() error {
	return r.client.Close()
}
