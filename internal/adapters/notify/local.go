package notify

import (
	"context"
	"sync"

	"github.com/okian/leaderboard/pkg/metrics"
)

// Bus fans signals out to every Local notifier attached to it. It connects
// instances that live in one process.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan string]struct{}
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[chan string]struct{})}
}

func (b *Bus) subscribe() chan string {
	ch := make(chan string, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

func (b *Bus) unsubscribe(ch chan string) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
}

// broadcast never blocks. A subscriber with a full buffer already has a
// pending signal and misses this one.
func (b *Bus) broadcast(payload string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- payload:
		default:
		}
	}
}

// Local is a Notifier over a Bus.
type Local struct {
	settings
	bus *Bus
}

var _ Notifier = (*Local)(nil)

// NewLocal attaches a notifier to bus. A nil bus gets a private one, which
// makes the notifier a no-op for a single instance.
func NewLocal(bus *Bus, opts ...Option) *Local {
	if bus == nil {
		bus = NewBus()
	}
	return &Local{settings: newSettings(opts), bus: bus}
}

// InstanceID implements Notifier.
func (l *Local) InstanceID() string { return l.instanceID }

// Publish implements Notifier.
func (l *Local) Publish(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.bus.broadcast(l.instanceID)
	metrics.RecordNotification(metrics.DirectionPublished)
	return nil
}

// Listen implements Notifier.
func (l *Local) Listen(ctx context.Context, onSignal func()) error {
	ch := l.bus.subscribe()
	defer l.bus.unsubscribe(ch)
	for {
		select {
		case <-ctx.Done():
			return nil
		case payload := <-ch:
			l.dispatch(payload, onSignal)
		}
	}
}

// Close implements Notifier.
func (l *Local) Close() error { return nil }
