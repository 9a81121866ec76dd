package notify

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/leaderboard/pkg/metrics"
)

// Postgres signals through LISTEN/NOTIFY on the score store's database.
type Postgres struct {
	settings
	pool *pgxpool.Pool
}

var _ Notifier = (*Postgres)(nil)

// NewPostgres connects a pgx pool to dsn.
func NewPostgres(ctx context.Context, dsn string, opts ...Option) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("notify: connect postgres: %w", err)
	}
	return &Postgres{settings: newSettings(opts), pool: pool}, nil
}

// InstanceID implements Notifier.
func (p *Postgres) InstanceID() string { return p.instanceID }

// Publish implements Notifier.
func (p *Postgres) Publish(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, "SELECT pg_notify($1, $2)", p.channel, p.instanceID); err != nil {
		return fmt.Errorf("notify: pg_notify %s: %w", p.channel, err)
	}
	metrics.RecordNotification(metrics.DirectionPublished)
	return nil
}

// Listen implements Notifier. A dropped connection is re-acquired after the
// retry delay.
func (p *Postgres) Listen(ctx context.Context, onSignal func()) error {
	return p.listen(ctx, "postgres", func(ctx context.Context, subscribed func()) error {
		return p.subscribe(ctx, subscribed, onSignal)
	}, onSignal)
}

func (p *Postgres) subscribe(ctx context.Context, subscribed, onSignal func()) error {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{p.channel}.Sanitize()); err != nil {
		return err
	}
	subscribed()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		p.dispatch(n.Payload, onSignal)
	}
}

// Close implements Notifier.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
