package notify_test

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/leaderboard/internal/adapters/notify"
)

// Broker-backed tests run only when the matching env var is set.

func TestPostgresNotifier(t *testing.T) {
	dsn := os.Getenv("LEADERBOARD_TEST_DSN")
	if dsn == "" {
		t.Skip("LEADERBOARD_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	channel := "refresh_leaderboard_test"
	a, err := notify.NewPostgres(ctx, dsn, notify.WithChannel(channel), notify.WithInstanceID("a"))
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	defer a.Close()
	b, err := notify.NewPostgres(ctx, dsn, notify.WithChannel(channel), notify.WithInstanceID("b"))
	if err != nil {
		t.Fatalf("NewPostgres: %v", err)
	}
	defer b.Close()

	roundTrip(ctx, t, a, b)
}

func TestRedisNotifier(t *testing.T) {
	url := os.Getenv("LEADERBOARD_TEST_REDIS_URL")
	if url == "" {
		t.Skip("LEADERBOARD_TEST_REDIS_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	channel := "refresh_leaderboard_test"
	a, err := notify.NewRedis(url, notify.WithChannel(channel), notify.WithInstanceID("a"))
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer a.Close()
	b, err := notify.NewRedis(url, notify.WithChannel(channel), notify.WithInstanceID("b"))
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	defer b.Close()

	roundTrip(ctx, t, a, b)
}

func TestRedisBadURL(t *testing.T) {
	if _, err := notify.NewRedis("not-a-url"); err == nil {
		t.Error("expected parse error")
	}
}

func roundTrip(ctx context.Context, t *testing.T, a, b notify.Notifier) {
	t.Helper()
	lctx, stop := context.WithCancel(ctx)
	defer stop()

	var gotA, gotB atomic.Int32
	doneA := listen(lctx, a, &gotA)
	doneB := listen(lctx, b, &gotB)

	ok := waitFor(func() bool {
		if err := a.Publish(ctx); err != nil {
			t.Fatalf("Publish: %v", err)
		}
		return gotB.Load() > 0
	})
	if !ok {
		t.Fatal("b never received a's signal")
	}
	if gotA.Load() != 0 {
		t.Errorf("a received its own signal %d times", gotA.Load())
	}

	stop()
	if err := <-doneA; err != nil {
		t.Errorf("Listen a: %v", err)
	}
	if err := <-doneB; err != nil {
		t.Errorf("Listen b: %v", err)
	}
}
