package loadgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/leaderboard/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// userPlan is the score history one worker writes for a single user.
type userPlan struct {
	username string
	scores   []int64 // scores[0] is the initial score; the last one is final
}

func (p userPlan) final() int64 { return p.scores[len(p.scores)-1] }

// buildPlan draws every score up front so equal seeds replay equal runs.
func buildPlan(cfg *Config) []userPlan {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "lg-" + uuid.NewString()[:8]
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	plans := make([]userPlan, cfg.Users)
	for i := range plans {
		scores := make([]int64, cfg.Updates+1)
		for j := range scores {
			scores[j] = rng.Int64N(cfg.MaxScore + 1)
		}
		plans[i] = userPlan{username: fmt.Sprintf("%s-%d", prefix, i), scores: scores}
	}
	return plans
}

// Run executes a complete load run against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.Named("loadgen")
	stats := &Stats{StartTime: time.Now()}
	client := NewClient(cfg.BaseURL, nil, cfg.Timeout)

	log.Info(ctx, "starting leaderboard load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("updates", cfg.Updates),
		logger.Int("workers", cfg.Workers),
		logger.Uint64("seed", cfg.Seed),
	)

	if err := client.Ping(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	plans := buildPlan(cfg)
	ids, err := write(ctx, cfg, client, plans, stats)
	if err != nil {
		return stats, fmt.Errorf("write phase failed: %w", err)
	}

	res, err := client.Refresh(ctx)
	if err != nil {
		return stats, fmt.Errorf("refresh failed: %w", err)
	}
	log.Info(ctx, "rank index refreshed",
		logger.Uint64("version", res.Version),
		logger.Int("entries", res.Entries),
	)

	if err := verify(ctx, cfg, client, plans, ids, stats); err != nil {
		return stats, err
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	log.Info(ctx, "final statistics",
		logger.Int("usersCreated", stats.UsersCreated),
		logger.Int("scoreUpdates", stats.ScoreUpdates),
		logger.Int("failures", stats.Failures),
		logger.Int("usersVerified", stats.UsersVerified),
		logger.Int("topEntries", stats.TopEntries),
		logger.Int("neighborWindows", stats.NeighborWindows),
		logger.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// write creates every planned user and applies its updates in order. Users
// are spread over cfg.Workers goroutines; each user is owned by one of them.
func write(ctx context.Context, cfg *Config, client *Client, plans []userPlan, stats *Stats) ([]int64, error) {
	var created, updated, failed atomic.Int64
	ids := make([]int64, len(plans))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i, p := range plans {
		g.Go(func() error {
			u, err := client.AddUser(gctx, p.username, p.scores[0])
			if err != nil {
				failed.Add(1)
				return fmt.Errorf("add %s: %w", p.username, err)
			}
			created.Add(1)
			ids[i] = u.ID
			for _, score := range p.scores[1:] {
				if _, err := client.UpdateScore(gctx, u.ID, score); err != nil {
					failed.Add(1)
					return fmt.Errorf("update %d: %w", u.ID, err)
				}
				updated.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()

	stats.UsersCreated = int(created.Load())
	stats.ScoreUpdates = int(updated.Load())
	stats.Failures = int(failed.Load())
	return ids, err
}

// verify checks the top list, then the rank and neighbour window of a
// sample of the written users.
func verify(ctx context.Context, cfg *Config, client *Client, plans []userPlan, ids []int64, stats *Stats) error {
	top, err := client.TopUsers(ctx, cfg.TopN)
	if err != nil {
		return fmt.Errorf("top users: %w", err)
	}
	if err := CheckTopN(top, cfg.TopN); err != nil {
		return err
	}
	stats.TopEntries = len(top)

	samples := sampleIndexes(len(plans), cfg.Samples)
	var verified, windows atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, i := range samples {
		g.Go(func() error {
			id, want := ids[i], plans[i].final()
			ru, err := client.Rank(gctx, id)
			if err != nil {
				return fmt.Errorf("rank %d: %w", id, err)
			}
			if ru.Score != want {
				return failf("user %d has score %d, last written %d", id, ru.Score, want)
			}
			if err := CheckAgainstTop(ru, top); err != nil {
				return err
			}
			verified.Add(1)

			window, err := client.Neighbors(gctx, id, cfg.Radius)
			if err != nil {
				return fmt.Errorf("neighbors %d: %w", id, err)
			}
			if err := CheckWindow(window, ru, cfg.Radius); err != nil {
				return err
			}
			windows.Add(1)
			return nil
		})
	}
	err = g.Wait()

	stats.UsersVerified = int(verified.Load())
	stats.NeighborWindows = int(windows.Load())
	if err != nil && !errors.Is(err, ErrVerification) {
		return fmt.Errorf("verification reads failed: %w", err)
	}
	return err
}

// sampleIndexes picks up to n indexes spread evenly over [0, total).
func sampleIndexes(total, n int) []int {
	if n > total {
		n = total
	}
	out := make([]int, 0, n)
	for k := 0; k < n; k++ {
		out = append(out, k*total/n)
	}
	return out
}

