package main

import (
	"context"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/leaderboard/internal/loadgen"
	"github.com/okian/leaderboard/pkg/logger"
	"github.com/spf13/cobra"
)

const (
	defaultWorkersPerCPU = 2
	defaultRunTimeout    = 10 * time.Minute
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg := loadgen.Config{
		BaseURL:  loadgen.DefaultBaseURL,
		Users:    loadgen.DefaultUsers,
		Updates:  loadgen.DefaultUpdates,
		TopN:     loadgen.DefaultTopN,
		Radius:   loadgen.DefaultRadius,
		Samples:  loadgen.DefaultSamples,
		MaxScore: loadgen.DefaultMaxScore,
		Workers:  runtime.NumCPU() * defaultWorkersPerCPU,
		Timeout:  loadgen.DefaultTimeout,
		Seed:     uint64(time.Now().UnixNano()),
	}
	var (
		runTimeout time.Duration
		logFormat  string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "loadgen",
		Short: "Drive a leaderboard instance and verify its rankings",
		Long: `loadgen creates users, updates their scores concurrently, then reads
the top list, ranks and neighbour windows back and checks they are
ordered with dense ranks and agree with the scores it wrote.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := logger.Init(logger.WithFormat(logFormat)); err != nil {
				return err
			}
			if verbose {
				_ = logger.SetLevelString("debug")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), runTimeout)
			defer cancel()

			if _, err := loadgen.Run(ctx, &cfg); err != nil {
				logger.Get().Error(ctx, "load run failed", logger.Error(err))
				return err
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", cfg.BaseURL, "base URL of the service")
	f.IntVar(&cfg.Users, "users", cfg.Users, "users to create")
	f.IntVar(&cfg.Updates, "updates", cfg.Updates, "score updates per user")
	f.IntVar(&cfg.TopN, "top", cfg.TopN, "limit for the top list check")
	f.IntVar(&cfg.Radius, "radius", cfg.Radius, "neighbour window radius")
	f.IntVar(&cfg.Samples, "samples", cfg.Samples, "users whose rank and window are checked")
	f.Int64Var(&cfg.MaxScore, "max-score", cfg.MaxScore, "largest generated score")
	f.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent HTTP workers")
	f.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-request timeout")
	f.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "seed of the score plan")
	f.StringVar(&cfg.Prefix, "prefix", "", "username prefix (random when empty)")
	f.DurationVar(&runTimeout, "run-timeout", defaultRunTimeout, "timeout of the whole run")
	f.StringVar(&logFormat, "log-format", "text", "log format: text or json")
	f.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}
