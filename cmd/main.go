package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/leaderboard/internal/adapters/http/api"
	"github.com/okian/leaderboard/internal/adapters/http/swagger"
	"github.com/okian/leaderboard/internal/adapters/notify"
	"github.com/okian/leaderboard/internal/adapters/repository"
	service "github.com/okian/leaderboard/internal/app"
	"github.com/okian/leaderboard/internal/config"
	"github.com/okian/leaderboard/internal/domain/ranking"
	"github.com/okian/leaderboard/pkg/logger"
	"github.com/okian/leaderboard/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		// The logger may not be initialized yet.
		os.Stderr.WriteString("leaderboard: " + err.Error() + "\n")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (.env -> defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	notifier, err := openNotifier(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return err
	}

	svc := service.New(store,
		service.WithLogger(log.Named("service")),
		service.WithNotifier(notifier),
		service.WithRefreshPolicy(ranking.Policy(cfg.RefreshPolicy)),
		service.WithRefreshInterval(cfg.RefreshInterval()),
		service.WithStorageTimeout(cfg.StorageTimeout()),
		service.WithNeighborRadius(cfg.NeighborRadius),
	)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(ctx, cfg, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}

// openStore opens the configured score store.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	switch cfg.Store {
	case config.StorePostgres:
		opts := []repository.Option{
			repository.WithAutoMigrate(cfg.DBAutoMigrate),
			repository.WithMaxOpenConns(cfg.DBMaxOpenConns),
			repository.WithMaxIdleConns(cfg.DBMaxIdleConns),
		}
		db, err := repository.OpenPostgres(cfg.DSN(), opts...)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		store, err := repository.NewGormStore(ctx, db, opts...)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		return store, nil
	default:
		return repository.NewMemoryStore(), nil
	}
}

// openNotifier opens the configured refresh signal backend, or returns nil
// when instances do not share a store.
func openNotifier(ctx context.Context, cfg *config.Config) (notify.Notifier, error) {
	opts := []notify.Option{
		notify.WithChannel(cfg.NotifyChannel),
		notify.WithLogger(logger.Named("notify")),
	}
	switch cfg.Notifier {
	case config.NotifierPostgres:
		n, err := notify.NewPostgres(ctx, cfg.DSN(), opts...)
		if err != nil {
			return nil, fmt.Errorf("open postgres notifier: %w", err)
		}
		return n, nil
	case config.NotifierRedis:
		n, err := notify.NewRedis(cfg.RedisURL, opts...)
		if err != nil {
			return nil, fmt.Errorf("open redis notifier: %w", err)
		}
		return n, nil
	default:
		return nil, nil
	}
}

// newHandler builds the routed, request-logged HTTP handler.
func newHandler(ctx context.Context, cfg *config.Config, svc *service.Service) http.Handler {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(svc, svc,
		api.WithMaxTopLimit(cfg.MaxTopLimit),
		api.WithMaxNeighborRadius(cfg.MaxNeighborRadius),
	).Register(ctx, mux)
	return api.RequestLogging(mux)
}

// startSystemMetricsUpdater updates system metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes service gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(ctx, svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics pulls service stats; GetStats updates the user gauge.
func updateServiceMetrics(ctx context.Context, svc *service.Service) {
	stats := svc.GetStats(ctx)
	if stale, ok := stats["indexStale"].(bool); ok {
		metrics.UpdateIndexStale(stale)
	}
}
