// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/okian/leaderboard/internal/adapters/notify"
	"github.com/okian/leaderboard/internal/adapters/repository"
	"github.com/okian/leaderboard/internal/domain/apperror"
	"github.com/okian/leaderboard/internal/domain/model"
	"github.com/okian/leaderboard/internal/domain/ranking"
	"github.com/okian/leaderboard/internal/domain/validation"
	"github.com/okian/leaderboard/pkg/logger"
	"github.com/okian/leaderboard/pkg/metrics"
)

const (
	defaultStorageTimeout = 5 * time.Second
	defaultNeighborRadius = 5
)

// RefreshResult describes a published rank index.
type RefreshResult struct {
	Version uint64    `json:"version"`
	Entries int       `json:"entries"`
	BuiltAt time.Time `json:"built_at"`
}

// Service implements the API dependencies for the leaderboard system.
type Service struct {
	mu sync.RWMutex

	// Core components
	store       repository.Store
	coordinator *ranking.Coordinator
	notifier    notify.Notifier

	// Configuration
	storageTimeout  time.Duration
	neighborRadius  int
	policy          ranking.Policy
	refreshInterval time.Duration

	// State
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStorageTimeout bounds every store call and index rebuild.
func WithStorageTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.storageTimeout = d
		}
	}
}

// WithRefreshPolicy selects lazy or eager index refresh.
func WithRefreshPolicy(p ranking.Policy) Option {
	return func(s *Service) {
		if p == ranking.PolicyLazy || p == ranking.PolicyEager {
			s.policy = p
		}
	}
}

// WithRefreshInterval sets the background staleness check interval; zero disables it.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.refreshInterval = d
		}
	}
}

// WithNeighborRadius sets the default neighbour window radius.
func WithNeighborRadius(r int) Option {
	return func(s *Service) {
		if r >= 0 {
			s.neighborRadius = r
		}
	}
}

// WithNotifier shares refresh signals with other instances.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a Service over store. The service owns store and the
// notifier and closes them on Stop.
func New(store repository.Store, opts ...Option) *Service {
	s := &Service{
		store:           store,
		storageTimeout:  defaultStorageTimeout,
		neighborRadius:  defaultNeighborRadius,
		policy:          ranking.PolicyLazy,
		refreshInterval: time.Second,
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Named("service")
	}
	s.coordinator = ranking.NewCoordinator(store,
		ranking.WithPolicy(s.policy),
		ranking.WithRebuildTimeout(s.storageTimeout),
		ranking.WithRefreshInterval(s.refreshInterval),
		ranking.WithLogger(s.logger.Named("ranking")),
	)
	return s
}

// Start launches the background refresh loop and the notification
// listener, then warms the rank index.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.stopped {
		return errors.New("service already stopped")
	}

	s.logger.Info(ctx, "starting leaderboard service...")

	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.coordinator.Start(bg)

	if s.notifier != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			err := s.notifier.Listen(bg, func() {
				s.coordinator.MarkStale()
				s.coordinator.Nudge()
			})
			if err != nil {
				s.logger.Error(bg, "refresh listener stopped", logger.Error(err))
			}
		}()
	}

	if ix, err := s.coordinator.Fresh(ctx); err != nil {
		s.logger.Warn(ctx, "initial rank index build failed; reads will retry", logger.Error(err))
	} else {
		metrics.UpdateTotalUsers(ix.Len())
	}

	s.started = true
	fields := []logger.Field{
		logger.String("refreshPolicy", string(s.policy)),
		logger.Duration("refreshInterval", s.refreshInterval),
		logger.Duration("storageTimeout", s.storageTimeout),
		logger.Int("neighborRadius", s.neighborRadius),
	}
	if s.notifier != nil {
		fields = append(fields, logger.String("instanceID", s.notifier.InstanceID()))
	}
	s.logger.Info(ctx, "leaderboard service started", fields...)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true

	ctx := context.Background()
	s.logger.Info(ctx, "stopping leaderboard service...")

	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	_ = s.coordinator.Close()

	if s.notifier != nil {
		if err := s.notifier.Close(); err != nil {
			s.logger.Warn(ctx, "closing notifier", logger.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn(ctx, "closing store", logger.Error(err))
		}
	}

	s.started = false
	s.logger.Info(ctx, "leaderboard service stopped")
}

// DefaultNeighborRadius returns the radius used when callers pass none.
func (s *Service) DefaultNeighborRadius() int { return s.neighborRadius }

// AddUser validates in, stores the user, and refreshes the rank index per policy.
func (s *Service) AddUser(ctx context.Context, in validation.AddUserInput) (model.User, error) {
	const op = "app.add_user"

	if details := validation.Struct(in); details != nil {
		return model.User{}, apperror.Validation(op, "invalid user", details...)
	}

	sctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	u, err := s.store.Add(sctx, in.Username, in.Score, in.AvatarURL)
	cancel()
	if err != nil {
		return model.User{}, s.mapError(op, err)
	}
	metrics.RecordMutation(metrics.OpAddUser)
	s.logger.Debug(ctx, "user added",
		logger.Int64("id", u.ID),
		logger.Int64("score", u.Score),
	)

	if err := s.afterWrite(ctx, op); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// UpdateScore validates in, sets the score, and refreshes the rank index per policy.
func (s *Service) UpdateScore(ctx context.Context, in validation.UpdateScoreInput) (model.User, error) {
	const op = "app.update_score"

	if details := validation.Struct(in); details != nil {
		return model.User{}, apperror.Validation(op, "invalid score update", details...)
	}

	sctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	u, err := s.store.UpdateScore(sctx, in.ID, in.Score)
	cancel()
	if err != nil {
		return model.User{}, s.mapError(op, err)
	}
	metrics.RecordMutation(metrics.OpUpdateScore)
	s.logger.Debug(ctx, "score updated",
		logger.Int64("id", u.ID),
		logger.Int64("score", u.Score),
	)

	if err := s.afterWrite(ctx, op); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// afterWrite marks the index stale, rebuilds it under the eager policy, and
// tells other instances. Only an eager rebuild failure is returned; the
// write itself is already committed.
func (s *Service) afterWrite(ctx context.Context, op string) error {
	rebuildErr := s.coordinator.Invalidate(ctx)

	if s.notifier != nil {
		pctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
		if err := s.notifier.Publish(pctx); err != nil {
			metrics.RecordErrorByComponent("notify", "publish_failed")
			s.logger.Warn(ctx, "refresh signal not published", logger.Error(err))
		}
		cancel()
	}

	if rebuildErr != nil {
		return apperror.Storage(op, rebuildErr)
	}
	return nil
}

// GetUser returns a stored user.
func (s *Service) GetUser(ctx context.Context, id int64) (model.User, error) {
	const op = "app.get_user"

	if details := validation.Struct(validation.UserIDInput{ID: id}); details != nil {
		return model.User{}, apperror.Validation(op, "invalid user id", details...)
	}

	sctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()
	u, err := s.store.Get(sctx, id)
	if err != nil {
		return model.User{}, s.mapError(op, err)
	}
	return u, nil
}

// TopN returns the first limit users by rank.
func (s *Service) TopN(ctx context.Context, limit int) ([]model.RankedUser, error) {
	const op = "app.top_n"
	defer observeQuery(metrics.OpTopN, time.Now())

	if details := validation.Struct(validation.TopNInput{Limit: limit}); details != nil {
		return nil, apperror.Validation(op, "invalid limit", details...)
	}

	ix, err := s.coordinator.Fresh(ctx)
	if err != nil {
		return nil, s.mapError(op, err)
	}
	out, err := ix.TopN(limit)
	if err != nil {
		return nil, s.mapError(op, err)
	}
	return out, nil
}

// Rank returns the ranked entry of user id.
func (s *Service) Rank(ctx context.Context, id int64) (model.RankedUser, error) {
	const op = "app.rank"
	defer observeQuery(metrics.OpRank, time.Now())

	if details := validation.Struct(validation.UserIDInput{ID: id}); details != nil {
		return model.RankedUser{}, apperror.Validation(op, "invalid user id", details...)
	}

	ix, err := s.coordinator.Fresh(ctx)
	if err != nil {
		return model.RankedUser{}, s.mapError(op, err)
	}
	ru, err := ix.RankOf(id)
	if err != nil {
		return model.RankedUser{}, s.mapError(op, err)
	}
	return ru, nil
}

// Neighbors returns the users ranked within radius of user id, the user included.
func (s *Service) Neighbors(ctx context.Context, id int64, radius int) ([]model.RankedUser, error) {
	const op = "app.neighbors"
	defer observeQuery(metrics.OpNeighbors, time.Now())

	if details := validation.Struct(validation.NeighborsInput{ID: id, Radius: radius}); details != nil {
		return nil, apperror.Validation(op, "invalid neighbour query", details...)
	}

	ix, err := s.coordinator.Fresh(ctx)
	if err != nil {
		return nil, s.mapError(op, err)
	}
	out, err := ix.Window(id, radius)
	if err != nil {
		return nil, s.mapError(op, err)
	}
	return out, nil
}

// Rebuild forces a full rank index recompute.
func (s *Service) Rebuild(ctx context.Context) (RefreshResult, error) {
	const op = "app.rebuild"

	ix, err := s.coordinator.Rebuild(ctx)
	if err != nil {
		return RefreshResult{}, s.mapError(op, err)
	}
	s.logger.Info(ctx, "rank index rebuilt on request",
		logger.Uint64("version", ix.Version()),
		logger.Int("entries", ix.Len()),
	)
	return RefreshResult{Version: ix.Version(), Entries: ix.Len(), BuiltAt: ix.BuiltAt()}, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	ix := s.coordinator.Current()
	stats := map[string]interface{}{
		"started":         started,
		"refreshPolicy":   string(s.policy),
		"neighborRadius":  s.neighborRadius,
		"storeVersion":    s.coordinator.Version(),
		"indexVersion":    ix.Version(),
		"indexEntries":    ix.Len(),
		"indexStale":      s.coordinator.Stale(),
		"indexBuiltAt":    ix.BuiltAt().UTC().Format(time.RFC3339),
		"storageTimeout":  s.storageTimeout.String(),
		"refreshInterval": s.refreshInterval.String(),
	}
	if s.notifier != nil {
		stats["instanceID"] = s.notifier.InstanceID()
	}

	sctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()
	if n, err := s.store.Count(sctx); err == nil {
		stats["totalUsers"] = n
		metrics.UpdateTotalUsers(n)
	} else {
		stats["totalUsersError"] = err.Error()
	}
	return stats
}

// mapError converts store and ranking errors into the apperror taxonomy.
func (s *Service) mapError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, ranking.ErrNotFound):
		return apperror.NotFound(op, "user not found")
	case errors.Is(err, ranking.ErrInvalidLimit), errors.Is(err, ranking.ErrInvalidRadius):
		return apperror.Validation(op, err.Error())
	default:
		metrics.RecordErrorByComponent("service", string(apperror.KindStorage))
		return apperror.Storage(op, err)
	}
}

func observeQuery(op string, start time.Time) {
	metrics.RecordQueryLatency(op, float64(time.Since(start).Microseconds())/1000)
}
