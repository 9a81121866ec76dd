package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/leaderboard/internal/domain/model"
	"github.com/okian/leaderboard/pkg/metrics"
)

// MemoryStore is an in-process Store. Writes are serialized by a mutex and
// ids increase monotonically from 1.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[int64]model.User
	nextID int64
	closed bool
	now    func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MemoryStore{
		byID: make(map[int64]model.User),
		now:  o.now,
	}
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

// Add implements Store.Add.
func (s *MemoryStore) Add(ctx context.Context, username string, score int64, avatarURL string) (model.User, error) {
	defer observe(metrics.OpAddUser, time.Now())
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.User{}, ErrClosed
	}

	s.nextID++
	now := s.now()
	u := model.User{
		ID:        s.nextID,
		Username:  username,
		Score:     score,
		AvatarURL: avatarURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.byID[u.ID] = u
	return u, nil
}

// UpdateScore implements Store.UpdateScore.
func (s *MemoryStore) UpdateScore(ctx context.Context, id int64, score int64) (model.User, error) {
	defer observe(metrics.OpUpdateScore, time.Now())
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.User{}, ErrClosed
	}

	u, ok := s.byID[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	u.Score = score
	u.UpdatedAt = s.now()
	s.byID[id] = u
	return u, nil
}

// Get implements Store.Get.
func (s *MemoryStore) Get(ctx context.Context, id int64) (model.User, error) {
	defer observe(metrics.OpGetUser, time.Now())
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.User{}, ErrClosed
	}

	u, ok := s.byID[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

// List implements Store.List. The copy is taken under the read lock and
// sorted after releasing it.
func (s *MemoryStore) List(ctx context.Context) ([]model.User, error) {
	defer observe(metrics.OpList, time.Now())
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, ErrClosed
	}
	out := make([]model.User, 0, len(s.byID))
	for _, u := range s.byID {
		out = append(out, u)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Outranks(out[j]) })
	return out, nil
}

// Count implements Store.Count.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	defer observe(metrics.OpCount, time.Now())
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrClosed
	}
	return len(s.byID), nil
}

// Close marks the store closed; later calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
