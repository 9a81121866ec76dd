package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/leaderboard/internal/domain/model"
	"github.com/okian/leaderboard/pkg/metrics"
)

// userRow maps the users table.
type userRow struct {
	ID        int64   `gorm:"primaryKey;autoIncrement"`
	Username  string  `gorm:"size:50;not null"`
	Score     int64   `gorm:"not null;index:idx_users_score,sort:desc"`
	ImgURL    *string `gorm:"column:img_url"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userRow) TableName() string { return "users" }

func (r userRow) toModel() model.User {
	u := model.User{
		ID:        r.ID,
		Username:  r.Username,
		Score:     r.Score,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.ImgURL != nil {
		u.AvatarURL = *r.ImgURL
	}
	return u
}

// OpenPostgres opens a gorm handle on dsn with the pool limits from opts.
// The caller owns the handle and injects it into NewGormStore.
func OpenPostgres(dsn string, opts ...Option) (*gorm.DB, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(o.maxOpenConns)
	sqlDB.SetMaxIdleConns(o.maxIdleConns)
	return db, nil
}

// GormStore is a Store backed by Postgres through gorm.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore wraps db and takes ownership of it: Close closes db, and so
// does a failed migration. Unless disabled, it migrates the users table first.
func NewGormStore(ctx context.Context, db *gorm.DB, opts ...Option) (*GormStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.autoMigrate {
		if err := db.WithContext(ctx).AutoMigrate(&userRow{}); err != nil {
			if sqlDB, derr := db.DB(); derr == nil {
				_ = sqlDB.Close()
			}
			return nil, fmt.Errorf("migrate users: %w", err)
		}
	}
	return &GormStore{db: db}, nil
}

// Add implements Store.Add.
func (s *GormStore) Add(ctx context.Context, username string, score int64, avatarURL string) (model.User, error) {
	defer observe(metrics.OpAddUser, time.Now())

	row := userRow{Username: username, Score: score}
	if avatarURL != "" {
		row.ImgURL = &avatarURL
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return model.User{}, fmt.Errorf("insert user: %w", err)
	}
	return row.toModel(), nil
}

// UpdateScore implements Store.UpdateScore. The row is locked for the
// duration of the transaction so concurrent updates of one user serialize.
func (s *GormStore) UpdateScore(ctx context.Context, id int64, score int64) (model.User, error) {
	defer observe(metrics.OpUpdateScore, time.Now())

	var row userRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&row, id).Error; err != nil {
			return err
		}
		row.Score = score
		return tx.Save(&row).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("update score of user %d: %w", id, err)
	}
	return row.toModel(), nil
}

// Get implements Store.Get.
func (s *GormStore) Get(ctx context.Context, id int64) (model.User, error) {
	defer observe(metrics.OpGetUser, time.Now())

	var row userRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return row.toModel(), nil
}

// List implements Store.List.
func (s *GormStore) List(ctx context.Context) ([]model.User, error) {
	defer observe(metrics.OpList, time.Now())

	var rows []userRow
	if err := s.db.WithContext(ctx).Order("score DESC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]model.User, len(rows))
	for i, r := range rows {
		out[i] = r.toModel()
	}
	return out, nil
}

// Count implements Store.Count.
func (s *GormStore) Count(ctx context.Context) (int, error) {
	defer observe(metrics.OpCount, time.Now())

	var n int64
	if err := s.db.WithContext(ctx).Model(&userRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return int(n), nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
