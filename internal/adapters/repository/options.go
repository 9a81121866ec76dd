package repository

import "time"

type options struct {
	now          func() time.Time
	autoMigrate  bool
	maxOpenConns int
	maxIdleConns int
}

func defaultOptions() options {
	return options{
		now:          time.Now,
		autoMigrate:  true,
		maxOpenConns: 20,
		maxIdleConns: 5,
	}
}

// Option applies a configuration option to a store.
type Option func(*options)

// WithClock overrides the timestamp source of the memory store.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithAutoMigrate controls whether NewGormStore migrates the users table.
func WithAutoMigrate(enabled bool) Option {
	return func(o *options) {
		o.autoMigrate = enabled
	}
}

// WithMaxOpenConns caps open connections of the Postgres pool.
func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}

// WithMaxIdleConns caps idle connections of the Postgres pool.
func WithMaxIdleConns(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.maxIdleConns = n
		}
	}
}
