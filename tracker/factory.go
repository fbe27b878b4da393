package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/logging"
)

// Store types accepted by New.
const (
	TypeMemory = "memory"
	TypeSQL    = "sql"
)

// Config selects and tunes the tracker store built by New.
type Config struct {
	Type             string
	Dialect          string
	DSN              string
	ConnectAttempts  int
	RetryAttempts    int
	RetryMinInterval time.Duration
	FailSafe         bool
}

// Options carries the collaborators New wires around the store.
type Options struct {
	Broker  core.EventBroker
	Logger  logging.Logger
	OnError func(op string, err error)
}

// New builds the configured store and its decorators:
// primary → retry (sql only) → fail-safe (opt-in) → publishing (with broker).
// The returned close function releases database handles.
func New(ctx context.Context, cfg Config, optFns ...func(o *Options)) (core.TrackerStore, func() error, error) {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	var (
		store   core.TrackerStore
		closeFn = func() error { return nil }
	)

	switch cfg.Type {
	case "", TypeMemory:
		store = NewInMemoryStore()
	case TypeSQL:
		dialect := cfg.Dialect
		if dialect == "" {
			dialect = DialectSQLite
		}
		sqlStore, err := OpenSQLStore(ctx, dialect, cfg.DSN, func(o *SQLOptions) {
			o.ConnectAttempts = cfg.ConnectAttempts
			o.Logger = opts.Logger
		})
		if err != nil {
			return nil, nil, err
		}
		closeFn = sqlStore.Close
		store = NewRetryStore(sqlStore, func(o *RetryOptions) {
			if cfg.RetryAttempts > 0 {
				o.MaxAttempts = cfg.RetryAttempts
			}
			if cfg.RetryMinInterval > 0 {
				o.MinInterval = cfg.RetryMinInterval
			}
			o.Logger = opts.Logger
		})
	default:
		return nil, nil, fmt.Errorf("unknown tracker store type %q", cfg.Type)
	}

	if cfg.FailSafe {
		opts.Logger.Warn("fail-safe tracker store enabled, events may be lost on restart")
		store = NewFailSafeStore(store, func(o *FailSafeOptions) {
			o.OnError = opts.OnError
			o.Logger = opts.Logger
		})
	}

	if opts.Broker != nil {
		store = NewPublishingStore(store, opts.Broker, opts.Logger)
	}

	return store, closeFn, nil
}
