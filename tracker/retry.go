package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/backoff/v2"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/logging"
)

// RetryOptions configures a RetryStore.
type RetryOptions struct {
	MaxAttempts int
	MinInterval time.Duration
	MaxInterval time.Duration
	Logger      logging.Logger
}

// RetryStore retries operations that failed with core.ErrStoreUnavailable
// using exponential backoff. Once MaxAttempts is exhausted the last error is
// surfaced wrapped with core.ErrPersistenceFailure. Other errors are returned
// immediately.
type RetryStore struct {
	next core.TrackerStore
	opts RetryOptions
}

var (
	_ core.TrackerStore     = (*RetryStore)(nil)
	_ core.SessionLoader    = (*RetryStore)(nil)
	_ core.ExistenceChecker = (*RetryStore)(nil)
)

// NewRetryStore wraps next with bounded retries.
func NewRetryStore(next core.TrackerStore, optFns ...func(o *RetryOptions)) *RetryStore {
	opts := RetryOptions{
		MaxAttempts: 3,
		MinInterval: 50 * time.Millisecond,
		MaxInterval: 2 * time.Second,
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}

	return &RetryStore{next: next, opts: opts}
}

// Load implements core.TrackerStore.
func (s *RetryStore) Load(ctx context.Context, conversationID string) ([]core.Event, error) {
	var events []core.Event
	err := s.do(ctx, "load", func() error {
		var err error
		events, err = s.next.Load(ctx, conversationID)
		return err
	})
	return events, err
}

// Append implements core.TrackerStore. Retrying is safe because appends are
// idempotent on the batch's first event id.
func (s *RetryStore) Append(ctx context.Context, conversationID string, events []core.Event) error {
	return s.do(ctx, "append", func() error {
		return s.next.Append(ctx, conversationID, events)
	})
}

// Keys implements core.TrackerStore.
func (s *RetryStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.do(ctx, "keys", func() error {
		var err error
		keys, err = s.next.Keys(ctx)
		return err
	})
	return keys, err
}

// LoadSession implements core.SessionLoader.
func (s *RetryStore) LoadSession(ctx context.Context, conversationID string) ([]core.Event, error) {
	var events []core.Event
	err := s.do(ctx, "load session", func() error {
		var err error
		events, err = LoadSession(ctx, s.next, conversationID)
		return err
	})
	return events, err
}

// Exists implements core.ExistenceChecker.
func (s *RetryStore) Exists(ctx context.Context, conversationID string) (bool, error) {
	var found bool
	err := s.do(ctx, "exists", func() error {
		var err error
		found, err = Exists(ctx, s.next, conversationID)
		return err
	})
	return found, err
}

func (s *RetryStore) do(ctx context.Context, op string, fn func() error) error {
	policy := backoff.Exponential(
		backoff.WithMinInterval(s.opts.MinInterval),
		backoff.WithMaxInterval(s.opts.MaxInterval),
		backoff.WithJitterFactor(0.1),
	)

	var lastErr error
	b := policy.Start(ctx)
	for attempt := 1; backoff.Continue(b); attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, core.ErrStoreUnavailable) {
			return lastErr
		}
		s.opts.Logger.Warn("tracker store operation failed", "op", op, "attempt", attempt, "error", lastErr)
		if attempt >= s.opts.MaxAttempts {
			break
		}
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}

	return fmt.Errorf("%w: %s: %w", core.ErrPersistenceFailure, op, lastErr)
}
