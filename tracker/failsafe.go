package tracker

import (
	"context"
	"errors"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/logging"
)

// FailSafeStore serves from an in-memory fallback whenever the primary store
// fails. It trades durability for availability: events written to the
// fallback are lost on restart. OnError is invoked for every primary failure.
type FailSafeStore struct {
	primary  core.TrackerStore
	fallback *InMemoryStore
	onError  func(op string, err error)
	logger   logging.Logger
}

var (
	_ core.TrackerStore     = (*FailSafeStore)(nil)
	_ core.SessionLoader    = (*FailSafeStore)(nil)
	_ core.ExistenceChecker = (*FailSafeStore)(nil)
)

// FailSafeOptions configures a FailSafeStore.
type FailSafeOptions struct {
	OnError func(op string, err error)
	Logger  logging.Logger
}

// NewFailSafeStore wraps primary with an in-memory fallback.
func NewFailSafeStore(primary core.TrackerStore, optFns ...func(o *FailSafeOptions)) *FailSafeStore {
	opts := FailSafeOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &FailSafeStore{primary: primary, fallback: NewInMemoryStore(), onError: opts.OnError, logger: opts.Logger}
}

func (s *FailSafeStore) failed(op string, err error) {
	s.logger.Error("tracker store failed, using in-memory fallback", "op", op, "error", err)
	if s.onError != nil {
		s.onError(op, err)
	}
}

// Load implements core.TrackerStore.
func (s *FailSafeStore) Load(ctx context.Context, conversationID string) ([]core.Event, error) {
	events, err := s.primary.Load(ctx, conversationID)
	if err == nil {
		return events, nil
	}
	s.failed("load", err)
	return s.fallback.Load(ctx, conversationID)
}

// Append implements core.TrackerStore.
func (s *FailSafeStore) Append(ctx context.Context, conversationID string, events []core.Event) error {
	err := s.primary.Append(ctx, conversationID, events)
	if err == nil {
		return nil
	}
	s.failed("append", err)
	if fbErr := s.fallback.Append(ctx, conversationID, events); fbErr != nil {
		return errors.Join(err, fbErr)
	}
	return nil
}

// Keys implements core.TrackerStore.
func (s *FailSafeStore) Keys(ctx context.Context) ([]string, error) {
	keys, err := s.primary.Keys(ctx)
	if err == nil {
		return keys, nil
	}
	s.failed("keys", err)
	return s.fallback.Keys(ctx)
}

// LoadSession implements core.SessionLoader.
func (s *FailSafeStore) LoadSession(ctx context.Context, conversationID string) ([]core.Event, error) {
	events, err := LoadSession(ctx, s.primary, conversationID)
	if err == nil {
		return events, nil
	}
	s.failed("load session", err)
	return s.fallback.LoadSession(ctx, conversationID)
}

// Exists implements core.ExistenceChecker.
func (s *FailSafeStore) Exists(ctx context.Context, conversationID string) (bool, error) {
	found, err := Exists(ctx, s.primary, conversationID)
	if err == nil {
		return found, nil
	}
	s.failed("exists", err)
	return s.fallback.Exists(ctx, conversationID)
}
