package tracker

import (
	"context"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/logging"
)

// PublishingStore streams each successfully appended batch to an event
// broker. Publish errors are logged and never fail the append.
type PublishingStore struct {
	core.TrackerStore
	broker core.EventBroker
	logger logging.Logger
}

// NewPublishingStore wraps store so that appends are forwarded to broker.
func NewPublishingStore(store core.TrackerStore, broker core.EventBroker, logger logging.Logger) *PublishingStore {
	return &PublishingStore{TrackerStore: store, broker: broker, logger: logging.OrNoOp(logger)}
}

// Append implements core.TrackerStore.
func (s *PublishingStore) Append(ctx context.Context, conversationID string, events []core.Event) error {
	if err := s.TrackerStore.Append(ctx, conversationID, events); err != nil {
		return err
	}
	if err := s.broker.Publish(ctx, conversationID, events); err != nil {
		s.logger.Warn("event broker publish failed", "conversation_id", conversationID, "events", len(events), "error", err)
	}
	return nil
}

// LoadSession implements core.SessionLoader.
func (s *PublishingStore) LoadSession(ctx context.Context, conversationID string) ([]core.Event, error) {
	return LoadSession(ctx, s.TrackerStore, conversationID)
}

// Exists implements core.ExistenceChecker.
func (s *PublishingStore) Exists(ctx context.Context, conversationID string) (bool, error) {
	return Exists(ctx, s.TrackerStore, conversationID)
}
