package core

import "context"

// TrackerStore persists conversation event logs.
//
// Load returns an empty slice, not an error, for unknown conversations.
// Append is atomic per conversation and idempotent on the id of the first
// event in the batch: re-appending a batch that was already committed is a
// no-op. Implementations wrap connectivity errors with ErrStoreUnavailable.
type TrackerStore interface {
	Load(ctx context.Context, conversationID string) ([]Event, error)
	Append(ctx context.Context, conversationID string, events []Event) error
	Keys(ctx context.Context) ([]string, error)
}

// SessionLoader is implemented by stores that can read the latest session of
// a conversation, from its last SessionStarted event onwards, without loading
// the whole log.
type SessionLoader interface {
	LoadSession(ctx context.Context, conversationID string) ([]Event, error)
}

// ExistenceChecker is implemented by stores that answer whether a
// conversation has any events more cheaply than Load.
type ExistenceChecker interface {
	Exists(ctx context.Context, conversationID string) (bool, error)
}

// EventBroker streams newly persisted events to downstream consumers.
type EventBroker interface {
	Publish(ctx context.Context, conversationID string, events []Event) error
}
