package tracker

import (
	"context"

	"github.com/hupe1980/dialogmesh/core"
)

// LoadSession returns the events of the conversation's latest session. Stores
// implementing core.SessionLoader answer directly; for all others the full log
// is loaded and cut at the last SessionStarted event.
func LoadSession(ctx context.Context, store core.TrackerStore, conversationID string) ([]core.Event, error) {
	if sl, ok := store.(core.SessionLoader); ok {
		return sl.LoadSession(ctx, conversationID)
	}
	events, err := store.Load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return core.FromEvents(conversationID, events).SessionEvents(), nil
}

// Exists reports whether the conversation has at least one stored event.
func Exists(ctx context.Context, store core.TrackerStore, conversationID string) (bool, error) {
	if ec, ok := store.(core.ExistenceChecker); ok {
		return ec.Exists(ctx, conversationID)
	}
	events, err := store.Load(ctx, conversationID)
	if err != nil {
		return false, err
	}
	return len(events) > 0, nil
}
