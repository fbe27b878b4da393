// Package tracker provides core.TrackerStore implementations and the
// decorators that add retries, broker publishing and an opt-in in-memory
// fallback on top of them.
//
// Stores persist raw events only. Conversation state is always recomputed by
// folding the loaded events with core.FromEvents.
//
// Usage:
//
//	store, err := tracker.New(ctx, tracker.Config{Type: "sql", Dialect: "sqlite", DSN: "file:events.db"})
//	if err != nil { ... }
//	events, err := store.Load(ctx, "conversation-1")
package tracker
