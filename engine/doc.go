// Package engine implements the turn scheduler of dialogmesh.
//
// The Engine sits between the inbound transport and the dialogue loop. For
// every inbound utterance it
//
//  1. acquires the conversation's exclusive turn slot (bounded FIFO queue)
//  2. acquires a worker slot (bounded pool across conversations)
//  3. loads and folds the conversation from the tracker store
//  4. runs the dialogue loop (package flow) on the folded tracker
//  5. appends the new events and releases both slots
//
// # Consistency
//
// Only events that were appended successfully ever become visible. A failed
// turn (store error, timeout, loop guard, crashed action) persists nothing;
// the conversation passes through StateFailed, the store is re-read and the
// next queued turn starts from persisted state.
//
// # Cancellation
//
// A caller that gives up while queued drops its turn without side effects.
// Once the turn holds the conversation it runs under a context detached from
// the caller and bounded by Config.TurnTimeout, so a disconnecting client
// cannot leave half a turn behind.
//
// # Callbacks
//
// Lifecycle hooks (before_turn, before_persist, after_turn, on_error) are
// registered on the CallbackManager returned by Engine.Callbacks.
package engine
