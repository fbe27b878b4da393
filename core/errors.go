package core

import "errors"

var (
	// ErrStoreUnavailable is returned by a TrackerStore when the backing
	// storage cannot be reached.
	ErrStoreUnavailable = errors.New("tracker store unavailable")

	// ErrPersistenceFailure is returned when events could not be persisted
	// after all retries. The turn is aborted and nothing is applied.
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrConversationBusy is returned when a conversation's turn queue is full
	// or a queued turn waited too long for the turn lock.
	ErrConversationBusy = errors.New("conversation busy")

	// ErrTurnTimeout is returned when a locked turn did not finish in time.
	ErrTurnTimeout = errors.New("turn timeout")

	// ErrLoopGuardTripped is returned when a turn executed more actions than
	// allowed without returning to listen.
	ErrLoopGuardTripped = errors.New("loop guard tripped")

	// ErrTurnAborted is returned when an uncaught fault, such as a panic
	// inside an action, stopped the turn. Nothing of the turn is persisted.
	ErrTurnAborted = errors.New("turn aborted")
)
