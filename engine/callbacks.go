package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/dialogmesh/core"
)

// CallbackType identifies a point in the turn lifecycle.
type CallbackType string

const (
	// CallbackBeforeTurn runs after the turn lock is acquired and before the
	// tracker is loaded. An error rejects the turn.
	CallbackBeforeTurn CallbackType = "before_turn"

	// CallbackBeforePersist runs with the new events before they are
	// appended. An error aborts the turn; nothing is persisted.
	CallbackBeforePersist CallbackType = "before_persist"

	// CallbackAfterTurn runs after the new events were persisted.
	CallbackAfterTurn CallbackType = "after_turn"

	// CallbackOnError runs when a turn fails.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext carries the turn data available to a callback.
type CallbackContext struct {
	ConversationID string
	Text           string

	// Events holds the new events of the turn (before_persist, after_turn).
	Events []core.Event

	// Responses holds the responses sent to the user (after_turn).
	Responses []string

	// Err is the turn error (on_error).
	Err error

	CallbackType CallbackType
}

// Callback is a lifecycle hook.
type Callback interface {
	Type() CallbackType

	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback adapts a function to Callback.
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a callback of the given type.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager holds callbacks by type. It is safe for concurrent use.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds callback; callbacks of one type run in registration
// order.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks runs every callback of callbackType and stops at the
// first error.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	cm.mu.RLock()
	callbacks := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType

	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return fmt.Errorf("%s callback: %w", callbackType, err)
		}
	}

	return nil
}

// LoggingCallback writes one line per lifecycle point.
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a logging callback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger != nil {
		message := fmt.Sprintf("[%s] conversation: %s, events: %d, err: %v",
			c.callbackType, callbackCtx.ConversationID, len(callbackCtx.Events), callbackCtx.Err)
		c.logger(message)
	}
	return nil
}

// EventValidationCallback checks the new events of a turn before they are
// persisted.
type EventValidationCallback struct {
	validator func(events []core.Event) error
}

// NewEventValidationCallback creates a before_persist validator.
func NewEventValidationCallback(validator func(events []core.Event) error) *EventValidationCallback {
	return &EventValidationCallback{
		validator: validator,
	}
}

func (c *EventValidationCallback) Type() CallbackType {
	return CallbackBeforePersist
}

func (c *EventValidationCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.validator != nil && len(callbackCtx.Events) > 0 {
		return c.validator(callbackCtx.Events)
	}
	return nil
}
