package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/dialogmesh/core"
)

// Action is a named capability executed during a dialogue turn.
//
// Implementations must treat the tracker as read-only; state changes are
// expressed exclusively through the returned events.
type Action interface {
	// Name returns the unique action name.
	Name() string

	// Run executes the action for the current conversation state.
	Run(ctx context.Context, tracker *core.Tracker) (core.ActionResult, error)
}

// ErrorKind classifies action failures.
type ErrorKind string

const (
	// KindNotFound means no action with that name exists.
	KindNotFound ErrorKind = "not_found"
	// KindTimeout means the action did not answer within its time budget.
	KindTimeout ErrorKind = "timeout"
	// KindUnreachable means the action server could not be reached or
	// answered with an unexpected status.
	KindUnreachable ErrorKind = "unreachable"
	// KindRejected means the action server declined to run the action.
	KindRejected ErrorKind = "rejected"
)

// Error represents a failed action execution.
type Error struct {
	Action  string    `json:"action"`  // Name of the action that failed
	Kind    ErrorKind `json:"kind"`    // Failure classification
	Message string    `json:"message"` // Error message
	Err     error     `json:"-"`       // Underlying cause, if any
}

func (e *Error) Error() string {
	return fmt.Sprintf("action error [%s] in %s: %s", e.Kind, e.Action, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a new Error with the specified details.
func NewError(action string, kind ErrorKind, message string) *Error {
	return &Error{Action: action, Kind: kind, Message: message}
}

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// Function adapts a Go function into an in-process custom action.
//
// A Function has no internal mutable state after construction and is safe for
// concurrent use by multiple goroutines.
type Function struct {
	name string
	fn   func(ctx context.Context, tracker *core.Tracker) (core.ActionResult, error)
}

var _ Action = (*Function)(nil)

// NewFunction creates an in-process custom action.
func NewFunction(name string, fn func(ctx context.Context, tracker *core.Tracker) (core.ActionResult, error)) *Function {
	return &Function{name: name, fn: fn}
}

// Name implements Action.
func (f *Function) Name() string { return f.name }

// Run implements Action.
func (f *Function) Run(ctx context.Context, tracker *core.Tracker) (core.ActionResult, error) {
	return f.fn(ctx, tracker)
}

// Custom routes an action through a gateway.
type Custom struct {
	name    string
	gateway core.ActionGateway
}

var _ Action = (*Custom)(nil)

// NewCustom creates a gateway backed action.
func NewCustom(name string, gateway core.ActionGateway) *Custom {
	return &Custom{name: name, gateway: gateway}
}

// Name implements Action.
func (c *Custom) Name() string { return c.name }

// Run implements Action by one synchronous gateway round trip.
func (c *Custom) Run(ctx context.Context, tracker *core.Tracker) (core.ActionResult, error) {
	if c.gateway == nil {
		return core.ActionResult{}, NewError(c.name, KindUnreachable, "no action gateway configured")
	}
	return c.gateway.Invoke(ctx, c.name, tracker.Snapshot())
}
