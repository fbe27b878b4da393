package core

import "context"

// ActionResult is what an action produced: events to append in order and
// zero or more direct responses for the user.
type ActionResult struct {
	Events    []Event  `json:"events"`
	Responses []string `json:"responses,omitempty"`
}

// ActionGateway invokes externally hosted custom actions. One call is exactly
// one synchronous round trip; gateways never retry.
type ActionGateway interface {
	Invoke(ctx context.Context, name string, snapshot Snapshot) (ActionResult, error)
}
