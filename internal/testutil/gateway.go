package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/dialogmesh/core"
)

// GatewayFunc handles one scripted action invocation.
type GatewayFunc func(ctx context.Context, snapshot core.Snapshot) (core.ActionResult, error)

// StubGateway is a core.ActionGateway with per-action handlers. Actions
// without a handler answer with an empty result. Invocations are recorded.
type StubGateway struct {
	mu       sync.Mutex
	handlers map[string]GatewayFunc
	calls    []string
}

var _ core.ActionGateway = (*StubGateway)(nil)

// NewStubGateway creates a gateway without handlers.
func NewStubGateway() *StubGateway { return &StubGateway{handlers: map[string]GatewayFunc{}} }

// Handle registers fn for the action name (chainable).
func (g *StubGateway) Handle(name string, fn GatewayFunc) *StubGateway {
	g.mu.Lock()
	g.handlers[name] = fn
	g.mu.Unlock()
	return g
}

// Reply registers a handler answering with fixed responses and events.
func (g *StubGateway) Reply(name string, responses []string, events ...core.Event) *StubGateway {
	return g.Handle(name, func(context.Context, core.Snapshot) (core.ActionResult, error) {
		return core.ActionResult{Events: events, Responses: responses}, nil
	})
}

// Calls returns the invoked action names in order.
func (g *StubGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

// Invoke implements core.ActionGateway.
func (g *StubGateway) Invoke(ctx context.Context, name string, snapshot core.Snapshot) (core.ActionResult, error) {
	g.mu.Lock()
	g.calls = append(g.calls, name)
	fn := g.handlers[name]
	g.mu.Unlock()

	if fn == nil {
		return core.ActionResult{}, nil
	}
	return fn(ctx, snapshot)
}
