package testutil

import (
	"time"

	"github.com/hupe1980/dialogmesh/core"
)

// EventBuilder provides a fluent helper for constructing user events in tests.
// Example:
//
//	ev := NewEventBuilder().Text("book a flight").Intent("book_flight", 0.9).Entity("city", "Rome").Build()
//
// Chain only the parts you need; sensible defaults are applied.
type EventBuilder struct {
	id       string
	ts       time.Time
	text     string
	intent   core.Intent
	entities []core.Entity
}

// NewEventBuilder creates a builder for a user utterance.
func NewEventBuilder() *EventBuilder { return &EventBuilder{} }

// ID overrides the auto-generated event ID (chainable).
func (b *EventBuilder) ID(id string) *EventBuilder { b.id = id; return b }

// At overrides the timestamp (chainable).
func (b *EventBuilder) At(ts time.Time) *EventBuilder { b.ts = ts; return b }

// Text sets the utterance text (chainable).
func (b *EventBuilder) Text(t string) *EventBuilder { b.text = t; return b }

// Intent sets the resolved intent (chainable).
func (b *EventBuilder) Intent(name string, confidence float64) *EventBuilder {
	b.intent = core.Intent{Name: name, Confidence: confidence}
	return b
}

// Entity appends an extracted entity without span (chainable).
func (b *EventBuilder) Entity(name, value string) *EventBuilder {
	b.entities = append(b.entities, core.Entity{Name: name, Value: value})
	return b
}

// Parse returns the parse result assembled so far.
func (b *EventBuilder) Parse() core.ParseResult {
	text := b.text
	if text == "" {
		text = "/" + b.intent.Name
	}
	return core.ParseResult{Text: text, Intent: b.intent, Entities: append([]core.Entity(nil), b.entities...)}
}

// Build constructs the UserUttered event.
func (b *EventBuilder) Build() core.Event {
	p := b.Parse()
	ev := core.NewUserUttered(p.Text, p)
	if b.id != "" {
		ev.ID = b.id
	}
	if !b.ts.IsZero() {
		ev.Timestamp = b.ts
	}
	return ev
}

// User is shorthand for a user event with the given intent at confidence 1.
func User(intent string) core.Event { return NewEventBuilder().Intent(intent, 1).Build() }

// Action is shorthand for an ActionExecuted event without policy.
func Action(name string) core.Event { return core.NewActionExecuted(name, "", 1) }

// Actions returns the names of the ActionExecuted events in order.
func Actions(events []core.Event) []string {
	var names []string
	for _, ev := range events {
		if ev.Type == core.EventActionExecuted {
			names = append(names, ev.Name)
		}
	}
	return names
}

// Types returns the event types in order.
func Types(events []core.Event) []core.EventType {
	out := make([]core.EventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}
