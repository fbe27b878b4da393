package testutil

import (
	"github.com/hupe1980/dialogmesh/core"
)

// TrackerBuilder helps construct trackers with fluent chaining for tests.
// Example:
//
//	tr := NewTrackerBuilder("c1").Session().Slot("city", "Rome").Form("booking_form").Build()
type TrackerBuilder struct {
	id     string
	events []core.Event
}

// NewTrackerBuilder creates a new builder for the conversation id.
func NewTrackerBuilder(id string) *TrackerBuilder { return &TrackerBuilder{id: id} }

// Session appends a started session followed by action_listen, as the
// processor records on a first utterance (chainable).
func (b *TrackerBuilder) Session() *TrackerBuilder {
	return b.Events(
		Action(core.ActionSessionStart),
		core.NewSessionStarted(),
		Action(core.ActionListen),
	)
}

// Slot appends a SlotSet event (chainable).
func (b *TrackerBuilder) Slot(name string, value any) *TrackerBuilder {
	return b.Event(core.NewSlotSet(name, value))
}

// Form appends a FormStarted event (chainable).
func (b *TrackerBuilder) Form(name string) *TrackerBuilder {
	return b.Event(core.NewFormStarted(name))
}

// Paused appends a ConversationPaused event (chainable).
func (b *TrackerBuilder) Paused() *TrackerBuilder {
	return b.Event(core.NewConversationPaused())
}

// Event appends a single event (chainable).
func (b *TrackerBuilder) Event(ev core.Event) *TrackerBuilder {
	b.events = append(b.events, ev)
	return b
}

// Events appends multiple events (chainable).
func (b *TrackerBuilder) Events(evs ...core.Event) *TrackerBuilder {
	b.events = append(b.events, evs...)
	return b
}

// List returns a copy of the collected events.
func (b *TrackerBuilder) List() []core.Event { return append([]core.Event(nil), b.events...) }

// Build folds the collected events into a tracker.
func (b *TrackerBuilder) Build() *core.Tracker { return core.FromEvents(b.id, b.events) }
