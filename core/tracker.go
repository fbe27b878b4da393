package core

import (
	"maps"
	"slices"
	"time"
)

// State is the part of a conversation derived purely from its event log.
// Two folds of the same log always yield equal States.
type State struct {
	Slots      map[string]any `json:"slots"`
	ActiveForm string         `json:"active_form,omitempty"`
	Paused     bool           `json:"paused"`
}

// Tracker is the folded view of one conversation: its ordered events plus the
// state they produce. A Tracker is owned by a single turn at a time and is not
// safe for concurrent mutation; the turn scheduler guarantees exclusivity.
//
// Contract:
//   - Update is the only mutator; it appends and folds in one step
//   - Events returns a defensive copy
//   - Clone performs deep copies of maps/slices for safe divergence
type Tracker struct {
	ConversationID string

	events       []Event
	slots        map[string]any
	activeForm   string
	paused       bool
	latestUser   *Event
	latestAction string
}

// NewTracker creates an empty tracker for the given conversation.
func NewTracker(conversationID string) *Tracker {
	return &Tracker{ConversationID: conversationID, slots: map[string]any{}}
}

// FromEvents rebuilds a tracker by folding events from empty state.
func FromEvents(conversationID string, events []Event) *Tracker {
	t := NewTracker(conversationID)
	t.Update(events...)
	return t
}

// Fold computes the State produced by events without retaining them.
func Fold(events []Event) State {
	return FromEvents("", events).State()
}

// Update appends events in order and folds each into the current state.
func (t *Tracker) Update(events ...Event) {
	for _, ev := range events {
		t.events = append(t.events, ev)
		t.apply(ev)
	}
}

func (t *Tracker) apply(ev Event) {
	switch ev.Type {
	case EventUserUttered:
		u := ev
		t.latestUser = &u
		t.latestAction = ""
	case EventActionExecuted:
		t.latestAction = ev.Name
	case EventSlotSet:
		if ev.Value == nil {
			delete(t.slots, ev.Name)
		} else {
			t.slots[ev.Name] = ev.Value
		}
	case EventFormStarted:
		t.activeForm = ev.Name
	case EventFormEnded:
		if ev.Name == "" || ev.Name == t.activeForm {
			t.activeForm = ""
		}
	case EventConversationPaused:
		t.paused = true
	case EventConversationResumed:
		t.paused = false
	case EventAllSlotsReset:
		t.slots = map[string]any{}
	case EventSessionStarted:
		t.slots = map[string]any{}
		t.activeForm = ""
		t.paused = false
	case EventRestarted:
		t.slots = map[string]any{}
		t.activeForm = ""
		t.paused = false
		t.latestUser = nil
		t.latestAction = ""
	}
}

// State returns a copy of the folded state.
func (t *Tracker) State() State {
	return State{Slots: maps.Clone(t.slots), ActiveForm: t.activeForm, Paused: t.paused}
}

// Slot returns the current value of a slot.
func (t *Tracker) Slot(name string) (any, bool) {
	v, ok := t.slots[name]
	return v, ok
}

// Slots returns a copy of the current slot set.
func (t *Tracker) Slots() map[string]any { return maps.Clone(t.slots) }

// ActiveForm returns the name of the form in progress or "".
func (t *Tracker) ActiveForm() string { return t.activeForm }

// IsPaused reports whether the conversation is paused.
func (t *Tracker) IsPaused() bool { return t.paused }

// LatestMessage returns the parse result of the most recent user utterance.
func (t *Tracker) LatestMessage() (ParseResult, bool) {
	if t.latestUser == nil || t.latestUser.ParseData == nil {
		return ParseResult{}, false
	}
	return t.latestUser.ParseData.Clone(), true
}

// LatestIntent returns the intent of the most recent user utterance or "".
func (t *Tracker) LatestIntent() string {
	if t.latestUser == nil {
		return ""
	}
	return t.latestUser.Intent()
}

// LatestAction returns the name of the most recently executed action since the
// latest user utterance, or "" when none ran yet.
func (t *Tracker) LatestAction() string { return t.latestAction }

// Len returns the number of events.
func (t *Tracker) Len() int { return len(t.events) }

// Events returns a defensive copy of the full event log.
func (t *Tracker) Events() []Event {
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// LastEventTime returns the timestamp of the latest event (zero when empty).
func (t *Tracker) LastEventTime() time.Time {
	if len(t.events) == 0 {
		return time.Time{}
	}
	return t.events[len(t.events)-1].Timestamp
}

// SessionEvents returns the events from the latest SessionStarted onwards, or
// every event when no session was ever started.
func (t *Tracker) SessionEvents() []Event {
	start := 0
	for i := len(t.events) - 1; i >= 0; i-- {
		if t.events[i].Type == EventSessionStarted {
			start = i
			break
		}
	}
	out := make([]Event, len(t.events)-start)
	copy(out, t.events[start:])
	return out
}

// ActionsSinceLatestUser returns the names of actions executed after the most
// recent user utterance, in order.
func (t *Tracker) ActionsSinceLatestUser() []string {
	var names []string
	for i := len(t.events) - 1; i >= 0; i-- {
		ev := t.events[i]
		if ev.Type == EventUserUttered {
			break
		}
		if ev.Type == EventActionExecuted {
			names = append(names, ev.Name)
		}
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names
}

// ActionsSinceRejection returns the actions executed after the latest
// ActionRejected event for name in the current user turn. ok is false when
// name was not rejected since the latest user utterance.
func (t *Tracker) ActionsSinceRejection(name string) (actions []string, ok bool) {
	var names []string
	for i := len(t.events) - 1; i >= 0; i-- {
		ev := t.events[i]
		switch {
		case ev.Type == EventUserUttered:
			return nil, false
		case ev.Type == EventActionRejected && ev.Name == name:
			slices.Reverse(names)
			return names, true
		case ev.Type == EventActionExecuted:
			names = append(names, ev.Name)
		}
	}
	return nil, false
}

// PreviousTurnActions returns the actions executed between the second to last
// and the last user utterance.
func (t *Tracker) PreviousTurnActions() []string {
	users := 0
	var names []string
	for i := len(t.events) - 1; i >= 0; i-- {
		ev := t.events[i]
		if ev.Type == EventUserUttered {
			users++
			if users == 2 {
				break
			}
			continue
		}
		if users == 1 && ev.Type == EventActionExecuted {
			names = append(names, ev.Name)
		}
	}
	if users == 0 {
		return nil
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return names
}

// PendingFollowup returns the action forced by a FollowupAction event emitted
// after the latest executed action, if any.
func (t *Tracker) PendingFollowup() (string, bool) {
	for i := len(t.events) - 1; i >= 0; i-- {
		switch t.events[i].Type {
		case EventFollowupAction:
			return t.events[i].Name, true
		case EventActionExecuted, EventUserUttered:
			return "", false
		}
	}
	return "", false
}

// Clone returns a deep copy of the tracker safe for independent mutation.
func (t *Tracker) Clone() *Tracker {
	c := &Tracker{
		ConversationID: t.ConversationID,
		events:         make([]Event, len(t.events)),
		slots:          maps.Clone(t.slots),
		activeForm:     t.activeForm,
		paused:         t.paused,
		latestAction:   t.latestAction,
	}
	copy(c.events, t.events)
	if t.latestUser != nil {
		u := *t.latestUser
		c.latestUser = &u
	}
	return c
}

// Snapshot is the wire form of a tracker sent to action servers.
type Snapshot struct {
	ConversationID string         `json:"conversation_id"`
	Slots          map[string]any `json:"slots"`
	LatestMessage  *ParseResult   `json:"latest_message,omitempty"`
	Events         []Event        `json:"events"`
	ActiveForm     string         `json:"active_form,omitempty"`
	Paused         bool           `json:"paused"`
}

// Snapshot captures the current tracker for an external action call. Only the
// events of the current session are included.
func (t *Tracker) Snapshot() Snapshot {
	s := Snapshot{
		ConversationID: t.ConversationID,
		Slots:          maps.Clone(t.slots),
		Events:         t.SessionEvents(),
		ActiveForm:     t.activeForm,
		Paused:         t.paused,
	}
	if msg, ok := t.LatestMessage(); ok {
		s.LatestMessage = &msg
	}
	return s
}
