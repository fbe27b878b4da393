package core

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// EventType tags the kind of an Event. The string values double as the
// "event" field of the JSON wire form exchanged with action servers.
type EventType string

const (
	EventUserUttered         EventType = "user"
	EventBotUttered          EventType = "bot"
	EventActionExecuted      EventType = "action"
	EventSlotSet             EventType = "slot"
	EventFormStarted         EventType = "form_started"
	EventFormEnded           EventType = "form_ended"
	EventConversationPaused  EventType = "pause"
	EventConversationResumed EventType = "resume"
	EventSessionStarted      EventType = "session_started"
	EventActionFailed        EventType = "action_failed"
	EventActionRejected      EventType = "action_execution_rejected"
	EventAllSlotsReset       EventType = "reset_slots"
	EventRestarted           EventType = "restart"
	EventFollowupAction      EventType = "followup"
)

// Event is an immutable, timestamped record in a conversation's log.
// Only the payload fields relevant to Type are populated:
//   - user:    Text, ParseData
//   - bot:     Text
//   - action:  Name, Policy, Confidence
//   - slot:    Name, Value (nil Value unsets the slot)
//   - form_started / form_ended: Name
//   - action_failed / action_execution_rejected: Name, Kind, Reason
//   - followup: Name
type Event struct {
	ID        string    `json:"id,omitempty"`
	Type      EventType `json:"event"`
	Timestamp time.Time `json:"timestamp"`

	Text      string       `json:"text,omitempty"`
	ParseData *ParseResult `json:"parse_data,omitempty"`

	Name       string  `json:"name,omitempty"`
	Policy     string  `json:"policy,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`

	Value any `json:"value,omitempty"`

	Kind   string `json:"kind,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// NewID generates a new unique identifier for events.
func NewID() string { return uuid.NewString() }

// NewEvent creates a bare event of the given type stamped with a fresh id and
// the current UTC time. Prefer the typed constructors below.
func NewEvent(t EventType) Event {
	return Event{
		ID:        NewID(),
		Type:      t,
		Timestamp: time.Now().UTC(),
	}
}

// NewUserUttered records an inbound utterance together with its parse result.
func NewUserUttered(text string, parse ParseResult) Event {
	e := NewEvent(EventUserUttered)
	e.Text = text
	p := parse.Clone()
	e.ParseData = &p
	return e
}

// NewBotUttered records a response sent back to the user.
func NewBotUttered(text string) Event {
	e := NewEvent(EventBotUttered)
	e.Text = text
	return e
}

// NewActionExecuted records that the named action ran, tagged with the policy
// and confidence that selected it.
func NewActionExecuted(name, policy string, confidence float64) Event {
	e := NewEvent(EventActionExecuted)
	e.Name = name
	e.Policy = policy
	e.Confidence = confidence
	return e
}

// NewSlotSet sets (or with a nil value, clears) a slot.
func NewSlotSet(name string, value any) Event {
	e := NewEvent(EventSlotSet)
	e.Name = name
	e.Value = value
	return e
}

// NewFormStarted activates a form.
func NewFormStarted(form string) Event {
	e := NewEvent(EventFormStarted)
	e.Name = form
	return e
}

// NewFormEnded deactivates a form.
func NewFormEnded(form string) Event {
	e := NewEvent(EventFormEnded)
	e.Name = form
	return e
}

// NewConversationPaused stops the bot from acting on further utterances.
func NewConversationPaused() Event { return NewEvent(EventConversationPaused) }

// NewConversationResumed lifts a previous pause.
func NewConversationResumed() Event { return NewEvent(EventConversationResumed) }

// NewSessionStarted opens a new conversation session.
func NewSessionStarted() Event { return NewEvent(EventSessionStarted) }

// NewAllSlotsReset clears every slot.
func NewAllSlotsReset() Event { return NewEvent(EventAllSlotsReset) }

// NewRestarted resets the whole conversation state.
func NewRestarted() Event { return NewEvent(EventRestarted) }

// NewFollowupAction forces name to be the next action of the current turn.
func NewFollowupAction(name string) Event {
	e := NewEvent(EventFollowupAction)
	e.Name = name
	return e
}

// NewActionFailed records that an action could not be executed.
func NewActionFailed(name, kind, reason string) Event {
	e := NewEvent(EventActionFailed)
	e.Name = name
	e.Kind = kind
	e.Reason = reason
	return e
}

// NewActionRejected records that an action server explicitly declined to run
// the action. Dialogue rules can branch on it.
func NewActionRejected(name, reason string) Event {
	e := NewEvent(EventActionRejected)
	e.Name = name
	e.Kind = "rejected"
	e.Reason = reason
	return e
}

// Intent returns the resolved intent name of a user event or "".
func (e Event) Intent() string {
	if e.ParseData == nil {
		return ""
	}
	return e.ParseData.Intent.Name
}

// UnixSeconds returns the timestamp as fractional seconds since Unix epoch.
func (e Event) UnixSeconds() float64 { return float64(e.Timestamp.UnixNano()) / 1e9 }

// UnmarshalJSON accepts timestamps either as RFC 3339 strings (the format
// produced by MarshalJSON) or as fractional Unix seconds, which is what most
// action servers emit. Missing ids and timestamps are filled in.
func (e *Event) UnmarshalJSON(data []byte) error {
	type alias Event
	aux := struct {
		*alias
		Timestamp json.RawMessage `json:"timestamp"`
	}{alias: (*alias)(e)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	ts, err := parseTimestamp(aux.Timestamp)
	if err != nil {
		return err
	}

	e.Timestamp = ts
	if e.ID == "" {
		e.ID = NewID()
	}

	return nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Now().UTC(), nil
	}

	if raw[0] == '"' {
		var t time.Time
		if err := json.Unmarshal(raw, &t); err != nil {
			return time.Time{}, fmt.Errorf("invalid event timestamp: %w", err)
		}
		return t.UTC(), nil
	}

	var secs float64
	if err := json.Unmarshal(raw, &secs); err != nil {
		return time.Time{}, fmt.Errorf("invalid event timestamp: %w", err)
	}

	whole, frac := math.Modf(secs)

	return time.Unix(int64(whole), int64(frac*1e9)).UTC(), nil
}
