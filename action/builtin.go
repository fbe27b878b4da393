package action

import (
	"context"
	"sort"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/domain"
)

// Default texts used when the domain declares no matching response.
const (
	DefaultFallbackText = "Sorry, I didn't get that. Can you rephrase?"
	DefaultHandoffText  = "Let me connect you with a human agent."
	DefaultApologyText  = "Sorry, something went wrong. Please try again."
	DefaultCancelText   = "Okay, cancelled."
)

// Response names looked up by built-in actions.
const (
	ResponseDefault   = "utter_default"
	ResponseHandoff   = "utter_handoff"
	ResponseApology   = "utter_apology"
	ResponseCancelled = "utter_cancelled"
)

type builtin struct {
	name string
	run  func(ctx context.Context, tracker *core.Tracker) (core.ActionResult, error)
}

func (b *builtin) Name() string { return b.name }

func (b *builtin) Run(ctx context.Context, tracker *core.Tracker) (core.ActionResult, error) {
	return b.run(ctx, tracker)
}

// render returns the named domain response or def when it does not exist.
func render(d *domain.Domain, name, def string, tracker *core.Tracker) (string, error) {
	if d == nil {
		return def, nil
	}
	text, ok, err := d.Render(name, tracker.Slots())
	if err != nil {
		return "", err
	}
	if !ok {
		return def, nil
	}
	return text, nil
}

// NewListen returns the action that ends the turn and waits for the user.
func NewListen() Action {
	return &builtin{name: core.ActionListen, run: func(context.Context, *core.Tracker) (core.ActionResult, error) {
		return core.ActionResult{}, nil
	}}
}

// NewSessionStart opens a new session with the domain's initial slot values.
// With carryOver the slots of the previous session are re-applied on top.
func NewSessionStart(d *domain.Domain, carryOver bool) Action {
	return &builtin{name: core.ActionSessionStart, run: func(_ context.Context, tracker *core.Tracker) (core.ActionResult, error) {
		events := []core.Event{core.NewSessionStarted()}
		if d != nil {
			events = append(events, d.InitialSlots()...)
		}
		if carryOver {
			slots := tracker.Slots()
			names := make([]string, 0, len(slots))
			for name := range slots {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				events = append(events, core.NewSlotSet(name, slots[name]))
			}
		}
		return core.ActionResult{Events: events}, nil
	}}
}

// NewDefaultFallback asks the user to rephrase.
func NewDefaultFallback(d *domain.Domain) Action {
	return &builtin{name: core.ActionDefaultFallback, run: func(_ context.Context, tracker *core.Tracker) (core.ActionResult, error) {
		text, err := render(d, ResponseDefault, DefaultFallbackText, tracker)
		if err != nil {
			return core.ActionResult{}, err
		}
		return core.ActionResult{Responses: []string{text}}, nil
	}}
}

// NewHandoff tells the user a human takes over and pauses the conversation
// until it is resumed.
func NewHandoff(d *domain.Domain) Action {
	return &builtin{name: core.ActionHandoff, run: func(_ context.Context, tracker *core.Tracker) (core.ActionResult, error) {
		text, err := render(d, ResponseHandoff, DefaultHandoffText, tracker)
		if err != nil {
			return core.ActionResult{}, err
		}
		return core.ActionResult{
			Events:    []core.Event{core.NewConversationPaused()},
			Responses: []string{text},
		}, nil
	}}
}

// NewDeactivateForm ends the active form, if any.
func NewDeactivateForm() Action {
	return &builtin{name: core.ActionDeactivateForm, run: func(_ context.Context, tracker *core.Tracker) (core.ActionResult, error) {
		form := tracker.ActiveForm()
		if form == "" {
			return core.ActionResult{}, nil
		}
		return core.ActionResult{Events: []core.Event{
			core.NewSlotSet(RequestedSlot, nil),
			core.NewFormEnded(form),
		}}, nil
	}}
}

// NewCancelled confirms a cancelled form.
func NewCancelled(d *domain.Domain) Action {
	return &builtin{name: core.ActionCancelled, run: func(_ context.Context, tracker *core.Tracker) (core.ActionResult, error) {
		text, err := render(d, ResponseCancelled, DefaultCancelText, tracker)
		if err != nil {
			return core.ActionResult{}, err
		}
		return core.ActionResult{Responses: []string{text}}, nil
	}}
}

// NewRestart resets the whole conversation.
func NewRestart() Action {
	return &builtin{name: core.ActionRestart, run: func(context.Context, *core.Tracker) (core.ActionResult, error) {
		return core.ActionResult{Events: []core.Event{core.NewRestarted()}}, nil
	}}
}

// NewResetSlots clears every slot.
func NewResetSlots() Action {
	return &builtin{name: core.ActionResetSlots, run: func(context.Context, *core.Tracker) (core.ActionResult, error) {
		return core.ActionResult{Events: []core.Event{core.NewAllSlotsReset()}}, nil
	}}
}

// Utter renders a domain response.
type Utter struct {
	name   string
	domain *domain.Domain
}

var _ Action = (*Utter)(nil)

// NewUtter creates the action for response name.
func NewUtter(name string, d *domain.Domain) *Utter { return &Utter{name: name, domain: d} }

// Name implements Action.
func (u *Utter) Name() string { return u.name }

// Run implements Action.
func (u *Utter) Run(_ context.Context, tracker *core.Tracker) (core.ActionResult, error) {
	text, ok, err := u.domain.Render(u.name, tracker.Slots())
	if err != nil {
		return core.ActionResult{}, err
	}
	if !ok {
		return core.ActionResult{}, NewError(u.name, KindNotFound, "no such response")
	}
	return core.ActionResult{Responses: []string{text}}, nil
}

// Apology renders the generic apology sent after failures.
func Apology(d *domain.Domain, tracker *core.Tracker) string {
	text, err := render(d, ResponseApology, DefaultApologyText, tracker)
	if err != nil {
		return DefaultApologyText
	}
	return text
}
