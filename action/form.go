package action

import (
	"context"
	"fmt"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/domain"
)

// RequestedSlot is the slot holding the name of the slot a form asked for.
const RequestedSlot = "requested_slot"

// Form collects the required slots of a domain form. Each run either asks
// for the next missing slot or, once all are filled, ends the form and
// schedules the submit action as a followup.
type Form struct {
	name   string
	form   domain.Form
	domain *domain.Domain
}

var _ Action = (*Form)(nil)

// NewForm creates the action for form name.
func NewForm(name string, form domain.Form, d *domain.Domain) *Form {
	return &Form{name: name, form: form, domain: d}
}

// Name implements Action.
func (f *Form) Name() string { return f.name }

// Run implements Action.
func (f *Form) Run(_ context.Context, tracker *core.Tracker) (core.ActionResult, error) {
	var res core.ActionResult

	if tracker.ActiveForm() != f.name {
		res.Events = append(res.Events, core.NewFormStarted(f.name))
	}

	for _, slot := range f.form.RequiredSlots {
		if v, ok := tracker.Slot(slot); ok && v != nil {
			continue
		}
		text, err := render(f.domain, "utter_ask_"+slot, fmt.Sprintf("Please provide %s.", slot), tracker)
		if err != nil {
			return core.ActionResult{}, err
		}
		res.Events = append(res.Events, core.NewSlotSet(RequestedSlot, slot))
		res.Responses = append(res.Responses, text)
		return res, nil
	}

	res.Events = append(res.Events, core.NewSlotSet(RequestedSlot, nil), core.NewFormEnded(f.name))
	if f.form.SubmitAction != "" {
		res.Events = append(res.Events, core.NewFollowupAction(f.form.SubmitAction))
	}

	return res, nil
}
