package policy

import (
	"slices"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/domain"
)

// Policy priorities.
const (
	PriorityDefault  = 1
	PriorityFallback = 2
	PriorityCancel   = 3
)

// Prediction is a candidate next action.
type Prediction struct {
	Action      string  `json:"action"`
	Confidence  float64 `json:"confidence"`
	Policy      string  `json:"policy"`
	Priority    int     `json:"priority"`
	Specificity int     `json:"specificity,omitempty"`
}

// Policy proposes next actions for a tracker.
type Policy interface {
	Name() string
	Predict(tracker *core.Tracker) []Prediction
}

// userTurnActions returns the actions run since the latest user message,
// ignoring a leading form deactivation so that normal dispatch resumes
// after a cancel.
func userTurnActions(tracker *core.Tracker) []string {
	actions := tracker.ActionsSinceLatestUser()
	if len(actions) > 0 && actions[0] == core.ActionDeactivateForm {
		return actions[1:]
	}
	return actions
}

// RulePolicy follows domain rules. A matching rule proposes its next
// unexecuted action for as long as the actions run so far this turn are a
// prefix of the rule's action list. Rules conditioned on a rejected action
// count only the actions run after that rejection.
type RulePolicy struct {
	domain *domain.Domain
}

var _ Policy = (*RulePolicy)(nil)

// NewRulePolicy creates a rule policy for d.
func NewRulePolicy(d *domain.Domain) *RulePolicy { return &RulePolicy{domain: d} }

// Name implements Policy.
func (p *RulePolicy) Name() string { return "rule" }

// Predict implements Policy.
func (p *RulePolicy) Predict(tracker *core.Tracker) []Prediction {
	msg, ok := tracker.LatestMessage()
	if !ok {
		return nil
	}

	turn := userTurnActions(tracker)
	slots := tracker.Slots()

	var out []Prediction
	for _, r := range p.domain.Rules {
		done := turn
		if r.Rejected != "" {
			var rejected bool
			if done, rejected = tracker.ActionsSinceRejection(r.Rejected); !rejected {
				continue
			}
		}
		if len(done) >= len(r.Actions) || !slices.Equal(done, r.Actions[:len(done)]) {
			continue
		}
		if !r.Match(msg, slots) {
			continue
		}
		out = append(out, Prediction{
			Action:      r.Actions[len(done)],
			Confidence:  1,
			Policy:      p.Name(),
			Priority:    PriorityDefault,
			Specificity: r.Specificity(),
		})
	}

	return out
}

// FormPolicy keeps an active form running: after each user message the
// form action runs once to validate and ask for the next slot.
type FormPolicy struct{}

var _ Policy = (*FormPolicy)(nil)

// NewFormPolicy creates a form policy.
func NewFormPolicy() *FormPolicy { return &FormPolicy{} }

// Name implements Policy.
func (p *FormPolicy) Name() string { return "form" }

// Predict implements Policy.
func (p *FormPolicy) Predict(tracker *core.Tracker) []Prediction {
	form := tracker.ActiveForm()
	if form == "" {
		return nil
	}
	if _, ok := tracker.LatestMessage(); !ok {
		return nil
	}
	if slices.Contains(tracker.ActionsSinceLatestUser(), form) {
		return nil
	}
	return []Prediction{{Action: form, Confidence: 1, Policy: p.Name(), Priority: PriorityDefault}}
}

// FallbackPolicy answers the nlu_fallback intent with the fallback action,
// or with the handoff action when the previous user turn already fell back.
type FallbackPolicy struct {
	fallbackAction string
	handoffAction  string
}

var _ Policy = (*FallbackPolicy)(nil)

// NewFallbackPolicy creates a fallback policy.
func NewFallbackPolicy(fallbackAction, handoffAction string) *FallbackPolicy {
	return &FallbackPolicy{fallbackAction: fallbackAction, handoffAction: handoffAction}
}

// Name implements Policy.
func (p *FallbackPolicy) Name() string { return "fallback" }

// Predict implements Policy.
func (p *FallbackPolicy) Predict(tracker *core.Tracker) []Prediction {
	if tracker.LatestIntent() != core.IntentFallback || len(tracker.ActionsSinceLatestUser()) > 0 {
		return nil
	}

	action := p.fallbackAction
	if p.handoffAction != "" && slices.Contains(tracker.PreviousTurnActions(), p.fallbackAction) {
		action = p.handoffAction
	}

	return []Prediction{{Action: action, Confidence: 1, Policy: p.Name(), Priority: PriorityFallback}}
}

// CancelPolicy deactivates the active form when the user cancels.
type CancelPolicy struct{}

var _ Policy = (*CancelPolicy)(nil)

// NewCancelPolicy creates a cancel policy.
func NewCancelPolicy() *CancelPolicy { return &CancelPolicy{} }

// Name implements Policy.
func (p *CancelPolicy) Name() string { return "cancel" }

// Predict implements Policy.
func (p *CancelPolicy) Predict(tracker *core.Tracker) []Prediction {
	if tracker.ActiveForm() == "" || tracker.LatestIntent() != core.IntentCancel {
		return nil
	}
	if len(tracker.ActionsSinceLatestUser()) > 0 {
		return nil
	}
	return []Prediction{{Action: core.ActionDeactivateForm, Confidence: 1, Policy: p.Name(), Priority: PriorityCancel}}
}
