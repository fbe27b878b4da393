package policy

import (
	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/domain"
)

// EnsembleOptions configures an Ensemble.
type EnsembleOptions struct {
	FallbackAction string
	HandoffAction  string
	// Policies replaces the default policy set.
	Policies []Policy
}

// Ensemble combines policies into a single decision.
type Ensemble struct {
	policies       []Policy
	fallbackAction string
}

// NewEnsemble creates the default ensemble for d: cancel, fallback, form and
// rule policies.
func NewEnsemble(d *domain.Domain, optFns ...func(o *EnsembleOptions)) *Ensemble {
	opts := EnsembleOptions{
		FallbackAction: core.ActionDefaultFallback,
		HandoffAction:  core.ActionHandoff,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	policies := opts.Policies
	if policies == nil {
		policies = []Policy{
			NewCancelPolicy(),
			NewFallbackPolicy(opts.FallbackAction, opts.HandoffAction),
			NewFormPolicy(),
			NewRulePolicy(d),
		}
	}

	return &Ensemble{policies: policies, fallbackAction: opts.FallbackAction}
}

// Predict returns the next action for tracker. It always returns a
// prediction.
func (e *Ensemble) Predict(tracker *core.Tracker) Prediction {
	var (
		best  Prediction
		found bool
	)

	form := tracker.ActiveForm()
	for _, p := range e.policies {
		for _, c := range p.Predict(tracker) {
			if !found || better(c, best, form) {
				best, found = c, true
			}
		}
	}

	if found {
		return best
	}

	if _, ok := tracker.LatestMessage(); ok {
		actions := tracker.ActionsSinceLatestUser()
		if len(actions) == 0 {
			return Prediction{Action: e.fallbackAction, Confidence: 1, Policy: "ensemble"}
		}
		// A cancel nothing else answered still gets a confirmation.
		if len(actions) == 1 && actions[0] == core.ActionDeactivateForm && tracker.LatestIntent() == core.IntentCancel {
			return Prediction{Action: core.ActionCancelled, Confidence: 1, Policy: "ensemble"}
		}
	}

	return Prediction{Action: core.ActionListen, Confidence: 1, Policy: "ensemble"}
}

// better reports whether a beats b.
func better(a, b Prediction, activeForm string) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if activeForm != "" {
		aForm, bForm := a.Action == activeForm, b.Action == activeForm
		if aForm != bForm {
			return aForm
		}
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.Specificity > b.Specificity
}
