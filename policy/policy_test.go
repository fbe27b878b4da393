package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/domain"
)

func testDomain(t *testing.T) *domain.Domain {
	t.Helper()
	d, err := domain.Parse([]byte(`
intents: [greet, book_table, inform, goodbye]
slots:
  city: {type: text}
  party_size: {type: float}
  vip: {type: bool}
forms:
  booking_form:
    required_slots: [city, party_size]
responses:
  utter_greet: [{text: "Hello!"}]
  utter_greet_vip: [{text: "Welcome back!"}]
  utter_goodbye: [{text: "Bye"}]
  utter_cancelled: [{text: "Cancelled."}]
rules:
  - name: greet
    intent: greet
    actions: [utter_greet]
  - name: greet vip
    intent: greet
    slots: {vip: true}
    actions: [utter_greet_vip]
  - name: goodbye
    intent: goodbye
    actions: [utter_goodbye, action_restart]
  - name: book
    intent: book_table
    actions: [booking_form]
  - name: cancelled
    intent: cancel
    actions: [utter_cancelled]
`))
	require.NoError(t, err)
	return d
}

func user(intent string, conf float64) core.Event {
	return core.NewUserUttered(intent, core.ParseResult{Text: intent, Intent: core.Intent{Name: intent, Confidence: conf}})
}

func executed(name string) core.Event { return core.NewActionExecuted(name, "test", 1) }

func TestEnsemble_RuleProgression(t *testing.T) {
	e := NewEnsemble(testDomain(t))
	tr := core.FromEvents("c1", []core.Event{user("goodbye", 1)})

	p := e.Predict(tr)
	assert.Equal(t, "utter_goodbye", p.Action)
	assert.Equal(t, "rule", p.Policy)

	tr.Update(executed("utter_goodbye"))
	assert.Equal(t, core.ActionRestart, e.Predict(tr).Action)

	tr.Update(executed(core.ActionRestart))
	assert.Equal(t, core.ActionListen, e.Predict(tr).Action)
}

func TestEnsemble_MoreSpecificRuleWins(t *testing.T) {
	e := NewEnsemble(testDomain(t))

	tr := core.FromEvents("c1", []core.Event{core.NewSlotSet("vip", true), user("greet", 1)})
	assert.Equal(t, "utter_greet_vip", e.Predict(tr).Action)

	tr = core.FromEvents("c1", []core.Event{user("greet", 1)})
	assert.Equal(t, "utter_greet", e.Predict(tr).Action)
}

func TestEnsemble_ActiveFormWinsTie(t *testing.T) {
	e := NewEnsemble(testDomain(t))
	tr := core.FromEvents("c1", []core.Event{
		core.NewFormStarted("booking_form"),
		user("greet", 1),
	})

	p := e.Predict(tr)
	assert.Equal(t, "booking_form", p.Action)
	assert.Equal(t, "form", p.Policy)

	tr.Update(executed("booking_form"))
	assert.Equal(t, core.ActionListen, e.Predict(tr).Action)
}

func TestEnsemble_NoCandidateAfterUserMessageFallsBack(t *testing.T) {
	e := NewEnsemble(testDomain(t))
	tr := core.FromEvents("c1", []core.Event{user("inform", 0.9)})

	assert.Equal(t, core.ActionDefaultFallback, e.Predict(tr).Action)

	tr.Update(executed(core.ActionDefaultFallback))
	assert.Equal(t, core.ActionListen, e.Predict(tr).Action)
}

func TestEnsemble_NoUserMessageListens(t *testing.T) {
	e := NewEnsemble(testDomain(t))
	assert.Equal(t, core.ActionListen, e.Predict(core.NewTracker("c1")).Action)
}

func TestFallbackPolicy_HandoffOnSecondFallback(t *testing.T) {
	e := NewEnsemble(testDomain(t))
	tr := core.FromEvents("c1", []core.Event{user(core.IntentFallback, 0.3)})

	p := e.Predict(tr)
	assert.Equal(t, core.ActionDefaultFallback, p.Action)
	assert.Equal(t, "fallback", p.Policy)

	tr.Update(executed(core.ActionDefaultFallback), executed(core.ActionListen), user(core.IntentFallback, 0.3))
	assert.Equal(t, core.ActionHandoff, e.Predict(tr).Action)
}

func TestFallbackPolicy_NotTwiceInARow(t *testing.T) {
	e := NewEnsemble(testDomain(t))
	tr := core.FromEvents("c1", []core.Event{
		user(core.IntentFallback, 0.3),
		executed(core.ActionDefaultFallback),
		executed(core.ActionListen),
		user("greet", 1),
		executed("utter_greet"),
		executed(core.ActionListen),
		user(core.IntentFallback, 0.3),
	})
	assert.Equal(t, core.ActionDefaultFallback, e.Predict(tr).Action)
}

func TestFallbackPolicy_BeatsActiveForm(t *testing.T) {
	e := NewEnsemble(testDomain(t))
	tr := core.FromEvents("c1", []core.Event{core.NewFormStarted("booking_form"), user(core.IntentFallback, 0.1)})
	assert.Equal(t, core.ActionDefaultFallback, e.Predict(tr).Action)
}

func TestCancelPolicy_DeactivatesThenResumesDispatch(t *testing.T) {
	e := NewEnsemble(testDomain(t))
	tr := core.FromEvents("c1", []core.Event{core.NewFormStarted("booking_form"), user(core.IntentCancel, 1)})

	p := e.Predict(tr)
	assert.Equal(t, core.ActionDeactivateForm, p.Action)
	assert.Equal(t, PriorityCancel, p.Priority)

	tr.Update(executed(core.ActionDeactivateForm), core.NewFormEnded("booking_form"))
	assert.Equal(t, "utter_cancelled", e.Predict(tr).Action)

	tr.Update(executed("utter_cancelled"))
	assert.Equal(t, core.ActionListen, e.Predict(tr).Action)
}

func TestEnsemble_CancelWithoutRuleConfirms(t *testing.T) {
	d, err := domain.Parse([]byte(`
intents: [book_table]
slots:
  city: {type: text}
forms:
  booking_form:
    required_slots: [city]
rules:
  - name: book
    intent: book_table
    actions: [booking_form]
`))
	require.NoError(t, err)
	e := NewEnsemble(d)
	tr := core.FromEvents("c1", []core.Event{core.NewFormStarted("booking_form"), user(core.IntentCancel, 1)})
	tr.Update(executed(core.ActionDeactivateForm), core.NewFormEnded("booking_form"))

	assert.Equal(t, core.ActionCancelled, e.Predict(tr).Action)

	tr.Update(executed(core.ActionCancelled))
	assert.Equal(t, core.ActionListen, e.Predict(tr).Action)
}

func TestBetter(t *testing.T) {
	tests := []struct {
		name string
		a, b Prediction
		form string
		want bool
	}{
		{"priority", Prediction{Priority: 2}, Prediction{Priority: 1, Confidence: 1}, "", true},
		{"form", Prediction{Action: "f", Priority: 1, Confidence: 0.5}, Prediction{Action: "x", Priority: 1, Confidence: 1}, "f", true},
		{"confidence", Prediction{Priority: 1, Confidence: 0.9}, Prediction{Priority: 1, Confidence: 0.8, Specificity: 5}, "", true},
		{"specificity", Prediction{Priority: 1, Confidence: 1, Specificity: 3}, Prediction{Priority: 1, Confidence: 1, Specificity: 1}, "", true},
		{"equal keeps first", Prediction{Priority: 1, Confidence: 1}, Prediction{Priority: 1, Confidence: 1}, "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, better(tt.a, tt.b, tt.form), tt.name)
	}
}
