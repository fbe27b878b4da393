package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dialogmesh/core"
)

func loadRestaurant(t *testing.T) *Domain {
	t.Helper()
	d, err := Load("testdata/restaurant.yml")
	require.NoError(t, err)
	return d
}

func TestLoad(t *testing.T) {
	d := loadRestaurant(t)

	assert.True(t, d.HasIntent("greet"))
	assert.True(t, d.HasIntent(core.IntentFallback))
	assert.False(t, d.HasIntent("order_pizza"))

	assert.True(t, d.HasAction("booking_form"))
	assert.True(t, d.HasAction("utter_greet"))
	assert.True(t, d.HasAction(core.ActionListen))
	assert.True(t, d.IsCustomAction("action_check_weather"))
	assert.False(t, d.HasAction("action_unknown"))

	assert.Equal(t, []string{"city", "party_size"}, d.Forms["booking_form"].RequiredSlots)
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	_, err := Parse([]byte(`
intents: [greet]
slots:
  color: {type: categorical}
  size: {}
forms:
  f: {required_slots: [missing]}
responses:
  greet_text: [{text: "hi"}]
rules:
  - intent: unknown
    actions: [action_nope]
`))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `slot "color": categorical slot needs values`)
	assert.Contains(t, msg, `slot "size": missing type`)
	assert.Contains(t, msg, `form "f": unknown slot "missing"`)
	assert.Contains(t, msg, `response "greet_text": name must start with "utter_"`)
	assert.Contains(t, msg, `unknown intent "unknown"`)
	assert.Contains(t, msg, `unknown action "action_nope"`)
}

func TestRender(t *testing.T) {
	d := loadRestaurant(t)

	text, ok, err := d.Render("utter_booked", map[string]any{"party_size": 4.0, "city": "Rome"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Booked a table for 4 in Rome.", text)

	_, ok, err = d.Render("utter_missing", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCoerce(t *testing.T) {
	d := loadRestaurant(t)

	tests := []struct {
		slot, raw string
		want      any
		err       bool
	}{
		{"city", "Rome", "Rome", false},
		{"party_size", "4", 4.0, false},
		{"party_size", "four", nil, true},
		{"vip", "yes", true, false},
		{"vip", "false", false, false},
		{"vip", "maybe", nil, true},
		{"seating", "Outdoor", "outdoor", false},
		{"seating", "roof", nil, true},
		{"nope", "x", nil, true},
	}
	for _, tt := range tests {
		got, err := d.Coerce(tt.slot, tt.raw)
		if tt.err {
			assert.Error(t, err, tt.slot+"="+tt.raw)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestSlotEvents(t *testing.T) {
	d := loadRestaurant(t)
	events := d.SlotEvents(core.ParseResult{Entities: []core.Entity{
		{Name: "number", Value: "3"},
		{Name: "city", Value: "Oslo"},
		{Name: "number", Value: "many"},
	}})

	require.Len(t, events, 2)
	assert.Equal(t, "party_size", events[0].Name)
	assert.Equal(t, 3.0, events[0].Value)
	assert.Equal(t, "city", events[1].Name)
}

func TestInitialSlots(t *testing.T) {
	d := loadRestaurant(t)
	events := d.InitialSlots()
	require.Len(t, events, 1)
	assert.Equal(t, "vip", events[0].Name)
	assert.Equal(t, false, events[0].Value)
}

func TestRuleMatch(t *testing.T) {
	r := Rule{Intent: "book_table", Entities: []string{"city"}, Slots: map[string]any{"vip": true, "seating": nil}}
	parse := core.ParseResult{Intent: core.Intent{Name: "book_table"}, Entities: []core.Entity{{Name: "city", Value: "Rome"}}}

	assert.True(t, r.Match(parse, map[string]any{"vip": true}))
	assert.False(t, r.Match(parse, map[string]any{"vip": true, "seating": "indoor"}))
	assert.False(t, r.Match(parse, map[string]any{"vip": false}))
	assert.False(t, r.Match(core.ParseResult{Intent: core.Intent{Name: "book_table"}}, map[string]any{"vip": true}))
	assert.Equal(t, 4, r.Specificity())
}

func TestRuleMatch_Rejected(t *testing.T) {
	r := Rule{Rejected: "action_check_weather", Actions: []string{"utter_which_city"}}
	parse := core.ParseResult{Intent: core.Intent{Name: "whatever"}}

	assert.True(t, r.Match(parse, nil), "intent is optional")
	assert.Equal(t, 2, r.Specificity())

	r.Intent = "check_weather"
	assert.False(t, r.Match(parse, nil))
}

func TestValidate_RejectedRules(t *testing.T) {
	d, err := Parse([]byte(`
intents: [check_weather]
responses:
  utter_which_city: [{text: "Which city?"}]
rules:
  - rejected: action_check_weather
    actions: [utter_which_city]
actions: [action_check_weather]
`))
	require.NoError(t, err)
	assert.True(t, d.HandlesRejection("action_check_weather"))
	assert.False(t, d.HandlesRejection("utter_which_city"))

	_, err = Parse([]byte(`
intents: [check_weather]
responses:
  utter_which_city: [{text: "Which city?"}]
rules:
  - rejected: action_nope
    actions: [utter_which_city]
`))
	assert.ErrorContains(t, err, `unknown rejected action "action_nope"`)
}
