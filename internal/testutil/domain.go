package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dialogmesh/domain"
)

// FlightDomain is a small travel domain: a flight booking form, a weather
// lookup served by the action server, cancel handling and greetings.
const FlightDomain = `
intents: [greet, book_flight, inform, check_weather, goodbye]
slots:
  destination: {type: text, entity: city}
  seats: {type: float, entity: number}
forms:
  flight_form:
    required_slots: [destination, seats]
    submit_action: action_book_flight
responses:
  utter_greet:
    - text: "Hello!"
  utter_ask_destination:
    - text: "Where do you want to fly to?"
  utter_ask_seats:
    - text: "How many seats?"
  utter_cancelled:
    - text: "Okay, cancelled."
  utter_goodbye:
    - text: "Bye!"
rules:
  - name: greet
    intent: greet
    actions: [utter_greet]
  - name: book flight
    intent: book_flight
    actions: [flight_form]
  - name: cancelled
    intent: cancel
    actions: [utter_cancelled]
  - name: weather
    intent: check_weather
    actions: [action_check_weather]
  - name: goodbye
    intent: goodbye
    actions: [utter_goodbye]
actions: [action_book_flight, action_check_weather]
`

// MustDomain parses raw or fails the test.
func MustDomain(t testing.TB, raw string) *domain.Domain {
	t.Helper()
	d, err := domain.Parse([]byte(raw))
	require.NoError(t, err)
	return d
}
