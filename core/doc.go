// Package core defines the domain contracts shared by every other package:
// the event model and its fold (Tracker), the parse result produced by NLU
// resolvers, the action gateway contract, the tracker store and event broker
// interfaces and the error taxonomy.
//
// Conversation state is never mutated directly. Every change is expressed as
// an Event appended to the conversation's log, and the current Slot Set and
// Active Form are always recomputed by folding that log from empty state.
package core
