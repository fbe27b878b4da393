// Package nlu contains core.Resolver implementations and the Guard that
// enforces the confidence threshold and resolution timeout.
//
// Resolvers are black boxes from the dialogue engine's point of view: they
// turn text into a core.ParseResult and never touch conversation state.
// Wrap every resolver in a Guard so that low confidence, slow or failing
// classification degrades to the reserved nlu_fallback intent instead of
// blocking or failing the turn.
package nlu
