// Package flow runs the dialogue loop of a single turn.
//
// A Processor folds the inbound utterance into a working copy of the
// conversation tracker, then alternates between the policy ensemble and the
// action registry until the ensemble decides to listen. The input tracker
// is never modified: the processor returns the new events and the caller
// (the engine) persists them or discards the whole turn.
package flow
