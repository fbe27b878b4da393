// Package policy decides which action a dialogue turn runs next.
//
// Each Policy inspects the tracker and proposes zero or more Predictions.
// The Ensemble combines them: the highest priority wins; on equal priority
// the active form's action is preferred, then the higher confidence, then
// the more specific rule. When nothing is proposed right after a user
// message the fallback action runs, otherwise the turn listens.
//
// Priorities, highest first:
//
//	PriorityCancel   cancel intent while a form is active
//	PriorityFallback nlu_fallback intent
//	PriorityDefault  rules and forms
package policy
