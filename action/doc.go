// Package action implements the actions a dialogue turn can execute and the
// gateway to externally hosted custom actions.
//
// Every action receives a read-only tracker and returns the events to append
// plus optional responses for the user. Built-in actions (listen, fallback,
// handoff, form handling, response templates) run in process. Custom actions
// either run in process (Function) or are routed through a
// core.ActionGateway such as WebhookGateway.
//
// Failures are reported as *Error with a Kind the dialogue loop turns into
// ActionFailed or ActionRejected events. Gateways never retry.
package action
