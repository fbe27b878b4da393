// Package server exposes the engine over HTTP.
//
//	POST /conversations/{id}/messages  {"text": "..."}
//	GET  /conversations/{id}/tracker
//	POST /conversations/{id}/resume
//	GET  /health
//
// Turn errors map to status codes: busy conversations answer 429, turn
// timeouts 504 and persistence failures 500. All three are retriable.
package server
