package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/dialogmesh/core"
)

// ScriptedResolver is a deterministic core.Resolver returning preset parse
// results keyed by utterance text. Unknown text resolves to the fallback
// intent. It is safe for concurrent use.
type ScriptedResolver struct {
	mu      sync.Mutex
	results map[string]core.ParseResult
	errs    map[string]error
	delay   time.Duration
	calls   []string
}

var _ core.Resolver = (*ScriptedResolver)(nil)

// NewScriptedResolver creates an empty script.
func NewScriptedResolver() *ScriptedResolver {
	return &ScriptedResolver{results: map[string]core.ParseResult{}, errs: map[string]error{}}
}

// On scripts text to resolve to intent with the given confidence plus
// optional entities given as name/value pairs.
func (r *ScriptedResolver) On(text, intent string, confidence float64, entities ...string) *ScriptedResolver {
	b := NewEventBuilder().Text(text).Intent(intent, confidence)
	for i := 0; i+1 < len(entities); i += 2 {
		b.Entity(entities[i], entities[i+1])
	}
	r.mu.Lock()
	r.results[text] = b.Parse()
	r.mu.Unlock()
	return r
}

// Fail scripts text to return err.
func (r *ScriptedResolver) Fail(text string, err error) *ScriptedResolver {
	r.mu.Lock()
	r.errs[text] = err
	r.mu.Unlock()
	return r
}

// Delay makes every call sleep for d or until ctx ends.
func (r *ScriptedResolver) Delay(d time.Duration) *ScriptedResolver {
	r.mu.Lock()
	r.delay = d
	r.mu.Unlock()
	return r
}

// Calls returns the texts resolved so far.
func (r *ScriptedResolver) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Resolve implements core.Resolver.
func (r *ScriptedResolver) Resolve(ctx context.Context, text string) (core.ParseResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, text)
	delay := r.delay
	res, ok := r.results[text]
	err := r.errs[text]
	r.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return core.ParseResult{}, ctx.Err()
		}
	}

	if err != nil {
		return core.ParseResult{}, err
	}
	if !ok {
		return core.ParseResult{Text: text, Intent: core.Intent{Name: core.IntentFallback}}, nil
	}
	return res.Clone(), nil
}
