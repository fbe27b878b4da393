package core

import "context"

// IntentFallback is the reserved intent returned instead of a low-confidence
// guess, after a resolver timeout or after a resolver error.
const IntentFallback = "nlu_fallback"

// IntentCancel is the intent that interrupts an active form.
const IntentCancel = "cancel"

// Intent is a classified intent with its confidence in [0,1].
type Intent struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Entity is a value extracted from an utterance. Start and End are byte
// offsets into the text; both are zero when the extractor has no span.
type Entity struct {
	Name  string `json:"entity"`
	Value string `json:"value"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// ParseResult is the output of a Resolver.
type ParseResult struct {
	Text     string   `json:"text"`
	Intent   Intent   `json:"intent"`
	Entities []Entity `json:"entities,omitempty"`
	// Ranking keeps the resolver's original guesses when the result has been
	// rewritten (e.g. to IntentFallback) so the decision stays auditable.
	Ranking []Intent `json:"intent_ranking,omitempty"`
}

// Clone returns a deep copy.
func (p ParseResult) Clone() ParseResult {
	c := p
	if p.Entities != nil {
		c.Entities = append([]Entity(nil), p.Entities...)
	}
	if p.Ranking != nil {
		c.Ranking = append([]Intent(nil), p.Ranking...)
	}
	return c
}

// EntityValue returns the first value extracted for the named entity.
func (p ParseResult) EntityValue(name string) (string, bool) {
	for _, e := range p.Entities {
		if e.Name == name {
			return e.Value, true
		}
	}
	return "", false
}

// Resolver classifies an utterance into an intent plus entities. From the
// orchestration core's point of view it is a pure, side-effect-free function.
type Resolver interface {
	Resolve(ctx context.Context, text string) (ParseResult, error)
}

// ResolverFunc adapts a plain function to the Resolver interface.
type ResolverFunc func(ctx context.Context, text string) (ParseResult, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, text string) (ParseResult, error) {
	return f(ctx, text)
}
