package nlu

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/internal/util"
	"github.com/hupe1980/dialogmesh/model"
)

// DefaultInstructions is the system prompt template used by ModelResolver.
const DefaultInstructions = `You classify user messages for a task-oriented assistant.
Known intents: {{join ", " .intents}}.
Reply with a single JSON object and nothing else:
{"intent": "<one of the known intents>", "confidence": <number between 0 and 1>, "entities": [{"entity": "<name>", "value": "<text>"}]}
If no intent fits, use the intent "{{.fallback}}" with confidence 0.`

// ModelOptions configures a ModelResolver.
type ModelOptions struct {
	Instructions string
}

// ModelResolver classifies utterances by prompting a language model with the
// list of known intents and parsing its JSON reply.
type ModelResolver struct {
	model        model.Model
	intents      []string
	instructions string
}

var _ core.Resolver = (*ModelResolver)(nil)

// NewModelResolver renders the instructions for the given intents.
func NewModelResolver(m model.Model, intents []string, optFns ...func(o *ModelOptions)) (*ModelResolver, error) {
	opts := ModelOptions{Instructions: DefaultInstructions}
	for _, fn := range optFns {
		fn(&opts)
	}

	list := make([]any, len(intents))
	for i, intent := range intents {
		list[i] = intent
	}

	instructions, err := util.RenderTemplate(opts.Instructions, map[string]any{
		"intents":  list,
		"fallback": core.IntentFallback,
	})
	if err != nil {
		return nil, fmt.Errorf("render instructions: %w", err)
	}

	return &ModelResolver{model: m, intents: slices.Clone(intents), instructions: instructions}, nil
}

// Resolve implements core.Resolver.
func (r *ModelResolver) Resolve(ctx context.Context, text string) (core.ParseResult, error) {
	resp, err := r.model.Generate(ctx, model.Request{
		Instructions: r.instructions,
		Messages:     []model.Message{{Role: "user", Text: text}},
	})
	if err != nil {
		return core.ParseResult{}, err
	}

	return r.parse(text, resp.Text)
}

func (r *ModelResolver) parse(text, reply string) (core.ParseResult, error) {
	raw := extractJSON(reply)
	if !gjson.Valid(raw) {
		return core.ParseResult{}, fmt.Errorf("model reply is not valid JSON: %q", reply)
	}

	res := gjson.Parse(raw)
	result := core.ParseResult{Text: text}

	name := res.Get("intent").String()
	if slices.Contains(r.intents, name) {
		result.Intent = core.Intent{Name: name, Confidence: clamp(res.Get("confidence").Float())}
	}

	res.Get("entities").ForEach(func(_, e gjson.Result) bool {
		entity := e.Get("entity").String()
		value := e.Get("value").String()
		if entity == "" || value == "" {
			return true
		}
		ent := core.Entity{Name: entity, Value: value}
		if i := strings.Index(text, value); i >= 0 {
			ent.Start, ent.End = i, i+len(value)
		}
		result.Entities = append(result.Entities, ent)
		return true
	})

	return result, nil
}

// extractJSON strips code fences or chatter around the first JSON object.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

func clamp(f float64) float64 {
	return min(max(f, 0), 1)
}
