package nlu

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/hupe1980/dialogmesh/core"
)

type pattern struct {
	intent string
	re     *regexp.Regexp
}

// KeywordResolver classifies utterances with regular expressions per
// intent. Named capture groups become entities. Matching is case
// insensitive. An utterance of the form "/intent" selects the intent
// directly.
type KeywordResolver struct {
	patterns []pattern
	intents  map[string]struct{}
}

var _ core.Resolver = (*KeywordResolver)(nil)

// NewKeywordResolver compiles the patterns. Intents are evaluated in name
// order so results are deterministic.
func NewKeywordResolver(patterns map[string][]string) (*KeywordResolver, error) {
	names := make([]string, 0, len(patterns))
	for intent := range patterns {
		names = append(names, intent)
	}
	sort.Strings(names)

	kr := &KeywordResolver{intents: map[string]struct{}{}}
	for _, intent := range names {
		kr.intents[intent] = struct{}{}
		for _, expr := range patterns[intent] {
			re, err := regexp.Compile("(?i)" + expr)
			if err != nil {
				return nil, fmt.Errorf("intent %q: invalid pattern %q: %w", intent, expr, err)
			}
			kr.patterns = append(kr.patterns, pattern{intent: intent, re: re})
		}
	}

	return kr, nil
}

type match struct {
	intent   string
	length   int
	entities []core.Entity
}

// Resolve implements core.Resolver. Among all matching patterns the one
// covering the longest span wins with confidence 1; the others are listed in
// the ranking with confidence proportional to their span.
func (kr *KeywordResolver) Resolve(_ context.Context, text string) (core.ParseResult, error) {
	trimmed := strings.TrimSpace(text)
	// Spans are reported against text, patterns run against trimmed.
	offset := len(text) - len(strings.TrimLeftFunc(text, unicode.IsSpace))
	result := core.ParseResult{Text: text}

	if name, ok := strings.CutPrefix(trimmed, "/"); ok {
		if _, known := kr.intents[name]; known || name == core.IntentCancel {
			result.Intent = core.Intent{Name: name, Confidence: 1}
			return result, nil
		}
	}

	var matches []match
	seen := map[string]bool{}
	for _, p := range kr.patterns {
		loc := p.re.FindStringSubmatchIndex(trimmed)
		if loc == nil || seen[p.intent] {
			continue
		}
		seen[p.intent] = true
		m := match{intent: p.intent, length: loc[1] - loc[0]}
		for i, group := range p.re.SubexpNames() {
			if group == "" || loc[2*i] < 0 {
				continue
			}
			m.entities = append(m.entities, core.Entity{
				Name:  group,
				Value: trimmed[loc[2*i]:loc[2*i+1]],
				Start: offset + loc[2*i],
				End:   offset + loc[2*i+1],
			})
		}
		matches = append(matches, m)
	}

	if len(matches) == 0 {
		return result, nil
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].length > matches[j].length })

	best := matches[0]
	result.Intent = core.Intent{Name: best.intent, Confidence: 1}
	result.Entities = best.entities
	for _, m := range matches[1:] {
		result.Ranking = append(result.Ranking, core.Intent{
			Name:       m.intent,
			Confidence: float64(m.length) / float64(max(best.length, 1)),
		})
	}

	return result, nil
}
