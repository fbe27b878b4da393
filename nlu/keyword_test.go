package nlu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dialogmesh/core"
)

func newRestaurantResolver(t *testing.T) *KeywordResolver {
	t.Helper()
	kr, err := NewKeywordResolver(map[string][]string{
		"greet":         {`^(hi|hello|hey)\b`},
		"book_table":    {`\bbook\b.*\btable\b`},
		"check_weather": {`\bweather\b(?: in (?P<city>\w+))?`},
		"inform":        {`^(?P<number>\d+)( people)?$`},
	})
	require.NoError(t, err)
	return kr
}

func TestKeywordResolver_Resolve(t *testing.T) {
	kr := newRestaurantResolver(t)

	tests := []struct {
		text   string
		intent string
		entity *core.Entity
	}{
		{"Hello there", "greet", nil},
		{"I want to book a table", "book_table", nil},
		{"what's the weather in Oslo", "check_weather", &core.Entity{Name: "city", Value: "Oslo", Start: 22, End: 26}},
		{"4 people", "inform", &core.Entity{Name: "number", Value: "4", Start: 0, End: 1}},
		{"/greet", "greet", nil},
		{"order pizza", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			p, err := kr.Resolve(context.Background(), tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.intent, p.Intent.Name)
			if tt.intent != "" {
				assert.Equal(t, 1.0, p.Intent.Confidence)
			}
			if tt.entity != nil {
				require.Len(t, p.Entities, 1)
				assert.Equal(t, *tt.entity, p.Entities[0])
			}
		})
	}
}

func TestKeywordResolver_SpansIndexOriginalText(t *testing.T) {
	kr := newRestaurantResolver(t)
	text := "  \tweather in Oslo  "

	p, err := kr.Resolve(context.Background(), text)
	require.NoError(t, err)

	require.Len(t, p.Entities, 1)
	e := p.Entities[0]
	assert.Equal(t, text, p.Text)
	assert.Equal(t, "Oslo", text[e.Start:e.End])
	assert.Equal(t, core.Entity{Name: "city", Value: "Oslo", Start: 14, End: 18}, e)
}

func TestKeywordResolver_LongestMatchWins(t *testing.T) {
	kr := newRestaurantResolver(t)
	p, err := kr.Resolve(context.Background(), "hi, book me a table please")
	require.NoError(t, err)

	assert.Equal(t, "book_table", p.Intent.Name)
	require.Len(t, p.Ranking, 1)
	assert.Equal(t, "greet", p.Ranking[0].Name)
	assert.Less(t, p.Ranking[0].Confidence, 1.0)
}

func TestKeywordResolver_InvalidPattern(t *testing.T) {
	_, err := NewKeywordResolver(map[string][]string{"x": {"("}})
	assert.Error(t, err)
}
