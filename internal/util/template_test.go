package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		slots map[string]any
		want  string
	}{
		{"plain", "Hello!", nil, "Hello!"},
		{"slot", "Table for {{.party}} in {{.city}}.", map[string]any{"party": 4.0, "city": "Rome"}, "Table for 4 in Rome."},
		{"missing", "Hi {{.name}}", map[string]any{}, "Hi "},
		{"default", `Hi {{default "there" .name}}`, map[string]any{}, "Hi there"},
		{"no html escaping", "{{.q}}", map[string]any{"q": "a & b"}, "a & b"},
		{"upper", "{{upper .city}}", map[string]any{"city": "oslo"}, "OSLO"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RenderTemplate(tt.text, tt.slots)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderTemplate_ParseError(t *testing.T) {
	_, err := RenderTemplate("{{.broken", nil)
	assert.Error(t, err)
}
