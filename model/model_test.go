package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockModel_Generate(t *testing.T) {
	m := NewMockModel("mock", "test")
	m.AddResponse("hello", `{"intent":"greet"}`)

	resp, err := m.Generate(context.Background(), Request{Messages: []Message{{Role: "user", Text: "hello"}}})
	require.NoError(t, err)
	assert.Equal(t, `{"intent":"greet"}`, resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)

	resp, err = m.Generate(context.Background(), Request{Messages: []Message{{Role: "user", Text: "other"}}})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: other", resp.Text)
	assert.Len(t, m.Requests(), 2)
}

func TestMockModel_Errors(t *testing.T) {
	m := NewMockModel("mock", "test")

	_, err := m.Generate(context.Background(), Request{})
	assert.Error(t, err)

	m.SetError(errors.New("rate limited"))
	_, err = m.Generate(context.Background(), Request{Messages: []Message{{Role: "user", Text: "x"}}})
	assert.EqualError(t, err, "rate limited")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.Generate(ctx, Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequest_LastUserText(t *testing.T) {
	r := Request{Messages: []Message{{Role: "user", Text: "a"}, {Role: "assistant", Text: "b"}}}
	assert.Equal(t, "a", r.LastUserText())
	assert.Empty(t, Request{}.LastUserText())
}
