package tracker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dialogmesh/core"
)

func TestFailSafeStore_FallsBackToMemory(t *testing.T) {
	ctx := context.Background()
	m := &mockStore{}
	m.On("Append", mock.Anything, "c1", mock.Anything).Return(errDown)
	m.On("Load", mock.Anything, "c1").Return(nil, errDown)
	m.On("Keys", mock.Anything).Return(nil, errDown)

	var ops []string
	s := NewFailSafeStore(m, func(o *FailSafeOptions) {
		o.OnError = func(op string, _ error) { ops = append(ops, op) }
	})

	require.NoError(t, s.Append(ctx, "c1", []core.Event{core.NewSlotSet("a", "b")}))
	events, err := s.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, events, 1)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, keys)
	assert.Equal(t, []string{"append", "load", "keys"}, ops)
}

func TestFailSafeStore_UsesPrimaryWhenHealthy(t *testing.T) {
	m := &mockStore{}
	m.On("Load", mock.Anything, "c1").Return([]core.Event{core.NewBotUttered("x")}, nil)

	events, err := NewFailSafeStore(m).Load(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
