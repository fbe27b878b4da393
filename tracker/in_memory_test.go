package tracker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dialogmesh/core"
)

func TestInMemoryStore_LoadUnknownIsEmpty(t *testing.T) {
	s := NewInMemoryStore()
	events, err := s.Load(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestInMemoryStore_AppendLoadKeys(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	require.NoError(t, s.Append(ctx, "b", []core.Event{core.NewSessionStarted()}))
	require.NoError(t, s.Append(ctx, "a", []core.Event{core.NewSlotSet("x", "1"), core.NewSlotSet("y", "2")}))

	events, err := s.Load(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, events, 2)

	events[0].Name = "mutated"
	again, _ := s.Load(ctx, "a")
	assert.Equal(t, "x", again[0].Name)

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestInMemoryStore_AppendIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	batch := []core.Event{core.NewBotUttered("hi"), core.NewBotUttered("there")}

	require.NoError(t, s.Append(ctx, "c", batch))
	require.NoError(t, s.Append(ctx, "c", batch))

	events, _ := s.Load(ctx, "c")
	assert.Len(t, events, 2)
}
