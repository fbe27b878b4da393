package tracker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dialogmesh/core"
)

type recordingBroker struct {
	published map[string][]core.Event
	err       error
}

func (b *recordingBroker) Publish(_ context.Context, id string, events []core.Event) error {
	if b.err != nil {
		return b.err
	}
	if b.published == nil {
		b.published = map[string][]core.Event{}
	}
	b.published[id] = append(b.published[id], events...)
	return nil
}

func TestPublishingStore_PublishesAfterAppend(t *testing.T) {
	b := &recordingBroker{}
	s := NewPublishingStore(NewInMemoryStore(), b, nil)

	require.NoError(t, s.Append(context.Background(), "c1", []core.Event{core.NewBotUttered("hi")}))
	assert.Len(t, b.published["c1"], 1)

	events, err := s.Load(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPublishingStore_PublishFailureDoesNotFailAppend(t *testing.T) {
	b := &recordingBroker{err: errors.New("broker down")}
	s := NewPublishingStore(NewInMemoryStore(), b, nil)

	require.NoError(t, s.Append(context.Background(), "c1", []core.Event{core.NewBotUttered("hi")}))
}

func TestPublishingStore_SkipsPublishOnAppendFailure(t *testing.T) {
	m := &mockStore{}
	m.On("Append", context.Background(), "c1", []core.Event(nil)).Return(errDown)
	b := &recordingBroker{}

	err := NewPublishingStore(m, b, nil).Append(context.Background(), "c1", nil)
	assert.ErrorIs(t, err, core.ErrStoreUnavailable)
	assert.Empty(t, b.published)
}
