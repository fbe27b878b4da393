package dialogmesh

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dialogmesh/action"
	"github.com/hupe1980/dialogmesh/config"
	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/domain"
	"github.com/hupe1980/dialogmesh/internal/testutil"
)

const domainPath = "examples/restaurant/domain.yml"

func newMesh(t *testing.T, optFns ...func(o *Options)) *DialogMesh {
	t.Helper()
	d, err := domain.Load(domainPath)
	require.NoError(t, err)

	submit := action.NewFunction("action_submit_booking", func(_ context.Context, tr *core.Tracker) (core.ActionResult, error) {
		text, _, err := d.Render("utter_booked", tr.Slots())
		return core.ActionResult{Responses: []string{text}}, err
	})

	fns := append([]func(o *Options){func(o *Options) { o.Actions = []action.Action{submit} }}, optFns...)
	m, err := New(d, fns...)
	require.NoError(t, err)
	return m
}

func say(t *testing.T, m *DialogMesh, text string) []string {
	t.Helper()
	reply, err := m.HandleMessage(context.Background(), "c1", text)
	require.NoError(t, err)
	return reply.Responses
}

func TestNew_RequiresDomain(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestBookingConversation(t *testing.T) {
	m := newMesh(t)

	assert.Equal(t, []string{"Hello! How can I help?"}, say(t, m, "hi"))
	assert.Equal(t, []string{"Which city?"}, say(t, m, "I want to book a table"))
	assert.Equal(t, []string{"For how many people?"}, say(t, m, "in Paris"))
	assert.Equal(t, []string{"Booked a table for 4 in Paris."}, say(t, m, "4"))

	tr, err := m.Tracker(context.Background(), "c1")
	require.NoError(t, err)
	assert.Empty(t, tr.ActiveForm())
	assert.Equal(t, "Paris", tr.State().Slots["city"])

	replayed := core.Fold(tr.Events())
	assert.Equal(t, tr.State(), replayed)
}

func TestCancelDuringForm(t *testing.T) {
	m := newMesh(t)
	say(t, m, "book a table")

	assert.Equal(t, []string{"Okay, cancelled."}, say(t, m, "cancel"))

	tr, _ := m.Tracker(context.Background(), "c1")
	assert.Empty(t, tr.ActiveForm())
}

// An action server that never answers in time through the webhook gateway.
func TestActionServerTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	m := newMesh(t, func(o *Options) {
		o.Gateway = action.NewWebhookGateway(srv.URL, func(o *action.WebhookOptions) { o.Timeout = 20 * time.Millisecond })
	})
	say(t, m, "hi")
	before, _ := m.Tracker(context.Background(), "c1")

	assert.Equal(t, []string{"Sorry, something went wrong on our side."}, say(t, m, "weather?"))

	tr, _ := m.Tracker(context.Background(), "c1")
	assert.Equal(t, before.State(), tr.State())
	events := tr.Events()[before.Len():]
	assert.Contains(t, testutil.Types(events), core.EventActionFailed)
}

func TestHandoffAndResume(t *testing.T) {
	m := newMesh(t)
	say(t, m, "hi")

	assert.Equal(t, []string{"Sorry, I didn't get that. Can you rephrase?"}, say(t, m, "qwertz"))
	assert.Equal(t, []string{action.DefaultHandoffText}, say(t, m, "asdfgh"))
	assert.Empty(t, say(t, m, "hello?"))

	require.NoError(t, m.Resume(context.Background(), "c1"))
	assert.Equal(t, []string{"Hello! How can I help?"}, say(t, m, "hello"))
}

func TestLoopGuardApologizes(t *testing.T) {
	loop := action.NewFunction("action_check_weather", func(context.Context, *core.Tracker) (core.ActionResult, error) {
		return core.ActionResult{Events: []core.Event{core.NewFollowupAction("action_check_weather")}}, nil
	})
	m := newMesh(t, func(o *Options) { o.MaxActionsPerTurn = 5 })
	m.RegisterAction(loop)
	say(t, m, "hi")
	before, _ := m.Tracker(context.Background(), "c1")

	reply, err := m.HandleMessage(context.Background(), "c1", "weather?")
	require.NoError(t, err)
	assert.True(t, reply.Aborted)
	assert.Equal(t, []string{"Sorry, something went wrong on our side."}, reply.Responses)

	after, _ := m.Tracker(context.Background(), "c1")
	assert.Equal(t, before.Len(), after.Len())
}

// Concurrent messages for one conversation over HTTP are serialized.
func TestHTTPConcurrentMessages(t *testing.T) {
	m := newMesh(t)
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			body, _ := json.Marshal(map[string]string{"text": "hi"})
			res, err := http.Post(srv.URL+"/conversations/c1/messages", "application/json", bytes.NewReader(body))
			if !assert.NoError(t, err) {
				return
			}
			defer res.Body.Close()
			assert.Contains(t, []int{http.StatusOK, http.StatusTooManyRequests}, res.StatusCode)
		}()
	}
	wg.Wait()

	res, err := http.Get(srv.URL + "/conversations/c1/tracker")
	require.NoError(t, err)
	defer res.Body.Close()
	var body struct {
		Events []core.Event `json:"events"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))

	// session start: action, session_started, initial vip slot, listen
	turns := testutil.Types(body.Events)[4:]
	require.Zero(t, len(turns)%4)
	for i := 0; i < len(turns); i += 4 {
		assert.Equal(t, []core.EventType{
			core.EventUserUttered, core.EventActionExecuted, core.EventBotUttered, core.EventActionExecuted,
		}, turns[i:i+4])
	}
}

func TestBuild(t *testing.T) {
	cfg := config.Default()
	cfg.DomainPath = domainPath
	cfg.Store.Type = "sql"
	cfg.Store.Dialect = "sqlite"
	cfg.Store.DSN = filepath.Join(t.TempDir(), "events.db")
	cfg.Broker.Type = "log"

	m, closeFn, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	m.RegisterAction(action.NewFunction("action_submit_booking", func(context.Context, *core.Tracker) (core.ActionResult, error) {
		return core.ActionResult{Responses: []string{"ok"}}, nil
	}))

	reply, err := m.HandleMessage(context.Background(), "c1", "hi")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello! How can I help?"}, reply.Responses)
	require.NoError(t, closeFn())

	m, closeFn, err = Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	tr, err := m.Tracker(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 8, tr.Len(), "conversation survives a restart")
}

func TestBuild_Errors(t *testing.T) {
	cfg := config.Default()
	cfg.DomainPath = "missing.yml"
	_, _, err := Build(context.Background(), cfg, nil)
	require.Error(t, err)

	cfg.DomainPath = domainPath
	cfg.NLU.Provider = "magic"
	_, _, err = Build(context.Background(), cfg, nil)
	require.ErrorContains(t, err, "unknown nlu provider")
}
