package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/engine"
)

type stubEngine struct {
	err     error
	tracker *core.Tracker
	session *core.Tracker
	resumed []string
}

func (s *stubEngine) HandleMessage(_ context.Context, id, text string) (engine.Reply, error) {
	if s.err != nil {
		return engine.Reply{}, s.err
	}
	return engine.Reply{ConversationID: id, Responses: []string{"you said " + text}}, nil
}

func (s *stubEngine) Resume(_ context.Context, id string) error {
	s.resumed = append(s.resumed, id)
	return s.err
}

func (s *stubEngine) Tracker(context.Context, string) (*core.Tracker, error) {
	return s.tracker, s.err
}

func (s *stubEngine) SessionTracker(context.Context, string) (*core.Tracker, error) {
	return s.session, s.err
}

func (s *stubEngine) Exists(context.Context, string) (bool, error) {
	return s.tracker != nil, s.err
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func TestMessages(t *testing.T) {
	router := NewRouter(&Handler{Engine: &stubEngine{}})

	res := do(t, router, http.MethodPost, "/conversations/c1/messages", `{"text":"hi"}`)

	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "application/json", res.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"conversation_id":"c1","responses":["you said hi"]}`, res.Body.String())
}

func TestMessages_BadRequest(t *testing.T) {
	router := NewRouter(&Handler{Engine: &stubEngine{}})

	for _, body := range []string{``, `{`, `{"text":"  "}`} {
		res := do(t, router, http.MethodPost, "/conversations/c1/messages", body)
		assert.Equal(t, http.StatusBadRequest, res.Code, body)
	}

	res := do(t, router, http.MethodGet, "/conversations/c1/messages", "")
	assert.Equal(t, http.StatusMethodNotAllowed, res.Code)
}

func TestMessages_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: 3 turns queued", core.ErrConversationBusy), http.StatusTooManyRequests, "conversation_busy"},
		{fmt.Errorf("%w: after 1s", core.ErrTurnTimeout), http.StatusGatewayTimeout, "turn_timeout"},
		{fmt.Errorf("%w: append: %w", core.ErrPersistenceFailure, core.ErrStoreUnavailable), http.StatusInternalServerError, "persistence_failure"},
		{context.Canceled, http.StatusServiceUnavailable, "request_cancelled"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			router := NewRouter(&Handler{Engine: &stubEngine{err: tt.err}})

			res := do(t, router, http.MethodPost, "/conversations/c1/messages", `{"text":"hi"}`)

			assert.Equal(t, tt.status, res.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body["error"])
		})
	}
}

func TestMessages_BusySetsRetryAfter(t *testing.T) {
	router := NewRouter(&Handler{Engine: &stubEngine{err: core.ErrConversationBusy}})

	res := do(t, router, http.MethodPost, "/conversations/c1/messages", `{"text":"hi"}`)

	assert.Equal(t, "1", res.Header().Get("Retry-After"))
}

func TestTracker(t *testing.T) {
	tr := core.FromEvents("c1", []core.Event{
		core.NewSlotSet("city", "Rome"),
		core.NewFormStarted("booking_form"),
		core.NewActionExecuted("booking_form", "form", 1),
	})
	router := NewRouter(&Handler{Engine: &stubEngine{tracker: tr}})

	res := do(t, router, http.MethodGet, "/conversations/c1/tracker", "")

	require.Equal(t, http.StatusOK, res.Code)
	var body trackerResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Equal(t, "c1", body.ConversationID)
	assert.Equal(t, map[string]any{"city": "Rome"}, body.Slots)
	assert.Equal(t, "booking_form", body.ActiveForm)
	assert.Equal(t, "booking_form", body.LatestAction)
	assert.Len(t, body.Events, 3)
}

func TestTracker_Session(t *testing.T) {
	eng := &stubEngine{
		tracker: core.FromEvents("c1", []core.Event{
			core.NewSessionStarted(), core.NewSlotSet("city", "Rome"),
			core.NewSessionStarted(), core.NewSlotSet("city", "Oslo"),
		}),
		session: core.FromEvents("c1", []core.Event{core.NewSessionStarted(), core.NewSlotSet("city", "Oslo")}),
	}
	router := NewRouter(&Handler{Engine: eng})

	res := do(t, router, http.MethodGet, "/conversations/c1/tracker?session=true", "")

	require.Equal(t, http.StatusOK, res.Code)
	var body trackerResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Len(t, body.Events, 2)
	assert.Equal(t, map[string]any{"city": "Oslo"}, body.Slots)

	res = do(t, router, http.MethodGet, "/conversations/c1/tracker", "")
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.Len(t, body.Events, 4)
}

func TestTracker_UnknownConversation(t *testing.T) {
	router := NewRouter(&Handler{Engine: &stubEngine{}})

	res := do(t, router, http.MethodGet, "/conversations/nope/tracker", "")

	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.JSONEq(t, `{"error":"conversation_not_found"}`, res.Body.String())
}

func TestResume(t *testing.T) {
	eng := &stubEngine{}
	router := NewRouter(&Handler{Engine: eng})

	res := do(t, router, http.MethodPost, "/conversations/c7/resume", "")

	assert.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, []string{"c7"}, eng.resumed)
}

func TestHealth(t *testing.T) {
	res := do(t, NewRouter(&Handler{Engine: &stubEngine{}}), http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, res.Code)
	assert.JSONEq(t, `{"status":"ok"}`, res.Body.String())
}
