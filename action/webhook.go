package action

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/logging"
)

// WebhookOptions configures a WebhookGateway.
type WebhookOptions struct {
	// Timeout bounds a single round trip.
	Timeout time.Duration
	Client  *http.Client
	Logger  logging.Logger
}

// WebhookGateway invokes custom actions on an action server over HTTP.
//
// Request:  POST {url} {"next_action", "sender_id", "tracker": core.Snapshot}
// Response: 200 {"events": [...], "responses": [{"text": "..."}]}
//
// A 404 or 400 answer carrying an "action_name" field maps to KindNotFound
// or KindRejected. Every other non-2xx answer or transport failure is
// KindUnreachable; an exceeded deadline is KindTimeout.
type WebhookGateway struct {
	url  string
	opts WebhookOptions
}

var _ core.ActionGateway = (*WebhookGateway)(nil)

// NewWebhookGateway creates a gateway posting to url.
func NewWebhookGateway(url string, optFns ...func(o *WebhookOptions)) *WebhookGateway {
	opts := WebhookOptions{
		Timeout: 5 * time.Second,
		Client:  http.DefaultClient,
		Logger:  logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &WebhookGateway{url: url, opts: opts}
}

type webhookRequest struct {
	NextAction string        `json:"next_action"`
	SenderID   string        `json:"sender_id"`
	Tracker    core.Snapshot `json:"tracker"`
}

// Invoke implements core.ActionGateway.
func (g *WebhookGateway) Invoke(ctx context.Context, name string, snapshot core.Snapshot) (core.ActionResult, error) {
	start := time.Now()
	res, err := g.invoke(ctx, name, snapshot)
	g.opts.Logger.Debug("action.webhook.invoked", "action", name, "duration_ms", time.Since(start).Milliseconds(), "error", err != nil)
	return res, err
}

func (g *WebhookGateway) invoke(ctx context.Context, name string, snapshot core.Snapshot) (core.ActionResult, error) {
	body, err := json.Marshal(webhookRequest{NextAction: name, SenderID: snapshot.ConversationID, Tracker: snapshot})
	if err != nil {
		return core.ActionResult{}, fmt.Errorf("encode webhook request: %w", err)
	}

	if g.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return core.ActionResult{}, &Error{Action: name, Kind: KindUnreachable, Message: "invalid action endpoint", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.opts.Client.Do(req)
	if err != nil {
		return core.ActionResult{}, transportError(name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.ActionResult{}, transportError(name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return core.ActionResult{}, statusError(name, resp.StatusCode, raw)
	}

	return decodeResult(name, raw)
}

func transportError(name string, err error) *Error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &Error{Action: name, Kind: KindTimeout, Message: "action server did not answer in time", Err: err}
	}
	return &Error{Action: name, Kind: KindUnreachable, Message: "action server unreachable", Err: err}
}

func statusError(name string, status int, body []byte) *Error {
	hasAction := gjson.ValidBytes(body) && gjson.GetBytes(body, "action_name").Exists()
	msg := gjson.GetBytes(body, "error").String()
	if msg == "" {
		msg = fmt.Sprintf("action server answered %d", status)
	}

	switch {
	case status == http.StatusNotFound && hasAction:
		return NewError(name, KindNotFound, msg)
	case status == http.StatusBadRequest && hasAction:
		return NewError(name, KindRejected, msg)
	default:
		return NewError(name, KindUnreachable, msg)
	}
}

func decodeResult(name string, raw []byte) (core.ActionResult, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return core.ActionResult{}, nil
	}
	if !gjson.ValidBytes(raw) {
		return core.ActionResult{}, NewError(name, KindUnreachable, "malformed action server response")
	}

	var res core.ActionResult
	var decodeErr error
	gjson.GetBytes(raw, "events").ForEach(func(_, v gjson.Result) bool {
		var ev core.Event
		if err := json.Unmarshal([]byte(v.Raw), &ev); err != nil {
			decodeErr = err
			return false
		}
		if ev.Type == "" {
			decodeErr = errors.New("event without type")
			return false
		}
		res.Events = append(res.Events, ev)
		return true
	})
	if decodeErr != nil {
		return core.ActionResult{}, &Error{Action: name, Kind: KindUnreachable, Message: "malformed event in response", Err: decodeErr}
	}

	gjson.GetBytes(raw, "responses").ForEach(func(_, v gjson.Result) bool {
		if text := v.Get("text").String(); text != "" {
			res.Responses = append(res.Responses, text)
		}
		return true
	})

	return res, nil
}
