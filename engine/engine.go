package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/dialogmesh/action"
	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/flow"
	"github.com/hupe1980/dialogmesh/logging"
	"github.com/hupe1980/dialogmesh/tracker"
)

// Config defines tuning parameters for the Engine's scheduling behavior.
//
// Example:
//
//	cfg := Config{
//	    MaxConcurrentTurns: 32,
//	    QueueDepth:         4,
//	    QueueTimeout:       10 * time.Second,
//	    TurnTimeout:        20 * time.Second,
//	}
type Config struct {
	// MaxConcurrentTurns limits the number of turns running at the same time
	// across all conversations. Set to 0 for unlimited.
	MaxConcurrentTurns int64

	// QueueDepth is the number of turns that may wait for a busy
	// conversation. Further requests fail with core.ErrConversationBusy.
	// Zero rejects every request for a busy conversation.
	QueueDepth int

	// QueueTimeout bounds the wait of a queued turn. Zero waits until the
	// caller's context ends.
	QueueTimeout time.Duration

	// TurnTimeout bounds a turn once it holds the conversation, including
	// store I/O, resolver calls and action round trips.
	TurnTimeout time.Duration
}

// DefaultConfig provides production-ready default configuration values.
var DefaultConfig = Config{
	MaxConcurrentTurns: 64,
	QueueDepth:         8,
	QueueTimeout:       30 * time.Second,
	TurnTimeout:        30 * time.Second,
}

// Processor computes the new events of a turn. *flow.Processor implements
// it.
type Processor interface {
	HandleMessage(ctx context.Context, tracker *core.Tracker, text string) (flow.Result, error)
}

// Options configures an Engine.
type Options struct {
	// Config contains operational parameters for the engine behavior.
	// Defaults to DefaultConfig if not specified.
	Config Config

	// Store persists conversations. Defaults to an in-memory store.
	Store core.TrackerStore

	// Callbacks holds lifecycle hooks. Defaults to an empty manager.
	Callbacks *CallbackManager

	// ApologyText is returned when a turn is aborted without an
	// infrastructure failure (loop guard, crashed action).
	ApologyText string

	// Logger provides structured logging for debugging and monitoring.
	// Defaults to NoOp logger if nil to ensure no logging dependencies.
	Logger logging.Logger
}

// Reply is the outcome of a turn.
type Reply struct {
	ConversationID string       `json:"conversation_id"`
	Responses      []string     `json:"responses"`
	Events         []core.Event `json:"-"`
	// Aborted reports that the turn was dropped without persisting anything
	// and Responses holds the generic apology.
	Aborted bool `json:"-"`
}

// Engine is the turn scheduler. It guarantees that at most one turn per
// conversation runs at a time, that the events of a turn are persisted
// before the next turn of the same conversation loads its tracker, and that
// a failed turn leaves the store untouched.
//
// Per conversation the scheduler moves Idle → Locked → Idle on success and
// Locked → Failed → Idle on failure. Turns of different conversations run
// in parallel, bounded by Config.MaxConcurrentTurns.
type Engine struct {
	processor Processor
	store     core.TrackerStore
	callbacks *CallbackManager
	logger    logging.Logger
	apology   string

	config Config

	locks *turnLocks
	sem   *semaphore.Weighted
}

// New creates an engine around processor.
//
// Examples:
//
//	// In-memory store, default limits
//	e := New(proc)
//
//	// Production setup
//	e := New(proc,
//	    func(o *Options) { o.Store = sqlStore },
//	    func(o *Options) { o.Config.TurnTimeout = 10 * time.Second },
//	)
func New(processor Processor, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:      DefaultConfig,
		ApologyText: action.DefaultApologyText,
		Logger:      logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Store == nil {
		opts.Store = tracker.NewInMemoryStore()
	}

	if opts.Callbacks == nil {
		opts.Callbacks = NewCallbackManager()
	}

	e := &Engine{
		processor: processor,
		store:     opts.Store,
		callbacks: opts.Callbacks,
		logger:    logging.OrNoOp(opts.Logger),
		apology:   opts.ApologyText,
		config:    opts.Config,
		locks:     newTurnLocks(opts.Config.QueueDepth, opts.Config.QueueTimeout),
	}

	if opts.Config.MaxConcurrentTurns > 0 {
		e.sem = semaphore.NewWeighted(opts.Config.MaxConcurrentTurns)
	}

	return e
}

// Callbacks returns the callback manager for registering hooks.
func (e *Engine) Callbacks() *CallbackManager { return e.callbacks }

// HandleMessage runs one turn for text in conversation id.
//
// Errors:
//   - ctx.Err() when ctx ends before the turn holds the conversation
//   - core.ErrConversationBusy when the queue is full or the wait timed out
//   - core.ErrTurnTimeout when the turn exceeded Config.TurnTimeout
//   - core.ErrPersistenceFailure when the store failed
//
// A turn aborted by the loop guard or a crashed action is not an error for
// the caller: the Reply carries the generic apology and Aborted is set.
// Cancelling ctx after the turn started has no effect; the turn runs to
// completion or timeout.
func (e *Engine) HandleMessage(ctx context.Context, id, text string) (Reply, error) {
	var (
		reply   Reply
		actions int
	)

	start := time.Now()
	err := e.withTurn(ctx, id, func(tctx context.Context) error {
		if err := e.callbacks.ExecuteCallbacks(tctx, CallbackBeforeTurn, &CallbackContext{ConversationID: id, Text: text}); err != nil {
			return err
		}

		tr, err := e.load(tctx, id)
		if err != nil {
			return err
		}

		res, err := e.processor.HandleMessage(tctx, tr, text)
		if err != nil {
			return err
		}
		actions = len(res.Actions)

		cbCtx := &CallbackContext{ConversationID: id, Text: text, Events: res.Events, Responses: res.Responses}
		if err := e.callbacks.ExecuteCallbacks(tctx, CallbackBeforePersist, cbCtx); err != nil {
			return err
		}

		if err := e.append(tctx, id, res.Events); err != nil {
			return err
		}

		if err := e.callbacks.ExecuteCallbacks(tctx, CallbackAfterTurn, cbCtx); err != nil {
			e.logger.Warn("after_turn callback failed", "conversation_id", id, "error", err)
		}

		reply = Reply{ConversationID: id, Responses: res.Responses, Events: res.Events}
		if reply.Responses == nil {
			reply.Responses = []string{}
		}

		return nil
	})

	if dl, ok := e.logger.(*logging.DialogLogger); ok {
		dl.WithComponent("engine").WithConversation(id).LogTurn(actions, len(reply.Events), time.Since(start), err)
	}

	if errors.Is(err, core.ErrLoopGuardTripped) || errors.Is(err, core.ErrTurnAborted) {
		return Reply{ConversationID: id, Responses: []string{e.apology}, Aborted: true}, nil
	}

	if err != nil {
		return Reply{}, err
	}

	return reply, nil
}

// Resume lifts a pause (e.g. after a human handoff) under the turn lock. It
// is a no-op for conversations that are not paused.
func (e *Engine) Resume(ctx context.Context, id string) error {
	return e.withTurn(ctx, id, func(tctx context.Context) error {
		tr, err := e.load(tctx, id)
		if err != nil {
			return err
		}
		if !tr.IsPaused() {
			return nil
		}
		return e.append(tctx, id, []core.Event{core.NewConversationResumed()})
	})
}

// Tracker returns the folded conversation as currently persisted.
func (e *Engine) Tracker(ctx context.Context, id string) (*core.Tracker, error) {
	return e.load(ctx, id)
}

// SessionTracker returns the persisted events of the conversation's latest
// session folded into a tracker.
func (e *Engine) SessionTracker(ctx context.Context, id string) (*core.Tracker, error) {
	events, err := tracker.LoadSession(ctx, e.store, id)
	if err != nil {
		return nil, persistenceError("load session", err)
	}
	return core.FromEvents(id, events), nil
}

// Exists reports whether conversation id has any persisted events.
func (e *Engine) Exists(ctx context.Context, id string) (bool, error) {
	found, err := tracker.Exists(ctx, e.store, id)
	if err != nil {
		return false, persistenceError("exists", err)
	}
	return found, nil
}

// State returns the scheduler state of conversation id.
func (e *Engine) State(id string) TurnState { return e.locks.state(id) }

// Queued returns the number of turns waiting for conversation id.
func (e *Engine) Queued(id string) int { return e.locks.queued(id) }

// withTurn runs fn while holding the conversation and a worker slot.
func (e *Engine) withTurn(ctx context.Context, id string, fn func(tctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := e.locks.acquire(ctx, id); err != nil {
		e.logger.Debug("turn not started", "conversation_id", id, "error", err)
		return err
	}
	defer e.locks.release(id)

	if e.sem != nil {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		defer e.sem.Release(1)
	}

	tctx := context.WithoutCancel(ctx)
	if e.config.TurnTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(tctx, e.config.TurnTimeout)
		defer cancel()
	}

	err := fn(tctx)

	if err != nil && tctx.Err() != nil && errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: after %s: %w", core.ErrTurnTimeout, e.config.TurnTimeout, err)
	}

	if err != nil {
		e.fail(id, err)
	}

	return err
}

// fail moves the conversation to Failed and re-reads the store so on_error
// callbacks see the persisted log rather than the discarded turn. The
// conversation is released afterwards even when the re-read fails; in that
// case the persisted state is unconfirmed and the callbacks get both errors.
func (e *Engine) fail(id string, cause error) {
	e.locks.setState(id, StateFailed)

	logger := logging.ForConversation(e.logger, id)
	logger.Error("turn failed", "error", cause)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cbCtx := &CallbackContext{ConversationID: id, Err: cause}
	events, err := e.store.Load(ctx, id)
	if err != nil {
		logger.Warn("store re-read after failure failed, persisted state unconfirmed", "error", err)
		cbCtx.Err = errors.Join(cause, fmt.Errorf("re-read: %w", err))
	} else {
		logger.Debug("store re-read after failure", "events", len(events))
		cbCtx.Events = events
	}

	_ = e.callbacks.ExecuteCallbacks(context.Background(), CallbackOnError, cbCtx)
}

func (e *Engine) load(ctx context.Context, id string) (*core.Tracker, error) {
	events, err := e.store.Load(ctx, id)
	if err != nil {
		return nil, persistenceError("load", err)
	}
	return core.FromEvents(id, events), nil
}

func (e *Engine) append(ctx context.Context, id string, events []core.Event) error {
	if len(events) == 0 {
		return nil
	}
	if err := e.store.Append(ctx, id, events); err != nil {
		return persistenceError("append", err)
	}
	return nil
}

func persistenceError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, core.ErrPersistenceFailure) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", core.ErrPersistenceFailure, op, err)
}
