package flow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hupe1980/dialogmesh/action"
	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/domain"
	"github.com/hupe1980/dialogmesh/logging"
	"github.com/hupe1980/dialogmesh/policy"
)

// Options configures a Processor.
type Options struct {
	// MaxActions bounds the actions of one turn before the loop guard trips.
	// Listening does not count. Zero disables the guard.
	MaxActions int
	// ActionTimeout bounds a single action execution.
	ActionTimeout time.Duration
	// SessionExpiration starts a new session when the conversation was idle
	// for longer. Zero disables expiration.
	SessionExpiration time.Duration
	Logger            logging.Logger
	// Now is the clock used for session expiration.
	Now func() time.Time
}

// Result is the outcome of a processed message: the new events to persist
// in order and the responses for the user.
type Result struct {
	Events    []core.Event `json:"events"`
	Responses []string     `json:"responses"`
	Actions   []string     `json:"actions"`
}

// Processor runs the dialogue loop for one user message:
//
//	session check → resolve → UserUttered (+ slot auto-fill) →
//	predict → execute → fold → repeat until action_listen
//
// The tracker passed in is never modified; all changes are returned as
// events so the caller decides whether they are persisted.
type Processor struct {
	domain   *domain.Domain
	resolver core.Resolver
	registry *action.Registry
	ensemble *policy.Ensemble
	opts     Options
}

// New creates a processor.
func New(d *domain.Domain, resolver core.Resolver, registry *action.Registry, ensemble *policy.Ensemble, optFns ...func(o *Options)) *Processor {
	opts := Options{
		MaxActions:    10,
		ActionTimeout: 10 * time.Second,
		Logger:        logging.NoOpLogger{},
		Now:           time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Processor{domain: d, resolver: resolver, registry: registry, ensemble: ensemble, opts: opts}
}

// HandleMessage processes text for the conversation held by tracker.
//
// Action failures are absorbed into ActionFailed/ActionRejected events plus
// an apology; a rejection some domain rule reacts to gets no apology. The turn is aborted, with no events returned, when the loop
// guard trips (core.ErrLoopGuardTripped), an action panics or fails
// unexpectedly (core.ErrTurnAborted) or ctx ends.
func (p *Processor) HandleMessage(ctx context.Context, tracker *core.Tracker, text string) (Result, error) {
	work := tracker.Clone()
	start := work.Len()
	logger := logging.ForConversation(p.opts.Logger, tracker.ConversationID)

	var res Result

	if p.sessionNeeded(work) {
		if err := p.startSession(ctx, work, &res); err != nil {
			return Result{}, err
		}
	}

	parse, err := p.resolver.Resolve(ctx, text)
	if err != nil {
		logger.Warn("resolver failed, using fallback intent", "error", err)
		parse = core.ParseResult{Text: text, Intent: core.Intent{Name: core.IntentFallback}}
	}

	work.Update(core.NewUserUttered(text, parse))
	if p.domain != nil {
		work.Update(p.domain.SlotEvents(parse)...)
	}

	if work.IsPaused() {
		logger.Info("conversation paused, message recorded without actions")
		res.Events = work.Events()[start:]
		return res, nil
	}

	limiter := core.NewActionLimiter(p.opts.MaxActions)

	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		next := p.next(work)
		if next.Action == core.ActionListen {
			work.Update(core.NewActionExecuted(core.ActionListen, next.Policy, next.Confidence))
			break
		}

		if err := limiter.Increment(); err != nil {
			logger.Error("loop guard tripped", "actions", res.Actions, "error", err)
			return Result{}, err
		}

		if err := p.execute(ctx, work, next, &res); err != nil {
			return Result{}, err
		}

		if work.IsPaused() {
			work.Update(core.NewActionExecuted(core.ActionListen, next.Policy, 1))
			break
		}
	}

	res.Events = work.Events()[start:]

	return res, nil
}

// next returns the forced followup action, if any, or the ensemble's choice.
func (p *Processor) next(work *core.Tracker) policy.Prediction {
	if name, ok := work.PendingFollowup(); ok {
		return policy.Prediction{Action: name, Confidence: 1, Policy: "followup"}
	}
	return p.ensemble.Predict(work)
}

func (p *Processor) sessionNeeded(work *core.Tracker) bool {
	if work.Len() == 0 {
		return true
	}
	if p.opts.SessionExpiration <= 0 {
		return false
	}
	return p.opts.Now().Sub(work.LastEventTime()) > p.opts.SessionExpiration
}

func (p *Processor) startSession(ctx context.Context, work *core.Tracker, res *Result) error {
	if err := p.execute(ctx, work, policy.Prediction{Action: core.ActionSessionStart, Confidence: 1}, res); err != nil {
		return err
	}
	work.Update(core.NewActionExecuted(core.ActionListen, "", 1))
	return nil
}

// execute runs one action and folds its outcome into work.
func (p *Processor) execute(ctx context.Context, work *core.Tracker, pred policy.Prediction, res *Result) error {
	name := pred.Action
	res.Actions = append(res.Actions, name)

	start := time.Now()
	out, err := p.run(ctx, work, name)
	p.logActionCall(work.ConversationID, name, time.Since(start), err)

	work.Update(core.NewActionExecuted(name, pred.Policy, pred.Confidence))

	if err != nil {
		ae, ok := action.AsError(err)
		if !ok {
			return err
		}
		if ae.Kind == action.KindRejected {
			work.Update(core.NewActionRejected(name, ae.Message))
			if p.domain != nil && p.domain.HandlesRejection(name) {
				return nil
			}
		} else {
			work.Update(core.NewActionFailed(name, string(ae.Kind), ae.Message))
		}
		apology := action.Apology(p.domain, work)
		work.Update(core.NewBotUttered(apology))
		res.Responses = append(res.Responses, apology)
		return nil
	}

	work.Update(out.Events...)
	for _, text := range out.Responses {
		work.Update(core.NewBotUttered(text))
		res.Responses = append(res.Responses, text)
	}

	return nil
}

// run looks up and executes the action with panic safety. Errors other than
// *action.Error are wrapped with core.ErrTurnAborted.
func (p *Processor) run(ctx context.Context, work *core.Tracker, name string) (out core.ActionResult, err error) {
	a, err := p.registry.Lookup(name)
	if err != nil {
		return core.ActionResult{}, err
	}

	actx := ctx
	if p.opts.ActionTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, p.opts.ActionTimeout)
		defer cancel()
	}

	func() { // panic safety
		defer func() {
			if r := recover(); r != nil {
				err = panicError(r)
				p.opts.Logger.Error("action.panic", "action", name, "recover", r)
			}
		}()
		out, err = a.Run(actx, work.Clone())
	}()

	if err == nil {
		return out, nil
	}

	if _, ok := action.AsError(err); ok {
		return core.ActionResult{}, err
	}

	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return core.ActionResult{}, &action.Error{Action: name, Kind: action.KindTimeout, Message: "action timed out", Err: err}
	}

	if ctx.Err() != nil {
		return core.ActionResult{}, ctx.Err()
	}

	return core.ActionResult{}, fmt.Errorf("%w: action %s: %w", core.ErrTurnAborted, name, err)
}

func (p *Processor) logActionCall(conversationID, name string, dur time.Duration, err error) {
	if dl, ok := p.opts.Logger.(*logging.DialogLogger); ok {
		dl.WithComponent("flow").WithConversation(conversationID).LogActionCall(name, dur, err == nil, err)
		return
	}
	p.opts.Logger.Debug("action.executed", "action", name, "duration_ms", dur.Milliseconds(), "error", err != nil)
}

func panicError(r any) error { return &panicErr{val: r, stack: debug.Stack()} }

type panicErr struct {
	val   any
	stack []byte
}

func (p *panicErr) Error() string { return fmt.Sprintf("panic recovered: %v", p.val) }
