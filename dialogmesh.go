// Package dialogmesh provides a high-level façade over the dialogue engine.
// Most applications interact with this package by:
//  1. Loading a domain (domain.Load)
//  2. Creating a DialogMesh via New (optionally overriding the resolver,
//     the action gateway, the tracker store or in-process actions)
//  3. Sending utterances with HandleMessage, or serving Handler over HTTP
//
// All defaults are safe for local development and testing: a keyword
// resolver built from the domain's patterns, an in-memory tracker store and
// no remote action server. Build wires production collaborators from a
// config.Config.
package dialogmesh

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/dialogmesh/action"
	"github.com/hupe1980/dialogmesh/broker"
	"github.com/hupe1980/dialogmesh/config"
	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/domain"
	"github.com/hupe1980/dialogmesh/engine"
	"github.com/hupe1980/dialogmesh/flow"
	"github.com/hupe1980/dialogmesh/logging"
	"github.com/hupe1980/dialogmesh/model"
	"github.com/hupe1980/dialogmesh/model/anthropic"
	"github.com/hupe1980/dialogmesh/model/openai"
	"github.com/hupe1980/dialogmesh/nlu"
	"github.com/hupe1980/dialogmesh/policy"
	"github.com/hupe1980/dialogmesh/server"
	"github.com/hupe1980/dialogmesh/tracker"
)

// Options configures the DialogMesh instance.
type Options struct {
	// Engine configuration (queueing, timeouts, worker pool)
	EngineConfig engine.Config

	// Resolver classifies utterances. It is always wrapped in an nlu.Guard.
	// Defaults to a keyword resolver over the domain's patterns.
	Resolver core.Resolver
	// ResolverThreshold and ResolverTimeout tune the guard.
	ResolverThreshold float64
	ResolverTimeout   time.Duration

	// Gateway executes declared custom actions remotely.
	Gateway core.ActionGateway
	// Actions are in-process actions; they override every other source.
	Actions []action.Action

	// Store persists conversations (defaults to in-memory)
	Store core.TrackerStore

	MaxActionsPerTurn int
	ActionTimeout     time.Duration
	SessionExpiration time.Duration
	CarryOverSlots    bool
	FallbackAction    string
	HandoffAction     string

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// DialogMesh is the high-level façade aggregating the dialogue loop and the
// turn scheduler.
type DialogMesh struct {
	domain    *domain.Domain
	registry  *action.Registry
	processor *flow.Processor
	engine    *engine.Engine
	logger    logging.Logger
}

// New creates a DialogMesh for d.
func New(d *domain.Domain, optFns ...func(o *Options)) (*DialogMesh, error) {
	opts := Options{
		EngineConfig:      engine.DefaultConfig,
		ResolverThreshold: 0.3,
		ResolverTimeout:   2 * time.Second,
		MaxActionsPerTurn: 10,
		ActionTimeout:     10 * time.Second,
		FallbackAction:    core.ActionDefaultFallback,
		HandoffAction:     core.ActionHandoff,
		Logger:            logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if d == nil {
		return nil, errors.New("dialogmesh: domain is required")
	}

	resolver := opts.Resolver
	if resolver == nil {
		kr, err := nlu.NewKeywordResolver(d.Patterns)
		if err != nil {
			return nil, fmt.Errorf("dialogmesh: %w", err)
		}
		resolver = kr
	}

	guard := nlu.NewGuard(resolver, func(o *nlu.GuardOptions) {
		o.Threshold = opts.ResolverThreshold
		o.Timeout = opts.ResolverTimeout
		o.Logger = opts.Logger
	})

	registry := action.NewRegistry(d, func(o *action.RegistryOptions) {
		o.Gateway = opts.Gateway
		o.CarryOverSlots = opts.CarryOverSlots
	})
	registry.Register(opts.Actions...)

	ensemble := policy.NewEnsemble(d, func(o *policy.EnsembleOptions) {
		o.FallbackAction = opts.FallbackAction
		o.HandoffAction = opts.HandoffAction
	})

	processor := flow.New(d, guard, registry, ensemble, func(o *flow.Options) {
		o.MaxActions = opts.MaxActionsPerTurn
		o.ActionTimeout = opts.ActionTimeout
		o.SessionExpiration = opts.SessionExpiration
		o.Logger = opts.Logger
	})

	eng := engine.New(processor, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Store = opts.Store
		o.ApologyText = action.Apology(d, core.NewTracker(""))
		o.Logger = opts.Logger
	})

	return &DialogMesh{
		domain:    d,
		registry:  registry,
		processor: processor,
		engine:    eng,
		logger:    opts.Logger,
	}, nil
}

// HandleMessage runs one turn. See engine.Engine.HandleMessage for the
// error contract.
func (m *DialogMesh) HandleMessage(ctx context.Context, conversationID, text string) (engine.Reply, error) {
	return m.engine.HandleMessage(ctx, conversationID, text)
}

// Resume lifts a pause after a human handoff.
func (m *DialogMesh) Resume(ctx context.Context, conversationID string) error {
	return m.engine.Resume(ctx, conversationID)
}

// Tracker returns the persisted conversation.
func (m *DialogMesh) Tracker(ctx context.Context, conversationID string) (*core.Tracker, error) {
	return m.engine.Tracker(ctx, conversationID)
}

// RegisterAction adds in-process actions.
func (m *DialogMesh) RegisterAction(actions ...action.Action) { m.registry.Register(actions...) }

// Callbacks exposes the engine's lifecycle hooks.
func (m *DialogMesh) Callbacks() *engine.CallbackManager { return m.engine.Callbacks() }

// Engine returns the underlying turn scheduler.
func (m *DialogMesh) Engine() *engine.Engine { return m.engine }

// Domain returns the domain the instance was built for.
func (m *DialogMesh) Domain() *domain.Domain { return m.domain }

// Handler returns the HTTP API.
func (m *DialogMesh) Handler() http.Handler {
	return server.NewRouter(&server.Handler{Engine: m.engine, Logger: m.logger})
}

// Build wires a DialogMesh from configuration: domain file, resolver
// provider, action server, tracker store and event broker. The returned
// close function releases the store.
func Build(ctx context.Context, cfg config.Config, logger logging.Logger) (*DialogMesh, func() error, error) {
	logger = logging.OrNoOp(logger)

	d, err := domain.Load(cfg.DomainPath)
	if err != nil {
		return nil, nil, err
	}

	resolver, err := newResolver(cfg.NLU, d)
	if err != nil {
		return nil, nil, err
	}

	var eventBroker core.EventBroker
	switch cfg.Broker.Type {
	case "log":
		eventBroker = broker.NewLogBroker(logger)
	case "sqs":
		sqsBroker, err := broker.NewSQSBrokerFromConfig(ctx, cfg.Broker.Region, cfg.Broker.QueueURL)
		if err != nil {
			return nil, nil, err
		}
		eventBroker = sqsBroker
	}

	store, closeFn, err := tracker.New(ctx, cfg.Store.TrackerConfig(), func(o *tracker.Options) {
		o.Broker = eventBroker
		o.Logger = logger
		o.OnError = func(op string, err error) {
			logger.Error("tracker store failure, using in-memory fallback", "op", op, "error", err)
		}
	})
	if err != nil {
		return nil, nil, err
	}

	var gateway core.ActionGateway
	if cfg.Actions.Endpoint != "" {
		gateway = action.NewWebhookGateway(cfg.Actions.Endpoint, func(o *action.WebhookOptions) {
			o.Timeout = cfg.Actions.Timeout
			o.Logger = logger
		})
	}

	m, err := New(d, func(o *Options) {
		o.EngineConfig = engine.Config{
			MaxConcurrentTurns: cfg.Scheduler.MaxConcurrentTurns,
			QueueDepth:         cfg.Scheduler.QueueDepth,
			QueueTimeout:       cfg.Scheduler.QueueTimeout,
			TurnTimeout:        cfg.Scheduler.TurnTimeout,
		}
		o.Resolver = resolver
		o.ResolverThreshold = cfg.NLU.Threshold
		o.ResolverTimeout = cfg.NLU.Timeout
		o.Gateway = gateway
		o.Store = store
		o.MaxActionsPerTurn = cfg.Actions.MaxPerTurn
		o.ActionTimeout = cfg.Actions.Timeout
		o.SessionExpiration = cfg.Session.Expiration
		o.CarryOverSlots = cfg.Session.CarryOverSlots
		o.FallbackAction = cfg.Actions.FallbackAction
		o.HandoffAction = cfg.Actions.HandoffAction
		o.Logger = logger
	})
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}

	return m, closeFn, nil
}

func newResolver(cfg config.NLUConfig, d *domain.Domain) (core.Resolver, error) {
	var m model.Model

	switch cfg.Provider {
	case "", "keyword":
		return nlu.NewKeywordResolver(d.Patterns)
	case "openai":
		m = openai.NewModel(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		})
	case "anthropic":
		m = anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
		})
	default:
		return nil, fmt.Errorf("unknown nlu provider %q", cfg.Provider)
	}

	return nlu.NewModelResolver(m, d.Intents)
}
