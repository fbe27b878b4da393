// Package config loads the dialogmesh configuration from a YAML file and
// DIALOGMESH_* environment variables. Precedence: environment, file,
// defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/dialogmesh/tracker"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DIALOGMESH_"

// Config is the complete runtime configuration.
type Config struct {
	Listen     string          `yaml:"listen" env:"LISTEN"`
	DomainPath string          `yaml:"domain" env:"DOMAIN"`
	Log        LogConfig       `yaml:"log"`
	NLU        NLUConfig       `yaml:"nlu"`
	Actions    ActionsConfig   `yaml:"actions"`
	Session    SessionConfig   `yaml:"session"`
	Scheduler  SchedulerConfig `yaml:"scheduler"`
	Store      StoreConfig     `yaml:"store"`
	Broker     BrokerConfig    `yaml:"broker"`
}

// LogConfig selects level and handler format ("text" or "json").
type LogConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

// NLUConfig configures intent resolution.
type NLUConfig struct {
	// Provider is keyword, openai or anthropic.
	Provider  string        `yaml:"provider" env:"NLU_PROVIDER"`
	Model     string        `yaml:"model" env:"NLU_MODEL"`
	Threshold float64       `yaml:"threshold" env:"NLU_THRESHOLD"`
	Timeout   time.Duration `yaml:"timeout" env:"NLU_TIMEOUT"`
}

// ActionsConfig configures action execution.
type ActionsConfig struct {
	// Endpoint is the action server webhook URL. Empty disables custom
	// actions served remotely.
	Endpoint       string        `yaml:"endpoint" env:"ACTION_ENDPOINT"`
	Timeout        time.Duration `yaml:"timeout" env:"ACTION_TIMEOUT"`
	MaxPerTurn     int           `yaml:"max_per_turn" env:"MAX_ACTIONS"`
	FallbackAction string        `yaml:"fallback_action" env:"FALLBACK_ACTION"`
	HandoffAction  string        `yaml:"handoff_action" env:"HANDOFF_ACTION"`
}

// SessionConfig configures session expiration.
type SessionConfig struct {
	// Expiration starts a new session after this idle period. Zero never
	// expires.
	Expiration     time.Duration `yaml:"expiration" env:"SESSION_EXPIRATION"`
	CarryOverSlots bool          `yaml:"carry_over_slots" env:"SESSION_CARRY_OVER"`
}

// SchedulerConfig configures the turn scheduler.
type SchedulerConfig struct {
	QueueDepth         int           `yaml:"queue_depth" env:"QUEUE_DEPTH"`
	QueueTimeout       time.Duration `yaml:"queue_timeout" env:"QUEUE_TIMEOUT"`
	TurnTimeout        time.Duration `yaml:"turn_timeout" env:"TURN_TIMEOUT"`
	MaxConcurrentTurns int64         `yaml:"max_concurrent_turns" env:"MAX_CONCURRENT_TURNS"`
}

// StoreConfig configures the tracker store.
type StoreConfig struct {
	Type             string        `yaml:"type" env:"STORE_TYPE"`
	Dialect          string        `yaml:"dialect" env:"STORE_DIALECT"`
	DSN              string        `yaml:"dsn" env:"STORE_DSN"`
	ConnectAttempts  int           `yaml:"connect_attempts" env:"STORE_CONNECT_ATTEMPTS"`
	RetryAttempts    int           `yaml:"retry_attempts" env:"STORE_RETRY_ATTEMPTS"`
	RetryMinInterval time.Duration `yaml:"retry_min_interval" env:"STORE_RETRY_MIN_INTERVAL"`
	FailSafe         bool          `yaml:"fail_safe" env:"STORE_FAILSAFE"`
}

// BrokerConfig configures event streaming.
type BrokerConfig struct {
	// Type is none, log or sqs.
	Type     string `yaml:"type" env:"BROKER_TYPE"`
	QueueURL string `yaml:"queue_url" env:"BROKER_QUEUE_URL"`
	Region   string `yaml:"region" env:"BROKER_REGION"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:     ":5005",
		DomainPath: "domain.yml",
		Log:        LogConfig{Level: "info", Format: "text"},
		NLU:        NLUConfig{Provider: "keyword", Threshold: 0.3, Timeout: 2 * time.Second},
		Actions: ActionsConfig{
			Timeout:        5 * time.Second,
			MaxPerTurn:     10,
			FallbackAction: "action_default_fallback",
			HandoffAction:  "action_handoff",
		},
		Scheduler: SchedulerConfig{
			QueueDepth:         8,
			QueueTimeout:       30 * time.Second,
			TurnTimeout:        30 * time.Second,
			MaxConcurrentTurns: 64,
		},
		Store: StoreConfig{
			Type:             tracker.TypeMemory,
			ConnectAttempts:  5,
			RetryAttempts:    3,
			RetryMinInterval: 50 * time.Millisecond,
		},
		Broker: BrokerConfig{Type: "none"},
	}
}

// Load reads path (when not empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(env.ToMap(os.Environ())); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ApplyEnv overrides the fields tagged with env from environ, a map of
// variable names to values such as env.ToMap(os.Environ()). Every malformed
// value is reported.
func (c *Config) ApplyEnv(environ map[string]string) error {
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix, Environment: environ}); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.NLU.Provider {
	case "keyword", "openai", "anthropic":
	default:
		errs = append(errs, fmt.Errorf("nlu.provider: unknown provider %q", c.NLU.Provider))
	}
	if c.NLU.Threshold < 0 || c.NLU.Threshold > 1 {
		errs = append(errs, fmt.Errorf("nlu.threshold: %v not in [0,1]", c.NLU.Threshold))
	}
	if c.Actions.MaxPerTurn < 0 {
		errs = append(errs, errors.New("actions.max_per_turn: must not be negative"))
	}
	if c.Scheduler.QueueDepth < 0 {
		errs = append(errs, errors.New("scheduler.queue_depth: must not be negative"))
	}
	switch c.Store.Type {
	case tracker.TypeMemory:
	case tracker.TypeSQL:
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("store.dsn: required for sql store"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.type: unknown type %q", c.Store.Type))
	}
	switch c.Broker.Type {
	case "none", "log":
	case "sqs":
		if c.Broker.QueueURL == "" {
			errs = append(errs, errors.New("broker.queue_url: required for sqs broker"))
		}
	default:
		errs = append(errs, fmt.Errorf("broker.type: unknown type %q", c.Broker.Type))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// TrackerConfig converts the store section for tracker.New.
func (c StoreConfig) TrackerConfig() tracker.Config {
	return tracker.Config{
		Type:             c.Type,
		Dialect:          c.Dialect,
		DSN:              c.DSN,
		ConnectAttempts:  c.ConnectAttempts,
		RetryAttempts:    c.RetryAttempts,
		RetryMinInterval: c.RetryMinInterval,
		FailSafe:         c.FailSafe,
	}
}
