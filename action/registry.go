package action

import (
	"strings"
	"sync"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/domain"
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Gateway executes declared custom actions without a local Function.
	Gateway core.ActionGateway
	// CarryOverSlots keeps slots across session starts.
	CarryOverSlots bool
}

// Registry resolves action names to actions. Resolution order: registered
// in-process actions, built-ins, domain forms, utter_ responses, declared
// custom actions via the gateway. Anything else is KindNotFound.
type Registry struct {
	domain *domain.Domain
	opts   RegistryOptions

	mu       sync.RWMutex
	local    map[string]Action
	builtins map[string]Action
}

// NewRegistry creates a registry for d.
func NewRegistry(d *domain.Domain, optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	r := &Registry{domain: d, opts: opts, local: map[string]Action{}, builtins: map[string]Action{}}
	for _, a := range []Action{
		NewListen(),
		NewSessionStart(d, opts.CarryOverSlots),
		NewDefaultFallback(d),
		NewHandoff(d),
		NewDeactivateForm(),
		NewCancelled(d),
		NewRestart(),
		NewResetSlots(),
	} {
		r.builtins[a.Name()] = a
	}

	return r
}

// Register adds in-process actions. They take precedence over everything
// else, so a built-in can be overridden (e.g. a custom fallback).
func (r *Registry) Register(actions ...Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range actions {
		r.local[a.Name()] = a
	}
}

// Lookup resolves name.
func (r *Registry) Lookup(name string) (Action, error) {
	r.mu.RLock()
	a, ok := r.local[name]
	r.mu.RUnlock()
	if ok {
		return a, nil
	}

	if a, ok := r.builtins[name]; ok {
		return a, nil
	}

	if r.domain != nil {
		if f, ok := r.domain.Forms[name]; ok {
			return NewForm(name, f, r.domain), nil
		}
		if strings.HasPrefix(name, core.UtterPrefix) {
			if _, ok := r.domain.Responses[name]; ok {
				return NewUtter(name, r.domain), nil
			}
		}
		if r.domain.IsCustomAction(name) {
			return NewCustom(name, r.opts.Gateway), nil
		}
	}

	return nil, NewError(name, KindNotFound, "action is not defined")
}
