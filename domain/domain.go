package domain

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/dialogmesh/core"
	"github.com/hupe1980/dialogmesh/internal/util"
)

// SlotType determines how raw entity values are coerced.
type SlotType string

const (
	SlotText        SlotType = "text"
	SlotBool        SlotType = "bool"
	SlotFloat       SlotType = "float"
	SlotCategorical SlotType = "categorical"
	SlotAny         SlotType = "any"
)

// Slot declares a typed conversation variable.
type Slot struct {
	Type SlotType `yaml:"type"`
	// Values lists the allowed values of a categorical slot.
	Values []string `yaml:"values,omitempty"`
	// Entity fills the slot automatically when the entity is extracted.
	// Defaults to the slot name; set AutoFill to false to disable.
	Entity   string `yaml:"entity,omitempty"`
	AutoFill *bool  `yaml:"auto_fill,omitempty"`
	Initial  any    `yaml:"initial_value,omitempty"`
}

// Form collects required slots one by one before running its submit action.
type Form struct {
	RequiredSlots []string `yaml:"required_slots"`
	SubmitAction  string   `yaml:"submit_action,omitempty"`
}

// Response is one variant of a bot response template.
type Response struct {
	Text string `yaml:"text"`
}

// Rule maps an intent plus optional conditions to an ordered action list.
type Rule struct {
	Name   string `yaml:"name"`
	Intent string `yaml:"intent"`
	// Entities that must be present in the latest message.
	Entities []string `yaml:"entities,omitempty"`
	// Slots maps slot names to required values. A nil value requires the
	// slot to be unset.
	Slots map[string]any `yaml:"slots,omitempty"`
	// Rejected restricts the rule to turns in which the action server
	// rejected the named action. Its actions then run after the rejection
	// and Intent becomes optional.
	Rejected string   `yaml:"rejected,omitempty"`
	Actions  []string `yaml:"actions"`
}

// Specificity is the number of conditions the rule checks.
func (r Rule) Specificity() int {
	n := 1 + len(r.Entities) + len(r.Slots)
	if r.Rejected != "" {
		n++
	}
	return n
}

// Domain is the validated description of what the assistant can do.
type Domain struct {
	Intents   []string              `yaml:"intents"`
	Slots     map[string]Slot       `yaml:"slots,omitempty"`
	Forms     map[string]Form       `yaml:"forms,omitempty"`
	Responses map[string][]Response `yaml:"responses,omitempty"`
	Rules     []Rule                `yaml:"rules,omitempty"`
	Actions   []string              `yaml:"actions,omitempty"`
	// Patterns holds regular expressions per intent for the keyword resolver.
	Patterns map[string][]string `yaml:"patterns,omitempty"`
}

// Load reads and validates a YAML domain file.
func Load(path string) (*Domain, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read domain: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML domain.
func Parse(raw []byte) (*Domain, error) {
	var d Domain
	if err := yaml.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("parse domain: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// Validate reports every inconsistency found in the domain at once.
func (d *Domain) Validate() error {
	var errs []error

	for name, s := range d.Slots {
		switch s.Type {
		case SlotText, SlotBool, SlotFloat, SlotAny:
		case SlotCategorical:
			if len(s.Values) == 0 {
				errs = append(errs, fmt.Errorf("slot %q: categorical slot needs values", name))
			}
		case "":
			errs = append(errs, fmt.Errorf("slot %q: missing type", name))
		default:
			errs = append(errs, fmt.Errorf("slot %q: unknown type %q", name, s.Type))
		}
	}

	for name, f := range d.Forms {
		if len(f.RequiredSlots) == 0 {
			errs = append(errs, fmt.Errorf("form %q: no required slots", name))
		}
		for _, slot := range f.RequiredSlots {
			if _, ok := d.Slots[slot]; !ok {
				errs = append(errs, fmt.Errorf("form %q: unknown slot %q", name, slot))
			}
		}
		if f.SubmitAction != "" && !d.HasAction(f.SubmitAction) {
			errs = append(errs, fmt.Errorf("form %q: unknown submit action %q", name, f.SubmitAction))
		}
	}

	for name, variants := range d.Responses {
		if !strings.HasPrefix(name, core.UtterPrefix) {
			errs = append(errs, fmt.Errorf("response %q: name must start with %q", name, core.UtterPrefix))
		}
		for _, v := range variants {
			if _, err := util.ParseTemplate(v.Text); err != nil {
				errs = append(errs, fmt.Errorf("response %q: %w", name, err))
			}
		}
	}

	for i, r := range d.Rules {
		label := r.Name
		if label == "" {
			label = strconv.Itoa(i)
		}
		if !(r.Intent == "" && r.Rejected != "") && !d.HasIntent(r.Intent) {
			errs = append(errs, fmt.Errorf("rule %s: unknown intent %q", label, r.Intent))
		}
		if r.Rejected != "" && !d.HasAction(r.Rejected) {
			errs = append(errs, fmt.Errorf("rule %s: unknown rejected action %q", label, r.Rejected))
		}
		if len(r.Actions) == 0 {
			errs = append(errs, fmt.Errorf("rule %s: no actions", label))
		}
		for _, a := range r.Actions {
			if !d.HasAction(a) {
				errs = append(errs, fmt.Errorf("rule %s: unknown action %q", label, a))
			}
		}
		for slot := range r.Slots {
			if _, ok := d.Slots[slot]; !ok {
				errs = append(errs, fmt.Errorf("rule %s: unknown slot %q", label, slot))
			}
		}
	}

	for intent := range d.Patterns {
		if !d.HasIntent(intent) {
			errs = append(errs, fmt.Errorf("patterns: unknown intent %q", intent))
		}
	}

	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })

	return errors.Join(errs...)
}

// HasIntent reports whether the intent is declared. The reserved fallback
// and cancel intents are always known.
func (d *Domain) HasIntent(name string) bool {
	return name == core.IntentFallback || name == core.IntentCancel || slices.Contains(d.Intents, name)
}

// IsCustomAction reports whether name is a declared custom action.
func (d *Domain) IsCustomAction(name string) bool { return slices.Contains(d.Actions, name) }

// HasAction reports whether name resolves to any action: built-in, form,
// response or custom.
func (d *Domain) HasAction(name string) bool {
	if isBuiltin(name) || d.IsCustomAction(name) {
		return true
	}
	if _, ok := d.Forms[name]; ok {
		return true
	}
	_, ok := d.Responses[name]
	return ok
}

func isBuiltin(name string) bool {
	switch name {
	case core.ActionListen, core.ActionSessionStart, core.ActionDefaultFallback, core.ActionHandoff,
		core.ActionDeactivateForm, core.ActionCancelled, core.ActionRestart, core.ActionResetSlots:
		return true
	}
	return false
}

// Render picks a response variant and fills it with slot values. The second
// result is false when no response of that name exists.
func (d *Domain) Render(name string, slots map[string]any) (string, bool, error) {
	variants := d.Responses[name]
	if len(variants) == 0 {
		return "", false, nil
	}
	v := variants[0]
	if len(variants) > 1 {
		v = variants[rand.IntN(len(variants))]
	}
	text, err := util.RenderTemplate(v.Text, slots)
	return text, true, err
}

// Coerce converts a raw entity value to the slot's type.
func (d *Domain) Coerce(slot, raw string) (any, error) {
	s, ok := d.Slots[slot]
	if !ok {
		return nil, fmt.Errorf("unknown slot %q", slot)
	}
	switch s.Type {
	case SlotBool:
		b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(raw)))
		if err != nil {
			switch strings.ToLower(strings.TrimSpace(raw)) {
			case "yes", "y", "yeah", "yep":
				return true, nil
			case "no", "n", "nope":
				return false, nil
			}
			return nil, fmt.Errorf("slot %q: %q is not a bool", slot, raw)
		}
		return b, nil
	case SlotFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("slot %q: %q is not a number", slot, raw)
		}
		return f, nil
	case SlotCategorical:
		for _, v := range s.Values {
			if strings.EqualFold(v, strings.TrimSpace(raw)) {
				return v, nil
			}
		}
		return nil, fmt.Errorf("slot %q: %q is not one of %v", slot, raw, s.Values)
	default:
		return raw, nil
	}
}

// entitySlots returns the slots auto-filled by entity.
func (d *Domain) entitySlots(entity string) []string {
	var out []string
	for name, s := range d.Slots {
		if s.AutoFill != nil && !*s.AutoFill {
			continue
		}
		target := s.Entity
		if target == "" {
			target = name
		}
		if target == entity {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// SlotEvents returns SlotSet events for every auto-filled slot whose entity
// was extracted. Values that do not coerce are skipped.
func (d *Domain) SlotEvents(parse core.ParseResult) []core.Event {
	var events []core.Event
	for _, e := range parse.Entities {
		for _, slot := range d.entitySlots(e.Name) {
			v, err := d.Coerce(slot, e.Value)
			if err != nil {
				continue
			}
			events = append(events, core.NewSlotSet(slot, v))
		}
	}
	return events
}

// InitialSlots returns SlotSet events for slots with an initial value, in
// name order.
func (d *Domain) InitialSlots() []core.Event {
	names := make([]string, 0, len(d.Slots))
	for name, s := range d.Slots {
		if s.Initial != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	events := make([]core.Event, 0, len(names))
	for _, name := range names {
		events = append(events, core.NewSlotSet(name, d.Slots[name].Initial))
	}
	return events
}

// HandlesRejection reports whether a rule reacts to the rejection of action.
func (d *Domain) HandlesRejection(action string) bool {
	for _, r := range d.Rules {
		if r.Rejected == action {
			return true
		}
	}
	return false
}

// Match reports whether the rule's conditions hold for the latest
// message and current slots.
func (r Rule) Match(parse core.ParseResult, slots map[string]any) bool {
	if r.Intent != parse.Intent.Name && (r.Intent != "" || r.Rejected == "") {
		return false
	}
	for _, e := range r.Entities {
		if _, ok := parse.EntityValue(e); !ok {
			return false
		}
	}
	for name, want := range r.Slots {
		got, ok := slots[name]
		if want == nil {
			if ok {
				return false
			}
			continue
		}
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}
