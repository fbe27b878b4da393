// Package domain loads and validates the dialogue domain: the intents the
// assistant understands, its typed slots, forms, templated responses, rules
// and declared custom actions. Domains are written in YAML.
package domain
