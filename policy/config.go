package policy

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/hybrid/model"
	"gopkg.in/yaml.v3"
)

// Rule is the declarative, serialisable form of a guardrail. All specified
// conditions must match for the rule to trigger.
type Rule struct {
	Name         string   `json:"name" yaml:"name"`
	Kind         Kind     `json:"kind" yaml:"kind"`
	Message      string   `json:"message,omitempty" yaml:"message,omitempty"`
	Approver     string   `json:"approver,omitempty" yaml:"approver,omitempty"`
	Contains     []string `json:"contains,omitempty" yaml:"contains,omitempty"`
	Types        []string `json:"types,omitempty" yaml:"types,omitempty"`
	MinPriority  int      `json:"minPriority,omitempty" yaml:"minPriority,omitempty"`
	MaxCost      float64  `json:"maxCost,omitempty" yaml:"maxCost,omitempty"`
	SystemAccess *bool    `json:"systemAccess,omitempty" yaml:"systemAccess,omitempty"`
	MultiStep    *bool    `json:"multiStep,omitempty" yaml:"multiStep,omitempty"`
}

// Config is a list of rules, typically loaded from YAML.
type Config struct {
	Rules []*Rule `json:"rules,omitempty" yaml:"rules,omitempty"`
}

func (r *Rule) hasCondition() bool {
	return len(r.Contains) > 0 || len(r.Types) > 0 || r.MinPriority > 0 || r.MaxCost > 0 || r.SystemAccess != nil || r.MultiStep != nil
}

// Matches evaluates the rule conditions against task.
func (r *Rule) Matches(task *model.Task) bool {
	if len(r.Contains) > 0 {
		description := strings.ToLower(task.Description)
		matched := false
		for _, fragment := range r.Contains {
			if strings.Contains(description, strings.ToLower(fragment)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if len(r.Types) > 0 {
		matched := false
		for _, candidate := range r.Types {
			if task.Type.Is(model.Type(candidate)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if r.MinPriority > 0 && task.Priority < r.MinPriority {
		return false
	}
	if r.MaxCost > 0 && task.EstimatedCost <= r.MaxCost {
		return false
	}
	if r.SystemAccess != nil && task.RequiresSystemAccess != *r.SystemAccess {
		return false
	}
	if r.MultiStep != nil && task.RequiresMultiStep != *r.MultiStep {
		return false
	}
	return true
}

// Guardrail converts the rule into a guardrail.
func (r *Rule) Guardrail() (*Guardrail, error) {
	if !r.hasCondition() {
		return nil, fmt.Errorf("rule %v: no condition defined", r.Name)
	}
	message := r.Message
	if message == "" {
		message = fmt.Sprintf("guardrail %v triggered", r.Name)
	}
	ret := &Guardrail{
		Name:      r.Name,
		Kind:      r.Kind,
		Message:   message,
		Approver:  r.Approver,
		Predicate: r.Matches,
		Rule:      r,
	}
	return ret, ret.Validate()
}

// Guardrails converts every rule.
func (c *Config) Guardrails() ([]*Guardrail, error) {
	if c == nil {
		return nil, nil
	}
	ret := make([]*Guardrail, 0, len(c.Rules))
	for _, rule := range c.Rules {
		g, err := rule.Guardrail()
		if err != nil {
			return nil, err
		}
		ret = append(ret, g)
	}
	return ret, nil
}

// ToConfig extracts the declarative rules registered on engine.
func ToConfig(engine *Engine) *Config {
	if engine == nil {
		return nil
	}
	ret := &Config{}
	for _, g := range engine.Guardrails() {
		if g.Rule != nil {
			ret.Rules = append(ret.Rules, g.Rule)
		}
	}
	return ret
}

// DecodeConfig parses YAML (or JSON) rules.
func DecodeConfig(data []byte) (*Config, error) {
	ret := &Config{}
	if err := yaml.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("failed to decode guardrail rules: %w", err)
	}
	return ret, nil
}

// LoadConfig reads rules from any afs supported URL.
func LoadConfig(ctx context.Context, fs afs.Service, URL string) (*Config, error) {
	if fs == nil {
		fs = afs.New()
	}
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return nil, fmt.Errorf("failed to load guardrail rules %v: %w", URL, err)
	}
	return DecodeConfig(data)
}
