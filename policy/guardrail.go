package policy

import (
	"fmt"

	"github.com/viant/hybrid/model"
)

// Kind classifies what happens when a guardrail triggers.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindBlock            Kind = "block"
	KindApprovalRequired Kind = "approval_required"
	KindRateLimit        Kind = "rate_limit"
	KindCostLimit        Kind = "cost_limit"
)

// Blocks reports whether a triggered guardrail of this kind refuses the task.
func (k Kind) Blocks() bool {
	return k == KindBlock || k == KindRateLimit || k == KindCostLimit
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindValidation, KindBlock, KindApprovalRequired, KindRateLimit, KindCostLimit:
		return true
	}
	return false
}

// Predicate decides whether a guardrail triggers. It must not mutate the task.
type Predicate func(task *model.Task) bool

// Guardrail is a named policy evaluated against a task.
type Guardrail struct {
	Name      string
	Kind      Kind
	Predicate Predicate
	Message   string
	Approver  string
	// Rule is set for guardrails built from declarative configuration.
	Rule *Rule
}

// New creates a guardrail.
func New(name string, kind Kind, predicate Predicate, message string, approver ...string) *Guardrail {
	ret := &Guardrail{Name: name, Kind: kind, Predicate: predicate, Message: message}
	if len(approver) > 0 {
		ret.Approver = approver[0]
	}
	return ret
}

// Validate checks registration constraints.
func (g *Guardrail) Validate() error {
	if g == nil {
		return fmt.Errorf("guardrail was nil")
	}
	if g.Name == "" {
		return fmt.Errorf("guardrail name was empty")
	}
	if !g.Kind.Valid() {
		return fmt.Errorf("guardrail %v: unsupported kind %q", g.Name, g.Kind)
	}
	if g.Predicate == nil {
		return fmt.Errorf("guardrail %v: predicate was nil", g.Name)
	}
	if g.Kind == KindApprovalRequired && g.Approver == "" {
		return fmt.Errorf("guardrail %v: approver is required for %v", g.Name, g.Kind)
	}
	return nil
}

// evaluate runs the predicate; a panicking predicate counts as triggered.
func (g *Guardrail) evaluate(task *model.Task) (triggered bool, fault error) {
	defer func() {
		if r := recover(); r != nil {
			triggered = true
			fault = fmt.Errorf("guardrail %v predicate panicked: %v", g.Name, r)
		}
	}()
	return g.Predicate(task), nil
}

// ApprovalMessage renders the message shown for an approval verdict.
func (g *Guardrail) ApprovalMessage() string {
	return fmt.Sprintf("%s (Approval required from %s)", g.Message, g.Approver)
}
