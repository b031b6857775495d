package policy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/viant/hybrid/model"
)

var (
	// ErrDuplicateGuardrail is returned when a name is registered twice.
	ErrDuplicateGuardrail = errors.New("duplicate guardrail")
	// ErrGuardrailNotFound is returned when removing an unknown guardrail.
	ErrGuardrailNotFound = errors.New("guardrail not found")
)

// Engine evaluates guardrails in registration order. Registration may change
// between evaluations; each evaluation works on a snapshot.
type Engine struct {
	mux        sync.RWMutex
	guardrails []*Guardrail
}

// NewEngine creates an engine with optional initial guardrails.
func NewEngine(guardrails ...*Guardrail) (*Engine, error) {
	ret := &Engine{}
	for _, g := range guardrails {
		if err := ret.Add(g); err != nil {
			return nil, err
		}
	}
	return ret, nil
}

// Add appends a guardrail.
func (e *Engine) Add(g *Guardrail) error {
	if err := g.Validate(); err != nil {
		return err
	}
	e.mux.Lock()
	defer e.mux.Unlock()
	for _, candidate := range e.guardrails {
		if candidate.Name == g.Name {
			return fmt.Errorf("%w: %v", ErrDuplicateGuardrail, g.Name)
		}
	}
	e.guardrails = append(e.guardrails, g)
	return nil
}

// Remove deletes a guardrail by name, keeping the order of the others.
func (e *Engine) Remove(name string) error {
	e.mux.Lock()
	defer e.mux.Unlock()
	for i, candidate := range e.guardrails {
		if candidate.Name == name {
			e.guardrails = append(e.guardrails[:i:i], e.guardrails[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %v", ErrGuardrailNotFound, name)
}

// ReplaceRules swaps every rule-based guardrail for the supplied ones while
// keeping programmatic guardrails in place.
func (e *Engine) ReplaceRules(guardrails []*Guardrail) error {
	seen := map[string]bool{}
	for _, g := range guardrails {
		if err := g.Validate(); err != nil {
			return err
		}
		if seen[g.Name] {
			return fmt.Errorf("%w: %v", ErrDuplicateGuardrail, g.Name)
		}
		seen[g.Name] = true
	}
	e.mux.Lock()
	defer e.mux.Unlock()
	kept := make([]*Guardrail, 0, len(e.guardrails)+len(guardrails))
	for _, candidate := range e.guardrails {
		if candidate.Rule != nil {
			continue
		}
		if seen[candidate.Name] {
			return fmt.Errorf("%w: %v", ErrDuplicateGuardrail, candidate.Name)
		}
		kept = append(kept, candidate)
	}
	e.guardrails = append(kept, guardrails...)
	return nil
}

// Guardrails returns a snapshot of registered guardrails.
func (e *Engine) Guardrails() []*Guardrail {
	e.mux.RLock()
	defer e.mux.RUnlock()
	return append([]*Guardrail(nil), e.guardrails...)
}

// Len returns the number of registered guardrails.
func (e *Engine) Len() int {
	e.mux.RLock()
	defer e.mux.RUnlock()
	return len(e.guardrails)
}

// Evaluate checks task against all guardrails. The first triggered blocking
// guardrail wins; approval guardrails are accumulated.
func (e *Engine) Evaluate(task *model.Task) *Verdict {
	ret := &Verdict{Decision: DecisionAllow}
	if e == nil {
		return ret
	}
	for _, g := range e.Guardrails() {
		triggered, fault := g.evaluate(task)
		evaluation := &Evaluation{Guardrail: g.Name, Kind: g.Kind, Triggered: triggered}
		if fault != nil {
			evaluation.Fault = fault.Error()
		}
		ret.Evaluations = append(ret.Evaluations, evaluation)
		if !triggered {
			continue
		}
		switch {
		case g.Kind.Blocks():
			ret.Decision = DecisionBlock
			ret.Message = g.Message
			ret.Guardrail = g.Name
			ret.Approvals = nil
			return ret
		case g.Kind == KindApprovalRequired:
			ret.Approvals = append(ret.Approvals, &Approval{Guardrail: g.Name, Approver: g.Approver, Message: g.ApprovalMessage()})
		case g.Kind == KindValidation:
			ret.Warnings = append(ret.Warnings, g.Message)
		}
	}
	if len(ret.Approvals) > 0 {
		ret.Decision = DecisionRequireApproval
		ret.Message = joinMessages(ret.Approvals)
		ret.Guardrail = ret.Approvals[0].Guardrail
	}
	return ret
}
