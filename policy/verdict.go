package policy

import "strings"

// Decision is the overall outcome of an evaluation.
type Decision string

const (
	DecisionAllow           Decision = "allow"
	DecisionBlock           Decision = "block"
	DecisionRequireApproval Decision = "require_approval"
)

// Evaluation records the outcome of one guardrail.
type Evaluation struct {
	Guardrail string `json:"guardrail"`
	Kind      Kind   `json:"kind"`
	Triggered bool   `json:"triggered"`
	Fault     string `json:"fault,omitempty"`
}

// Approval is one approval demanded by a triggered guardrail.
type Approval struct {
	Guardrail string `json:"guardrail"`
	Approver  string `json:"approver"`
	Message   string `json:"message"`
}

// Verdict is the result of evaluating all guardrails against a task.
type Verdict struct {
	Decision    Decision      `json:"decision"`
	Message     string        `json:"message,omitempty"`
	Guardrail   string        `json:"guardrail,omitempty"`
	Approvals   []*Approval   `json:"approvals,omitempty"`
	Warnings    []string      `json:"warnings,omitempty"`
	Evaluations []*Evaluation `json:"evaluations"`
}

// Allowed reports whether the task may proceed without approval.
func (v *Verdict) Allowed() bool { return v.Decision == DecisionAllow }

// Blocked reports whether the task was refused.
func (v *Verdict) Blocked() bool { return v.Decision == DecisionBlock }

// RequiresApproval reports whether approvals are pending.
func (v *Verdict) RequiresApproval() bool { return v.Decision == DecisionRequireApproval }

// Approvers returns every approver demanded by the verdict.
func (v *Verdict) Approvers() []string {
	ret := make([]string, 0, len(v.Approvals))
	for _, approval := range v.Approvals {
		ret = append(ret, approval.Approver)
	}
	return ret
}

// Faults returns predicate faults recorded during evaluation.
func (v *Verdict) Faults() []string {
	var ret []string
	for _, evaluation := range v.Evaluations {
		if evaluation.Fault != "" {
			ret = append(ret, evaluation.Fault)
		}
	}
	return ret
}

func joinMessages(approvals []*Approval) string {
	messages := make([]string, 0, len(approvals))
	for _, approval := range approvals {
		messages = append(messages, approval.Message)
	}
	return strings.Join(messages, "; ")
}
