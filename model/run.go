package model

import (
	"fmt"
	"time"

	"github.com/viant/hybrid/internal/clock"
	"github.com/viant/hybrid/internal/idgen"
)

// RunState is the orchestrator state of a run.
type RunState string

const (
	RunPlanning         RunState = "planning"
	RunExecuting        RunState = "executing"
	RunVerifying        RunState = "verifying"
	RunAwaitingApproval RunState = "awaiting_approval"
	RunCompleted        RunState = "completed"
	RunFailed           RunState = "failed"
)

var allowedRunTransitions = map[RunState]map[RunState]struct{}{
	RunPlanning: {
		RunExecuting:        {},
		RunAwaitingApproval: {},
		RunFailed:           {},
	},
	RunExecuting: {
		RunVerifying:        {},
		RunAwaitingApproval: {},
		RunCompleted:        {},
		RunFailed:           {},
	},
	RunVerifying: {
		RunAwaitingApproval: {},
		RunCompleted:        {},
		RunFailed:           {},
	},
	RunAwaitingApproval: {
		RunPlanning:  {},
		RunExecuting: {},
		RunVerifying: {},
		RunFailed:    {},
	},
	RunCompleted: {},
	RunFailed:    {},
}

// IsTerminal reports whether the state is final.
func (s RunState) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed
}

// ValidateRunTransition checks that from -> to is a legal move.
func ValidateRunTransition(from, to RunState) error {
	next, ok := allowedRunTransitions[from]
	if !ok {
		return fmt.Errorf("invalid run state: %q", from)
	}
	if _, ok = next[to]; !ok {
		return fmt.Errorf("invalid run transition: %s -> %s", from, to)
	}
	return nil
}

// RunConfig carries caller-supplied per-run settings.
type RunConfig struct {
	PlanningTimeout     time.Duration `json:"planningTimeout,omitempty" yaml:"planning,omitempty" mapstructure:"planning"`
	ExecutionTimeout    time.Duration `json:"executionTimeout,omitempty" yaml:"execution,omitempty" mapstructure:"execution"`
	VerificationTimeout time.Duration `json:"verificationTimeout,omitempty" yaml:"verification,omitempty" mapstructure:"verification"`
	MaxParallel         int           `json:"maxParallel,omitempty" yaml:"maxParallel,omitempty" mapstructure:"max_parallel"`
}

// Timeout returns the configured timeout for kind; zero means none.
func (c *RunConfig) Timeout(kind StageKind) time.Duration {
	if c == nil {
		return 0
	}
	switch kind {
	case StagePlanning:
		return c.PlanningTimeout
	case StageExecution:
		return c.ExecutionTimeout
	case StageVerification:
		return c.VerificationTimeout
	}
	return 0
}

// ApprovalRef links a suspended run to an outstanding approval request.
type ApprovalRef struct {
	RequestID string `json:"requestId"`
	Guardrail string `json:"guardrail"`
	Approver  string `json:"approver"`
	Message   string `json:"message"`
	Approved  *bool  `json:"approved,omitempty"`
	DecidedBy string `json:"decidedBy,omitempty"`
}

// Run is one routed execution of a task, persisted after every transition.
type Run struct {
	ID          string           `json:"id"`
	Task        *Task            `json:"task"`
	Target      Target           `json:"target"`
	State       RunState         `json:"state"`
	ResumeState RunState         `json:"resumeState,omitempty"`
	Stages      []*Stage         `json:"stages"`
	Plan        *Plan            `json:"plan,omitempty"`
	Execution   *ExecutionReport `json:"execution,omitempty"`
	Output      interface{}      `json:"output,omitempty"`
	Reason      string           `json:"reason,omitempty"`
	Guardrail   string           `json:"guardrail,omitempty"`
	Error       *Error           `json:"error,omitempty"`
	Approvals   []*ApprovalRef   `json:"approvals,omitempty"`
	Warnings    []string         `json:"warnings,omitempty"`
	Cost        float64          `json:"cost,omitempty"`
	Config      RunConfig        `json:"config"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// NewRun creates a run for task routed to target, positioned at its first state.
func NewRun(task *Task, target Target, config RunConfig) *Run {
	now := clock.Now()
	ret := &Run{
		ID:        idgen.New(),
		Task:      task,
		Target:    target,
		Config:    config,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ret.State = ret.FirstState()
	return ret
}

// Transition moves the run to state.
func (r *Run) Transition(state RunState) error {
	if err := ValidateRunTransition(r.State, state); err != nil {
		return err
	}
	r.State = state
	r.UpdatedAt = clock.Now()
	return nil
}

// FirstState returns the initial orchestrator state for the run's target.
func (r *Run) FirstState() RunState {
	if r.Target == TargetHybrid {
		return RunPlanning
	}
	return RunExecuting
}

// Append records a stage in the audit trail.
func (r *Run) Append(stage *Stage) {
	r.Stages = append(r.Stages, stage)
}

// LastStage returns the most recently recorded stage of kind, or nil.
func (r *Run) LastStage(kind StageKind) *Stage {
	for i := len(r.Stages) - 1; i >= 0; i-- {
		if r.Stages[i].Kind == kind {
			return r.Stages[i]
		}
	}
	return nil
}

// PendingApprovals returns approvals without a decision.
func (r *Run) PendingApprovals() []*ApprovalRef {
	var ret []*ApprovalRef
	for _, ref := range r.Approvals {
		if ref.Approved == nil {
			ret = append(ret, ref)
		}
	}
	return ret
}

// Approval returns the approval ref for requestID.
func (r *Run) Approval(requestID string) *ApprovalRef {
	for _, ref := range r.Approvals {
		if ref.RequestID == requestID {
			return ref
		}
	}
	return nil
}

// Clone returns a copy safe to read while the original keeps being driven.
// Stage outputs and the plan are shared; they are never modified once recorded.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Task = r.Task.Clone()
	clone.Stages = nil
	for _, stage := range r.Stages {
		copied := *stage
		clone.Stages = append(clone.Stages, &copied)
	}
	clone.Approvals = nil
	for _, ref := range r.Approvals {
		copied := *ref
		clone.Approvals = append(clone.Approvals, &copied)
	}
	clone.Warnings = append([]string(nil), r.Warnings...)
	if r.Execution != nil {
		execution := *r.Execution
		execution.Operations = append([]*Operation(nil), r.Execution.Operations...)
		clone.Execution = &execution
	}
	return &clone
}
