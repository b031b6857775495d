package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/viant/hybrid/internal/clock"
	"github.com/viant/hybrid/internal/idgen"
)

// Type classifies a task. The set is open; hosts may use their own values.
type Type string

const (
	TypeConversation     Type = "conversation"
	TypeSystemOperation  Type = "system_operation"
	TypeResearch         Type = "research"
	TypeAnalysis         Type = "analysis"
	TypeCodeReview       Type = "code_review"
	TypeDeployment       Type = "deployment"
	TypeIncidentResponse Type = "incident_response"
)

// Normalize folds case and the hyphenated spelling ("system-operation") onto
// the canonical underscore form.
func (t Type) Normalize() Type {
	return Type(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(string(t))), "-", "_"))
}

// Is reports whether t names the same classification as other.
func (t Type) Is(other Type) bool {
	return t.Normalize() == other.Normalize()
}

const (
	DefaultPriority = 3
	MinPriority     = 1
	MaxPriority     = 5
	DefaultTimeout  = 300 * time.Second
)

var (
	// ErrInvalidTask is returned for tasks violating the submission contract.
	ErrInvalidTask = errors.New("invalid task")
	// ErrInvalidTransition is returned when a status change would move backwards.
	ErrInvalidTransition = errors.New("invalid task status transition")
)

// Task is a unit of work submitted for routing and execution.
//
// ID is immutable once assigned. Context is owned by the caller; the router
// and guardrails only read it.
type Task struct {
	ID                   string                 `json:"id" yaml:"id"`
	Description          string                 `json:"description" yaml:"description"`
	Type                 Type                   `json:"type" yaml:"type"`
	RequiresSystemAccess bool                   `json:"requiresSystemAccess" yaml:"requiresSystemAccess"`
	RequiresMultiStep    bool                   `json:"requiresMultiStep" yaml:"requiresMultiStep"`
	Priority             int                    `json:"priority" yaml:"priority"`
	Context              map[string]interface{} `json:"context,omitempty" yaml:"context,omitempty"`
	EstimatedCost        float64                `json:"estimatedCost" yaml:"estimatedCost"`
	Timeout              time.Duration          `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	Status      Status     `json:"status"`
	Target      Target     `json:"target,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// NewTask creates a pending conversation task with defaults applied.
func NewTask(description string) *Task {
	ret := &Task{Description: description}
	ret.Init()
	return ret
}

// Init fills defaults for zero-valued fields.
func (t *Task) Init() {
	if t.ID == "" {
		t.ID = idgen.New()
	}
	if t.Type == "" {
		t.Type = TypeConversation
	}
	if t.Priority == 0 {
		t.Priority = DefaultPriority
	}
	if t.Timeout == 0 {
		t.Timeout = DefaultTimeout
	}
	if t.Context == nil {
		t.Context = map[string]interface{}{}
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = clock.Now()
	}
}

// Validate checks the submission contract.
func (t *Task) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: task was nil", ErrInvalidTask)
	}
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("%w: description was empty", ErrInvalidTask)
	}
	if t.Priority < MinPriority || t.Priority > MaxPriority {
		return fmt.Errorf("%w: priority %d outside %d..%d", ErrInvalidTask, t.Priority, MinPriority, MaxPriority)
	}
	if t.EstimatedCost < 0 {
		return fmt.Errorf("%w: negative estimated cost %v", ErrInvalidTask, t.EstimatedCost)
	}
	return nil
}

// Advance moves the task to status. Transitions must strictly increase the
// status rank and terminal statuses never change.
func (t *Task) Advance(status Status) error {
	if t.Status.IsTerminal() || status.rank() <= t.Status.rank() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, status)
	}
	now := clock.Now()
	switch {
	case status == StatusInProgress:
		t.StartedAt = &now
	case status.IsTerminal():
		t.CompletedAt = &now
	}
	t.Status = status
	return nil
}

// Fail moves the task to failed recording reason.
func (t *Task) Fail(reason string) error {
	if err := t.Advance(StatusFailed); err != nil {
		return err
	}
	t.Error = reason
	return nil
}

// Value returns a context value.
func (t *Task) Value(key string) (interface{}, bool) {
	if t == nil || t.Context == nil {
		return nil, false
	}
	v, ok := t.Context[key]
	return v, ok
}

// Clone returns a copy whose Context map can be modified without affecting t.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	clone := *t
	if t.Context != nil {
		clone.Context = make(map[string]interface{}, len(t.Context))
		for k, v := range t.Context {
			clone.Context[k] = v
		}
	}
	return &clone
}

// Augment returns a clone carrying planning output, used to re-evaluate
// guardrails before execution.
func (t *Task) Augment(plan *Plan) *Task {
	ret := t.Clone()
	if ret.Context == nil {
		ret.Context = map[string]interface{}{}
	}
	if plan == nil {
		return ret
	}
	ret.Context[ContextPlan] = plan
	if plan.EstimatedCost > 0 {
		ret.EstimatedCost = plan.EstimatedCost
	}
	if len(plan.Steps) > 0 {
		ret.Context[ContextPlanSteps] = append([]string(nil), plan.Steps...)
	}
	return ret
}

// Context keys populated by the orchestrator.
const (
	ContextPlan       = "plan"
	ContextPlanSteps  = "planSteps"
	ContextExecution  = "execution"
	ContextStageID    = "stageId"
	ContextStage      = "stage"
	ContextTaskID     = "taskId"
	ContextPriority   = "priority"
	ContextTaskType   = "taskType"
	ContextStageError = "stageFailed"
	ContextOperation  = "operation"
	// ContextCommands carries explicit commands for operator backends.
	ContextCommands = "commands"
)
