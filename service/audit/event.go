// Package audit receives structured events emitted for every guardrail
// evaluation, approval decision and stage transition. Recording is fire and
// forget for the emitter; delivery guarantees belong to the sink.
package audit

import (
	"time"

	"github.com/viant/hybrid/internal/clock"
)

// Kind groups events by their source.
type Kind string

const (
	KindGuardrail Kind = "guardrail"
	KindRoute     Kind = "route"
	KindStage     Kind = "stage"
	KindApproval  Kind = "approval"
	KindRun       Kind = "run"
)

// Event is a single audit record.
type Event struct {
	TaskID    string    `json:"taskId"`
	RunID     string    `json:"runId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Kind      Kind      `json:"kind"`
	// Name is the stage or guardrail name.
	Name       string                 `json:"name"`
	Actor      string                 `json:"actor"`
	Detail     string                 `json:"detail,omitempty"`
	ApprovedBy string                 `json:"approvedBy,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(kind Kind, taskID, runID, name, actor, detail string) *Event {
	return &Event{
		TaskID:    taskID,
		RunID:     runID,
		Timestamp: clock.Now(),
		Kind:      kind,
		Name:      name,
		Actor:     actor,
		Detail:    detail,
	}
}

// WithMetadata sets a metadata entry and returns the event.
func (e *Event) WithMetadata(key string, value interface{}) *Event {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}
