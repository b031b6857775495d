package approval

import (
	"time"
)

// Event is published on the service queue for every request and decision.
type Event struct {
	Topic   string            `json:"topic"`
	Data    interface{}       `json:"data"` // *Request | *Decision
	Headers map[string]string `json:"headers,omitempty"`
}

// Event topics.
const (
	TopicRequestCreated  = "request.created"
	TopicRequestExpired  = "request.expired"
	TopicDecisionCreated = "decision.created"
)

// Request represents a request for approval raised by a guardrail.
type Request struct {
	ID        string                 `json:"id"`
	RunID     string                 `json:"runId"`
	TaskID    string                 `json:"taskId"`
	Guardrail string                 `json:"guardrail"`
	Approver  string                 `json:"approver"`
	Message   string                 `json:"message"`
	CreatedAt time.Time              `json:"createdAt"`
	ExpiresAt *time.Time             `json:"expiresAt,omitempty"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// Expired reports whether the request deadline passed at now.
func (r *Request) Expired(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}

// Decision represents approval decision
type Decision struct {
	ID        string    `json:"id"` // same as request.ID
	RunID     string    `json:"runId,omitempty"`
	Approved  bool      `json:"approved"`
	Reason    string    `json:"reason,omitempty"`
	DecidedBy string    `json:"decidedBy,omitempty"`
	DecidedAt time.Time `json:"decidedAt"`
}
