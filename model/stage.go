package model

import "time"

// StageKind is one step of a run.
type StageKind string

const (
	StagePlanning     StageKind = "planning"
	StageExecution    StageKind = "execution"
	StageVerification StageKind = "verification"
)

// StageStatus is the recorded outcome of a stage.
type StageStatus string

const (
	StageSucceeded        StageStatus = "succeeded"
	StageFailed           StageStatus = "failed"
	StageAwaitingApproval StageStatus = "awaiting_approval"
)

// Stage is an entry of the run's audit trail. Stages are appended only.
type Stage struct {
	Kind      StageKind   `json:"kind"`
	Backend   string      `json:"backend"`
	Status    StageStatus `json:"status"`
	Output    interface{} `json:"output,omitempty"`
	Error     *Error      `json:"error,omitempty"`
	StartedAt time.Time   `json:"startedAt"`
	EndedAt   time.Time   `json:"endedAt"`
}

// Succeeded reports whether the stage succeeded.
func (s *Stage) Succeeded() bool {
	return s != nil && s.Status == StageSucceeded
}

// Kinds returns the stage kinds in recorded order.
func Kinds(stages []*Stage) []StageKind {
	ret := make([]StageKind, 0, len(stages))
	for _, stage := range stages {
		ret = append(ret, stage.Kind)
	}
	return ret
}
