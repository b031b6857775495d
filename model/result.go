package model

// ResultStatus is the caller-visible outcome of a run.
type ResultStatus string

const (
	ResultCompleted        ResultStatus = "completed"
	ResultFailed           ResultStatus = "failed"
	ResultBlocked          ResultStatus = "blocked"
	ResultAwaitingApproval ResultStatus = "awaiting_approval"
	// ResultInProgress is only observed when inspecting a run still being driven.
	ResultInProgress ResultStatus = "in_progress"
)

// Result is returned to the caller for every submitted task.
type Result struct {
	RunID     string         `json:"runId,omitempty"`
	TaskID    string         `json:"taskId"`
	Target    Target         `json:"target,omitempty"`
	Status    ResultStatus   `json:"status"`
	Stages    []*Stage       `json:"stages"`
	Output    interface{}    `json:"output,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Guardrail string         `json:"guardrail,omitempty"`
	Error     *Error         `json:"error,omitempty"`
	Approvals []*ApprovalRef `json:"approvals,omitempty"`
	Warnings  []string       `json:"warnings,omitempty"`
}

// ResultOf converts a run snapshot into a caller result.
func ResultOf(run *Run) *Result {
	ret := &Result{
		RunID:     run.ID,
		Target:    run.Target,
		Stages:    append([]*Stage(nil), run.Stages...),
		Output:    run.Output,
		Reason:    run.Reason,
		Guardrail: run.Guardrail,
		Error:     run.Error,
		Warnings:  append([]string(nil), run.Warnings...),
	}
	if run.Task != nil {
		ret.TaskID = run.Task.ID
	}
	switch run.State {
	case RunCompleted:
		ret.Status = ResultCompleted
	case RunAwaitingApproval:
		ret.Status = ResultAwaitingApproval
		ret.Approvals = run.PendingApprovals()
	case RunFailed:
		ret.Status = ResultFailed
	default:
		ret.Status = ResultInProgress
	}
	if run.Task != nil && run.Task.Status == StatusBlocked {
		ret.Status = ResultBlocked
	}
	return ret
}
