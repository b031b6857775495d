package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRunTransition(t *testing.T) {
	testCases := []struct {
		from, to  RunState
		expectErr bool
	}{
		{from: RunPlanning, to: RunExecuting},
		{from: RunExecuting, to: RunVerifying},
		{from: RunVerifying, to: RunCompleted},
		{from: RunAwaitingApproval, to: RunExecuting},
		{from: RunAwaitingApproval, to: RunFailed},
		{from: RunPlanning, to: RunVerifying, expectErr: true},
		{from: RunCompleted, to: RunPlanning, expectErr: true},
		{from: RunFailed, to: RunExecuting, expectErr: true},
		{from: "bogus", to: RunFailed, expectErr: true},
	}
	for _, tc := range testCases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			err := ValidateRunTransition(tc.from, tc.to)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestResultOf(t *testing.T) {
	approved := true
	run := &Run{
		ID:     "r1",
		Task:   &Task{ID: "t1", Status: StatusInProgress},
		Target: TargetHybrid,
		State:  RunAwaitingApproval,
		Stages: []*Stage{{Kind: StagePlanning, Status: StageSucceeded}},
		Approvals: []*ApprovalRef{
			{RequestID: "a", Approver: "ops"},
			{RequestID: "b", Approver: "cfo", Approved: &approved},
		},
	}
	result := ResultOf(run)
	assert.Equal(t, ResultAwaitingApproval, result.Status)
	assert.Equal(t, "t1", result.TaskID)
	assert.Len(t, result.Approvals, 1)
	assert.Equal(t, "ops", result.Approvals[0].Approver)

	run.State = RunFailed
	run.Task.Status = StatusBlocked
	assert.Equal(t, ResultBlocked, ResultOf(run).Status)

	run.Task.Status = StatusFailed
	assert.Equal(t, ResultFailed, ResultOf(run).Status)
}

func TestRunConfig_Timeout(t *testing.T) {
	cfg := &RunConfig{PlanningTimeout: 1, ExecutionTimeout: 2, VerificationTimeout: 3}
	assert.EqualValues(t, 1, cfg.Timeout(StagePlanning))
	assert.EqualValues(t, 2, cfg.Timeout(StageExecution))
	assert.EqualValues(t, 3, cfg.Timeout(StageVerification))
	var empty *RunConfig
	assert.EqualValues(t, 0, empty.Timeout(StagePlanning))
}

func TestRun_Clone(t *testing.T) {
	run := &Run{
		ID:        "r1",
		Task:      &Task{ID: "t1", Context: map[string]interface{}{"k": "v"}},
		Stages:    []*Stage{{Kind: StagePlanning, Status: StageSucceeded}},
		Approvals: []*ApprovalRef{{RequestID: "a"}},
		Execution: &ExecutionReport{Operations: []*Operation{{Index: 1}}, Succeeded: 1},
	}
	clone := run.Clone()
	assert.EqualValues(t, run, clone)

	clone.Stages[0].Status = StageFailed
	clone.Task.Context["k"] = "changed"
	clone.Approvals[0].DecidedBy = "ops"
	clone.Stages = append(clone.Stages, &Stage{Kind: StageExecution})
	assert.Equal(t, StageSucceeded, run.Stages[0].Status)
	assert.Equal(t, "v", run.Task.Context["k"])
	assert.Empty(t, run.Approvals[0].DecidedBy)
	assert.Len(t, run.Stages, 1)
	assert.Nil(t, (*Run)(nil).Clone())
}

func TestNewRun(t *testing.T) {
	testCases := []struct {
		target      Target
		expectState RunState
	}{
		{target: TargetHybrid, expectState: RunPlanning},
		{target: TargetOperator, expectState: RunExecuting},
		{target: TargetAssistant, expectState: RunExecuting},
	}
	for _, tc := range testCases {
		t.Run(string(tc.target), func(t *testing.T) {
			task := NewTask("check disk")
			run := NewRun(task, tc.target, RunConfig{MaxParallel: 2})
			assert.NotEmpty(t, run.ID)
			assert.Equal(t, tc.expectState, run.State)
			assert.Equal(t, 2, run.Config.MaxParallel)
			assert.Equal(t, run.CreatedAt, run.UpdatedAt)
			assert.Same(t, task, run.Task)
		})
	}
}

func TestRun_Transition(t *testing.T) {
	run := NewRun(NewTask("check disk"), TargetHybrid, RunConfig{})
	assert.NoError(t, run.Transition(RunExecuting))
	assert.NoError(t, run.Transition(RunVerifying))
	assert.Error(t, run.Transition(RunPlanning))
	assert.Equal(t, RunVerifying, run.State)
	assert.NoError(t, run.Transition(RunCompleted))
	assert.Error(t, run.Transition(RunFailed))
	assert.Equal(t, RunCompleted, run.State)
}
