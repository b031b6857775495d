package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTask_Init(t *testing.T) {
	task := NewTask("Explain X")
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, TypeConversation, task.Type)
	assert.Equal(t, DefaultPriority, task.Priority)
	assert.Equal(t, DefaultTimeout, task.Timeout)
	assert.Equal(t, StatusPending, task.Status)
	assert.NotNil(t, task.Context)

	custom := &Task{ID: "incident_001", Description: "diagnose", Priority: 5}
	custom.Init()
	assert.Equal(t, "incident_001", custom.ID)
	assert.Equal(t, 5, custom.Priority)
}

func TestTask_Validate(t *testing.T) {
	testCases := []struct {
		name      string
		task      *Task
		expectErr bool
	}{
		{name: "valid", task: &Task{Description: "x", Priority: 3}},
		{name: "nil", task: nil, expectErr: true},
		{name: "empty description", task: &Task{Description: "  ", Priority: 3}, expectErr: true},
		{name: "priority too low", task: &Task{Description: "x", Priority: 0}, expectErr: true},
		{name: "priority too high", task: &Task{Description: "x", Priority: 6}, expectErr: true},
		{name: "negative cost", task: &Task{Description: "x", Priority: 1, EstimatedCost: -1}, expectErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.task.Validate()
			if tc.expectErr {
				assert.True(t, errors.Is(err, ErrInvalidTask))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTask_Advance(t *testing.T) {
	testCases := []struct {
		name      string
		path      []Status
		expectErr bool
	}{
		{name: "full lifecycle", path: []Status{StatusRouting, StatusInProgress, StatusCompleted}},
		{name: "blocked before routing completes", path: []Status{StatusRouting, StatusBlocked}},
		{name: "skip routing", path: []Status{StatusInProgress, StatusFailed}},
		{name: "backward", path: []Status{StatusInProgress, StatusRouting}, expectErr: true},
		{name: "same status", path: []Status{StatusRouting, StatusRouting}, expectErr: true},
		{name: "terminal immutable", path: []Status{StatusCompleted, StatusFailed}, expectErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			task := NewTask("x")
			var err error
			for _, status := range tc.path {
				if err = task.Advance(status); err != nil {
					break
				}
			}
			if tc.expectErr {
				assert.True(t, errors.Is(err, ErrInvalidTransition))
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tc.path[len(tc.path)-1], task.Status)
		})
	}
}

func TestTask_AdvanceTimestamps(t *testing.T) {
	task := NewTask("x")
	assert.NoError(t, task.Advance(StatusInProgress))
	assert.NotNil(t, task.StartedAt)
	assert.Nil(t, task.CompletedAt)
	assert.NoError(t, task.Fail("boom"))
	assert.NotNil(t, task.CompletedAt)
	assert.Equal(t, "boom", task.Error)
}

func TestTask_Augment(t *testing.T) {
	task := NewTask("deploy")
	task.Context["env"] = "prod"
	task.EstimatedCost = 1

	augmented := task.Augment(&Plan{Summary: "plan", Steps: []string{"a", "b"}, EstimatedCost: 42})
	assert.Equal(t, 42.0, augmented.EstimatedCost)
	assert.Equal(t, "prod", augmented.Context["env"])
	assert.Equal(t, []string{"a", "b"}, augmented.Context[ContextPlanSteps])

	// the original task is untouched
	assert.Equal(t, 1.0, task.EstimatedCost)
	_, ok := task.Context[ContextPlan]
	assert.False(t, ok)
	assert.Equal(t, task.ID, augmented.ID)
}

func TestType_Is(t *testing.T) {
	assert.True(t, Type("system-operation").Is(TypeSystemOperation))
	assert.True(t, Type("Analysis").Is(TypeAnalysis))
	assert.False(t, Type("research").Is(TypeAnalysis))
}
