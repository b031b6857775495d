package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlanOf(t *testing.T) {
	testCases := []struct {
		name     string
		output   interface{}
		expected *Plan
	}{
		{name: "nil", output: nil, expected: &Plan{}},
		{name: "text", output: " check disks ", expected: &Plan{Summary: "check disks"}},
		{name: "json text", output: `{"summary":"s","steps":["uptime","df -h"],"estimatedCost":2.5}`,
			expected: &Plan{Summary: "s", Steps: []string{"uptime", "df -h"}, EstimatedCost: 2.5}},
		{name: "invalid json text", output: `{"summary":`, expected: &Plan{Summary: `{"summary":`}},
		{name: "fenced json", output: "```json\n{\"steps\":[\"uptime\"]}\n```", expected: &Plan{Steps: []string{"uptime"}}},
		{name: "numbered text", output: "Check the fleet\n1. uptime\n2) df -h", expected: &Plan{Summary: "Check the fleet", Steps: []string{"uptime", "df -h"}}},
		{name: "string slice", output: []string{"a", "b"}, expected: &Plan{Steps: []string{"a", "b"}}},
		{name: "interface slice", output: []interface{}{"a", 1}, expected: &Plan{Steps: []string{"a", "1"}}},
		{name: "map", output: map[string]interface{}{"steps": []interface{}{"x"}}, expected: &Plan{Steps: []string{"x"}}},
		{name: "plan value", output: Plan{Summary: "v"}, expected: &Plan{Summary: "v"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.EqualValues(t, tc.expected, PlanOf(tc.output))
		})
	}
}

func TestPlan_String(t *testing.T) {
	plan := &Plan{Summary: "restore service", Steps: []string{"restart db", "check health"}}
	assert.Equal(t, "restore service\n1. restart db\n2. check health", plan.String())
}

func TestExecutionReport(t *testing.T) {
	report := &ExecutionReport{
		Operations: []*Operation{
			{Index: 0, Command: "uptime"},
			{Index: 1, Command: "df", Error: &Error{Kind: ErrorPermanent, Message: "exit 1"}},
		},
		Succeeded: 1,
		Failed:    1,
	}
	assert.False(t, report.OK())
	assert.Equal(t, []string{"operation 1 (df): exit 1"}, report.Errors())
	assert.False(t, (&ExecutionReport{}).OK())
}
