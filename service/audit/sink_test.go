package audit

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_Events(t *testing.T) {
	sink := NewMemory()
	ctx := context.Background()
	require.NoError(t, sink.Record(ctx, NewEvent(KindGuardrail, "t1", "", "production_safety", "policy", "allow")))
	require.NoError(t, sink.Record(ctx, NewEvent(KindStage, "t1", "r1", "planning", "assistant", "started")))
	require.NoError(t, sink.Record(ctx, NewEvent(KindStage, "t2", "r2", "planning", "assistant", "started")))
	require.NoError(t, sink.Record(ctx, nil))

	var testCases = []struct {
		description string
		filters     []Filter
		expect      []string
	}{
		{description: "all", expect: []string{"production_safety", "planning", "planning"}},
		{description: "by run", filters: []Filter{ByRun("r1")}, expect: []string{"planning"}},
		{description: "by task and kind", filters: []Filter{ByTask("t1"), ByKind(KindGuardrail)}, expect: []string{"production_safety"}},
		{description: "no match", filters: []Filter{ByRun("r3")}, expect: []string{}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			actual := []string{}
			for _, event := range sink.Events(testCase.filters...) {
				actual = append(actual, event.Name)
			}
			assert.Equal(t, testCase.expect, actual)
		})
	}
}

func TestMemory_RecordCopies(t *testing.T) {
	sink := NewMemory()
	event := NewEvent(KindRun, "t1", "r1", "run", "orchestrator", "started")
	require.NoError(t, sink.Record(context.Background(), event))
	event.Detail = "changed"
	assert.Equal(t, "started", sink.Events()[0].Detail)
}

func TestMulti(t *testing.T) {
	first, second := NewMemory(), NewMemory()
	failing := Func(func(context.Context, *Event) error { return errors.New("disk full") })
	sink := Multi(first, nil, failing, second)

	err := sink.Record(context.Background(), NewEvent(KindApproval, "t1", "r1", "high_priority_approval", "ops", "approved"))
	assert.EqualError(t, err, "disk full")
	assert.Len(t, first.Events(), 1)
	assert.Len(t, second.Events(), 1)
	assert.NoError(t, Multi(first).Record(context.Background(), NewEvent(KindRun, "t1", "r1", "run", "", "")))
}

func TestLog(t *testing.T) {
	buffer := &bytes.Buffer{}
	sink := NewLog(log.New(buffer, "", 0))
	event := NewEvent(KindApproval, "t1", "r1", "high_priority_approval", "ops", "approved").WithMetadata("approver", "slack://ops-channel")
	event.ApprovedBy = "alice"
	require.NoError(t, sink.Record(context.Background(), event))
	assert.Contains(t, buffer.String(), `audit: {"taskId":"t1","runId":"r1"`)
	assert.Contains(t, buffer.String(), `"approvedBy":"alice"`)
	assert.Contains(t, buffer.String(), `"approver":"slack://ops-channel"`)
}
