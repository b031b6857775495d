package metrics

import (
	"bytes"
	"context"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/hybrid/internal/clock"
	"github.com/viant/hybrid/model"
)

func TestTracker_Update(t *testing.T) {
	var testCases = []struct {
		description string
		deltas      []Delta
		expect      Snapshot
	}{
		{
			description: "blocked submission",
			deltas:      []Delta{{Submitted: 1, Blocked: 1}},
			expect:      Snapshot{Submitted: 1, Blocked: 1, ByTarget: map[model.Target]int64{}},
		},
		{
			description: "hybrid run lifecycle",
			deltas: []Delta{
				{Submitted: 1, Running: 1, Target: model.TargetHybrid},
				{Running: -1, Awaiting: 1},
				{Awaiting: -1, Running: 1},
				{Running: -1, Completed: 1, Spend: 0.25},
			},
			expect: Snapshot{Submitted: 1, Completed: 1, Spend: 0.25, ByTarget: map[model.Target]int64{model.TargetHybrid: 1}},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			tracker := NewTracker()
			for _, delta := range testCase.deltas {
				tracker.Update(context.Background(), delta)
			}
			actual := tracker.Snapshot()
			actual.StartedAt = time.Time{}
			assert.Equal(t, testCase.expect, actual)
		})
	}
}

func TestTracker_Recent(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock.NowFunc = func() time.Time { return now }
	defer func() { clock.NowFunc = time.Now }()

	tracker := NewTracker(WithWindow(time.Minute))
	tracker.Update(context.Background(), Delta{Submitted: 2})
	now = now.Add(30 * time.Second)
	tracker.Update(context.Background(), Delta{Submitted: 1})
	assert.EqualValues(t, 3, tracker.Recent())
	now = now.Add(40 * time.Second)
	assert.EqualValues(t, 1, tracker.Recent())
	assert.EqualValues(t, 3, tracker.Submitted())

	unbounded := NewTracker()
	unbounded.Update(context.Background(), Delta{Submitted: 4})
	assert.EqualValues(t, 4, unbounded.Recent())
}

func TestTracker_OnChange(t *testing.T) {
	buffer := &bytes.Buffer{}
	var seen []Snapshot
	tracker := NewTracker(WithOnChange(func(s Snapshot) {
		seen = append(seen, s)
		LogChanges(log.New(buffer, "", 0))(s)
	}))
	tracker.Update(context.Background(), Delta{Submitted: 1, Target: model.TargetOperator})
	tracker.Update(context.Background(), Delta{Failed: 1})
	assert.Len(t, seen, 2)
	assert.EqualValues(t, 1, seen[0].ByTarget[model.TargetOperator])
	seen[0].ByTarget[model.TargetOperator] = 10
	assert.EqualValues(t, 1, tracker.Snapshot().ByTarget[model.TargetOperator])
	assert.Contains(t, buffer.String(), "metrics: submitted=1 blocked=0 awaiting=0 running=0 completed=0 failed=1")
}

func TestTracker_Concurrent(t *testing.T) {
	tracker := NewTracker()
	group := sync.WaitGroup{}
	for i := 0; i < 50; i++ {
		group.Add(1)
		go func() {
			defer group.Done()
			tracker.Update(context.Background(), Delta{Submitted: 1, Spend: 0.5})
		}()
	}
	group.Wait()
	assert.EqualValues(t, 50, tracker.Submitted())
	assert.InDelta(t, 25.0, tracker.Spend(), 1e-9)
}

func TestMulti(t *testing.T) {
	first, second := NewTracker(), NewTracker()
	var nilTracker *Tracker
	Multi(first, nil, nilTracker, second).Update(context.Background(), Delta{Completed: 1})
	assert.EqualValues(t, 1, first.Snapshot().Completed)
	assert.EqualValues(t, 1, second.Snapshot().Completed)

	ctx := WithTracker(context.Background(), first)
	actual, ok := FromContext(ctx)
	assert.True(t, ok)
	assert.Same(t, first, actual)
	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}
