package policy

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/hybrid/model"
)

func TestRateLimit(t *testing.T) {
	var runs atomic.Int64
	g := RateLimit("rate", "limit reached", runs.Load, 2)
	task := model.NewTask("x")
	assert.False(t, g.Predicate(task))
	runs.Add(2)
	assert.True(t, g.Predicate(task))
	assert.Equal(t, KindRateLimit, g.Kind)
}

func TestCostLimit(t *testing.T) {
	spent := 90.0
	g := CostLimit("budget", "over budget", func() float64 { return spent }, 100)
	task := model.NewTask("x")
	task.EstimatedCost = 10
	assert.False(t, g.Predicate(task))
	task.EstimatedCost = 10.5
	assert.True(t, g.Predicate(task))
	assert.True(t, g.Kind.Blocks())
}
