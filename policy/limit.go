package policy

import "github.com/viant/hybrid/model"

// RateLimit builds a guardrail that blocks once count() reaches limit. The
// counter is owned by the caller; the engine only reads it.
func RateLimit(name, message string, count func() int64, limit int64) *Guardrail {
	return &Guardrail{
		Name:    name,
		Kind:    KindRateLimit,
		Message: message,
		Predicate: func(*model.Task) bool {
			return count() >= limit
		},
	}
}

// CostLimit builds a guardrail that blocks when spent() plus the task's
// estimated cost exceeds budget.
func CostLimit(name, message string, spent func() float64, budget float64) *Guardrail {
	return &Guardrail{
		Name:    name,
		Kind:    KindCostLimit,
		Message: message,
		Predicate: func(task *model.Task) bool {
			return spent()+task.EstimatedCost > budget
		},
	}
}
