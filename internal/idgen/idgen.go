package idgen

import "github.com/google/uuid"

// NewFunc returns a new globally unique identifier. Tests may replace it.
var NewFunc = func() string { return uuid.New().String() }

// New returns a new identifier.
func New() string { return NewFunc() }

// Derived returns an identifier scoped under parent, e.g. "task-1_plan".
func Derived(parent, suffix string) string {
	if parent == "" {
		return New() + "_" + suffix
	}
	return parent + "_" + suffix
}
