// Package dao defines the generic persistence contract used for runs and
// approval records.
package dao

import (
	"context"
	"errors"
)

var (
	// ErrNotFound reports a missing run, request or decision.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidID reports an empty key.
	ErrInvalidID = errors.New("record id is empty")
	// ErrNilEntity reports a Save of a nil record.
	ErrNilEntity = errors.New("record is nil")
)

// Service persists records of type T keyed by K. List returns records that
// satisfy every parameter; implementations define their own ordering.
type Service[K comparable, T any] interface {
	Save(ctx context.Context, t *T) error
	Load(ctx context.Context, id K) (*T, error)
	Delete(ctx context.Context, id K) error
	List(ctx context.Context, parameters ...*Parameter) ([]*T, error)
}
