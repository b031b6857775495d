package backend

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a backend failure.
type Kind string

const (
	// KindTransient failures are retried inside the adapter boundary.
	KindTransient Kind = "transient"
	// KindPermanent failures end the current stage.
	KindPermanent Kind = "permanent"
	// KindRefused is returned when the backend declines the request.
	KindRefused Kind = "refused"
	// KindTimeout is returned when a stage exceeds its timeout.
	KindTimeout Kind = "timeout"
)

// ErrStageTimeout is wrapped by errors produced when a stage times out.
var ErrStageTimeout = errors.New("stage timeout")

// Error is a classified backend failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Transient wraps err as a retryable failure.
func Transient(err error) *Error {
	return &Error{Kind: KindTransient, Err: err}
}

// Permanent wraps err as a terminal failure.
func Permanent(err error) *Error {
	return &Error{Kind: KindPermanent, Err: err}
}

// Refused creates a refusal failure.
func Refused(format string, args ...interface{}) *Error {
	return &Error{Kind: KindRefused, Message: fmt.Sprintf(format, args...)}
}

// Timeout creates a timeout failure for stage after the given limit.
func Timeout(stage string, err error) *Error {
	return &Error{Kind: KindTimeout, Message: stage, Err: fmt.Errorf("%w: %v", ErrStageTimeout, err)}
}

// KindOf classifies err. Unclassified errors are permanent, deadline errors
// are timeouts.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var backendErr *Error
	if errors.As(err, &backendErr) {
		return backendErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrStageTimeout) {
		return KindTimeout
	}
	return KindPermanent
}

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}
