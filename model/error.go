package model

import "fmt"

// ErrorKind classifies why a run or stage ended unsuccessfully.
type ErrorKind string

const (
	ErrorBlocked   ErrorKind = "blocked"
	ErrorRejected  ErrorKind = "rejected"
	ErrorCancelled ErrorKind = "cancelled"
	ErrorTimeout   ErrorKind = "timeout"
	ErrorTransient ErrorKind = "transient"
	ErrorPermanent ErrorKind = "permanent"
	ErrorRefused   ErrorKind = "refused"
	ErrorInvalid   ErrorKind = "invalid"
	ErrorFailed    ErrorKind = "failed"
)

// Error is the serialisable failure envelope returned to callers.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewError creates an error envelope.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
