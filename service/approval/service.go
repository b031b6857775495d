package approval

import (
	"context"
	"errors"

	"github.com/viant/hybrid/service/messaging"
)

var (
	// ErrRequestNotFound is returned when deciding an unknown request.
	ErrRequestNotFound = errors.New("approval request not found")
	// ErrAlreadyDecided is returned when a request already has a decision.
	ErrAlreadyDecided = errors.New("approval request already decided")
)

// Service defines the approval service interface.
type Service interface {
	RequestApproval(ctx context.Context, r *Request) error
	ListPending(ctx context.Context) ([]*Request, error)
	Decide(ctx context.Context, id string, approved bool, decidedBy, reason string) (*Decision, error)
	// Decision returns the recorded decision, or nil while the request is pending.
	Decision(ctx context.Context, id string) (*Decision, error)
	Queue() messaging.Queue[Event]
}
