package approval

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/viant/hybrid/internal/clock"
)

const defaultPollInterval = 20 * time.Millisecond

// DecisionFunc decides a pending request: approved, or rejected with reason.
type DecisionFunc func(r *Request) (approved bool, reason string)

// poll calls visit with the pending requests every interval until ctx is
// done or the returned stop is called.
func poll(ctx context.Context, svc Service, interval time.Duration, visit func(pending []*Request)) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
			}
			pending, err := svc.ListPending(ctx)
			if err != nil {
				log.Printf("approval: failed to list pending requests: %v", err)
				continue
			}
			visit(pending)
		}
	}()
	return func() { close(done) }
}

// AutoDecider applies fn to every pending request in the background,
// recording decidedBy on each decision. Call stop or cancel ctx to end it.
func AutoDecider(ctx context.Context, svc Service, decidedBy string, fn DecisionFunc, interval time.Duration) (stop func()) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return poll(ctx, svc, interval, func(pending []*Request) {
		for _, r := range pending {
			approved, reason := fn(r)
			if _, err := svc.Decide(ctx, r.ID, approved, decidedBy, reason); err != nil {
				log.Printf("approval: %v could not decide %v: %v", decidedBy, r.ID, err)
			}
		}
	})
}

// AutoApprove approves every request, e.g. for unattended batch runs.
func AutoApprove(ctx context.Context, svc Service, interval time.Duration) func() {
	return AutoDecider(ctx, svc, "auto-approve", func(*Request) (bool, string) { return true, "" }, interval)
}

// AutoReject rejects every request with reason, e.g. during a change freeze.
func AutoReject(ctx context.Context, svc Service, reason string, interval time.Duration) func() {
	return AutoDecider(ctx, svc, "auto-reject", func(*Request) (bool, string) { return false, reason }, interval)
}

// AutoExpire rejects requests past their ExpiresAt and publishes
// TopicRequestExpired for each of them.
func AutoExpire(ctx context.Context, svc Service, reason string, interval time.Duration) func() {
	if interval <= 0 {
		interval = time.Second
	}
	return poll(ctx, svc, interval, func(pending []*Request) {
		now := clock.Now()
		for _, r := range pending {
			if !r.Expired(now) {
				continue
			}
			if _, err := svc.Decide(ctx, r.ID, false, "auto-expire", reason); err != nil {
				continue
			}
			if err := svc.Queue().Publish(ctx, &Event{Topic: TopicRequestExpired, Data: r}); err != nil {
				log.Printf("approval: failed to publish expiry of %v: %v", r.ID, err)
			}
		}
	})
}

// WaitForDecision blocks until request id is decided. A zero timeout waits
// as long as ctx allows.
func WaitForDecision(ctx context.Context, svc Service, id string, timeout time.Duration) (*Decision, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	ticker := time.NewTicker(defaultPollInterval / 2)
	defer ticker.Stop()
	for {
		decision, err := svc.Decision(ctx, id)
		switch {
		case err != nil:
			return nil, err
		case decision != nil:
			return decision, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("approval %v is still pending: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
}

// PendingFilter selects pending requests.
type PendingFilter func(r *Request) bool

// WithRunID selects requests raised by run id.
func WithRunID(id string) PendingFilter {
	return func(r *Request) bool { return r.RunID == id }
}

// WithTaskID selects requests raised for task id.
func WithTaskID(id string) PendingFilter {
	return func(r *Request) bool { return r.TaskID == id }
}

// WithGuardrail selects requests raised by the named guardrail.
func WithGuardrail(name string) PendingFilter {
	return func(r *Request) bool { return r.Guardrail == name }
}

// WithApprover selects requests addressed to approver.
func WithApprover(approver string) PendingFilter {
	return func(r *Request) bool { return r.Approver == approver }
}

func acceptedBy(filters []PendingFilter, r *Request) bool {
	for _, filter := range filters {
		if !filter(r) {
			return false
		}
	}
	return true
}

// ListPending returns pending requests accepted by every filter.
func ListPending(ctx context.Context, svc Service, filters ...PendingFilter) ([]*Request, error) {
	pending, err := svc.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	ret := pending[:0]
	for _, r := range pending {
		if acceptedBy(filters, r) {
			ret = append(ret, r)
		}
	}
	return ret, nil
}
