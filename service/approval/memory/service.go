// Package memory provides an in-process approval.Service.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/viant/hybrid/internal/clock"
	"github.com/viant/hybrid/internal/idgen"
	"github.com/viant/hybrid/service/approval"
	"github.com/viant/hybrid/service/dao"
	"github.com/viant/hybrid/service/dao/store"
	"github.com/viant/hybrid/service/messaging"
	qmem "github.com/viant/hybrid/service/messaging/memory"
)

type service struct {
	reqDAO dao.Service[string, approval.Request]
	decDAO dao.Service[string, approval.Decision]
	events messaging.Queue[approval.Event]
	// serialises decisions so a request is decided once
	mu sync.Mutex
}

func reqKey(r *approval.Request) string  { return r.ID }
func decKey(d *approval.Decision) string { return d.ID }

// New creates a memory approval service. Events are dropped, with a log
// line, when nobody consumes the queue and its buffer is full.
func New(options ...Option) approval.Service {
	config := qmem.DefaultConfig()
	config.DropWhenFull = true
	ret := &service{
		reqDAO: store.NewMemoryStore[string, approval.Request](reqKey),
		decDAO: store.NewMemoryStore[string, approval.Decision](decKey),
		events: qmem.NewQueue[approval.Event](config),
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

func (s *service) publish(ctx context.Context, event *approval.Event) {
	if err := s.events.Publish(ctx, event); err != nil {
		log.Printf("approval: failed to publish %v: %v", event.Topic, err)
	}
}

func (s *service) RequestApproval(ctx context.Context, r *approval.Request) error {
	if r == nil {
		return errors.New("invalid request")
	}
	if r.ID == "" {
		if r.RunID != "" && r.Guardrail != "" {
			r.ID = idgen.Derived(r.RunID, r.Guardrail)
		} else {
			r.ID = idgen.New()
		}
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = clock.Now()
	}
	// re-submission overwrites the pending copy
	if err := s.reqDAO.Save(ctx, r); err != nil {
		return err
	}
	s.publish(ctx, &approval.Event{Topic: approval.TopicRequestCreated, Data: r})
	return nil
}

func (s *service) ListPending(ctx context.Context) ([]*approval.Request, error) {
	all, err := s.reqDAO.List(ctx)
	if err != nil {
		return nil, err
	}
	pending := make([]*approval.Request, 0, len(all))
	for _, r := range all {
		if _, err := s.decDAO.Load(ctx, r.ID); errors.Is(err, dao.ErrNotFound) {
			pending = append(pending, r)
		}
	}
	return pending, nil
}

func (s *service) Decision(ctx context.Context, id string) (*approval.Decision, error) {
	if _, err := s.reqDAO.Load(ctx, id); err != nil {
		return nil, fmt.Errorf("%w: %s", approval.ErrRequestNotFound, id)
	}
	d, err := s.decDAO.Load(ctx, id)
	if errors.Is(err, dao.ErrNotFound) {
		return nil, nil
	}
	return d, err
}

func (s *service) Decide(ctx context.Context, id string, ok bool, decidedBy, reason string) (*approval.Decision, error) {
	if id == "" {
		return nil, errors.New("empty id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.reqDAO.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", approval.ErrRequestNotFound, id)
	}
	if _, err := s.decDAO.Load(ctx, id); err == nil {
		return nil, fmt.Errorf("%w: %s", approval.ErrAlreadyDecided, id)
	}
	d := &approval.Decision{
		ID:        id,
		RunID:     r.RunID,
		Approved:  ok,
		Reason:    reason,
		DecidedBy: decidedBy,
		DecidedAt: clock.Now(),
	}
	if err := s.decDAO.Save(ctx, d); err != nil {
		return nil, err
	}
	s.publish(ctx, &approval.Event{Topic: approval.TopicDecisionCreated, Data: d})
	return d, nil
}

func (s *service) Queue() messaging.Queue[approval.Event] { return s.events }

var _ approval.Service = (*service)(nil)
