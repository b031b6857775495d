package memory

import (
	"github.com/viant/hybrid/service/approval"
	"github.com/viant/hybrid/service/dao"
	"github.com/viant/hybrid/service/messaging"
)

// Option customises the memory approval service.
type Option func(*service)

// WithQueue replaces the event queue, e.g. with a blocking one when a
// listener is guaranteed to drain it.
func WithQueue(q messaging.Queue[approval.Event]) Option {
	return func(s *service) { s.events = q }
}

// WithStores persists requests and decisions through the supplied DAOs.
func WithStores(requests dao.Service[string, approval.Request], decisions dao.Service[string, approval.Decision]) Option {
	return func(s *service) {
		if requests != nil {
			s.reqDAO = requests
		}
		if decisions != nil {
			s.decDAO = decisions
		}
	}
}
