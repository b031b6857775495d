// Package memory stores runs in process memory.
package memory

import (
	"github.com/viant/hybrid/model"
	"github.com/viant/hybrid/service/dao"
	"github.com/viant/hybrid/service/dao/run"
	"github.com/viant/hybrid/service/dao/store"
)

// Service is a thread-safe in-memory run store. Runs are copied on Save and
// Load so readers never observe a run being driven, and List returns them
// ordered by creation time.
type Service struct {
	*store.MemoryStore[string, model.Run]
}

var _ dao.Service[string, model.Run] = (*Service)(nil)

// New creates a memory run store.
func New() *Service {
	return &Service{
		MemoryStore: store.NewMemoryStore[string, model.Run](
			func(r *model.Run) string { return r.ID },
			store.WithCopier[string, model.Run]((*model.Run).Clone),
			store.WithFilter[string, model.Run](run.Matches),
			store.WithSorter[string, model.Run](run.SortByCreation),
		),
	}
}
