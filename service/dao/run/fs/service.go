// Package fs stores runs as JSON documents on any afs supported location
// (local disk, mem://, s3://, gs://).
package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"
	"github.com/viant/hybrid/model"
	"github.com/viant/hybrid/service/dao"
	"github.com/viant/hybrid/service/dao/run"
)

// Service implements a filesystem-based run storage
type Service struct {
	basePath string
	fs       afs.Service
	mu       sync.RWMutex
}

var _ dao.Service[string, model.Run] = (*Service)(nil)

// Save persists a run
func (s *Service) Save(ctx context.Context, aRun *model.Run) error {
	if aRun == nil {
		return dao.ErrNilEntity
	}
	if aRun.ID == "" {
		return dao.ErrInvalidID
	}
	data, err := json.Marshal(aRun)
	if err != nil {
		return fmt.Errorf("failed to marshal run %v: %w", aRun.ID, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	filePath := s.runPath(aRun.ID)
	if err = s.fs.Upload(ctx, filePath, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to save run to file %s: %w", filePath, err)
	}
	return nil
}

// Load retrieves a run
func (s *Service) Load(ctx context.Context, id string) (*model.Run, error) {
	if id == "" {
		return nil, dao.ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	filePath := s.runPath(id)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to check if run exists: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: run %s", dao.ErrNotFound, id)
	}
	data, err := s.fs.DownloadWithURL(ctx, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read run file: %w", err)
	}
	aRun := &model.Run{}
	if err = json.Unmarshal(data, aRun); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run %v: %w", id, err)
	}
	return aRun, nil
}

// Delete removes a run
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return dao.ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	filePath := s.runPath(id)
	exists, err := s.fs.Exists(ctx, filePath)
	if err != nil {
		return fmt.Errorf("failed to check if run exists: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: run %s", dao.ErrNotFound, id)
	}
	if err = s.fs.Delete(ctx, filePath); err != nil {
		return fmt.Errorf("failed to delete run file: %w", err)
	}
	return nil
}

// List returns matching runs ordered by creation time. Unreadable documents
// are logged and skipped.
func (s *Service) List(ctx context.Context, parameters ...*dao.Parameter) ([]*model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	objects, err := s.fs.List(ctx, s.basePath, option.NewRecursive(true))
	if err != nil {
		return nil, fmt.Errorf("failed to list run files: %w", err)
	}
	var runs []*model.Run
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		data, err := s.fs.Download(ctx, object)
		if err != nil {
			log.Printf("failed to read run file %s: %v", object.URL(), err)
			continue
		}
		aRun := &model.Run{}
		if err := json.Unmarshal(data, aRun); err != nil {
			log.Printf("failed to unmarshal run from %s: %v", object.URL(), err)
			continue
		}
		if !run.Matches(aRun, parameters) {
			continue
		}
		runs = append(runs, aRun)
	}
	run.SortByCreation(runs)
	return runs, nil
}

func (s *Service) runPath(id string) string {
	return url.Join(s.basePath, id+".json")
}

// New creates a run store rooted at baseURL.
func New(ctx context.Context, baseURL string) (*Service, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	fs := afs.New()
	baseURL = url.Normalize(baseURL, file.Scheme)
	exists, _ := fs.Exists(ctx, baseURL)
	if !exists {
		if err := fs.Create(ctx, baseURL, file.DefaultDirOsMode, true); err != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", err)
		}
	}
	return &Service{basePath: baseURL, fs: fs}, nil
}
