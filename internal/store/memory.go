package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stemscribe/api/internal/model"
)

// MemoryStore is an in-memory Store with the same semantics as the redis
// implementation. It backs tests and local development without a datastore.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*model.Job),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Create(ctx context.Context, job *model.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("job %s: %w", job.ID, ErrAlreadyExists)
	}

	clone := *job
	s.jobs[job.ID] = &clone
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, jobID string, u Update) (*model.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}

	if err := merge(job, u); err != nil {
		return nil, err
	}
	job.UpdatedAt = time.Now().UTC()

	clone := *job
	return &clone, nil
}

func (s *MemoryStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}

	clone := *job
	return &clone, nil
}
