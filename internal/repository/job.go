package repository

import (
	"context"
	"sync"
	"time"

	"github.com/datapeek/backend/internal/models"
)

// memoryJobRepository tracks analysis jobs in process memory. One job
// per dataset: a re-enqueue replaces the previous record.
type memoryJobRepository struct {
	mu        sync.RWMutex
	nextID    int64
	byID      map[int64]*models.Job
	byDataset map[string]int64
}

// NewMemoryJobRepository creates a new in-memory job repository
func NewMemoryJobRepository() JobRepository {
	return &memoryJobRepository{
		byID:      make(map[int64]*models.Job),
		byDataset: make(map[string]int64),
	}
}

func (r *memoryJobRepository) Create(ctx context.Context, datasetID string) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	job := &models.Job{
		ID:        r.nextID,
		DatasetID: datasetID,
		Status:    models.JobQueued,
		UpdatedAt: time.Now().UTC(),
	}
	r.byID[job.ID] = job
	r.byDataset[datasetID] = job.ID
	cp := *job
	return &cp, nil
}

func (r *memoryJobRepository) GetByDatasetID(ctx context.Context, datasetID string) (*models.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byDataset[datasetID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r.byID[id]
	return &cp, nil
}

func (r *memoryJobRepository) SetStatus(ctx context.Context, id int64, status string, progress int, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	job.Status = status
	job.Progress = progress
	job.Error = errMsg
	job.UpdatedAt = time.Now().UTC()
	return nil
}
