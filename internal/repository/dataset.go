package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/datapeek/backend/internal/dataset"
	"github.com/datapeek/backend/internal/models"
)

// memoryDatasetRepository keeps datasets in process memory. Uploads
// are session-scoped: a restart clears them, matching the product's
// throwaway-analysis model.
type memoryDatasetRepository struct {
	mu      sync.RWMutex
	byID    map[string]*models.Dataset
	byShare map[string]string // share id -> dataset id
}

// NewMemoryDatasetRepository creates a new in-memory dataset repository
func NewMemoryDatasetRepository() DatasetRepository {
	return &memoryDatasetRepository{
		byID:    make(map[string]*models.Dataset),
		byShare: make(map[string]string),
	}
}

func (r *memoryDatasetRepository) Create(ctx context.Context, ds *models.Dataset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *ds
	r.byID[ds.ID] = &cp
	if ds.ShareID != "" {
		r.byShare[ds.ShareID] = ds.ID
	}
	return nil
}

func (r *memoryDatasetRepository) GetByID(ctx context.Context, id string) (*models.Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ds, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ds
	return &cp, nil
}

func (r *memoryDatasetRepository) GetByShareID(ctx context.Context, shareID string) (*models.Dataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byShare[shareID]
	if !ok {
		return nil, ErrNotFound
	}
	ds, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ds
	return &cp, nil
}

func (r *memoryDatasetRepository) List(ctx context.Context) ([]models.DatasetListItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	items := make([]models.DatasetListItem, 0, len(r.byID))
	for _, ds := range r.byID {
		item := models.DatasetListItem{
			ID:               ds.ID,
			ShareID:          ds.ShareID,
			OriginalFilename: ds.OriginalFilename,
			Status:           ds.Status,
			CreatedAt:        ds.CreatedAt,
		}
		if ds.Table != nil {
			item.Rows = ds.Table.RowCount()
			item.Cols = ds.Table.ColumnCount()
		}
		items = append(items, item)
	}
	// Newest first, id as tiebreak so the order is stable.
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (r *memoryDatasetRepository) SetReady(ctx context.Context, id string, t *dataset.Table, analysis *models.Analysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ds, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	ds.Table = t
	ds.Analysis = analysis
	ds.Status = models.StatusReady
	ds.Error = ""
	return nil
}

func (r *memoryDatasetRepository) SetFailed(ctx context.Context, id string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ds, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	ds.Status = models.StatusFailed
	ds.Error = reason
	return nil
}
