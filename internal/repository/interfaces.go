package repository

import (
	"context"
	"errors"

	"github.com/datapeek/backend/internal/dataset"
	"github.com/datapeek/backend/internal/models"
)

// ErrNotFound is returned when a lookup misses.
var ErrNotFound = errors.New("not found")

// DatasetRepository defines the interface for dataset storage
type DatasetRepository interface {
	Create(ctx context.Context, ds *models.Dataset) error
	GetByID(ctx context.Context, id string) (*models.Dataset, error)
	GetByShareID(ctx context.Context, shareID string) (*models.Dataset, error)
	List(ctx context.Context) ([]models.DatasetListItem, error)
	SetReady(ctx context.Context, id string, t *dataset.Table, analysis *models.Analysis) error
	SetFailed(ctx context.Context, id string, reason string) error
}

// JobRepository defines the interface for background job tracking
type JobRepository interface {
	Create(ctx context.Context, datasetID string) (*models.Job, error)
	GetByDatasetID(ctx context.Context, datasetID string) (*models.Job, error)
	SetStatus(ctx context.Context, id int64, status string, progress int, errMsg string) error
}
