package service

import (
	"context"

	"github.com/datapeek/backend/internal/models"
)

// DatasetService defines the interface for dataset lifecycle logic
type DatasetService interface {
	Upload(ctx context.Context, filename string, data []byte) (*models.Dataset, error)
	List(ctx context.Context) ([]models.DatasetListItem, error)
	Get(ctx context.Context, id string) (*models.Dataset, error)
	Status(ctx context.Context, id string) (*models.Job, error)
}

// PivotService defines the interface for aggregation queries
type PivotService interface {
	Pivot(ctx context.Context, datasetID string, req models.PivotRequest) (*models.PivotResult, error)
	Explain(ctx context.Context, datasetID string, anomalyIndex int) (*models.PivotResult, error)
}

// ChatService defines the interface for dataset Q&A
type ChatService interface {
	Ask(ctx context.Context, datasetID, question string) (*models.ChatAnswer, error)
}
