package service

import (
	"context"

	"github.com/datapeek/backend/internal/models"
	"github.com/datapeek/backend/internal/repository"
)

type pivotService struct {
	datasets repository.DatasetRepository
}

// NewPivotService creates a new pivot service
func NewPivotService(datasets repository.DatasetRepository) PivotService {
	return &pivotService{datasets: datasets}
}

func (s *pivotService) Pivot(ctx context.Context, datasetID string, req models.PivotRequest) (*models.PivotResult, error) {
	ds, err := readyDataset(ctx, s.datasets, datasetID)
	if err != nil {
		return nil, err
	}
	return RunPivot(ds.Table, ds.Analysis.Types, req)
}

func (s *pivotService) Explain(ctx context.Context, datasetID string, anomalyIndex int) (*models.PivotResult, error) {
	ds, err := readyDataset(ctx, s.datasets, datasetID)
	if err != nil {
		return nil, err
	}
	anomalies := ds.Analysis.Anomalies
	if anomalyIndex < 0 || anomalyIndex >= len(anomalies) {
		return nil, models.NewValidationError("anomaly_index", "index %d out of range (have %d anomalies)", anomalyIndex, len(anomalies))
	}
	return ExplainAnomaly(ds.Table, ds.Analysis.Types, ds.Analysis.Profile, anomalies[anomalyIndex])
}
