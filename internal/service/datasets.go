package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/datapeek/backend/internal/dataset"
	"github.com/datapeek/backend/internal/logger"
	"github.com/datapeek/backend/internal/models"
	"github.com/datapeek/backend/internal/repository"
)

// Sentinel errors surfaced to handlers.
var (
	// ErrDatasetNotReady means analysis has not finished yet.
	ErrDatasetNotReady = errors.New("dataset is still processing")

	// ErrDatasetFailed means the upload could not be analyzed.
	ErrDatasetFailed = errors.New("dataset analysis failed")
)

// MaxUploadBytes bounds accepted file size.
const MaxUploadBytes = 50 << 20

// AnalysisTimeout bounds one background analysis run.
const AnalysisTimeout = 2 * time.Minute

type datasetService struct {
	datasets repository.DatasetRepository
	jobs     repository.JobRepository
	logger   logger.Logger

	// baseCtx outlives the upload request so background analysis is
	// cancelled by server shutdown, not by the client disconnecting.
	baseCtx context.Context
}

// NewDatasetService creates a new dataset service
func NewDatasetService(baseCtx context.Context, datasets repository.DatasetRepository, jobs repository.JobRepository, log logger.Logger) DatasetService {
	return &datasetService{
		datasets: datasets,
		jobs:     jobs,
		logger:   log,
		baseCtx:  baseCtx,
	}
}

// Upload registers the file and queues analysis. The response carries
// the dataset in processing state; clients poll Status until ready.
func (s *datasetService) Upload(ctx context.Context, filename string, data []byte) (*models.Dataset, error) {
	if len(data) == 0 {
		return nil, models.NewValidationError("file", "file is empty")
	}
	if len(data) > MaxUploadBytes {
		return nil, models.NewValidationError("file", "file exceeds the %d MB limit", MaxUploadBytes>>20)
	}

	ds := &models.Dataset{
		ID:               uuid.New().String(),
		ShareID:          uuid.New().String(),
		OriginalFilename: filename,
		SizeBytes:        int64(len(data)),
		Status:           models.StatusProcessing,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.datasets.Create(ctx, ds); err != nil {
		return nil, fmt.Errorf("failed to create dataset: %w", err)
	}

	job, err := s.jobs.Create(ctx, ds.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to queue analysis: %w", err)
	}

	go s.runAnalysis(ds.ID, job.ID, filename, data)

	return ds, nil
}

// runAnalysis is the background job: parse, analyze, store. Every
// transition lands in the job record so Status polling sees progress.
func (s *datasetService) runAnalysis(datasetID string, jobID int64, filename string, data []byte) {
	ctx, cancel := context.WithTimeout(s.baseCtx, AnalysisTimeout)
	defer cancel()

	log := s.logger.With(logger.String("dataset_id", datasetID), logger.Int64("job_id", jobID))

	fail := func(reason string) {
		log.Error("analysis failed", logger.String("reason", reason))
		_ = s.jobs.SetStatus(ctx, jobID, models.JobFailed, 100, reason)
		_ = s.datasets.SetFailed(ctx, datasetID, reason)
	}

	_ = s.jobs.SetStatus(ctx, jobID, models.JobRunning, 10, "")

	t, err := dataset.LoadByName(filename, bytes.NewReader(data))
	if err != nil {
		fail(fmt.Sprintf("parse: %v", err))
		return
	}
	_ = s.jobs.SetStatus(ctx, jobID, models.JobRunning, 40, "")

	started := time.Now()
	analysis, err := Analyze(ctx, t)
	if err != nil {
		fail(fmt.Sprintf("analyze: %v", err))
		return
	}
	_ = s.jobs.SetStatus(ctx, jobID, models.JobRunning, 90, "")

	if err := s.datasets.SetReady(ctx, datasetID, t, analysis); err != nil {
		fail(fmt.Sprintf("store: %v", err))
		return
	}
	_ = s.jobs.SetStatus(ctx, jobID, models.JobSucceeded, 100, "")

	log.Info("analysis complete",
		logger.Int("rows", t.RowCount()),
		logger.Int("cols", t.ColumnCount()),
		logger.Int("charts", len(analysis.Charts)),
		logger.Duration("elapsed", time.Since(started)),
	)
}

func (s *datasetService) List(ctx context.Context) ([]models.DatasetListItem, error) {
	return s.datasets.List(ctx)
}

// Get resolves a dataset by its id, falling back to the share id so
// shared links hit the same endpoint.
func (s *datasetService) Get(ctx context.Context, id string) (*models.Dataset, error) {
	ds, err := s.datasets.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		ds, err = s.datasets.GetByShareID(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return ds, nil
}

func (s *datasetService) Status(ctx context.Context, id string) (*models.Job, error) {
	if _, err := s.datasets.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.jobs.GetByDatasetID(ctx, id)
}

// readyDataset fetches a dataset and enforces that analysis finished.
func readyDataset(ctx context.Context, repo repository.DatasetRepository, id string) (*models.Dataset, error) {
	ds, err := repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		ds, err = repo.GetByShareID(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	switch ds.Status {
	case models.StatusReady:
		return ds, nil
	case models.StatusFailed:
		return nil, ErrDatasetFailed
	default:
		return nil, ErrDatasetNotReady
	}
}
