package models

import (
	"time"

	"github.com/datapeek/backend/internal/dataset"
)

// Dataset processing states.
const (
	StatusProcessing = "processing"
	StatusReady      = "ready"
	StatusFailed     = "failed"
)

// Dataset is one uploaded tabular snapshot plus its analysis. The
// Table and Analysis are immutable once set; a re-analysis replaces
// the whole Analysis value.
type Dataset struct {
	ID               string           `json:"id"`
	ShareID          string           `json:"share_id"`
	OriginalFilename string           `json:"original_filename"`
	SizeBytes        int64            `json:"size_bytes"`
	Status           string           `json:"status"`
	Error            string           `json:"error,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	Table            *dataset.Table   `json:"-"`
	Analysis         *Analysis        `json:"analysis,omitempty"`
}

// DatasetListItem is the compact listing row.
type DatasetListItem struct {
	ID               string    `json:"dataset_id"`
	ShareID          string    `json:"share_id"`
	OriginalFilename string    `json:"original_filename"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	Rows             int       `json:"rows"`
	Cols             int       `json:"cols"`
}

// Job states for background analysis.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobSucceeded = "succeeded"
	JobFailed    = "failed"
)

// Job tracks one background analysis run.
type Job struct {
	ID        int64     `json:"id"`
	DatasetID string    `json:"dataset_id"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
