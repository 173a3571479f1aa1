package service

import (
	"context"
	"fmt"
	"time"

	"github.com/datapeek/backend/internal/dataset"
	"github.com/datapeek/backend/internal/models"
)

// PreviewRowCount is how many raw rows ship with an analysis.
const PreviewRowCount = 50

// Analyze runs the full pipeline over an immutable table snapshot:
// type inference, profiling, chart recommendation and materialization,
// anomaly detection, insights, executive brief, dictionary, overview,
// PII scan, and preview. Inference and profiling are load-bearing and
// abort the run on panic; every later stage degrades to a recorded
// omission so one bad column never takes down the whole analysis.
//
// The context is checked between stages; a cancelled upload stops
// paying for the remaining stages.
func Analyze(ctx context.Context, t *dataset.Table) (*models.Analysis, error) {
	started := time.Now()
	analysis := &models.Analysis{}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	analysis.Types = InferColumnTypes(t)
	analysis.Profile = BuildProfile(t, analysis.Types)

	stages := []struct {
		name string
		run  func()
	}{
		{"charts", func() {
			analysis.ChartSpecs = RecommendCharts(t, analysis.Types, analysis.Profile)
			analysis.Charts = MaterializeCharts(t, analysis.Types, analysis.ChartSpecs)
		}},
		{"anomalies", func() {
			analysis.Anomalies = DetectAnomalies(t, analysis.Types, analysis.Profile)
		}},
		{"insights", func() {
			analysis.Insights = BuildInsights(analysis.Profile, analysis.Anomalies, len(analysis.Charts))
		}},
		{"brief", func() {
			analysis.Brief = BuildBrief(t, analysis.Types, analysis.Profile)
		}},
		{"dictionary", func() {
			analysis.Dictionary = BuildDictionary(analysis.Profile)
		}},
		{"overview", func() {
			analysis.Overview = BuildOverview(t, analysis.Types, analysis.Profile, analysis.Insights)
		}},
		{"pii", func() {
			analysis.PII = ScanPII(t)
		}},
		{"preview", func() {
			analysis.Preview = t.PreviewRows(PreviewRowCount)
		}},
	}

	for _, stage := range stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if reason := runStage(stage.run); reason != "" {
			analysis.Omissions = append(analysis.Omissions, models.StageOmission{
				Stage:  stage.name,
				Reason: reason,
			})
		}
	}

	analysis.Meta = models.AnalysisMeta{
		RowCount:       t.RowCount(),
		ColumnCount:    t.ColumnCount(),
		ChartCount:     len(analysis.Charts),
		AnalysisTimeMS: time.Since(started).Milliseconds(),
	}
	return analysis, nil
}

// runStage executes one stage, converting a panic into a reason
// string. Returns "" on success.
func runStage(fn func()) (reason string) {
	defer func() {
		if r := recover(); r != nil {
			reason = fmt.Sprintf("stage failed: %v", r)
		}
	}()
	fn()
	return ""
}
