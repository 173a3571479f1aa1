package service

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/datapeek/backend/internal/dataset"
	"github.com/datapeek/backend/internal/models"
)

const (
	// SpikeZThreshold is the z-score floor for a time bucket to count
	// as a spike.
	SpikeZThreshold = 3.0

	// MinSpikeBuckets is the minimum bucketed series length; shorter
	// series have too little history for a meaningful baseline.
	MinSpikeBuckets = 10

	// SpikeBaselineWindow is how many trailing buckets the local
	// baseline covers. The scored bucket itself is excluded, so a
	// sustained level shift cannot hide inside its own baseline.
	SpikeBaselineWindow = 12

	// MinSpikeBaseline is the fewest trailing buckets a bucket needs
	// before it can be scored.
	MinSpikeBaseline = 5

	// SpikeStdFloor keeps the z denominator away from zero on flat
	// baselines: the baseline std is floored at this fraction of the
	// baseline mean's magnitude.
	SpikeStdFloor = 0.05

	// MaxSpikeMetrics bounds how many salient metrics are scanned for
	// spikes.
	MaxSpikeMetrics = 3

	// OutlierIQRFactor widens the Tukey fence; 3x flags only far-out
	// values.
	OutlierIQRFactor = 3.0

	// MinOutlierValues is the per-column sample floor for the IQR rule.
	MinOutlierValues = 50

	// MaxOutliersPerColumn / MaxOutlierColumns / MaxAnomalies bound the
	// report.
	MaxOutliersPerColumn = 10
	MaxOutlierColumns    = 6
	MaxAnomalies         = 50
)

// DetectAnomalies scans for time-series spikes on the best datetime
// column crossed with the leading metrics, then far-out single values
// by the 3x-IQR rule. Results are sorted by score descending and
// capped; scores are nonnegative deviation magnitudes.
func DetectAnomalies(t *dataset.Table, types map[string]string, profile *models.DatasetProfile) []models.Anomaly {
	var anomalies []models.Anomaly

	dateCol, grain := bestTimeColumn(t, types, profile)
	if dateCol != "" {
		metrics := rankMetrics(profile)
		if len(metrics) > MaxSpikeMetrics {
			metrics = metrics[:MaxSpikeMetrics]
		}
		for _, m := range metrics {
			anomalies = append(anomalies, detectSpikes(t, types, dateCol, grain, m)...)
		}
	}

	anomalies = append(anomalies, detectOutliers(t, types, profile)...)

	sort.Slice(anomalies, func(i, j int) bool {
		if anomalies[i].Score != anomalies[j].Score {
			return anomalies[i].Score > anomalies[j].Score
		}
		// Stable order for equal scores: spikes before outliers, then
		// by column name.
		if anomalies[i].Type != anomalies[j].Type {
			return anomalies[i].Type < anomalies[j].Type
		}
		ci := anomalies[i].MetricColumn + anomalies[i].Column
		cj := anomalies[j].MetricColumn + anomalies[j].Column
		return ci < cj
	})
	if len(anomalies) > MaxAnomalies {
		anomalies = anomalies[:MaxAnomalies]
	}
	return anomalies
}

// detectSpikes buckets the metric on the date column and scores each
// bucket against a local baseline: the mean and std of the trailing
// window, excluding the bucket itself. The first MinSpikeBaseline
// buckets carry too little history and are never scored.
func detectSpikes(t *dataset.Table, types map[string]string, dateCol, grain, metric string) []models.Anomaly {
	res, err := RunPivot(t, types, models.PivotRequest{
		DateColumn: dateCol,
		TimeGrain:  grain,
		Metric:     metric,
		Agg:        models.AggSum,
	})
	if err != nil || res.Chart == nil || len(res.Chart.Data) < MinSpikeBuckets {
		return nil
	}

	series := res.Chart.Data
	ys := make([]float64, len(series))
	for i, p := range series {
		ys[i] = p.Y
	}

	var out []models.Anomaly
	for i := MinSpikeBaseline; i < len(ys); i++ {
		lo := i - SpikeBaselineWindow
		if lo < 0 {
			lo = 0
		}
		window := ys[lo:i]
		m := mean(window)
		sd := stddev(window)
		if floor := SpikeStdFloor * math.Abs(m); sd < floor {
			sd = floor
		}
		if sd == 0 {
			// All-zero baseline; no meaningful scale to score against.
			continue
		}
		z := math.Abs(ys[i]-m) / sd
		if z < SpikeZThreshold {
			continue
		}
		bucket, err := time.Parse("2006-01-02", series[i].X)
		if err != nil {
			continue
		}
		out = append(out, models.Anomaly{
			Type:         "spike",
			DateColumn:   dateCol,
			MetricColumn: metric,
			Bucket:       bucket,
			Value:        ys[i],
			TimeGrain:    grain,
			Score:        z,
		})
	}
	return out
}

// detectOutliers applies the widened Tukey fence per numeric column.
func detectOutliers(t *dataset.Table, types map[string]string, profile *models.DatasetProfile) []models.Anomaly {
	metrics := rankMetrics(profile)
	if len(metrics) > MaxOutlierColumns {
		metrics = metrics[:MaxOutlierColumns]
	}

	var out []models.Anomaly
	for _, col := range metrics {
		vals, ok := t.NumericColumn(col)
		var xs []float64
		for i, v := range vals {
			if ok[i] {
				xs = append(xs, v)
			}
		}
		if len(xs) < MinOutlierValues {
			continue
		}
		p25 := quantile(xs, 0.25)
		p75 := quantile(xs, 0.75)
		iqr := p75 - p25
		if iqr == 0 {
			continue
		}
		low := p25 - OutlierIQRFactor*iqr
		high := p75 + OutlierIQRFactor*iqr

		var colOut []models.Anomaly
		for _, x := range xs {
			if x >= low && x <= high {
				continue
			}
			var score float64
			if x < low {
				score = (low - x) / iqr
			} else {
				score = (x - high) / iqr
			}
			colOut = append(colOut, models.Anomaly{
				Type:     "outlier",
				Column:   col,
				RowValue: x,
				Low:      low,
				High:     high,
				Score:    score,
			})
		}
		sort.Slice(colOut, func(i, j int) bool {
			if colOut[i].Score != colOut[j].Score {
				return colOut[i].Score > colOut[j].Score
			}
			return colOut[i].RowValue < colOut[j].RowValue
		})
		if len(colOut) > MaxOutliersPerColumn {
			colOut = colOut[:MaxOutliersPerColumn]
		}
		out = append(out, colOut...)
	}
	return out
}

// =============================================================================
// Explanation
// =============================================================================

// segmentDelta is one dimension value's contribution to a spike.
type segmentDelta struct {
	Value    string  `json:"value"`
	Current  float64 `json:"current"`
	Previous float64 `json:"previous"`
	Delta    float64 `json:"delta"`
}

// ExplainAnomaly decomposes a spike into segment contributions: the
// spike bucket's aggregate versus the previous bucket's, broken down
// by the best categorical dimension, all computed through the same
// pivot path as every other number in the product.
func ExplainAnomaly(t *dataset.Table, types map[string]string, profile *models.DatasetProfile, a models.Anomaly) (*models.PivotResult, error) {
	if a.Type != "spike" {
		return nil, models.NewValidationError("anomaly_index", "only spike anomalies can be explained")
	}

	dims := rankDimensions(profile)
	if len(dims) == 0 {
		return nil, models.NewValidationError("anomaly_index", "no categorical column available to segment by")
	}
	dim := dims[0]

	curFrom := a.Bucket
	curTo := NextBucket(curFrom, a.TimeGrain)
	prevFrom := PreviousBucket(curFrom, a.TimeGrain)

	current, err := RunPivot(t, types, models.PivotRequest{
		GroupBy:   []string{dim},
		Metric:    a.MetricColumn,
		Agg:       models.AggSum,
		TopN:      MaxTopN,
		ChartType: "table",
		TimeRange: &models.TimeWindow{Column: a.DateColumn, From: curFrom, To: curTo},
	})
	if err != nil {
		return nil, err
	}
	previous, err := RunPivot(t, types, models.PivotRequest{
		GroupBy:   []string{dim},
		Metric:    a.MetricColumn,
		Agg:       models.AggSum,
		TopN:      MaxTopN,
		ChartType: "table",
		TimeRange: &models.TimeWindow{Column: a.DateColumn, From: prevFrom, To: curFrom},
	})
	if err != nil {
		return nil, err
	}

	prevBy := make(map[string]float64)
	for _, row := range previous.Table.Rows {
		if y, ok := row["y"].(float64); ok {
			prevBy[fmt.Sprint(row[dim])] = y
		}
	}
	curBy := make(map[string]float64)
	for _, row := range current.Table.Rows {
		if y, ok := row["y"].(float64); ok {
			curBy[fmt.Sprint(row[dim])] = y
		}
	}

	keys := make(map[string]bool)
	for k := range curBy {
		keys[k] = true
	}
	for k := range prevBy {
		keys[k] = true
	}
	deltas := make([]segmentDelta, 0, len(keys))
	for k := range keys {
		d := segmentDelta{
			Value:    k,
			Current:  curBy[k],
			Previous: prevBy[k],
		}
		d.Delta = d.Current - d.Previous
		deltas = append(deltas, d)
	}
	sort.Slice(deltas, func(i, j int) bool {
		ai, aj := math.Abs(deltas[i].Delta), math.Abs(deltas[j].Delta)
		if ai != aj {
			return ai > aj
		}
		return deltas[i].Value < deltas[j].Value
	})

	table := &models.Table{Columns: []string{dim, "current", "previous", "delta"}}
	for _, d := range deltas {
		table.Rows = append(table.Rows, map[string]any{
			dim:        d.Value,
			"current":  d.Current,
			"previous": d.Previous,
			"delta":    d.Delta,
		})
	}

	text := fmt.Sprintf(
		"%s in the %s starting %s was %s. Compared with the previous %s, the largest movers by %s are shown below.",
		aggLabel(models.AggSum, a.MetricColumn), a.TimeGrain,
		a.Bucket.Format("2006-01-02"), trimFloat(a.Value), a.TimeGrain, dim,
	)
	if len(deltas) > 0 {
		lead := deltas[0]
		direction := "rose"
		if lead.Delta < 0 {
			direction = "fell"
		}
		text += fmt.Sprintf(" %s=%s %s by %s.", dim, lead.Value, direction, trimFloat(math.Abs(lead.Delta)))
	}

	ops := []models.Operation{
		{Op: "time_range", Column: a.DateColumn, From: prevFrom.Format(time.RFC3339), To: curTo.Format(time.RFC3339)},
		{Op: "groupby", Columns: []string{dim}},
		{Op: models.AggSum, Column: a.MetricColumn},
		{Op: "sort", Column: "delta", Order: "desc"},
	}
	citation := buildCitation("explain", t.RowCount(), len(deltas), ops)
	citation.ColumnsUsed = []string{a.DateColumn, a.MetricColumn, dim}

	return &models.PivotResult{
		Type:     "table",
		Text:     text,
		Table:    table,
		Citation: citation,
	}, nil
}
