package service

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/datapeek/backend/internal/dataset"
	"github.com/datapeek/backend/internal/models"
)

const (
	// DefaultTopN is applied when a categorical pivot omits top_n.
	DefaultTopN = 12

	// MaxTopN bounds requested truncation.
	MaxTopN = 100
)

// RunPivot executes one deterministic aggregation query against an
// immutable table. It is the single computation path behind UI pivots,
// executive-brief drivers, anomaly explanation, and deterministic chat
// answers; no caller gets a private variant.
//
// Categorical mode groups by up to MaxGroupByColumns columns, sorts
// descending by the aggregate, and truncates to top_n (groups beyond
// the cut are dropped, not folded into an "Other" bucket). Time-series
// mode buckets on calendar boundaries and returns the full range in
// chronological order.
func RunPivot(t *dataset.Table, types map[string]string, req models.PivotRequest) (*models.PivotResult, error) {
	if err := validatePivot(t, types, &req); err != nil {
		return nil, err
	}

	rows := selectRows(t, req.Filters, req.TimeRange)

	if req.DateColumn != "" {
		return pivotTimeSeries(t, req, rows)
	}
	return pivotCategorical(t, req, rows)
}

func validatePivot(t *dataset.Table, types map[string]string, req *models.PivotRequest) error {
	if len(req.GroupBy) == 0 && req.DateColumn == "" {
		return models.NewValidationError("group_by", "select at least one group_by column or a date column")
	}
	if len(req.GroupBy) > 0 && req.DateColumn != "" {
		return models.NewValidationError("group_by", "group_by and date_column are mutually exclusive")
	}
	if len(req.GroupBy) > models.MaxGroupByColumns {
		return models.NewValidationError("group_by", "at most %d group_by columns supported", models.MaxGroupByColumns)
	}

	for _, g := range req.GroupBy {
		if !t.HasColumn(g) {
			return models.NewValidationError("group_by", "unknown column %q", g)
		}
		switch types[g] {
		case models.TypeNumeric, models.TypeDatetime:
			return models.NewValidationError("group_by", "column %q is %s; group_by needs a categorical or identifier column", g, types[g])
		}
	}

	if req.DateColumn != "" {
		if !t.HasColumn(req.DateColumn) {
			return models.NewValidationError("date_column", "unknown column %q", req.DateColumn)
		}
		if types[req.DateColumn] != models.TypeDatetime {
			return models.NewValidationError("date_column", "column %q is %s, not datetime", req.DateColumn, types[req.DateColumn])
		}
		if req.TimeGrain == "" {
			req.TimeGrain = models.GrainMonth
		}
		switch req.TimeGrain {
		case models.GrainDay, models.GrainWeek, models.GrainMonth:
		default:
			return models.NewValidationError("time_grain", "unknown grain %q (want day, week, or month)", req.TimeGrain)
		}
	}

	if req.Metric != "" {
		if !t.HasColumn(req.Metric) {
			return models.NewValidationError("metric", "unknown column %q", req.Metric)
		}
		if types[req.Metric] != models.TypeNumeric {
			return models.NewValidationError("metric", "column %q is %s, not numeric", req.Metric, types[req.Metric])
		}
	}

	switch req.Agg {
	case "":
		if req.Metric == "" {
			req.Agg = models.AggCount
		} else {
			req.Agg = models.AggSum
		}
	case models.AggSum, models.AggMean, models.AggMin, models.AggMax:
		if req.Metric == "" {
			return models.NewValidationError("metric", "aggregation %q requires a numeric metric column", req.Agg)
		}
	case models.AggCount:
	default:
		return models.NewValidationError("agg", "unknown aggregation %q", req.Agg)
	}

	if req.TopN < 0 || req.TopN > MaxTopN {
		return models.NewValidationError("top_n", "top_n must be between 1 and %d", MaxTopN)
	}
	if req.TopN == 0 {
		req.TopN = DefaultTopN
	}

	for col := range req.Filters {
		if !t.HasColumn(col) {
			return models.NewValidationError("filters", "unknown column %q", col)
		}
	}
	if req.TimeRange != nil {
		if !t.HasColumn(req.TimeRange.Column) {
			return models.NewValidationError("time_range", "unknown column %q", req.TimeRange.Column)
		}
		if types[req.TimeRange.Column] != models.TypeDatetime {
			return models.NewValidationError("time_range", "column %q is not datetime", req.TimeRange.Column)
		}
	}
	return nil
}

// selectRows applies equality filters and the optional half-open time
// window, returning the surviving row indexes in original order.
func selectRows(t *dataset.Table, filters map[string][]string, window *models.TimeWindow) []int {
	var winVals []time.Time
	var winOK []bool
	if window != nil {
		winVals, winOK = t.TimeColumn(window.Column)
	}

	rows := make([]int, 0, t.RowCount())
	for r := 0; r < t.RowCount(); r++ {
		keep := true
		for col, allowed := range filters {
			cell := t.Cell(r, col).AsString()
			match := false
			for _, want := range allowed {
				if cell == want {
					match = true
					break
				}
			}
			if !match {
				keep = false
				break
			}
		}
		if keep && window != nil {
			if !winOK[r] {
				keep = false
			} else if winVals[r].Before(window.From) || !winVals[r].Before(window.To) {
				keep = false
			}
		}
		if keep {
			rows = append(rows, r)
		}
	}
	return rows
}

// =============================================================================
// Categorical mode
// =============================================================================

type groupAccum struct {
	key    []string
	sum    float64
	min    float64
	max    float64
	count  int
	hasVal bool
}

func pivotCategorical(t *dataset.Table, req models.PivotRequest, rows []int) (*models.PivotResult, error) {
	var metricVals []float64
	var metricOK []bool
	if req.Metric != "" {
		metricVals, metricOK = t.NumericColumn(req.Metric)
	}

	groups := make(map[string]*groupAccum)
	for _, r := range rows {
		key := make([]string, len(req.GroupBy))
		null := false
		for i, g := range req.GroupBy {
			cell := t.Cell(r, g)
			if cell.IsNull() {
				null = true
				break
			}
			key[i] = cell.AsString()
		}
		if null {
			continue // null group keys are filtered, not grouped
		}
		if req.Metric != "" && req.Agg != models.AggCount && !metricOK[r] {
			continue
		}

		ck := strings.Join(key, "\x1f")
		acc, ok := groups[ck]
		if !ok {
			acc = &groupAccum{key: key}
			groups[ck] = acc
		}
		acc.count++
		if req.Metric != "" && metricOK[r] {
			v := metricVals[r]
			acc.sum += v
			if !acc.hasVal || v < acc.min {
				acc.min = v
			}
			if !acc.hasVal || v > acc.max {
				acc.max = v
			}
			acc.hasVal = true
		}
	}

	type groupRow struct {
		key []string
		y   float64
	}
	out := make([]groupRow, 0, len(groups))
	for _, acc := range groups {
		out = append(out, groupRow{key: acc.key, y: aggregateValue(acc, req.Agg)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].y != out[j].y {
			return out[i].y > out[j].y
		}
		return strings.Join(out[i].key, "\x1f") < strings.Join(out[j].key, "\x1f")
	})
	if len(out) > req.TopN {
		out = out[:req.TopN]
	}

	columns := append(append([]string{}, req.GroupBy...), "y")
	table := &models.Table{Columns: columns}
	for _, g := range out {
		row := make(map[string]any, len(columns))
		for i, col := range req.GroupBy {
			row[col] = g.key[i]
		}
		row["y"] = g.y
		table.Rows = append(table.Rows, row)
	}

	yLabel := aggLabel(req.Agg, req.Metric)
	citation := buildCitation("pivot", len(rows), len(out), pivotOperations(req, false))
	citation.ColumnsUsed = columnsUsed(req)

	result := &models.PivotResult{
		Type:     "table",
		Text:     fmt.Sprintf("%s grouped by %s, sorted descending, top %d shown.", yLabel, strings.Join(req.GroupBy, ", "), req.TopN),
		Table:    table,
		Citation: citation,
	}

	if req.ChartType != "table" {
		xCol := req.GroupBy[len(req.GroupBy)-1]
		chart := &models.Chart{
			Type:  "bar",
			Title: fmt.Sprintf("%s by %s", yLabel, xCol),
			X:     xCol,
			Y:     req.Metric,
			Agg:   req.Agg,
		}
		for _, g := range out {
			chart.Data = append(chart.Data, models.SeriesPoint{X: strings.Join(g.key, " / "), Y: g.y})
		}
		result.Type = "chart"
		result.Chart = chart
	}
	return result, nil
}

func aggregateValue(acc *groupAccum, agg string) float64 {
	switch agg {
	case models.AggCount:
		return float64(acc.count)
	case models.AggMean:
		if acc.count == 0 {
			return 0
		}
		return acc.sum / float64(acc.count)
	case models.AggMin:
		return acc.min
	case models.AggMax:
		return acc.max
	default:
		return acc.sum
	}
}

// =============================================================================
// Time-series mode
// =============================================================================

func pivotTimeSeries(t *dataset.Table, req models.PivotRequest, rows []int) (*models.PivotResult, error) {
	times, timeOK := t.TimeColumn(req.DateColumn)
	var metricVals []float64
	var metricOK []bool
	if req.Metric != "" {
		metricVals, metricOK = t.NumericColumn(req.Metric)
	}

	buckets := make(map[time.Time]*groupAccum)
	for _, r := range rows {
		if !timeOK[r] {
			continue
		}
		if req.Metric != "" && req.Agg != models.AggCount && !metricOK[r] {
			continue
		}
		b := BucketTime(times[r], req.TimeGrain)
		acc, ok := buckets[b]
		if !ok {
			acc = &groupAccum{}
			buckets[b] = acc
		}
		acc.count++
		if req.Metric != "" && metricOK[r] {
			v := metricVals[r]
			acc.sum += v
			if !acc.hasVal || v < acc.min {
				acc.min = v
			}
			if !acc.hasVal || v > acc.max {
				acc.max = v
			}
			acc.hasVal = true
		}
	}

	keys := make([]time.Time, 0, len(buckets))
	for b := range buckets {
		keys = append(keys, b)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	yLabel := aggLabel(req.Agg, req.Metric)
	table := &models.Table{Columns: []string{req.DateColumn, "y"}}
	chart := &models.Chart{
		Type:      "line",
		Title:     fmt.Sprintf("%s over time", yLabel),
		X:         req.DateColumn,
		Y:         req.Metric,
		Agg:       req.Agg,
		TimeGrain: req.TimeGrain,
	}
	for _, b := range keys {
		y := aggregateValue(buckets[b], req.Agg)
		table.Rows = append(table.Rows, map[string]any{
			req.DateColumn: b.Format(time.RFC3339),
			"y":            y,
		})
		chart.Data = append(chart.Data, models.SeriesPoint{X: b.Format("2006-01-02"), Y: y})
	}

	citation := buildCitation("pivot", len(rows), len(keys), pivotOperations(req, true))
	citation.ColumnsUsed = columnsUsed(req)

	result := &models.PivotResult{
		Type:     "chart",
		Text:     fmt.Sprintf("%s bucketed by %s over %s.", yLabel, req.TimeGrain, req.DateColumn),
		Table:    table,
		Chart:    chart,
		Citation: citation,
	}
	if req.ChartType == "table" {
		result.Type = "table"
		result.Chart = nil
	}
	return result, nil
}

// BucketTime maps a timestamp onto its calendar bucket start: the
// calendar date for day, the ISO week's Monday for week, the first of
// the month for month.
func BucketTime(ts time.Time, grain string) time.Time {
	switch grain {
	case models.GrainWeek:
		back := (int(ts.Weekday()) + 6) % 7
		d := ts.AddDate(0, 0, -back)
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	case models.GrainMonth:
		return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
	}
}

// PreviousBucket returns the bucket immediately before the given
// bucket start at the same grain.
func PreviousBucket(bucket time.Time, grain string) time.Time {
	switch grain {
	case models.GrainWeek:
		return bucket.AddDate(0, 0, -7)
	case models.GrainMonth:
		return bucket.AddDate(0, -1, 0)
	default:
		return bucket.AddDate(0, 0, -1)
	}
}

// NextBucket returns the bucket start immediately after the given one.
func NextBucket(bucket time.Time, grain string) time.Time {
	switch grain {
	case models.GrainWeek:
		return bucket.AddDate(0, 0, 7)
	case models.GrainMonth:
		return bucket.AddDate(0, 1, 0)
	default:
		return bucket.AddDate(0, 0, 1)
	}
}

// =============================================================================
// Citations
// =============================================================================

func buildCitation(source string, scanned, returned int, ops []models.Operation) *models.Citation {
	return &models.Citation{
		Computed:     true,
		Source:       source,
		Operations:   ops,
		RowsScanned:  scanned,
		RowsReturned: returned,
	}
}

func pivotOperations(req models.PivotRequest, timeSeries bool) []models.Operation {
	var ops []models.Operation
	if len(req.Filters) > 0 {
		ops = append(ops, models.Operation{Op: "filter", Filters: req.Filters})
	}
	if req.TimeRange != nil {
		ops = append(ops, models.Operation{
			Op:     "time_range",
			Column: req.TimeRange.Column,
			From:   req.TimeRange.From.Format(time.RFC3339),
			To:     req.TimeRange.To.Format(time.RFC3339),
		})
	}
	if timeSeries {
		ops = append(ops, models.Operation{Op: "time_bucket", Column: req.DateColumn, Grain: req.TimeGrain})
		ops = append(ops, models.Operation{Op: req.Agg, Column: metricOrRows(req.Metric)})
		ops = append(ops, models.Operation{Op: "sort", Column: req.DateColumn, Order: "asc"})
		return ops
	}
	ops = append(ops, models.Operation{Op: "groupby", Columns: req.GroupBy})
	ops = append(ops, models.Operation{Op: req.Agg, Column: metricOrRows(req.Metric)})
	ops = append(ops, models.Operation{Op: "sort", Column: "y", Order: "desc"})
	ops = append(ops, models.Operation{Op: "limit", N: req.TopN})
	return ops
}

func columnsUsed(req models.PivotRequest) []string {
	var cols []string
	cols = append(cols, req.GroupBy...)
	if req.DateColumn != "" {
		cols = append(cols, req.DateColumn)
	}
	if req.Metric != "" {
		cols = append(cols, req.Metric)
	}
	return cols
}

func aggLabel(agg, metric string) string {
	if metric == "" || agg == models.AggCount {
		return "count"
	}
	return fmt.Sprintf("%s(%s)", agg, metric)
}

func metricOrRows(metric string) string {
	if metric == "" {
		return "__rows__"
	}
	return metric
}
