package service

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/datapeek/backend/internal/dataset"
	"github.com/datapeek/backend/internal/models"
)

const (
	// MaxCharts caps the recommended gallery.
	MaxCharts = 14

	// MaxTrendCharts bounds metric-over-time lines.
	MaxTrendCharts = 3

	// MaxCountBars / MaxMetricBars bound the breakdown section.
	MaxCountBars  = 3
	MaxMetricBars = 2

	// MaxHistograms bounds the distribution section.
	MaxHistograms = 3

	// MaxScatterCharts bounds correlation scatters.
	MaxScatterCharts = 2

	// HistogramBins is the fixed bin count; edges are clipped to the
	// p1/p99 range so a single extreme value cannot flatten the shape.
	HistogramBins = 20

	// BarTopN is the category cut for bar breakdowns.
	BarTopN = 12

	// MaxScatterPoints caps a scatter series; rows beyond it are
	// stride-sampled so the same dataset always yields the same points.
	MaxScatterPoints = 1000

	// Dimension candidates need between MinDimCardinality and
	// MaxDimCardinality distinct values to chart legibly.
	MinDimCardinality = 2
	MaxDimCardinality = 60

	// Grain selection aims for a bucket count inside [MinTrendBuckets,
	// MaxTrendBuckets]; finer grains win ties.
	MinTrendBuckets = 8
	MaxTrendBuckets = 60
)

// businessMetricBoost rewards columns whose names suggest a business
// quantity when ranking metrics.
var businessMetricBoost = []string{
	"revenue", "sales", "amount", "price", "cost", "profit",
	"total", "value", "spend", "qty", "quantity", "units",
}

// RecommendCharts derives the ordered chart-spec gallery from the
// table and its profile. The rule cascade is fixed, so the same
// dataset always yields the same specs in the same order.
func RecommendCharts(t *dataset.Table, types map[string]string, profile *models.DatasetProfile) []models.ChartSpec {
	metrics := rankMetrics(profile)
	dims := rankDimensions(profile)
	dateCol, grain := bestTimeColumn(t, types, profile)

	var specs []models.ChartSpec
	seen := make(map[string]bool)
	add := func(s models.ChartSpec) {
		if len(specs) >= MaxCharts || seen[s.ID] {
			return
		}
		seen[s.ID] = true
		specs = append(specs, s)
	}

	if dateCol != "" {
		add(models.ChartSpec{
			ID:        fmt.Sprintf("line:%s:%s", dateCol, models.CountMetric),
			Type:      "line",
			X:         dateCol,
			Y:         models.CountMetric,
			Agg:       models.AggCount,
			TimeGrain: grain,
			Title:     fmt.Sprintf("Rows over time (%s)", grain),
			Section:   models.SectionRecommended,
			Reason:    fmt.Sprintf("%s covers the dataset's time range", dateCol),
		})
		for i, m := range metrics {
			if i >= MaxTrendCharts {
				break
			}
			add(models.ChartSpec{
				ID:        fmt.Sprintf("line:%s:%s", dateCol, m),
				Type:      "line",
				X:         dateCol,
				Y:         m,
				Agg:       models.AggSum,
				TimeGrain: grain,
				Title:     fmt.Sprintf("%s over time (%s)", m, grain),
				Section:   models.SectionTrends,
				Reason:    fmt.Sprintf("%s is a leading numeric column", m),
			})
		}
	}

	for i, d := range dims {
		if i >= MaxCountBars {
			break
		}
		section := models.SectionBreakdowns
		if dateCol == "" && i == 0 {
			// Without a time axis the leading breakdown is the headline
			// chart.
			section = models.SectionRecommended
		}
		add(models.ChartSpec{
			ID:      fmt.Sprintf("bar:%s:%s", d, models.CountMetric),
			Type:    "bar",
			X:       d,
			Y:       models.CountMetric,
			Agg:     models.AggCount,
			Limit:   BarTopN,
			Title:   fmt.Sprintf("Count by %s", d),
			Section: section,
			Reason:  fmt.Sprintf("%s has few distinct values", d),
		})
	}

	if len(metrics) > 0 {
		for i, d := range dims {
			if i >= MaxMetricBars {
				break
			}
			add(models.ChartSpec{
				ID:      fmt.Sprintf("bar:%s:%s", d, metrics[0]),
				Type:    "bar",
				X:       d,
				Y:       metrics[0],
				Agg:     models.AggSum,
				Limit:   BarTopN,
				Title:   fmt.Sprintf("%s by %s", metrics[0], d),
				Section: models.SectionBreakdowns,
				Reason:  fmt.Sprintf("%s broken down by %s", metrics[0], d),
			})
		}
	}

	if len(dims) >= 2 && len(metrics) > 0 {
		add(models.ChartSpec{
			ID:      fmt.Sprintf("combo:%s:%s:%s", dims[0], dims[1], metrics[0]),
			Type:    "table_combo",
			A:       dims[0],
			B:       dims[1],
			Y:       metrics[0],
			Agg:     models.AggSum,
			Limit:   BarTopN,
			Title:   fmt.Sprintf("%s by %s and %s", metrics[0], dims[0], dims[1]),
			Section: models.SectionRecommended,
			Reason:  "two-dimension breakdown of the leading metric",
		})
	}

	for i, m := range metrics {
		if i >= MaxHistograms {
			break
		}
		add(models.ChartSpec{
			ID:      fmt.Sprintf("hist:%s", m),
			Type:    "hist",
			X:       m,
			Bins:    HistogramBins,
			Title:   fmt.Sprintf("Distribution of %s", m),
			Section: models.SectionDistributions,
			Reason:  fmt.Sprintf("shape of %s", m),
		})
	}

	for i, c := range profile.Correlations {
		if i >= MaxScatterCharts {
			break
		}
		add(models.ChartSpec{
			ID:      fmt.Sprintf("scatter:%s:%s", c.A, c.B),
			Type:    "scatter",
			X:       c.A,
			Y:       c.B,
			Title:   fmt.Sprintf("%s vs %s", c.A, c.B),
			Section: models.SectionRelationships,
			Reason:  fmt.Sprintf("strong correlation (r=%.2f)", c.R),
		})
	}

	// A dataset with no time column and no usable dimension still gets
	// something to look at.
	if len(specs) == 0 {
		add(models.ChartSpec{
			ID:      "table:preview",
			Type:    "table",
			Title:   "Data preview",
			Section: models.SectionTables,
			Reason:  "no chartable columns detected",
		})
	}
	return specs
}

// rankMetrics orders numeric columns by salience: spread scaled by
// coverage, boosted when the name looks like a business quantity.
func rankMetrics(profile *models.DatasetProfile) []string {
	type scored struct {
		name  string
		score float64
	}
	var out []scored
	for _, c := range profile.Columns {
		if c.Type != models.TypeNumeric || c.Numeric == nil || c.IsIDLike {
			continue
		}
		coverage := 1 - c.MissingPct
		score := c.Numeric.Std * (0.25 + coverage)
		lower := strings.ToLower(c.Name)
		for _, kw := range businessMetricBoost {
			if strings.Contains(lower, kw) {
				score *= 2
				break
			}
		}
		out = append(out, scored{c.Name, score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].name < out[j].name
	})
	names := make([]string, len(out))
	for i, s := range out {
		names[i] = s.name
	}
	return names
}

// rankDimensions orders categorical columns by chartability: low but
// non-trivial cardinality first, id-like columns excluded.
func rankDimensions(profile *models.DatasetProfile) []string {
	type scored struct {
		name     string
		distinct int
	}
	var out []scored
	for _, c := range profile.Columns {
		if c.Type != models.TypeCategorical || c.IsIDLike {
			continue
		}
		if c.Distinct < MinDimCardinality || c.Distinct > MaxDimCardinality {
			continue
		}
		out = append(out, scored{c.Name, c.Distinct})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].distinct != out[j].distinct {
			return out[i].distinct < out[j].distinct
		}
		return out[i].name < out[j].name
	})
	names := make([]string, len(out))
	for i, s := range out {
		names[i] = s.name
	}
	return names
}

// bestTimeColumn picks the datetime column with the highest parse rate
// (ties by name) and the calendar grain whose bucket count over the
// column's span lands inside the target window.
func bestTimeColumn(t *dataset.Table, types map[string]string, profile *models.DatasetProfile) (string, string) {
	best := ""
	bestRate := 0.0
	var span time.Duration
	for _, c := range profile.Columns {
		if c.Type != models.TypeDatetime || c.Time == nil {
			continue
		}
		if best == "" || c.Time.ParseRate > bestRate || (c.Time.ParseRate == bestRate && c.Name < best) {
			best = c.Name
			bestRate = c.Time.ParseRate
			span = c.Time.Max.Sub(c.Time.Min)
		}
	}
	if best == "" {
		return "", ""
	}
	return best, chooseGrain(span)
}

// chooseGrain picks the finest grain that yields at most
// MaxTrendBuckets buckets over the span, falling back to month.
func chooseGrain(span time.Duration) string {
	days := span.Hours() / 24
	if days <= 0 {
		return models.GrainDay
	}
	for _, g := range []struct {
		grain string
		len   float64
	}{
		{models.GrainDay, 1},
		{models.GrainWeek, 7},
		{models.GrainMonth, 30},
	} {
		buckets := days / g.len
		if buckets >= MinTrendBuckets && buckets <= MaxTrendBuckets {
			return g.grain
		}
	}
	if days < MinTrendBuckets {
		return models.GrainDay
	}
	return models.GrainMonth
}

// =============================================================================
// Materialization
// =============================================================================

// MaterializeCharts turns specs into render-ready payloads. Specs
// whose series come out empty are dropped; order is preserved.
func MaterializeCharts(t *dataset.Table, types map[string]string, specs []models.ChartSpec) []models.Chart {
	charts := make([]models.Chart, 0, len(specs))
	for _, spec := range specs {
		c := materializeChart(t, types, spec)
		if c == nil {
			continue
		}
		charts = append(charts, *c)
	}
	return charts
}

func materializeChart(t *dataset.Table, types map[string]string, spec models.ChartSpec) *models.Chart {
	base := models.Chart{
		Type:      spec.Type,
		Title:     spec.Title,
		X:         spec.X,
		Y:         spec.Y,
		Agg:       spec.Agg,
		TimeGrain: spec.TimeGrain,
		Section:   spec.Section,
		Reason:    spec.Reason,
	}

	switch spec.Type {
	case "line":
		req := models.PivotRequest{
			DateColumn: spec.X,
			TimeGrain:  spec.TimeGrain,
			Agg:        spec.Agg,
		}
		if spec.Y != models.CountMetric {
			req.Metric = spec.Y
		}
		res, err := RunPivot(t, types, req)
		if err != nil || res.Chart == nil || len(res.Chart.Data) == 0 {
			return nil
		}
		base.Data = res.Chart.Data
		return &base

	case "bar":
		req := models.PivotRequest{
			GroupBy: []string{spec.X},
			Agg:     spec.Agg,
			TopN:    spec.Limit,
		}
		if spec.Y != models.CountMetric {
			req.Metric = spec.Y
		}
		res, err := RunPivot(t, types, req)
		if err != nil || res.Chart == nil || len(res.Chart.Data) == 0 {
			return nil
		}
		base.Data = res.Chart.Data
		return &base

	case "table_combo":
		req := models.PivotRequest{
			GroupBy: []string{spec.A, spec.B},
			Metric:  spec.Y,
			Agg:     spec.Agg,
			TopN:    spec.Limit,
		}
		res, err := RunPivot(t, types, req)
		if err != nil || res.Table == nil || len(res.Table.Rows) == 0 {
			return nil
		}
		base.Type = "table"
		base.Rows = res.Table.Rows
		return &base

	case "hist":
		bins := histogram(t, spec.X, spec.Bins)
		if len(bins) == 0 {
			return nil
		}
		base.Bins = bins
		return &base

	case "scatter":
		points := scatterPoints(t, spec.X, spec.Y)
		if len(points) == 0 {
			return nil
		}
		base.Points = points
		return &base

	case "table":
		base.Rows = t.PreviewRows(BarTopN)
		return &base
	}
	return nil
}

// histogram bins non-null values into equal-width buckets over the
// [p1, p99] range; values outside the range land in the edge bins.
func histogram(t *dataset.Table, col string, binCount int) []models.HistBin {
	vals, ok := t.NumericColumn(col)
	var xs []float64
	for i, v := range vals {
		if ok[i] {
			xs = append(xs, v)
		}
	}
	if len(xs) == 0 || binCount <= 0 {
		return nil
	}
	lo := quantile(xs, 0.01)
	hi := quantile(xs, 0.99)
	if hi <= lo {
		return []models.HistBin{{
			Bin:   formatBinLabel(lo, lo),
			Count: len(xs),
		}}
	}
	width := (hi - lo) / float64(binCount)
	counts := make([]int, binCount)
	for _, x := range xs {
		idx := int((x - lo) / width)
		if idx < 0 {
			idx = 0
		}
		if idx >= binCount {
			idx = binCount - 1
		}
		counts[idx]++
	}
	bins := make([]models.HistBin, binCount)
	for i := range counts {
		start := lo + float64(i)*width
		bins[i] = models.HistBin{
			Bin:   formatBinLabel(start, start+width),
			Count: counts[i],
		}
	}
	return bins
}

func formatBinLabel(lo, hi float64) string {
	if lo == hi {
		return trimFloat(lo)
	}
	return trimFloat(lo) + "–" + trimFloat(hi)
}

func trimFloat(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.2f", v)
}

// scatterPoints pairs rows where both columns parse. Oversized series
// are thinned with a fixed stride, never sampled randomly.
func scatterPoints(t *dataset.Table, xCol, yCol string) []models.ScatterPoint {
	xs, okX := t.NumericColumn(xCol)
	ys, okY := t.NumericColumn(yCol)
	var points []models.ScatterPoint
	for i := range xs {
		if okX[i] && okY[i] {
			points = append(points, models.ScatterPoint{X: xs[i], Y: ys[i]})
		}
	}
	if len(points) > MaxScatterPoints {
		stride := (len(points) + MaxScatterPoints - 1) / MaxScatterPoints
		sampled := make([]models.ScatterPoint, 0, MaxScatterPoints)
		for i := 0; i < len(points); i += stride {
			sampled = append(sampled, points[i])
		}
		points = sampled
	}
	return points
}
