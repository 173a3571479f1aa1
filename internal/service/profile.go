package service

import (
	"math"
	"sort"

	"github.com/datapeek/backend/internal/dataset"
	"github.com/datapeek/backend/internal/models"
)

const (
	// MaxExampleValues is the number of representative values kept per
	// column, in first-occurrence order.
	MaxExampleValues = 5

	// MaxTopValues bounds the top-values list for categorical/text columns.
	MaxTopValues = 10

	// CorrelationThreshold is the |r| floor for a pair to be reported.
	CorrelationThreshold = 0.6

	// MaxCorrelations bounds the reported strong pairs.
	MaxCorrelations = 10

	// MaxCorrelationPairs bounds pair evaluations on wide datasets so
	// profiling stays sub-quadratic in the worst case.
	MaxCorrelationPairs = 200

	// HighMissingThreshold flags a column as high-missing.
	HighMissingThreshold = 0.30

	// Health score policy: start at 100, subtract capped penalties
	// proportional to average missingness and duplicate-row rate.
	healthMissingWeight   = 80.0
	healthMissingCap      = 40.0
	healthDuplicateWeight = 100.0
	healthDuplicateCap    = 30.0
)

// BuildProfile computes the DatasetProfile: per-column summaries,
// duplicate-row count, the strong-correlation list, and the health
// score. Pure function of the table and its inferred types.
func BuildProfile(t *dataset.Table, types map[string]string) *models.DatasetProfile {
	profile := &models.DatasetProfile{
		RowCount:    t.RowCount(),
		ColumnCount: t.ColumnCount(),
		Columns:     make([]models.ColumnProfile, 0, t.ColumnCount()),
	}

	for _, col := range t.Columns() {
		profile.Columns = append(profile.Columns, profileColumn(t, col, types[col]))
	}

	profile.DuplicateRows = countDuplicateRows(t)
	profile.Correlations = strongCorrelations(t, types)
	profile.HealthScore = healthScore(profile)
	return profile
}

func profileColumn(t *dataset.Table, col, typ string) models.ColumnProfile {
	values := t.ColumnValues(col)
	rows := len(values)

	cp := models.ColumnProfile{Name: col, Type: typ}

	distinct := make(map[string]int)
	var order []string
	nonNull := 0
	for _, v := range values {
		if v.IsNull() {
			cp.Missing++
			continue
		}
		nonNull++
		s := v.AsString()
		if distinct[s] == 0 {
			order = append(order, s)
		}
		distinct[s]++
	}
	if rows > 0 {
		cp.MissingPct = float64(cp.Missing) / float64(rows)
	}
	cp.Distinct = len(distinct)
	for i := 0; i < len(order) && i < MaxExampleValues; i++ {
		cp.Examples = append(cp.Examples, order[i])
	}
	cp.IsIDLike = isIdentifierLike(col, cp.Distinct, nonNull)

	switch typ {
	case models.TypeNumeric:
		cp.Numeric = numericStats(t, col)
	case models.TypeDatetime:
		cp.Time = timeStats(t, col, nonNull)
	default:
		cp.TopValues = topValues(distinct, order)
	}

	// Data-quality warnings are notes, never errors.
	if nonNull == 0 {
		cp.Notes = append(cp.Notes, "all values missing")
	} else if cp.Distinct <= 1 {
		cp.Notes = append(cp.Notes, "constant value")
	}
	if cp.MissingPct >= HighMissingThreshold && nonNull > 0 {
		cp.Notes = append(cp.Notes, "high missing")
	}
	if cp.IsIDLike {
		cp.Notes = append(cp.Notes, "looks like an identifier")
	}
	return cp
}

func numericStats(t *dataset.Table, col string) *models.NumericStats {
	vals, ok := t.NumericColumn(col)
	var xs []float64
	zeros := 0
	for i, v := range vals {
		if !ok[i] {
			continue
		}
		xs = append(xs, v)
		if v == 0 {
			zeros++
		}
	}
	if len(xs) == 0 {
		return nil
	}
	stats := &models.NumericStats{
		Count:   len(xs),
		Mean:    mean(xs),
		Std:     stddev(xs),
		Min:     quantile(xs, 0),
		P25:     quantile(xs, 0.25),
		Median:  quantile(xs, 0.5),
		P75:     quantile(xs, 0.75),
		Max:     quantile(xs, 1),
		ZeroPct: float64(zeros) / float64(len(xs)),
	}
	return stats
}

func timeStats(t *dataset.Table, col string, nonNull int) *models.TimeStats {
	vals, ok := t.TimeColumn(col)
	stats := &models.TimeStats{}
	for i, v := range vals {
		if !ok[i] {
			continue
		}
		if stats.Count == 0 || v.Before(stats.Min) {
			stats.Min = v
		}
		if stats.Count == 0 || v.After(stats.Max) {
			stats.Max = v
		}
		stats.Count++
	}
	if stats.Count == 0 {
		return nil
	}
	if nonNull > 0 {
		stats.ParseRate = float64(stats.Count) / float64(nonNull)
	}
	return stats
}

// topValues returns the most frequent values, ties broken by first
// occurrence so the result is stable.
func topValues(counts map[string]int, order []string) []models.ValueCount {
	firstSeen := make(map[string]int, len(order))
	for i, s := range order {
		firstSeen[s] = i
	}
	out := make([]models.ValueCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, models.ValueCount{Value: v, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return firstSeen[out[i].Value] < firstSeen[out[j].Value]
	})
	if len(out) > MaxTopValues {
		out = out[:MaxTopValues]
	}
	return out
}

func countDuplicateRows(t *dataset.Table) int {
	seen := make(map[string]bool, t.RowCount())
	dups := 0
	for r := 0; r < t.RowCount(); r++ {
		key := t.RowKey(r)
		if seen[key] {
			dups++
			continue
		}
		seen[key] = true
	}
	return dups
}

// strongCorrelations evaluates Pearson r for numeric column pairs over
// rows where both sides are present. Pair evaluation is capped; output
// is sorted by |r| descending, ties by column-name pair order.
func strongCorrelations(t *dataset.Table, types map[string]string) []models.Correlation {
	var numCols []string
	for _, c := range t.Columns() {
		if types[c] == models.TypeNumeric {
			numCols = append(numCols, c)
		}
	}
	if len(numCols) < 2 {
		return nil
	}

	parsed := make(map[string]struct {
		vals []float64
		ok   []bool
	}, len(numCols))
	for _, c := range numCols {
		v, ok := t.NumericColumn(c)
		parsed[c] = struct {
			vals []float64
			ok   []bool
		}{v, ok}
	}

	var out []models.Correlation
	evaluated := 0
	for i := 0; i < len(numCols) && evaluated < MaxCorrelationPairs; i++ {
		for j := i + 1; j < len(numCols) && evaluated < MaxCorrelationPairs; j++ {
			evaluated++
			a, b := numCols[i], numCols[j]
			pa, pb := parsed[a], parsed[b]
			var xs, ys []float64
			for r := 0; r < t.RowCount(); r++ {
				if pa.ok[r] && pb.ok[r] {
					xs = append(xs, pa.vals[r])
					ys = append(ys, pb.vals[r])
				}
			}
			r, ok := pearson(xs, ys)
			if !ok || math.Abs(r) < CorrelationThreshold {
				continue
			}
			out = append(out, models.Correlation{A: a, B: b, R: r})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].R), math.Abs(out[j].R)
		if ai != aj {
			return ai > aj
		}
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	if len(out) > MaxCorrelations {
		out = out[:MaxCorrelations]
	}
	return out
}

// healthScore derives the 0-100 cleanliness signal. Monotonic
// non-increasing in average missingness and duplicate rate.
func healthScore(p *models.DatasetProfile) float64 {
	score := 100.0

	if len(p.Columns) > 0 {
		var totalMissing float64
		for _, c := range p.Columns {
			totalMissing += c.MissingPct
		}
		avgMissing := totalMissing / float64(len(p.Columns))
		score -= math.Min(healthMissingCap, avgMissing*healthMissingWeight)
	}

	if p.RowCount > 0 {
		dupRate := float64(p.DuplicateRows) / float64(p.RowCount)
		score -= math.Min(healthDuplicateCap, dupRate*healthDuplicateWeight)
	}

	return math.Max(0, math.Min(100, score))
}
