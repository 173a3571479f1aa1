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
	// MaxInsights bounds the highlight-card list.
	MaxInsights = 8

	// MaxSuggestedQuestions bounds the overview's question chips.
	MaxSuggestedQuestions = 6

	// MaxBriefDrivers bounds the executive brief's driver table.
	MaxBriefDrivers = 5
)

// BuildInsights assembles the template-filled highlight cards. Every
// card states a fact computed from the dataset; no generated prose.
func BuildInsights(profile *models.DatasetProfile, anomalies []models.Anomaly, chartCount int) []models.Insight {
	var insights []models.Insight
	add := func(typ, text string, meta map[string]any) {
		if len(insights) >= MaxInsights {
			return
		}
		insights = append(insights, models.Insight{Type: typ, Text: text, Meta: meta})
	}

	add("summary", fmt.Sprintf("%d rows across %d columns; health score %.0f/100.",
		profile.RowCount, profile.ColumnCount, profile.HealthScore), nil)

	if profile.DuplicateRows > 0 {
		add("data_quality", fmt.Sprintf("%d duplicate rows detected (%.1f%% of the dataset).",
			profile.DuplicateRows, 100*float64(profile.DuplicateRows)/float64(max(1, profile.RowCount))),
			map[string]any{"duplicate_rows": profile.DuplicateRows})
	}

	for _, c := range profile.Columns {
		if c.MissingPct >= HighMissingThreshold && c.Missing < profile.RowCount {
			add("data_quality", fmt.Sprintf("Column %q is %.0f%% missing.", c.Name, 100*c.MissingPct),
				map[string]any{"column": c.Name})
			break
		}
	}
	for _, c := range profile.Columns {
		if c.Distinct == 1 && c.Missing < profile.RowCount {
			add("data_quality", fmt.Sprintf("Column %q holds a single constant value.", c.Name),
				map[string]any{"column": c.Name})
			break
		}
	}

	if len(profile.Correlations) > 0 {
		top := profile.Correlations[0]
		add("correlation", fmt.Sprintf("%q and %q move together (r=%.2f).", top.A, top.B, top.R),
			map[string]any{"a": top.A, "b": top.B, "r": top.R})
	}

	if len(anomalies) > 0 {
		a := anomalies[0]
		switch a.Type {
		case "spike":
			add("anomaly", fmt.Sprintf("Unusual %s of %s in the %s starting %s (%.1f standard deviations from typical).",
				a.MetricColumn, trimFloat(a.Value), a.TimeGrain, a.Bucket.Format("2006-01-02"), a.Score),
				map[string]any{"metric": a.MetricColumn, "bucket": a.Bucket})
		case "outlier":
			add("anomaly", fmt.Sprintf("Column %q has values far outside its typical range (e.g. %s).",
				a.Column, trimFloat(a.RowValue)), map[string]any{"column": a.Column})
		}
		if len(anomalies) > 1 {
			add("anomaly", fmt.Sprintf("%d anomalies detected in total.", len(anomalies)), nil)
		}
	}

	if chartCount > 0 {
		add("charts", fmt.Sprintf("%d charts recommended from the column mix.", chartCount), nil)
	}
	return insights
}

// BuildDictionary flattens the profile into data-dictionary rows, one
// per column in original order.
func BuildDictionary(profile *models.DatasetProfile) []models.DictionaryEntry {
	entries := make([]models.DictionaryEntry, 0, len(profile.Columns))
	for _, c := range profile.Columns {
		entries = append(entries, models.DictionaryEntry{
			Column:     c.Name,
			Type:       c.Type,
			MissingPct: c.MissingPct,
			Distinct:   c.Distinct,
			Examples:   c.Examples,
			Notes:      c.Notes,
		})
	}
	return entries
}

// =============================================================================
// Executive brief
// =============================================================================

// briefMetricPreference: when several metrics tie on salience, a name
// that reads as the business's headline number wins.
var briefMetricPreference = []string{"revenue", "sales", "amount", "total"}

// BuildBrief composes the executive brief: the primary metric's most
// recent complete bucket against the one before, with the
// top-changing segments as drivers. Returns nil when the dataset has
// no usable time axis or metric.
func BuildBrief(t *dataset.Table, types map[string]string, profile *models.DatasetProfile) *models.ExecutiveBrief {
	dateCol, grain := bestTimeColumn(t, types, profile)
	if dateCol == "" {
		return nil
	}
	metric := primaryMetric(profile)
	if metric == "" {
		return nil
	}

	trend, err := RunPivot(t, types, models.PivotRequest{
		DateColumn: dateCol,
		TimeGrain:  grain,
		Metric:     metric,
		Agg:        models.AggSum,
	})
	if err != nil || trend.Chart == nil || len(trend.Chart.Data) < 2 {
		return nil
	}

	series := trend.Chart.Data
	last := series[len(series)-1]
	prev := series[len(series)-2]
	curBucket, err := time.Parse("2006-01-02", last.X)
	if err != nil {
		return nil
	}
	prevBucket, err := time.Parse("2006-01-02", prev.X)
	if err != nil {
		return nil
	}

	brief := &models.ExecutiveBrief{
		PrimaryMetric:  metric,
		TimeGrain:      grain,
		CurrentPeriod:  curBucket,
		PreviousPeriod: prevBucket,
		CurrentValue:   last.Y,
		PreviousValue:  prev.Y,
		Delta:          last.Y - prev.Y,
		TrendChart:     trend.Chart,
		Citation:       trend.Citation,
	}
	if prev.Y != 0 {
		brief.DeltaPct = brief.Delta / math.Abs(prev.Y)
	}

	direction := "up"
	if brief.Delta < 0 {
		direction = "down"
	}
	brief.Bullets = append(brief.Bullets,
		fmt.Sprintf("%s is %s %s (%.1f%%) versus the previous %s.",
			metric, direction, trimFloat(math.Abs(brief.Delta)), 100*math.Abs(brief.DeltaPct), grain))
	brief.Bullets = append(brief.Bullets,
		fmt.Sprintf("Latest %s starting %s: %s; previous: %s.",
			grain, curBucket.Format("2006-01-02"), trimFloat(last.Y), trimFloat(prev.Y)))

	if drivers := briefDrivers(t, types, profile, dateCol, grain, metric, curBucket); drivers != nil {
		brief.Drivers = drivers
		if len(drivers.Rows) > 0 {
			dim := drivers.Columns[0]
			lead := drivers.Rows[0]
			if d, ok := lead["delta"].(float64); ok {
				verb := "added"
				if d < 0 {
					verb = "removed"
				}
				brief.Bullets = append(brief.Bullets,
					fmt.Sprintf("Largest driver: %s=%v %s %s.", dim, lead[dim], verb, trimFloat(math.Abs(d))))
			}
		}
	}
	return brief
}

// overallMissing averages per-column missingness into a single rate.
func overallMissing(profile *models.DatasetProfile) float64 {
	if len(profile.Columns) == 0 {
		return 0
	}
	var total float64
	for _, c := range profile.Columns {
		total += c.MissingPct
	}
	return total / float64(len(profile.Columns))
}

// primaryMetric picks the headline metric: salience ranking first,
// overridden by a business-preferred name when one exists.
func primaryMetric(profile *models.DatasetProfile) string {
	metrics := rankMetrics(profile)
	if len(metrics) == 0 {
		return ""
	}
	for _, pref := range briefMetricPreference {
		for _, m := range metrics {
			if strings.Contains(strings.ToLower(m), pref) {
				return m
			}
		}
	}
	return metrics[0]
}

// briefDrivers computes the per-segment delta table for the latest
// bucket through the same spike-explanation pivot path.
func briefDrivers(t *dataset.Table, types map[string]string, profile *models.DatasetProfile, dateCol, grain, metric string, bucket time.Time) *models.Table {
	res, err := ExplainAnomaly(t, types, profile, models.Anomaly{
		Type:         "spike",
		DateColumn:   dateCol,
		MetricColumn: metric,
		Bucket:       bucket,
		TimeGrain:    grain,
	})
	if err != nil || res.Table == nil {
		return nil
	}
	table := res.Table
	if len(table.Rows) > MaxBriefDrivers {
		table.Rows = table.Rows[:MaxBriefDrivers]
	}
	return table
}

// =============================================================================
// Overview
// =============================================================================

// BuildOverview assembles the dashboard header: KPI cards, the first
// highlights, and suggested questions phrased so the deterministic
// question parser can answer every one of them.
func BuildOverview(t *dataset.Table, types map[string]string, profile *models.DatasetProfile, insights []models.Insight) *models.Overview {
	ov := &models.Overview{Columns: t.Columns()}

	ov.KPIs = append(ov.KPIs,
		models.KPI{Label: "Rows", Value: profile.RowCount},
		models.KPI{Label: "Columns", Value: profile.ColumnCount},
		models.KPI{Label: "Health", Value: fmt.Sprintf("%.0f/100", profile.HealthScore)},
		models.KPI{Label: "Missing", Value: fmt.Sprintf("%.1f%%", 100*overallMissing(profile))},
		models.KPI{Label: "Duplicate rows", Value: profile.DuplicateRows},
	)
	for _, c := range profile.Columns {
		if c.Type == models.TypeDatetime && c.Time != nil {
			ov.KPIs = append(ov.KPIs, models.KPI{
				Label: "Date range",
				Value: fmt.Sprintf("%s to %s",
					c.Time.Min.Format("2006-01-02"), c.Time.Max.Format("2006-01-02")),
			})
			break
		}
	}
	if metric := primaryMetric(profile); metric != "" {
		for _, c := range profile.Columns {
			if c.Name == metric && c.Numeric != nil {
				ov.KPIs = append(ov.KPIs, models.KPI{
					Label: fmt.Sprintf("Total %s", metric),
					Value: trimFloat(c.Numeric.Mean * float64(c.Numeric.Count)),
				})
				break
			}
		}
	}

	if n := len(insights); n > 3 {
		ov.Highlights = insights[:3]
	} else {
		ov.Highlights = insights
	}

	ov.SuggestedQuestions = suggestQuestions(t, types, profile)
	return ov
}

func suggestQuestions(t *dataset.Table, types map[string]string, profile *models.DatasetProfile) []string {
	metrics := rankMetrics(profile)
	dims := rankDimensions(profile)
	dateCol, _ := bestTimeColumn(t, types, profile)

	var qs []string
	add := func(q string) {
		if len(qs) < MaxSuggestedQuestions {
			qs = append(qs, q)
		}
	}

	add("How many rows are there?")
	if len(metrics) > 0 && len(dims) > 0 {
		add(fmt.Sprintf("Top 5 %s by %s", dims[0], metrics[0]))
	}
	if len(metrics) > 0 {
		add(fmt.Sprintf("What is the total %s?", metrics[0]))
		add(fmt.Sprintf("What is the average %s?", metrics[0]))
	}
	if dateCol != "" && len(metrics) > 0 {
		add(fmt.Sprintf("%s over time", metrics[0]))
	}
	if len(dims) > 1 && len(metrics) > 0 {
		add(fmt.Sprintf("Top 3 %s by %s", dims[1], metrics[0]))
	}
	sortedDims := append([]string{}, dims...)
	sort.Strings(sortedDims)
	for _, d := range sortedDims {
		add(fmt.Sprintf("Top 10 %s by count", d))
	}
	return qs
}
