package models

import "time"

// Inferred column types. Precedence during inference is
// numeric > datetime > categorical > text; identifier is a flag
// promoted to the reported type when the column is near-unique.
const (
	TypeNumeric     = "numeric"
	TypeDatetime    = "datetime"
	TypeCategorical = "categorical"
	TypeText        = "text"
	TypeIdentifier  = "identifier"
)

// NumericStats holds population statistics for a numeric column,
// computed over non-null parseable cells.
type NumericStats struct {
	Count   int     `json:"count"`
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
	Min     float64 `json:"min"`
	P25     float64 `json:"p25"`
	Median  float64 `json:"median"`
	P75     float64 `json:"p75"`
	Max     float64 `json:"max"`
	ZeroPct float64 `json:"zero_pct"`
}

// TimeStats holds the observed range of a datetime column.
type TimeStats struct {
	Count     int       `json:"count"`
	ParseRate float64   `json:"parse_rate"`
	Min       time.Time `json:"min"`
	Max       time.Time `json:"max"`
}

// ValueCount is one entry of a top-values list.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ColumnProfile is the per-column statistical summary.
type ColumnProfile struct {
	Name       string        `json:"name"`
	Type       string        `json:"type"`
	Missing    int           `json:"missing"`
	MissingPct float64       `json:"missing_pct"`
	Distinct   int           `json:"distinct"`
	Examples   []string      `json:"examples,omitempty"`
	IsIDLike   bool          `json:"is_id_like"`
	Numeric    *NumericStats `json:"numeric,omitempty"`
	Time       *TimeStats    `json:"time,omitempty"`
	TopValues  []ValueCount  `json:"top_values,omitempty"`
	Notes      []string      `json:"notes,omitempty"`
}

// Correlation is one strong numeric pair, |R| above the report threshold.
type Correlation struct {
	A string  `json:"a"`
	B string  `json:"b"`
	R float64 `json:"corr"`
}

// DatasetProfile is the dataset-level summary. HealthScore is a pure
// function of missingness and duplication, always in [0,100].
type DatasetProfile struct {
	RowCount      int             `json:"row_count"`
	ColumnCount   int             `json:"column_count"`
	Columns       []ColumnProfile `json:"columns"`
	DuplicateRows int             `json:"duplicate_rows"`
	Correlations  []Correlation   `json:"strong_correlations"`
	HealthScore   float64         `json:"health_score"`
}

// ChartSpec describes a recommended chart before materialization.
// Series data for any spec is reproducible purely from the dataset
// plus these parameters.
type ChartSpec struct {
	ID        string `json:"id"`
	Type      string `json:"type"` // line|bar|hist|scatter|table|table_combo
	X         string `json:"x,omitempty"`
	Y         string `json:"y,omitempty"` // CountMetric for row counts
	A         string `json:"a,omitempty"` // table_combo dimensions
	B         string `json:"b,omitempty"`
	Agg       string `json:"agg,omitempty"`
	TimeGrain string `json:"time_grain,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Bins      int    `json:"bins,omitempty"`
	Title     string `json:"title"`
	Section   string `json:"section"`
	Reason    string `json:"reason,omitempty"`
}

// CountMetric is the pseudo-metric meaning "row count".
const CountMetric = "__count__"

// Chart sections.
const (
	SectionRecommended   = "Recommended"
	SectionTrends        = "Trends"
	SectionBreakdowns    = "Breakdowns"
	SectionDistributions = "Distributions"
	SectionRelationships = "Relationships"
	SectionTables        = "Tables"
)

// SeriesPoint is one labeled point of a line or bar series.
type SeriesPoint struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

// ScatterPoint is one numeric x/y pair.
type ScatterPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// HistBin is one histogram bucket.
type HistBin struct {
	Bin   string `json:"bin"`
	Count int    `json:"count"`
}

// Chart is a materialized, render-ready chart payload.
type Chart struct {
	Type      string           `json:"type"`
	Title     string           `json:"title"`
	X         string           `json:"x,omitempty"`
	Y         string           `json:"y,omitempty"`
	Agg       string           `json:"agg,omitempty"`
	TimeGrain string           `json:"time_grain,omitempty"`
	Section   string           `json:"section,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	Data      []SeriesPoint    `json:"data,omitempty"`
	Points    []ScatterPoint   `json:"points,omitempty"`
	Bins      []HistBin        `json:"bins,omitempty"`
	Rows      []map[string]any `json:"rows,omitempty"`
}

// Anomaly is a detected outlier or time-series spike. Score is a
// nonnegative deviation magnitude; higher is more anomalous.
type Anomaly struct {
	Type string `json:"type"` // spike|outlier

	// Spike fields.
	DateColumn   string    `json:"date_column,omitempty"`
	MetricColumn string    `json:"metric_column,omitempty"`
	Bucket       time.Time `json:"bucket,omitempty"`
	Value        float64   `json:"value,omitempty"`
	TimeGrain    string    `json:"time_grain,omitempty"`

	// Outlier fields.
	Column   string  `json:"column,omitempty"`
	RowValue float64 `json:"row_value,omitempty"`
	Low      float64 `json:"low,omitempty"`
	High     float64 `json:"high,omitempty"`

	Score float64 `json:"score"`
}

// Insight is one template-filled highlight card.
type Insight struct {
	Type string         `json:"type"` // summary|data_quality|correlation|anomaly|charts
	Text string         `json:"text"`
	Meta map[string]any `json:"meta,omitempty"`
}

// DictionaryEntry is one data-dictionary row.
type DictionaryEntry struct {
	Column     string   `json:"column"`
	Type       string   `json:"type"`
	MissingPct float64  `json:"missing_pct"`
	Distinct   int      `json:"distinct"`
	Examples   []string `json:"examples,omitempty"`
	Notes      []string `json:"notes,omitempty"`
}

// KPI is one overview card.
type KPI struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

// Overview is the compact dashboard header payload.
type Overview struct {
	KPIs               []KPI     `json:"kpis"`
	Highlights         []Insight `json:"highlights"`
	SuggestedQuestions []string  `json:"suggested_questions"`
	Columns            []string  `json:"columns"`
}

// PIIFinding is one column flagged by the PII heuristic scan.
type PIIFinding struct {
	Column       string   `json:"column"`
	Signals      []string `json:"signals"`
	EmailMatches int      `json:"email_matches"`
	PhoneMatches int      `json:"phone_matches"`
	Score        int      `json:"score"`
}

// PIIReport is the dataset-level PII risk summary.
type PIIReport struct {
	Risk     string       `json:"risk"` // low|medium|high
	Findings []PIIFinding `json:"findings"`
}

// ExecutiveBrief summarizes the primary metric's latest period against
// the previous one, with the top-changing segments as drivers.
type ExecutiveBrief struct {
	PrimaryMetric  string    `json:"primary_metric"`
	TimeGrain      string    `json:"time_grain"`
	CurrentPeriod  time.Time `json:"current_period"`
	PreviousPeriod time.Time `json:"previous_period"`
	CurrentValue   float64   `json:"current_value"`
	PreviousValue  float64   `json:"previous_value"`
	Delta          float64   `json:"delta"`
	DeltaPct       float64   `json:"delta_pct"`
	Bullets        []string  `json:"bullets"`
	Drivers        *Table    `json:"drivers,omitempty"`
	TrendChart     *Chart    `json:"trend_chart,omitempty"`
	Citation       *Citation `json:"citation,omitempty"`
}

// StageOmission records an analysis stage that was skipped after an
// internal failure; the rest of the run still completes.
type StageOmission struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

// AnalysisMeta carries bookkeeping about an analysis run.
type AnalysisMeta struct {
	RowCount       int   `json:"row_count"`
	ColumnCount    int   `json:"col_count"`
	ChartCount     int   `json:"chart_count"`
	AnalysisTimeMS int64 `json:"analysis_time_ms"`
}

// Analysis is the full serialized output of one analysis pass over an
// immutable dataset snapshot. A re-run produces a fresh full set.
type Analysis struct {
	Types      map[string]string `json:"types"`
	Profile    *DatasetProfile   `json:"profile"`
	ChartSpecs []ChartSpec       `json:"chart_specs"`
	Charts     []Chart           `json:"charts"`
	Anomalies  []Anomaly         `json:"anomalies"`
	Insights   []Insight         `json:"insights"`
	Brief      *ExecutiveBrief   `json:"brief,omitempty"`
	Dictionary []DictionaryEntry `json:"dictionary"`
	Overview   *Overview         `json:"overview,omitempty"`
	PII        *PIIReport        `json:"pii,omitempty"`
	Preview    []map[string]any  `json:"preview"`
	Omissions  []StageOmission   `json:"omissions,omitempty"`
	Meta       AnalysisMeta      `json:"meta"`
}
