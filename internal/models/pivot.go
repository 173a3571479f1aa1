package models

import "time"

// Aggregations accepted by the pivot engine.
const (
	AggSum   = "sum"
	AggMean  = "mean"
	AggCount = "count"
	AggMin   = "min"
	AggMax   = "max"
)

// Time grains for bucketed aggregation.
const (
	GrainDay   = "day"
	GrainWeek  = "week"
	GrainMonth = "month"
)

// MaxGroupByColumns bounds categorical pivots.
const MaxGroupByColumns = 2

// TimeWindow is a half-open [From, To) restriction on a datetime
// column, applied before grouping.
type TimeWindow struct {
	Column string    `json:"column"`
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
}

// PivotRequest describes one deterministic aggregation query. Exactly
// one mode applies: categorical (GroupBy set) or time-series
// (DateColumn set). The same contract serves UI pivots, executive
// brief drivers, and anomaly explanation.
type PivotRequest struct {
	GroupBy    []string            `json:"group_by,omitempty"`
	DateColumn string              `json:"date_column,omitempty"`
	TimeGrain  string              `json:"time_grain,omitempty"`
	Metric     string              `json:"metric,omitempty"` // empty means row count
	Agg        string              `json:"agg"`
	TopN       int                 `json:"top_n,omitempty"`
	ChartType  string              `json:"chart_type,omitempty"` // bar|line|table
	Filters    map[string][]string `json:"filters,omitempty"`
	TimeRange  *TimeWindow         `json:"time_range,omitempty"`
}

// Table is a plain columns-and-rows payload.
type Table struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

// Operation is one literal step of a citation. Only the fields
// relevant to the op are set.
type Operation struct {
	Op      string              `json:"op"`
	Column  string              `json:"col,omitempty"`
	Columns []string            `json:"by,omitempty"`
	Grain   string              `json:"grain,omitempty"`
	Order   string              `json:"order,omitempty"`
	N       int                 `json:"n,omitempty"`
	From    string              `json:"from,omitempty"`
	To      string              `json:"to,omitempty"`
	Filters map[string][]string `json:"filters,omitempty"`
}

// Citation describes exactly how a result was computed: the columns
// read and the ordered operations applied, sufficient to recompute the
// result independently.
type Citation struct {
	Computed     bool        `json:"computed"`
	Source       string      `json:"source"`
	Question     string      `json:"question,omitempty"`
	ColumnsUsed  []string    `json:"columns_used"`
	Operations   []Operation `json:"operations"`
	RowsScanned  int         `json:"rows_scanned"`
	RowsReturned int         `json:"rows_returned"`
}

// PivotResult is the engine's answer: narrative, table, optional
// chart, and the citation describing the computation.
type PivotResult struct {
	Type     string    `json:"type"` // chart|table
	Text     string    `json:"text"`
	Table    *Table    `json:"table,omitempty"`
	Chart    *Chart    `json:"chart,omitempty"`
	Citation *Citation `json:"citation"`
}
