package service

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/datapeek/backend/internal/models"
)

func TestPivotCategoricalGroupsAndSorts(t *testing.T) {
	tbl := salesTable(t)
	types := InferColumnTypes(tbl)

	res, err := RunPivot(tbl, types, models.PivotRequest{
		GroupBy: []string{"region"},
		Metric:  "revenue",
		Agg:     models.AggSum,
		TopN:    10,
	})
	if err != nil {
		t.Fatalf("RunPivot: %v", err)
	}

	rows := res.Table.Rows
	if len(rows) != 3 {
		t.Fatalf("got %d groups, want 3", len(rows))
	}

	// south=850, north=500, west=90
	wantOrder := []struct {
		region string
		total  float64
	}{
		{"south", 850},
		{"north", 500},
		{"west", 90},
	}
	for i, want := range wantOrder {
		if rows[i]["region"] != want.region {
			t.Errorf("row %d region = %v, want %s", i, rows[i]["region"], want.region)
		}
		if rows[i]["y"] != want.total {
			t.Errorf("row %d total = %v, want %v", i, rows[i]["y"], want.total)
		}
	}

	// Descending, no inversions.
	for i := 1; i < len(rows); i++ {
		if rows[i]["y"].(float64) > rows[i-1]["y"].(float64) {
			t.Errorf("rows out of order at %d", i)
		}
	}
}

func TestPivotConservation(t *testing.T) {
	tbl := salesTable(t)
	types := InferColumnTypes(tbl)

	res, err := RunPivot(tbl, types, models.PivotRequest{
		GroupBy: []string{"region"},
		Metric:  "revenue",
		Agg:     models.AggSum,
		TopN:    MaxTopN,
	})
	if err != nil {
		t.Fatalf("RunPivot: %v", err)
	}

	var groupTotal float64
	for _, row := range res.Table.Rows {
		groupTotal += row["y"].(float64)
	}

	vals, ok := tbl.NumericColumn("revenue")
	var total float64
	for i, v := range vals {
		if ok[i] {
			total += v
		}
	}

	if math.Abs(groupTotal-total) > 1e-9 {
		t.Errorf("group totals sum to %v, column total is %v", groupTotal, total)
	}
}

func TestPivotTopNTruncates(t *testing.T) {
	tbl := salesTable(t)
	types := InferColumnTypes(tbl)

	res, err := RunPivot(tbl, types, models.PivotRequest{
		GroupBy: []string{"region"},
		Metric:  "revenue",
		Agg:     models.AggSum,
		TopN:    2,
	})
	if err != nil {
		t.Fatalf("RunPivot: %v", err)
	}
	if len(res.Table.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(res.Table.Rows))
	}
	// No "Other" bucket: the cut groups are simply absent.
	for _, row := range res.Table.Rows {
		if row["region"] == "Other" || row["region"] == "west" {
			t.Errorf("unexpected group %v after truncation", row["region"])
		}
	}
	if res.Citation.RowsReturned != 2 {
		t.Errorf("citation rows_returned = %d, want 2", res.Citation.RowsReturned)
	}
}

func TestPivotCountWithoutMetric(t *testing.T) {
	tbl := salesTable(t)
	types := InferColumnTypes(tbl)

	res, err := RunPivot(tbl, types, models.PivotRequest{
		GroupBy: []string{"region"},
	})
	if err != nil {
		t.Fatalf("RunPivot: %v", err)
	}
	var n float64
	for _, row := range res.Table.Rows {
		n += row["y"].(float64)
	}
	if n != 9 {
		t.Errorf("counts sum to %v, want 9", n)
	}
}

func TestPivotMeanMinMax(t *testing.T) {
	tbl := mustTable(t, `
region,revenue
a,10
a,20
b,5
`)
	types := InferColumnTypes(tbl)

	for _, tt := range []struct {
		agg  string
		want map[string]float64
	}{
		{models.AggMean, map[string]float64{"a": 15, "b": 5}},
		{models.AggMin, map[string]float64{"a": 10, "b": 5}},
		{models.AggMax, map[string]float64{"a": 20, "b": 5}},
	} {
		res, err := RunPivot(tbl, types, models.PivotRequest{
			GroupBy: []string{"region"},
			Metric:  "revenue",
			Agg:     tt.agg,
		})
		if err != nil {
			t.Fatalf("%s: %v", tt.agg, err)
		}
		for _, row := range res.Table.Rows {
			key := row["region"].(string)
			if row["y"] != tt.want[key] {
				t.Errorf("%s(%s) = %v, want %v", tt.agg, key, row["y"], tt.want[key])
			}
		}
	}
}

func TestPivotNullGroupKeysFiltered(t *testing.T) {
	tbl := mustTable(t, `
region,revenue
a,10
,20
a,30
`)
	types := InferColumnTypes(tbl)

	res, err := RunPivot(tbl, types, models.PivotRequest{
		GroupBy: []string{"region"},
		Metric:  "revenue",
		Agg:     models.AggSum,
	})
	if err != nil {
		t.Fatalf("RunPivot: %v", err)
	}
	if len(res.Table.Rows) != 1 {
		t.Fatalf("got %d groups, want 1 (null keys filtered)", len(res.Table.Rows))
	}
	if res.Table.Rows[0]["y"] != 40.0 {
		t.Errorf("sum = %v, want 40", res.Table.Rows[0]["y"])
	}
}

func TestPivotTimeSeriesBuckets(t *testing.T) {
	tbl := salesTable(t)
	types := InferColumnTypes(tbl)

	res, err := RunPivot(tbl, types, models.PivotRequest{
		DateColumn: "date",
		TimeGrain:  models.GrainMonth,
		Metric:     "revenue",
		Agg:        models.AggSum,
	})
	if err != nil {
		t.Fatalf("RunPivot: %v", err)
	}

	data := res.Chart.Data
	if len(data) != 2 {
		t.Fatalf("got %d buckets, want 2", len(data))
	}
	if data[0].X != "2024-01-01" || data[1].X != "2024-02-01" {
		t.Errorf("buckets = %s, %s; want 2024-01-01, 2024-02-01", data[0].X, data[1].X)
	}
	if data[0].Y != 1000 || data[1].Y != 440 {
		t.Errorf("bucket sums = %v, %v; want 1000, 440", data[0].Y, data[1].Y)
	}

	// Chronological regardless of value.
	for i := 1; i < len(data); i++ {
		if data[i].X <= data[i-1].X {
			t.Errorf("buckets out of order at %d", i)
		}
	}
}

func TestBucketTimePartitions(t *testing.T) {
	// 2024-03-15 is a Friday.
	ts := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)

	if got := BucketTime(ts, models.GrainDay); !got.Equal(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("day bucket = %v", got)
	}
	if got := BucketTime(ts, models.GrainWeek); !got.Equal(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("week bucket = %v, want Monday 2024-03-11", got)
	}
	if got := BucketTime(ts, models.GrainMonth); !got.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("month bucket = %v", got)
	}

	// A Monday is its own week bucket; a Sunday belongs to the prior Monday.
	monday := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	if got := BucketTime(monday, models.GrainWeek); !got.Equal(monday) {
		t.Errorf("Monday week bucket = %v, want itself", got)
	}
	sunday := time.Date(2024, 3, 17, 23, 59, 0, 0, time.UTC)
	if got := BucketTime(sunday, models.GrainWeek); !got.Equal(monday) {
		t.Errorf("Sunday week bucket = %v, want %v", got, monday)
	}
}

func TestNextAndPreviousBucket(t *testing.T) {
	b := time.Date(2024, 1, 29, 0, 0, 0, 0, time.UTC)
	if got := NextBucket(b, models.GrainWeek); !got.Equal(b.AddDate(0, 0, 7)) {
		t.Errorf("next week = %v", got)
	}
	if got := PreviousBucket(b, models.GrainWeek); !got.Equal(b.AddDate(0, 0, -7)) {
		t.Errorf("previous week = %v", got)
	}
	m := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if got := PreviousBucket(m, models.GrainMonth); !got.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("previous month = %v", got)
	}
}

func TestPivotFiltersAndTimeRange(t *testing.T) {
	tbl := salesTable(t)
	types := InferColumnTypes(tbl)

	res, err := RunPivot(tbl, types, models.PivotRequest{
		GroupBy: []string{"region"},
		Metric:  "revenue",
		Agg:     models.AggSum,
		Filters: map[string][]string{"region": {"north"}},
		TimeRange: &models.TimeWindow{
			Column: "date",
			From:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			To:     time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
	})
	if err != nil {
		t.Fatalf("RunPivot: %v", err)
	}
	if len(res.Table.Rows) != 1 {
		t.Fatalf("got %d groups, want 1", len(res.Table.Rows))
	}
	// January north: 100+150+120; the Feb 1 row is outside the
	// half-open window.
	if res.Table.Rows[0]["y"] != 370.0 {
		t.Errorf("filtered sum = %v, want 370", res.Table.Rows[0]["y"])
	}
}

func TestPivotValidation(t *testing.T) {
	tbl := salesTable(t)
	types := InferColumnTypes(tbl)

	tests := []struct {
		name string
		req  models.PivotRequest
	}{
		{"no mode", models.PivotRequest{}},
		{"both modes", models.PivotRequest{GroupBy: []string{"region"}, DateColumn: "date"}},
		{"unknown group column", models.PivotRequest{GroupBy: []string{"nope"}}},
		{"numeric group column", models.PivotRequest{GroupBy: []string{"revenue"}}},
		{"too many group columns", models.PivotRequest{GroupBy: []string{"region", "date", "units"}}},
		{"unknown metric", models.PivotRequest{GroupBy: []string{"region"}, Metric: "nope"}},
		{"non-numeric metric", models.PivotRequest{GroupBy: []string{"region"}, Metric: "date"}},
		{"unknown agg", models.PivotRequest{GroupBy: []string{"region"}, Metric: "revenue", Agg: "median"}},
		{"agg without metric", models.PivotRequest{GroupBy: []string{"region"}, Agg: models.AggMean}},
		{"non-datetime date column", models.PivotRequest{DateColumn: "region"}},
		{"bad grain", models.PivotRequest{DateColumn: "date", TimeGrain: "hour"}},
		{"negative top_n", models.PivotRequest{GroupBy: []string{"region"}, TopN: -1}},
		{"huge top_n", models.PivotRequest{GroupBy: []string{"region"}, TopN: 1000}},
		{"unknown filter column", models.PivotRequest{GroupBy: []string{"region"}, Filters: map[string][]string{"nope": {"x"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RunPivot(tbl, types, tt.req)
			var vErr *models.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("got %v, want *models.ValidationError", err)
			}
		})
	}
}

func TestPivotCitationOperations(t *testing.T) {
	tbl := salesTable(t)
	types := InferColumnTypes(tbl)

	res, err := RunPivot(tbl, types, models.PivotRequest{
		GroupBy: []string{"region"},
		Metric:  "revenue",
		Agg:     models.AggSum,
		TopN:    3,
	})
	if err != nil {
		t.Fatalf("RunPivot: %v", err)
	}

	c := res.Citation
	if !c.Computed {
		t.Error("citation should be marked computed")
	}
	if c.RowsScanned != tbl.RowCount() {
		t.Errorf("rows_scanned = %d, want %d", c.RowsScanned, tbl.RowCount())
	}

	ops := make([]string, len(c.Operations))
	for i, op := range c.Operations {
		ops[i] = op.Op
	}
	want := []string{"groupby", "sum", "sort", "limit"}
	if len(ops) != len(want) {
		t.Fatalf("operations = %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("operation %d = %q, want %q", i, ops[i], want[i])
		}
	}
	if c.Operations[3].N != 3 {
		t.Errorf("limit n = %d, want 3", c.Operations[3].N)
	}
}

func TestPivotCitationCountsFilteredRows(t *testing.T) {
	tbl := salesTable(t)
	types := InferColumnTypes(tbl)

	// region=north keeps 4 of the 9 rows.
	res, err := RunPivot(tbl, types, models.PivotRequest{
		GroupBy: []string{"region"},
		Metric:  "revenue",
		Agg:     models.AggSum,
		Filters: map[string][]string{"region": {"north"}},
	})
	if err != nil {
		t.Fatalf("RunPivot: %v", err)
	}
	if res.Citation.RowsScanned != 4 {
		t.Errorf("rows_scanned = %d, want 4 after filtering", res.Citation.RowsScanned)
	}

	// A January-only window keeps 6 of the 9 rows.
	res, err = RunPivot(tbl, types, models.PivotRequest{
		DateColumn: "date",
		TimeGrain:  models.GrainDay,
		Metric:     "revenue",
		Agg:        models.AggSum,
		TimeRange: &models.TimeWindow{
			Column: "date",
			From:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			To:     time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
	})
	if err != nil {
		t.Fatalf("RunPivot time range: %v", err)
	}
	if res.Citation.RowsScanned != 6 {
		t.Errorf("rows_scanned = %d, want 6 inside the window", res.Citation.RowsScanned)
	}
}
