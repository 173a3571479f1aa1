package service

import (
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/datapeek/backend/internal/dataset"
	"github.com/datapeek/backend/internal/models"
)

// spikeTable builds a daily revenue series that is flat except for one
// day where the south region explodes.
func spikeTable(t *testing.T) *dataset.Table {
	t.Helper()
	var b strings.Builder
	b.WriteString("date,region,revenue\n")
	for day := 1; day <= 28; day++ {
		date := fmt.Sprintf("2024-01-%02d", day)
		north, south := 50, 50
		if day == 20 {
			south = 2000
		}
		fmt.Fprintf(&b, "%s,north,%d\n", date, north)
		fmt.Fprintf(&b, "%s,south,%d\n", date, south)
	}
	return mustTable(t, b.String())
}

func TestDetectAnomaliesFindsSpike(t *testing.T) {
	tbl := spikeTable(t)
	types := InferColumnTypes(tbl)
	profile := BuildProfile(tbl, types)

	anomalies := DetectAnomalies(tbl, types, profile)
	if len(anomalies) == 0 {
		t.Fatal("expected at least one anomaly")
	}

	var spike *models.Anomaly
	for i := range anomalies {
		if anomalies[i].Type == "spike" {
			spike = &anomalies[i]
			break
		}
	}
	if spike == nil {
		t.Fatalf("no spike among anomalies: %+v", anomalies)
	}
	if spike.MetricColumn != "revenue" {
		t.Errorf("spike metric = %q, want revenue", spike.MetricColumn)
	}
	if !spike.Bucket.Equal(time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("spike bucket = %v, want 2024-01-20", spike.Bucket)
	}
	if spike.Score < SpikeZThreshold {
		t.Errorf("spike score = %v, below threshold %v", spike.Score, SpikeZThreshold)
	}
}

func TestAnomalyScoresNonNegativeAndSorted(t *testing.T) {
	tbl := spikeTable(t)
	types := InferColumnTypes(tbl)
	profile := BuildProfile(tbl, types)

	anomalies := DetectAnomalies(tbl, types, profile)
	for i, a := range anomalies {
		if a.Score < 0 {
			t.Errorf("anomaly %d has negative score %v", i, a.Score)
		}
		if i > 0 && a.Score > anomalies[i-1].Score {
			t.Errorf("anomalies not sorted at %d", i)
		}
	}
	if len(anomalies) > MaxAnomalies {
		t.Errorf("got %d anomalies, cap is %d", len(anomalies), MaxAnomalies)
	}
}

// levelShiftTable builds a daily three-region series where east's
// revenue triples from the first full week of March onward.
func levelShiftTable(t *testing.T) *dataset.Table {
	t.Helper()
	var b strings.Builder
	b.WriteString("date,region,revenue\n")
	shift := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)
	for d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC); !d.After(end); d = d.AddDate(0, 0, 1) {
		east := 100
		if !d.Before(shift) {
			east = 300
		}
		date := d.Format("2006-01-02")
		fmt.Fprintf(&b, "%s,north,100\n", date)
		fmt.Fprintf(&b, "%s,south,100\n", date)
		fmt.Fprintf(&b, "%s,east,%d\n", date, east)
	}
	return mustTable(t, b.String())
}

func TestDetectAnomaliesFlagsLevelShift(t *testing.T) {
	tbl := levelShiftTable(t)
	types := InferColumnTypes(tbl)
	profile := BuildProfile(tbl, types)

	anomalies := DetectAnomalies(tbl, types, profile)
	var spike *models.Anomaly
	for i := range anomalies {
		if anomalies[i].Type == "spike" {
			spike = &anomalies[i]
			break
		}
	}
	if spike == nil {
		t.Fatalf("sustained level shift not flagged: %+v", anomalies)
	}
	if spike.MetricColumn != "revenue" {
		t.Errorf("spike metric = %q, want revenue", spike.MetricColumn)
	}
	if spike.TimeGrain != models.GrainWeek {
		t.Errorf("spike grain = %q, want week", spike.TimeGrain)
	}
	// The first shifted week is the strongest spike: its baseline is
	// still entirely pre-shift.
	if !spike.Bucket.Equal(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("spike bucket = %v, want week of 2024-03-04", spike.Bucket)
	}

	res, err := ExplainAnomaly(tbl, types, profile, *spike)
	if err != nil {
		t.Fatalf("ExplainAnomaly: %v", err)
	}
	lead := res.Table.Rows[0]
	if lead["region"] != "east" {
		t.Errorf("lead driver = %v, want east", lead["region"])
	}
	if lead["delta"] != 1400.0 {
		t.Errorf("lead delta = %v, want 1400", lead["delta"])
	}
}

func TestDetectOutliers(t *testing.T) {
	var b strings.Builder
	b.WriteString("v\n")
	for i := 0; i < 99; i++ {
		fmt.Fprintf(&b, "%d\n", 100+i%10)
	}
	b.WriteString("100000\n")
	tbl := mustTable(t, b.String())
	types := InferColumnTypes(tbl)
	profile := BuildProfile(tbl, types)

	anomalies := DetectAnomalies(tbl, types, profile)
	found := false
	for _, a := range anomalies {
		if a.Type == "outlier" && a.Column == "v" && a.RowValue == 100000 {
			found = true
			if a.RowValue <= a.High {
				t.Errorf("outlier value %v inside fence (%v, %v)", a.RowValue, a.Low, a.High)
			}
		}
	}
	if !found {
		t.Errorf("extreme value not flagged: %+v", anomalies)
	}
}

func TestNoAnomaliesOnFlatData(t *testing.T) {
	var b strings.Builder
	b.WriteString("date,v\n")
	for day := 1; day <= 20; day++ {
		fmt.Fprintf(&b, "2024-01-%02d,100\n", day)
	}
	tbl := mustTable(t, b.String())
	types := InferColumnTypes(tbl)
	profile := BuildProfile(tbl, types)

	anomalies := DetectAnomalies(tbl, types, profile)
	if len(anomalies) != 0 {
		t.Errorf("flat series produced anomalies: %+v", anomalies)
	}
}

func TestExplainAnomalyReconciles(t *testing.T) {
	tbl := spikeTable(t)
	types := InferColumnTypes(tbl)
	profile := BuildProfile(tbl, types)

	spike := models.Anomaly{
		Type:         "spike",
		DateColumn:   "date",
		MetricColumn: "revenue",
		Bucket:       time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
		Value:        2050,
		TimeGrain:    models.GrainDay,
	}

	res, err := ExplainAnomaly(tbl, types, profile, spike)
	if err != nil {
		t.Fatalf("ExplainAnomaly: %v", err)
	}

	// Segment currents must sum back to the spike bucket's total.
	var current float64
	for _, row := range res.Table.Rows {
		current += row["current"].(float64)
	}
	if math.Abs(current-2050) > 1e-9 {
		t.Errorf("segment currents sum to %v, want 2050", current)
	}

	// south moved by +1950 and must lead the drivers.
	lead := res.Table.Rows[0]
	if lead["region"] != "south" {
		t.Errorf("lead driver = %v, want south", lead["region"])
	}
	if lead["delta"] != 1950.0 {
		t.Errorf("lead delta = %v, want 1950", lead["delta"])
	}

	if res.Citation == nil || !res.Citation.Computed {
		t.Error("explanation must carry a computed citation")
	}
}

func TestExplainRejectsOutliers(t *testing.T) {
	tbl := spikeTable(t)
	types := InferColumnTypes(tbl)
	profile := BuildProfile(tbl, types)

	_, err := ExplainAnomaly(tbl, types, profile, models.Anomaly{Type: "outlier", Column: "revenue"})
	if err == nil {
		t.Fatal("expected error explaining an outlier anomaly")
	}
}
