package service

import (
	"strings"
	"testing"

	"github.com/datapeek/backend/internal/dataset"
)

// mustTable parses inline CSV for tests.
func mustTable(t *testing.T, csv string) *dataset.Table {
	t.Helper()
	tbl, err := dataset.LoadCSV(strings.NewReader(strings.TrimSpace(csv)))
	if err != nil {
		t.Fatalf("failed to load test table: %v", err)
	}
	return tbl
}

// salesTable is a small fixture with a date column, a categorical
// dimension, and a numeric metric.
func salesTable(t *testing.T) *dataset.Table {
	t.Helper()
	return mustTable(t, `
date,region,revenue,units
2024-01-01,north,100,1
2024-01-02,south,200,2
2024-01-03,north,150,1
2024-01-08,south,250,3
2024-01-09,north,120,1
2024-01-10,south,180,2
2024-02-01,north,130,1
2024-02-02,south,220,2
2024-02-03,west,90,1
`)
}
