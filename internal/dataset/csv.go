package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// SupportedExts lists the file extensions the loader accepts.
var SupportedExts = map[string]bool{
	".csv": true,
	".tsv": true,
}

// MaxLoadRows bounds how many data rows a single load will read.
// Oversized files are truncated rather than rejected.
const MaxLoadRows = 500_000

// LoadCSV reads comma-separated data into a Table. The first record is
// the header; empty and null-token cells become null values.
func LoadCSV(r io.Reader) (*Table, error) {
	return load(r, ',')
}

// LoadTSV reads tab-separated data into a Table.
func LoadTSV(r io.Reader) (*Table, error) {
	return load(r, '\t')
}

// LoadByName picks the delimiter from the filename extension.
func LoadByName(filename string, r io.Reader) (*Table, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !SupportedExts[ext] {
		return nil, fmt.Errorf("unsupported file extension %q (want .csv or .tsv)", ext)
	}
	if ext == ".tsv" {
		return LoadTSV(r)
	}
	return LoadCSV(r)
}

func load(r io.Reader, comma rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		columns[i] = h
	}
	columns = dedupeColumns(columns)

	var rows [][]Value
	for len(rows) < MaxLoadRows {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(rows)+2, err)
		}
		row := make([]Value, len(columns))
		for i := range columns {
			if i >= len(record) || IsNullToken(record[i]) {
				row[i] = Null()
				continue
			}
			row[i] = String(strings.TrimSpace(record[i]))
		}
		rows = append(rows, row)
	}

	return New(columns, rows)
}

// dedupeColumns suffixes repeated header names so the column index
// stays unambiguous.
func dedupeColumns(columns []string) []string {
	seen := make(map[string]int, len(columns))
	out := make([]string, len(columns))
	for i, c := range columns {
		if n, ok := seen[c]; ok {
			seen[c] = n + 1
			out[i] = fmt.Sprintf("%s_%d", c, n+1)
			continue
		}
		seen[c] = 1
		out[i] = c
	}
	return out
}
