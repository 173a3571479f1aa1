package dataset

import (
	"strconv"
	"strings"
	"time"
)

// Kind identifies what a cell holds after parsing.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindTime
)

// Value is a single tagged cell. Cells arrive from file parsing as
// strings or nulls; numeric and time interpretations are derived on
// demand so every downstream stage shares one parsing path.
type Value struct {
	Kind Kind
	Str  string
	Num  float64
	Time time.Time
}

// Null returns a null cell.
func Null() Value {
	return Value{Kind: KindNull}
}

// String returns a string cell.
func String(s string) Value {
	return Value{Kind: KindString, Str: s}
}

// Number returns a numeric cell.
func Number(f float64) Value {
	return Value{Kind: KindNumber, Num: f}
}

// Time returns a timestamp cell.
func Timestamp(t time.Time) Value {
	return Value{Kind: KindTime, Time: t}
}

// IsNull reports whether the cell is null.
func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// AsNumber attempts a numeric interpretation of the cell.
func (v Value) AsNumber() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindString:
		return ParseNumber(v.Str)
	default:
		return 0, false
	}
}

// AsTime attempts a timestamp interpretation of the cell.
func (v Value) AsTime() (time.Time, bool) {
	switch v.Kind {
	case KindTime:
		return v.Time, true
	case KindString:
		return ParseTime(v.Str)
	default:
		return time.Time{}, false
	}
}

// AsString renders the cell for display. Null cells render empty.
func (v Value) AsString() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case KindTime:
		return v.Time.Format(time.RFC3339)
	default:
		return ""
	}
}

// nullTokens are cell contents treated as missing values on load.
var nullTokens = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"nan":  true,
	"null": true,
	"none": true,
	"-":    true,
}

// IsNullToken reports whether a raw string cell should load as null.
func IsNullToken(s string) bool {
	return nullTokens[strings.ToLower(strings.TrimSpace(s))]
}

// ParseNumber parses a string as a float. Thousands separators and a
// leading currency symbol are tolerated; anything else must satisfy
// strconv.ParseFloat.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "€")
	s = strings.TrimPrefix(s, "£")
	s = strings.ReplaceAll(s, ",", "")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// timeLayouts is the fixed, ordered list of accepted timestamp layouts.
// Order matters: the first matching layout wins, which keeps parsing
// deterministic across runs.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"01/02/2006 15:04",
	"Jan 2, 2006",
	"2 Jan 2006",
	"2006-01",
}

// ParseTime parses a string against the fixed layout list.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
