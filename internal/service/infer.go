package service

import (
	"regexp"

	"github.com/datapeek/backend/internal/dataset"
	"github.com/datapeek/backend/internal/models"
)

const (
	// NumericParseThreshold is the fraction of non-null cells that must
	// parse as numbers for a column to infer numeric.
	NumericParseThreshold = 0.90

	// DatetimeParseThreshold is the fraction of non-null cells that must
	// parse as timestamps for a column to infer datetime.
	DatetimeParseThreshold = 0.80

	// CategoricalMaxRatio is the distinct/rows ceiling for categorical.
	CategoricalMaxRatio = 0.50

	// CategoricalBaseCap is the small-dataset distinct-count floor:
	// a column is categorical when distinct <= max(cap, 5% of rows).
	CategoricalBaseCap = 25

	// IdentifierUniqueRatio marks a column identifier-like when
	// distinct/non-null meets or exceeds it.
	IdentifierUniqueRatio = 0.95
)

var idNamePattern = regexp.MustCompile(`(?i)(^id$|_id$|uuid|guid)`)

// InferColumnTypes classifies every column. The rule cascade runs in a
// fixed precedence (numeric, then datetime, then categorical, then
// text), so re-running on the same data always yields the same types.
// Near-unique or id-named columns are reported as identifier.
func InferColumnTypes(t *dataset.Table) map[string]string {
	types := make(map[string]string, t.ColumnCount())
	for _, col := range t.Columns() {
		types[col] = inferColumn(t, col)
	}
	return types
}

func inferColumn(t *dataset.Table, col string) string {
	values := t.ColumnValues(col)

	nonNull := 0
	numericHits := 0
	timeHits := 0
	distinct := make(map[string]bool)
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		nonNull++
		if _, ok := v.AsNumber(); ok {
			numericHits++
		}
		if _, ok := v.AsTime(); ok {
			timeHits++
		}
		distinct[v.AsString()] = true
	}
	if nonNull == 0 {
		return models.TypeText
	}

	idLike := isIdentifierLike(col, len(distinct), nonNull)

	if float64(numericHits)/float64(nonNull) >= NumericParseThreshold {
		// Numeric identifiers (sequence numbers, account ids) are more
		// useful reported as identifiers than as metrics.
		if idLike && idNamePattern.MatchString(col) {
			return models.TypeIdentifier
		}
		return models.TypeNumeric
	}
	if float64(timeHits)/float64(nonNull) >= DatetimeParseThreshold {
		return models.TypeDatetime
	}
	if idLike {
		return models.TypeIdentifier
	}

	cap := CategoricalBaseCap
	if pct := t.RowCount() / 20; pct > cap {
		cap = pct
	}
	ratio := float64(len(distinct)) / float64(t.RowCount())
	if len(distinct) <= cap && ratio <= CategoricalMaxRatio {
		return models.TypeCategorical
	}
	return models.TypeText
}

// isIdentifierLike applies the id heuristic: near-unique values or an
// id-shaped name.
func isIdentifierLike(name string, distinct, nonNull int) bool {
	if nonNull == 0 {
		return false
	}
	if float64(distinct)/float64(nonNull) >= IdentifierUniqueRatio {
		return true
	}
	return idNamePattern.MatchString(name)
}
