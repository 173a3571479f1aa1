package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/datapeek/backend/internal/dataset"
	"github.com/datapeek/backend/internal/models"
)

// Deterministic question patterns, tried in order. The first match
// wins, so "top 5 products by revenue" never falls through to the
// scalar-aggregate rule on "revenue".
var (
	topNPattern      = regexp.MustCompile(`(?i)\btop\s+(\d+)\s+(.+?)\s+by\s+(.+?)\s*\??$`)
	scalarPattern    = regexp.MustCompile(`(?i)\b(total|sum|average|avg|mean|min(?:imum)?|max(?:imum)?)\s+(?:of\s+)?([\w %$-]+?)\s*\??$`)
	trendPattern     = regexp.MustCompile(`(?i)^(?:show\s+|plot\s+)?(.+?)\s+(?:over\s+time|trend|by\s+(day|week|month))\s*\??$`)
	rowCountPattern  = regexp.MustCompile(`(?i)\bhow\s+many\s+(?:rows|records|entries)\b|\brow\s+count\b|\bnumber\s+of\s+(?:rows|records)\b`)
	grainWordPattern = regexp.MustCompile(`(?i)\b(daily|weekly|monthly)\b`)
)

// AnswerQuestion resolves a natural-language question against the
// dataset deterministically. Returns (nil, nil) when no rule matches;
// callers decide whether to fall back to a language model.
func AnswerQuestion(t *dataset.Table, types map[string]string, profile *models.DatasetProfile, question string) (*models.ChatAnswer, error) {
	q := strings.TrimSpace(question)

	if rowCountPattern.MatchString(q) {
		return answerRowCount(t, q), nil
	}
	if m := topNPattern.FindStringSubmatch(q); m != nil {
		return answerTopN(t, types, q, m)
	}
	if m := trendPattern.FindStringSubmatch(q); m != nil {
		if ans, err := answerTrend(t, types, profile, q, m); ans != nil || err != nil {
			return ans, err
		}
	}
	if m := scalarPattern.FindStringSubmatch(q); m != nil {
		if ans, err := answerScalar(t, types, q, m); ans != nil || err != nil {
			return ans, err
		}
	}
	return nil, nil
}

func answerRowCount(t *dataset.Table, question string) *models.ChatAnswer {
	citation := buildCitation("query", t.RowCount(), 1, []models.Operation{{Op: models.AggCount, Column: "__rows__"}})
	citation.Question = question
	return &models.ChatAnswer{
		Type:     "text",
		Text:     fmt.Sprintf("The dataset has %d rows.", t.RowCount()),
		Citation: citation,
	}
}

func answerTopN(t *dataset.Table, types map[string]string, question string, m []string) (*models.ChatAnswer, error) {
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return nil, nil
	}
	if n > MaxTopN {
		n = MaxTopN
	}
	dim := matchColumn(t, types, m[2], models.TypeCategorical, models.TypeIdentifier, models.TypeText)
	if dim == "" {
		return nil, nil
	}

	metricPhrase := strings.TrimSpace(m[3])
	req := models.PivotRequest{GroupBy: []string{dim}, TopN: n}
	if metricPhrase == "count" || metricPhrase == "frequency" {
		req.Agg = models.AggCount
	} else {
		metric := matchColumn(t, types, metricPhrase, models.TypeNumeric)
		if metric == "" {
			return nil, nil
		}
		req.Metric = metric
		req.Agg = models.AggSum
	}

	res, err := RunPivot(t, types, req)
	if err != nil {
		return nil, err
	}
	res.Citation.Question = question
	return &models.ChatAnswer{
		Type:     res.Type,
		Text:     res.Text,
		Table:    res.Table,
		Chart:    res.Chart,
		Citation: res.Citation,
	}, nil
}

func answerTrend(t *dataset.Table, types map[string]string, profile *models.DatasetProfile, question string, m []string) (*models.ChatAnswer, error) {
	dateCol, grain := bestTimeColumn(t, types, profile)
	if dateCol == "" {
		return nil, nil
	}
	if m[2] != "" {
		grain = strings.ToLower(m[2])
	} else if gw := grainWordPattern.FindString(question); gw != "" {
		grain = map[string]string{
			"daily":   models.GrainDay,
			"weekly":  models.GrainWeek,
			"monthly": models.GrainMonth,
		}[strings.ToLower(gw)]
	}

	req := models.PivotRequest{DateColumn: dateCol, TimeGrain: grain}
	phrase := strings.TrimSpace(m[1])
	if metric := matchColumn(t, types, phrase, models.TypeNumeric); metric != "" {
		req.Metric = metric
		req.Agg = models.AggSum
	} else if !strings.EqualFold(phrase, "rows") && !strings.EqualFold(phrase, "records") {
		return nil, nil
	} else {
		req.Agg = models.AggCount
	}

	res, err := RunPivot(t, types, req)
	if err != nil {
		return nil, err
	}
	res.Citation.Question = question
	return &models.ChatAnswer{
		Type:     res.Type,
		Text:     res.Text,
		Table:    res.Table,
		Chart:    res.Chart,
		Citation: res.Citation,
	}, nil
}

func answerScalar(t *dataset.Table, types map[string]string, question string, m []string) (*models.ChatAnswer, error) {
	agg := map[string]string{
		"total": models.AggSum, "sum": models.AggSum,
		"average": models.AggMean, "avg": models.AggMean, "mean": models.AggMean,
		"min": models.AggMin, "minimum": models.AggMin,
		"max": models.AggMax, "maximum": models.AggMax,
	}[strings.ToLower(m[1])]
	metric := matchColumn(t, types, m[2], models.TypeNumeric)
	if metric == "" {
		return nil, nil
	}

	vals, ok := t.NumericColumn(metric)
	var xs []float64
	for i, v := range vals {
		if ok[i] {
			xs = append(xs, v)
		}
	}
	if len(xs) == 0 {
		return nil, nil
	}

	var result float64
	switch agg {
	case models.AggMean:
		result = mean(xs)
	case models.AggMin:
		result = quantile(xs, 0)
	case models.AggMax:
		result = quantile(xs, 1)
	default:
		for _, x := range xs {
			result += x
		}
	}

	citation := buildCitation("query", t.RowCount(), 1, []models.Operation{{Op: agg, Column: metric}})
	citation.Question = question
	citation.ColumnsUsed = []string{metric}
	return &models.ChatAnswer{
		Type:     "text",
		Text:     fmt.Sprintf("The %s of %s is %s (over %d values).", agg, metric, trimFloat(result), len(xs)),
		Citation: citation,
	}, nil
}

// =============================================================================
// Column matching
// =============================================================================

// matchColumn resolves a user phrase to a column of one of the wanted
// types: exact normalized match first, then substring either way, then
// best token overlap. Ties break on column order for determinism.
func matchColumn(t *dataset.Table, types map[string]string, phrase string, wanted ...string) string {
	want := make(map[string]bool, len(wanted))
	for _, w := range wanted {
		want[w] = true
	}
	target := normalizeName(phrase)
	if target == "" {
		return ""
	}

	var candidates []string
	for _, c := range t.Columns() {
		if want[types[c]] {
			candidates = append(candidates, c)
		}
	}

	for _, c := range candidates {
		if normalizeName(c) == target {
			return c
		}
	}
	for _, c := range candidates {
		n := normalizeName(c)
		if strings.Contains(n, target) || strings.Contains(target, n) {
			return c
		}
	}

	targetTokens := strings.Fields(target)
	best := ""
	bestScore := 0
	for _, c := range candidates {
		tokens := strings.Fields(normalizeName(c))
		score := 0
		for _, tt := range targetTokens {
			for _, ct := range tokens {
				if tt == ct {
					score++
				}
			}
		}
		if score > bestScore {
			best = c
			bestScore = score
		}
	}
	return best
}

var nonAlnumPattern = regexp.MustCompile(`[^a-z0-9]+`)

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonAlnumPattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
