package service

import (
	"strings"
	"testing"
)

func TestAnswerRowCount(t *testing.T) {
	tbl := salesTable(t)
	types := InferColumnTypes(tbl)
	profile := BuildProfile(tbl, types)

	ans, err := AnswerQuestion(tbl, types, profile, "How many rows are there?")
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if ans == nil {
		t.Fatal("row-count question not matched")
	}
	if !strings.Contains(ans.Text, "9 rows") {
		t.Errorf("text = %q, want row count of 9", ans.Text)
	}
	if ans.Citation == nil || !ans.Citation.Computed {
		t.Error("answer must carry a computed citation")
	}
	if ans.Citation.RowsScanned != 9 {
		t.Errorf("rows scanned = %d, want 9", ans.Citation.RowsScanned)
	}
}

func TestAnswerTopNByMetric(t *testing.T) {
	tbl := salesTable(t)
	types := InferColumnTypes(tbl)
	profile := BuildProfile(tbl, types)

	ans, err := AnswerQuestion(tbl, types, profile, "top 2 regions by revenue")
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if ans == nil || ans.Table == nil {
		t.Fatal("top-N question not answered with a table")
	}
	if len(ans.Table.Rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(ans.Table.Rows))
	}
	if ans.Table.Rows[0]["region"] != "south" || ans.Table.Rows[0]["y"] != 850.0 {
		t.Errorf("first row = %v, want south/850", ans.Table.Rows[0])
	}
	if ans.Table.Rows[1]["region"] != "north" || ans.Table.Rows[1]["y"] != 500.0 {
		t.Errorf("second row = %v, want north/500", ans.Table.Rows[1])
	}
	if ans.Citation == nil || ans.Citation.Question == "" {
		t.Error("citation must echo the question")
	}
}

func TestAnswerTopNByCount(t *testing.T) {
	tbl := salesTable(t)
	types := InferColumnTypes(tbl)
	profile := BuildProfile(tbl, types)

	ans, err := AnswerQuestion(tbl, types, profile, "top 3 region by count")
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if ans == nil || ans.Table == nil {
		t.Fatal("top-N count question not answered with a table")
	}
	if len(ans.Table.Rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(ans.Table.Rows))
	}
	// north and south tie at 4; ties resolve by group key.
	if ans.Table.Rows[0]["region"] != "north" || ans.Table.Rows[0]["y"] != 4.0 {
		t.Errorf("first row = %v, want north/4", ans.Table.Rows[0])
	}
	if ans.Table.Rows[2]["region"] != "west" || ans.Table.Rows[2]["y"] != 1.0 {
		t.Errorf("last row = %v, want west/1", ans.Table.Rows[2])
	}
}

func TestAnswerScalarAggregates(t *testing.T) {
	tbl := salesTable(t)
	types := InferColumnTypes(tbl)
	profile := BuildProfile(tbl, types)

	tests := []struct {
		question string
		want     string
	}{
		{"What is the total revenue?", "1440"},
		{"average revenue", "160"},
		{"min revenue", "90"},
		{"maximum revenue", "250"},
		{"sum of units", "14"},
	}
	for _, tt := range tests {
		ans, err := AnswerQuestion(tbl, types, profile, tt.question)
		if err != nil {
			t.Fatalf("%q: %v", tt.question, err)
		}
		if ans == nil {
			t.Errorf("%q: not matched", tt.question)
			continue
		}
		if !strings.Contains(ans.Text, tt.want) {
			t.Errorf("%q: text = %q, want it to contain %q", tt.question, ans.Text, tt.want)
		}
		if ans.Citation == nil || !ans.Citation.Computed {
			t.Errorf("%q: missing computed citation", tt.question)
		}
	}
}

func TestAnswerTrendDefaultGrain(t *testing.T) {
	tbl := salesTable(t)
	types := InferColumnTypes(tbl)
	profile := BuildProfile(tbl, types)

	ans, err := AnswerQuestion(tbl, types, profile, "revenue over time")
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if ans == nil || ans.Chart == nil {
		t.Fatal("trend question not answered with a chart")
	}
	// 9 distinct days over a ~1 month span bucket at day grain.
	if len(ans.Chart.Data) != 9 {
		t.Errorf("got %d points, want 9 daily buckets", len(ans.Chart.Data))
	}
}

func TestAnswerTrendGrainOverride(t *testing.T) {
	tbl := salesTable(t)
	types := InferColumnTypes(tbl)
	profile := BuildProfile(tbl, types)

	ans, err := AnswerQuestion(tbl, types, profile, "monthly revenue trend")
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if ans == nil || ans.Chart == nil {
		t.Fatal("trend question not answered with a chart")
	}
	if len(ans.Chart.Data) != 2 {
		t.Fatalf("got %d points, want 2 monthly buckets", len(ans.Chart.Data))
	}
	if ans.Chart.Data[0].Y != 1000 || ans.Chart.Data[1].Y != 440 {
		t.Errorf("monthly totals = %v/%v, want 1000/440",
			ans.Chart.Data[0].Y, ans.Chart.Data[1].Y)
	}
}

func TestAnswerTrendExplicitGrainWord(t *testing.T) {
	tbl := salesTable(t)
	types := InferColumnTypes(tbl)
	profile := BuildProfile(tbl, types)

	ans, err := AnswerQuestion(tbl, types, profile, "units by week")
	if err != nil {
		t.Fatalf("AnswerQuestion: %v", err)
	}
	if ans == nil || ans.Chart == nil {
		t.Fatal("trend question not answered with a chart")
	}
	// Jan 1, Jan 8, and Jan 29 ISO weeks.
	if len(ans.Chart.Data) != 3 {
		t.Errorf("got %d points, want 3 weekly buckets", len(ans.Chart.Data))
	}
}

func TestAnswerUnmatchedQuestions(t *testing.T) {
	tbl := salesTable(t)
	types := InferColumnTypes(tbl)
	profile := BuildProfile(tbl, types)

	questions := []string{
		"what's the weather like",
		"total nonsense",
		"top 5 frobnicators by widgets",
		"tell me a joke",
	}
	for _, q := range questions {
		ans, err := AnswerQuestion(tbl, types, profile, q)
		if err != nil {
			t.Errorf("%q: unexpected error %v", q, err)
		}
		if ans != nil {
			t.Errorf("%q: matched deterministically, want fallthrough: %+v", q, ans)
		}
	}
}

func TestMatchColumn(t *testing.T) {
	tbl := salesTable(t)
	types := InferColumnTypes(tbl)

	tests := []struct {
		phrase string
		wanted []string
		want   string
	}{
		{"revenue", []string{"numeric"}, "revenue"},
		{"Revenue ", []string{"numeric"}, "revenue"},
		{"regions", []string{"categorical"}, "region"},
		{"total revenue", []string{"numeric"}, "revenue"},
		{"widgets", []string{"numeric"}, ""},
		{"region", []string{"numeric"}, ""},
	}
	for _, tt := range tests {
		got := matchColumn(tbl, types, tt.phrase, tt.wanted...)
		if got != tt.want {
			t.Errorf("matchColumn(%q, %v) = %q, want %q", tt.phrase, tt.wanted, got, tt.want)
		}
	}
}
