package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/datapeek/backend/internal/models"
	"github.com/datapeek/backend/internal/repository"
)

// stubModel is a canned LanguageModel for fallback-path tests.
type stubModel struct {
	reply string
	err   error
	asked []string
}

func (m *stubModel) Complete(ctx context.Context, system, user string) (string, error) {
	m.asked = append(m.asked, user)
	return m.reply, m.err
}

// seedReadyDataset stores a fully analyzed dataset and returns its id.
func seedReadyDataset(t *testing.T, repo repository.DatasetRepository) string {
	t.Helper()
	tbl := salesTable(t)
	analysis, err := Analyze(context.Background(), tbl)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	ds := &models.Dataset{
		ID:        "ds-1",
		ShareID:   "share-1",
		Status:    models.StatusProcessing,
		CreatedAt: time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), ds); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.SetReady(context.Background(), ds.ID, tbl, analysis); err != nil {
		t.Fatalf("SetReady: %v", err)
	}
	return ds.ID
}

func TestChatDeterministicAnswer(t *testing.T) {
	repo := repository.NewMemoryDatasetRepository()
	id := seedReadyDataset(t, repo)
	model := &stubModel{reply: "should never be used"}
	svc := NewChatService(repo, model)

	ans, err := svc.Ask(context.Background(), id, "What is the total revenue?")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if !strings.Contains(ans.Text, "1440") {
		t.Errorf("text = %q, want computed total 1440", ans.Text)
	}
	if ans.Citation == nil || !ans.Citation.Computed {
		t.Error("deterministic answer must be cited")
	}
	if len(model.asked) != 0 {
		t.Errorf("model was consulted for a parseable question: %v", model.asked)
	}
}

func TestChatFallbackWithoutModel(t *testing.T) {
	repo := repository.NewMemoryDatasetRepository()
	id := seedReadyDataset(t, repo)
	svc := NewChatService(repo, nil)

	ans, err := svc.Ask(context.Background(), id, "why did sales dip in march")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Citation != nil {
		t.Error("fallback help must not claim a citation")
	}
	if !strings.Contains(ans.Text, "revenue") {
		t.Errorf("help text = %q, want it to list available columns", ans.Text)
	}
}

func TestChatModelFallback(t *testing.T) {
	repo := repository.NewMemoryDatasetRepository()
	id := seedReadyDataset(t, repo)
	model := &stubModel{reply: "Sales likely dipped due to seasonality."}
	svc := NewChatService(repo, model)

	ans, err := svc.Ask(context.Background(), id, "why did sales dip in march")
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if ans.Text != model.reply {
		t.Errorf("text = %q, want the model reply", ans.Text)
	}
	if ans.Citation != nil {
		t.Error("model answers are uncited")
	}
	if len(model.asked) != 1 {
		t.Errorf("model asked %d times, want 1", len(model.asked))
	}
}

func TestChatModelError(t *testing.T) {
	repo := repository.NewMemoryDatasetRepository()
	id := seedReadyDataset(t, repo)
	model := &stubModel{err: errors.New("rate limited")}
	svc := NewChatService(repo, model)

	if _, err := svc.Ask(context.Background(), id, "why did sales dip"); err == nil {
		t.Fatal("expected model error to propagate")
	}
}

func TestChatDatasetStates(t *testing.T) {
	repo := repository.NewMemoryDatasetRepository()
	svc := NewChatService(repo, nil)
	ctx := context.Background()

	if _, err := svc.Ask(ctx, "missing", "how many rows"); !errors.Is(err, repository.ErrNotFound) {
		t.Errorf("missing dataset err = %v, want ErrNotFound", err)
	}

	err := repo.Create(ctx, &models.Dataset{ID: "processing", Status: models.StatusProcessing})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := svc.Ask(ctx, "processing", "how many rows"); !errors.Is(err, ErrDatasetNotReady) {
		t.Errorf("processing dataset err = %v, want ErrDatasetNotReady", err)
	}

	err = repo.Create(ctx, &models.Dataset{ID: "broken", Status: models.StatusProcessing})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.SetFailed(ctx, "broken", "parse error"); err != nil {
		t.Fatalf("SetFailed: %v", err)
	}
	if _, err := svc.Ask(ctx, "broken", "how many rows"); !errors.Is(err, ErrDatasetFailed) {
		t.Errorf("failed dataset err = %v, want ErrDatasetFailed", err)
	}
}
