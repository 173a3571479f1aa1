package service

import (
	"context"
	"errors"
	"testing"

	"github.com/datapeek/backend/internal/models"
	"github.com/datapeek/backend/internal/repository"
)

func TestPivotServiceRunsAgainstStoredTable(t *testing.T) {
	repo := repository.NewMemoryDatasetRepository()
	id := seedReadyDataset(t, repo)
	svc := NewPivotService(repo)

	res, err := svc.Pivot(context.Background(), id, models.PivotRequest{
		GroupBy: []string{"region"},
		Metric:  "revenue",
		Agg:     models.AggSum,
	})
	if err != nil {
		t.Fatalf("Pivot: %v", err)
	}
	if len(res.Table.Rows) != 3 {
		t.Fatalf("got %d rows, want 3 regions", len(res.Table.Rows))
	}
	if res.Table.Rows[0]["region"] != "south" {
		t.Errorf("top region = %v, want south", res.Table.Rows[0]["region"])
	}
}

func TestPivotServiceRequiresReadyDataset(t *testing.T) {
	repo := repository.NewMemoryDatasetRepository()
	svc := NewPivotService(repo)
	ctx := context.Background()

	err := repo.Create(ctx, &models.Dataset{ID: "pending", Status: models.StatusProcessing})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = svc.Pivot(ctx, "pending", models.PivotRequest{GroupBy: []string{"region"}})
	if !errors.Is(err, ErrDatasetNotReady) {
		t.Errorf("err = %v, want ErrDatasetNotReady", err)
	}
}

func TestExplainIndexOutOfRange(t *testing.T) {
	repo := repository.NewMemoryDatasetRepository()
	id := seedReadyDataset(t, repo)
	svc := NewPivotService(repo)

	_, err := svc.Explain(context.Background(), id, 999)
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if verr.Field != "anomaly_index" {
		t.Errorf("field = %q, want anomaly_index", verr.Field)
	}

	_, err = svc.Explain(context.Background(), id, -1)
	if !errors.As(err, &verr) {
		t.Errorf("negative index err = %v, want validation error", err)
	}
}
