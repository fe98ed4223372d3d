package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/muni-info/backend/internal/models"
)

func TestPostgresLifecycleIntegration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pg, err := NewPostgres(ctx, url)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	defer pg.Close()
	if err := pg.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}

	sender := "itest:" + time.Now().UTC().Format("150405.000000000")
	created, err := pg.Create(ctx, NewComplaint{
		Sender:      sender,
		Category:    "Water",
		Description: "Burst pipe on Vilakazi Street",
		Priority:    models.PriorityHigh,
		Location: &models.LocationInfo{
			Latitude:     -26.2041,
			Longitude:    28.0473,
			Province:     "Gauteng",
			Municipality: "Johannesburg",
		},
		Classification: &models.Classification{
			Category:           "Water",
			CategoryConfidence: 0.9,
			Priority:           models.PriorityHigh,
			Keywords:           []string{"burst", "pipe"},
		},
		Routing: &models.RoutingDecision{
			Department:       "water_sanitation",
			StaffID:          "staff-001",
			ResponseEstimate: "within 24 hours",
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := pg.GetByReference(ctx, created.ReferenceID)
	if err != nil {
		t.Fatalf("GetByReference: %v", err)
	}
	if got.Location == nil || got.Location.Municipality != "Johannesburg" {
		t.Fatalf("location did not round-trip: %+v", got.Location)
	}
	if got.Classification == nil || len(got.Classification.Keywords) != 2 {
		t.Fatalf("classification did not round-trip: %+v", got.Classification)
	}
	if got.AssignedDepartment != "water_sanitation" {
		t.Fatalf("assigned department = %q", got.AssignedDepartment)
	}

	updated, err := pg.UpdateStatus(ctx, created.ReferenceID, models.StatusResolved, "Crew replaced the valve")
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if updated.Status != models.StatusResolved || len(updated.Updates) != 1 {
		t.Fatalf("update not applied: %+v", updated)
	}

	list, err := pg.ListBySender(ctx, sender, 10)
	if err != nil {
		t.Fatalf("ListBySender: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("list = %d items, want 1", len(list))
	}

	counts, err := pg.CountByCategorySince(ctx, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("CountByCategorySince: %v", err)
	}
	if counts["Water"] < 1 {
		t.Fatalf("counts = %v", counts)
	}

	if _, err := pg.GetByReference(ctx, "MI-1999-000001"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
