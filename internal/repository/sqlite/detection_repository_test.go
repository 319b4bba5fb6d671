package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"sorter/internal/model"
	"sorter/internal/repository"
)

func newTestRepository(t *testing.T) (*DetectionRepository, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "data", "test.db")
	db, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	repo := NewDetectionRepository(db)
	t.Cleanup(func() { repo.Close() })
	return repo, dbPath
}

func TestDatabase_Connection(t *testing.T) {
	_, dbPath := newTestRepository(t)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file should exist")
	}
}

func TestDetectionRepository_InsertAssignsIDAndTimestamp(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	det := &model.Detection{
		Text:       "A1",
		ActuatorID: 1,
		Confidence: 0.93,
		Box:        model.BoundingBox{X1: 10, Y1: 20, X2: 110, Y2: 220},
	}
	if err := repo.Insert(ctx, det); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if det.ID != 1 {
		t.Errorf("expected id 1, got %d", det.ID)
	}
	if det.Timestamp.IsZero() {
		t.Error("expected timestamp to be assigned")
	}

	records, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	got := records[0]
	if got.Text != "A1" || got.ActuatorID != 1 || got.Confidence != 0.93 {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.Box != det.Box {
		t.Errorf("expected bbox %v, got %v", det.Box, got.Box)
	}
	if !got.Timestamp.Equal(det.Timestamp) {
		t.Errorf("expected timestamp %v, got %v", det.Timestamp, got.Timestamp)
	}
}

func TestDetectionRepository_RecentMostRecentFirst(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	for i, text := range []string{"A1", "A2", "A3"} {
		if err := repo.Insert(ctx, &model.Detection{Text: text, ActuatorID: i + 1, Box: model.BoundingBox{X2: 1, Y2: 1}}); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	records, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].ID != 3 || records[1].ID != 2 {
		t.Errorf("expected ids [3 2], got [%d %d]", records[0].ID, records[1].ID)
	}
}

func TestDetectionRepository_RecentDefaultLimit(t *testing.T) {
	repo, _ := newTestRepository(t)

	records, err := repo.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty log, got %d records", len(records))
	}
}

func TestDetectionRepository_RecentHugeLimit(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	if err := repo.Insert(ctx, &model.Detection{Text: "A1", ActuatorID: 1, Box: model.BoundingBox{X2: 1, Y2: 1}}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	records, err := repo.Recent(ctx, 2000000000)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 1 || cap(records) > repository.MaxRecentLimit {
		t.Errorf("expected 1 record with bounded capacity, got len %d cap %d", len(records), cap(records))
	}
}

func TestDetectionRepository_ConcurrentInserts(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := repo.Insert(ctx, &model.Detection{Text: "A1", ActuatorID: 1, Box: model.BoundingBox{X2: 1, Y2: 1}}); err != nil {
				t.Errorf("Insert %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	records, err := repo.Recent(ctx, 100)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(records) != 20 {
		t.Errorf("expected 20 records, got %d", len(records))
	}

	seen := make(map[int64]bool)
	for _, r := range records {
		if seen[r.ID] {
			t.Errorf("duplicate id %d", r.ID)
		}
		seen[r.ID] = true
	}
}
