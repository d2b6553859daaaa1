package archive

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/invoiceworks/invoice-agent/internal/invoice"
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	db, err := New(filepath.Join(t.TempDir(), "archive.db"), logger)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewRepository(db.Conn())
}

func TestRepository_SaveLoadRoundTrip(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	number := "INV-1"
	total := 99.5
	elapsed := 3.25
	now := time.Now().UTC().Truncate(time.Millisecond)

	res := &invoice.ProcessingResult{
		FileID:            "id-1",
		OriginalFilename:  "inv.pdf",
		ProcessedFilename: "inv_20240101_000000.json",
		Status:            invoice.StatusSuccess,
		InvoiceData:       &invoice.InvoiceData{InvoiceNumber: &number, TotalAmount: &total},
		ProcessingTime:    &elapsed,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := repo.Save(ctx, res); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := repo.LoadRecent(ctx, 10)
	if err != nil {
		t.Fatalf("LoadRecent() error = %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("LoadRecent() returned %d results, want 1", len(loaded))
	}

	got := loaded[0]
	if got.FileID != "id-1" || got.Status != invoice.StatusSuccess {
		t.Errorf("loaded = %+v", got)
	}
	if got.InvoiceData == nil || *got.InvoiceData.InvoiceNumber != number || *got.InvoiceData.TotalAmount != total {
		t.Errorf("invoice data = %+v", got.InvoiceData)
	}
	if got.ProcessingTime == nil || *got.ProcessingTime != elapsed {
		t.Errorf("processing time = %v", got.ProcessingTime)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, now)
	}
}

func TestRepository_SaveUpserts(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	res := &invoice.ProcessingResult{
		FileID:           "id-1",
		OriginalFilename: "inv.pdf",
		Status:           invoice.StatusFailed,
		ErrorMessage:     "first try",
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := repo.Save(ctx, res); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	res.Status = invoice.StatusSuccess
	res.ErrorMessage = ""
	res.UpdatedAt = now.Add(time.Second)
	if err := repo.Save(ctx, res); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	loaded, err := repo.LoadRecent(ctx, 10)
	if err != nil {
		t.Fatalf("LoadRecent() error = %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("LoadRecent() returned %d results, want 1 after upsert", len(loaded))
	}
	if loaded[0].Status != invoice.StatusSuccess || loaded[0].ErrorMessage != "" {
		t.Errorf("upserted result = %+v", loaded[0])
	}
}

func TestRepository_Delete(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	res := &invoice.ProcessingResult{
		FileID:           "id-1",
		OriginalFilename: "inv.pdf",
		Status:           invoice.StatusFailed,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := repo.Save(ctx, res); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if err := repo.Delete(ctx, "id-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	loaded, _ := repo.LoadRecent(ctx, 10)
	if len(loaded) != 0 {
		t.Errorf("result still present after delete")
	}

	if err := repo.Delete(ctx, "never-there"); err != nil {
		t.Errorf("Delete of unknown id should not error: %v", err)
	}
}
