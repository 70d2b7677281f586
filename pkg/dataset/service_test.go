package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stockcast/platform/pkg/metadata"
)

func priceCSV(rows int) []byte {
	var b strings.Builder
	b.WriteString("date,open,high,low,close,volume\n")
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < rows; i++ {
		price := 100.0 + float64(i)
		fmt.Fprintf(&b, "%s,%.2f,%.2f,%.2f,%.2f,%d\n",
			day.Format("2006-01-02"), price, price+1, price-1, price+0.5, 1000+i)
		day = day.AddDate(0, 0, 1)
	}
	return []byte(b.String())
}

func newTestService(t *testing.T) (*Service, *metadata.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := metadata.NewStore(filepath.Join(dir, "metadata.json"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	service, err := NewService(store, filepath.Join(dir, "uploads"), 1<<20, 5, 1000)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	return service, store
}

func TestUploadRegistersValidFile(t *testing.T) {
	service, _ := newTestService(t)

	file, err := service.Upload(priceCSV(10), "prices.csv")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.HasPrefix(file.FileID, "file_") || len(file.FileID) != len("file_")+8 {
		t.Fatalf("unexpected file ID %q", file.FileID)
	}
	if file.RowCount != 10 {
		t.Fatalf("expected 10 rows, got %d", file.RowCount)
	}
	if file.DateRange.Start != "2024-01-01" || file.DateRange.End != "2024-01-10" {
		t.Fatalf("unexpected date range %+v", file.DateRange)
	}
	if file.Status != metadata.DataFileValid {
		t.Fatalf("expected valid status, got %s", file.Status)
	}
	if _, err := os.Stat(file.FilePath); err != nil {
		t.Fatalf("expected stored file on disk: %v", err)
	}
}

func TestUploadRejectsMissingColumns(t *testing.T) {
	service, _ := newTestService(t)

	csv := []byte("date,open,close\n2024-01-01,100,101\n")
	_, err := service.Upload(csv, "bad.csv")
	if !errors.Is(err, ErrInvalidCSV) {
		t.Fatalf("expected ErrInvalidCSV, got %v", err)
	}
	if !strings.Contains(err.Error(), "missing required column") {
		t.Fatalf("expected missing-column message, got %v", err)
	}
}

func TestUploadRejectsTooFewRows(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Upload(priceCSV(3), "short.csv")
	if !errors.Is(err, ErrInvalidCSV) {
		t.Fatalf("expected ErrInvalidCSV, got %v", err)
	}
}

func TestUploadRejectsEmptyFile(t *testing.T) {
	service, _ := newTestService(t)

	if _, err := service.Upload(nil, "empty.csv"); !errors.Is(err, ErrInvalidCSV) {
		t.Fatalf("expected ErrInvalidCSV, got %v", err)
	}
}

func TestDeleteRefusesFileReferencedByModel(t *testing.T) {
	service, store := newTestService(t)

	file, err := service.Upload(priceCSV(10), "prices.csv")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := store.AddModel(metadata.Model{
		ModelID:    "model_11112222",
		ModelName:  "daily-close",
		DataFileID: file.FileID,
		Status:     metadata.ModelReady,
	}); err != nil {
		t.Fatalf("add model: %v", err)
	}

	err = service.Delete(file.FileID)
	if !errors.Is(err, ErrInUse) {
		t.Fatalf("expected ErrInUse, got %v", err)
	}
	if !strings.Contains(err.Error(), "daily-close") {
		t.Fatalf("expected referencing model name in error, got %v", err)
	}

	// Once the referencing model is gone the file becomes deletable.
	if _, err := store.DeleteModel("model_11112222", true); err != nil {
		t.Fatalf("delete model: %v", err)
	}
	if err := service.Delete(file.FileID); err != nil {
		t.Fatalf("expected delete to succeed after model removal, got %v", err)
	}
}

func TestDeleteRemovesFileAndSoftDeletesRecord(t *testing.T) {
	service, _ := newTestService(t)

	file, err := service.Upload(priceCSV(10), "prices.csv")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := service.Delete(file.FileID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := os.Stat(file.FilePath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected file removed from disk, got %v", err)
	}
	got, ok, err := service.Get(file.FileID)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.Status != metadata.DataFileDeleted {
		t.Fatalf("expected deleted status, got %s", got.Status)
	}

	if err := service.Delete("file_missing1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSafeFileNameStripsPathSeparators(t *testing.T) {
	name := safeFileName("file_abc12345", "../../etc/passwd")
	if strings.ContainsAny(name, "/\\") {
		t.Fatalf("expected sanitized name, got %q", name)
	}
}
