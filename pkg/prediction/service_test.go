package prediction

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stockcast/platform/pkg/dataset"
	"github.com/stockcast/platform/pkg/metadata"
	"github.com/stockcast/platform/pkg/ml"
	"github.com/stockcast/platform/pkg/preprocess"
)

// fixedBackend serves an inference function that always returns the same
// scaled close.
type fixedBackend struct {
	scaled  float64
	loadErr error
}

func (f *fixedBackend) Fit(train, val *preprocess.WindowSet, hp ml.Hyperparameters, search bool, progress ml.ProgressFunc) (*ml.FitResult, error) {
	return nil, errors.New("not used")
}

func (f *fixedBackend) Save(handle ml.Artifact, path string) error { return nil }

func (f *fixedBackend) Load(path string) (ml.Inference, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return func(window []float64) (float64, error) { return f.scaled, nil }, nil
}

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

func newTestService(t *testing.T, backend ml.Backend) (*Service, metadata.DataFile, metadata.Model) {
	t.Helper()
	dir := t.TempDir()
	store, err := metadata.NewStore(filepath.Join(dir, "metadata.json"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	datasets, err := dataset.NewService(store, filepath.Join(dir, "uploads"), 1<<20, 5, 1000)
	if err != nil {
		t.Fatalf("datasets: %v", err)
	}
	file, err := datasets.Upload(priceCSV(30), "prices.csv")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}

	model := metadata.Model{
		ModelID:        "model_aaaa1111",
		ModelName:      "daily-close",
		ModelPath:      filepath.Join(dir, "model.json"),
		DataFileID:     file.FileID,
		DataFileName:   file.OriginalFileName,
		PredictionDays: 3,
		Status:         metadata.ModelReady,
		Hyperparameters: metadata.Hyperparameters{
			HiddenUnits1:   16,
			HiddenUnits2:   8,
			LookbackWindow: 5,
		},
	}
	if err := store.AddModel(model); err != nil {
		t.Fatalf("add model: %v", err)
	}

	service := NewService(store, datasets, backend, preprocess.DefaultCatalog(), nil)
	return service, file, model
}

func TestPredictProducesConfiguredHorizon(t *testing.T) {
	service, file, model := newTestService(t, &fixedBackend{scaled: 0.8})

	result, err := service.Predict(context.Background(), model.ModelID, file.FileID, "2024-01-10")
	if err != nil {
		t.Fatalf("predict: %v", err)
	}

	if len(result.Predictions) != 3 {
		t.Fatalf("expected 3 predictions, got %d", len(result.Predictions))
	}
	if result.Predictions[0].Date != "2024-01-10" {
		t.Fatalf("first prediction must land on the start date, got %s", result.Predictions[0].Date)
	}
	if result.Predictions[1].Date != "2024-01-11" || result.Predictions[2].Date != "2024-01-12" {
		t.Fatalf("predictions must advance one day at a time: %+v", result.Predictions)
	}

	for _, p := range result.Predictions {
		if p.UpProbability < 0.1 || p.UpProbability > 0.9 {
			t.Fatalf("up probability out of [0.1, 0.9]: %v", p.UpProbability)
		}
		if p.PredictedClose <= 0 {
			t.Fatalf("expected positive price, got %v", p.PredictedClose)
		}
	}

	// Constant model output means later days have zero change and sit at
	// the logistic midpoint.
	if result.Predictions[1].ChangePercent != 0 {
		t.Fatalf("expected zero change for constant output, got %v", result.Predictions[1].ChangePercent)
	}
	if result.Predictions[1].UpProbability != 0.5 {
		t.Fatalf("expected 0.5 probability at zero delta, got %v", result.Predictions[1].UpProbability)
	}

	if result.RequestInfo.ModelID != model.ModelID || result.RequestInfo.PredictionDays != 3 {
		t.Fatalf("unexpected request info %+v", result.RequestInfo)
	}
	if result.Metadata.PredictedAt == "" {
		t.Fatal("expected predictedAt timestamp")
	}

	// History covers the rows before the start date.
	if len(result.HistoricalData) != 9 {
		t.Fatalf("expected 9 history points before 2024-01-10, got %d", len(result.HistoricalData))
	}
	if result.HistoricalData[0].Date != "2024-01-01" {
		t.Fatalf("history must start at the first row, got %s", result.HistoricalData[0].Date)
	}
}

func TestPredictRejectsDateOutsideRange(t *testing.T) {
	service, file, model := newTestService(t, &fixedBackend{scaled: 0.8})
	ctx := context.Background()

	_, err := service.Predict(ctx, model.ModelID, file.FileID, "2023-12-31")
	if !errors.Is(err, ErrDateOutOfRange) {
		t.Fatalf("expected ErrDateOutOfRange before range, got %v", err)
	}

	// One day past the last row is out of range even though a window of
	// history exists.
	_, err = service.Predict(ctx, model.ModelID, file.FileID, "2024-01-31")
	if !errors.Is(err, ErrDateOutOfRange) {
		t.Fatalf("expected ErrDateOutOfRange after range, got %v", err)
	}

	_, err = service.Predict(ctx, model.ModelID, file.FileID, "not-a-date")
	if !errors.Is(err, ErrBadDate) {
		t.Fatalf("expected ErrBadDate, got %v", err)
	}
}

func TestPredictRequiresLookbackHistory(t *testing.T) {
	service, file, model := newTestService(t, &fixedBackend{scaled: 0.8})

	_, err := service.Predict(context.Background(), model.ModelID, file.FileID, "2024-01-03")
	if !errors.Is(err, ErrInsufficientHistory) {
		t.Fatalf("expected ErrInsufficientHistory, got %v", err)
	}
}

func TestPredictChecksModelAndFileState(t *testing.T) {
	service, file, model := newTestService(t, &fixedBackend{scaled: 0.8})
	ctx := context.Background()

	if _, err := service.Predict(ctx, "model_missing", file.FileID, "2024-01-10"); !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("expected ErrModelNotFound, got %v", err)
	}
	if _, err := service.Predict(ctx, model.ModelID, "file_missing1", "2024-01-10"); !errors.Is(err, ErrDataFileNotFound) {
		t.Fatalf("expected ErrDataFileNotFound, got %v", err)
	}
}

func TestUpProbabilityClipsExtremes(t *testing.T) {
	if p := upProbability(200, 100); p != 0.9 {
		t.Fatalf("large rise must clip to 0.9, got %v", p)
	}
	if p := upProbability(50, 100); p != 0.1 {
		t.Fatalf("large drop must clip to 0.1, got %v", p)
	}
	if p := upProbability(100, 100); p != 0.5 {
		t.Fatalf("no change must sit at 0.5, got %v", p)
	}
}

func TestHistoryDownsamplesLongSeries(t *testing.T) {
	dir := t.TempDir()
	store, err := metadata.NewStore(filepath.Join(dir, "metadata.json"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	datasets, err := dataset.NewService(store, filepath.Join(dir, "uploads"), 1<<24, 5, 10000)
	if err != nil {
		t.Fatalf("datasets: %v", err)
	}
	file, err := datasets.Upload(priceCSV(900), "long.csv")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	series, err := datasets.Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	points := historyBefore(series, 850)
	if len(points) > 200 {
		t.Fatalf("history must be capped at 200 points, got %d", len(points))
	}
	if len(points) == 0 {
		t.Fatal("expected history points")
	}
	if points[0].Date != "2024-01-01" {
		t.Fatalf("downsampling must keep the first row, got %s", points[0].Date)
	}
}
