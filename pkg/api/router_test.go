package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stockcast/platform/pkg/dataset"
	"github.com/stockcast/platform/pkg/metadata"
	"github.com/stockcast/platform/pkg/ml"
	"github.com/stockcast/platform/pkg/prediction"
	"github.com/stockcast/platform/pkg/preprocess"
	"github.com/stockcast/platform/pkg/registry"
	"github.com/stockcast/platform/pkg/training"
)

type stubBackend struct{}

func (stubBackend) Fit(train, val *preprocess.WindowSet, hp ml.Hyperparameters, search bool, progress ml.ProgressFunc) (*ml.FitResult, error) {
	return &ml.FitResult{Handle: "stub", Hyperparameters: hp}, nil
}

func (stubBackend) Save(handle ml.Artifact, path string) error { return nil }

func (stubBackend) Load(path string) (ml.Inference, error) {
	return nil, errors.New("no artifact")
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

func newTestRouter(t *testing.T) (http.Handler, *metadata.Store) {
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
	catalog := preprocess.DefaultCatalog()
	trainer, err := training.NewService(store, datasets, stubBackend{}, nil, catalog, filepath.Join(dir, "models"), 1, training.Defaults{
		LookbackWindow:    5,
		Epochs:            1,
		BatchSize:         4,
		ValidationSplit:   0.2,
		MinPredictionDays: 1,
		MaxPredictionDays: 30,
	})
	if err != nil {
		t.Fatalf("trainer: %v", err)
	}

	router := NewRouter(Services{
		Datasets:    datasets,
		Models:      registry.NewService(store),
		Training:    trainer,
		Predictions: prediction.NewService(store, datasets, stubBackend{}, catalog, nil),
	}, 1<<20)
	return router, store
}

func do(t *testing.T, router http.Handler, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func multipartUpload(t *testing.T, content []byte) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "prices.csv")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	writer.Close()
	return buf.Bytes(), writer.FormDataContentType()
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	rec := do(t, router, http.MethodGet, "/health", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUploadEndpointRoundTrip(t *testing.T) {
	router, _ := newTestRouter(t)

	body, contentType := multipartUpload(t, priceCSV(10))
	rec := do(t, router, http.MethodPost, "/api/v1/data/upload", body, contentType)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var file metadata.DataFile
	if err := json.Unmarshal(rec.Body.Bytes(), &file); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if file.FileID == "" || file.RowCount != 10 {
		t.Fatalf("unexpected record %+v", file)
	}

	rec = do(t, router, http.MethodGet, "/api/v1/data/"+file.FileID, nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUploadEndpointRejectsInvalidCSV(t *testing.T) {
	router, _ := newTestRouter(t)

	body, contentType := multipartUpload(t, []byte("date,close\n2024-01-01,100\n"))
	rec := do(t, router, http.MethodPost, "/api/v1/data/upload", body, contentType)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var resp struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(resp.Error, "missing required column") {
		t.Fatalf("expected validation detail, got %q", resp.Error)
	}
}

func TestDeleteReferencedDataFileReturnsConflict(t *testing.T) {
	router, store := newTestRouter(t)

	body, contentType := multipartUpload(t, priceCSV(10))
	rec := do(t, router, http.MethodPost, "/api/v1/data/upload", body, contentType)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: %d", rec.Code)
	}
	var file metadata.DataFile
	if err := json.Unmarshal(rec.Body.Bytes(), &file); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if err := store.AddModel(metadata.Model{ModelID: "model_00000001", ModelName: "m", DataFileID: file.FileID, Status: metadata.ModelReady}); err != nil {
		t.Fatalf("add model: %v", err)
	}

	rec = do(t, router, http.MethodDelete, "/api/v1/data/"+file.FileID, nil, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestTrainingStartValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	payload, _ := json.Marshal(map[string]interface{}{
		"modelName":      "m",
		"dataFileId":     "file_missing1",
		"predictionDays": 5,
	})
	rec := do(t, router, http.MethodPost, "/api/v1/training/start", payload, "application/json")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown file, got %d", rec.Code)
	}

	payload, _ = json.Marshal(map[string]interface{}{
		"modelName":      "",
		"dataFileId":     "file_missing1",
		"predictionDays": 5,
	})
	rec = do(t, router, http.MethodPost, "/api/v1/training/start", payload, "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty name, got %d", rec.Code)
	}
}

func TestCompareEndpointBounds(t *testing.T) {
	router, _ := newTestRouter(t)

	payload, _ := json.Marshal(map[string]interface{}{"modelIds": []string{"model_00000001"}})
	rec := do(t, router, http.MethodPost, "/api/v1/models/compare", payload, "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for one model, got %d", rec.Code)
	}
}

func TestPredictEndpointRequiresFields(t *testing.T) {
	router, _ := newTestRouter(t)

	payload, _ := json.Marshal(map[string]string{"modelId": "model_00000001"})
	rec := do(t, router, http.MethodPost, "/api/v1/predictions", payload, "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing fields, got %d", rec.Code)
	}
}

func TestUnknownTaskReturnsNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/v1/training/tasks/task_missing1", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
