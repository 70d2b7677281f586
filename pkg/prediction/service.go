// Package prediction runs a trained model forward over future trading
// days and assembles the forecast response.
package prediction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/stockcast/platform/pkg/common/dateutil"
	"github.com/stockcast/platform/pkg/dataset"
	"github.com/stockcast/platform/pkg/metadata"
	"github.com/stockcast/platform/pkg/ml"
	"github.com/stockcast/platform/pkg/preprocess"
)

// maxHistoryPoints caps the historical context returned with a forecast;
// longer series are downsampled by stride.
const maxHistoryPoints = 200

// upProbability steepness. Scaled close deltas are small, so the logistic
// needs a sharp slope to spread outputs across the clipped band.
const probabilitySlope = 20

var (
	ErrModelNotFound       = errors.New("model not found")
	ErrModelNotReady       = errors.New("model is not ready for prediction")
	ErrDataFileNotFound    = errors.New("data file not found")
	ErrDataFileNotValid    = errors.New("data file is not valid")
	ErrBadDate             = errors.New("start date is not a valid date")
	ErrDateOutOfRange      = errors.New("start date is outside the data file's date range")
	ErrInsufficientHistory = errors.New("not enough history before the start date")
)

type RequestInfo struct {
	ModelID        string `json:"modelId"`
	ModelName      string `json:"modelName"`
	DataFileID     string `json:"dataFileId"`
	DataFileName   string `json:"dataFileName"`
	StartDate      string `json:"startDate"`
	PredictionDays int    `json:"predictionDays"`
}

type HistoryPoint struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

type Point struct {
	Date           string  `json:"date"`
	PredictedClose float64 `json:"predictedClose"`
	ChangePercent  float64 `json:"changePercent"`
	UpProbability  float64 `json:"upProbability"`
}

type ResultMeta struct {
	PredictedAt     string  `json:"predictedAt"`
	ExecutionTimeMs float64 `json:"executionTimeMs"`
}

type Result struct {
	RequestInfo    RequestInfo    `json:"requestInfo"`
	HistoricalData []HistoryPoint `json:"historicalData"`
	Predictions    []Point        `json:"predictions"`
	Metadata       ResultMeta     `json:"metadata"`
}

type Service struct {
	store    *metadata.Store
	datasets *dataset.Service
	backend  ml.Backend
	catalog  preprocess.IndicatorCatalog
	cache    *Cache
}

func NewService(store *metadata.Store, datasets *dataset.Service, backend ml.Backend, catalog preprocess.IndicatorCatalog, cache *Cache) *Service {
	return &Service{
		store:    store,
		datasets: datasets,
		backend:  backend,
		catalog:  catalog,
		cache:    cache,
	}
}

// Predict forecasts the model's configured number of days starting at
// startDate. The inference window is fixed at the start date; predicted
// values are never fed back as inputs, so far-horizon points express the
// model's direct multi-step estimate rather than compounded guesses.
func (s *Service) Predict(ctx context.Context, modelID, dataFileID, startDate string) (*Result, error) {
	if cached, ok := s.cache.Get(ctx, modelID, dataFileID, startDate); ok {
		return cached, nil
	}
	began := time.Now()

	model, ok, err := s.store.GetModel(modelID)
	if err != nil {
		return nil, err
	}
	if !ok || model.Status == metadata.ModelDeleted {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, modelID)
	}
	if model.Status != metadata.ModelReady {
		return nil, fmt.Errorf("%w: %s has status %s", ErrModelNotReady, modelID, model.Status)
	}

	file, ok, err := s.store.GetDataFile(dataFileID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDataFileNotFound, dataFileID)
	}
	if file.Status != metadata.DataFileValid {
		return nil, fmt.Errorf("%w: %s has status %s", ErrDataFileNotValid, dataFileID, file.Status)
	}

	start, err := dateutil.Parse(startDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrBadDate, startDate)
	}
	rangeStart, err := dateutil.Parse(file.DateRange.Start)
	if err != nil {
		return nil, fmt.Errorf("corrupt date range on %s: %w", dataFileID, err)
	}
	rangeEnd, err := dateutil.Parse(file.DateRange.End)
	if err != nil {
		return nil, fmt.Errorf("corrupt date range on %s: %w", dataFileID, err)
	}
	if !dateutil.InRange(start, rangeStart, rangeEnd) {
		return nil, fmt.Errorf("%w: %s not in [%s, %s]",
			ErrDateOutOfRange, startDate, file.DateRange.Start, file.DateRange.End)
	}

	infer, err := s.backend.Load(model.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("loading model artifact: %w", err)
	}

	series, err := s.datasets.Load(file)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", file.FilePath, err)
	}

	lookback := model.Hyperparameters.LookbackWindow
	pre := preprocess.New(lookback, s.catalog)
	features := pre.SelectFeatures(series.Columns)
	matrix, err := series.Matrix(features)
	if err != nil {
		return nil, err
	}
	// Refit on the inference file so inputs land in the same [0, 1] band
	// the model trained in, even when the file differs from the training
	// data.
	pre.FitTransform(matrix)

	startIdx := series.IndexAtOrAfter(start)
	if startIdx < 0 {
		return nil, fmt.Errorf("%w: no row at or after %s", ErrDateOutOfRange, startDate)
	}
	window, ok := pre.InferenceWindow(matrix, startIdx)
	if !ok {
		return nil, fmt.Errorf("%w: need %d rows before %s, have %d",
			ErrInsufficientHistory, lookback, startDate, startIdx)
	}

	previousClose := series.CloseAt(startIdx - 1)
	predictions := make([]Point, 0, model.PredictionDays)
	day := start
	prev := previousClose
	for i := 0; i < model.PredictionDays; i++ {
		scaled, err := infer(window)
		if err != nil {
			return nil, fmt.Errorf("inference: %w", err)
		}
		predicted := pre.InverseTransformClose(scaled)

		changePercent := 0.0
		if prev != 0 {
			changePercent = (predicted - prev) / prev * 100
		}
		predictions = append(predictions, Point{
			Date:           dateutil.FormatISO(day),
			PredictedClose: predicted,
			ChangePercent:  changePercent,
			UpProbability:  upProbability(predicted, prev),
		})

		day = day.AddDate(0, 0, 1)
		prev = predicted
	}

	result := &Result{
		RequestInfo: RequestInfo{
			ModelID:        model.ModelID,
			ModelName:      model.ModelName,
			DataFileID:     file.FileID,
			DataFileName:   file.OriginalFileName,
			StartDate:      startDate,
			PredictionDays: model.PredictionDays,
		},
		HistoricalData: historyBefore(series, startIdx),
		Predictions:    predictions,
		Metadata: ResultMeta{
			PredictedAt:     dateutil.NowISO(),
			ExecutionTimeMs: float64(time.Since(began).Microseconds()) / 1000,
		},
	}

	s.cache.Put(ctx, modelID, dataFileID, startDate, result)
	return result, nil
}

// upProbability maps the scaled price delta through a steep logistic and
// clips to [0.1, 0.9]; the model is never certain enough to justify the
// extremes.
func upProbability(predicted, previous float64) float64 {
	delta := 0.0
	if previous != 0 {
		delta = (predicted - previous) / previous
	}
	p := 1 / (1 + math.Exp(-probabilitySlope*delta))
	return math.Min(0.9, math.Max(0.1, p))
}

// historyBefore returns the closes preceding startIdx, downsampled with a
// uniform stride so at most maxHistoryPoints survive.
func historyBefore(series *dataset.Series, startIdx int) []HistoryPoint {
	if startIdx <= 0 {
		return []HistoryPoint{}
	}
	stride := (startIdx + maxHistoryPoints - 1) / maxHistoryPoints
	if stride < 1 {
		stride = 1
	}
	points := make([]HistoryPoint, 0, maxHistoryPoints)
	for i := 0; i < startIdx; i += stride {
		if series.Dates[i].IsZero() {
			continue
		}
		points = append(points, HistoryPoint{
			Date:  dateutil.FormatISO(series.Dates[i]),
			Close: series.CloseAt(i),
		})
	}
	return points
}
