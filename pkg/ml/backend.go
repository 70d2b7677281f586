// Package ml defines the narrow contract between the orchestration layer
// and a model trainer backend. Orchestration and prediction depend only on
// these types, never on a concrete backend.
package ml

import (
	"errors"
	"fmt"

	"github.com/stockcast/platform/pkg/preprocess"
)

// Hyperparameters is the structured record of tunable values carried with
// every trained model.
type Hyperparameters struct {
	HiddenUnits1   int     `json:"hiddenUnits1"`
	HiddenUnits2   int     `json:"hiddenUnits2"`
	Dropout        float64 `json:"dropout"`
	LearningRate   float64 `json:"learningRate"`
	BatchSize      int     `json:"batchSize"`
	Epochs         int     `json:"epochs"`
	LookbackWindow int     `json:"lookbackWindow"`
}

func (h Hyperparameters) Validate() error {
	if h.HiddenUnits1 <= 0 || h.HiddenUnits2 <= 0 {
		return fmt.Errorf("hidden units must be positive, got %d/%d", h.HiddenUnits1, h.HiddenUnits2)
	}
	if h.Dropout < 0 || h.Dropout >= 1 {
		return fmt.Errorf("dropout must be in [0, 1), got %g", h.Dropout)
	}
	if h.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %g", h.LearningRate)
	}
	if h.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", h.BatchSize)
	}
	if h.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", h.Epochs)
	}
	if h.LookbackWindow <= 0 {
		return fmt.Errorf("lookback window must be positive, got %d", h.LookbackWindow)
	}
	return nil
}

type Metrics struct {
	TrainLoss float64
	ValLoss   float64
	TrainMAE  float64
	ValMAE    float64
}

// ProgressFunc is invoked once per completed training epoch.
type ProgressFunc func(epoch int, loss, valLoss float64)

// Artifact is an opaque handle to a trained model, meaningful only to the
// backend that produced it.
type Artifact interface{}

// Inference maps one flattened input window to a normalized close value.
type Inference func(window []float64) (float64, error)

type FitResult struct {
	Handle          Artifact
	Metrics         Metrics
	Hyperparameters Hyperparameters
}

var ErrNoSamples = errors.New("training data contains no samples")

type Backend interface {
	// Fit trains a model on the windowed sets, optionally searching
	// hyperparameters first, reporting progress per epoch.
	Fit(train, val *preprocess.WindowSet, hp Hyperparameters, search bool, progress ProgressFunc) (*FitResult, error)

	// Save persists a trained artifact at path.
	Save(handle Artifact, path string) error

	// Load reopens a persisted artifact for inference.
	Load(path string) (Inference, error)
}
