package registry

import (
	"errors"
	"fmt"

	"github.com/stockcast/platform/pkg/metadata"
)

const (
	minCompareModels = 2
	maxCompareModels = 10
)

var (
	ErrTooFewModels  = errors.New("at least 2 models are required for comparison")
	ErrTooManyModels = errors.New("at most 10 models can be compared at once")
	ErrModelNotReady = errors.New("model is not ready")
)

// ComparisonItem is one model's row in a comparison, with its training
// data and metrics side by side.
type ComparisonItem struct {
	ModelID          string                   `json:"modelId"`
	ModelName        string                   `json:"modelName"`
	DataFileName     string                   `json:"dataFileName"`
	TrainedAt        string                   `json:"trainedAt"`
	TrainingDuration float64                  `json:"trainingDuration"`
	PredictionDays   int                      `json:"predictionDays"`
	Metrics          metadata.Metrics         `json:"metrics"`
	Hyperparameters  metadata.Hyperparameters `json:"hyperparameters"`
}

type BestModel struct {
	ModelID   string  `json:"modelId"`
	ModelName string  `json:"modelName"`
	ValLoss   float64 `json:"valLoss"`
}

type Comparison struct {
	Models []ComparisonItem `json:"models"`
	Best   BestModel        `json:"bestModel"`
}

// Compare assembles a side-by-side view of the requested models and
// flags the one with the lowest validation loss as best. Every model
// must exist and be ready.
func (s *Service) Compare(modelIDs []string) (*Comparison, error) {
	if len(modelIDs) < minCompareModels {
		return nil, ErrTooFewModels
	}
	if len(modelIDs) > maxCompareModels {
		return nil, ErrTooManyModels
	}

	items := make([]ComparisonItem, 0, len(modelIDs))
	var best BestModel
	for i, id := range modelIDs {
		model, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		if model.Status != metadata.ModelReady {
			return nil, fmt.Errorf("%w: %s has status %s", ErrModelNotReady, id, model.Status)
		}

		fileName := model.DataFileName
		if fileName == "" {
			if file, ok, ferr := s.store.GetDataFile(model.DataFileID); ferr == nil && ok {
				fileName = file.OriginalFileName
			} else {
				fileName = "unknown"
			}
		}

		items = append(items, ComparisonItem{
			ModelID:          model.ModelID,
			ModelName:        model.ModelName,
			DataFileName:     fileName,
			TrainedAt:        model.TrainedAt,
			TrainingDuration: model.TrainingDuration,
			PredictionDays:   model.PredictionDays,
			Metrics:          model.Metrics,
			Hyperparameters:  model.Hyperparameters,
		})

		if i == 0 || model.Metrics.ValLoss < best.ValLoss {
			best = BestModel{
				ModelID:   model.ModelID,
				ModelName: model.ModelName,
				ValLoss:   model.Metrics.ValLoss,
			}
		}
	}

	return &Comparison{Models: items, Best: best}, nil
}
