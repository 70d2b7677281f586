package seqnet

import (
	"math"

	"github.com/stockcast/platform/pkg/ml"
	"github.com/stockcast/platform/pkg/preprocess"
)

// searchEpochs keeps each trial short; the winner is retrained in full by
// the caller.
const searchEpochs = 20

type candidate struct {
	units1 int
	units2 int
	lr     float64
}

var searchGrid = []candidate{
	{32, 16, 0.001},
	{32, 16, 0.01},
	{32, 32, 0.001},
	{32, 32, 0.01},
	{64, 16, 0.001},
	{64, 16, 0.01},
	{64, 32, 0.001},
	{64, 32, 0.01},
}

// Search runs a short grid search and returns base with the best
// candidate's layer sizes and learning rate filled in.
func Search(train, val *preprocess.WindowSet, base ml.Hyperparameters) (ml.Hyperparameters, error) {
	chosen := base
	bestLoss := math.Inf(1)

	for _, c := range searchGrid {
		trial := base
		trial.HiddenUnits1 = c.units1
		trial.HiddenUnits2 = c.units2
		trial.LearningRate = c.lr
		trial.Epochs = searchEpochs

		_, metrics, err := Train(train, val, trial, nil)
		if err != nil {
			return base, err
		}
		loss := metrics.ValLoss
		if val.Len() == 0 {
			loss = metrics.TrainLoss
		}
		if loss < bestLoss {
			bestLoss = loss
			chosen = base
			chosen.HiddenUnits1 = c.units1
			chosen.HiddenUnits2 = c.units2
			chosen.LearningRate = c.lr
		}
	}
	return chosen, nil
}
