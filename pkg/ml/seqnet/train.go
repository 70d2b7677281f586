package seqnet

import (
	"math"
	"math/rand"
	"time"

	"github.com/stockcast/platform/pkg/ml"
	"github.com/stockcast/platform/pkg/preprocess"
)

// patience bounds how many epochs may pass without a validation
// improvement before training stops early, keeping the best weights.
const patience = 10

func Train(train, val *preprocess.WindowSet, hp ml.Hyperparameters, progress ml.ProgressFunc) (*Network, ml.Metrics, error) {
	if train.Len() == 0 {
		return nil, ml.Metrics{}, ml.ErrNoSamples
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	net := newNetwork(len(train.X[0]), hp.HiddenUnits1, hp.HiddenUnits2, rng)

	indices := make([]int, train.Len())
	for i := range indices {
		indices[i] = i
	}

	bestVal := math.Inf(1)
	var best *Network
	sinceBest := 0

	for epoch := 1; epoch <= hp.Epochs; epoch++ {
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
		for start := 0; start < len(indices); start += hp.BatchSize {
			end := min(start+hp.BatchSize, len(indices))
			net.trainBatch(train, indices[start:end], hp, rng)
		}

		trainLoss, _ := net.evaluate(train)
		valLoss, _ := net.evaluate(val)
		if progress != nil {
			progress(epoch, trainLoss, valLoss)
		}

		if val.Len() > 0 {
			if valLoss < bestVal {
				bestVal = valLoss
				best = net.clone()
				sinceBest = 0
			} else {
				sinceBest++
				if sinceBest >= patience {
					break
				}
			}
		}
	}

	if best != nil {
		net = best
	}

	trainLoss, trainMAE := net.evaluate(train)
	valLoss, valMAE := net.evaluate(val)
	return net, ml.Metrics{
		TrainLoss: trainLoss,
		ValLoss:   valLoss,
		TrainMAE:  trainMAE,
		ValMAE:    valMAE,
	}, nil
}

// trainBatch accumulates gradients over the batch and applies one SGD
// update. Hidden activations use inverted dropout during training.
func (n *Network) trainBatch(set *preprocess.WindowSet, batch []int, hp ml.Hyperparameters, rng *rand.Rand) {
	h1 := len(n.B1)
	h2 := len(n.B2)

	gW1 := zeroMatrix(h1, n.InputSize)
	gB1 := make([]float64, h1)
	gW2 := zeroMatrix(h2, h1)
	gB2 := make([]float64, h2)
	gW3 := make([]float64, h2)
	var gB3 float64

	for _, idx := range batch {
		x := set.X[idx]
		y := set.Y[idx]

		z1 := layerForward(n.W1, n.B1, x)
		a1 := relu(z1)
		m1 := dropoutMask(h1, hp.Dropout, rng)
		applyMask(a1, m1)

		z2 := layerForward(n.W2, n.B2, a1)
		a2 := relu(z2)
		m2 := dropoutMask(h2, hp.Dropout, rng)
		applyMask(a2, m2)

		out := dot(n.W3, a2) + n.B3
		delta := out - y

		for j := 0; j < h2; j++ {
			gW3[j] += delta * a2[j]
		}
		gB3 += delta

		dz2 := make([]float64, h2)
		for j := 0; j < h2; j++ {
			if z2[j] > 0 {
				dz2[j] = delta * n.W3[j] * m2[j]
			}
		}
		for j := 0; j < h2; j++ {
			if dz2[j] == 0 {
				continue
			}
			for k := 0; k < h1; k++ {
				gW2[j][k] += dz2[j] * a1[k]
			}
			gB2[j] += dz2[j]
		}

		dz1 := make([]float64, h1)
		for k := 0; k < h1; k++ {
			if z1[k] <= 0 {
				continue
			}
			var sum float64
			for j := 0; j < h2; j++ {
				sum += dz2[j] * n.W2[j][k]
			}
			dz1[k] = sum * m1[k]
		}
		for k := 0; k < h1; k++ {
			if dz1[k] == 0 {
				continue
			}
			for j := 0; j < n.InputSize; j++ {
				gW1[k][j] += dz1[k] * x[j]
			}
			gB1[k] += dz1[k]
		}
	}

	step := hp.LearningRate / float64(len(batch))
	for i := range n.W1 {
		for j := range n.W1[i] {
			n.W1[i][j] -= step * gW1[i][j]
		}
		n.B1[i] -= step * gB1[i]
	}
	for i := range n.W2 {
		for j := range n.W2[i] {
			n.W2[i][j] -= step * gW2[i][j]
		}
		n.B2[i] -= step * gB2[i]
	}
	for j := range n.W3 {
		n.W3[j] -= step * gW3[j]
	}
	n.B3 -= step * gB3
}

// evaluate returns mean squared error and mean absolute error over the
// set, without dropout.
func (n *Network) evaluate(set *preprocess.WindowSet) (float64, float64) {
	if set == nil || set.Len() == 0 {
		return 0, 0
	}
	var squared, absolute float64
	for i := range set.X {
		diff := n.Predict(set.X[i]) - set.Y[i]
		squared += diff * diff
		absolute += math.Abs(diff)
	}
	count := float64(set.Len())
	return squared / count, absolute / count
}

// dropoutMask returns per-unit factors of 0 or 1/(1-rate).
func dropoutMask(n int, rate float64, rng *rand.Rand) []float64 {
	mask := make([]float64, n)
	if rate <= 0 {
		for i := range mask {
			mask[i] = 1
		}
		return mask
	}
	keep := 1 / (1 - rate)
	for i := range mask {
		if rng.Float64() >= rate {
			mask[i] = keep
		}
	}
	return mask
}

func applyMask(a, mask []float64) {
	for i := range a {
		a[i] *= mask[i]
	}
}

func zeroMatrix(rows, cols int) [][]float64 {
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
	}
	return m
}
