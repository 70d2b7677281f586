// Package seqnet is the native trainer backend: a small feed-forward
// regressor over the flattened lookback window, trained with mini-batch
// SGD.
package seqnet

import (
	"math"
	"math/rand"
)

type Network struct {
	InputSize int         `json:"inputSize"`
	W1        [][]float64 `json:"w1"`
	B1        []float64   `json:"b1"`
	W2        [][]float64 `json:"w2"`
	B2        []float64   `json:"b2"`
	W3        []float64   `json:"w3"`
	B3        float64     `json:"b3"`
}

func newNetwork(inputSize, hidden1, hidden2 int, rng *rand.Rand) *Network {
	return &Network{
		InputSize: inputSize,
		W1:        randomMatrix(hidden1, inputSize, rng),
		B1:        make([]float64, hidden1),
		W2:        randomMatrix(hidden2, hidden1, rng),
		B2:        make([]float64, hidden2),
		W3:        randomVector(hidden2, rng),
		B3:        0,
	}
}

// He initialization, scaled by fan-in.
func randomMatrix(rows, cols int, rng *rand.Rand) [][]float64 {
	scale := math.Sqrt(2 / float64(cols))
	m := make([][]float64, rows)
	for i := range m {
		m[i] = make([]float64, cols)
		for j := range m[i] {
			m[i][j] = rng.NormFloat64() * scale
		}
	}
	return m
}

func randomVector(n int, rng *rand.Rand) []float64 {
	scale := math.Sqrt(2 / float64(n))
	v := make([]float64, n)
	for i := range v {
		v[i] = rng.NormFloat64() * scale
	}
	return v
}

func (n *Network) Predict(x []float64) float64 {
	z1 := layerForward(n.W1, n.B1, x)
	a1 := relu(z1)
	z2 := layerForward(n.W2, n.B2, a1)
	a2 := relu(z2)
	return dot(n.W3, a2) + n.B3
}

func (n *Network) clone() *Network {
	out := &Network{
		InputSize: n.InputSize,
		W1:        copyMatrix(n.W1),
		B1:        append([]float64(nil), n.B1...),
		W2:        copyMatrix(n.W2),
		B2:        append([]float64(nil), n.B2...),
		W3:        append([]float64(nil), n.W3...),
		B3:        n.B3,
	}
	return out
}

func copyMatrix(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i := range m {
		out[i] = append([]float64(nil), m[i]...)
	}
	return out
}

func layerForward(w [][]float64, b []float64, x []float64) []float64 {
	z := make([]float64, len(w))
	for i := range w {
		z[i] = dot(w[i], x) + b[i]
	}
	return z
}

func relu(z []float64) []float64 {
	a := make([]float64, len(z))
	for i, v := range z {
		if v > 0 {
			a[i] = v
		}
	}
	return a
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
