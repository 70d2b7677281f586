// Package preprocess turns raw tabular price rows into the fixed-shape
// numeric windows a trainer backend consumes, and back.
package preprocess

import (
	"errors"

	"gonum.org/v1/gonum/mat"
)

// RequiredFeatures always lead the feature vector, in this order. Code in
// prediction relies on close sitting at CloseIndex; the position is part
// of the trained model's contract and must never move.
var RequiredFeatures = []string{"open", "high", "low", "close", "volume"}

const CloseIndex = 3

type Preprocessor struct {
	lookback int
	catalog  IndicatorCatalog
	features []string
	scaler   Scaler
}

func New(lookback int, catalog IndicatorCatalog) *Preprocessor {
	return &Preprocessor{lookback: lookback, catalog: catalog}
}

func (p *Preprocessor) Lookback() int {
	return p.lookback
}

// SelectFeatures picks the required columns plus any cataloged indicator
// present in the source, in canonical order, and fixes that order as the
// preprocessor's feature layout.
func (p *Preprocessor) SelectFeatures(columns []string) []string {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	features := make([]string, 0, len(RequiredFeatures)+len(p.catalog.Indicators))
	features = append(features, RequiredFeatures...)
	for _, name := range p.catalog.Indicators {
		if present[name] {
			features = append(features, name)
		}
	}
	p.features = features
	return features
}

func (p *Preprocessor) Features() []string {
	return p.features
}

// InputShape returns (timesteps, features) for a single sample.
func (p *Preprocessor) InputShape() (int, int) {
	return p.lookback, len(p.features)
}

// FitTransform fits the scaler to the full matrix and applies it in one
// pass.
func (p *Preprocessor) FitTransform(m *mat.Dense) *mat.Dense {
	p.scaler.Fit(m)
	return p.scaler.Transform(m)
}

func (p *Preprocessor) Transform(m *mat.Dense) (*mat.Dense, error) {
	if !p.scaler.fitted() {
		return nil, errors.New("scaler not fitted")
	}
	return p.scaler.Transform(m), nil
}

// InverseTransformClose recovers a real-scale closing price from one
// scaled value. The scaler operates over all features jointly, so the
// inversion goes through a synthetic full-width row.
func (p *Preprocessor) InverseTransformClose(scaled float64) float64 {
	row := make([]float64, len(p.features))
	row[CloseIndex] = scaled
	return p.scaler.InverseRow(row)[CloseIndex]
}

// WindowSet holds flattened (lookback x features) input windows with their
// scaled close targets, in chronological order.
type WindowSet struct {
	X            [][]float64
	Y            []float64
	Lookback     int
	FeatureCount int
}

func (w *WindowSet) Len() int {
	return len(w.X)
}

// Split cuts the set chronologically: the leading floor(N*(1-fraction))
// samples train, the tail validates. No shuffling; this is time-series
// data and reordering would leak future information into training.
func (w *WindowSet) Split(validationFraction float64) (*WindowSet, *WindowSet) {
	splitIdx := int(float64(len(w.X)) * (1 - validationFraction))
	train := &WindowSet{X: w.X[:splitIdx], Y: w.Y[:splitIdx], Lookback: w.Lookback, FeatureCount: w.FeatureCount}
	val := &WindowSet{X: w.X[splitIdx:], Y: w.Y[splitIdx:], Lookback: w.Lookback, FeatureCount: w.FeatureCount}
	return train, val
}

// Windowize produces max(0, N-lookback) overlapping samples: for each row
// i in [lookback, N), the input is rows [i-lookback, i) across all
// features and the target is the scaled close at row i.
func (p *Preprocessor) Windowize(scaled *mat.Dense) *WindowSet {
	rows, cols := scaled.Dims()
	set := &WindowSet{Lookback: p.lookback, FeatureCount: cols}
	for i := p.lookback; i < rows; i++ {
		set.X = append(set.X, flattenWindow(scaled, i-p.lookback, i, cols))
		set.Y = append(set.Y, scaled.At(i, CloseIndex))
	}
	return set
}

// InferenceWindow builds the single flattened window ending just before
// startIdx, transformed with the fitted scaler. ok is false when fewer
// than lookback rows precede startIdx; the caller must check it.
func (p *Preprocessor) InferenceWindow(m *mat.Dense, startIdx int) ([]float64, bool) {
	if startIdx < p.lookback || !p.scaler.fitted() {
		return nil, false
	}
	_, cols := m.Dims()
	scaled := p.scaler.Transform(m)
	return flattenWindow(scaled, startIdx-p.lookback, startIdx, cols), true
}

func flattenWindow(m *mat.Dense, from, to, cols int) []float64 {
	window := make([]float64, 0, (to-from)*cols)
	for r := from; r < to; r++ {
		window = append(window, m.RawRowView(r)...)
	}
	return window
}
