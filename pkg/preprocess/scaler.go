package preprocess

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Scaler is a per-feature min-max normalizer to [0, 1]. It must be fitted
// once and then reused for every transform and inversion against data from
// the same distribution; refitting invalidates earlier transforms.
type Scaler struct {
	Min []float64
	Max []float64
}

func (sc *Scaler) Fit(m *mat.Dense) {
	rows, cols := m.Dims()
	sc.Min = make([]float64, cols)
	sc.Max = make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, m)
		sc.Min[j] = floats.Min(col)
		sc.Max[j] = floats.Max(col)
	}
}

func (sc *Scaler) Transform(m *mat.Dense) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	for j := 0; j < cols; j++ {
		span := sc.Max[j] - sc.Min[j]
		for i := 0; i < rows; i++ {
			if span == 0 {
				out.Set(i, j, 0)
				continue
			}
			out.Set(i, j, (m.At(i, j)-sc.Min[j])/span)
		}
	}
	return out
}

// InverseRow maps one scaled feature-width row back to original units.
func (sc *Scaler) InverseRow(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = v*(sc.Max[j]-sc.Min[j]) + sc.Min[j]
	}
	return out
}

func (sc *Scaler) fitted() bool {
	return len(sc.Min) > 0
}
