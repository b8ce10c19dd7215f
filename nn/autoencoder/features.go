package autoencoder

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/lcgen/core/model"
	"github.com/YuminosukeSato/lcgen/core/parallel"
)

// periods returns K log-spaced periods in [MinPeriod, MaxPeriod].
func periods(c Config) []float64 {
	switch c.NumPeriods {
	case 0:
		return nil
	case 1:
		return []float64{c.MinPeriod}
	}
	return floats.LogSpan(make([]float64, c.NumPeriods), c.MinPeriod, c.MaxPeriod)
}

// signedLog1p compresses time gaps that span minutes to years.
func signedLog1p(x float64) float64 {
	if x < 0 {
		return -math.Log1p(-x)
	}
	return math.Log1p(x)
}

// features builds the (N·L)×F design matrix. Row n·L+i describes position i
// of sample n: for each neighbour j = i-R..i+R the masked signal, the
// indicator and the signed log gap t_j - t_i, then sin/cos of 2πt_i/P_k.
// Neighbours outside the sequence read as masked with zero signal and gap.
func (m *Model) features(in model.MaskedInput, t *mat.Dense) *mat.Dense {
	n, l := in.Dims()
	r := m.cfg.ContextRadius
	f := m.cfg.NumFeatures()
	x := mat.NewDense(n*l, f, nil)

	parallel.ParallelizeWithThreshold(n, parallel.DefaultThreshold, func(start, end int) {
		for s := start; s < end; s++ {
			sig := in.Signal.RawRowView(s)
			ind := in.Indicator.RawRowView(s)
			ts := t.RawRowView(s)
			for i := 0; i < l; i++ {
				row := x.RawRowView(s*l + i)
				for d := -r; d <= r; d++ {
					k := 3 * (d + r)
					j := i + d
					if j < 0 || j >= l {
						row[k+1] = 1
						continue
					}
					row[k] = sig[j]
					row[k+1] = ind[j]
					row[k+2] = signedLog1p(ts[j] - ts[i])
				}
				off := 3 * (2*r + 1)
				for p, period := range m.periods {
					phase := 2 * math.Pi * ts[i] / period
					row[off+2*p] = math.Sin(phase)
					row[off+2*p+1] = math.Cos(phase)
				}
			}
		}
	})
	return x
}
