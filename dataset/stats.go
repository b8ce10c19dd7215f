package dataset

import (
	"fmt"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarizes a dataset for the load-time printout.
type Stats struct {
	Samples  int
	Length   int
	FluxMin  float64
	FluxMax  float64
	FluxMean float64
	FluxStd  float64
	// FluxP01 and FluxP99 are the 1st and 99th flux percentiles.
	FluxP01  float64
	FluxP99  float64
	TimeMin  float64
	TimeMax  float64
}

// Stats computes summary statistics over all flux and time values.
func (d *Dataset) Stats() Stats {
	n, l := d.flux.Dims()
	flux := d.flux.RawMatrix().Data[:n*l]
	time := d.time.RawMatrix().Data[:n*l]
	mean, std := stat.PopMeanStdDev(flux, nil)
	lo, hi := floats.Min(flux), floats.Max(flux)
	// Percentile rejects ranks below the first element on small inputs.
	p01, err := stats.Percentile(flux, 1)
	if err != nil {
		p01 = lo
	}
	p99, err := stats.Percentile(flux, 99)
	if err != nil {
		p99 = hi
	}
	return Stats{
		Samples:  n,
		Length:   l,
		FluxMin:  lo,
		FluxMax:  hi,
		FluxMean: mean,
		FluxStd:  std,
		FluxP01:  p01,
		FluxP99:  p99,
		TimeMin:  floats.Min(time),
		TimeMax:  floats.Max(time),
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("shape (%d, %d), flux range [%.4g, %.4g] mean %.4g std %.4g (p1 %.4g, p99 %.4g), time range [%.4g, %.4g]",
		s.Samples, s.Length, s.FluxMin, s.FluxMax, s.FluxMean, s.FluxStd, s.FluxP01, s.FluxP99, s.TimeMin, s.TimeMax)
}
