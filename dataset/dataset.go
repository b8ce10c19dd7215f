// Package dataset holds light curves as N parallel (flux, time) sequences of
// a common length L, splits them into train and validation subsets, and
// loads them from HDF5 or JSON files.
package dataset

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/lcgen/pkg/errors"
)

// Sample is one light curve. Flux and Time always have the same length.
type Sample struct {
	Index int
	Flux  []float64
	Time  []float64
}

// Dataset is an immutable collection of equal-length samples.
type Dataset struct {
	flux *mat.Dense
	time *mat.Dense
}

// New copies flux and time (both N×L, row-major) into a Dataset.
func New(flux, time [][]float64) (*Dataset, error) {
	if len(flux) != len(time) {
		return nil, errors.NewShapeMismatchError("dataset.New", "flux", shapeOf(flux), "time", shapeOf(time))
	}
	if len(flux) == 0 {
		return nil, errors.NewEmptyDatasetError("dataset.New", "no samples")
	}
	l := len(flux[0])
	if l == 0 {
		return nil, errors.NewEmptyDatasetError("dataset.New", "zero-length sequences")
	}
	n := len(flux)
	fd := make([]float64, 0, n*l)
	td := make([]float64, 0, n*l)
	for i := range flux {
		if len(flux[i]) != l || len(time[i]) != l {
			return nil, errors.NewShapeMismatchError("dataset.New",
				"flux", []int{n, len(flux[i])}, "time", []int{n, len(time[i])})
		}
		fd = append(fd, flux[i]...)
		td = append(td, time[i]...)
	}
	return &Dataset{flux: mat.NewDense(n, l, fd), time: mat.NewDense(n, l, td)}, nil
}

// FromDense copies two N×L matrices into a Dataset.
func FromDense(flux, time mat.Matrix) (*Dataset, error) {
	fr, fc := flux.Dims()
	tr, tc := time.Dims()
	if fr != tr || fc != tc {
		return nil, errors.NewShapeMismatchError("dataset.FromDense", "flux", []int{fr, fc}, "time", []int{tr, tc})
	}
	if fr == 0 {
		return nil, errors.NewEmptyDatasetError("dataset.FromDense", "no samples")
	}
	if fc == 0 {
		return nil, errors.NewEmptyDatasetError("dataset.FromDense", "zero-length sequences")
	}
	return &Dataset{flux: mat.DenseCopyOf(flux), time: mat.DenseCopyOf(time)}, nil
}

// Len returns N.
func (d *Dataset) Len() int {
	n, _ := d.flux.Dims()
	return n
}

// SeqLen returns L.
func (d *Dataset) SeqLen() int {
	_, l := d.flux.Dims()
	return l
}

// Sample returns sample i. The slices alias the dataset and must not be
// modified.
func (d *Dataset) Sample(i int) Sample {
	return Sample{Index: i, Flux: d.flux.RawRowView(i), Time: d.time.RawRowView(i)}
}

// Flux returns a read-only view of the N×L flux matrix.
func (d *Dataset) Flux() mat.Matrix { return d.flux }

// Time returns a read-only view of the N×L time matrix.
func (d *Dataset) Time() mat.Matrix { return d.time }

func shapeOf(rows [][]float64) []int {
	if len(rows) == 0 {
		return []int{0, 0}
	}
	return []int{len(rows), len(rows[0])}
}
