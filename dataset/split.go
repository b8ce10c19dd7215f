package dataset

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/lcgen/pkg/errors"
)

// Subset is an ordered selection of samples from a Dataset.
type Subset struct {
	ds      *Dataset
	indices []int
}

// All returns a subset containing every sample in index order.
func (d *Dataset) All() *Subset {
	idx := make([]int, d.Len())
	for i := range idx {
		idx[i] = i
	}
	return &Subset{ds: d, indices: idx}
}

// Subset returns a subset over the given dataset indices.
func (d *Dataset) Subset(indices []int) (*Subset, error) {
	for _, i := range indices {
		if i < 0 || i >= d.Len() {
			return nil, errors.NewValueError("dataset.Subset", "index out of range")
		}
	}
	return &Subset{ds: d, indices: append([]int(nil), indices...)}, nil
}

// Len returns the number of samples in the subset.
func (s *Subset) Len() int { return len(s.indices) }

// Sample returns the i-th sample of the subset; Sample.Index is the index
// in the parent dataset.
func (s *Subset) Sample(i int) Sample { return s.ds.Sample(s.indices[i]) }

// Indices returns a copy of the parent dataset indices.
func (s *Subset) Indices() []int { return append([]int(nil), s.indices...) }

// SeqLen returns L of the parent dataset.
func (s *Subset) SeqLen() int { return s.ds.SeqLen() }

// Split partitions the dataset with a seeded permutation. The validation
// subset takes floor(N*valFraction) samples, raised to 1 when valFraction > 0
// and N >= 2; the first N-valSize permuted indices form the training subset.
func (d *Dataset) Split(valFraction float64, seed uint64) (train, val *Subset, err error) {
	if math.IsNaN(valFraction) || valFraction < 0 || valFraction >= 1 {
		return nil, nil, errors.NewValidationError("val_fraction", "must be in [0, 1)", valFraction)
	}
	n := d.Len()
	valSize := int(math.Floor(float64(n) * valFraction))
	if valFraction > 0 && valSize == 0 && n >= 2 {
		valSize = 1
	}
	trainSize := n - valSize
	if trainSize < 1 {
		return nil, nil, errors.NewEmptyDatasetError("dataset.Split", "no training samples left")
	}

	perm := rand.New(rand.NewPCG(seed, seed)).Perm(n)
	train = &Subset{ds: d, indices: append([]int(nil), perm[:trainSize]...)}
	val = &Subset{ds: d, indices: append([]int(nil), perm[trainSize:]...)}
	return train, val, nil
}
