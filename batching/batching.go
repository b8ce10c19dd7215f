// Package batching assembles masked mini-batches from dataset samples.
package batching

import (
	"math/rand/v2"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/lcgen/core/model"
	"github.com/YuminosukeSato/lcgen/dataset"
	"github.com/YuminosukeSato/lcgen/masking"
	"github.com/YuminosukeSato/lcgen/pkg/errors"
)

// Batch is N aligned samples ready for the model.
type Batch struct {
	// Input holds the flux with masked positions zeroed and the 0/1 mask indicator.
	Input model.MaskedInput
	// Target is the original, unmasked flux.
	Target *mat.Dense
	Time   *mat.Dense
	Mask   [][]bool
	// Indices are the dataset indices of the samples, in batch order.
	Indices []int
	// Diagnostics are per-sample mask diagnostics. They have no effect on training.
	Diagnostics []masking.Diagnostics
}

// Size returns N.
func (b *Batch) Size() int { return len(b.Mask) }

// SeqLen returns L.
func (b *Batch) SeqLen() int {
	_, l := b.Target.Dims()
	return l
}

// Assembler draws one independent mask per sample and builds the batch tensors.
type Assembler struct {
	Bounds masking.Bounds
}

// Collate builds a Batch from samples. It is a pure function of its inputs
// and rng.
func (a Assembler) Collate(samples []dataset.Sample, rng *rand.Rand) (*Batch, error) {
	if len(samples) == 0 {
		return nil, errors.NewEmptyDatasetError("batching.Collate", "no samples in batch")
	}
	n, l := len(samples), len(samples[0].Flux)
	for i, s := range samples {
		if len(s.Flux) != l || len(s.Time) != l {
			return nil, errors.NewShapeMismatchError("batching.Collate",
				"sample 0", []int{l}, "sample "+strconv.Itoa(i), []int{len(s.Flux), len(s.Time)})
		}
	}

	b := &Batch{
		Input: model.MaskedInput{
			Signal:    mat.NewDense(n, l, nil),
			Indicator: mat.NewDense(n, l, nil),
		},
		Target:      mat.NewDense(n, l, nil),
		Time:        mat.NewDense(n, l, nil),
		Mask:        make([][]bool, n),
		Indices:     make([]int, n),
		Diagnostics: make([]masking.Diagnostics, n),
	}
	for i, s := range samples {
		res, err := masking.Generate(l, a.Bounds, rng)
		if err != nil {
			return nil, err
		}
		sig := b.Input.Signal.RawRowView(i)
		ind := b.Input.Indicator.RawRowView(i)
		copy(sig, s.Flux)
		for j, m := range res.Mask {
			if m {
				sig[j] = 0
				ind[j] = 1
			}
		}
		b.Target.SetRow(i, s.Flux)
		b.Time.SetRow(i, s.Time)
		b.Mask[i] = res.Mask
		b.Indices[i] = s.Index
		b.Diagnostics[i] = res.Diagnostics
	}
	return b, nil
}
