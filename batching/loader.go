package batching

import (
	"math/rand/v2"

	"github.com/YuminosukeSato/lcgen/dataset"
	"github.com/YuminosukeSato/lcgen/pkg/errors"
)

// Loader yields the batches of one pass over a subset.
type Loader struct {
	subset    *dataset.Subset
	batchSize int
	shuffle   bool
	assembler Assembler
}

// Option configures a Loader.
type Option func(*Loader)

// WithShuffle permutes the sample order on every pass.
func WithShuffle(shuffle bool) Option {
	return func(l *Loader) { l.shuffle = shuffle }
}

// NewLoader returns a loader over subset. The last batch of a pass may be
// smaller than batchSize.
func NewLoader(subset *dataset.Subset, batchSize int, asm Assembler, opts ...Option) (*Loader, error) {
	if batchSize < 1 {
		return nil, errors.NewValidationError("batch_size", "must be >= 1", batchSize)
	}
	if err := asm.Bounds.Validate(); err != nil {
		return nil, err
	}
	l := &Loader{subset: subset, batchSize: batchSize, assembler: asm}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Len returns the number of samples per pass.
func (l *Loader) Len() int { return l.subset.Len() }

// NumBatches returns ceil(Len / batchSize).
func (l *Loader) NumBatches() int {
	return (l.subset.Len() + l.batchSize - 1) / l.batchSize
}

// Shuffled reports whether passes are shuffled.
func (l *Loader) Shuffled() bool { return l.shuffle }

// Order returns the subset positions for one pass. With shuffling it
// consumes rng.
func (l *Loader) Order(rng *rand.Rand) []int {
	n := l.subset.Len()
	if l.shuffle {
		return rng.Perm(n)
	}
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

// ForEach runs one pass, calling fn with each batch in order. Masks are
// drawn from rng after the pass order. An error from fn stops the pass.
func (l *Loader) ForEach(rng *rand.Rand, fn func(i int, b *Batch) error) error {
	order := l.Order(rng)
	samples := make([]dataset.Sample, 0, l.batchSize)
	for bi, start := 0, 0; start < len(order); bi, start = bi+1, start+l.batchSize {
		end := min(start+l.batchSize, len(order))
		samples = samples[:0]
		for _, pos := range order[start:end] {
			samples = append(samples, l.subset.Sample(pos))
		}
		b, err := l.assembler.Collate(samples, rng)
		if err != nil {
			return err
		}
		if err := fn(bi, b); err != nil {
			return err
		}
	}
	return nil
}

// First collates only the first batch of an unshuffled pass.
func (l *Loader) First(rng *rand.Rand) (*Batch, error) {
	n := min(l.batchSize, l.subset.Len())
	samples := make([]dataset.Sample, n)
	for i := range samples {
		samples[i] = l.subset.Sample(i)
	}
	return l.assembler.Collate(samples, rng)
}
