// Package masking generates contiguous block masks over 1-D sequences.
//
// Generate is a pure function of its arguments and the injected random
// source: it keeps no state between calls, so the same seed yields the same
// mask.
package masking

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/lcgen/pkg/errors"
)

// DefaultMaxAttempts bounds block placements per mask.
const DefaultMaxAttempts = 1000

// Bounds configures one mask draw.
type Bounds struct {
	MinBlock    int
	MaxBlock    int
	MinRatio    float64
	MaxRatio    float64
	MaxAttempts int // 0 means DefaultMaxAttempts
}

// Default returns the collate defaults for sequences of length l:
// blocks in [1, l/2] and ratios in [0.1, 0.9].
func Default(l int) Bounds {
	maxBlock := l / 2
	if maxBlock < 1 {
		maxBlock = 1
	}
	return Bounds{
		MinBlock:    1,
		MaxBlock:    maxBlock,
		MinRatio:    0.1,
		MaxRatio:    0.9,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Validate checks the bounds independently of any sequence length.
func (b Bounds) Validate() error {
	switch {
	case b.MinBlock < 1:
		return errors.NewValidationError("min_block", "must be >= 1", b.MinBlock)
	case b.MaxBlock < b.MinBlock:
		return errors.NewValidationError("max_block", "must be >= min_block", b.MaxBlock)
	case math.IsNaN(b.MinRatio) || b.MinRatio < 0 || b.MinRatio > 1:
		return errors.NewValidationError("min_ratio", "must be in [0, 1]", b.MinRatio)
	case math.IsNaN(b.MaxRatio) || b.MaxRatio < 0 || b.MaxRatio > 1:
		return errors.NewValidationError("max_ratio", "must be in [0, 1]", b.MaxRatio)
	case b.MinRatio > b.MaxRatio:
		return errors.NewValidationError("min_ratio", "must be <= max_ratio", b.MinRatio)
	case b.MaxAttempts < 0:
		return errors.NewValidationError("max_attempts", "must be >= 0", b.MaxAttempts)
	}
	return nil
}

// Result is one generated mask and its diagnostics.
type Result struct {
	Mask []bool // true = held out
	Diagnostics
}

// Diagnostics describe how a mask was produced. They are for plots and logs
// only and never influence training.
type Diagnostics struct {
	BlockSize   int
	TargetCount int
	Ratio       float64 // achieved masked fraction
	Attempts    int
	Exhausted   bool
}

// Generate draws a block mask of the given length.
//
// The target ratio is drawn uniformly from [MinRatio, MaxRatio] and turned
// into round(ratio*length) positions clamped to [1, length]. The block size
// is drawn uniformly from [MinBlock, min(MaxBlock, length)], or is length
// when length < MinBlock. Blocks land at uniform starts in
// [0, length-size] until the target count is reached; the placement that
// reaches it stops marking there, so the achieved count never exceeds the
// target. If the attempt budget runs out first the mask is returned as is
// with Exhausted set, and a MaskGenerationExhausted warning is emitted.
func Generate(length int, b Bounds, rng *rand.Rand) (Result, error) {
	if length < 1 {
		return Result{}, errors.NewValidationError("length", "must be >= 1", length)
	}
	if err := b.Validate(); err != nil {
		return Result{}, err
	}
	maxAttempts := b.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = DefaultMaxAttempts
	}

	ratio := b.MinRatio + rng.Float64()*(b.MaxRatio-b.MinRatio)
	target := int(math.Round(ratio * float64(length)))
	target = min(max(target, 1), length)

	blockSize := length
	if length >= b.MinBlock {
		hi := min(b.MaxBlock, length)
		blockSize = b.MinBlock + rng.IntN(hi-b.MinBlock+1)
	}

	mask := make([]bool, length)
	count, attempts := 0, 0
	for count < target && attempts < maxAttempts {
		start := rng.IntN(length - blockSize + 1)
		attempts++
		for i := start; i < start+blockSize && count < target; i++ {
			if !mask[i] {
				mask[i] = true
				count++
			}
		}
	}

	res := Result{
		Mask: mask,
		Diagnostics: Diagnostics{
			BlockSize:   blockSize,
			TargetCount: target,
			Ratio:       float64(count) / float64(length),
			Attempts:    attempts,
			Exhausted:   count < target,
		},
	}
	if res.Exhausted {
		errors.Warn(errors.NewMaskGenerationExhausted(length, blockSize, attempts, target, count))
	}
	return res, nil
}

// Runs returns the [start, end) intervals of consecutive masked positions.
func Runs(mask []bool) [][2]int {
	var runs [][2]int
	for i := 0; i < len(mask); {
		if !mask[i] {
			i++
			continue
		}
		j := i
		for j < len(mask) && mask[j] {
			j++
		}
		runs = append(runs, [2]int{i, j})
		i = j
	}
	return runs
}

// Count returns the number of masked positions.
func Count(mask []bool) int {
	n := 0
	for _, m := range mask {
		if m {
			n++
		}
	}
	return n
}
