package masking

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	lcerrors "github.com/YuminosukeSato/lcgen/pkg/errors"
)

func newRNG(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func TestGenerateProperties(t *testing.T) {
	tests := []struct {
		name   string
		length int
		bounds Bounds
	}{
		{name: "light curve defaults", length: 100, bounds: Bounds{MinBlock: 1, MaxBlock: 20, MinRatio: 0.1, MaxRatio: 0.5}},
		{name: "single block size", length: 64, bounds: Bounds{MinBlock: 8, MaxBlock: 8, MinRatio: 0.25, MaxRatio: 0.25}},
		{name: "max block equals length", length: 10, bounds: Bounds{MinBlock: 1, MaxBlock: 10, MinRatio: 0.5, MaxRatio: 1}},
		{name: "full mask", length: 13, bounds: Bounds{MinBlock: 2, MaxBlock: 5, MinRatio: 1, MaxRatio: 1}},
		{name: "length one", length: 1, bounds: Bounds{MinBlock: 1, MaxBlock: 1, MinRatio: 0.1, MaxRatio: 0.9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := newRNG(42)
			for trial := 0; trial < 200; trial++ {
				res, err := Generate(tt.length, tt.bounds, rng)
				require.NoError(t, err)

				require.Len(t, res.Mask, tt.length)
				count := Count(res.Mask)
				assert.GreaterOrEqual(t, count, 1)
				assert.False(t, res.Exhausted)
				assert.Equal(t, res.TargetCount, count)
				assert.InDelta(t, float64(count)/float64(tt.length), res.Ratio, 1e-12)

				// round() puts the achieved ratio within half a position of the bounds
				tol := 0.5 / float64(tt.length)
				if tt.bounds.MinRatio*float64(tt.length) >= 1 {
					assert.GreaterOrEqual(t, res.Ratio, tt.bounds.MinRatio-tol)
				}
				assert.LessOrEqual(t, res.Ratio, tt.bounds.MaxRatio+tol)

				assert.GreaterOrEqual(t, res.BlockSize, min(tt.bounds.MinBlock, tt.length))
				assert.LessOrEqual(t, res.BlockSize, min(tt.bounds.MaxBlock, tt.length))
			}
		})
	}
}

func TestGenerateDeterministic(t *testing.T) {
	b := Bounds{MinBlock: 1, MaxBlock: 16, MinRatio: 0.1, MaxRatio: 0.7}

	first, err := Generate(200, b, newRNG(123))
	require.NoError(t, err)
	second, err := Generate(200, b, newRNG(123))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := Generate(200, b, newRNG(124))
	require.NoError(t, err)
	assert.NotEqual(t, first.Mask, other.Mask)
}

func TestGenerateZeroRatioForcesOnePosition(t *testing.T) {
	res, err := Generate(50, Bounds{MinBlock: 3, MaxBlock: 3, MinRatio: 0, MaxRatio: 0}, newRNG(1))
	require.NoError(t, err)
	assert.Equal(t, 1, Count(res.Mask))
	assert.Equal(t, 1, res.TargetCount)
}

func TestGenerateShortSequenceShrinksBlock(t *testing.T) {
	res, err := Generate(4, Bounds{MinBlock: 10, MaxBlock: 20, MinRatio: 0.5, MaxRatio: 0.5}, newRNG(2))
	require.NoError(t, err)
	assert.Equal(t, 4, res.BlockSize)
	assert.Equal(t, 2, Count(res.Mask))
}

func TestGenerateBlocksAreContiguous(t *testing.T) {
	// A single placement is enough when the target fits in one block.
	res, err := Generate(100, Bounds{MinBlock: 20, MaxBlock: 20, MinRatio: 0.2, MaxRatio: 0.2}, newRNG(9))
	require.NoError(t, err)
	runs := Runs(res.Mask)
	require.Len(t, runs, 1)
	assert.Equal(t, 20, runs[0][1]-runs[0][0])
	assert.Equal(t, 1, res.Attempts)
}

func TestGenerateExhaustion(t *testing.T) {
	var warnings []error
	lcerrors.SetZerologWarnFunc(func(w error) { warnings = append(warnings, w) })
	defer lcerrors.SetZerologWarnFunc(nil)

	res, err := Generate(100, Bounds{MinBlock: 1, MaxBlock: 1, MinRatio: 0.9, MaxRatio: 0.9, MaxAttempts: 5}, newRNG(3))
	require.NoError(t, err)
	assert.True(t, res.Exhausted)
	assert.Equal(t, 5, res.Attempts)
	assert.LessOrEqual(t, Count(res.Mask), 5)
	assert.GreaterOrEqual(t, Count(res.Mask), 1)

	require.Len(t, warnings, 1)
	var exhausted *lcerrors.MaskGenerationExhausted
	require.ErrorAs(t, warnings[0], &exhausted)
	assert.Equal(t, 90, exhausted.TargetCount)
}

func TestGenerateValidation(t *testing.T) {
	valid := Bounds{MinBlock: 1, MaxBlock: 4, MinRatio: 0.1, MaxRatio: 0.5}
	tests := []struct {
		name   string
		length int
		mutate func(*Bounds)
	}{
		{name: "zero length", length: 0, mutate: func(b *Bounds) {}},
		{name: "min block zero", length: 10, mutate: func(b *Bounds) { b.MinBlock = 0 }},
		{name: "max below min", length: 10, mutate: func(b *Bounds) { b.MaxBlock = 0 }},
		{name: "negative ratio", length: 10, mutate: func(b *Bounds) { b.MinRatio = -0.1 }},
		{name: "ratio above one", length: 10, mutate: func(b *Bounds) { b.MaxRatio = 1.5 }},
		{name: "inverted ratios", length: 10, mutate: func(b *Bounds) { b.MinRatio = 0.6 }},
		{name: "negative attempts", length: 10, mutate: func(b *Bounds) { b.MaxAttempts = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := valid
			tt.mutate(&b)
			_, err := Generate(tt.length, b, newRNG(0))
			var vErr *lcerrors.ValidationError
			assert.ErrorAs(t, err, &vErr)
		})
	}
}

func TestDefault(t *testing.T) {
	b := Default(100)
	assert.Equal(t, Bounds{MinBlock: 1, MaxBlock: 50, MinRatio: 0.1, MaxRatio: 0.9, MaxAttempts: DefaultMaxAttempts}, b)
	assert.Equal(t, 1, Default(1).MaxBlock)
}

func TestRuns(t *testing.T) {
	mask := []bool{true, true, false, false, true, false, true, true, true}
	assert.Equal(t, [][2]int{{0, 2}, {4, 5}, {6, 9}}, Runs(mask))
	assert.Empty(t, Runs(make([]bool, 3)))
}
