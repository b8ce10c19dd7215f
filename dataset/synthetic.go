package dataset

import (
	"math"
	"math/rand/v2"
	"sort"
)

// SyntheticConfig controls GenerateSynthetic.
type SyntheticConfig struct {
	Samples int
	Length  int
	// Span is the observing window in days.
	Span float64
	// Noise is the Gaussian flux noise standard deviation.
	Noise float64
	// NaNFraction of flux values are replaced with NaN.
	NaNFraction float64
	Seed        uint64
}

// SyntheticOption configures a SyntheticConfig.
type SyntheticOption func(*SyntheticConfig)

// WithSpan sets the observing window in days.
func WithSpan(days float64) SyntheticOption {
	return func(c *SyntheticConfig) { c.Span = days }
}

// WithNoise sets the flux noise level.
func WithNoise(sigma float64) SyntheticOption {
	return func(c *SyntheticConfig) { c.Noise = sigma }
}

// WithNaNFraction sets the fraction of flux values dropped to NaN.
func WithNaNFraction(f float64) SyntheticOption {
	return func(c *SyntheticConfig) { c.NaNFraction = f }
}

// WithSeed sets the generator seed.
func WithSeed(seed uint64) SyntheticOption {
	return func(c *SyntheticConfig) { c.Seed = seed }
}

// GenerateSynthetic returns mock light curves: irregular sorted timestamps
// over the span, a sinusoid with random period and phase, an occasional
// box-shaped transit and Gaussian noise, normalized around 1.
func GenerateSynthetic(samples, length int, opts ...SyntheticOption) (flux, time [][]float64) {
	cfg := SyntheticConfig{Samples: samples, Length: length, Span: 27, Noise: 0.01, Seed: 1}
	for _, opt := range opts {
		opt(&cfg)
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))

	flux = make([][]float64, samples)
	time = make([][]float64, samples)
	for i := 0; i < samples; i++ {
		t := make([]float64, length)
		for j := range t {
			t[j] = rng.Float64() * cfg.Span
		}
		sort.Float64s(t)

		period := 0.5 + rng.Float64()*(cfg.Span/2)
		phase := rng.Float64() * 2 * math.Pi
		amp := 0.005 + rng.Float64()*0.05
		transitPeriod := 2 + rng.Float64()*10
		transitDepth := 0.0
		if rng.Float64() < 0.3 {
			transitDepth = 0.005 + rng.Float64()*0.02
		}

		f := make([]float64, length)
		for j, tj := range t {
			v := 1 + amp*math.Sin(2*math.Pi*tj/period+phase)
			if transitDepth > 0 && math.Mod(tj, transitPeriod) < 0.1 {
				v -= transitDepth
			}
			v += rng.NormFloat64() * cfg.Noise
			if cfg.NaNFraction > 0 && rng.Float64() < cfg.NaNFraction {
				v = math.NaN()
			}
			f[j] = v
		}
		flux[i], time[i] = f, t
	}
	return flux, time
}
