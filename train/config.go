package train

import (
	"github.com/YuminosukeSato/lcgen/pkg/errors"
)

// Config holds the run hyperparameters that the loops read. Model shape
// and masking bounds live with the model and the assembler.
type Config struct {
	Epochs      int
	BatchSize   int
	MaxLR       float64
	WeightDecay float64
	// MaxGradNorm is the global L2 clipping threshold.
	MaxGradNorm float64
	// MaxConsecutiveAnomalies aborts training after this many batches in a
	// row produce a non-finite loss or gradient norm.
	MaxConsecutiveAnomalies int
	// PctStart is the warmup fraction of the one-cycle schedule.
	PctStart float64
	Seed     uint64
}

// Option configures a Config.
type Option func(*Config)

func WithEpochs(n int) Option { return func(c *Config) { c.Epochs = n } }

func WithBatchSize(n int) Option { return func(c *Config) { c.BatchSize = n } }

// WithMaxLR sets the peak learning rate of the one-cycle schedule.
func WithMaxLR(lr float64) Option { return func(c *Config) { c.MaxLR = lr } }

func WithWeightDecay(wd float64) Option { return func(c *Config) { c.WeightDecay = wd } }

// WithMaxGradNorm sets the gradient clipping threshold (default 1.0).
func WithMaxGradNorm(norm float64) Option { return func(c *Config) { c.MaxGradNorm = norm } }

// WithMaxConsecutiveAnomalies sets the abort threshold (default 5).
func WithMaxConsecutiveAnomalies(n int) Option {
	return func(c *Config) { c.MaxConsecutiveAnomalies = n }
}

func WithPctStart(p float64) Option { return func(c *Config) { c.PctStart = p } }

func WithSeed(seed uint64) Option { return func(c *Config) { c.Seed = seed } }

// NewConfig returns the training defaults with opts applied.
func NewConfig(opts ...Option) Config {
	c := Config{
		Epochs:                  50,
		BatchSize:               32,
		MaxLR:                   1e-4,
		WeightDecay:             0.01,
		MaxGradNorm:             1.0,
		MaxConsecutiveAnomalies: 5,
		PctStart:                0.1,
		Seed:                    42,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Validate checks the configuration before any data is touched.
func (c Config) Validate() error {
	switch {
	case c.Epochs < 1:
		return errors.NewValidationError("epochs", "must be >= 1", c.Epochs)
	case c.BatchSize < 1:
		return errors.NewValidationError("batch_size", "must be >= 1", c.BatchSize)
	case !(c.MaxLR > 0):
		return errors.NewValidationError("lr", "must be > 0", c.MaxLR)
	case c.WeightDecay < 0:
		return errors.NewValidationError("weight_decay", "must be >= 0", c.WeightDecay)
	case !(c.MaxGradNorm > 0):
		return errors.NewValidationError("max_grad_norm", "must be > 0", c.MaxGradNorm)
	case c.MaxConsecutiveAnomalies < 1:
		return errors.NewValidationError("max_consecutive_anomalies", "must be >= 1", c.MaxConsecutiveAnomalies)
	case c.PctStart < 0 || c.PctStart > 1:
		return errors.NewValidationError("pct_start", "must be in [0, 1]", c.PctStart)
	}
	return nil
}
