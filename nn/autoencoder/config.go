package autoencoder

import (
	"encoding/json"
	"slices"

	"github.com/YuminosukeSato/lcgen/pkg/errors"
)

// Config はモデルの構築設定です。チェックポイントには JSON として保存され、
// 復元時にはこの設定から同じ形のモデルを組み立てます。
type Config struct {
	// HiddenDims は隠れ層の幅（入力側から順に）
	HiddenDims []int `json:"hidden_dims"`
	// ContextRadius は各位置の前後で参照する近傍の数 R（窓幅 2R+1）
	ContextRadius int `json:"context_radius"`
	// NumPeriods は時刻エンコーディングの周期数 K（特徴は 2K 個）
	NumPeriods int `json:"num_periods"`
	// MinPeriod, MaxPeriod は対数等間隔に並べる周期の範囲（日）
	MinPeriod float64 `json:"min_period"`
	MaxPeriod float64 `json:"max_period"`
	// Seed は重み初期化用の乱数シード
	Seed uint64 `json:"seed"`
}

// DefaultConfig returns the shape used by the training command.
func DefaultConfig() Config {
	return Config{
		HiddenDims:    []int{64, 128},
		ContextRadius: 8,
		NumPeriods:    8,
		MinPeriod:     0.00278,
		MaxPeriod:     1640,
		Seed:          42,
	}
}

// Validate checks the construction config.
func (c Config) Validate() error {
	if len(c.HiddenDims) == 0 {
		return errors.NewValidationError("hidden_dims", "at least one hidden layer is required", c.HiddenDims)
	}
	for _, h := range c.HiddenDims {
		if h < 1 {
			return errors.NewValidationError("hidden_dims", "layer widths must be positive", c.HiddenDims)
		}
	}
	if c.ContextRadius < 0 {
		return errors.NewValidationError("context_radius", "must be >= 0", c.ContextRadius)
	}
	if c.NumPeriods < 0 {
		return errors.NewValidationError("num_periods", "must be >= 0", c.NumPeriods)
	}
	if c.NumPeriods > 0 {
		if !(c.MinPeriod > 0) {
			return errors.NewValidationError("min_period", "must be > 0", c.MinPeriod)
		}
		if c.MaxPeriod < c.MinPeriod {
			return errors.NewValidationError("max_period", "must be >= min_period", c.MaxPeriod)
		}
	}
	return nil
}

// NumFeatures は1位置あたりの入力特徴数 3(2R+1) + 2K です。
func (c Config) NumFeatures() int {
	return 3*(2*c.ContextRadius+1) + 2*c.NumPeriods
}

func (c Config) equal(o Config) bool {
	return slices.Equal(c.HiddenDims, o.HiddenDims) &&
		c.ContextRadius == o.ContextRadius &&
		c.NumPeriods == o.NumPeriods &&
		c.MinPeriod == o.MinPeriod &&
		c.MaxPeriod == o.MaxPeriod &&
		c.Seed == o.Seed
}

func parseConfig(raw []byte) (Config, error) {
	var c Config
	if err := json.Unmarshal(raw, &c); err != nil {
		return Config{}, errors.Wrap(err, "decode time-context-mlp config")
	}
	return c, c.Validate()
}
