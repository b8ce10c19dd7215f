package main

import (
	"strings"
	"time"

	"github.com/YuminosukeSato/lcgen/masking"
	"github.com/YuminosukeSato/lcgen/nn/autoencoder"
	"github.com/YuminosukeSato/lcgen/pkg/errors"
	"github.com/YuminosukeSato/lcgen/pkg/log"
	"github.com/YuminosukeSato/lcgen/train"
)

// Args are the command-line flags. Every flag can also be set through the
// LCGEN_* environment variable named in its tag.
type Args struct {
	Input     string `arg:"--input,required,env:LCGEN_INPUT" help:"light curve file (.h5/.hdf5 or .json) with flux and time arrays"`
	OutputDir string `arg:"--output-dir,env:LCGEN_OUTPUT_DIR" help:"directory for checkpoints, plots and history"`
	Prefix    string `arg:"--prefix,env:LCGEN_PREFIX" help:"file name prefix for artifacts"`

	Epochs      int     `arg:"--epochs,env:LCGEN_EPOCHS"`
	BatchSize   int     `arg:"--batch-size,env:LCGEN_BATCH_SIZE"`
	LR          float64 `arg:"--lr,env:LCGEN_LR" help:"peak learning rate of the one-cycle schedule"`
	WeightDecay float64 `arg:"--weight-decay,env:LCGEN_WEIGHT_DECAY"`
	MaxGradNorm float64 `arg:"--max-grad-norm,env:LCGEN_MAX_GRAD_NORM"`

	HiddenDims    []int   `arg:"--hidden-dims,env:LCGEN_HIDDEN_DIMS"`
	ContextRadius int     `arg:"--context-radius,env:LCGEN_CONTEXT_RADIUS" help:"neighbours on each side of a position"`
	NumPeriods    int     `arg:"--num-periods,env:LCGEN_NUM_PERIODS" help:"sinusoidal time encoding periods"`
	MinPeriod     float64 `arg:"--min-period,env:LCGEN_MIN_PERIOD" help:"shortest encoding period in days"`
	MaxPeriod     float64 `arg:"--max-period,env:LCGEN_MAX_PERIOD" help:"longest encoding period in days"`

	BlockSize    int     `arg:"--block-size,env:LCGEN_BLOCK_SIZE" help:"maximum masked block length"`
	MinBlockSize int     `arg:"--min-block-size,env:LCGEN_MIN_BLOCK_SIZE"`
	MaskRatio    float64 `arg:"--mask-ratio,env:LCGEN_MASK_RATIO" help:"maximum masked fraction"`
	MinMaskRatio float64 `arg:"--min-mask-ratio,env:LCGEN_MIN_MASK_RATIO"`

	ValSplit  float64 `arg:"--val-split,env:LCGEN_VAL_SPLIT"`
	Seed      uint64  `arg:"--seed,env:LCGEN_SEED"`
	Device    string  `arg:"--device,env:LCGEN_DEVICE" help:"auto or cpu"`
	SaveEvery int     `arg:"--save-every,env:LCGEN_SAVE_EVERY" help:"periodic checkpoint interval in epochs, 0 disables"`
	PlotEvery int     `arg:"--plot-every,env:LCGEN_PLOT_EVERY" help:"reconstruction plot interval in epochs, 0 plots only the first"`
	Patience  int     `arg:"--patience,env:LCGEN_PATIENCE" help:"early stopping patience in epochs, 0 disables"`

	TimeLimit time.Duration `arg:"--time-limit,env:LCGEN_TIME_LIMIT" help:"stop after the epoch that exceeds this wall time, 0 disables"`

	Resume    string `arg:"--resume,env:LCGEN_RESUME" help:"checkpoint to continue from"`
	HistoryDB string `arg:"--history-db,env:LCGEN_HISTORY_DB" help:"optional SQLite database that collects epoch history"`
	Progress  bool   `arg:"--progress,env:LCGEN_PROGRESS" help:"show a progress bar over epochs"`

	LogLevel   string `arg:"--log-level,env:LCGEN_LOG_LEVEL" help:"debug, info, warn or error"`
	LogFormat  string `arg:"--log-format,env:LCGEN_LOG_FORMAT" help:"console or json"`
	LogBackend string `arg:"--log-backend,env:LCGEN_LOG_BACKEND" help:"zerolog or slog"`
}

func (Args) Description() string {
	return "Trains a light-curve reconstruction model with block masking."
}

// defaultArgs mirrors the defaults of the reference training script.
func defaultArgs() Args {
	mc := autoencoder.DefaultConfig()
	tc := train.NewConfig()
	return Args{
		OutputDir:     "output",
		Prefix:        "lcgen",
		Epochs:        tc.Epochs,
		BatchSize:     tc.BatchSize,
		LR:            tc.MaxLR,
		WeightDecay:   tc.WeightDecay,
		MaxGradNorm:   tc.MaxGradNorm,
		HiddenDims:    mc.HiddenDims,
		ContextRadius: mc.ContextRadius,
		NumPeriods:    mc.NumPeriods,
		MinPeriod:     mc.MinPeriod,
		MaxPeriod:     mc.MaxPeriod,
		BlockSize:     32,
		MinBlockSize:  1,
		MaskRatio:     0.5,
		MinMaskRatio:  0.1,
		ValSplit:      0.15,
		Seed:          42,
		Device:        "auto",
		SaveEvery:     10,
		PlotEvery:     10,
		LogLevel:      "info",
		LogFormat:     string(log.FormatConsole),
		LogBackend:    "zerolog",
	}
}

func (a Args) trainConfig() train.Config {
	return train.NewConfig(
		train.WithEpochs(a.Epochs),
		train.WithBatchSize(a.BatchSize),
		train.WithMaxLR(a.LR),
		train.WithWeightDecay(a.WeightDecay),
		train.WithMaxGradNorm(a.MaxGradNorm),
		train.WithSeed(a.Seed),
	)
}

func (a Args) modelConfig() autoencoder.Config {
	return autoencoder.Config{
		HiddenDims:    a.HiddenDims,
		ContextRadius: a.ContextRadius,
		NumPeriods:    a.NumPeriods,
		MinPeriod:     a.MinPeriod,
		MaxPeriod:     a.MaxPeriod,
		Seed:          a.Seed,
	}
}

func (a Args) bounds() masking.Bounds {
	return masking.Bounds{
		MinBlock: a.MinBlockSize,
		MaxBlock: a.BlockSize,
		MinRatio: a.MinMaskRatio,
		MaxRatio: a.MaskRatio,
	}
}

// validate checks everything that does not need the data.
func (a Args) validate() error {
	if err := a.trainConfig().Validate(); err != nil {
		return err
	}
	if err := a.bounds().Validate(); err != nil {
		return err
	}
	if a.Resume == "" {
		if err := a.modelConfig().Validate(); err != nil {
			return err
		}
	}
	if a.ValSplit < 0 || a.ValSplit >= 1 {
		return errors.NewValidationError("val_split", "must be in [0, 1)", a.ValSplit)
	}
	if a.SaveEvery < 0 {
		return errors.NewValidationError("save_every", "must be >= 0", a.SaveEvery)
	}
	if a.PlotEvery < 0 {
		return errors.NewValidationError("plot_every", "must be >= 0", a.PlotEvery)
	}
	if a.TimeLimit < 0 {
		return errors.NewValidationError("time_limit", "must be >= 0", a.TimeLimit)
	}
	if a.Patience < 0 {
		return errors.NewValidationError("patience", "must be >= 0", a.Patience)
	}
	switch strings.ToLower(a.Device) {
	case "auto", "cpu":
	default:
		return errors.NewValidationError("device", "only auto and cpu are available", a.Device)
	}
	if _, ok := log.ParseLevel(a.LogLevel); !ok {
		return errors.NewValidationError("log_level", "unknown level", a.LogLevel)
	}
	switch log.Format(a.LogFormat) {
	case log.FormatConsole, log.FormatJSON:
	default:
		return errors.NewValidationError("log_format", "must be console or json", a.LogFormat)
	}
	switch a.LogBackend {
	case "zerolog", "slog":
	default:
		return errors.NewValidationError("log_backend", "must be zerolog or slog", a.LogBackend)
	}
	return nil
}
