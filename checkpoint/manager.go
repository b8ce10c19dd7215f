package checkpoint

import (
	"os"

	"github.com/YuminosukeSato/lcgen/core/model"
	"github.com/YuminosukeSato/lcgen/pkg/errors"
	"github.com/YuminosukeSato/lcgen/pkg/log"
	"github.com/YuminosukeSato/lcgen/train"
)

// Manager decides which checkpoints to write after each epoch.
type Manager struct {
	paths     Paths
	saveEvery int
	runID     string
	split     *Split
	logger    log.Logger
	finalized bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithSaveEvery writes a periodic checkpoint every n epochs; 0 disables them.
func WithSaveEvery(n int) Option {
	return func(m *Manager) { m.saveEvery = n }
}

// WithPrefix sets the file name prefix (default "lcgen").
func WithPrefix(prefix string) Option {
	return func(m *Manager) { m.paths.Prefix = prefix }
}

// WithRunID tags every record with a run id.
func WithRunID(id string) Option {
	return func(m *Manager) { m.runID = id }
}

// WithSplit records the data partition in every record so a resumed run
// can rebuild the same training and validation subsets.
func WithSplit(valFraction float64, seed uint64) Option {
	return func(m *Manager) { m.split = &Split{ValFraction: valFraction, Seed: seed} }
}

func WithLogger(l log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates dir if needed and returns a manager writing into it.
func NewManager(dir string, opts ...Option) (*Manager, error) {
	m := &Manager{
		paths:     Paths{Dir: dir, Prefix: "lcgen"},
		saveEvery: 10,
		logger:    log.GetLoggerWithName("checkpoint"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.saveEvery < 0 {
		return nil, errors.NewValidationError("save_every", "must be >= 0", m.saveEvery)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewCheckpointError("create checkpoint directory", dir, err)
	}
	return m, nil
}

// Paths returns the file layout used by the manager.
func (mg *Manager) Paths() Paths { return mg.paths }

// Observe writes the best checkpoint when the epoch improved and a periodic
// checkpoint every saveEvery epochs. It has the train.Callback signature.
func (mg *Manager) Observe(env *train.CallbackEnv) error {
	epoch := env.Record.Epoch
	if env.Record.Improved {
		if err := mg.write(env.Model, env.Context, KindBest, mg.paths.Best()); err != nil {
			return err
		}
	}
	if mg.saveEvery > 0 && epoch%mg.saveEvery == 0 {
		if err := mg.write(env.Model, env.Context, KindPeriodic, mg.paths.Epoch(epoch)); err != nil {
			return err
		}
	}
	return nil
}

// Finalize writes the final checkpoint. Later calls do nothing.
func (mg *Manager) Finalize(m model.Trainable, ctx *train.Context) error {
	if mg.finalized {
		return nil
	}
	if err := mg.write(m, ctx, KindFinal, mg.paths.Final()); err != nil {
		return err
	}
	mg.finalized = true
	return nil
}

func (mg *Manager) write(m model.Trainable, ctx *train.Context, kind Kind, path string) error {
	rec, err := Capture(m, ctx, mg.runID, kind)
	if err != nil {
		return errors.NewCheckpointError("capture checkpoint", path, err)
	}
	if mg.split != nil {
		sp := *mg.split
		rec.Split = &sp
	}
	if err := Save(path, rec); err != nil {
		mg.logger.Error("Checkpoint write failed",
			err,
			log.CheckpointPathKey, path,
			log.ErrorCodeKey, log.ErrorCheckpointWrite,
		)
		return err
	}
	mg.logger.Info("Checkpoint written",
		log.CheckpointPathKey, path,
		log.CheckpointKindKey, string(kind),
		log.EpochKey, ctx.Epoch,
		log.BestLossKey, ctx.BestLoss,
	)
	return nil
}
