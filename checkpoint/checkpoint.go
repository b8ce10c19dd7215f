// Package checkpoint persists training runs so they can be inspected or
// resumed exactly.
//
// A checkpoint Record bundles the model snapshot with the optimizer,
// schedule and random stream state from train.Context. Records are gob
// encoded and written atomically through a temporary file.
package checkpoint

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/lcgen/core/model"
	"github.com/YuminosukeSato/lcgen/pkg/errors"
	"github.com/YuminosukeSato/lcgen/train"
)

// Kind names the reason a checkpoint was written.
type Kind string

const (
	KindBest     Kind = "best"
	KindPeriodic Kind = "periodic"
	KindFinal    Kind = "final"
)

// formatVersion is stored in every record and checked on load.
const formatVersion = 1

// Record is the on-disk checkpoint.
type Record struct {
	FormatVersion int
	RunID         string
	Kind          Kind
	Created       time.Time

	Epoch     int
	TrainLoss float64
	ValLoss   float64
	BestLoss  float64

	Model  model.Snapshot
	Config train.Config
	State  train.State

	// Split is the train/validation partition the run was selected on.
	// It is nil for records written without WithSplit.
	Split *Split
}

// Split identifies a seeded train/validation partition of a dataset.
type Split struct {
	ValFraction float64
	Seed        uint64
}

// Capture builds a record from the current model and run state.
func Capture(m model.Trainable, ctx *train.Context, runID string, kind Kind) (*Record, error) {
	snap, err := m.Snapshot()
	if err != nil {
		return nil, errors.Wrap(err, "snapshot model")
	}
	st, err := ctx.State()
	if err != nil {
		return nil, err
	}
	rec := &Record{
		FormatVersion: formatVersion,
		RunID:         runID,
		Kind:          kind,
		Created:       time.Now().UTC(),
		Epoch:         ctx.Epoch,
		BestLoss:      ctx.BestLoss,
		Model:         snap,
		Config:        ctx.Config,
		State:         st,
	}
	if n := len(ctx.History); n > 0 {
		rec.TrainLoss = ctx.History[n-1].Train.Loss
		rec.ValLoss = ctx.History[n-1].Val.Loss
	}
	return rec, nil
}

// Save writes rec to path. An existing file at path is replaced only after
// the new one is fully on disk.
func Save(path string, rec *Record) error {
	if err := model.SaveFile(rec, path); err != nil {
		return errors.NewCheckpointError("write checkpoint", path, err)
	}
	return nil
}

// Load reads a record written by Save.
func Load(path string) (*Record, error) {
	var rec Record
	if err := model.LoadFile(&rec, path); err != nil {
		return nil, errors.NewCheckpointError("read checkpoint", path, err)
	}
	if rec.FormatVersion != formatVersion {
		return nil, errors.NewCheckpointError("read checkpoint", path,
			errors.Newf("unsupported format version %d", rec.FormatVersion))
	}
	return &rec, nil
}

// Restore rebuilds the model from the registry and a training context
// positioned after rec.Epoch. opts override the stored configuration, for
// example to extend the number of epochs; the learning-rate schedule keeps
// its stored length.
func Restore(rec *Record, stepsPerEpoch int, opts ...train.Option) (model.Trainable, *train.Context, error) {
	m, err := model.FromSnapshot(rec.Model)
	if err != nil {
		return nil, nil, err
	}
	cfg := rec.Config
	for _, opt := range opts {
		opt(&cfg)
	}
	ctx, err := train.NewContext(m, cfg, stepsPerEpoch)
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.LoadState(rec.State); err != nil {
		return nil, nil, err
	}
	return m, ctx, nil
}

// Paths derives checkpoint file names from a directory and prefix.
type Paths struct {
	Dir    string
	Prefix string
}

func (p Paths) Best() string { return filepath.Join(p.Dir, p.Prefix+"_best.gob") }

func (p Paths) Final() string { return filepath.Join(p.Dir, p.Prefix+"_final.gob") }

// Epoch returns the periodic checkpoint path for a 1-based epoch.
func (p Paths) Epoch(epoch int) string {
	return filepath.Join(p.Dir, fmt.Sprintf("%s_checkpoint_epoch%d.gob", p.Prefix, epoch))
}
