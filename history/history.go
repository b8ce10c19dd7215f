// Package history keeps the per-epoch metrics of training runs.
//
// Stores implement Store and are keyed by run id. The in-memory store backs
// tests and short runs; the SQLite store (modernc.org/sqlite, no cgo) lets
// several runs share one database. WriteJSON and WriteCSV export a run's
// rows as flat files.
package history

import (
	"context"
	"time"

	"github.com/YuminosukeSato/lcgen/train"
)

// Row is one epoch of one run in flat form.
type Row struct {
	RunID             string  `json:"run_id" csv:"run_id"`
	Epoch             int     `json:"epoch" csv:"epoch"`
	TrainLoss         float64 `json:"train_loss" csv:"train_loss"`
	TrainMaskedLoss   float64 `json:"train_masked_loss" csv:"train_masked_loss"`
	TrainUnmaskedLoss float64 `json:"train_unmasked_loss" csv:"train_unmasked_loss"`
	ValLoss           float64 `json:"val_loss" csv:"val_loss"`
	ValMaskedLoss     float64 `json:"val_masked_loss" csv:"val_masked_loss"`
	ValUnmaskedLoss   float64 `json:"val_unmasked_loss" csv:"val_unmasked_loss"`
	LearningRate      float64 `json:"learning_rate" csv:"learning_rate"`
	GradNorm          float64 `json:"grad_norm" csv:"grad_norm"`
	SkippedBatches    int     `json:"skipped_batches" csv:"skipped_batches"`
	Improved          bool    `json:"improved" csv:"improved"`
	DurationSeconds   float64 `json:"duration_seconds" csv:"duration_seconds"`
}

// FromRecord flattens an epoch record.
func FromRecord(runID string, rec train.EpochRecord) Row {
	return Row{
		RunID:             runID,
		Epoch:             rec.Epoch,
		TrainLoss:         rec.Train.Loss,
		TrainMaskedLoss:   rec.Train.MaskedLoss,
		TrainUnmaskedLoss: rec.Train.UnmaskedLoss,
		ValLoss:           rec.Val.Loss,
		ValMaskedLoss:     rec.Val.MaskedLoss,
		ValUnmaskedLoss:   rec.Val.UnmaskedLoss,
		LearningRate:      rec.Train.LR,
		GradNorm:          rec.Train.GradNorm,
		SkippedBatches:    rec.Train.Skipped,
		Improved:          rec.Improved,
		DurationSeconds:   rec.Duration.Seconds(),
	}
}

// Rows flattens a run's history in order.
func Rows(runID string, recs []train.EpochRecord) []Row {
	rows := make([]Row, len(recs))
	for i, rec := range recs {
		rows[i] = FromRecord(runID, rec)
	}
	return rows
}

// Store persists epoch rows per run. Saving the same (run, epoch) twice
// replaces the earlier row, so a resumed run can rewrite epochs it repeats.
type Store interface {
	Init(ctx context.Context) error
	SaveEpoch(ctx context.Context, row Row) error
	GetRun(ctx context.Context, runID string) ([]Row, bool, error)
	Close() error
}

// Callback saves every finished epoch of runID to store.
func Callback(store Store, runID string) train.Callback {
	return func(env *train.CallbackEnv) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return store.SaveEpoch(ctx, FromRecord(runID, env.Record))
	}
}
