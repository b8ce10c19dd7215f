package train

import (
	"time"

	"github.com/YuminosukeSato/lcgen/core/model"
	"github.com/YuminosukeSato/lcgen/pkg/log"
)

// CallbackEnv is what callbacks see after each epoch.
type CallbackEnv struct {
	Model   model.Trainable
	Context *Context
	// Record is the epoch just finished; it is already in Context.History.
	Record EpochRecord
	// StopTraining ends the run after the current callbacks return.
	StopTraining bool
}

// Callback runs after every epoch. An error aborts the run.
type Callback func(env *CallbackEnv) error

// CallbackList runs callbacks in order over a shared environment.
type CallbackList struct {
	callbacks []Callback
}

// NewCallbackList creates a list; nil callbacks are ignored.
func NewCallbackList(callbacks ...Callback) *CallbackList {
	cl := &CallbackList{}
	for _, cb := range callbacks {
		if cb != nil {
			cl.callbacks = append(cl.callbacks, cb)
		}
	}
	return cl
}

// AfterEpoch calls every callback with env. All callbacks run even when
// one sets StopTraining, so checkpoints and history for the last epoch are
// still written.
func (cl *CallbackList) AfterEpoch(env *CallbackEnv) error {
	for _, cb := range cl.callbacks {
		if err := cb(env); err != nil {
			return err
		}
	}
	return nil
}

// EarlyStopping stops a run when the selection loss has not improved for
// Patience epochs. A Patience of zero disables it.
type EarlyStopping struct {
	Patience        int
	BestScore       float64
	BestEpoch       int
	RoundsNoImprove int
	Enabled         bool
}

// NewEarlyStopping creates an early stopping handler.
func NewEarlyStopping(patience int) *EarlyStopping {
	if patience <= 0 {
		return &EarlyStopping{}
	}
	return &EarlyStopping{Patience: patience, Enabled: true}
}

// Update records one epoch and reports whether training should stop.
func (es *EarlyStopping) Update(epoch int, improved bool, score float64) bool {
	if !es.Enabled {
		return false
	}
	if improved {
		es.BestScore = score
		es.BestEpoch = epoch
		es.RoundsNoImprove = 0
	} else {
		es.RoundsNoImprove++
	}
	return es.RoundsNoImprove >= es.Patience
}

// ShouldStop returns whether training should stop.
func (es *EarlyStopping) ShouldStop() bool {
	return es.Enabled && es.RoundsNoImprove >= es.Patience
}

// Callback adapts es to the epoch callback list.
func (es *EarlyStopping) Callback() Callback {
	return func(env *CallbackEnv) error {
		if es.Update(env.Record.Epoch, env.Record.Improved, env.Record.Score) {
			env.Context.Logger.Info("Early stopping",
				"epoch", env.Record.Epoch,
				"best_epoch", es.BestEpoch,
				"patience", es.Patience,
			)
			env.StopTraining = true
		}
		return nil
	}
}

// TimeLimit stops training once maxDuration has elapsed since creation.
func TimeLimit(maxDuration time.Duration) Callback {
	start := time.Now()
	return func(env *CallbackEnv) error {
		if time.Since(start) > maxDuration {
			env.Context.Logger.Info("Time limit reached", log.EpochKey, env.Record.Epoch)
			env.StopTraining = true
		}
		return nil
	}
}
