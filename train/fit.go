package train

import (
	"math"
	"time"

	"github.com/YuminosukeSato/lcgen/batching"
	"github.com/YuminosukeSato/lcgen/core/model"
	"github.com/YuminosukeSato/lcgen/pkg/log"
)

// EpochRecord is one row of the training history.
type EpochRecord struct {
	// Epoch is 1-based.
	Epoch int
	Train EpochMetrics
	Val   EpochMetrics
	// Score is the loss used for model selection: the validation loss, or
	// the training loss when there is no validation data.
	Score float64
	// Improved reports whether Score beat every earlier epoch.
	Improved bool
	Duration time.Duration
}

// Result summarizes a finished Fit.
type Result struct {
	Epochs       int
	BestEpoch    int
	BestLoss     float64
	StoppedEarly bool
}

// Fit trains m from ctx.Epoch up to ctx.Config.Epochs, evaluating on val
// after every epoch and running callbacks on the result. A context
// restored from a checkpoint continues where it stopped. A nil or empty
// valLoader selects checkpoints on the training loss.
func Fit(ctx *Context, m model.Trainable, trainLoader, valLoader *batching.Loader, callbacks ...Callback) (Result, error) {
	cl := NewCallbackList(callbacks...)
	WarnIfNoValidation(ctx, valLoader)

	res := Result{Epochs: ctx.Epoch, BestEpoch: ctx.BestEpoch, BestLoss: ctx.BestLoss}
	for ctx.Epoch < ctx.Config.Epochs {
		_, stop, err := RunEpoch(ctx, m, trainLoader, valLoader, cl)
		res.Epochs, res.BestEpoch, res.BestLoss = ctx.Epoch, ctx.BestEpoch, ctx.BestLoss
		if err != nil {
			return res, err
		}
		if stop {
			res.StoppedEarly = true
			break
		}
	}
	return res, nil
}

// WarnIfNoValidation logs once that model selection falls back to the
// training loss.
func WarnIfNoValidation(ctx *Context, valLoader *batching.Loader) {
	if valLoader == nil || valLoader.Len() == 0 {
		ctx.Logger.Warn("Validation subset is empty; selecting checkpoints on training loss",
			log.SamplesKey, 0,
		)
	}
}

// RunEpoch trains and evaluates one epoch, records it in ctx.History and
// runs cl. stop reports that a callback asked to end training.
func RunEpoch(ctx *Context, m model.Trainable, trainLoader, valLoader *batching.Loader, cl *CallbackList) (rec EpochRecord, stop bool, err error) {
	start := time.Now()
	tr, err := TrainEpoch(ctx, m, trainLoader)
	if err != nil {
		return rec, false, err
	}
	noVal := valLoader == nil || valLoader.Len() == 0
	var va EpochMetrics
	if !noVal {
		if va, err = Evaluate(ctx, m, valLoader); err != nil {
			return rec, false, err
		}
	}
	ctx.Epoch++

	rec = EpochRecord{Epoch: ctx.Epoch, Train: tr, Val: va, Score: va.Loss, Duration: time.Since(start)}
	scored := va
	if noVal {
		scored = tr
		rec.Score = tr.Loss
	}
	// a pass where every batch was skipped has no loss to select on
	if scored.Batches == 0 {
		rec.Score = math.NaN()
		ctx.Logger.Warn("No finite batches in the scoring pass; epoch is not eligible as best",
			log.EpochKey, ctx.Epoch,
			log.SkippedBatchesKey, scored.Skipped,
			log.ErrorCodeKey, log.ErrorNumericInstability,
		)
	} else if rec.Score < ctx.BestLoss {
		rec.Improved = true
		ctx.BestLoss = rec.Score
		ctx.BestEpoch = ctx.Epoch
	}
	ctx.History = append(ctx.History, rec)

	ctx.Logger.Info("Epoch finished",
		log.EpochKey, ctx.Epoch,
		log.LossKey, tr.Loss,
		log.MaskedLossKey, tr.MaskedLoss,
		log.UnmaskedLossKey, tr.UnmaskedLoss,
		log.ValLossKey, va.Loss,
		log.ValMaskedLossKey, va.MaskedLoss,
		log.ValUnmaskedLossKey, va.UnmaskedLoss,
		log.LearningRateKey, tr.LR,
		log.GradNormKey, tr.GradNorm,
		log.SkippedBatchesKey, tr.Skipped,
		log.BestLossKey, ctx.BestLoss,
		log.DurationSecondsKey, rec.Duration.Seconds(),
	)

	if cl == nil {
		return rec, false, nil
	}
	env := &CallbackEnv{Model: m, Context: ctx, Record: rec}
	if err := cl.AfterEpoch(env); err != nil {
		return rec, false, err
	}
	return rec, env.StopTraining, nil
}
