package train

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/lcgen/batching"
	"github.com/YuminosukeSato/lcgen/core/model"
	"github.com/YuminosukeSato/lcgen/metrics"
	"github.com/YuminosukeSato/lcgen/optim"
	"github.com/YuminosukeSato/lcgen/pkg/errors"
	"github.com/YuminosukeSato/lcgen/pkg/log"
)

// EpochMetrics summarizes one pass. Loss is the whole-sequence MSE that
// the optimizer minimizes; MaskedLoss and UnmaskedLoss are monitoring
// splits of it.
type EpochMetrics struct {
	Loss         float64
	MaskedLoss   float64
	UnmaskedLoss float64
	// Batches counts batches included in the means.
	Batches int
	// Skipped counts batches dropped for a non-finite loss or gradient.
	Skipped int
	// LR is the learning rate after the last step of the pass.
	LR float64
	// GradNorm is the mean pre-clipping global norm.
	GradNorm float64
}

// accumulator averages per-batch losses. The masked and unmasked means only
// count batches where that subset is non-empty.
type accumulator struct {
	loss, masked, unmasked, grad float64
	n, nMasked, nUnmasked        int
	skipped                      int
}

func (a *accumulator) add(d metrics.LossDecomposition, gradNorm float64) {
	a.n++
	a.loss += d.Total
	a.grad += gradNorm
	if d.MaskedCount > 0 {
		a.nMasked++
		a.masked += d.Masked
	}
	if d.UnmaskedCount > 0 {
		a.nUnmasked++
		a.unmasked += d.Unmasked
	}
}

func (a *accumulator) metrics() EpochMetrics {
	return EpochMetrics{
		Loss:         errors.SafeDivide(a.loss, float64(a.n)),
		MaskedLoss:   errors.SafeDivide(a.masked, float64(a.nMasked)),
		UnmaskedLoss: errors.SafeDivide(a.unmasked, float64(a.nUnmasked)),
		GradNorm:     errors.SafeDivide(a.grad, float64(a.n)),
		Batches:      a.n,
		Skipped:      a.skipped,
	}
}

// TrainEpoch runs one optimization pass over loader.
//
// Each batch is reconstructed in full and the whole-sequence MSE is
// backpropagated, clipped to Config.MaxGradNorm and applied with AdamW.
// The schedule advances once per batch, also for skipped batches, so the
// step budget stays aligned with the schedule length. A batch whose loss or
// gradient norm is not finite is skipped with a warning; after
// Config.MaxConsecutiveAnomalies such batches in a row the pass aborts with
// a NumericalInstabilityError.
func TrainEpoch(ctx *Context, m model.Trainable, loader *batching.Loader) (EpochMetrics, error) {
	logger := ctx.Logger.With(log.OperationKey, log.OperationTrain, log.PhaseKey, log.PhaseTraining)
	params := m.Parameters()
	var acc accumulator

	err := loader.ForEach(ctx.rng, func(_ int, b *batching.Batch) error {
		m.ZeroGrad()
		out, tape, err := m.ForwardTrain(b.Input, b.Time)
		if err != nil {
			return err
		}
		dec, err := metrics.Decompose(b.Target, out.Reconstructed, b.Mask)
		if err != nil {
			return err
		}

		anomaly := errors.CheckScalar("batch_loss", dec.Total, ctx.GlobalStep)
		gradNorm := 0.0
		if anomaly == nil {
			n, l := out.Reconstructed.Dims()
			grad := mat.NewDense(n, l, nil)
			if err := metrics.MSEGrad(grad, b.Target, out.Reconstructed); err != nil {
				return err
			}
			if err := tape.Backward(grad); err != nil {
				return err
			}
			gradNorm = optim.ClipGradNorm(params, ctx.Config.MaxGradNorm)
			anomaly = errors.CheckScalar("grad_norm", gradNorm, ctx.GlobalStep)
		}

		if anomaly != nil {
			ctx.ConsecutiveAnomalies++
			acc.skipped++
			logger.Warn("Skipping batch with non-finite values",
				log.ErrAttrKey, anomaly,
				log.ErrorCodeKey, log.ErrorNumericInstability,
				log.IterationKey, ctx.GlobalStep,
			)
			ctx.Scheduler.Step()
			ctx.GlobalStep++
			if ctx.ConsecutiveAnomalies >= ctx.Config.MaxConsecutiveAnomalies {
				return errors.Wrapf(anomaly, "aborting after %d consecutive non-finite batches", ctx.ConsecutiveAnomalies)
			}
			return nil
		}

		ctx.ConsecutiveAnomalies = 0
		ctx.Optimizer.Step()
		ctx.Scheduler.Step()
		ctx.GlobalStep++
		acc.add(dec, gradNorm)
		return nil
	})

	res := acc.metrics()
	res.LR = ctx.Scheduler.LR()
	return res, err
}

// Evaluate measures reconstruction on loader without touching parameters.
// It receives only a Forwarder. Masks come from a stream that restarts on
// every call, so results are comparable across epochs. Non-finite batches
// are counted as skipped.
func Evaluate(ctx *Context, m model.Forwarder, loader *batching.Loader) (EpochMetrics, error) {
	var acc accumulator
	err := loader.ForEach(ctx.validationRand(), func(_ int, b *batching.Batch) error {
		out, err := m.Forward(b.Input, b.Time)
		if err != nil {
			return err
		}
		dec, err := metrics.Decompose(b.Target, out.Reconstructed, b.Mask)
		if err != nil {
			return err
		}
		if !errors.IsFinite(dec.Total) {
			acc.skipped++
			return nil
		}
		acc.add(dec, 0)
		return nil
	})
	res := acc.metrics()
	res.LR = ctx.Scheduler.LR()
	return res, err
}
