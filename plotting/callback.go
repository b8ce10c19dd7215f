package plotting

import (
	"github.com/YuminosukeSato/lcgen/batching"
	"github.com/YuminosukeSato/lcgen/pkg/errors"
	"github.com/YuminosukeSato/lcgen/pkg/log"
	"github.com/YuminosukeSato/lcgen/train"
)

// Plotter draws reconstructions of a fixed batch on the first epoch and
// every Every epochs after that.
type Plotter struct {
	Dir    string
	Prefix string
	Every  int
	Panels int
	// Batch is reconstructed with the current model each time.
	Batch  *batching.Batch
	Logger log.Logger
}

func (pl *Plotter) logger() log.Logger {
	if pl.Logger != nil {
		return pl.Logger
	}
	return log.GetLoggerWithName("plotting")
}

// Due reports whether epoch gets a reconstruction plot.
func (pl *Plotter) Due(epoch int) bool {
	return epoch == 1 || (pl.Every > 0 && epoch%pl.Every == 0)
}

// Callback returns the epoch hook. It always returns nil.
func (pl *Plotter) Callback() train.Callback {
	return func(env *train.CallbackEnv) error {
		epoch := env.Record.Epoch
		if pl.Batch == nil || !pl.Due(epoch) {
			return nil
		}
		path := ReconstructionPath(pl.Dir, pl.Prefix, epoch)
		err := errors.Guard("plot reconstruction", func() error {
			out, err := env.Model.Forward(pl.Batch.Input, pl.Batch.Time)
			if err != nil {
				return err
			}
			return Reconstruction(path, pl.Batch, out.Reconstructed, epoch, pl.Panels)
		})
		pl.report(err, path)
		return nil
	}
}

// Curve writes the training curve for history. Failures are logged.
func (pl *Plotter) Curve(history []train.EpochRecord) {
	path := CurvePath(pl.Dir, pl.Prefix)
	err := errors.Guard("plot training curve", func() error {
		return TrainingCurve(path, history)
	})
	pl.report(err, path)
}

func (pl *Plotter) report(err error, path string) {
	if err != nil {
		pl.logger().Warn("Plot failed",
			log.ErrAttrKey, err,
			log.ArtifactPathKey, path,
			log.OperationKey, log.OperationPlot,
		)
		return
	}
	pl.logger().Debug("Plot written", log.ArtifactPathKey, path)
}
