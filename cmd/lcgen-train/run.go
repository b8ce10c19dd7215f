package main

import (
	"context"
	"math/rand/v2"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sbwhitecap/tqdm"
	"github.com/sbwhitecap/tqdm/iterators"

	"github.com/YuminosukeSato/lcgen/batching"
	"github.com/YuminosukeSato/lcgen/checkpoint"
	"github.com/YuminosukeSato/lcgen/core/model"
	"github.com/YuminosukeSato/lcgen/dataset"
	"github.com/YuminosukeSato/lcgen/history"
	"github.com/YuminosukeSato/lcgen/nn/autoencoder"
	"github.com/YuminosukeSato/lcgen/pkg/errors"
	"github.com/YuminosukeSato/lcgen/pkg/log"
	"github.com/YuminosukeSato/lcgen/plotting"
	"github.com/YuminosukeSato/lcgen/train"
)

// session holds everything one invocation builds before the epoch loop.
type session struct {
	runID       string
	model       model.Trainable
	ctx         *train.Context
	trainLoader *batching.Loader
	valLoader   *batching.Loader
	manager     *checkpoint.Manager
	plotter     *plotting.Plotter
	memory      *history.MemoryStore
	stores      []history.Store
}

// execute trains according to a and writes every artifact into a.OutputDir.
func execute(a Args, logger log.Logger) (train.Result, error) {
	s, err := prepare(a, logger)
	if err != nil {
		return train.Result{}, err
	}
	defer func() {
		for _, st := range s.stores {
			if cerr := st.Close(); cerr != nil {
				logger.Warn("Closing history store failed", log.ErrAttrKey, cerr)
			}
		}
	}()

	callbacks := []train.Callback{
		s.manager.Observe,
		s.plotter.Callback(),
	}
	for _, st := range s.stores {
		callbacks = append(callbacks, history.Callback(st, s.runID))
	}
	if a.Patience > 0 {
		callbacks = append(callbacks, train.NewEarlyStopping(a.Patience).Callback())
	}
	if a.TimeLimit > 0 {
		callbacks = append(callbacks, train.TimeLimit(a.TimeLimit))
	}

	var res train.Result
	if a.Progress {
		res, err = fitWithProgress(s, callbacks)
	} else {
		res, err = train.Fit(s.ctx, s.model, s.trainLoader, s.valLoader, callbacks...)
	}

	// History and the curve are useful for diagnosing a failed run too.
	s.plotter.Curve(s.ctx.History)
	if herr := exportHistory(a, s); herr != nil {
		logger.Warn("History export failed", log.ErrAttrKey, herr)
	}
	if err != nil {
		return res, err
	}
	if err := s.manager.Finalize(s.model, s.ctx); err != nil {
		return res, err
	}

	logger.Info("Training complete",
		log.RunIDKey, s.runID,
		log.EpochKey, res.Epochs,
		"training.best_epoch", res.BestEpoch,
		log.BestLossKey, res.BestLoss,
		"training.stopped_early", res.StoppedEarly,
		log.CheckpointPathKey, s.manager.Paths().Best(),
	)
	return res, nil
}

func prepare(a Args, logger log.Logger) (*session, error) {
	s := &session{runID: uuid.NewString()}

	var rec *checkpoint.Record
	cfg := a.trainConfig()
	if a.Resume != "" {
		var err error
		if rec, err = checkpoint.Load(a.Resume); err != nil {
			return nil, err
		}
		if rec.RunID != "" {
			s.runID = rec.RunID
		}
		// steps per epoch must match the stored schedule
		cfg = rec.Config
		cfg.Epochs = a.Epochs
		a = resumeSplit(a, rec, logger)
	}

	ds, _, err := dataset.Load(a.Input)
	if err != nil {
		return nil, err
	}
	logger.Info("Dataset statistics", log.PathKey, a.Input, "data.stats", ds.Stats().String())

	trainSub, valSub, err := ds.Split(a.ValSplit, a.Seed)
	if err != nil {
		return nil, err
	}
	logger.Info("Split dataset",
		log.OperationKey, log.OperationSplit,
		"data.train_samples", trainSub.Len(),
		"data.val_samples", valSub.Len(),
	)

	asm := batching.Assembler{Bounds: a.bounds()}
	if s.trainLoader, err = batching.NewLoader(trainSub, cfg.BatchSize, asm, batching.WithShuffle(true)); err != nil {
		return nil, err
	}
	if s.valLoader, err = batching.NewLoader(valSub, cfg.BatchSize, asm); err != nil {
		return nil, err
	}
	steps := s.trainLoader.NumBatches()

	if rec != nil {
		s.model, s.ctx, err = checkpoint.Restore(rec, steps, train.WithEpochs(a.Epochs))
		if err != nil {
			return nil, err
		}
		logger.Info("Resumed from checkpoint",
			log.OperationKey, log.OperationRestore,
			log.CheckpointPathKey, a.Resume,
			log.EpochKey, s.ctx.Epoch,
			log.BestLossKey, s.ctx.BestLoss,
		)
	} else {
		m, err := autoencoder.New(a.modelConfig())
		if err != nil {
			return nil, err
		}
		s.model = m
		if s.ctx, err = train.NewContext(m, cfg, steps); err != nil {
			return nil, err
		}
	}
	s.ctx.Logger = s.ctx.Logger.With(log.RunIDKey, s.runID)

	logger.Info("Model ready",
		log.RunIDKey, s.runID,
		log.ModelNameKey, autoencoder.TypeName,
		log.ParamCountKey, humanize.Comma(int64(model.CountParams(s.model.Parameters()))),
		log.BatchesKey, steps,
		log.BatchSizeKey, cfg.BatchSize,
		log.DeviceKey, "cpu",
		log.RandomSeedKey, a.Seed,
	)

	if s.manager, err = checkpoint.NewManager(a.OutputDir,
		checkpoint.WithSaveEvery(a.SaveEvery),
		checkpoint.WithPrefix(a.Prefix),
		checkpoint.WithRunID(s.runID),
		checkpoint.WithSplit(a.ValSplit, a.Seed),
		checkpoint.WithLogger(logger.With(log.ComponentKey, "checkpoint")),
	); err != nil {
		return nil, err
	}

	if s.plotter, err = newPlotter(a, s, logger); err != nil {
		return nil, err
	}

	s.memory = history.NewMemoryStore()
	s.stores = []history.Store{s.memory}
	if a.HistoryDB != "" {
		s.stores = append(s.stores, history.NewSQLiteStore(a.HistoryDB))
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := initStores(ctx, s.stores); err != nil {
		return nil, err
	}
	// a resumed run carries its earlier epochs
	for _, row := range history.Rows(s.runID, s.ctx.History) {
		if err := s.memory.SaveEpoch(ctx, row); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// initStores initializes every store. On failure the stores opened so far
// are closed again.
func initStores(ctx context.Context, stores []history.Store) error {
	for i, st := range stores {
		if err := st.Init(ctx); err != nil {
			for _, opened := range stores[:i] {
				_ = opened.Close()
			}
			return err
		}
	}
	return nil
}

// resumeSplit makes a resumed run partition the data exactly like the run
// that wrote rec. Records without a stored partition fall back to the run's
// training seed and the current --val-split.
func resumeSplit(a Args, rec *checkpoint.Record, logger log.Logger) Args {
	valFraction, seed := a.ValSplit, rec.Config.Seed
	if rec.Split != nil {
		valFraction, seed = rec.Split.ValFraction, rec.Split.Seed
	}
	if valFraction != a.ValSplit || seed != a.Seed {
		logger.Warn("Split flags differ from the checkpoint; using the stored partition",
			log.CheckpointPathKey, a.Resume,
			"data.val_split", valFraction,
			log.RandomSeedKey, seed,
			"data.requested_val_split", a.ValSplit,
			"config.requested_seed", a.Seed,
		)
	}
	a.ValSplit, a.Seed = valFraction, seed
	return a
}

// newPlotter fixes the reconstruction batch once so every plot shows the
// same samples under the same masks.
func newPlotter(a Args, s *session, logger log.Logger) (*plotting.Plotter, error) {
	loader := s.valLoader
	if loader.Len() == 0 {
		loader = s.trainLoader
	}
	b, err := loader.First(rand.New(rand.NewPCG(a.Seed, a.Seed)))
	if err != nil {
		return nil, err
	}
	return &plotting.Plotter{
		Dir:    a.OutputDir,
		Prefix: a.Prefix,
		Every:  a.PlotEvery,
		Panels: plotting.DefaultPanels,
		Batch:  b,
		Logger: logger.With(log.ComponentKey, "plotting"),
	}, nil
}

// fitWithProgress is train.Fit with a progress bar over the remaining epochs.
func fitWithProgress(s *session, callbacks []train.Callback) (train.Result, error) {
	cl := train.NewCallbackList(callbacks...)
	train.WarnIfNoValidation(s.ctx, s.valLoader)

	res := train.Result{Epochs: s.ctx.Epoch, BestEpoch: s.ctx.BestEpoch, BestLoss: s.ctx.BestLoss}
	var runErr error
	err := tqdm.With(iterators.Interval(s.ctx.Epoch, s.ctx.Config.Epochs), "Training", func(v interface{}) (brk bool) {
		_, stop, err := train.RunEpoch(s.ctx, s.model, s.trainLoader, s.valLoader, cl)
		res.Epochs, res.BestEpoch, res.BestLoss = s.ctx.Epoch, s.ctx.BestEpoch, s.ctx.BestLoss
		if err != nil {
			runErr = err
			return true
		}
		if stop {
			res.StoppedEarly = true
			return true
		}
		return false
	})
	if runErr != nil {
		return res, runErr
	}
	return res, err
}

func exportHistory(a Args, s *session) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rows, _, err := s.memory.GetRun(ctx, s.runID)
	if err != nil {
		return err
	}
	base := filepath.Join(a.OutputDir, a.Prefix+"_history")
	if err := history.WriteJSON(base+".json", s.runID, rows); err != nil {
		return errors.Wrap(err, "write history json")
	}
	if err := history.WriteCSV(base+".csv", rows); err != nil {
		return errors.Wrap(err, "write history csv")
	}
	return nil
}
