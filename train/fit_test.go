package train

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/lcgen/core/model"
	"github.com/YuminosukeSato/lcgen/dataset"
	"github.com/YuminosukeSato/lcgen/pkg/errors"
	"github.com/YuminosukeSato/lcgen/pkg/log"
)

func splitLoaders(t *testing.T, samples int) (trainSub, valSub *dataset.Subset) {
	t.Helper()
	flux, ts := dataset.GenerateSynthetic(samples, 24, dataset.WithSeed(5))
	ds, err := dataset.New(flux, ts)
	require.NoError(t, err)
	trainSub, valSub, err = ds.Split(0.2, 42)
	require.NoError(t, err)
	return trainSub, valSub
}

func TestFitRecordsHistoryAndBest(t *testing.T) {
	trSub, valSub := splitLoaders(t, 12)
	trainLoader := testLoader(t, trSub, 4, true)
	valLoader := testLoader(t, valSub, 4, false)
	m := smallModel(t)
	ctx, err := NewContext(m, NewConfig(WithEpochs(3), WithMaxLR(5e-3)), trainLoader.NumBatches())
	require.NoError(t, err)

	var seen []int
	res, err := Fit(ctx, m, trainLoader, valLoader, func(env *CallbackEnv) error {
		seen = append(seen, env.Record.Epoch)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, seen)
	assert.Equal(t, 3, res.Epochs)
	assert.False(t, res.StoppedEarly)
	require.Len(t, ctx.History, 3)
	assert.True(t, ctx.History[0].Improved, "first epoch always improves")
	assert.Equal(t, ctx.History[0].Val.Loss, ctx.History[0].Score)

	best := ctx.History[0]
	for _, rec := range ctx.History {
		if rec.Score < best.Score {
			best = rec
		}
	}
	assert.Equal(t, best.Epoch, res.BestEpoch)
	assert.Equal(t, best.Score, res.BestLoss)
	assert.Equal(t, 3*trainLoader.NumBatches(), ctx.Scheduler.StepCount())
}

// flakyEvalModel returns NaN from its first badForwards evaluation calls.
// Training goes through offsetModel directly and stays finite.
type flakyEvalModel struct {
	*offsetModel
	badForwards int
}

func (m *flakyEvalModel) Forward(in model.MaskedInput, t *mat.Dense) (model.Output, error) {
	out, err := m.offsetModel.Forward(in, t)
	if m.badForwards > 0 {
		m.badForwards--
		out.Reconstructed.Set(0, 0, math.NaN())
	}
	return out, err
}

func TestRunEpochWithoutFiniteBatchesIsNotBest(t *testing.T) {
	t.Run("validation all skipped", func(t *testing.T) {
		trSub, valSub := splitLoaders(t, 12)
		trainLoader := testLoader(t, trSub, 4, false)
		valLoader := testLoader(t, valSub, 1, false)
		require.Equal(t, 2, valLoader.NumBatches())

		m := &flakyEvalModel{offsetModel: newOffsetModel(0.3), badForwards: 2}
		ctx, err := NewContext(m, NewConfig(WithEpochs(2), WithMaxLR(1e-2)), trainLoader.NumBatches())
		require.NoError(t, err)
		tl, _ := log.NewTestLogger(log.LevelDebug)
		ctx.Logger = tl

		res, err := Fit(ctx, m, trainLoader, valLoader)
		require.NoError(t, err)
		require.Len(t, ctx.History, 2)

		first := ctx.History[0]
		assert.Equal(t, 0, first.Val.Batches)
		assert.Equal(t, 2, first.Val.Skipped)
		assert.False(t, first.Improved)
		assert.True(t, math.IsNaN(first.Score))

		assert.True(t, ctx.History[1].Improved)
		assert.Equal(t, 2, res.BestEpoch)
		assert.Equal(t, ctx.History[1].Val.Loss, res.BestLoss)
		assert.Greater(t, res.BestLoss, 0.0)
		assert.True(t, tl.ContainsField(log.ErrorCodeKey, log.ErrorNumericInstability))
	})

	t.Run("training all skipped without validation", func(t *testing.T) {
		sub := testSubset(t, 4, 16)
		loader := testLoader(t, sub, 2, false)
		m := newOffsetModel(0.3)
		m.nanCalls[1], m.nanCalls[2] = true, true
		ctx, err := NewContext(m, NewConfig(WithEpochs(2), WithMaxLR(1e-2)), loader.NumBatches())
		require.NoError(t, err)

		res, err := Fit(ctx, m, loader, nil)
		require.NoError(t, err)
		require.Len(t, ctx.History, 2)
		assert.Equal(t, 0, ctx.History[0].Train.Batches)
		assert.False(t, ctx.History[0].Improved)
		assert.True(t, ctx.History[1].Improved)
		assert.Equal(t, 2, res.BestEpoch)
	})
}

func TestFitWithoutValidationUsesTrainLoss(t *testing.T) {
	flux, ts := dataset.GenerateSynthetic(6, 16)
	ds, err := dataset.New(flux, ts)
	require.NoError(t, err)
	trainLoader := testLoader(t, ds.All(), 3, false)
	empty, err := ds.Subset(nil)
	require.NoError(t, err)
	valLoader := testLoader(t, empty, 3, false)

	m := smallModel(t)
	ctx, err := NewContext(m, NewConfig(WithEpochs(1)), trainLoader.NumBatches())
	require.NoError(t, err)
	tl, _ := log.NewTestLogger(log.LevelDebug)
	ctx.Logger = tl

	_, err = Fit(ctx, m, trainLoader, valLoader)
	require.NoError(t, err)
	require.Len(t, ctx.History, 1)
	assert.Equal(t, ctx.History[0].Train.Loss, ctx.History[0].Score)
	assert.Equal(t, 0, ctx.History[0].Val.Batches)
	assert.True(t, tl.ContainsMessage("Validation subset is empty; selecting checkpoints on training loss"))
	assert.True(t, tl.ContainsMessage("Epoch finished"))
}

func TestFitStopsOnCallbackError(t *testing.T) {
	sub := testSubset(t, 4, 16)
	loader := testLoader(t, sub, 2, false)
	m := smallModel(t)
	ctx, err := NewContext(m, NewConfig(WithEpochs(5)), loader.NumBatches())
	require.NoError(t, err)

	boom := errors.New("disk full")
	_, err = Fit(ctx, m, loader, nil, func(*CallbackEnv) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, ctx.Epoch)
}

func TestEarlyStopping(t *testing.T) {
	es := NewEarlyStopping(2)
	assert.False(t, es.Update(1, true, 1.0))
	assert.False(t, es.Update(2, false, 1.2))
	assert.False(t, es.Update(3, true, 0.9))
	assert.False(t, es.Update(4, false, 0.95))
	assert.True(t, es.Update(5, false, 0.97))
	assert.True(t, es.ShouldStop())
	assert.Equal(t, 3, es.BestEpoch)

	disabled := NewEarlyStopping(0)
	for i := 1; i < 10; i++ {
		assert.False(t, disabled.Update(i, false, 1))
	}
	assert.False(t, disabled.ShouldStop())
}

func TestFitEarlyStoppingCallback(t *testing.T) {
	sub := testSubset(t, 4, 16)
	loader := testLoader(t, sub, 2, false)
	m := smallModel(t)
	ctx, err := NewContext(m, NewConfig(WithEpochs(10)), loader.NumBatches())
	require.NoError(t, err)

	es := NewEarlyStopping(1)
	stopAt := func(env *CallbackEnv) error {
		// force a plateau after the first epoch
		if env.Record.Epoch > 1 {
			env.Record.Improved = false
		}
		return es.Callback()(env)
	}
	res, err := Fit(ctx, m, loader, nil, stopAt)
	require.NoError(t, err)
	assert.True(t, res.StoppedEarly)
	assert.Equal(t, 2, res.Epochs)
}

func TestFitTimeLimit(t *testing.T) {
	sub := testSubset(t, 4, 16)
	loader := testLoader(t, sub, 2, false)
	m := smallModel(t)
	ctx, err := NewContext(m, NewConfig(WithEpochs(10)), loader.NumBatches())
	require.NoError(t, err)

	res, err := Fit(ctx, m, loader, nil, TimeLimit(0))
	require.NoError(t, err)
	assert.True(t, res.StoppedEarly)
	assert.Equal(t, 1, res.Epochs)
}

// Training two epochs straight and training one, capturing state, rebuilding
// everything and training the second must give identical parameters.
func TestResumeMatchesUninterruptedRun(t *testing.T) {
	trSub, valSub := splitLoaders(t, 10)
	cfg := NewConfig(WithEpochs(2), WithMaxLR(1e-2))

	run := func(stopAfter int) (model.Trainable, *Context) {
		trainLoader := testLoader(t, trSub, 3, true)
		valLoader := testLoader(t, valSub, 3, false)
		m := smallModel(t)
		ctx, err := NewContext(m, cfg, trainLoader.NumBatches())
		require.NoError(t, err)
		_, err = Fit(ctx, m, trainLoader, valLoader, func(env *CallbackEnv) error {
			env.StopTraining = env.Record.Epoch == stopAfter
			return nil
		})
		require.NoError(t, err)
		return m, ctx
	}

	full, fullCtx := run(0)
	half, halfCtx := run(1)
	require.Equal(t, 1, halfCtx.Epoch)

	snap, err := half.Snapshot()
	require.NoError(t, err)
	st, err := halfCtx.State()
	require.NoError(t, err)

	resumed, err := model.FromSnapshot(snap)
	require.NoError(t, err)
	trainLoader := testLoader(t, trSub, 3, true)
	valLoader := testLoader(t, valSub, 3, false)
	ctx, err := NewContext(resumed, cfg, trainLoader.NumBatches())
	require.NoError(t, err)
	require.NoError(t, ctx.LoadState(st))

	_, err = Fit(ctx, resumed, trainLoader, valLoader)
	require.NoError(t, err)

	assert.Equal(t, model.CaptureState(full.Parameters()), model.CaptureState(resumed.Parameters()))
	assert.Equal(t, fullCtx.GlobalStep, ctx.GlobalStep)
	assert.Equal(t, fullCtx.BestLoss, ctx.BestLoss)
	require.Len(t, ctx.History, 2)
	assert.Equal(t, fullCtx.History[1].Val, ctx.History[1].Val)
}
