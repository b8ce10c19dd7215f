// Package train runs the masked-reconstruction training and validation
// loops over a model.Trainable.
//
// All run state (epoch and step counters, best loss, the anomaly counter,
// the random stream, optimizer and schedule) lives in an explicit Context
// that can be captured and restored for exact resumption.
package train

import (
	"math"
	"math/rand/v2"

	"github.com/YuminosukeSato/lcgen/core/model"
	"github.com/YuminosukeSato/lcgen/optim"
	"github.com/YuminosukeSato/lcgen/pkg/errors"
	"github.com/YuminosukeSato/lcgen/pkg/log"
)

// validationStream separates the validation mask stream from the training
// stream drawn from the same seed.
const validationStream = 0x9e3779b97f4a7c15

// Context is the mutable state of one training run. It is passed
// explicitly to the epoch loops; nothing in the package keeps globals.
type Context struct {
	Config Config

	// Epoch counts completed epochs.
	Epoch int
	// GlobalStep counts batches seen, including skipped ones.
	GlobalStep int
	BestLoss   float64
	BestEpoch  int
	// ConsecutiveAnomalies is reset by every finite batch.
	ConsecutiveAnomalies int

	Optimizer *optim.AdamW
	Scheduler *optim.OneCycle
	History   []EpochRecord

	Logger log.Logger

	src *rand.PCG
	rng *rand.Rand
}

// NewContext wires an AdamW optimizer over m's parameters and a one-cycle
// schedule spanning Epochs × stepsPerEpoch batches.
func NewContext(m model.Trainable, cfg Config, stepsPerEpoch int) (*Context, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if stepsPerEpoch < 1 {
		return nil, errors.NewEmptyDatasetError("train.NewContext", "no training batches per epoch")
	}
	opt := optim.NewAdamW(m.Parameters(),
		optim.WithLR(cfg.MaxLR),
		optim.WithWeightDecay(cfg.WeightDecay),
	)
	sched, err := optim.NewOneCycle(opt, cfg.MaxLR, cfg.Epochs*stepsPerEpoch,
		optim.WithPctStart(cfg.PctStart),
	)
	if err != nil {
		return nil, err
	}
	src := rand.NewPCG(cfg.Seed, cfg.Seed)
	return &Context{
		Config:    cfg,
		BestLoss:  math.Inf(1),
		Optimizer: opt,
		Scheduler: sched,
		Logger:    log.GetLoggerWithName("train"),
		src:       src,
		rng:       rand.New(src),
	}, nil
}

// Rand returns the training random stream (shuffling and masks).
func (c *Context) Rand() *rand.Rand { return c.rng }

// validationRand returns a fresh stream that is identical on every call,
// so validation masks do not change between epochs.
func (c *Context) validationRand() *rand.Rand {
	return rand.New(rand.NewPCG(c.Config.Seed, c.Config.Seed^validationStream))
}

// State is everything besides the model parameters needed to continue a
// run exactly where it stopped.
type State struct {
	Epoch                int
	GlobalStep           int
	BestLoss             float64
	BestEpoch            int
	ConsecutiveAnomalies int
	RNG                  []byte
	Optimizer            optim.AdamWState
	Scheduler            optim.OneCycleState
	History              []EpochRecord
}

// State captures the run state.
func (c *Context) State() (State, error) {
	rngState, err := c.src.MarshalBinary()
	if err != nil {
		return State{}, errors.Wrap(err, "marshal training rng")
	}
	return State{
		Epoch:                c.Epoch,
		GlobalStep:           c.GlobalStep,
		BestLoss:             c.BestLoss,
		BestEpoch:            c.BestEpoch,
		ConsecutiveAnomalies: c.ConsecutiveAnomalies,
		RNG:                  rngState,
		Optimizer:            c.Optimizer.State(),
		Scheduler:            c.Scheduler.State(),
		History:              append([]EpochRecord(nil), c.History...),
	}, nil
}

// LoadState restores a State captured from a context over the same model
// shape. The schedule keeps its saved total step count.
func (c *Context) LoadState(st State) error {
	if err := c.src.UnmarshalBinary(st.RNG); err != nil {
		return errors.Wrap(err, "unmarshal training rng")
	}
	if err := c.Optimizer.LoadState(st.Optimizer); err != nil {
		return err
	}
	sched, err := optim.RestoreOneCycle(c.Optimizer, st.Scheduler)
	if err != nil {
		return err
	}
	c.Scheduler = sched
	c.Epoch = st.Epoch
	c.GlobalStep = st.GlobalStep
	c.BestLoss = st.BestLoss
	c.BestEpoch = st.BestEpoch
	c.ConsecutiveAnomalies = st.ConsecutiveAnomalies
	c.History = append([]EpochRecord(nil), st.History...)
	return nil
}
