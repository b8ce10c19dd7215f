package optim

import (
	"math"

	"github.com/YuminosukeSato/lcgen/pkg/errors"
)

// Schedulable is an optimizer whose learning rate and first-moment
// coefficient a schedule can drive.
type Schedulable interface {
	SetLR(lr float64)
	SetBeta1(beta1 float64)
}

// OneCycleConfig holds the OneCycleLR hyperparameters.
type OneCycleConfig struct {
	MaxLR          float64
	TotalSteps     int
	PctStart       float64
	DivFactor      float64
	FinalDivFactor float64
	CycleMomentum  bool
	BaseMomentum   float64
	MaxMomentum    float64
}

// OneCycleOption configures a OneCycle schedule.
type OneCycleOption func(*OneCycleConfig)

// WithPctStart sets the fraction of steps spent increasing the rate (default 0.1).
func WithPctStart(p float64) OneCycleOption {
	return func(c *OneCycleConfig) { c.PctStart = p }
}

// WithDivFactors sets initial = max/div and min = initial/finalDiv (defaults 100, 100).
func WithDivFactors(div, finalDiv float64) OneCycleOption {
	return func(c *OneCycleConfig) { c.DivFactor, c.FinalDivFactor = div, finalDiv }
}

// WithMomentum sets the beta1 cycle range, or disables cycling when cycle is false.
func WithMomentum(cycle bool, base, max float64) OneCycleOption {
	return func(c *OneCycleConfig) { c.CycleMomentum, c.BaseMomentum, c.MaxMomentum = cycle, base, max }
}

// OneCycle is PyTorch's OneCycleLR with cosine annealing and two phases:
// the rate rises from MaxLR/DivFactor to MaxLR over the first PctStart of
// the steps, then anneals to MaxLR/(DivFactor*FinalDivFactor) at the last
// step. beta1 moves in the opposite direction between MaxMomentum and
// BaseMomentum.
type OneCycle struct {
	cfg    OneCycleConfig
	opt    Schedulable
	step   int
	lr     float64
	beta1  float64
	phases [2]phase
}

type phase struct {
	endStep                    float64
	startLR, endLR             float64
	startMomentum, endMomentum float64
}

// NewOneCycle creates a schedule and applies its step-0 values to opt.
func NewOneCycle(opt Schedulable, maxLR float64, totalSteps int, opts ...OneCycleOption) (*OneCycle, error) {
	cfg := OneCycleConfig{
		MaxLR:          maxLR,
		TotalSteps:     totalSteps,
		PctStart:       0.1,
		DivFactor:      100,
		FinalDivFactor: 100,
		CycleMomentum:  true,
		BaseMomentum:   0.85,
		MaxMomentum:    0.95,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return NewOneCycleFromConfig(opt, cfg)
}

// NewOneCycleFromConfig creates a schedule from an explicit configuration.
func NewOneCycleFromConfig(opt Schedulable, cfg OneCycleConfig) (*OneCycle, error) {
	switch {
	case cfg.TotalSteps < 1:
		return nil, errors.NewValidationError("total_steps", "must be >= 1", cfg.TotalSteps)
	case !(cfg.MaxLR > 0):
		return nil, errors.NewValidationError("max_lr", "must be > 0", cfg.MaxLR)
	case cfg.PctStart < 0 || cfg.PctStart > 1:
		return nil, errors.NewValidationError("pct_start", "must be in [0, 1]", cfg.PctStart)
	case !(cfg.DivFactor > 0) || !(cfg.FinalDivFactor > 0):
		return nil, errors.NewValidationError("div_factor", "must be > 0", cfg.DivFactor)
	}
	initial := cfg.MaxLR / cfg.DivFactor
	minLR := initial / cfg.FinalDivFactor
	s := &OneCycle{
		cfg: cfg,
		opt: opt,
		phases: [2]phase{
			{
				endStep:       cfg.PctStart*float64(cfg.TotalSteps) - 1,
				startLR:       initial,
				endLR:         cfg.MaxLR,
				startMomentum: cfg.MaxMomentum,
				endMomentum:   cfg.BaseMomentum,
			},
			{
				endStep:       float64(cfg.TotalSteps) - 1,
				startLR:       cfg.MaxLR,
				endLR:         minLR,
				startMomentum: cfg.BaseMomentum,
				endMomentum:   cfg.MaxMomentum,
			},
		},
	}
	s.apply()
	return s, nil
}

// Step advances the schedule by one batch and updates the optimizer.
// Steps past TotalSteps-1 hold the final values.
func (s *OneCycle) Step() {
	s.step++
	s.apply()
}

// LR returns the current learning rate.
func (s *OneCycle) LR() float64 { return s.lr }

// Beta1 returns the current first-moment coefficient.
func (s *OneCycle) Beta1() float64 { return s.beta1 }

// StepCount returns the number of Step calls so far.
func (s *OneCycle) StepCount() int { return s.step }

// Config returns the schedule configuration.
func (s *OneCycle) Config() OneCycleConfig { return s.cfg }

func (s *OneCycle) apply() {
	s.lr, s.beta1 = s.at(s.step)
	if s.opt == nil {
		return
	}
	s.opt.SetLR(s.lr)
	if s.cfg.CycleMomentum {
		s.opt.SetBeta1(s.beta1)
	}
}

// at returns the rate and momentum for a step index.
func (s *OneCycle) at(step int) (lr, beta1 float64) {
	x := float64(min(step, s.cfg.TotalSteps-1))
	start := 0.0
	for i, ph := range s.phases {
		if x <= ph.endStep || i == len(s.phases)-1 {
			pct := 1.0
			if denom := ph.endStep - start; denom > 0 {
				pct = (x - start) / denom
			}
			return cosineAnneal(ph.startLR, ph.endLR, pct), cosineAnneal(ph.startMomentum, ph.endMomentum, pct)
		}
		start = ph.endStep
	}
	return s.phases[1].endLR, s.phases[1].endMomentum
}

func cosineAnneal(start, end, pct float64) float64 {
	return end + (start-end)/2*(math.Cos(math.Pi*pct)+1)
}

// OneCycleState is the serializable schedule state.
type OneCycleState struct {
	Config OneCycleConfig
	Step   int
}

// State returns the schedule state.
func (s *OneCycle) State() OneCycleState {
	return OneCycleState{Config: s.cfg, Step: s.step}
}

// RestoreOneCycle rebuilds a schedule from its state and applies the
// current values to opt.
func RestoreOneCycle(opt Schedulable, st OneCycleState) (*OneCycle, error) {
	s, err := NewOneCycleFromConfig(opt, st.Config)
	if err != nil {
		return nil, err
	}
	s.step = st.Step
	s.apply()
	return s, nil
}
