// Package optim implements the optimizer, learning-rate schedule and
// gradient clipping used for training, following the PyTorch definitions
// of AdamW, OneCycleLR and clip_grad_norm_.
package optim

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/lcgen/core/model"
	"github.com/YuminosukeSato/lcgen/pkg/errors"
)

// AdamW is Adam with decoupled weight decay.
//
// Update rule per parameter p with gradient g at step t:
//
//	p     *= 1 - lr*wd
//	m      = beta1*m + (1-beta1)*g
//	v      = beta2*v + (1-beta2)*g²
//	p     -= lr/(1-beta1^t) * m / (sqrt(v)/sqrt(1-beta2^t) + eps)
type AdamW struct {
	params      []*model.Param
	lr          float64
	beta1       float64
	beta2       float64
	eps         float64
	weightDecay float64

	step int
	m    []*mat.Dense
	v    []*mat.Dense
}

// AdamWOption configures an AdamW optimizer.
type AdamWOption func(*AdamW)

// WithLR sets the learning rate (default 1e-3).
func WithLR(lr float64) AdamWOption {
	return func(o *AdamW) { o.lr = lr }
}

// WithBetas sets beta1 and beta2 (default 0.9, 0.999).
func WithBetas(beta1, beta2 float64) AdamWOption {
	return func(o *AdamW) { o.beta1, o.beta2 = beta1, beta2 }
}

// WithEps sets the denominator epsilon (default 1e-8).
func WithEps(eps float64) AdamWOption {
	return func(o *AdamW) { o.eps = eps }
}

// WithWeightDecay sets the decoupled weight decay (default 0.01).
func WithWeightDecay(wd float64) AdamWOption {
	return func(o *AdamW) { o.weightDecay = wd }
}

// NewAdamW creates an optimizer over params. The moment buffers follow the
// order of params.
func NewAdamW(params []*model.Param, opts ...AdamWOption) *AdamW {
	o := &AdamW{
		params:      params,
		lr:          1e-3,
		beta1:       0.9,
		beta2:       0.999,
		eps:         1e-8,
		weightDecay: 0.01,
		m:           make([]*mat.Dense, len(params)),
		v:           make([]*mat.Dense, len(params)),
	}
	for _, opt := range opts {
		opt(o)
	}
	for i, p := range params {
		r, c := p.Value.Dims()
		o.m[i] = mat.NewDense(r, c, nil)
		o.v[i] = mat.NewDense(r, c, nil)
	}
	return o
}

func (o *AdamW) LR() float64            { return o.lr }
func (o *AdamW) SetLR(lr float64)       { o.lr = lr }
func (o *AdamW) Beta1() float64         { return o.beta1 }
func (o *AdamW) SetBeta1(beta1 float64) { o.beta1 = beta1 }

// Steps returns the number of updates applied.
func (o *AdamW) Steps() int { return o.step }

// Step applies one update using the gradients currently in the parameters.
func (o *AdamW) Step() {
	o.step++
	t := float64(o.step)
	bc1 := 1 - math.Pow(o.beta1, t)
	bc2Sqrt := math.Sqrt(1 - math.Pow(o.beta2, t))
	stepSize := o.lr / bc1
	decay := 1 - o.lr*o.weightDecay

	for i, p := range o.params {
		r, c := p.Value.Dims()
		for a := 0; a < r; a++ {
			val := p.Value.RawRowView(a)
			grad := p.Grad.RawRowView(a)
			m := o.m[i].RawRowView(a)
			v := o.v[i].RawRowView(a)
			for b := 0; b < c; b++ {
				g := grad[b]
				val[b] *= decay
				m[b] = o.beta1*m[b] + (1-o.beta1)*g
				v[b] = o.beta2*v[b] + (1-o.beta2)*g*g
				denom := math.Sqrt(v[b])/bc2Sqrt + o.eps
				val[b] -= stepSize * m[b] / denom
			}
		}
	}
}

// AdamWState is the serializable optimizer state.
type AdamWState struct {
	Step        int
	LR          float64
	Beta1       float64
	Beta2       float64
	Eps         float64
	WeightDecay float64
	M           []model.Tensor
	V           []model.Tensor
}

// State returns a copy of the optimizer state.
func (o *AdamW) State() AdamWState {
	st := AdamWState{
		Step:        o.step,
		LR:          o.lr,
		Beta1:       o.beta1,
		Beta2:       o.beta2,
		Eps:         o.eps,
		WeightDecay: o.weightDecay,
		M:           make([]model.Tensor, len(o.m)),
		V:           make([]model.Tensor, len(o.v)),
	}
	for i := range o.m {
		st.M[i] = model.TensorFromDense(o.m[i])
		st.V[i] = model.TensorFromDense(o.v[i])
	}
	return st
}

// LoadState restores a state produced by State for the same parameter list.
func (o *AdamW) LoadState(st AdamWState) error {
	if len(st.M) != len(o.params) || len(st.V) != len(o.params) {
		return errors.NewDimensionError("AdamW.LoadState", len(o.params), len(st.M), 0)
	}
	for i, p := range o.params {
		r, c := p.Value.Dims()
		for _, t := range []model.Tensor{st.M[i], st.V[i]} {
			if t.Rows != r || t.Cols != c || len(t.Data) != r*c {
				return errors.NewShapeMismatchError("AdamW.LoadState", p.Name, []int{r, c}, "state", []int{t.Rows, t.Cols})
			}
		}
	}
	o.step = st.Step
	o.lr, o.beta1, o.beta2, o.eps, o.weightDecay = st.LR, st.Beta1, st.Beta2, st.Eps, st.WeightDecay
	for i := range o.params {
		o.m[i] = st.M[i].Dense()
		o.v[i] = st.V[i].Dense()
	}
	return nil
}
