// Package autoencoder provides the reference reconstruction model, a
// time-aware context network registered as "time-context-mlp".
//
// Each position is reconstructed from a window of its neighbours (masked
// signal, indicator and time gap) and a sinusoidal encoding of its own
// timestamp, passed through a shared tanh MLP with a single linear output.
// Irregular sampling enters through the gaps and the encoding, so the model
// never assumes a uniform cadence.
package autoencoder

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/lcgen/core/model"
	"github.com/YuminosukeSato/lcgen/pkg/errors"
)

// TypeName is the registry name of the model.
const TypeName = "time-context-mlp"

// configVersion is bumped when Config changes incompatibly.
const configVersion = 1

func init() {
	model.Register(TypeName, func(config []byte) (model.Trainable, error) {
		cfg, err := parseConfig(config)
		if err != nil {
			return nil, err
		}
		return New(cfg)
	})
}

type layer struct {
	w *model.Param // in×out
	b *model.Param // 1×out
}

// Model is the time-context MLP. It implements model.Trainable.
type Model struct {
	cfg     Config
	periods []float64
	layers  []layer
}

var _ model.Trainable = (*Model)(nil)

// New builds a model with Xavier-uniform weights drawn from cfg.Seed and
// zero biases.
func New(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.HiddenDims = append([]int(nil), cfg.HiddenDims...)
	m := &Model{cfg: cfg, periods: periods(cfg)}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	dims := append([]int{cfg.NumFeatures()}, cfg.HiddenDims...)
	dims = append(dims, 1)
	for i := 0; i+1 < len(dims); i++ {
		in, out := dims[i], dims[i+1]
		limit := math.Sqrt(6 / float64(in+out))
		w := make([]float64, in*out)
		for k := range w {
			w[k] = (2*rng.Float64() - 1) * limit
		}
		m.layers = append(m.layers, layer{
			w: &model.Param{Name: fmt.Sprintf("layer%d.weight", i), Value: mat.NewDense(in, out, w), Grad: mat.NewDense(in, out, nil)},
			b: &model.Param{Name: fmt.Sprintf("layer%d.bias", i), Value: mat.NewDense(1, out, nil), Grad: mat.NewDense(1, out, nil)},
		})
	}
	return m, nil
}

// Config returns a copy of the construction config.
func (m *Model) Config() Config {
	c := m.cfg
	c.HiddenDims = append([]int(nil), c.HiddenDims...)
	return c
}

// Parameters returns weights and biases layer by layer.
func (m *Model) Parameters() []*model.Param {
	ps := make([]*model.Param, 0, 2*len(m.layers))
	for _, ly := range m.layers {
		ps = append(ps, ly.w, ly.b)
	}
	return ps
}

func (m *Model) ZeroGrad() { model.ZeroGrads(m.Parameters()) }

// Forward reconstructs the full sequence for every sample.
func (m *Model) Forward(in model.MaskedInput, t *mat.Dense) (model.Output, error) {
	tp, err := m.forward(in, t)
	if err != nil {
		return model.Output{}, err
	}
	return model.Output{Reconstructed: tp.recon}, nil
}

// ForwardTrain is Forward plus the activations needed by Backward.
func (m *Model) ForwardTrain(in model.MaskedInput, t *mat.Dense) (model.Output, model.Tape, error) {
	tp, err := m.forward(in, t)
	if err != nil {
		return model.Output{}, nil, err
	}
	return model.Output{Reconstructed: tp.recon}, tp, nil
}

func (m *Model) forward(in model.MaskedInput, t *mat.Dense) (*tape, error) {
	if in.Signal == nil || in.Indicator == nil || t == nil {
		return nil, errors.NewValueError("autoencoder.Forward", "signal, indicator and time are required")
	}
	n, l := in.Dims()
	if n == 0 || l == 0 {
		return nil, errors.NewValueError("autoencoder.Forward", "empty batch")
	}
	if r, c := in.Indicator.Dims(); r != n || c != l {
		return nil, errors.NewShapeMismatchError("autoencoder.Forward", "signal", []int{n, l}, "indicator", []int{r, c})
	}
	if r, c := t.Dims(); r != n || c != l {
		return nil, errors.NewShapeMismatchError("autoencoder.Forward", "signal", []int{n, l}, "time", []int{r, c})
	}

	acts := make([]*mat.Dense, 0, len(m.layers)+1)
	a := m.features(in, t)
	acts = append(acts, a)
	for i, ly := range m.layers {
		last := i == len(m.layers)-1
		bias := ly.b.Value.RawRowView(0)
		z := &mat.Dense{}
		z.Mul(a, ly.w.Value)
		z.Apply(func(_, j int, v float64) float64 {
			v += bias[j]
			if last {
				return v
			}
			return math.Tanh(v)
		}, z)
		acts = append(acts, z)
		a = z
	}

	out := mat.Col(nil, 0, a)
	return &tape{m: m, n: n, l: l, acts: acts, recon: mat.NewDense(n, l, out)}, nil
}

type tape struct {
	m     *Model
	n, l  int
	acts  []*mat.Dense // acts[0] is the design matrix, acts[i+1] the output of layer i
	recon *mat.Dense
}

// Backward accumulates parameter gradients for dRecon = ∂loss/∂recon.
func (tp *tape) Backward(dRecon *mat.Dense) error {
	if r, c := dRecon.Dims(); r != tp.n || c != tp.l {
		return errors.NewShapeMismatchError("autoencoder.Backward", "reconstruction", []int{tp.n, tp.l}, "gradient", []int{r, c})
	}
	flat := make([]float64, 0, tp.n*tp.l)
	for i := 0; i < tp.n; i++ {
		flat = append(flat, dRecon.RawRowView(i)...)
	}
	delta := mat.NewDense(tp.n*tp.l, 1, flat)

	layers := tp.m.layers
	for i := len(layers) - 1; i >= 0; i-- {
		ly := layers[i]
		input := tp.acts[i]

		var dW mat.Dense
		dW.Mul(input.T(), delta)
		ly.w.Grad.Add(ly.w.Grad, &dW)

		bg := ly.b.Grad.RawRowView(0)
		_, cols := delta.Dims()
		col := make([]float64, tp.n*tp.l)
		for j := 0; j < cols; j++ {
			bg[j] += floats.Sum(mat.Col(col, j, delta))
		}

		if i == 0 {
			break
		}
		dA := &mat.Dense{}
		dA.Mul(delta, ly.w.Value.T())
		dA.Apply(func(r, c int, v float64) float64 {
			a := input.At(r, c)
			return v * (1 - a*a)
		}, dA)
		delta = dA
	}
	return nil
}

// Snapshot captures config and parameters.
func (m *Model) Snapshot() (model.Snapshot, error) {
	raw, err := json.Marshal(m.cfg)
	if err != nil {
		return model.Snapshot{}, errors.Wrap(err, "encode time-context-mlp config")
	}
	return model.Snapshot{
		Type:    TypeName,
		Version: configVersion,
		Config:  raw,
		Params:  model.CaptureState(m.Parameters()),
	}, nil
}

// Restore loads parameters from s. The snapshot must come from a model
// with the same type, version and config.
func (m *Model) Restore(s model.Snapshot) error {
	if s.Type != TypeName {
		return errors.NewValueError("autoencoder.Restore", "snapshot is for model type "+s.Type)
	}
	if s.Version != configVersion {
		return errors.NewValidationError("version", "unsupported snapshot version", s.Version)
	}
	cfg, err := parseConfig(s.Config)
	if err != nil {
		return err
	}
	if !cfg.equal(m.cfg) {
		return errors.NewValueError("autoencoder.Restore", "snapshot config does not match the model")
	}
	return model.RestoreState(m.Parameters(), s.Params)
}
