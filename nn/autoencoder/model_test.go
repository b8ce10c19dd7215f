package autoencoder

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/lcgen/core/model"
)

func smallConfig() Config {
	return Config{
		HiddenDims:    []int{5, 3},
		ContextRadius: 1,
		NumPeriods:    2,
		MinPeriod:     0.5,
		MaxPeriod:     10,
		Seed:          7,
	}
}

func randomInput(n, l int, seed uint64) (model.MaskedInput, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	sig := mat.NewDense(n, l, nil)
	ind := mat.NewDense(n, l, nil)
	ts := mat.NewDense(n, l, nil)
	for i := 0; i < n; i++ {
		t := 0.0
		for j := 0; j < l; j++ {
			t += 0.1 + rng.Float64()
			ts.Set(i, j, t)
			if rng.Float64() < 0.3 {
				ind.Set(i, j, 1)
				continue
			}
			sig.Set(i, j, rng.NormFloat64())
		}
	}
	return model.MaskedInput{Signal: sig, Indicator: ind}, ts
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "no periods skips range check", mutate: func(c *Config) { c.NumPeriods, c.MinPeriod = 0, 0 }},
		{name: "no hidden layers", mutate: func(c *Config) { c.HiddenDims = nil }, wantErr: true},
		{name: "zero width", mutate: func(c *Config) { c.HiddenDims = []int{4, 0} }, wantErr: true},
		{name: "negative radius", mutate: func(c *Config) { c.ContextRadius = -1 }, wantErr: true},
		{name: "zero min period", mutate: func(c *Config) { c.MinPeriod = 0 }, wantErr: true},
		{name: "inverted periods", mutate: func(c *Config) { c.MaxPeriod = c.MinPeriod / 2 }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFeaturesLayout(t *testing.T) {
	m, err := New(smallConfig())
	require.NoError(t, err)

	in := model.MaskedInput{
		Signal:    mat.NewDense(1, 3, []float64{0.5, 0, -1}),
		Indicator: mat.NewDense(1, 3, []float64{0, 1, 0}),
	}
	ts := mat.NewDense(1, 3, []float64{1, 2, 4})
	x := m.features(in, ts)

	r, c := x.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, smallConfig().NumFeatures(), c)

	// position 0: left neighbour is outside the sequence
	row := x.RawRowView(0)
	assert.Equal(t, []float64{0, 1, 0}, row[0:3])
	assert.Equal(t, []float64{0.5, 0, 0}, row[3:6])
	assert.Equal(t, []float64{0, 1, math.Log1p(1)}, row[6:9])

	// position 2 looks back two days to the masked neighbour
	row = x.RawRowView(2)
	assert.Equal(t, 1.0, row[1])
	assert.InDelta(t, -math.Log1p(2), row[2], 1e-15)
	assert.Equal(t, []float64{0, 1, 0}, row[6:9])

	enc := x.RawRowView(1)[9:]
	assert.InDelta(t, math.Sin(2*math.Pi*2/0.5), enc[0], 1e-12)
	assert.InDelta(t, math.Cos(2*math.Pi*2/10), enc[3], 1e-12)
}

func TestForwardShapeErrors(t *testing.T) {
	m, err := New(smallConfig())
	require.NoError(t, err)
	in, ts := randomInput(2, 6, 1)

	_, err = m.Forward(in, mat.NewDense(2, 5, nil))
	assert.Error(t, err)

	bad := model.MaskedInput{Signal: in.Signal, Indicator: mat.NewDense(1, 6, nil)}
	_, err = m.Forward(bad, ts)
	assert.Error(t, err)

	_, err = m.Forward(model.MaskedInput{}, ts)
	assert.Error(t, err)
}

func TestForwardDeterministicAcrossWorkers(t *testing.T) {
	m, err := New(smallConfig())
	require.NoError(t, err)
	// more rows than the parallel threshold
	in, ts := randomInput(40, 12, 3)

	a, err := m.Forward(in, ts)
	require.NoError(t, err)
	b, err := m.Forward(in, ts)
	require.NoError(t, err)

	r, c := a.Reconstructed.Dims()
	assert.Equal(t, 40, r)
	assert.Equal(t, 12, c)
	assert.True(t, mat.Equal(a.Reconstructed, b.Reconstructed))
}

// Backward must agree with central differences of loss = Σ G ⊙ recon.
func TestBackwardMatchesFiniteDifferences(t *testing.T) {
	m, err := New(smallConfig())
	require.NoError(t, err)
	in, ts := randomInput(2, 5, 11)

	rng := rand.New(rand.NewPCG(5, 5))
	g := mat.NewDense(2, 5, nil)
	g.Apply(func(_, _ int, _ float64) float64 { return rng.NormFloat64() }, g)

	loss := func() float64 {
		out, err := m.Forward(in, ts)
		require.NoError(t, err)
		var prod mat.Dense
		prod.MulElem(g, out.Reconstructed)
		return mat.Sum(&prod)
	}

	m.ZeroGrad()
	_, tp, err := m.ForwardTrain(in, ts)
	require.NoError(t, err)
	require.NoError(t, tp.Backward(g))

	const h = 1e-6
	for _, p := range m.Parameters() {
		rows, cols := p.Value.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				orig := p.Value.At(i, j)
				p.Value.Set(i, j, orig+h)
				up := loss()
				p.Value.Set(i, j, orig-h)
				down := loss()
				p.Value.Set(i, j, orig)

				numeric := (up - down) / (2 * h)
				assert.InDelta(t, numeric, p.Grad.At(i, j), 1e-5, "%s[%d,%d]", p.Name, i, j)
			}
		}
	}
}

func TestBackwardAccumulates(t *testing.T) {
	m, err := New(smallConfig())
	require.NoError(t, err)
	in, ts := randomInput(2, 4, 2)
	g := mat.NewDense(2, 4, []float64{1, 1, 1, 1, 1, 1, 1, 1})

	m.ZeroGrad()
	_, tp, err := m.ForwardTrain(in, ts)
	require.NoError(t, err)
	require.NoError(t, tp.Backward(g))
	once := model.TensorFromDense(m.Parameters()[0].Grad)
	require.NoError(t, tp.Backward(g))
	twice := m.Parameters()[0].Grad

	for k, v := range once.Data {
		assert.InDelta(t, 2*v, twice.RawMatrix().Data[k], 1e-12)
	}

	assert.Error(t, tp.Backward(mat.NewDense(1, 4, nil)))
	m.ZeroGrad()
	assert.Equal(t, 0.0, mat.Sum(m.Parameters()[0].Grad))
}

func TestSnapshotRoundTripBitIdentical(t *testing.T) {
	cfg := smallConfig()
	m, err := New(cfg)
	require.NoError(t, err)
	// move the weights away from their initial values
	for _, p := range m.Parameters() {
		p.Value.Apply(func(i, j int, v float64) float64 { return v + 0.01*float64(i-j) }, p.Value)
	}

	snap, err := m.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, TypeName, snap.Type)

	restored, err := model.FromSnapshot(snap)
	require.NoError(t, err)

	in, ts := randomInput(3, 8, 9)
	want, err := m.Forward(in, ts)
	require.NoError(t, err)
	got, err := restored.Forward(in, ts)
	require.NoError(t, err)
	assert.Equal(t, want.Reconstructed.RawMatrix().Data, got.Reconstructed.RawMatrix().Data)
}

func TestRestoreRejectsOtherConfig(t *testing.T) {
	m, err := New(smallConfig())
	require.NoError(t, err)
	snap, err := m.Snapshot()
	require.NoError(t, err)

	other := smallConfig()
	other.HiddenDims = []int{5, 4}
	o, err := New(other)
	require.NoError(t, err)
	assert.Error(t, o.Restore(snap))

	snap.Version = 99
	assert.Error(t, m.Restore(snap))
}

func TestParameterCount(t *testing.T) {
	m, err := New(DefaultConfig())
	require.NoError(t, err)
	f := DefaultConfig().NumFeatures()
	want := f*64 + 64 + 64*128 + 128 + 128*1 + 1
	assert.Equal(t, want, model.CountParams(m.Parameters()))
	assert.Len(t, m.Parameters(), 6)
}
