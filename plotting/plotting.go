// Package plotting renders diagnostic PNGs during training: masked
// reconstructions of a fixed validation batch and the loss curves.
//
// Plots are side outputs. Callback never fails a run; render errors and
// panics inside the renderer are logged and dropped.
package plotting

import (
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/YuminosukeSato/lcgen/batching"
	"github.com/YuminosukeSato/lcgen/masking"
	"github.com/YuminosukeSato/lcgen/pkg/errors"
	"github.com/YuminosukeSato/lcgen/train"
)

// DefaultPanels is the number of samples drawn per reconstruction figure.
const DefaultPanels = 4

var (
	observedColor = color.RGBA{R: 90, G: 90, B: 90, A: 255}
	reconColor    = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	maskFill      = color.RGBA{R: 31, G: 119, B: 180, A: 50}
	valColor      = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	trainColor    = color.RGBA{R: 31, G: 119, B: 180, A: 255}
)

// Reconstruction writes a PNG with one panel per sample (up to panels):
// the observed flux, shaded masked blocks and the model reconstruction.
func Reconstruction(path string, b *batching.Batch, recon *mat.Dense, epoch, panels int) error {
	if b == nil || recon == nil {
		return errors.NewValueError("plotting.Reconstruction", "batch and reconstruction are required")
	}
	n, l := recon.Dims()
	if bn, bl := b.Target.Dims(); bn != n || bl != l {
		return errors.NewShapeMismatchError("plotting.Reconstruction", "target", []int{bn, bl}, "reconstruction", []int{n, l})
	}
	if panels < 1 || panels > n {
		panels = n
	}

	rows := make([][]*plot.Plot, panels)
	for i := 0; i < panels; i++ {
		p, err := samplePanel(b, recon, i)
		if err != nil {
			return err
		}
		p.Title.Text = "epoch " + strconv.Itoa(epoch) + ", sample " + strconv.Itoa(b.Indices[i])
		rows[i] = []*plot.Plot{p}
	}

	const width = 8 * vg.Inch
	height := vg.Length(panels) * 2.2 * vg.Inch
	img := vgimg.New(width, height)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: panels, Cols: 1, PadX: vg.Millimeter, PadY: 2 * vg.Millimeter, PadTop: vg.Millimeter, PadBottom: vg.Millimeter}
	canvases := plot.Align(rows, tiles, dc)
	for i := range rows {
		rows[i][0].Draw(canvases[i][0])
	}

	return writePNG(path, img)
}

func samplePanel(b *batching.Batch, recon *mat.Dense, i int) (*plot.Plot, error) {
	_, l := recon.Dims()
	t := b.Time.RawRowView(i)
	target := b.Target.RawRowView(i)
	rec := recon.RawRowView(i)

	obs := make(plotter.XYs, l)
	out := make(plotter.XYs, l)
	for j := 0; j < l; j++ {
		obs[j] = plotter.XY{X: t[j], Y: target[j]}
		out[j] = plotter.XY{X: t[j], Y: rec[j]}
	}
	lo := math.Min(floats.Min(target), floats.Min(rec))
	hi := math.Max(floats.Max(target), floats.Max(rec))

	p := plot.New()
	p.X.Label.Text = "time"
	p.Y.Label.Text = "flux"
	p.Add(plotter.NewGrid())

	for _, run := range masking.Runs(b.Mask[i]) {
		x0, x1 := t[run[0]], t[run[1]-1]
		shade, err := plotter.NewPolygon(plotter.XYs{{X: x0, Y: lo}, {X: x1, Y: lo}, {X: x1, Y: hi}, {X: x0, Y: hi}})
		if err != nil {
			return nil, errors.Wrap(err, "mask region")
		}
		shade.Color = maskFill
		shade.LineStyle.Width = 0
		p.Add(shade)
	}

	sc, err := plotter.NewScatter(obs)
	if err != nil {
		return nil, errors.Wrap(err, "observed flux")
	}
	sc.GlyphStyle.Color = observedColor
	sc.GlyphStyle.Radius = vg.Points(1.2)

	line, err := plotter.NewLine(out)
	if err != nil {
		return nil, errors.Wrap(err, "reconstruction")
	}
	line.LineStyle.Color = reconColor
	line.LineStyle.Width = vg.Points(1)

	p.Add(sc, line)
	p.Legend.Add("observed", sc)
	p.Legend.Add("reconstruction", line)
	p.Legend.Top = true
	return p, nil
}

// TrainingCurve writes the per-epoch losses: total, masked and unmasked for
// training (solid) and validation (dashed).
func TrainingCurve(path string, history []train.EpochRecord) error {
	if len(history) == 0 {
		return errors.NewEmptyDatasetError("plotting.TrainingCurve", "no epochs recorded")
	}
	series := []struct {
		name  string
		pick  func(train.EpochRecord) float64
		color color.Color
		dash  bool
		width float64
	}{
		{"train loss", func(r train.EpochRecord) float64 { return r.Train.Loss }, trainColor, false, 2},
		{"train masked", func(r train.EpochRecord) float64 { return r.Train.MaskedLoss }, trainColor, false, 0.8},
		{"train unmasked", func(r train.EpochRecord) float64 { return r.Train.UnmaskedLoss }, trainColor, true, 0.8},
		{"val loss", func(r train.EpochRecord) float64 { return r.Val.Loss }, valColor, false, 2},
		{"val masked", func(r train.EpochRecord) float64 { return r.Val.MaskedLoss }, valColor, false, 0.8},
		{"val unmasked", func(r train.EpochRecord) float64 { return r.Val.UnmaskedLoss }, valColor, true, 0.8},
	}

	p := plot.New()
	p.Title.Text = "Training history"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "MSE"
	p.Add(plotter.NewGrid())
	for _, s := range series {
		xys := make(plotter.XYs, len(history))
		for i, rec := range history {
			xys[i] = plotter.XY{X: float64(rec.Epoch), Y: s.pick(rec)}
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return errors.Wrapf(err, "series %s", s.name)
		}
		line.LineStyle.Color = s.color
		line.LineStyle.Width = vg.Points(s.width)
		if s.dash {
			line.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		}
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	p.Legend.Top = true

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save %s", path)
	}
	return nil
}

func writePNG(path string, img *vgimg.Canvas) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if _, err := (vgimg.PngCanvas{Canvas: img}).WriteTo(f); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "encode %s", path)
	}
	return f.Close()
}

// ReconstructionPath returns <dir>/<prefix>_recon_epoch<N>.png.
func ReconstructionPath(dir, prefix string, epoch int) string {
	return filepath.Join(dir, prefix+"_recon_epoch"+strconv.Itoa(epoch)+".png")
}

// CurvePath returns <dir>/<prefix>_training_curve.png.
func CurvePath(dir, prefix string) string {
	return filepath.Join(dir, prefix+"_training_curve.png")
}
