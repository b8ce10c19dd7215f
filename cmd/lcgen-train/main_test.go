package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/lcgen/checkpoint"
	"github.com/YuminosukeSato/lcgen/dataset"
	"github.com/YuminosukeSato/lcgen/history"
	"github.com/YuminosukeSato/lcgen/pkg/errors"
	"github.com/YuminosukeSato/lcgen/pkg/log"
	"github.com/YuminosukeSato/lcgen/plotting"
	"github.com/YuminosukeSato/lcgen/train"
)

func writeCurves(t *testing.T) string {
	t.Helper()
	flux, tm := dataset.GenerateSynthetic(12, 32, dataset.WithSeed(3))
	path := filepath.Join(t.TempDir(), "curves.json")
	require.NoError(t, dataset.WriteJSON(path, flux, tm))
	return path
}

func smallArgs(input, out string, extra ...string) []string {
	return append([]string{
		"--input", input,
		"--output-dir", out,
		"--hidden-dims", "8",
		"--context-radius", "2",
		"--num-periods", "2",
		"--block-size", "4",
		"--batch-size", "4",
		"--lr", "1e-3",
		"--log-level", "error",
	}, extra...)
}

func TestArgsValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Args)
		param  string
	}{
		{"defaults", func(*Args) {}, ""},
		{"val split", func(a *Args) { a.ValSplit = 1 }, "val_split"},
		{"device", func(a *Args) { a.Device = "cuda" }, "device"},
		{"mask ratio order", func(a *Args) { a.MinMaskRatio = 0.8 }, "min_ratio"},
		{"block order", func(a *Args) { a.MinBlockSize = 40 }, "max_block"},
		{"log level", func(a *Args) { a.LogLevel = "loud" }, "log_level"},
		{"log format", func(a *Args) { a.LogFormat = "xml" }, "log_format"},
		{"log backend", func(a *Args) { a.LogBackend = "logrus" }, "log_backend"},
		{"patience", func(a *Args) { a.Patience = -1 }, "patience"},
		{"time limit", func(a *Args) { a.TimeLimit = -time.Second }, "time_limit"},
		{"epochs", func(a *Args) { a.Epochs = 0 }, "epochs"},
		{"hidden dims", func(a *Args) { a.HiddenDims = nil }, "hidden_dims"},
		{"model config ignored on resume", func(a *Args) { a.HiddenDims = nil; a.Resume = "x.gob" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := defaultArgs()
			a.Input = "in.json"
			tt.modify(&a)
			err := a.validate()
			if tt.param == "" {
				assert.NoError(t, err)
				return
			}
			var verr *errors.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.param, verr.ParamName)
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
	assert.Equal(t, 2, exitCode(errors.NewValidationError("epochs", "must be >= 1", 0)))
	assert.Equal(t, 3, exitCode(errors.Wrap(errors.NewCheckpointError("write checkpoint", "x", nil), "epoch 3")))
	assert.Equal(t, 4, exitCode(errors.NewNumericalInstabilityError("batch_loss", nil, 7)))
}

func TestRunHelpAndUsage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"--help"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "--context-radius")

	stdout.Reset()
	assert.Equal(t, 2, run([]string{"--epochs", "3"}, &stdout, &stderr), "missing --input")
	assert.Equal(t, 2, run([]string{"--input", "x.json", "--val-split", "2"}, &stdout, &stderr))
}

func TestRunWritesArtifacts(t *testing.T) {
	input := writeCurves(t)
	out := filepath.Join(t.TempDir(), "out")
	var stdout, stderr bytes.Buffer

	code := run(smallArgs(input, out, "--epochs", "2", "--save-every", "1", "--history-db", filepath.Join(out, "runs.db")), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	paths := checkpoint.Paths{Dir: out, Prefix: "lcgen"}
	for _, p := range []string{
		paths.Best(),
		paths.Final(),
		paths.Epoch(1),
		paths.Epoch(2),
		plotting.ReconstructionPath(out, "lcgen", 1),
		plotting.CurvePath(out, "lcgen"),
		filepath.Join(out, "lcgen_history.csv"),
	} {
		_, err := os.Stat(p)
		assert.NoError(t, err, p)
	}

	f, err := history.ReadJSON(filepath.Join(out, "lcgen_history.json"))
	require.NoError(t, err)
	require.Len(t, f.Epochs, 2)
	assert.Equal(t, 1, f.Epochs[0].Epoch)

	final, err := checkpoint.Load(paths.Final())
	require.NoError(t, err)
	assert.Equal(t, f.RunID, final.RunID)
	assert.Equal(t, 2, final.Epoch)
}

func TestRunResumeExtendsHistory(t *testing.T) {
	input := writeCurves(t)
	out := filepath.Join(t.TempDir(), "out")
	var stdout, stderr bytes.Buffer

	require.Equal(t, 0, run(smallArgs(input, out, "--epochs", "1"), &stdout, &stderr), stderr.String())
	first, err := history.ReadJSON(filepath.Join(out, "lcgen_history.json"))
	require.NoError(t, err)

	final := checkpoint.Paths{Dir: out, Prefix: "lcgen"}.Final()
	// a different seed and fraction must not re-partition the data
	require.Equal(t, 0, run(smallArgs(input, out, "--epochs", "3", "--resume", final, "--progress", "--seed", "7", "--val-split", "0.5"), &stdout, &stderr), stderr.String())

	rec, err := checkpoint.Load(final)
	require.NoError(t, err)
	assert.Equal(t, &checkpoint.Split{ValFraction: 0.15, Seed: 42}, rec.Split)
	assert.Equal(t, uint64(42), rec.Config.Seed)

	f, err := history.ReadJSON(filepath.Join(out, "lcgen_history.json"))
	require.NoError(t, err)
	assert.Equal(t, first.RunID, f.RunID)
	require.Len(t, f.Epochs, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{f.Epochs[0].Epoch, f.Epochs[1].Epoch, f.Epochs[2].Epoch})
}

func TestResumeSplit(t *testing.T) {
	tests := []struct {
		name     string
		rec      checkpoint.Record
		wantFrac float64
		wantSeed uint64
		warns    bool
	}{
		{
			name:     "stored partition wins",
			rec:      checkpoint.Record{Config: train.NewConfig(train.WithSeed(42)), Split: &checkpoint.Split{ValFraction: 0.3, Seed: 11}},
			wantFrac: 0.3, wantSeed: 11, warns: true,
		},
		{
			name:     "matching flags",
			rec:      checkpoint.Record{Config: train.NewConfig(), Split: &checkpoint.Split{ValFraction: 0.15, Seed: 42}},
			wantFrac: 0.15, wantSeed: 42,
		},
		{
			name:     "legacy record uses the run seed",
			rec:      checkpoint.Record{Config: train.NewConfig(train.WithSeed(5))},
			wantFrac: 0.15, wantSeed: 5, warns: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl, _ := log.NewTestLogger(log.LevelDebug)
			a := defaultArgs()
			a.Resume = "run.gob"
			got := resumeSplit(a, &tt.rec, tl)
			assert.Equal(t, tt.wantFrac, got.ValSplit)
			assert.Equal(t, tt.wantSeed, got.Seed)
			assert.Equal(t, tt.warns, tl.ContainsMessage("Split flags differ from the checkpoint; using the stored partition"))
		})
	}
}

type recordingStore struct {
	history.Store
	initErr error
	closed  bool
}

func (s *recordingStore) Init(context.Context) error { return s.initErr }
func (s *recordingStore) Close() error               { s.closed = true; return nil }

func TestInitStoresClosesOpenedOnFailure(t *testing.T) {
	first, second := &recordingStore{}, &recordingStore{initErr: errors.New("disk full")}
	third := &recordingStore{}
	err := initStores(context.Background(), []history.Store{first, second, third})
	require.Error(t, err)
	assert.True(t, first.closed)
	assert.False(t, second.closed, "a store that failed to open is not closed")
	assert.False(t, third.closed)

	require.NoError(t, initStores(context.Background(), []history.Store{third}))
	assert.False(t, third.closed)
}

func TestRunMissingInput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(smallArgs(filepath.Join(t.TempDir(), "none.json"), t.TempDir(), "--epochs", "1"), &stdout, &stderr)
	assert.Equal(t, 1, code)
}
