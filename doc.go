// Package lcgen trains neural models that reconstruct irregularly sampled
// light curves from block-masked observations.
//
// Each training sample is a flux series with its timestamps. Every batch
// hides contiguous blocks of every sample, and the model predicts the whole
// sequence from what remains plus the mask indicator and the time axis.
// The optimized objective is the MSE over every position; the masked and
// unmasked parts are reported separately.
//
// # Quick Start
//
// Generate mock data and train on it:
//
//	go run ./examples/mock_lightcurves --out curves.json
//	go run ./cmd/lcgen-train --input curves.json --epochs 5 --output-dir out
//
// The output directory collects checkpoints, reconstruction plots, the
// training curve, and the per-epoch history as JSON and CSV.
//
// Training from Go code:
//
//	ds, _, err := dataset.Load("curves.json")
//	trainSub, valSub, err := ds.Split(0.15, 42)
//	asm := batching.Assembler{Bounds: masking.Default(ds.SeqLen())}
//	trainLoader, err := batching.NewLoader(trainSub, 32, asm, batching.WithShuffle(true))
//	valLoader, err := batching.NewLoader(valSub, 32, asm)
//
//	m, err := autoencoder.New(autoencoder.DefaultConfig())
//	ctx, err := train.NewContext(m, train.NewConfig(), trainLoader.NumBatches())
//	res, err := train.Fit(ctx, m, trainLoader, valLoader)
//
// # Packages
//
//   - dataset: loading (HDF5, JSON), NaN cleanup, splitting, statistics
//   - masking: random contiguous block masks
//   - batching: masked mini-batch assembly and epoch iteration
//   - core/model: the model contract, parameter snapshots, the type registry
//   - core/parallel: row-parallel helpers
//   - nn/autoencoder: the time-context MLP reconstruction model
//   - metrics: reconstruction losses split by mask
//   - optim: AdamW, the one-cycle schedule, gradient clipping
//   - train: the epoch loop, callbacks, early stopping
//   - checkpoint: resumable checkpoints
//   - history: per-epoch metric stores (memory, SQLite) and exports
//   - plotting: reconstruction and training-curve images
//   - pkg/errors, pkg/log: error types and structured logging
package lcgen
