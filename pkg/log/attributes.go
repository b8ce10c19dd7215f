// Standard attribute keys for training runs.
//
// Keys follow a hierarchical naming convention ("training.epoch",
// "masking.ratio") so log records can be filtered per concern.

package log

// Model and run context.
const (
	// ModelNameKey identifies the registered model type.
	// Example: "time-context-mlp"
	ModelNameKey = "model.name"

	// ParamCountKey records the number of trainable scalars in the model.
	ParamCountKey = "model.param_count"

	// RunIDKey identifies one training run. Every checkpoint written by the
	// run carries the same id.
	RunIDKey = "run.id"

	// OperationKey specifies the operation being performed.
	// Standard values: see the Operation* constants below.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package emitted the record.
	// Examples: "train", "checkpoint", "dataset"
	ComponentKey = "ml.component"

	// PhaseKey indicates the phase of the run ("training", "validation").
	PhaseKey = "ml.phase"
)

// Data shape and characteristics.
const (
	// SamplesKey indicates the number of sequences in a dataset or subset.
	SamplesKey = "data.samples"

	// LengthKey indicates the sequence length L.
	LengthKey = "data.length"

	// BatchSizeKey indicates the configured mini-batch size.
	BatchSizeKey = "data.batch_size"

	// BatchesKey indicates the number of batches in one epoch.
	BatchesKey = "data.batches"

	// NaNCountKey records how many NaN values were replaced while loading.
	NaNCountKey = "data.nan_count"

	// ArrayKey names the array a record refers to ("flux", "time").
	ArrayKey = "data.array"

	// PathKey records an input file path.
	PathKey = "data.path"
)

// Masking.
const (
	// MaskRatioKey records an achieved mask ratio.
	MaskRatioKey = "masking.ratio"

	// BlockSizeKey records the contiguous block size drawn for a mask.
	BlockSizeKey = "masking.block_size"
)

// Performance metrics.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// DurationSecondsKey records the execution time in seconds for long operations.
	DurationSecondsKey = "perf.duration_seconds"

	// LossKey records the whole-sequence reconstruction loss (the optimized objective).
	LossKey = "metrics.loss"

	// MaskedLossKey records the MSE restricted to masked positions.
	MaskedLossKey = "metrics.masked_loss"

	// UnmaskedLossKey records the MSE restricted to unmasked positions.
	UnmaskedLossKey = "metrics.unmasked_loss"

	// ValLossKey records the validation whole-sequence loss.
	ValLossKey = "metrics.val_loss"

	// ValMaskedLossKey records the validation masked-position loss.
	ValMaskedLossKey = "metrics.val_masked_loss"

	// ValUnmaskedLossKey records the validation unmasked-position loss.
	ValUnmaskedLossKey = "metrics.val_unmasked_loss"

	// BestLossKey records the best validation loss seen so far.
	BestLossKey = "metrics.best_loss"

	// GradNormKey records the global gradient norm before clipping.
	GradNormKey = "metrics.grad_norm"

	// IterationKey records the global optimizer step.
	IterationKey = "training.iteration"

	// EpochKey records the current epoch number (1-based in log output).
	EpochKey = "training.epoch"

	// SkippedBatchesKey records how many batches were skipped for non-finite values.
	SkippedBatchesKey = "training.skipped_batches"
)

// Checkpoint and artifact context.
const (
	// CheckpointPathKey records the path of a written or loaded checkpoint.
	CheckpointPathKey = "checkpoint.path"

	// CheckpointKindKey records which kind of checkpoint was written.
	// Values: "best", "periodic", "final"
	CheckpointKindKey = "checkpoint.kind"

	// ArtifactPathKey records the path of a plot or history file.
	ArtifactPathKey = "artifact.path"
)

// Error and warning context.
const (
	// ErrorCodeKey provides a structured error code for programmatic handling.
	ErrorCodeKey = "error.code"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"

	// SuggestionKey provides helpful suggestions for resolving issues.
	SuggestionKey = "error.suggestion"
)

// Hyperparameters and configuration.
const (
	// HyperParamsKey contains model hyperparameters as a structured object.
	HyperParamsKey = "model.hyperparams"

	// LearningRateKey records the current learning rate.
	LearningRateKey = "hyperparams.learning_rate"

	// WeightDecayKey records the decoupled weight decay.
	WeightDecayKey = "hyperparams.weight_decay"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// DeviceKey records the compute device selector.
	DeviceKey = "config.device"
)

// Standard attribute values.
const (
	OperationLoad     = "load"
	OperationSplit    = "split"
	OperationTrain    = "train_epoch"
	OperationEvaluate = "evaluate"
	OperationSave     = "save_checkpoint"
	OperationRestore  = "restore_checkpoint"
	OperationPlot     = "plot"

	PhaseTraining   = "training"
	PhaseValidation = "validation"

	ErrorShapeMismatch      = "SHAPE_MISMATCH"
	ErrorEmptyData          = "EMPTY_DATA"
	ErrorInvalidInput       = "INVALID_INPUT"
	ErrorNumericInstability = "NUMERIC_INSTABILITY"
	ErrorCheckpointWrite    = "CHECKPOINT_WRITE"
	ErrorMaskExhausted      = "MASK_EXHAUSTED"
)
