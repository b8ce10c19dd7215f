// Package errors はlcgen全体のエラーハンドリングと警告システムを提供します。
// 致命的なエラー（データ形状の不一致、空のデータセット、チェックポイント書き込み失敗）と
// 学習を止めない警告（マスク生成の試行回数超過、単発の数値不安定）を区別します。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("lcgen-warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はlcgen全体の警告ハンドラを設定します。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
// nilを渡すと従来のハンドラに戻ります。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが設定されている場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// MaskGenerationExhausted はブロック配置の試行回数が上限に達し、
// 目標マスク数に届かなかった場合の警告です。学習は達成済みの比率で続行します。
type MaskGenerationExhausted struct {
	Length        int
	BlockSize     int
	Attempts      int
	TargetCount   int
	AchievedCount int
}

func (w *MaskGenerationExhausted) Error() string {
	return fmt.Sprintf("mask generation exhausted %d placements (block size %d, length %d): masked %d of %d targeted positions",
		w.Attempts, w.BlockSize, w.Length, w.AchievedCount, w.TargetCount)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *MaskGenerationExhausted) MarshalZerologObject(e *zerolog.Event) {
	e.Int("length", w.Length).
		Int("block_size", w.BlockSize).
		Int("attempts", w.Attempts).
		Int("target_count", w.TargetCount).
		Int("achieved_count", w.AchievedCount).
		Str("type", "MaskGenerationExhausted")
}

// NewMaskGenerationExhausted は新しいMaskGenerationExhaustedを作成します。
func NewMaskGenerationExhausted(length, blockSize, attempts, target, achieved int) *MaskGenerationExhausted {
	return &MaskGenerationExhausted{
		Length:        length,
		BlockSize:     blockSize,
		Attempts:      attempts,
		TargetCount:   target,
		AchievedCount: achieved,
	}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// ShapeMismatchError は並列に扱う2つの配列の形状が一致しない場合のエラーです。
// 学習開始前に検出される致命的なエラーです。
type ShapeMismatchError struct {
	Op         string
	Left       string
	Right      string
	LeftShape  []int
	RightShape []int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("lcgen: %s: shape mismatch between %s %v and %s %v",
		e.Op, e.Left, e.LeftShape, e.Right, e.RightShape)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ShapeMismatchError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("left", e.Left).
		Ints("left_shape", e.LeftShape).
		Str("right", e.Right).
		Ints("right_shape", e.RightShape).
		Str("type", "ShapeMismatchError")
}

// NewShapeMismatchError は新しいShapeMismatchErrorを作成し、スタックトレースを付与します。
func NewShapeMismatchError(op, left string, leftShape []int, right string, rightShape []int) error {
	err := &ShapeMismatchError{
		Op:         op,
		Left:       left,
		Right:      right,
		LeftShape:  leftShape,
		RightShape: rightShape,
	}
	return errors.WithStack(err)
}

// EmptyDatasetError は読み込み後に利用可能なサンプルが存在しない場合のエラーです。
type EmptyDatasetError struct {
	Op     string
	Reason string
}

func (e *EmptyDatasetError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("lcgen: %s: empty dataset: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("lcgen: %s: empty dataset", e.Op)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *EmptyDatasetError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("reason", e.Reason).
		Str("type", "EmptyDatasetError")
}

// NewEmptyDatasetError は新しいEmptyDatasetErrorを作成し、スタックトレースを付与します。
func NewEmptyDatasetError(op, reason string) error {
	return errors.WithStack(&EmptyDatasetError{Op: op, Reason: reason})
}

// DimensionError はモデル入力の次元が期待値と異なる場合のエラーです。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0: サンプル, 1: 系列位置
}

func (e *DimensionError) Error() string {
	axisName := "positions"
	if e.Axis == 0 {
		axisName = "samples"
	}
	return fmt.Sprintf("lcgen: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("type", "DimensionError")
}

// NewDimensionError は新しいDimensionErrorを作成し、スタックトレースを付与します。
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("lcgen: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("lcgen: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// CheckpointError はチェックポイントの書き込み・読み込みに失敗した場合のエラーです。
// 書き込み失敗は学習の再開可能性を失わせるため、即座に呼び出し元へ返されます。
type CheckpointError struct {
	Op   string
	Path string
	Err  error
}

func (e *CheckpointError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("lcgen: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("lcgen: %s %s", e.Op, e.Path)
}

func (e *CheckpointError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *CheckpointError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("path", e.Path).
		Str("type", "CheckpointError")
	if e.Err != nil {
		event.Str("cause", e.Err.Error())
	}
}

// NewCheckpointError は新しいCheckpointErrorを作成し、スタックトレースを付与します。
func NewCheckpointError(op, path string, err error) error {
	return errors.WithStack(&CheckpointError{Op: op, Path: path, Err: err})
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	学習ループ特有のエラー型
//
// ===========================================================================

// NumericalInstabilityError は数値計算が不安定になった場合のエラーです。
// 単発のバッチでは警告として扱われ、連続した場合に学習を中断します。
type NumericalInstabilityError struct {
	Operation string                 // 発生した操作（例: "batch_loss", "grad_norm"）
	Values    []float64              // 問題のある値
	Context   map[string]interface{} // デバッグ用の追加コンテキスト情報
	Iteration int                    // 発生したステップ番号
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("lcgen: numerical instability detected in %s at step %d. Values: [%s]",
		e.Operation, e.Iteration, valStr)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NumericalInstabilityError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Int("step", e.Iteration).
		Floats64("values", e.Values).
		Str("type", "NumericalInstabilityError")
	for k, v := range e.Context {
		event.Interface(k, v)
	}
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	err := &NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Iteration: iteration,
		Context:   make(map[string]interface{}),
	}
	return errors.WithStack(err)
}
