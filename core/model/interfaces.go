// Package model は系列再構成モデルと学習ループの間の契約を定義します。
//
// 学習ループはモデルの内部構造を知らず、Forwarder と Trainable の
// インターフェースだけを通してモデルを扱います。評価ループは Forwarder
// しか受け取らないため、パラメータや勾配に型の上で触れることができません。
package model

import (
	"gonum.org/v1/gonum/mat"
)

// MaskedInput はモデルへの2チャネル入力です。両方とも N×L です。
type MaskedInput struct {
	// Signal はマスク位置を0にした観測値
	Signal *mat.Dense
	// Indicator はマスク位置が1、それ以外が0の行列
	Indicator *mat.Dense
}

// Dims は入力の形状 (N, L) を返します。
func (in MaskedInput) Dims() (n, l int) {
	if in.Signal == nil {
		return 0, 0
	}
	return in.Signal.Dims()
}

// Output はモデルの出力です。
type Output struct {
	// Reconstructed は N×L の再構成結果
	Reconstructed *mat.Dense
}

// Forwarder は推論のみを行うモデルのインターフェースです。
type Forwarder interface {
	// Forward はマスク済み入力と時刻 (N×L) から再構成を計算します。
	// パラメータは変更しません。
	Forward(in MaskedInput, t *mat.Dense) (Output, error)
}

// Tape は1回の学習用順伝播で記録された中間値を保持し、逆伝播を行います。
type Tape interface {
	// Backward は再構成に対する損失勾配 dRecon (N×L) を受け取り、
	// 各 Param.Grad に勾配を加算します。
	Backward(dRecon *mat.Dense) error
}

// Param は名前付きの学習可能パラメータと、その勾配バッファです。
// Value と Grad は同じ形状でなければなりません。
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

// Trainable は学習ループが扱うモデルのインターフェースです。
type Trainable interface {
	Forwarder

	// ForwardTrain は Forward と同じ出力に加えて逆伝播用の Tape を返します。
	ForwardTrain(in MaskedInput, t *mat.Dense) (Output, Tape, error)

	// Parameters は全ての学習可能パラメータを固定順で返します。
	// オプティマイザの状態はこの順序に対応します。
	Parameters() []*Param

	// ZeroGrad は全ての勾配バッファを0にします。
	ZeroGrad()

	// Snapshot は構築設定とパラメータを含む完全な状態を返します。
	Snapshot() (Snapshot, error)

	// Restore は Snapshot からパラメータを復元します。構築設定が
	// 一致しない場合はエラーを返します。
	Restore(s Snapshot) error
}
