package model

import (
	"encoding/json"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/lcgen/pkg/errors"
)

// Tensor は gob でそのまま保存できる行列表現です。
type Tensor struct {
	Rows int
	Cols int
	Data []float64
}

// TensorFromDense は行列の内容をコピーした Tensor を返します。
func TensorFromDense(m *mat.Dense) Tensor {
	r, c := m.Dims()
	data := make([]float64, r*c)
	for i := 0; i < r; i++ {
		copy(data[i*c:(i+1)*c], m.RawRowView(i))
	}
	return Tensor{Rows: r, Cols: c, Data: data}
}

// Dense は Tensor の内容をコピーした新しい行列を返します。
func (t Tensor) Dense() *mat.Dense {
	data := make([]float64, len(t.Data))
	copy(data, t.Data)
	return mat.NewDense(t.Rows, t.Cols, data)
}

// State はパラメータ名から値への対応です。
type State map[string]Tensor

// Snapshot はモデルを復元するのに十分な情報です。
type Snapshot struct {
	// Type は Register で登録されたモデルの種類
	Type string
	// Version は Config のスキーマバージョン（互換性チェック用）
	Version int
	// Config はモデルの構築設定（JSON）
	Config json.RawMessage
	// Params は学習済みパラメータ
	Params State
}

// Validate は Snapshot の妥当性を検証します。
func (s *Snapshot) Validate() error {
	if s.Type == "" {
		return errors.NewValidationError("type", "snapshot model type is required", s.Type)
	}
	if len(s.Config) == 0 {
		return errors.NewValidationError("config", "snapshot construction config is required", "")
	}
	for name, t := range s.Params {
		if t.Rows*t.Cols != len(t.Data) {
			return errors.NewValidationError(name, "tensor data length does not match its shape", len(t.Data))
		}
	}
	return nil
}

// Clone は Snapshot のディープコピーを作成します。
func (s *Snapshot) Clone() Snapshot {
	clone := Snapshot{
		Type:    s.Type,
		Version: s.Version,
		Config:  append(json.RawMessage(nil), s.Config...),
		Params:  make(State, len(s.Params)),
	}
	for k, t := range s.Params {
		clone.Params[k] = Tensor{Rows: t.Rows, Cols: t.Cols, Data: append([]float64(nil), t.Data...)}
	}
	return clone
}

// CaptureState は params の値をコピーして State にします。
func CaptureState(params []*Param) State {
	st := make(State, len(params))
	for _, p := range params {
		st[p.Name] = TensorFromDense(p.Value)
	}
	return st
}

// RestoreState は st の値を params にコピーします。名前の欠落や形状の
// 不一致はエラーになり、その場合 params は変更されません。
func RestoreState(params []*Param, st State) error {
	for _, p := range params {
		t, ok := st[p.Name]
		if !ok {
			return errors.NewValueError("RestoreState", "missing parameter "+p.Name)
		}
		r, c := p.Value.Dims()
		if t.Rows != r || t.Cols != c {
			return errors.NewShapeMismatchError("RestoreState", p.Name, []int{r, c}, "snapshot", []int{t.Rows, t.Cols})
		}
	}
	for _, p := range params {
		t := st[p.Name]
		_, c := p.Value.Dims()
		for i := 0; i < t.Rows; i++ {
			copy(p.Value.RawRowView(i), t.Data[i*c:(i+1)*c])
		}
	}
	return nil
}

// ZeroGrads は全ての勾配バッファを0にします。
func ZeroGrads(params []*Param) {
	for _, p := range params {
		p.Grad.Zero()
	}
}

// CountParams は学習可能なスカラーの総数を返します。
func CountParams(params []*Param) int {
	n := 0
	for _, p := range params {
		r, c := p.Value.Dims()
		n += r * c
	}
	return n
}
