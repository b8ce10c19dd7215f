// Package metrics はマスク再構成の損失を計算します。
//
// 学習で最適化するのは系列全体の MSE です。マスク位置だけ・非マスク位置
// だけの MSE は監視用で、勾配には寄与しません。
package metrics

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/lcgen/pkg/errors"
)

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n := yTrue.Len()
	if n == 0 {
		return 0, errors.NewValueError("MSE", "empty vector")
	}
	if yPred.Len() != n {
		return 0, errors.NewDimensionError("MSE", n, yPred.Len(), 0)
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// MSEMatrix は N×L 行列の全要素に対する MSE を計算する
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	rTrue, cTrue := yTrue.Dims()
	if err := checkSameDims("MSEMatrix", yTrue, yPred); err != nil {
		return 0, err
	}

	diff := make([]float64, cTrue)
	tRow := make([]float64, cTrue)
	pRow := make([]float64, cTrue)
	var sum float64
	for i := 0; i < rTrue; i++ {
		mat.Row(tRow, i, yTrue)
		mat.Row(pRow, i, yPred)
		floats.SubTo(diff, pRow, tRow)
		sum += floats.Dot(diff, diff)
	}
	return sum / float64(rTrue*cTrue), nil
}

// LossDecomposition は系列全体・マスク位置・非マスク位置の MSE です。
//
// 位置数が0の部分集合（例えば全位置がマスクされたバッチの非マスク側）は
// 損失0・件数0として表現され、平均を取る側で除外されます。
type LossDecomposition struct {
	Total         float64
	Masked        float64
	Unmasked      float64
	MaskedCount   int
	UnmaskedCount int
}

// Recombined は件数で重み付けした Masked/Unmasked から Total を再計算します。
// 常に Total と浮動小数点誤差の範囲で一致します。
func (d LossDecomposition) Recombined() float64 {
	n := d.MaskedCount + d.UnmaskedCount
	if n == 0 {
		return 0
	}
	return (float64(d.MaskedCount)*d.Masked + float64(d.UnmaskedCount)*d.Unmasked) / float64(n)
}

// Decompose は再構成誤差を mask（true がマスク位置）で分解する
func Decompose(target, recon mat.Matrix, mask [][]bool) (LossDecomposition, error) {
	if err := checkSameDims("Decompose", target, recon); err != nil {
		return LossDecomposition{}, err
	}
	n, l := target.Dims()
	if len(mask) != n {
		return LossDecomposition{}, errors.NewDimensionError("Decompose", n, len(mask), 0)
	}

	var d LossDecomposition
	var sumAll, sumMasked, sumUnmasked float64
	for i := 0; i < n; i++ {
		if len(mask[i]) != l {
			return LossDecomposition{}, errors.NewDimensionError("Decompose", l, len(mask[i]), 1)
		}
		for j := 0; j < l; j++ {
			diff := recon.At(i, j) - target.At(i, j)
			sq := diff * diff
			sumAll += sq
			if mask[i][j] {
				sumMasked += sq
				d.MaskedCount++
			} else {
				sumUnmasked += sq
				d.UnmaskedCount++
			}
		}
	}
	d.Total = sumAll / float64(n*l)
	if d.MaskedCount > 0 {
		d.Masked = sumMasked / float64(d.MaskedCount)
	}
	if d.UnmaskedCount > 0 {
		d.Unmasked = sumUnmasked / float64(d.UnmaskedCount)
	}
	return d, nil
}

// MSEGrad は系列全体 MSE の再構成に対する勾配 2(r-t)/(N·L) を dst に書き込む
func MSEGrad(dst *mat.Dense, target, recon mat.Matrix) error {
	if err := checkSameDims("MSEGrad", target, recon); err != nil {
		return err
	}
	n, l := target.Dims()
	scale := 2 / float64(n*l)
	dst.Apply(func(i, j int, _ float64) float64 {
		return scale * (recon.At(i, j) - target.At(i, j))
	}, recon)
	return nil
}

func checkSameDims(op string, a, b mat.Matrix) error {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ra == 0 || ca == 0 {
		return errors.NewValueError(op, "empty matrix")
	}
	if ra != rb || ca != cb {
		return errors.NewShapeMismatchError(op, "target", []int{ra, ca}, "reconstruction", []int{rb, cb})
	}
	return nil
}
