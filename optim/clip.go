package optim

import (
	"math"

	"github.com/YuminosukeSato/lcgen/core/model"
)

// GlobalGradNorm returns the L2 norm over all parameter gradients.
func GlobalGradNorm(params []*model.Param) float64 {
	var sum float64
	for _, p := range params {
		r, _ := p.Grad.Dims()
		for i := 0; i < r; i++ {
			for _, g := range p.Grad.RawRowView(i) {
				sum += g * g
			}
		}
	}
	return math.Sqrt(sum)
}

// ClipGradNorm scales all gradients so their global norm is at most maxNorm
// and returns the norm before clipping, like torch.nn.utils.clip_grad_norm_.
// Gradients are left untouched when the norm is NaN or infinite so the
// caller can skip the step.
func ClipGradNorm(params []*model.Param, maxNorm float64) float64 {
	norm := GlobalGradNorm(params)
	if math.IsNaN(norm) || math.IsInf(norm, 0) {
		return norm
	}
	coef := maxNorm / (norm + 1e-6)
	if coef < 1 {
		for _, p := range params {
			p.Grad.Scale(coef, p.Grad)
		}
	}
	return norm
}
