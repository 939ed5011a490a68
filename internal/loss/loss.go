// Package loss provides classification loss functions.
package loss

import "math"

// Losser scores a single prediction against its label; lower is better.
// Deriv additionally fills the gradient of the loss with respect to the
// logits. Implementations must not modify the logits slice.
type Losser interface {
	Loss(logits []float64, label int) float64
	Deriv(logits []float64, label int, deriv []float64) float64
}

// CrossEntropy is softmax cross-entropy over raw logits.
type CrossEntropy struct{}

// Loss returns -log(softmax(logits)[label]).
func (CrossEntropy) Loss(logits []float64, label int) float64 {
	probs := softmax(logits)
	return -math.Log(math.Max(probs[label], 1e-9))
}

// Deriv fills deriv with softmax(logits) - onehot(label) and returns the loss.
func (CrossEntropy) Deriv(logits []float64, label int, deriv []float64) float64 {
	probs := softmax(logits)
	loss := -math.Log(math.Max(probs[label], 1e-9))
	copy(deriv, probs)
	deriv[label] -= 1
	return loss
}

func softmax(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, v := range logits {
		if v > maxLogit {
			maxLogit = v
		}
	}
	sum := 0.0
	out := make([]float64, len(logits))
	for i, v := range logits {
		exp := math.Exp(v - maxLogit)
		out[i] = exp
		sum += exp
	}
	inv := 1.0 / sum
	for i := range out {
		out[i] *= inv
	}
	return out
}
