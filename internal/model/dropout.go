package model

import "math/rand"

// Dropout zeroes a fraction of its inputs during training and rescales the
// survivors (inverted dropout). In evaluation mode, or when no RNG is
// supplied, it is the identity. This is the layer that makes the training
// and evaluation modes of the network observably different.
type Dropout struct {
	Rate float64
}

// Forward returns the (possibly) masked activations and the keep mask.
// A nil mask means the layer acted as the identity.
func (d *Dropout) Forward(in []float64, train bool, rng *rand.Rand) ([]float64, []bool) {
	if !train || rng == nil || d.Rate <= 0 {
		return in, nil
	}
	out := make([]float64, len(in))
	mask := make([]bool, len(in))
	inv := 1.0 / (1.0 - d.Rate)
	for i, v := range in {
		if rng.Float64() >= d.Rate {
			mask[i] = true
			out[i] = v * inv
		}
	}
	return out, mask
}

// Backward routes gradients through the keep mask recorded by Forward.
func (d *Dropout) Backward(dOut []float64, mask []bool) []float64 {
	if mask == nil {
		return dOut
	}
	dIn := make([]float64, len(dOut))
	inv := 1.0 / (1.0 - d.Rate)
	for i, keep := range mask {
		if keep {
			dIn[i] = dOut[i] * inv
		}
	}
	return dIn
}
