package model

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Linear is a fully connected layer. The classifier head of the network is a
// Linear, so ReplaceClassifier swaps one of these.
type Linear struct {
	In  int
	Out int

	Weight *Parameter // [out][in]
	Bias   *Parameter // [out]
}

// NewLinear constructs a fully connected layer with uniform initialization
// scaled by the fan-in.
func NewLinear(name string, in, out int, rng *rand.Rand) *Linear {
	l := &Linear{
		In:     in,
		Out:    out,
		Weight: NewParameter(name+".weight", out, in),
		Bias:   NewParameter(name+".bias", out),
	}
	scale := 1.0 / math.Sqrt(float64(in))
	for i := range l.Weight.Data {
		l.Weight.Data[i] = (rng.Float64()*2 - 1) * scale
	}
	return l
}

// Forward computes Wx + b for one sample.
func (l *Linear) Forward(in []float64) []float64 {
	w := mat.NewDense(l.Out, l.In, l.Weight.Data)
	x := mat.NewVecDense(l.In, in)
	var y mat.VecDense
	y.MulVec(w, x)
	out := make([]float64, l.Out)
	for i := range out {
		out[i] = y.AtVec(i) + l.Bias.Data[i]
	}
	return out
}

// Backward accumulates gradients into wGrad and bGrad and returns the
// gradient with respect to the input.
func (l *Linear) Backward(in, dOut, wGrad, bGrad []float64) []float64 {
	dIn := make([]float64, l.In)
	for o := 0; o < l.Out; o++ {
		g := dOut[o]
		bGrad[o] += g
		if g == 0 {
			continue
		}
		row := l.Weight.Data[o*l.In : (o+1)*l.In]
		floats.AddScaled(wGrad[o*l.In:(o+1)*l.In], g, in)
		floats.AddScaled(dIn, g, row)
	}
	return dIn
}
