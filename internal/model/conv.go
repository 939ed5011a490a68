package model

import (
	"math"
	"math/rand"
)

// Conv2D is a square-kernel, stride-1 convolution with zero padding.
// Input and output are flattened CHW slices.
type Conv2D struct {
	InChannels  int
	OutChannels int
	Kernel      int
	Pad         int

	Weight *Parameter // [out][in][k][k]
	Bias   *Parameter // [out]
}

// NewConv2D constructs a convolution with He-normal initialization.
func NewConv2D(name string, in, out, kernel int, rng *rand.Rand) *Conv2D {
	c := &Conv2D{
		InChannels:  in,
		OutChannels: out,
		Kernel:      kernel,
		Pad:         (kernel - 1) / 2,
		Weight:      NewParameter(name+".weight", out, in, kernel, kernel),
		Bias:        NewParameter(name+".bias", out),
	}
	scale := math.Sqrt(2.0 / float64(in*kernel*kernel))
	for i := range c.Weight.Data {
		c.Weight.Data[i] = rng.NormFloat64() * scale
	}
	return c
}

// Forward computes the convolution of a single CHW sample of size h by w.
// With stride 1 and same padding the spatial dimensions are preserved.
func (c *Conv2D) Forward(in []float64, h, w int) []float64 {
	out := make([]float64, c.OutChannels*h*w)
	k := c.Kernel
	for oc := 0; oc < c.OutChannels; oc++ {
		bias := c.Bias.Data[oc]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				sum := bias
				for ic := 0; ic < c.InChannels; ic++ {
					wBase := ((oc*c.InChannels + ic) * k) * k
					inBase := ic * h * w
					for ky := 0; ky < k; ky++ {
						iy := y + ky - c.Pad
						if iy < 0 || iy >= h {
							continue
						}
						for kx := 0; kx < k; kx++ {
							ix := x + kx - c.Pad
							if ix < 0 || ix >= w {
								continue
							}
							sum += c.Weight.Data[wBase+ky*k+kx] * in[inBase+iy*w+ix]
						}
					}
				}
				out[(oc*h+y)*w+x] = sum
			}
		}
	}
	return out
}

// Backward accumulates weight and bias gradients for one sample into wGrad
// and bGrad (buffers from a GradSet) and returns the gradient with respect
// to the input.
func (c *Conv2D) Backward(in []float64, h, w int, dOut, wGrad, bGrad []float64) []float64 {
	dIn := make([]float64, len(in))
	k := c.Kernel
	for oc := 0; oc < c.OutChannels; oc++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				g := dOut[(oc*h+y)*w+x]
				if g == 0 {
					continue
				}
				bGrad[oc] += g
				for ic := 0; ic < c.InChannels; ic++ {
					wBase := ((oc*c.InChannels + ic) * k) * k
					inBase := ic * h * w
					for ky := 0; ky < k; ky++ {
						iy := y + ky - c.Pad
						if iy < 0 || iy >= h {
							continue
						}
						for kx := 0; kx < k; kx++ {
							ix := x + kx - c.Pad
							if ix < 0 || ix >= w {
								continue
							}
							wGrad[wBase+ky*k+kx] += g * in[inBase+iy*w+ix]
							dIn[inBase+iy*w+ix] += g * c.Weight.Data[wBase+ky*k+kx]
						}
					}
				}
			}
		}
	}
	return dIn
}

// MaxPool2D is a non-overlapping max pool; stride equals the window size.
type MaxPool2D struct {
	Size int
}

// Forward pools a CHW sample and records the arg-max input index for every
// output cell so Backward can route gradients.
func (p *MaxPool2D) Forward(in []float64, c, h, w int) ([]float64, []int) {
	oh := h / p.Size
	ow := w / p.Size
	out := make([]float64, c*oh*ow)
	argmax := make([]int, len(out))
	for ch := 0; ch < c; ch++ {
		base := ch * h * w
		for oy := 0; oy < oh; oy++ {
			for ox := 0; ox < ow; ox++ {
				best := math.Inf(-1)
				bestIdx := -1
				for ky := 0; ky < p.Size; ky++ {
					for kx := 0; kx < p.Size; kx++ {
						idx := base + (oy*p.Size+ky)*w + ox*p.Size + kx
						if in[idx] > best {
							best = in[idx]
							bestIdx = idx
						}
					}
				}
				o := (ch*oh+oy)*ow + ox
				out[o] = best
				argmax[o] = bestIdx
			}
		}
	}
	return out, argmax
}

// Backward scatters output gradients back to the arg-max positions.
func (p *MaxPool2D) Backward(dOut []float64, argmax []int, inLen int) []float64 {
	dIn := make([]float64, inLen)
	for i, g := range dOut {
		dIn[argmax[i]] += g
	}
	return dIn
}

func reluForward(in []float64) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		if v > 0 {
			out[i] = v
		}
	}
	return out
}

// reluBackward uses the post-activation values: the derivative is 1 exactly
// where the output is positive.
func reluBackward(dOut, out []float64) []float64 {
	dIn := make([]float64, len(dOut))
	for i, v := range out {
		if v > 0 {
			dIn[i] = dOut[i]
		}
	}
	return dIn
}
