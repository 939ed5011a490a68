// Package transform converts decoded images into normalized CHW feature
// vectors, with optional training-time augmentation.
package transform

import (
	"image"
	"math/rand"

	"golang.org/x/image/draw"
)

// Normalize holds per-channel mean and standard deviation in RGB order.
type Normalize struct {
	Mean [3]float64
	Std  [3]float64
}

// DefaultNormalize matches the statistics the pretrained backbone was
// trained with.
var DefaultNormalize = Normalize{
	Mean: [3]float64{0.485, 0.456, 0.406},
	Std:  [3]float64{0.229, 0.224, 0.225},
}

// Pipeline resizes, crops, optionally flips, and normalizes an image into a
// flattened CHW vector of length 3*Size*Size.
//
// With Augment set (training) the crop position and horizontal flip are drawn
// from the supplied RNG; otherwise (evaluation) the crop is centered and the
// output is deterministic.
type Pipeline struct {
	Size     int
	ResizeTo int // shorter side after resize; defaults to Size + Size/8
	Augment  bool
	Norm     Normalize
}

// Apply runs the pipeline on one image.
func (p Pipeline) Apply(img image.Image, rng *rand.Rand) []float64 {
	resizeTo := p.ResizeTo
	if resizeTo < p.Size {
		resizeTo = p.Size + p.Size/8
	}
	scaled := resizeShorter(img, resizeTo)
	bounds := scaled.Bounds()

	var offX, offY int
	if p.Augment && rng != nil {
		offX = rng.Intn(bounds.Dx() - p.Size + 1)
		offY = rng.Intn(bounds.Dy() - p.Size + 1)
	} else {
		offX = (bounds.Dx() - p.Size) / 2
		offY = (bounds.Dy() - p.Size) / 2
	}

	flip := p.Augment && rng != nil && rng.Float64() < 0.5

	out := make([]float64, 3*p.Size*p.Size)
	plane := p.Size * p.Size
	for y := 0; y < p.Size; y++ {
		for x := 0; x < p.Size; x++ {
			sx := offX + x
			if flip {
				sx = offX + p.Size - 1 - x
			}
			r, g, b, _ := scaled.At(bounds.Min.X+sx, bounds.Min.Y+offY+y).RGBA()
			idx := y*p.Size + x
			out[idx] = (float64(r)/65535.0 - p.Norm.Mean[0]) / p.Norm.Std[0]
			out[plane+idx] = (float64(g)/65535.0 - p.Norm.Mean[1]) / p.Norm.Std[1]
			out[2*plane+idx] = (float64(b)/65535.0 - p.Norm.Mean[2]) / p.Norm.Std[2]
		}
	}
	return out
}

// resizeShorter scales img so its shorter side equals shorter pixels,
// preserving aspect ratio.
func resizeShorter(img image.Image, shorter int) *image.RGBA {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	var nw, nh int
	if w <= h {
		nw = shorter
		nh = h * shorter / w
	} else {
		nh = shorter
		nw = w * shorter / h
	}
	if nw < shorter {
		nw = shorter
	}
	if nh < shorter {
		nh = shorter
	}
	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}
