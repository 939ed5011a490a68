package transform

import (
	"image"
	"image/color"
	"math/rand"
	"testing"
)

func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func TestApplyOutputShape(t *testing.T) {
	p := Pipeline{Size: 8, Norm: DefaultNormalize}
	out := p.Apply(gradientImage(20, 14), nil)
	if len(out) != 3*8*8 {
		t.Fatalf("expected %d features, got %d", 3*8*8, len(out))
	}
}

func TestEvalPipelineDeterministic(t *testing.T) {
	p := Pipeline{Size: 8, Norm: DefaultNormalize}
	img := gradientImage(16, 16)
	a := p.Apply(img, nil)
	b := p.Apply(img, rand.New(rand.NewSource(1)))
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("eval transform not deterministic at %d", i)
		}
	}
}

func TestAugmentedPipeline(t *testing.T) {
	p := Pipeline{Size: 8, Augment: true, Norm: DefaultNormalize}
	img := gradientImage(32, 24)
	rng := rand.New(rand.NewSource(3))
	out := p.Apply(img, rng)
	if len(out) != 3*8*8 {
		t.Fatalf("expected %d features, got %d", 3*8*8, len(out))
	}
	same := rand.New(rand.NewSource(3))
	again := p.Apply(img, same)
	for i := range out {
		if out[i] != again[i] {
			t.Fatalf("augmentation not reproducible from the same RNG state")
		}
	}
}

func TestNormalizationRange(t *testing.T) {
	// A mid-gray image normalized with the default stats stays near zero.
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 124, G: 116, B: 104, A: 255})
		}
	}
	p := Pipeline{Size: 8, Norm: DefaultNormalize}
	out := p.Apply(img, nil)
	for i, v := range out {
		if v < -0.2 || v > 0.2 {
			t.Fatalf("normalized mid-gray out of expected band at %d: %f", i, v)
		}
	}
}

func TestResizeUpscalesSmallImages(t *testing.T) {
	p := Pipeline{Size: 8, Norm: DefaultNormalize}
	out := p.Apply(gradientImage(4, 6), nil)
	if len(out) != 3*8*8 {
		t.Fatalf("small input not upscaled: got %d features", len(out))
	}
}
