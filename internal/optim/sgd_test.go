package optim

import (
	"math"
	"testing"

	"github.com/dvd42/lesionnet/internal/model"
)

func TestSGDMomentumUpdate(t *testing.T) {
	p := model.NewParameter("w", 2)
	p.Data[0] = 1.0
	p.Data[1] = -1.0
	sgd := NewSGD([]*model.Parameter{p}, 0.1, 0.9)

	// Step 1: v = -lr*g, w += v.
	p.Grad[0] = 0.5
	p.Grad[1] = -0.25
	sgd.Step()
	if math.Abs(p.Data[0]-0.95) > 1e-12 || math.Abs(p.Data[1]-(-0.975)) > 1e-12 {
		t.Fatalf("first step: got %v", p.Data)
	}

	// Step 2 with the same gradient: v = 0.9*v - lr*g.
	sgd.Step()
	// v0 = 0.9*(-0.05) - 0.1*0.5 = -0.095; w0 = 0.95 - 0.095 = 0.855
	if math.Abs(p.Data[0]-0.855) > 1e-12 {
		t.Fatalf("second step: got %f want 0.855", p.Data[0])
	}
}

func TestSGDZeroGrad(t *testing.T) {
	p := model.NewParameter("w", 3)
	sgd := NewSGD([]*model.Parameter{p}, 0.1, 0)
	p.Grad[0] = 1
	p.Grad[2] = -2
	sgd.ZeroGrad()
	for i, g := range p.Grad {
		if g != 0 {
			t.Fatalf("grad[%d] not cleared: %f", i, g)
		}
	}
}

func TestSGDZeroLearningRateIsNoop(t *testing.T) {
	p := model.NewParameter("w", 2)
	p.Data[0] = 3
	sgd := NewSGD([]*model.Parameter{p}, 0, 0.9)
	p.Grad[0] = 1
	sgd.Step()
	if p.Data[0] != 3 {
		t.Fatalf("zero learning rate changed parameter: %f", p.Data[0])
	}
}
