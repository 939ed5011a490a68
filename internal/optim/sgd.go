// Package optim implements parameter update rules.
package optim

import (
	"gonum.org/v1/gonum/floats"

	"github.com/dvd42/lesionnet/internal/model"
)

// SGD applies stochastic gradient descent with classical momentum:
// v = momentum*v - lr*g; w += v. The optimizer is bound to a fixed parameter
// list at construction; velocity buffers are keyed by position.
type SGD struct {
	lr       float64
	momentum float64
	params   []*model.Parameter
	velocity [][]float64
}

// NewSGD binds an optimizer to params.
func NewSGD(params []*model.Parameter, lr, momentum float64) *SGD {
	velocity := make([][]float64, len(params))
	for i, p := range params {
		velocity[i] = make([]float64, p.Size())
	}
	return &SGD{lr: lr, momentum: momentum, params: params, velocity: velocity}
}

// ZeroGrad clears the gradient buffer of every bound parameter.
func (s *SGD) ZeroGrad() {
	for _, p := range s.params {
		p.ZeroGrad()
	}
}

// Step applies one update using the gradients currently held by the
// parameters.
func (s *SGD) Step() {
	for i, p := range s.params {
		v := s.velocity[i]
		floats.Scale(s.momentum, v)
		floats.AddScaled(v, -s.lr, p.Grad)
		floats.Add(p.Data, v)
	}
}
