package model

// Parameter is a named weight tensor with its gradient buffer.
type Parameter struct {
	Name  string
	Shape []int
	Data  []float64
	Grad  []float64
}

// NewParameter allocates a zero-valued parameter with the given shape.
func NewParameter(name string, shape ...int) *Parameter {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Parameter{
		Name:  name,
		Shape: shape,
		Data:  make([]float64, n),
		Grad:  make([]float64, n),
	}
}

// Size returns the number of scalar values in the parameter.
func (p *Parameter) Size() int {
	return len(p.Data)
}

// ZeroGrad clears the gradient buffer.
func (p *Parameter) ZeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

// GradSet holds private gradient buffers indexed like the owning model's
// Parameters(). Replicas accumulate into their own GradSet so that backward
// passes can run concurrently without touching Parameter.Grad.
type GradSet [][]float64

// NewGradSet allocates zeroed buffers matching params.
func NewGradSet(params []*Parameter) GradSet {
	gs := make(GradSet, len(params))
	for i, p := range params {
		gs[i] = make([]float64, p.Size())
	}
	return gs
}
