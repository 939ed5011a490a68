package model

import "math/rand"

// Batch represents a minibatch of flattened CHW features and class labels.
// Batches are produced by the data loader and consumed whole, never mutated.
type Batch struct {
	Inputs [][]float64
	Labels []int
}

// Model is the surface the trainer and the parallel engine require.
// *LesionNet is the canonical implementation.
type Model interface {
	Parameters() []*Parameter
	SetTraining(train bool)
	ForwardSample(x []float64, rng *rand.Rand) ([]float64, *Activations)
	BackwardSample(acts *Activations, dLogits []float64, gs GradSet)
}
