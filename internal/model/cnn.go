package model

import (
	"math/rand"
)

// Channel widths of the two convolution stages.
const (
	conv1Channels = 8
	conv2Channels = 16
)

// PretrainedClasses is the head width of the published backbone checkpoints.
const PretrainedClasses = 1000

// LesionNet is a small convolutional classifier: two conv+relu+pool stages,
// dropout, and a fully connected head. Fine-tuning replaces the head with one
// sized for the target class count while the backbone keeps its pretrained
// weights.
type LesionNet struct {
	conv1 *Conv2D
	conv2 *Conv2D
	pool  *MaxPool2D
	drop  *Dropout
	head  *Linear

	imageSize  int
	numClasses int
	training   bool
}

// NewLesionNet constructs the network for square inputs of imageSize pixels.
// imageSize must be divisible by 4 (two 2x2 pool stages).
func NewLesionNet(imageSize, numClasses int, seed int64) *LesionNet {
	rng := rand.New(rand.NewSource(seed))
	n := &LesionNet{
		conv1:      NewConv2D("conv1", 3, conv1Channels, 3, rng),
		conv2:      NewConv2D("conv2", conv1Channels, conv2Channels, 3, rng),
		pool:       &MaxPool2D{Size: 2},
		drop:       &Dropout{Rate: 0.5},
		imageSize:  imageSize,
		numClasses: numClasses,
	}
	n.head = NewLinear("head", n.FeatureSize(), numClasses, rng)
	return n
}

// FeatureSize is the flattened width of the backbone output.
func (n *LesionNet) FeatureSize() int {
	s := n.imageSize / 4
	return conv2Channels * s * s
}

// ImageSize returns the expected input height and width.
func (n *LesionNet) ImageSize() int { return n.imageSize }

// NumClasses returns the width of the classifier head.
func (n *LesionNet) NumClasses() int { return n.numClasses }

// SetTraining switches between training and evaluation mode. Evaluation mode
// disables dropout; nothing else in the forward pass depends on the mode.
func (n *LesionNet) SetTraining(train bool) { n.training = train }

// Training reports the current mode.
func (n *LesionNet) Training() bool { return n.training }

// SetDropout overrides the default dropout rate of the head.
func (n *LesionNet) SetDropout(rate float64) { n.drop.Rate = rate }

// ReplaceClassifier swaps the head for a freshly initialized layer with
// numClasses outputs. Backbone parameters are untouched.
func (n *LesionNet) ReplaceClassifier(numClasses int, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	n.head = NewLinear("head", n.FeatureSize(), numClasses, rng)
	n.numClasses = numClasses
}

// Parameters returns the trainable tensors in a fixed order. GradSet buffers
// are indexed by position in this slice.
func (n *LesionNet) Parameters() []*Parameter {
	return []*Parameter{
		n.conv1.Weight, n.conv1.Bias,
		n.conv2.Weight, n.conv2.Bias,
		n.head.Weight, n.head.Bias,
	}
}

// Activations carries the per-sample forward state needed by BackwardSample.
// Input is the sample the forward pass saw; the remaining fields are
// LesionNet internals.
type Activations struct {
	Input   []float64
	a1      []float64
	arg1    []int
	p1      []float64
	a2      []float64
	arg2    []int
	p2      []float64
	mask    []bool
	dropped []float64
}

// ForwardSample runs one CHW sample through the network and returns the class
// logits together with the activations required for a backward pass. The RNG
// drives dropout and is only consulted in training mode; passing nil yields a
// deterministic forward pass.
func (n *LesionNet) ForwardSample(x []float64, rng *rand.Rand) ([]float64, *Activations) {
	s := n.imageSize
	acts := &Activations{Input: x}

	z1 := n.conv1.Forward(x, s, s)
	acts.a1 = reluForward(z1)
	acts.p1, acts.arg1 = n.pool.Forward(acts.a1, conv1Channels, s, s)

	h2 := s / 2
	z2 := n.conv2.Forward(acts.p1, h2, h2)
	acts.a2 = reluForward(z2)
	acts.p2, acts.arg2 = n.pool.Forward(acts.a2, conv2Channels, h2, h2)

	acts.dropped, acts.mask = n.drop.Forward(acts.p2, n.training, rng)
	logits := n.head.Forward(acts.dropped)
	return logits, acts
}

// BackwardSample backpropagates dLogits for one sample, accumulating
// unscaled per-sample gradients into gs. Parameter values are not modified.
func (n *LesionNet) BackwardSample(acts *Activations, dLogits []float64, gs GradSet) {
	s := n.imageSize
	h2 := s / 2

	dDropped := n.head.Backward(acts.dropped, dLogits, gs[4], gs[5])
	dP2 := n.drop.Backward(dDropped, acts.mask)
	dA2 := n.pool.Backward(dP2, acts.arg2, len(acts.a2))
	dZ2 := reluBackward(dA2, acts.a2)
	dP1 := n.conv2.Backward(acts.p1, h2, h2, dZ2, gs[2], gs[3])
	dA1 := n.pool.Backward(dP1, acts.arg1, len(acts.a1))
	dZ1 := reluBackward(dA1, acts.a1)
	n.conv1.Backward(acts.Input, s, s, dZ1, gs[0], gs[1])
}
