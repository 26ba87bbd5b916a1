package nn

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// Linear is a fully connected layer: output = input @ weight + bias.
//
// Input shape:  [batch, in_features]
// Weight shape: [in_features, out_features]
// Bias shape:   [out_features]
// Output shape: [batch, out_features]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	useBias     bool

	weight *Parameter[B]
	bias   *Parameter[B] // nil without bias

	backend B
}

// NewLinear creates a fully connected layer with Xavier-initialized
// weights and zero bias.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, useBias bool, backend B) *Linear[B] {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("linear: invalid features in=%d, out=%d", inFeatures, outFeatures))
	}

	weight := Xavier(inFeatures, outFeatures, tensor.Shape{inFeatures, outFeatures}, backend)
	weightParam := NewParameter("linear.weight", weight)

	var biasParam *Parameter[B]
	if useBias {
		biasParam = NewParameter("linear.bias", Zeros(tensor.Shape{outFeatures}, backend))
	}

	return &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		useBias:     useBias,
		weight:      weightParam,
		bias:        biasParam,
		backend:     backend,
	}
}

// Forward computes input @ weight (+ bias).
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("linear: expected 2D input [N,F], got %dD", len(shape)))
	}
	if shape[1] != l.inFeatures {
		panic(fmt.Sprintf("linear: input features %d != expected %d", shape[1], l.inFeatures))
	}

	output := input.MatMul(l.weight.Tensor())
	if l.useBias {
		output = output.Add(l.bias.Tensor().Reshape(1, l.outFeatures))
	}
	return output
}

// Parameters returns all trainable parameters.
func (l *Linear[B]) Parameters() []*Parameter[B] {
	if l.useBias {
		return []*Parameter[B]{l.weight, l.bias}
	}
	return []*Parameter[B]{l.weight}
}

// String returns a string representation of the layer.
func (l *Linear[B]) String() string {
	return fmt.Sprintf("Linear(in_features=%d, out_features=%d, bias=%v)", l.inFeatures, l.outFeatures, l.useBias)
}
