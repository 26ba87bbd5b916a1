package nn

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// GroupNorm normalizes channel groups of NCHW activations.
//
// The channels are split into numGroups groups; mean and variance are
// computed per sample per group over (channels/groups, H, W), and the
// normalized result is scaled and shifted by learned per-channel weight
// and bias. numGroups == 1 gives LayerNorm-like behavior over the whole
// feature map.
//
// Built entirely from differentiable tensor ops, so gradients flow
// through the statistics as well.
type GroupNorm[B tensor.Backend] struct {
	numGroups   int
	numChannels int
	eps         float32

	weight *Parameter[B] // [channels], init 1
	bias   *Parameter[B] // [channels], init 0

	backend B
}

// NewGroupNorm creates a GroupNorm layer. numGroups must divide numChannels.
func NewGroupNorm[B tensor.Backend](numGroups, numChannels int, backend B) *GroupNorm[B] {
	if numGroups <= 0 || numChannels <= 0 || numChannels%numGroups != 0 {
		panic(fmt.Sprintf("groupnorm: groups=%d must divide channels=%d", numGroups, numChannels))
	}
	return &GroupNorm[B]{
		numGroups:   numGroups,
		numChannels: numChannels,
		eps:         1e-5,
		weight:      NewParameter("groupnorm.weight", Ones(tensor.Shape{numChannels}, backend)),
		bias:        NewParameter("groupnorm.bias", Zeros(tensor.Shape{numChannels}, backend)),
		backend:     backend,
	}
}

// Forward normalizes the input per sample per group.
//
// Input and output: [batch, channels, height, width].
func (g *GroupNorm[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("groupnorm: expected 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[1] != g.numChannels {
		panic(fmt.Sprintf("groupnorm: input channels %d != expected %d", shape[1], g.numChannels))
	}

	batch, channels, height, width := shape[0], shape[1], shape[2], shape[3]
	groupSize := (channels / g.numGroups) * height * width

	grouped := input.Reshape(batch, g.numGroups, groupSize)
	mean := grouped.MeanDim(2, true)
	centered := grouped.Sub(mean)
	variance := centered.Mul(centered).MeanDim(2, true)
	normalized := centered.Mul(variance.AddScalar(g.eps).Rsqrt())

	out := normalized.Reshape(batch, channels, height, width)
	out = out.Mul(g.weight.Tensor().Reshape(1, channels, 1, 1))
	return out.Add(g.bias.Tensor().Reshape(1, channels, 1, 1))
}

// Parameters returns the learned scale and shift.
func (g *GroupNorm[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{g.weight, g.bias}
}

// String returns a string representation of the layer.
func (g *GroupNorm[B]) String() string {
	return fmt.Sprintf("GroupNorm(num_groups=%d, num_channels=%d, eps=%g)", g.numGroups, g.numChannels, g.eps)
}
