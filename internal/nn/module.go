// Package nn implements neural network modules for the Drift ML framework.
//
// It provides the building blocks the diffusion model is assembled from:
//   - Module interface: base interface for all NN components
//   - Parameter: trainable parameters with gradient tracking
//   - Linear, Conv2D, ConvTranspose2D, GroupNorm
//   - Activations: SiLU, GELU
//
// Design inspired by PyTorch's nn.Module but adapted for Go generics.
package nn

import (
	"github.com/drift-ml/drift/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Every module computes an output from an input and exposes its trainable
// parameters (an empty slice for parameter-free modules like activations).
//
// Type parameter B must satisfy the tensor.Backend interface.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module,
	// including nested module parameters.
	Parameters() []*Parameter[B]
}
