package nn

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// activationBackend is the optional contract a backend provides for the
// activations that sit outside the core Backend interface.
type activationBackend interface {
	SiLU(x *tensor.RawTensor) *tensor.RawTensor
	GELU(x *tensor.RawTensor) *tensor.RawTensor
}

func activations[B tensor.Backend](backend B) activationBackend {
	ab, ok := any(backend).(activationBackend)
	if !ok {
		panic(fmt.Sprintf("nn: backend %s does not implement SiLU/GELU", backend.Name()))
	}
	return ab
}

// SiLU is the sigmoid linear unit activation, x * sigmoid(x).
type SiLU[B tensor.Backend] struct{}

// NewSiLU creates a SiLU activation module.
func NewSiLU[B tensor.Backend]() *SiLU[B] {
	return &SiLU[B]{}
}

// Forward applies the activation element-wise.
func (s *SiLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	raw := activations(input.Backend()).SiLU(input.Raw())
	return tensor.New[float32, B](raw, input.Backend())
}

// Parameters returns an empty slice; SiLU has no trainable parameters.
func (s *SiLU[B]) Parameters() []*Parameter[B] {
	return nil
}

// GELU is the Gaussian error linear unit activation.
type GELU[B tensor.Backend] struct{}

// NewGELU creates a GELU activation module.
func NewGELU[B tensor.Backend]() *GELU[B] {
	return &GELU[B]{}
}

// Forward applies the activation element-wise.
func (g *GELU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	raw := activations(input.Backend()).GELU(input.Raw())
	return tensor.New[float32, B](raw, input.Backend())
}

// Parameters returns an empty slice; GELU has no trainable parameters.
func (g *GELU[B]) Parameters() []*Parameter[B] {
	return nil
}

// Identity passes its input through unchanged. Useful as a structural
// placeholder where a module slot must be filled.
type Identity[B tensor.Backend] struct{}

// NewIdentity creates an Identity module.
func NewIdentity[B tensor.Backend]() *Identity[B] {
	return &Identity[B]{}
}

// Forward returns the input unchanged.
func (i *Identity[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return input
}

// Parameters returns an empty slice.
func (i *Identity[B]) Parameters() []*Parameter[B] {
	return nil
}
