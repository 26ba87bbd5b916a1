package diffusion

import (
	"fmt"
	"math"

	"github.com/drift-ml/drift/internal/nn"
	"github.com/drift-ml/drift/internal/tensor"
)

// TimeEmbedding maps integer timesteps to conditioning vectors.
//
// Timesteps are first expanded with fixed sinusoidal features over a
// geometric frequency ladder (sin for the first half of the channels,
// cos for the second), then projected through a two-layer MLP with GELU
// to 4*dim features.
type TimeEmbedding[B tensor.Backend] struct {
	dim    int
	outDim int
	freqs  []float32 // precomputed frequency ladder, len dim/2

	linear1 *nn.Linear[B]
	act     *nn.GELU[B]
	linear2 *nn.Linear[B]

	backend B
}

// NewTimeEmbedding creates a time embedding with sinusoidal dim channels
// projected to 4*dim. dim must be even and at least 4.
func NewTimeEmbedding[B tensor.Backend](dim int, backend B) *TimeEmbedding[B] {
	if dim < 4 || dim%2 != 0 {
		panic(fmt.Sprintf("diffusion: time embedding dim must be even and >= 4, got %d", dim))
	}

	half := dim / 2
	// freq_i = exp(-i * log(10000)/(half-1))
	scale := math.Log(10000) / float64(half-1)
	freqs := make([]float32, half)
	for i := range freqs {
		freqs[i] = float32(math.Exp(-float64(i) * scale))
	}

	outDim := dim * 4
	return &TimeEmbedding[B]{
		dim:     dim,
		outDim:  outDim,
		freqs:   freqs,
		linear1: nn.NewLinear(dim, outDim, true, backend),
		act:     nn.NewGELU[B](),
		linear2: nn.NewLinear(outDim, outDim, true, backend),
		backend: backend,
	}
}

// OutDim returns the conditioning vector width (4*dim).
func (e *TimeEmbedding[B]) OutDim() int {
	return e.outDim
}

// Forward embeds one timestep per sample into a [batch, 4*dim] tensor.
func (e *TimeEmbedding[B]) Forward(t []int) *tensor.Tensor[float32, B] {
	half := e.dim / 2
	data := make([]float32, len(t)*e.dim)
	for i, ti := range t {
		row := data[i*e.dim:]
		for j, f := range e.freqs {
			arg := float64(ti) * float64(f)
			row[j] = float32(math.Sin(arg))
			row[half+j] = float32(math.Cos(arg))
		}
	}

	emb, err := tensor.FromSlice(data, tensor.Shape{len(t), e.dim}, e.backend)
	if err != nil {
		panic(fmt.Sprintf("diffusion: time embedding: %v", err))
	}

	h := e.linear1.Forward(emb)
	h = e.act.Forward(h)
	return e.linear2.Forward(h)
}

// Parameters returns the MLP parameters.
func (e *TimeEmbedding[B]) Parameters() []*nn.Parameter[B] {
	params := e.linear1.Parameters()
	return append(params, e.linear2.Parameters()...)
}
