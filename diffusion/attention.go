package diffusion

import (
	"fmt"
	"math"

	"github.com/drift-ml/drift/internal/nn"
	"github.com/drift-ml/drift/internal/tensor"
)

// Default attention geometry.
const (
	attnHeads   = 4
	attnDimHead = 32
)

// Attention is full softmax self-attention over the spatial positions of
// an NCHW feature map. Queries, keys and values come from a single 1x1
// convolution; the similarity softmax is max-shifted for stability.
type Attention[B tensor.Backend] struct {
	heads   int
	dimHead int
	scale   float32

	toQKV *nn.Conv2D[B] // dim -> heads*dimHead*3, no bias
	toOut *nn.Conv2D[B] // heads*dimHead -> dim
}

// NewAttention creates a full self-attention layer over dim channels.
func NewAttention[B tensor.Backend](dim int, backend B) *Attention[B] {
	hidden := attnHeads * attnDimHead
	return &Attention[B]{
		heads:   attnHeads,
		dimHead: attnDimHead,
		scale:   float32(1 / math.Sqrt(attnDimHead)),
		toQKV:   nn.NewConv2D(dim, hidden*3, 1, 1, 1, 0, 1, false, backend),
		toOut:   nn.NewConv2D(hidden, dim, 1, 1, 1, 0, 1, true, backend),
	}
}

// Forward computes attention over all h*w positions.
// Input and output: [batch, dim, height, width].
func (a *Attention[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	q, k, v, height, width := splitHeads(x, a.toQKV, a.heads, a.dimHead)
	batch := x.Shape()[0]

	q = q.MulScalar(a.scale)

	// sim[b,h,i,j] = <q_i, k_j>
	sim := q.Transpose(0, 1, 3, 2).BatchMatMul(k)
	attn := sim.Softmax(-1)

	// out[b,h,i,d] = sum_j attn[b,h,i,j] * v[b,h,d,j]
	out := attn.BatchMatMul(v.Transpose(0, 1, 3, 2))
	out = out.Transpose(0, 1, 3, 2).Reshape(batch, a.heads*a.dimHead, height, width)
	return a.toOut.Forward(out)
}

// Parameters returns all trainable parameters.
func (a *Attention[B]) Parameters() []*nn.Parameter[B] {
	params := a.toQKV.Parameters()
	return append(params, a.toOut.Parameters()...)
}

// LinearAttention is the linear-complexity attention variant: softmax is
// applied to queries over the feature axis and keys over the position
// axis, the context matrix k v^T is aggregated once per head, and the
// projection is followed by GroupNorm(1).
//
// Reference: "Efficient Attention" (Shen et al., 2018).
type LinearAttention[B tensor.Backend] struct {
	heads   int
	dimHead int
	scale   float32

	toQKV   *nn.Conv2D[B] // dim -> heads*dimHead*3, no bias
	toOut   *nn.Conv2D[B] // heads*dimHead -> dim
	outNorm *nn.GroupNorm[B]
}

// NewLinearAttention creates a linear attention layer over dim channels.
func NewLinearAttention[B tensor.Backend](dim int, backend B) *LinearAttention[B] {
	hidden := attnHeads * attnDimHead
	return &LinearAttention[B]{
		heads:   attnHeads,
		dimHead: attnDimHead,
		scale:   float32(1 / math.Sqrt(attnDimHead)),
		toQKV:   nn.NewConv2D(dim, hidden*3, 1, 1, 1, 0, 1, false, backend),
		toOut:   nn.NewConv2D(hidden, dim, 1, 1, 1, 0, 1, true, backend),
		outNorm: nn.NewGroupNorm(1, dim, backend),
	}
}

// Forward computes linear attention over all h*w positions.
// Input and output: [batch, dim, height, width].
func (a *LinearAttention[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	q, k, v, height, width := splitHeads(x, a.toQKV, a.heads, a.dimHead)
	batch := x.Shape()[0]

	q = q.Softmax(-2).MulScalar(a.scale)
	k = k.Softmax(-1)

	// context[b,h,d,e] = sum_n k[b,h,d,n] * v[b,h,e,n]
	context := k.BatchMatMul(v.Transpose(0, 1, 3, 2))

	// out[b,h,e,n] = sum_d context[b,h,d,e] * q[b,h,d,n]
	out := context.Transpose(0, 1, 3, 2).BatchMatMul(q)
	out = out.Reshape(batch, a.heads*a.dimHead, height, width)
	return a.outNorm.Forward(a.toOut.Forward(out))
}

// Parameters returns all trainable parameters.
func (a *LinearAttention[B]) Parameters() []*nn.Parameter[B] {
	params := a.toQKV.Parameters()
	params = append(params, a.toOut.Parameters()...)
	return append(params, a.outNorm.Parameters()...)
}

// splitHeads projects x to queries, keys and values laid out as
// [batch, heads, dimHead, h*w].
func splitHeads[B tensor.Backend](
	x *tensor.Tensor[float32, B],
	toQKV *nn.Conv2D[B],
	heads, dimHead int,
) (q, k, v *tensor.Tensor[float32, B], height, width int) {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("diffusion: attention expects 4D input, got %dD", len(shape)))
	}
	batch, height, width := shape[0], shape[2], shape[3]
	n := height * width

	qkv := toQKV.Forward(x).Chunk(3, 1)
	q = qkv[0].Reshape(batch, heads, dimHead, n)
	k = qkv[1].Reshape(batch, heads, dimHead, n)
	v = qkv[2].Reshape(batch, heads, dimHead, n)
	return q, k, v, height, width
}
