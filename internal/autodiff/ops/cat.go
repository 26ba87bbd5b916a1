package ops

import "github.com/drift-ml/drift/internal/tensor"

// CatOp records a concatenation along a dimension.
type CatOp struct {
	inputs []*tensor.RawTensor
	out    *tensor.RawTensor
	dim    int
}

// NewCatOp creates the tape entry for out = cat(inputs, dim).
// dim must already be resolved to a non-negative axis.
func NewCatOp(inputs []*tensor.RawTensor, out *tensor.RawTensor, dim int) *CatOp {
	return &CatOp{inputs: inputs, out: out, dim: dim}
}

func (op *CatOp) Inputs() []*tensor.RawTensor { return op.inputs }
func (op *CatOp) Output() *tensor.RawTensor  { return op.out }

func (op *CatOp) Backward(grad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	outShape := op.out.Shape()
	catSize := outShape[op.dim]

	inner := 1
	for d := op.dim + 1; d < len(outShape); d++ {
		inner *= outShape[d]
	}
	outer := outShape.NumElements() / (catSize * inner)

	gradData := grad.AsFloat32()
	grads := make([]*tensor.RawTensor, len(op.inputs))

	offset := 0
	for i, in := range op.inputs {
		size := in.Shape()[op.dim]
		block := size * inner
		g := zerosLike(in)
		gData := g.AsFloat32()
		for o := 0; o < outer; o++ {
			src := gradData[o*catSize*inner+offset*inner:]
			copy(gData[o*block:(o+1)*block], src[:block])
		}
		grads[i] = g
		offset += size
	}
	return grads
}

// ChunkOp records an even split along a dimension. It is the tape's only
// multi-output operation.
type ChunkOp struct {
	x    *tensor.RawTensor
	outs []*tensor.RawTensor
	dim  int
}

// NewChunkOp creates the tape entry for outs = chunk(x, len(outs), dim).
// dim must already be resolved to a non-negative axis.
func NewChunkOp(x *tensor.RawTensor, outs []*tensor.RawTensor, dim int) *ChunkOp {
	return &ChunkOp{x: x, outs: outs, dim: dim}
}

func (op *ChunkOp) Inputs() []*tensor.RawTensor  { return []*tensor.RawTensor{op.x} }
func (op *ChunkOp) Outputs() []*tensor.RawTensor { return op.outs }

func (op *ChunkOp) BackwardMulti(outputGrads []*tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	pieces := make([]*tensor.RawTensor, len(op.outs))
	for i, g := range outputGrads {
		if g == nil {
			g = zerosLike(op.outs[i])
		}
		pieces[i] = g
	}
	return []*tensor.RawTensor{backend.Cat(pieces, op.dim)}
}
