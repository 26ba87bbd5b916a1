package ops

import "github.com/drift-ml/drift/internal/tensor"

// SoftmaxOp records a softmax along a dimension.
type SoftmaxOp struct {
	x, out *tensor.RawTensor
	dim    int
}

// NewSoftmaxOp creates the tape entry for out = softmax(x, dim).
// dim must already be resolved to a non-negative axis.
func NewSoftmaxOp(x, out *tensor.RawTensor, dim int) *SoftmaxOp {
	return &SoftmaxOp{x: x, out: out, dim: dim}
}

func (op *SoftmaxOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x} }
func (op *SoftmaxOp) Output() *tensor.RawTensor  { return op.out }

func (op *SoftmaxOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	// dx = out * (grad - sum(grad*out, dim))
	weighted := backend.Mul(grad, op.out)
	total := backend.SumDim(weighted, op.dim, true)
	return []*tensor.RawTensor{backend.Mul(op.out, backend.Sub(grad, total))}
}
