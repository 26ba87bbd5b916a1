package ops

import "github.com/drift-ml/drift/internal/tensor"

// ReshapeOp records a shape change (also covers squeeze/unsqueeze).
type ReshapeOp struct {
	x, out *tensor.RawTensor
}

// NewReshapeOp creates the tape entry for out = reshape(x).
func NewReshapeOp(x, out *tensor.RawTensor) *ReshapeOp {
	return &ReshapeOp{x: x, out: out}
}

func (op *ReshapeOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x} }
func (op *ReshapeOp) Output() *tensor.RawTensor  { return op.out }

func (op *ReshapeOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.Reshape(grad, op.x.Shape())}
}

// TransposeOp records an axis permutation.
type TransposeOp struct {
	x, out *tensor.RawTensor
	axes   []int
}

// NewTransposeOp creates the tape entry for out = transpose(x, axes).
// axes must be the resolved permutation actually applied.
func NewTransposeOp(x, out *tensor.RawTensor, axes []int) *TransposeOp {
	return &TransposeOp{x: x, out: out, axes: axes}
}

func (op *TransposeOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x} }
func (op *TransposeOp) Output() *tensor.RawTensor  { return op.out }

func (op *TransposeOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inverse := make([]int, len(op.axes))
	for i, a := range op.axes {
		inverse[a] = i
	}
	return []*tensor.RawTensor{backend.Transpose(grad, inverse...)}
}
