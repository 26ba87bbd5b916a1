package ops

import "github.com/drift-ml/drift/internal/tensor"

// MatMulOp records a 2-D matrix product.
type MatMulOp struct {
	a, b, out *tensor.RawTensor
}

// NewMatMulOp creates the tape entry for out = a @ b.
func NewMatMulOp(a, b, out *tensor.RawTensor) *MatMulOp {
	return &MatMulOp{a: a, b: b, out: out}
}

func (op *MatMulOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.a, op.b} }
func (op *MatMulOp) Output() *tensor.RawTensor  { return op.out }

func (op *MatMulOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	// dA = dOut @ B^T, dB = A^T @ dOut
	return []*tensor.RawTensor{
		backend.MatMul(grad, backend.Transpose(op.b)),
		backend.MatMul(backend.Transpose(op.a), grad),
	}
}

// BatchMatMulOp records a batched matrix product over the trailing two dims.
type BatchMatMulOp struct {
	a, b, out *tensor.RawTensor
}

// NewBatchMatMulOp creates the tape entry for out = a @ b (batched).
func NewBatchMatMulOp(a, b, out *tensor.RawTensor) *BatchMatMulOp {
	return &BatchMatMulOp{a: a, b: b, out: out}
}

func (op *BatchMatMulOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.a, op.b} }
func (op *BatchMatMulOp) Output() *tensor.RawTensor  { return op.out }

func (op *BatchMatMulOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		backend.BatchMatMul(grad, swapLastTwo(op.b, backend)),
		backend.BatchMatMul(swapLastTwo(op.a, backend), grad),
	}
}

// swapLastTwo transposes the trailing two dims, leaving batch dims alone.
func swapLastTwo(t *tensor.RawTensor, backend tensor.Backend) *tensor.RawTensor {
	rank := len(t.Shape())
	axes := make([]int, rank)
	for i := range axes {
		axes[i] = i
	}
	axes[rank-2], axes[rank-1] = axes[rank-1], axes[rank-2]
	return backend.Transpose(t, axes...)
}
