package ops

import "github.com/drift-ml/drift/internal/tensor"

// WhereOp records a conditional selection. The condition is a Bool tensor
// and receives no gradient; only the two branches are differentiable.
type WhereOp struct {
	cond, x, y, out *tensor.RawTensor
}

// NewWhereOp creates the tape entry for out = where(cond, x, y).
func NewWhereOp(cond, x, y, out *tensor.RawTensor) *WhereOp {
	return &WhereOp{cond: cond, x: x, y: y, out: out}
}

func (op *WhereOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x, op.y} }
func (op *WhereOp) Output() *tensor.RawTensor  { return op.out }

func (op *WhereOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	zeros := zerosLike(grad)
	return []*tensor.RawTensor{
		backend.Where(op.cond, grad, zeros),
		backend.Where(op.cond, zeros, grad),
	}
}
