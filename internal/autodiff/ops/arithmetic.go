package ops

import "github.com/drift-ml/drift/internal/tensor"

// AddOp records a broadcast element-wise addition.
type AddOp struct {
	a, b, out *tensor.RawTensor
}

// NewAddOp creates the tape entry for out = a + b.
func NewAddOp(a, b, out *tensor.RawTensor) *AddOp {
	return &AddOp{a: a, b: b, out: out}
}

func (op *AddOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.a, op.b} }
func (op *AddOp) Output() *tensor.RawTensor  { return op.out }

func (op *AddOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(grad, op.a.Shape(), backend),
		reduceBroadcast(grad, op.b.Shape(), backend),
	}
}

// SubOp records a broadcast element-wise subtraction.
type SubOp struct {
	a, b, out *tensor.RawTensor
}

// NewSubOp creates the tape entry for out = a - b.
func NewSubOp(a, b, out *tensor.RawTensor) *SubOp {
	return &SubOp{a: a, b: b, out: out}
}

func (op *SubOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.a, op.b} }
func (op *SubOp) Output() *tensor.RawTensor  { return op.out }

func (op *SubOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(grad, op.a.Shape(), backend),
		reduceBroadcast(negate(grad, backend), op.b.Shape(), backend),
	}
}

// MulOp records a broadcast element-wise multiplication.
type MulOp struct {
	a, b, out *tensor.RawTensor
}

// NewMulOp creates the tape entry for out = a * b.
func NewMulOp(a, b, out *tensor.RawTensor) *MulOp {
	return &MulOp{a: a, b: b, out: out}
}

func (op *MulOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.a, op.b} }
func (op *MulOp) Output() *tensor.RawTensor  { return op.out }

func (op *MulOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(backend.Mul(grad, op.b), op.a.Shape(), backend),
		reduceBroadcast(backend.Mul(grad, op.a), op.b.Shape(), backend),
	}
}

// DivOp records a broadcast element-wise division.
type DivOp struct {
	a, b, out *tensor.RawTensor
}

// NewDivOp creates the tape entry for out = a / b.
func NewDivOp(a, b, out *tensor.RawTensor) *DivOp {
	return &DivOp{a: a, b: b, out: out}
}

func (op *DivOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.a, op.b} }
func (op *DivOp) Output() *tensor.RawTensor  { return op.out }

func (op *DivOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	// d/da (a/b) = 1/b; d/db (a/b) = -a/b^2 = -out/b
	gradA := backend.Div(grad, op.b)
	gradB := negate(backend.Mul(grad, backend.Div(op.out, op.b)), backend)
	return []*tensor.RawTensor{
		reduceBroadcast(gradA, op.a.Shape(), backend),
		reduceBroadcast(gradB, op.b.Shape(), backend),
	}
}

// ScalarOp records x op scalar for the four scalar arithmetic forms.
type ScalarOp struct {
	x, out *tensor.RawTensor
	scalar float32
	kind   scalarKind
}

type scalarKind int

const (
	scalarAdd scalarKind = iota
	scalarSub
	scalarMul
	scalarDiv
)

// NewAddScalarOp creates the tape entry for out = x + s.
func NewAddScalarOp(x, out *tensor.RawTensor, s float32) *ScalarOp {
	return &ScalarOp{x: x, out: out, scalar: s, kind: scalarAdd}
}

// NewSubScalarOp creates the tape entry for out = x - s.
func NewSubScalarOp(x, out *tensor.RawTensor, s float32) *ScalarOp {
	return &ScalarOp{x: x, out: out, scalar: s, kind: scalarSub}
}

// NewMulScalarOp creates the tape entry for out = x * s.
func NewMulScalarOp(x, out *tensor.RawTensor, s float32) *ScalarOp {
	return &ScalarOp{x: x, out: out, scalar: s, kind: scalarMul}
}

// NewDivScalarOp creates the tape entry for out = x / s.
func NewDivScalarOp(x, out *tensor.RawTensor, s float32) *ScalarOp {
	return &ScalarOp{x: x, out: out, scalar: s, kind: scalarDiv}
}

func (op *ScalarOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x} }
func (op *ScalarOp) Output() *tensor.RawTensor  { return op.out }

func (op *ScalarOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	switch op.kind {
	case scalarAdd, scalarSub:
		return []*tensor.RawTensor{grad.Clone()}
	case scalarMul:
		return []*tensor.RawTensor{backend.MulScalar(grad, op.scalar)}
	case scalarDiv:
		return []*tensor.RawTensor{backend.DivScalar(grad, op.scalar)}
	default:
		panic("ops: ScalarOp: unknown kind")
	}
}
