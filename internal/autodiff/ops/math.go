package ops

import "github.com/drift-ml/drift/internal/tensor"

// unaryKind identifies the element-wise math op being recorded.
type unaryKind int

const (
	unaryExp unaryKind = iota
	unarySqrt
	unaryRsqrt
	unarySin
	unaryCos
	unaryAbs
)

// UnaryMathOp records one of the element-wise math operations.
type UnaryMathOp struct {
	x, out *tensor.RawTensor
	kind   unaryKind
}

// NewExpOp creates the tape entry for out = exp(x).
func NewExpOp(x, out *tensor.RawTensor) *UnaryMathOp {
	return &UnaryMathOp{x: x, out: out, kind: unaryExp}
}

// NewSqrtOp creates the tape entry for out = sqrt(x).
func NewSqrtOp(x, out *tensor.RawTensor) *UnaryMathOp {
	return &UnaryMathOp{x: x, out: out, kind: unarySqrt}
}

// NewRsqrtOp creates the tape entry for out = 1/sqrt(x).
func NewRsqrtOp(x, out *tensor.RawTensor) *UnaryMathOp {
	return &UnaryMathOp{x: x, out: out, kind: unaryRsqrt}
}

// NewSinOp creates the tape entry for out = sin(x).
func NewSinOp(x, out *tensor.RawTensor) *UnaryMathOp {
	return &UnaryMathOp{x: x, out: out, kind: unarySin}
}

// NewCosOp creates the tape entry for out = cos(x).
func NewCosOp(x, out *tensor.RawTensor) *UnaryMathOp {
	return &UnaryMathOp{x: x, out: out, kind: unaryCos}
}

// NewAbsOp creates the tape entry for out = |x|.
func NewAbsOp(x, out *tensor.RawTensor) *UnaryMathOp {
	return &UnaryMathOp{x: x, out: out, kind: unaryAbs}
}

func (op *UnaryMathOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x} }
func (op *UnaryMathOp) Output() *tensor.RawTensor  { return op.out }

func (op *UnaryMathOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	switch op.kind {
	case unaryExp:
		// d exp(x) = exp(x)
		return []*tensor.RawTensor{backend.Mul(grad, op.out)}
	case unarySqrt:
		// d sqrt(x) = 0.5 / sqrt(x)
		return []*tensor.RawTensor{backend.Div(backend.MulScalar(grad, float32(0.5)), op.out)}
	case unaryRsqrt:
		// d x^(-1/2) = -0.5 * x^(-3/2) = -0.5 * out^3
		cube := backend.Mul(op.out, backend.Mul(op.out, op.out))
		return []*tensor.RawTensor{backend.Mul(grad, backend.MulScalar(cube, float32(-0.5)))}
	case unarySin:
		return []*tensor.RawTensor{backend.Mul(grad, backend.Cos(op.x))}
	case unaryCos:
		return []*tensor.RawTensor{negate(backend.Mul(grad, backend.Sin(op.x)), backend)}
	case unaryAbs:
		return []*tensor.RawTensor{backend.Mul(grad, signOf(op.x))}
	default:
		panic("ops: UnaryMathOp: unknown kind")
	}
}

// signOf returns sign(x) element-wise with sign(0) = 0.
func signOf(x *tensor.RawTensor) *tensor.RawTensor {
	out := zerosLike(x)
	outData := out.AsFloat32()
	for i, v := range x.AsFloat32() {
		switch {
		case v > 0:
			outData[i] = 1
		case v < 0:
			outData[i] = -1
		}
	}
	return out
}
