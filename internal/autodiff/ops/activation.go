package ops

import (
	"math"

	"github.com/drift-ml/drift/internal/tensor"
)

// SiLUOp records out = x * sigmoid(x).
type SiLUOp struct {
	x, out *tensor.RawTensor
}

// NewSiLUOp creates the tape entry for the SiLU activation.
func NewSiLUOp(x, out *tensor.RawTensor) *SiLUOp {
	return &SiLUOp{x: x, out: out}
}

func (op *SiLUOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x} }
func (op *SiLUOp) Output() *tensor.RawTensor  { return op.out }

func (op *SiLUOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	// d silu(x) = s(x) + x*s(x)*(1-s(x))
	deriv := zerosLike(op.x)
	derivData := deriv.AsFloat32()
	for i, v := range op.x.AsFloat32() {
		s := float32(1.0 / (1.0 + math.Exp(-float64(v))))
		derivData[i] = s + v*s*(1-s)
	}
	return []*tensor.RawTensor{backend.Mul(grad, deriv)}
}

// GELUOp records the exact (erf-based) GELU activation.
type GELUOp struct {
	x, out *tensor.RawTensor
}

// NewGELUOp creates the tape entry for the GELU activation.
func NewGELUOp(x, out *tensor.RawTensor) *GELUOp {
	return &GELUOp{x: x, out: out}
}

func (op *GELUOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x} }
func (op *GELUOp) Output() *tensor.RawTensor  { return op.out }

const invSqrt2Pi = 0.3989422804014327

func (op *GELUOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	// d gelu(x) = Phi(x) + x*phi(x), with Phi the normal CDF and phi its density
	deriv := zerosLike(op.x)
	derivData := deriv.AsFloat32()
	for i, v := range op.x.AsFloat32() {
		x := float64(v)
		cdf := 0.5 * (1.0 + math.Erf(x/math.Sqrt2))
		pdf := invSqrt2Pi * math.Exp(-0.5*x*x)
		derivData[i] = float32(cdf + x*pdf)
	}
	return []*tensor.RawTensor{backend.Mul(grad, deriv)}
}
