package cpu

import (
	"fmt"
	"math"

	"github.com/drift-ml/drift/internal/tensor"
)

// Add returns a + b with broadcasting.
func (c *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binary("Add", a, b, func(x, y float32) float32 { return x + y })
}

// Sub returns a - b with broadcasting.
func (c *CPUBackend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binary("Sub", a, b, func(x, y float32) float32 { return x - y })
}

// Mul returns a * b with broadcasting.
func (c *CPUBackend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binary("Mul", a, b, func(x, y float32) float32 { return x * y })
}

// Div returns a / b with broadcasting.
func (c *CPUBackend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binary("Div", a, b, func(x, y float32) float32 { return x / y })
}

// binary applies f element-wise over broadcast operands.
func (c *CPUBackend) binary(op string, a, b *tensor.RawTensor, f func(x, y float32) float32) *tensor.RawTensor {
	requireFloat32(op, a, b)

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("cpu: %s: %v", op, err))
	}

	out := mustRaw(outShape, tensor.Float32)
	outData := out.AsFloat32()
	aData := a.AsFloat32()
	bData := b.AsFloat32()

	if !needsBroadcast {
		for i := range outData {
			outData[i] = f(aData[i], bData[i])
		}
		return out
	}

	aStrides := broadcastStrides(a.Shape(), outShape)
	bStrides := broadcastStrides(b.Shape(), outShape)
	outStrides := outShape.ComputeStrides()

	for i := range outData {
		ai, bi := 0, 0
		rem := i
		for d := 0; d < len(outShape); d++ {
			coord := rem / outStrides[d]
			rem %= outStrides[d]
			ai += coord * aStrides[d]
			bi += coord * bStrides[d]
		}
		outData[i] = f(aData[ai], bData[bi])
	}
	return out
}

// broadcastStrides aligns shape's strides to the broadcast output rank,
// with stride 0 on broadcast (size-1 or missing) dimensions.
func broadcastStrides(shape, out tensor.Shape) []int {
	srcStrides := shape.ComputeStrides()
	strides := make([]int, len(out))
	offset := len(out) - len(shape)
	for d := range out {
		src := d - offset
		if src < 0 || shape[src] == 1 {
			strides[d] = 0
		} else {
			strides[d] = srcStrides[src]
		}
	}
	return strides
}

// AddScalar returns x + scalar.
func (c *CPUBackend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s := toFloat32("AddScalar", scalar)
	return c.unary("AddScalar", x, func(v float32) float32 { return v + s })
}

// SubScalar returns x - scalar.
func (c *CPUBackend) SubScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s := toFloat32("SubScalar", scalar)
	return c.unary("SubScalar", x, func(v float32) float32 { return v - s })
}

// MulScalar returns x * scalar.
func (c *CPUBackend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s := toFloat32("MulScalar", scalar)
	return c.unary("MulScalar", x, func(v float32) float32 { return v * s })
}

// DivScalar returns x / scalar.
func (c *CPUBackend) DivScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	s := toFloat32("DivScalar", scalar)
	if s == 0 {
		panic("cpu: DivScalar: division by zero")
	}
	return c.unary("DivScalar", x, func(v float32) float32 { return v / s })
}

func toFloat32(op string, scalar any) float32 {
	switch s := scalar.(type) {
	case float32:
		return s
	case float64:
		return float32(s)
	case int:
		return float32(s)
	default:
		panic(fmt.Sprintf("cpu: %s: unsupported scalar type %T", op, scalar))
	}
}

// Exp returns e^x element-wise.
func (c *CPUBackend) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary("Exp", x, func(v float32) float32 { return float32(math.Exp(float64(v))) })
}

// Sqrt returns the element-wise square root.
func (c *CPUBackend) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary("Sqrt", x, func(v float32) float32 { return float32(math.Sqrt(float64(v))) })
}

// Rsqrt returns the element-wise reciprocal square root.
func (c *CPUBackend) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary("Rsqrt", x, func(v float32) float32 { return float32(1.0 / math.Sqrt(float64(v))) })
}

// Sin returns the element-wise sine.
func (c *CPUBackend) Sin(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary("Sin", x, func(v float32) float32 { return float32(math.Sin(float64(v))) })
}

// Cos returns the element-wise cosine.
func (c *CPUBackend) Cos(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary("Cos", x, func(v float32) float32 { return float32(math.Cos(float64(v))) })
}

// Abs returns the element-wise absolute value.
func (c *CPUBackend) Abs(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary("Abs", x, func(v float32) float32 {
		if v < 0 {
			return -v
		}
		return v
	})
}

// SiLU returns x * sigmoid(x) element-wise.
func (c *CPUBackend) SiLU(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary("SiLU", x, func(v float32) float32 {
		return v * sigmoid(v)
	})
}

// GELU returns the exact Gaussian error linear unit, 0.5*x*(1+erf(x/sqrt2)).
func (c *CPUBackend) GELU(x *tensor.RawTensor) *tensor.RawTensor {
	return c.unary("GELU", x, func(v float32) float32 {
		return float32(0.5 * float64(v) * (1.0 + math.Erf(float64(v)/math.Sqrt2)))
	})
}

func sigmoid(v float32) float32 {
	return float32(1.0 / (1.0 + math.Exp(-float64(v))))
}

// unary applies f element-wise to a Float32 tensor.
func (c *CPUBackend) unary(op string, x *tensor.RawTensor, f func(v float32) float32) *tensor.RawTensor {
	requireFloat32(op, x)
	out := mustRaw(x.Shape(), tensor.Float32)
	outData := out.AsFloat32()
	for i, v := range x.AsFloat32() {
		outData[i] = f(v)
	}
	return out
}
