package cpu

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// Greater returns a Bool tensor with a > b (broadcasting).
func (c *CPUBackend) Greater(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.compare("Greater", a, b, func(x, y float32) bool { return x > y })
}

// Lower returns a Bool tensor with a < b (broadcasting).
func (c *CPUBackend) Lower(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.compare("Lower", a, b, func(x, y float32) bool { return x < y })
}

func (c *CPUBackend) compare(op string, a, b *tensor.RawTensor, f func(x, y float32) bool) *tensor.RawTensor {
	requireFloat32(op, a, b)

	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("cpu: %s: %v", op, err))
	}

	out := mustRaw(outShape, tensor.Bool)
	outData := out.AsBool()
	aData, bData := a.AsFloat32(), b.AsFloat32()

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

// Where selects x where cond is true and y otherwise.
// All three operands must share a shape.
func (c *CPUBackend) Where(cond, x, y *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("Where", x, y)
	if cond.DType() != tensor.Bool {
		panic(fmt.Sprintf("cpu: Where: cond dtype is %s, not bool", cond.DType()))
	}
	if !cond.Shape().Equal(x.Shape()) || !x.Shape().Equal(y.Shape()) {
		panic(fmt.Sprintf("cpu: Where: shape mismatch: cond %v, x %v, y %v", cond.Shape(), x.Shape(), y.Shape()))
	}

	out := mustRaw(x.Shape(), tensor.Float32)
	outData := out.AsFloat32()
	condData, xData, yData := cond.AsBool(), x.AsFloat32(), y.AsFloat32()
	for i := range outData {
		if condData[i] {
			outData[i] = xData[i]
		} else {
			outData[i] = yData[i]
		}
	}
	return out
}
