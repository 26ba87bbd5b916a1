package cpu

import (
	"github.com/drift-ml/drift/internal/tensor"
)

// Sum reduces all elements to a 0-D tensor.
func (c *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("Sum", x)
	out := mustRaw(tensor.Shape{}, tensor.Float32)
	var sum float32
	for _, v := range x.AsFloat32() {
		sum += v
	}
	out.AsFloat32()[0] = sum
	return out
}

// Mean reduces all elements to their 0-D mean.
func (c *CPUBackend) Mean(x *tensor.RawTensor) *tensor.RawTensor {
	out := c.Sum(x)
	out.AsFloat32()[0] /= float32(x.NumElements())
	return out
}

// SumDim sums along dim. With keepDim the reduced dim stays with size 1.
func (c *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	requireFloat32("SumDim", x)

	shape := x.Shape()
	dim = normalizeDim(dim, len(shape), "SumDim")

	size := shape[dim]
	inner := 1
	for d := dim + 1; d < len(shape); d++ {
		inner *= shape[d]
	}
	outer := shape.NumElements() / (size * inner)

	outShape := shape.Clone()
	outShape[dim] = 1
	out := mustRaw(outShape, tensor.Float32)

	inData, outData := x.AsFloat32(), out.AsFloat32()
	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			var sum float32
			base := o*size*inner + in
			for i := 0; i < size; i++ {
				sum += inData[base+i*inner]
			}
			outData[o*inner+in] = sum
		}
	}

	if !keepDim {
		return c.Squeeze(out, dim)
	}
	return out
}

// MeanDim averages along dim. With keepDim the reduced dim stays with size 1.
func (c *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	size := shape[normalizeDim(dim, len(shape), "MeanDim")]
	out := c.SumDim(x, dim, keepDim)
	data := out.AsFloat32()
	inv := 1 / float32(size)
	for i := range data {
		data[i] *= inv
	}
	return out
}
