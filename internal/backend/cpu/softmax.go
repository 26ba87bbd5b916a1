package cpu

import (
	"math"

	"github.com/drift-ml/drift/internal/tensor"
)

// Softmax normalizes along dim with the max-shift trick for stability.
func (c *CPUBackend) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	requireFloat32("Softmax", x)

	shape := x.Shape()
	dim = normalizeDim(dim, len(shape), "Softmax")

	size := shape[dim]
	inner := 1
	for d := dim + 1; d < len(shape); d++ {
		inner *= shape[d]
	}
	outer := shape.NumElements() / (size * inner)

	out := mustRaw(shape, tensor.Float32)
	inData, outData := x.AsFloat32(), out.AsFloat32()

	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			base := o*size*inner + in

			maxV := inData[base]
			for i := 1; i < size; i++ {
				if v := inData[base+i*inner]; v > maxV {
					maxV = v
				}
			}

			var sum float32
			for i := 0; i < size; i++ {
				e := float32(math.Exp(float64(inData[base+i*inner] - maxV)))
				outData[base+i*inner] = e
				sum += e
			}

			inv := 1 / sum
			for i := 0; i < size; i++ {
				outData[base+i*inner] *= inv
			}
		}
	}
	return out
}
