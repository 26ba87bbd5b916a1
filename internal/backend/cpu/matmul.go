package cpu

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// MatMul returns the 2-D matrix product a @ b.
func (c *CPUBackend) MatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("MatMul", a, b)

	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) != 2 || len(bShape) != 2 {
		panic(fmt.Sprintf("cpu: MatMul: expected 2-D operands, got %v and %v", aShape, bShape))
	}
	if aShape[1] != bShape[0] {
		panic(fmt.Sprintf("cpu: MatMul: inner dims mismatch: %v @ %v", aShape, bShape))
	}

	m, k, n := aShape[0], aShape[1], bShape[1]
	out := mustRaw(tensor.Shape{m, n}, tensor.Float32)
	matmulKernel(a.AsFloat32(), b.AsFloat32(), out.AsFloat32(), m, k, n)
	return out
}

// BatchMatMul multiplies the trailing two dims; all leading dims are batch
// and must match exactly between the operands.
func (c *CPUBackend) BatchMatMul(a, b *tensor.RawTensor) *tensor.RawTensor {
	requireFloat32("BatchMatMul", a, b)

	aShape, bShape := a.Shape(), b.Shape()
	if len(aShape) < 3 || len(aShape) != len(bShape) {
		panic(fmt.Sprintf("cpu: BatchMatMul: expected matching >=3-D operands, got %v and %v", aShape, bShape))
	}

	rank := len(aShape)
	batch := 1
	for d := 0; d < rank-2; d++ {
		if aShape[d] != bShape[d] {
			panic(fmt.Sprintf("cpu: BatchMatMul: batch dims mismatch: %v vs %v", aShape, bShape))
		}
		batch *= aShape[d]
	}

	m, k, n := aShape[rank-2], aShape[rank-1], bShape[rank-1]
	if bShape[rank-2] != k {
		panic(fmt.Sprintf("cpu: BatchMatMul: inner dims mismatch: %v @ %v", aShape, bShape))
	}

	outShape := aShape.Clone()
	outShape[rank-1] = n
	out := mustRaw(outShape, tensor.Float32)

	aData, bData, outData := a.AsFloat32(), b.AsFloat32(), out.AsFloat32()
	for i := 0; i < batch; i++ {
		matmulKernel(
			aData[i*m*k:(i+1)*m*k],
			bData[i*k*n:(i+1)*k*n],
			outData[i*m*n:(i+1)*m*n],
			m, k, n,
		)
	}
	return out
}

// matmulKernel computes out[m,n] = a[m,k] @ b[k,n] with an ikj loop order
// so the inner loop streams over contiguous rows of b and out.
func matmulKernel(a, b, out []float32, m, k, n int) {
	for i := 0; i < m; i++ {
		outRow := out[i*n : (i+1)*n]
		for j := range outRow {
			outRow[j] = 0
		}
		for p := 0; p < k; p++ {
			av := a[i*k+p]
			if av == 0 {
				continue
			}
			bRow := b[p*n : (p+1)*n]
			for j, bv := range bRow {
				outRow[j] += av * bv
			}
		}
	}
}
