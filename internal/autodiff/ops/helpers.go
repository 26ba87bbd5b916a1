package ops

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// reduceBroadcast reduces a gradient tensor back to the target shape after
// a broadcast forward pass.
//
// Example:
//
//	Forward: a[3,1] + b[3,4] -> c[3,4]  (a was broadcast along dim 1)
//	Backward: grad_c[3,4] -> grad_a[3,1] (sum along dim 1)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	gradShape := grad.Shape()

	// Clone on the match path so later in-place accumulation cannot
	// alias the output gradient.
	if gradShape.Equal(targetShape) {
		return grad.Clone()
	}

	if len(targetShape) == 0 {
		return backend.Sum(grad)
	}

	// Broadcasting aligns shapes from the right: fold away extra leading
	// dims first, then sum the dims where the target is 1.
	result := grad
	for len(result.Shape()) > len(targetShape) {
		result = backend.SumDim(result, 0, false)
	}
	for d := 0; d < len(targetShape); d++ {
		if targetShape[d] == 1 && result.Shape()[d] > 1 {
			result = backend.SumDim(result, d, true)
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}
	return result
}

// zerosLike allocates a zero tensor with t's shape and dtype.
func zerosLike(t *tensor.RawTensor) *tensor.RawTensor {
	out, err := tensor.NewRaw(t.Shape(), t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("ops: zerosLike: %v", err))
	}
	return out
}

// fullLike allocates a Float32 tensor with t's shape filled with value.
func fullLike(t *tensor.RawTensor, value float32) *tensor.RawTensor {
	out, err := tensor.NewRaw(t.Shape(), tensor.Float32, t.Device())
	if err != nil {
		panic(fmt.Sprintf("ops: fullLike: %v", err))
	}
	data := out.AsFloat32()
	for i := range data {
		data[i] = value
	}
	return out
}

// expandTo broadcasts grad up to shape by adding it onto zeros.
func expandTo(grad *tensor.RawTensor, shape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	zeros, err := tensor.NewRaw(shape, tensor.Float32, grad.Device())
	if err != nil {
		panic(fmt.Sprintf("ops: expandTo: %v", err))
	}
	return backend.Add(zeros, grad)
}

// negate returns -grad.
func negate(grad *tensor.RawTensor, backend tensor.Backend) *tensor.RawTensor {
	return backend.MulScalar(grad, float32(-1))
}
