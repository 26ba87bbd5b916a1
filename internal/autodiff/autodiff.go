// Package autodiff provides reverse-mode automatic differentiation as a
// backend decorator.
//
// AutodiffBackend wraps any tensor.Backend. While its tape is recording,
// every differentiable operation is executed by the inner backend and then
// appended to the tape; Backward replays the tape in reverse to produce
// gradients for the optimizer.
package autodiff

import (
	"fmt"

	"github.com/drift-ml/drift/internal/autodiff/ops"
	"github.com/drift-ml/drift/internal/tensor"
)

// AutodiffBackend decorates an inner backend with gradient recording.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New wraps the inner backend with a fresh gradient tape.
func New[B tensor.Backend](inner B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: inner,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape.
func (a *AutodiffBackend[B]) Tape() *GradientTape {
	return a.tape
}

// Inner returns the wrapped backend.
func (a *AutodiffBackend[B]) Inner() B {
	return a.inner
}

// Name returns the backend identifier.
func (a *AutodiffBackend[B]) Name() string {
	return "autodiff(" + a.inner.Name() + ")"
}

// Device returns the inner backend's device.
func (a *AutodiffBackend[B]) Device() tensor.Device {
	return a.inner.Device()
}

// protect pins the inputs while the inner op runs so an inner backend with
// inplace paths cannot overwrite values the tape still needs.
func protect(ts ...*tensor.RawTensor) func() {
	releases := make([]func(), len(ts))
	for i, t := range ts {
		releases[i] = t.ForceNonUnique()
	}
	return func() {
		for _, r := range releases {
			r()
		}
	}
}

// normalizeDim resolves negative dims before an op is recorded, so backward
// sees the same axis the forward kernel used.
func normalizeDim(dim, rank int) int {
	if dim < 0 {
		dim += rank
	}
	if dim < 0 || dim >= rank {
		panic(fmt.Sprintf("autodiff: dim %d out of range for rank %d", dim, rank))
	}
	return dim
}

func scalarToFloat32(scalar any) float32 {
	switch s := scalar.(type) {
	case float32:
		return s
	case float64:
		return float32(s)
	case int:
		return float32(s)
	default:
		panic(fmt.Sprintf("autodiff: unsupported scalar type %T", scalar))
	}
}

// Add computes a + b and records the operation.
func (a *AutodiffBackend[B]) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.Add(x, y)
	}
	defer protect(x, y)()
	out := a.inner.Add(x, y)
	a.tape.Record(ops.NewAddOp(x, y, out))
	return out
}

// Sub computes a - b and records the operation.
func (a *AutodiffBackend[B]) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.Sub(x, y)
	}
	defer protect(x, y)()
	out := a.inner.Sub(x, y)
	a.tape.Record(ops.NewSubOp(x, y, out))
	return out
}

// Mul computes a * b and records the operation.
func (a *AutodiffBackend[B]) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.Mul(x, y)
	}
	defer protect(x, y)()
	out := a.inner.Mul(x, y)
	a.tape.Record(ops.NewMulOp(x, y, out))
	return out
}

// Div computes a / b and records the operation.
func (a *AutodiffBackend[B]) Div(x, y *tensor.RawTensor) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.Div(x, y)
	}
	defer protect(x, y)()
	out := a.inner.Div(x, y)
	a.tape.Record(ops.NewDivOp(x, y, out))
	return out
}

// AddScalar computes x + scalar and records the operation.
func (a *AutodiffBackend[B]) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.AddScalar(x, scalar)
	}
	defer protect(x)()
	out := a.inner.AddScalar(x, scalar)
	a.tape.Record(ops.NewAddScalarOp(x, out, scalarToFloat32(scalar)))
	return out
}

// SubScalar computes x - scalar and records the operation.
func (a *AutodiffBackend[B]) SubScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.SubScalar(x, scalar)
	}
	defer protect(x)()
	out := a.inner.SubScalar(x, scalar)
	a.tape.Record(ops.NewSubScalarOp(x, out, scalarToFloat32(scalar)))
	return out
}

// MulScalar computes x * scalar and records the operation.
func (a *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.MulScalar(x, scalar)
	}
	defer protect(x)()
	out := a.inner.MulScalar(x, scalar)
	a.tape.Record(ops.NewMulScalarOp(x, out, scalarToFloat32(scalar)))
	return out
}

// DivScalar computes x / scalar and records the operation.
func (a *AutodiffBackend[B]) DivScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.DivScalar(x, scalar)
	}
	defer protect(x)()
	out := a.inner.DivScalar(x, scalar)
	a.tape.Record(ops.NewDivScalarOp(x, out, scalarToFloat32(scalar)))
	return out
}

// Exp computes e^x and records the operation.
func (a *AutodiffBackend[B]) Exp(x *tensor.RawTensor) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.Exp(x)
	}
	defer protect(x)()
	out := a.inner.Exp(x)
	a.tape.Record(ops.NewExpOp(x, out))
	return out
}

// Sqrt computes sqrt(x) and records the operation.
func (a *AutodiffBackend[B]) Sqrt(x *tensor.RawTensor) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.Sqrt(x)
	}
	defer protect(x)()
	out := a.inner.Sqrt(x)
	a.tape.Record(ops.NewSqrtOp(x, out))
	return out
}

// Rsqrt computes 1/sqrt(x) and records the operation.
func (a *AutodiffBackend[B]) Rsqrt(x *tensor.RawTensor) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.Rsqrt(x)
	}
	defer protect(x)()
	out := a.inner.Rsqrt(x)
	a.tape.Record(ops.NewRsqrtOp(x, out))
	return out
}

// Sin computes sin(x) and records the operation.
func (a *AutodiffBackend[B]) Sin(x *tensor.RawTensor) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.Sin(x)
	}
	defer protect(x)()
	out := a.inner.Sin(x)
	a.tape.Record(ops.NewSinOp(x, out))
	return out
}

// Cos computes cos(x) and records the operation.
func (a *AutodiffBackend[B]) Cos(x *tensor.RawTensor) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.Cos(x)
	}
	defer protect(x)()
	out := a.inner.Cos(x)
	a.tape.Record(ops.NewCosOp(x, out))
	return out
}

// Abs computes |x| and records the operation.
func (a *AutodiffBackend[B]) Abs(x *tensor.RawTensor) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.Abs(x)
	}
	defer protect(x)()
	out := a.inner.Abs(x)
	a.tape.Record(ops.NewAbsOp(x, out))
	return out
}

// Softmax normalizes along dim and records the operation.
func (a *AutodiffBackend[B]) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	dim = normalizeDim(dim, len(x.Shape()))
	if !a.tape.IsRecording() {
		return a.inner.Softmax(x, dim)
	}
	defer protect(x)()
	out := a.inner.Softmax(x, dim)
	a.tape.Record(ops.NewSoftmaxOp(x, out, dim))
	return out
}

// MatMul computes the 2-D matrix product and records the operation.
func (a *AutodiffBackend[B]) MatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.MatMul(x, y)
	}
	defer protect(x, y)()
	out := a.inner.MatMul(x, y)
	a.tape.Record(ops.NewMatMulOp(x, y, out))
	return out
}

// BatchMatMul computes the batched matrix product and records the operation.
func (a *AutodiffBackend[B]) BatchMatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.BatchMatMul(x, y)
	}
	defer protect(x, y)()
	out := a.inner.BatchMatMul(x, y)
	a.tape.Record(ops.NewBatchMatMulOp(x, y, out))
	return out
}

// Conv2D computes a grouped convolution and records the operation.
func (a *AutodiffBackend[B]) Conv2D(input, kernel *tensor.RawTensor, stride, padding, groups int) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.Conv2D(input, kernel, stride, padding, groups)
	}
	defer protect(input, kernel)()
	out := a.inner.Conv2D(input, kernel, stride, padding, groups)
	a.tape.Record(ops.NewConv2DOp(input, kernel, out, stride, padding, groups))
	return out
}

// Conv2DInputBackward delegates to the inner backend (not recorded).
func (a *AutodiffBackend[B]) Conv2DInputBackward(input, kernel, outputGrad *tensor.RawTensor, stride, padding, groups int) *tensor.RawTensor {
	return a.inner.Conv2DInputBackward(input, kernel, outputGrad, stride, padding, groups)
}

// Conv2DKernelBackward delegates to the inner backend (not recorded).
func (a *AutodiffBackend[B]) Conv2DKernelBackward(input, kernel, outputGrad *tensor.RawTensor, stride, padding, groups int) *tensor.RawTensor {
	return a.inner.Conv2DKernelBackward(input, kernel, outputGrad, stride, padding, groups)
}

// ConvTranspose2D computes a transposed convolution and records the operation.
func (a *AutodiffBackend[B]) ConvTranspose2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.ConvTranspose2D(input, kernel, stride, padding)
	}
	defer protect(input, kernel)()
	out := a.inner.ConvTranspose2D(input, kernel, stride, padding)
	a.tape.Record(ops.NewConvTranspose2DOp(input, kernel, out, stride, padding))
	return out
}

// ConvTranspose2DInputBackward delegates to the inner backend (not recorded).
func (a *AutodiffBackend[B]) ConvTranspose2DInputBackward(input, kernel, outputGrad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return a.inner.ConvTranspose2DInputBackward(input, kernel, outputGrad, stride, padding)
}

// ConvTranspose2DKernelBackward delegates to the inner backend (not recorded).
func (a *AutodiffBackend[B]) ConvTranspose2DKernelBackward(input, kernel, outputGrad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	return a.inner.ConvTranspose2DKernelBackward(input, kernel, outputGrad, stride, padding)
}

// Reshape changes the shape and records the operation.
func (a *AutodiffBackend[B]) Reshape(x *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.Reshape(x, newShape)
	}
	defer protect(x)()
	out := a.inner.Reshape(x, newShape)
	a.tape.Record(ops.NewReshapeOp(x, out))
	return out
}

// Transpose permutes axes and records the operation.
func (a *AutodiffBackend[B]) Transpose(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	rank := len(x.Shape())
	if len(axes) == 0 {
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	}
	if !a.tape.IsRecording() {
		return a.inner.Transpose(x, axes...)
	}
	defer protect(x)()
	out := a.inner.Transpose(x, axes...)
	a.tape.Record(ops.NewTransposeOp(x, out, axes))
	return out
}

// Cat concatenates along dim and records the operation.
func (a *AutodiffBackend[B]) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("autodiff: Cat: no tensors")
	}
	dim = normalizeDim(dim, len(tensors[0].Shape()))
	if !a.tape.IsRecording() {
		return a.inner.Cat(tensors, dim)
	}
	defer protect(tensors...)()
	out := a.inner.Cat(tensors, dim)
	a.tape.Record(ops.NewCatOp(tensors, out, dim))
	return out
}

// Chunk splits along dim and records the operation.
func (a *AutodiffBackend[B]) Chunk(x *tensor.RawTensor, chunks, dim int) []*tensor.RawTensor {
	dim = normalizeDim(dim, len(x.Shape()))
	if !a.tape.IsRecording() {
		return a.inner.Chunk(x, chunks, dim)
	}
	defer protect(x)()
	outs := a.inner.Chunk(x, chunks, dim)
	a.tape.RecordMulti(ops.NewChunkOp(x, outs, dim))
	return outs
}

// Unsqueeze inserts a size-1 dim and records the operation (as a reshape).
func (a *AutodiffBackend[B]) Unsqueeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.Unsqueeze(x, dim)
	}
	defer protect(x)()
	out := a.inner.Unsqueeze(x, dim)
	a.tape.Record(ops.NewReshapeOp(x, out))
	return out
}

// Squeeze removes a size-1 dim and records the operation (as a reshape).
func (a *AutodiffBackend[B]) Squeeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.Squeeze(x, dim)
	}
	defer protect(x)()
	out := a.inner.Squeeze(x, dim)
	a.tape.Record(ops.NewReshapeOp(x, out))
	return out
}

// Sum reduces to a scalar and records the operation.
func (a *AutodiffBackend[B]) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.Sum(x)
	}
	defer protect(x)()
	out := a.inner.Sum(x)
	a.tape.Record(ops.NewSumOp(x, out))
	return out
}

// Mean reduces to a scalar mean and records the operation.
func (a *AutodiffBackend[B]) Mean(x *tensor.RawTensor) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.Mean(x)
	}
	defer protect(x)()
	out := a.inner.Mean(x)
	a.tape.Record(ops.NewMeanOp(x, out))
	return out
}

// SumDim sums along dim and records the operation.
func (a *AutodiffBackend[B]) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	dim = normalizeDim(dim, len(x.Shape()))
	if !a.tape.IsRecording() {
		return a.inner.SumDim(x, dim, keepDim)
	}
	defer protect(x)()
	out := a.inner.SumDim(x, dim, keepDim)
	a.tape.Record(ops.NewSumDimOp(x, out, dim, keepDim))
	return out
}

// MeanDim averages along dim and records the operation.
func (a *AutodiffBackend[B]) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	dim = normalizeDim(dim, len(x.Shape()))
	if !a.tape.IsRecording() {
		return a.inner.MeanDim(x, dim, keepDim)
	}
	defer protect(x)()
	out := a.inner.MeanDim(x, dim, keepDim)
	a.tape.Record(ops.NewMeanDimOp(x, out, dim, keepDim))
	return out
}

// Greater delegates to the inner backend. Comparisons have no gradient.
func (a *AutodiffBackend[B]) Greater(x, y *tensor.RawTensor) *tensor.RawTensor {
	return a.inner.Greater(x, y)
}

// Lower delegates to the inner backend. Comparisons have no gradient.
func (a *AutodiffBackend[B]) Lower(x, y *tensor.RawTensor) *tensor.RawTensor {
	return a.inner.Lower(x, y)
}

// Where selects between branches and records the operation. The condition
// receives no gradient.
func (a *AutodiffBackend[B]) Where(cond, x, y *tensor.RawTensor) *tensor.RawTensor {
	if !a.tape.IsRecording() {
		return a.inner.Where(cond, x, y)
	}
	defer protect(x, y)()
	out := a.inner.Where(cond, x, y)
	a.tape.Record(ops.NewWhereOp(cond, x, y, out))
	return out
}

// activationBackend is the optional contract backends provide for the
// activations that are not part of the core Backend interface.
type activationBackend interface {
	SiLU(x *tensor.RawTensor) *tensor.RawTensor
	GELU(x *tensor.RawTensor) *tensor.RawTensor
}

func (a *AutodiffBackend[B]) activations() activationBackend {
	ab, ok := any(a.inner).(activationBackend)
	if !ok {
		panic(fmt.Sprintf("autodiff: backend %s does not implement SiLU/GELU", a.inner.Name()))
	}
	return ab
}

// SiLU computes x*sigmoid(x) and records the operation.
func (a *AutodiffBackend[B]) SiLU(x *tensor.RawTensor) *tensor.RawTensor {
	ab := a.activations()
	if !a.tape.IsRecording() {
		return ab.SiLU(x)
	}
	defer protect(x)()
	out := ab.SiLU(x)
	a.tape.Record(ops.NewSiLUOp(x, out))
	return out
}

// GELU computes the Gaussian error linear unit and records the operation.
func (a *AutodiffBackend[B]) GELU(x *tensor.RawTensor) *tensor.RawTensor {
	ab := a.activations()
	if !a.tape.IsRecording() {
		return ab.GELU(x)
	}
	defer protect(x)()
	out := ab.GELU(x)
	a.tape.Record(ops.NewGELUOp(x, out))
	return out
}
