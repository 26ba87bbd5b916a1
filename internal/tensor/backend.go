package tensor

// Backend defines the operations a compute device must implement.
//
// All operations work on RawTensor values and return freshly derived
// RawTensors (backends may reuse input buffers when IsUnique allows).
// Element-wise binary operations support NumPy-style broadcasting.
//
// Backends panic on internal invariant violations (dtype or shape
// mismatches that typed front-end wrappers should have prevented).
type Backend interface {
	// Element-wise arithmetic (broadcasting).
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Scalar arithmetic. The scalar must match the tensor's dtype.
	AddScalar(x *RawTensor, scalar any) *RawTensor
	SubScalar(x *RawTensor, scalar any) *RawTensor
	MulScalar(x *RawTensor, scalar any) *RawTensor
	DivScalar(x *RawTensor, scalar any) *RawTensor

	// Element-wise math (Float32 only).
	Exp(x *RawTensor) *RawTensor
	Sqrt(x *RawTensor) *RawTensor
	Rsqrt(x *RawTensor) *RawTensor
	Sin(x *RawTensor) *RawTensor
	Cos(x *RawTensor) *RawTensor
	Abs(x *RawTensor) *RawTensor

	// Softmax along dim (negative dims count from the end).
	// The implementation must be numerically stable (max-shifted).
	Softmax(x *RawTensor, dim int) *RawTensor

	// Matrix multiplication. MatMul takes 2-D operands; BatchMatMul
	// multiplies the trailing two dims and treats all leading dims as batch.
	MatMul(a, b *RawTensor) *RawTensor
	BatchMatMul(a, b *RawTensor) *RawTensor

	// 2-D convolution over NCHW input with OIHW kernels.
	// groups splits channels; groups == inChannels gives depthwise conv.
	Conv2D(input, kernel *RawTensor, stride, padding, groups int) *RawTensor
	Conv2DInputBackward(input, kernel, outputGrad *RawTensor, stride, padding, groups int) *RawTensor
	Conv2DKernelBackward(input, kernel, outputGrad *RawTensor, stride, padding, groups int) *RawTensor

	// Transposed 2-D convolution (fractionally strided) with IOHW kernels.
	ConvTranspose2D(input, kernel *RawTensor, stride, padding int) *RawTensor
	ConvTranspose2DInputBackward(input, kernel, outputGrad *RawTensor, stride, padding int) *RawTensor
	ConvTranspose2DKernelBackward(input, kernel, outputGrad *RawTensor, stride, padding int) *RawTensor

	// Shape manipulation. Reshape requires an element-count match;
	// Transpose permutes axes (no axes = reverse all).
	Reshape(x *RawTensor, newShape Shape) *RawTensor
	Transpose(x *RawTensor, axes ...int) *RawTensor
	Cat(tensors []*RawTensor, dim int) *RawTensor
	Chunk(x *RawTensor, chunks, dim int) []*RawTensor
	Unsqueeze(x *RawTensor, dim int) *RawTensor
	Squeeze(x *RawTensor, dim int) *RawTensor

	// Reductions.
	Sum(x *RawTensor) *RawTensor
	Mean(x *RawTensor) *RawTensor
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor

	// Comparison (Bool output, no gradient).
	Greater(a, b *RawTensor) *RawTensor
	Lower(a, b *RawTensor) *RawTensor

	// Selection: out[i] = x[i] where cond[i], else y[i].
	Where(cond, x, y *RawTensor) *RawTensor

	// Name returns the backend's identifier (for error messages and logs).
	Name() string

	// Device returns the device this backend computes on.
	Device() Device
}
