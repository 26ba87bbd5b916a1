// Copyright 2025 Drift ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/drift-ml/drift/internal/tensor"

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Implementations:
//   - backend/cpu: Pure Go implementation
//
// Decorator backends for additional functionality:
//   - autodiff: Automatic differentiation (wraps any backend)
//
// Example:
//
//	import (
//	    "github.com/drift-ml/drift/tensor"
//	    "github.com/drift-ml/drift/backend/cpu"
//	)
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	y := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
//	z := x.Add(y)  // Uses backend.Add under the hood
type Backend interface {
	// Element-wise binary operations (broadcasting).
	Add(a, b *RawTensor) *RawTensor // Element-wise addition.
	Sub(a, b *RawTensor) *RawTensor // Element-wise subtraction.
	Mul(a, b *RawTensor) *RawTensor // Element-wise multiplication.
	Div(a, b *RawTensor) *RawTensor // Element-wise division.

	// Scalar operations (element-wise with scalar).
	AddScalar(x *RawTensor, scalar any) *RawTensor // Add scalar.
	SubScalar(x *RawTensor, scalar any) *RawTensor // Subtract scalar.
	MulScalar(x *RawTensor, scalar any) *RawTensor // Multiply by scalar.
	DivScalar(x *RawTensor, scalar any) *RawTensor // Divide by scalar.

	// Math operations (element-wise).
	Exp(x *RawTensor) *RawTensor   // Exponential.
	Sqrt(x *RawTensor) *RawTensor  // Square root.
	Rsqrt(x *RawTensor) *RawTensor // Reciprocal square root (1/sqrt(x)).
	Sin(x *RawTensor) *RawTensor   // Sine.
	Cos(x *RawTensor) *RawTensor   // Cosine.
	Abs(x *RawTensor) *RawTensor   // Absolute value.

	// Activation functions.
	Softmax(x *RawTensor, dim int) *RawTensor // Softmax along dimension.

	// Matrix operations.
	MatMul(a, b *RawTensor) *RawTensor      // Matrix multiplication.
	BatchMatMul(a, b *RawTensor) *RawTensor // Batched matrix multiplication.

	// Convolutional operations (NCHW input, OIHW kernels).
	Conv2D(input, kernel *RawTensor, stride, padding, groups int) *RawTensor               // Grouped 2D convolution.
	Conv2DInputBackward(input, kernel, outputGrad *RawTensor, stride, padding, groups int) *RawTensor  // Conv2D input gradient.
	Conv2DKernelBackward(input, kernel, outputGrad *RawTensor, stride, padding, groups int) *RawTensor // Conv2D kernel gradient.

	// Transposed convolution (IOHW kernels).
	ConvTranspose2D(input, kernel *RawTensor, stride, padding int) *RawTensor                       // Transposed 2D convolution.
	ConvTranspose2DInputBackward(input, kernel, outputGrad *RawTensor, stride, padding int) *RawTensor  // Input gradient.
	ConvTranspose2DKernelBackward(input, kernel, outputGrad *RawTensor, stride, padding int) *RawTensor // Kernel gradient.

	// Shape operations.
	Reshape(x *RawTensor, newShape Shape) *RawTensor // Reshape tensor.
	Transpose(x *RawTensor, axes ...int) *RawTensor  // Transpose dimensions.
	Cat(tensors []*RawTensor, dim int) *RawTensor    // Concatenate along dimension.
	Chunk(x *RawTensor, chunks, dim int) []*RawTensor // Split into equal parts.
	Unsqueeze(x *RawTensor, dim int) *RawTensor      // Add dimension of size 1.
	Squeeze(x *RawTensor, dim int) *RawTensor        // Remove dimension of size 1.

	// Reduction operations.
	Sum(x *RawTensor) *RawTensor                            // Total sum (scalar result).
	Mean(x *RawTensor) *RawTensor                           // Total mean (scalar result).
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor  // Sum along dimension.
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor // Mean along dimension.

	// Comparison operations (element-wise, return bool tensor).
	Greater(a, b *RawTensor) *RawTensor // a > b.
	Lower(a, b *RawTensor) *RawTensor   // a < b.

	// Indexing operations.
	Where(condition, x, y *RawTensor) *RawTensor // Conditional element selection.

	// Metadata.
	Name() string   // Backend name (e.g., "cpu").
	Device() Device // Device type.
}

// Compile-time check that internal Backend implements public Backend.
var _ Backend = tensor.Backend(nil)
