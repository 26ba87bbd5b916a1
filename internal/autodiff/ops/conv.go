package ops

import "github.com/drift-ml/drift/internal/tensor"

// Conv2DOp records a grouped 2-D convolution.
type Conv2DOp struct {
	input, kernel, out       *tensor.RawTensor
	stride, padding, groups int
}

// NewConv2DOp creates the tape entry for out = conv2d(input, kernel).
func NewConv2DOp(input, kernel, out *tensor.RawTensor, stride, padding, groups int) *Conv2DOp {
	return &Conv2DOp{input: input, kernel: kernel, out: out, stride: stride, padding: padding, groups: groups}
}

func (op *Conv2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

func (op *Conv2DOp) Output() *tensor.RawTensor { return op.out }

func (op *Conv2DOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		backend.Conv2DInputBackward(op.input, op.kernel, grad, op.stride, op.padding, op.groups),
		backend.Conv2DKernelBackward(op.input, op.kernel, grad, op.stride, op.padding, op.groups),
	}
}

// ConvTranspose2DOp records a transposed 2-D convolution.
type ConvTranspose2DOp struct {
	input, kernel, out *tensor.RawTensor
	stride, padding    int
}

// NewConvTranspose2DOp creates the tape entry for out = convTranspose2d(input, kernel).
func NewConvTranspose2DOp(input, kernel, out *tensor.RawTensor, stride, padding int) *ConvTranspose2DOp {
	return &ConvTranspose2DOp{input: input, kernel: kernel, out: out, stride: stride, padding: padding}
}

func (op *ConvTranspose2DOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

func (op *ConvTranspose2DOp) Output() *tensor.RawTensor { return op.out }

func (op *ConvTranspose2DOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		backend.ConvTranspose2DInputBackward(op.input, op.kernel, grad, op.stride, op.padding),
		backend.ConvTranspose2DKernelBackward(op.input, op.kernel, grad, op.stride, op.padding),
	}
}
