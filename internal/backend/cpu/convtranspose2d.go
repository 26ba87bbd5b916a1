package cpu

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// convTranspose2dGeometry validates shapes and returns output spatial dims.
// Input is NCHW, kernel is IOHW. outDim = (inDim-1)*stride - 2*padding + k.
func convTranspose2dGeometry(input, kernel *tensor.RawTensor, stride, padding int) (outH, outW int) {
	inShape, kShape := input.Shape(), kernel.Shape()
	if len(inShape) != 4 || len(kShape) != 4 {
		panic(fmt.Sprintf("cpu: ConvTranspose2D: expected 4-D input and kernel, got %v and %v", inShape, kShape))
	}
	if stride < 1 || padding < 0 {
		panic(fmt.Sprintf("cpu: ConvTranspose2D: bad stride=%d padding=%d", stride, padding))
	}
	if kShape[0] != inShape[1] {
		panic(fmt.Sprintf("cpu: ConvTranspose2D: kernel in-channels %d != input channels %d", kShape[0], inShape[1]))
	}

	outH = (inShape[2]-1)*stride - 2*padding + kShape[2]
	outW = (inShape[3]-1)*stride - 2*padding + kShape[3]
	if outH < 1 || outW < 1 {
		panic(fmt.Sprintf("cpu: ConvTranspose2D: degenerate output for input %v kernel %v", inShape, kShape))
	}
	return outH, outW
}

// ConvTranspose2D computes a fractionally strided (transposed) convolution.
func (c *CPUBackend) ConvTranspose2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	requireFloat32("ConvTranspose2D", input, kernel)
	outH, outW := convTranspose2dGeometry(input, kernel, stride, padding)

	inShape, kShape := input.Shape(), kernel.Shape()
	batch, inC, inH, inW := inShape[0], inShape[1], inShape[2], inShape[3]
	outC, kH, kW := kShape[1], kShape[2], kShape[3]

	out := mustRaw(tensor.Shape{batch, outC, outH, outW}, tensor.Float32)
	inData, kData, outData := input.AsFloat32(), kernel.AsFloat32(), out.AsFloat32()

	parallelBatch(batch, func(n int) {
		inImg := inData[n*inC*inH*inW:]
		outImg := outData[n*outC*outH*outW:]
		for ci := 0; ci < inC; ci++ {
			inCh := inImg[ci*inH*inW:]
			for ih := 0; ih < inH; ih++ {
				for iw := 0; iw < inW; iw++ {
					v := inCh[ih*inW+iw]
					if v == 0 {
						continue
					}
					for co := 0; co < outC; co++ {
						outCh := outImg[co*outH*outW:]
						kCh := kData[(ci*outC+co)*kH*kW:]
						for kh := 0; kh < kH; kh++ {
							oh := ih*stride - padding + kh
							if oh < 0 || oh >= outH {
								continue
							}
							for kw := 0; kw < kW; kw++ {
								ow := iw*stride - padding + kw
								if ow < 0 || ow >= outW {
									continue
								}
								outCh[oh*outW+ow] += v * kCh[kh*kW+kw]
							}
						}
					}
				}
			}
		}
	})
	return out
}

// ConvTranspose2DInputBackward computes the gradient w.r.t. the input.
// This is a plain correlation of the output gradient with the kernel.
func (c *CPUBackend) ConvTranspose2DInputBackward(input, kernel, outputGrad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	requireFloat32("ConvTranspose2DInputBackward", input, kernel, outputGrad)
	outH, outW := convTranspose2dGeometry(input, kernel, stride, padding)

	inShape, kShape := input.Shape(), kernel.Shape()
	batch, inC, inH, inW := inShape[0], inShape[1], inShape[2], inShape[3]
	outC, kH, kW := kShape[1], kShape[2], kShape[3]

	grad := mustRaw(inShape, tensor.Float32)
	kData, gOutData, gInData := kernel.AsFloat32(), outputGrad.AsFloat32(), grad.AsFloat32()

	parallelBatch(batch, func(n int) {
		gOutImg := gOutData[n*outC*outH*outW:]
		gInImg := gInData[n*inC*inH*inW:]
		for ci := 0; ci < inC; ci++ {
			gInCh := gInImg[ci*inH*inW:]
			for ih := 0; ih < inH; ih++ {
				for iw := 0; iw < inW; iw++ {
					var acc float32
					for co := 0; co < outC; co++ {
						gOutCh := gOutImg[co*outH*outW:]
						kCh := kData[(ci*outC+co)*kH*kW:]
						for kh := 0; kh < kH; kh++ {
							oh := ih*stride - padding + kh
							if oh < 0 || oh >= outH {
								continue
							}
							for kw := 0; kw < kW; kw++ {
								ow := iw*stride - padding + kw
								if ow < 0 || ow >= outW {
									continue
								}
								acc += gOutCh[oh*outW+ow] * kCh[kh*kW+kw]
							}
						}
					}
					gInCh[ih*inW+iw] = acc
				}
			}
		}
	})
	return grad
}

// ConvTranspose2DKernelBackward computes the gradient w.r.t. the kernel.
// Parallelized over input channels so writes stay disjoint.
func (c *CPUBackend) ConvTranspose2DKernelBackward(input, kernel, outputGrad *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	requireFloat32("ConvTranspose2DKernelBackward", input, kernel, outputGrad)
	outH, outW := convTranspose2dGeometry(input, kernel, stride, padding)

	inShape, kShape := input.Shape(), kernel.Shape()
	batch, inC, inH, inW := inShape[0], inShape[1], inShape[2], inShape[3]
	outC, kH, kW := kShape[1], kShape[2], kShape[3]

	grad := mustRaw(kShape, tensor.Float32)
	inData, gOutData, gKData := input.AsFloat32(), outputGrad.AsFloat32(), grad.AsFloat32()

	parallelBatch(inC, func(ci int) {
		for n := 0; n < batch; n++ {
			inCh := inData[(n*inC+ci)*inH*inW:]
			gOutImg := gOutData[n*outC*outH*outW:]
			for ih := 0; ih < inH; ih++ {
				for iw := 0; iw < inW; iw++ {
					v := inCh[ih*inW+iw]
					if v == 0 {
						continue
					}
					for co := 0; co < outC; co++ {
						gOutCh := gOutImg[co*outH*outW:]
						gKCh := gKData[(ci*outC+co)*kH*kW:]
						for kh := 0; kh < kH; kh++ {
							oh := ih*stride - padding + kh
							if oh < 0 || oh >= outH {
								continue
							}
							for kw := 0; kw < kW; kw++ {
								ow := iw*stride - padding + kw
								if ow < 0 || ow >= outW {
									continue
								}
								gKCh[kh*kW+kw] += v * gOutCh[oh*outW+ow]
							}
						}
					}
				}
			}
		}
	})
	return grad
}
