package cpu

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/drift-ml/drift/internal/tensor"
)

// conv2dGeometry validates Conv2D operand shapes and returns the output
// spatial dims. Input is NCHW, kernel is OIHW with I = inChannels/groups.
func conv2dGeometry(input, kernel *tensor.RawTensor, stride, padding, groups int) (outH, outW int) {
	inShape, kShape := input.Shape(), kernel.Shape()
	if len(inShape) != 4 || len(kShape) != 4 {
		panic(fmt.Sprintf("cpu: Conv2D: expected 4-D input and kernel, got %v and %v", inShape, kShape))
	}
	if stride < 1 || padding < 0 || groups < 1 {
		panic(fmt.Sprintf("cpu: Conv2D: bad stride=%d padding=%d groups=%d", stride, padding, groups))
	}
	inC := inShape[1]
	if inC%groups != 0 || kShape[0]%groups != 0 {
		panic(fmt.Sprintf("cpu: Conv2D: channels %d / out channels %d not divisible by groups %d", inC, kShape[0], groups))
	}
	if kShape[1] != inC/groups {
		panic(fmt.Sprintf("cpu: Conv2D: kernel in-channels %d != %d/%d", kShape[1], inC, groups))
	}

	outH = (inShape[2]+2*padding-kShape[2])/stride + 1
	outW = (inShape[3]+2*padding-kShape[3])/stride + 1
	if outH < 1 || outW < 1 {
		panic(fmt.Sprintf("cpu: Conv2D: kernel %v too large for input %v with padding %d", kShape, inShape, padding))
	}
	return outH, outW
}

// parallelBatch runs fn(n) for every batch index, bounded by GOMAXPROCS.
func parallelBatch(batch int, fn func(n int)) {
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for n := 0; n < batch; n++ {
		g.Go(func() error {
			fn(n)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; invariants panic
}

// Conv2D computes a grouped 2-D convolution (cross-correlation).
func (c *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding, groups int) *tensor.RawTensor {
	requireFloat32("Conv2D", input, kernel)
	outH, outW := conv2dGeometry(input, kernel, stride, padding, groups)

	inShape, kShape := input.Shape(), kernel.Shape()
	batch, inC, inH, inW := inShape[0], inShape[1], inShape[2], inShape[3]
	outC, kInC, kH, kW := kShape[0], kShape[1], kShape[2], kShape[3]
	outCPerGroup := outC / groups

	out := mustRaw(tensor.Shape{batch, outC, outH, outW}, tensor.Float32)
	inData, kData, outData := input.AsFloat32(), kernel.AsFloat32(), out.AsFloat32()

	parallelBatch(batch, func(n int) {
		inImg := inData[n*inC*inH*inW:]
		outImg := outData[n*outC*outH*outW:]
		for co := 0; co < outC; co++ {
			g := co / outCPerGroup
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					var acc float32
					for ci := 0; ci < kInC; ci++ {
						inCh := inImg[(g*kInC+ci)*inH*inW:]
						kCh := kData[(co*kInC+ci)*kH*kW:]
						for kh := 0; kh < kH; kh++ {
							ih := oh*stride - padding + kh
							if ih < 0 || ih >= inH {
								continue
							}
							for kw := 0; kw < kW; kw++ {
								iw := ow*stride - padding + kw
								if iw < 0 || iw >= inW {
									continue
								}
								acc += inCh[ih*inW+iw] * kCh[kh*kW+kw]
							}
						}
					}
					outImg[(co*outH+oh)*outW+ow] = acc
				}
			}
		}
	})
	return out
}

// Conv2DInputBackward computes the gradient of Conv2D w.r.t. the input.
func (c *CPUBackend) Conv2DInputBackward(input, kernel, outputGrad *tensor.RawTensor, stride, padding, groups int) *tensor.RawTensor {
	requireFloat32("Conv2DInputBackward", input, kernel, outputGrad)
	outH, outW := conv2dGeometry(input, kernel, stride, padding, groups)

	inShape, kShape := input.Shape(), kernel.Shape()
	batch, inC, inH, inW := inShape[0], inShape[1], inShape[2], inShape[3]
	outC, kInC, kH, kW := kShape[0], kShape[1], kShape[2], kShape[3]
	outCPerGroup := outC / groups

	grad := mustRaw(inShape, tensor.Float32)
	kData, gOutData, gInData := kernel.AsFloat32(), outputGrad.AsFloat32(), grad.AsFloat32()

	parallelBatch(batch, func(n int) {
		gOutImg := gOutData[n*outC*outH*outW:]
		gInImg := gInData[n*inC*inH*inW:]
		for co := 0; co < outC; co++ {
			g := co / outCPerGroup
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					gv := gOutImg[(co*outH+oh)*outW+ow]
					if gv == 0 {
						continue
					}
					for ci := 0; ci < kInC; ci++ {
						gInCh := gInImg[(g*kInC+ci)*inH*inW:]
						kCh := kData[(co*kInC+ci)*kH*kW:]
						for kh := 0; kh < kH; kh++ {
							ih := oh*stride - padding + kh
							if ih < 0 || ih >= inH {
								continue
							}
							for kw := 0; kw < kW; kw++ {
								iw := ow*stride - padding + kw
								if iw < 0 || iw >= inW {
									continue
								}
								gInCh[ih*inW+iw] += gv * kCh[kh*kW+kw]
							}
						}
					}
				}
			}
		}
	})
	return grad
}

// Conv2DKernelBackward computes the gradient of Conv2D w.r.t. the kernel.
// Parallelized over output channels so writes stay disjoint.
func (c *CPUBackend) Conv2DKernelBackward(input, kernel, outputGrad *tensor.RawTensor, stride, padding, groups int) *tensor.RawTensor {
	requireFloat32("Conv2DKernelBackward", input, kernel, outputGrad)
	outH, outW := conv2dGeometry(input, kernel, stride, padding, groups)

	inShape, kShape := input.Shape(), kernel.Shape()
	batch, inC, inH, inW := inShape[0], inShape[1], inShape[2], inShape[3]
	outC, kInC, kH, kW := kShape[0], kShape[1], kShape[2], kShape[3]
	outCPerGroup := outC / groups

	grad := mustRaw(kShape, tensor.Float32)
	inData, gOutData, gKData := input.AsFloat32(), outputGrad.AsFloat32(), grad.AsFloat32()

	parallelBatch(outC, func(co int) {
		g := co / outCPerGroup
		for n := 0; n < batch; n++ {
			inImg := inData[n*inC*inH*inW:]
			gOutCh := gOutData[(n*outC+co)*outH*outW:]
			for oh := 0; oh < outH; oh++ {
				for ow := 0; ow < outW; ow++ {
					gv := gOutCh[oh*outW+ow]
					if gv == 0 {
						continue
					}
					for ci := 0; ci < kInC; ci++ {
						inCh := inImg[(g*kInC+ci)*inH*inW:]
						gKCh := gKData[(co*kInC+ci)*kH*kW:]
						for kh := 0; kh < kH; kh++ {
							ih := oh*stride - padding + kh
							if ih < 0 || ih >= inH {
								continue
							}
							for kw := 0; kw < kW; kw++ {
								iw := ow*stride - padding + kw
								if iw < 0 || iw >= inW {
									continue
								}
								gKCh[kh*kW+kw] += gv * inCh[ih*inW+iw]
							}
						}
					}
				}
			}
		}
	})
	return grad
}
