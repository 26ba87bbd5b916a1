// Package cpu implements a pure-Go CPU backend for the Drift ML framework.
//
// All kernels operate on contiguous row-major buffers. Convolutions
// parallelize over the batch dimension with errgroup; everything else is
// single-threaded (elementwise ops are memory-bound anyway).
package cpu

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// CPUBackend computes tensor operations on the host CPU.
type CPUBackend struct{}

// New creates a new CPU backend.
func New() *CPUBackend {
	return &CPUBackend{}
}

// Name returns the backend identifier.
func (c *CPUBackend) Name() string {
	return "cpu"
}

// Device returns the compute device.
func (c *CPUBackend) Device() tensor.Device {
	return tensor.CPU
}

// mustRaw allocates a RawTensor or panics. Shapes reaching the backend
// have already been validated by the typed front-end.
func mustRaw(shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	r, err := tensor.NewRaw(shape, dtype, tensor.CPU)
	if err != nil {
		panic(fmt.Sprintf("cpu: alloc: %v", err))
	}
	return r
}

// requireFloat32 panics unless the tensor holds Float32 data.
func requireFloat32(op string, ts ...*tensor.RawTensor) {
	for _, t := range ts {
		if t.DType() != tensor.Float32 {
			panic(fmt.Sprintf("cpu: %s: unsupported dtype %s", op, t.DType()))
		}
	}
}

// normalizeDim resolves negative dims and bounds-checks the result.
func normalizeDim(dim, rank int, op string) int {
	if dim < 0 {
		dim += rank
	}
	if dim < 0 || dim >= rank {
		panic(fmt.Sprintf("cpu: %s: dim %d out of range for rank %d", op, dim, rank))
	}
	return dim
}
