package ops

import "github.com/drift-ml/drift/internal/tensor"

// SumOp records a full reduction to a scalar.
type SumOp struct {
	x, out *tensor.RawTensor
}

// NewSumOp creates the tape entry for out = sum(x).
func NewSumOp(x, out *tensor.RawTensor) *SumOp {
	return &SumOp{x: x, out: out}
}

func (op *SumOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x} }
func (op *SumOp) Output() *tensor.RawTensor  { return op.out }

func (op *SumOp) Backward(grad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{fullLike(op.x, grad.AsFloat32()[0])}
}

// MeanOp records a full mean reduction to a scalar.
type MeanOp struct {
	x, out *tensor.RawTensor
}

// NewMeanOp creates the tape entry for out = mean(x).
func NewMeanOp(x, out *tensor.RawTensor) *MeanOp {
	return &MeanOp{x: x, out: out}
}

func (op *MeanOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x} }
func (op *MeanOp) Output() *tensor.RawTensor  { return op.out }

func (op *MeanOp) Backward(grad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	g := grad.AsFloat32()[0] / float32(op.x.NumElements())
	return []*tensor.RawTensor{fullLike(op.x, g)}
}

// DimReduceOp records SumDim or MeanDim along a dimension.
type DimReduceOp struct {
	x, out  *tensor.RawTensor
	dim     int
	keepDim bool
	mean    bool
}

// NewSumDimOp creates the tape entry for out = sum(x, dim).
// dim must already be resolved to a non-negative axis.
func NewSumDimOp(x, out *tensor.RawTensor, dim int, keepDim bool) *DimReduceOp {
	return &DimReduceOp{x: x, out: out, dim: dim, keepDim: keepDim}
}

// NewMeanDimOp creates the tape entry for out = mean(x, dim).
// dim must already be resolved to a non-negative axis.
func NewMeanDimOp(x, out *tensor.RawTensor, dim int, keepDim bool) *DimReduceOp {
	return &DimReduceOp{x: x, out: out, dim: dim, keepDim: keepDim, mean: true}
}

func (op *DimReduceOp) Inputs() []*tensor.RawTensor { return []*tensor.RawTensor{op.x} }
func (op *DimReduceOp) Output() *tensor.RawTensor  { return op.out }

func (op *DimReduceOp) Backward(grad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	if !op.keepDim {
		grad = backend.Unsqueeze(grad, op.dim)
	}
	expanded := expandTo(grad, op.x.Shape(), backend)
	if op.mean {
		expanded = backend.DivScalar(expanded, float32(op.x.Shape()[op.dim]))
	}
	return []*tensor.RawTensor{expanded}
}
