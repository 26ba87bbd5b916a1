// Package ops contains the recorded operations of the gradient tape and
// their backward implementations.
package ops

import "github.com/drift-ml/drift/internal/tensor"

// Operation is a single-output entry on the gradient tape.
//
// Backward receives the gradient flowing into the output and returns one
// gradient per input, aligned with Inputs(). A nil entry means the input
// receives no gradient from this operation.
type Operation interface {
	Inputs() []*tensor.RawTensor
	Output() *tensor.RawTensor
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor
}

// MultiOutputOperation is a tape entry with several outputs (e.g. Chunk).
// BackwardMulti receives one gradient per output; nil entries stand for
// outputs that received no gradient.
type MultiOutputOperation interface {
	Inputs() []*tensor.RawTensor
	Outputs() []*tensor.RawTensor
	BackwardMulti(outputGrads []*tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor
}
