package autodiff

import (
	"fmt"
	"sync"

	"github.com/drift-ml/drift/internal/autodiff/ops"
	"github.com/drift-ml/drift/internal/tensor"
)

// GradientTape records operations for reverse-mode differentiation.
//
// While recording, every differentiable backend operation appends an entry.
// Backward replays the entries in reverse, accumulating gradients per input
// tensor. The tape must be cleared between training steps.
type GradientTape struct {
	mu        sync.Mutex
	recording bool
	entries   []any // ops.Operation or ops.MultiOutputOperation
}

// NewGradientTape creates an empty, non-recording tape.
func NewGradientTape() *GradientTape {
	return &GradientTape{}
}

// StartRecording enables operation recording.
func (t *GradientTape) StartRecording() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recording = true
}

// StopRecording disables operation recording. Already recorded entries stay.
func (t *GradientTape) StopRecording() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recording = false
}

// IsRecording reports whether operations are currently recorded.
func (t *GradientTape) IsRecording() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.recording
}

// Clear drops all recorded entries. Call between training steps.
func (t *GradientTape) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = t.entries[:0]
}

// NumOperations returns the number of recorded entries.
func (t *GradientTape) NumOperations() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Record appends a single-output operation.
func (t *GradientTape) Record(op ops.Operation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, op)
}

// RecordMulti appends a multi-output operation.
func (t *GradientTape) RecordMulti(op ops.MultiOutputOperation) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, op)
}

// Backward runs reverse-mode differentiation from the last recorded
// operation, seeding its output with outputGrad. It returns accumulated
// gradients keyed by input RawTensor.
//
// Recording is suspended for the duration, so the decorated backend can be
// passed in without growing the tape.
func (t *GradientTape) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	t.mu.Lock()
	entries := make([]any, len(t.entries))
	copy(entries, t.entries)
	wasRecording := t.recording
	t.recording = false
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.recording = wasRecording
		t.mu.Unlock()
	}()

	grads := make(map[*tensor.RawTensor]*tensor.RawTensor)
	if len(entries) == 0 {
		return grads
	}

	switch last := entries[len(entries)-1].(type) {
	case ops.Operation:
		grads[last.Output()] = outputGrad
	default:
		panic("autodiff: Backward: last recorded operation has multiple outputs; reduce to a scalar first")
	}

	accumulate := func(target, g *tensor.RawTensor) {
		if g == nil {
			return
		}
		if existing, ok := grads[target]; ok {
			grads[target] = backend.Add(existing, g)
		} else {
			grads[target] = g
		}
	}

	for i := len(entries) - 1; i >= 0; i-- {
		switch op := entries[i].(type) {
		case ops.Operation:
			g := grads[op.Output()]
			if g == nil {
				continue
			}
			inputGrads := op.Backward(g, backend)
			inputs := op.Inputs()
			if len(inputGrads) != len(inputs) {
				panic(fmt.Sprintf("autodiff: Backward: op %T returned %d gradients for %d inputs", op, len(inputGrads), len(inputs)))
			}
			for j, in := range inputs {
				accumulate(in, inputGrads[j])
			}

		case ops.MultiOutputOperation:
			outs := op.Outputs()
			outGrads := make([]*tensor.RawTensor, len(outs))
			seen := false
			for j, out := range outs {
				if g, ok := grads[out]; ok {
					outGrads[j] = g
					seen = true
				}
			}
			if !seen {
				continue
			}
			inputGrads := op.BackwardMulti(outGrads, backend)
			inputs := op.Inputs()
			if len(inputGrads) != len(inputs) {
				panic(fmt.Sprintf("autodiff: Backward: op %T returned %d gradients for %d inputs", op, len(inputGrads), len(inputs)))
			}
			for j, in := range inputs {
				accumulate(in, inputGrads[j])
			}

		default:
			panic(fmt.Sprintf("autodiff: Backward: unknown tape entry %T", entries[i]))
		}
	}

	return grads
}
