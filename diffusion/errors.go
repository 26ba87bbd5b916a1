package diffusion

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// UnsupportedLossKindError reports a loss kind outside the supported set.
type UnsupportedLossKindError struct {
	Kind LossKind
}

func (e *UnsupportedLossKindError) Error() string {
	return fmt.Sprintf("diffusion: unsupported loss kind %d (want L1, L2 or Huber)", int(e.Kind))
}

// OutOfRangeTimestepError reports a timestep index outside [0, Timesteps).
type OutOfRangeTimestepError struct {
	Timestep  int
	Timesteps int
}

func (e *OutOfRangeTimestepError) Error() string {
	return fmt.Sprintf("diffusion: timestep %d out of range [0, %d)", e.Timestep, e.Timesteps)
}

// ShapeMismatchError reports tensors whose shapes were expected to agree.
type ShapeMismatchError struct {
	Context string
	Want    tensor.Shape
	Got     tensor.Shape
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("diffusion: %s: shape mismatch: want %v, got %v", e.Context, e.Want, e.Got)
}
