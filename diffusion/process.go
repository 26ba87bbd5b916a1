package diffusion

import (
	"math/rand/v2"

	"github.com/drift-ml/drift/internal/nn"
	"github.com/drift-ml/drift/internal/tensor"
)

// LossKind selects the regression loss between true and predicted noise.
type LossKind int

// Supported loss kinds. LossHuber is the zero value and the default.
const (
	LossHuber LossKind = iota
	LossL1
	LossL2
)

// String returns the loss kind's name.
func (k LossKind) String() string {
	switch k {
	case LossL1:
		return "l1"
	case LossL2:
		return "l2"
	case LossHuber:
		return "huber"
	default:
		return "unknown"
	}
}

// NoiseModel predicts the noise present in a corrupted batch. t carries
// one timestep index per sample.
type NoiseModel[B tensor.Backend] interface {
	PredictNoise(x *tensor.Tensor[float32, B], t []int) *tensor.Tensor[float32, B]
	Parameters() []*nn.Parameter[B]
}

// Extract gathers one coefficient per sample and reshapes the result to
// [batch, 1, 1, ...] with targetRank dims, ready to broadcast against a
// batch of images.
func Extract[B tensor.Backend](coeffs []float32, t []int, targetRank int, backend B) (*tensor.Tensor[float32, B], error) {
	gathered := make([]float32, len(t))
	for i, ti := range t {
		if ti < 0 || ti >= len(coeffs) {
			return nil, &OutOfRangeTimestepError{Timestep: ti, Timesteps: len(coeffs)}
		}
		gathered[i] = coeffs[ti]
	}

	shape := make(tensor.Shape, targetRank)
	shape[0] = len(t)
	for d := 1; d < targetRank; d++ {
		shape[d] = 1
	}
	return tensor.FromSlice(gathered, shape, backend)
}

// Process owns a noise schedule and implements the forward (corruption)
// side of the diffusion model, including the training losses.
type Process[B tensor.Backend] struct {
	schedule *Schedule
	rng      *rand.Rand // nil uses the shared global source
	backend  B
}

// NewProcess creates a forward process over the schedule. rng seeds the
// drawn noise and timesteps; nil uses the shared global source.
func NewProcess[B tensor.Backend](schedule *Schedule, rng *rand.Rand, backend B) *Process[B] {
	return &Process[B]{schedule: schedule, rng: rng, backend: backend}
}

// Schedule returns the process's noise schedule.
func (p *Process[B]) Schedule() *Schedule {
	return p.schedule
}

// ForwardNoise applies the closed-form marginal of the forward process:
//
//	x_t = sqrt(acp_t) * x0 + sqrt(1 - acp_t) * noise
//
// t carries one timestep per sample. A nil noise draws standard normal
// noise of x0's shape; otherwise noise must match x0's shape.
func (p *Process[B]) ForwardNoise(x0, noise *tensor.Tensor[float32, B], t []int) (*tensor.Tensor[float32, B], error) {
	if noise == nil {
		noise = tensor.Randn(x0.Shape(), p.rng, p.backend)
	}
	if !x0.Shape().Equal(noise.Shape()) {
		return nil, &ShapeMismatchError{Context: "ForwardNoise", Want: x0.Shape(), Got: noise.Shape()}
	}
	if len(t) != x0.Shape()[0] {
		return nil, &ShapeMismatchError{Context: "ForwardNoise timesteps", Want: tensor.Shape{x0.Shape()[0]}, Got: tensor.Shape{len(t)}}
	}
	if err := p.schedule.validateTimesteps(t); err != nil {
		return nil, err
	}

	rank := len(x0.Shape())
	scaleX0, err := Extract(p.schedule.sqrtAlphasCumprod, t, rank, p.backend)
	if err != nil {
		return nil, err
	}
	scaleNoise, err := Extract(p.schedule.sqrtOneMinusAlphasCumprod, t, rank, p.backend)
	if err != nil {
		return nil, err
	}

	return x0.Mul(scaleX0).Add(noise.Mul(scaleNoise)), nil
}

// Loss corrupts x0 at the given timesteps, asks the model to predict the
// injected noise and reduces the residual with the chosen loss. A nil
// noise draws standard normal noise; passing it explicitly makes the
// corruption reproducible. The returned tensor is a scalar.
func (p *Process[B]) Loss(model NoiseModel[B], x0, noise *tensor.Tensor[float32, B], t []int, kind LossKind) (*tensor.Tensor[float32, B], error) {
	if noise == nil {
		noise = tensor.Randn(x0.Shape(), p.rng, p.backend)
	}

	xt, err := p.ForwardNoise(x0, noise, t)
	if err != nil {
		return nil, err
	}

	predicted := model.PredictNoise(xt, t)
	residual := predicted.Sub(noise)

	switch kind {
	case LossL1:
		return residual.Abs().Mean(), nil
	case LossL2:
		return residual.Mul(residual).Mean(), nil
	case LossHuber:
		return huber(residual), nil
	default:
		return nil, &UnsupportedLossKindError{Kind: kind}
	}
}

// huber computes the smooth L1 loss with delta = 1: quadratic inside the
// unit band, linear outside.
func huber[B tensor.Backend](residual *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	absErr := residual.Abs()
	quadratic := residual.Mul(residual).MulScalar(0.5)
	linear := absErr.SubScalar(0.5)
	inBand := absErr.Lower(tensor.Ones[float32](absErr.Shape(), absErr.Backend()))
	return tensor.Where(inBand, quadratic, linear).Mean()
}

// SampleTimesteps draws one uniform timestep in [0, T) per sample.
func (p *Process[B]) SampleTimesteps(batch int) []int {
	t := make([]int, batch)
	for i := range t {
		if p.rng != nil {
			t[i] = p.rng.IntN(p.schedule.timesteps)
		} else {
			t[i] = rand.IntN(p.schedule.timesteps)
		}
	}
	return t
}
