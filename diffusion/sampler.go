package diffusion

import (
	"math"
	"math/rand/v2"

	"github.com/drift-ml/drift/internal/autodiff"
	"github.com/drift-ml/drift/internal/tensor"
)

// tapeOwner is satisfied by backends that record operations on a gradient
// tape. Sampling pauses recording so the denoising chain does not pile
// thousands of operations onto the tape.
type tapeOwner interface {
	Tape() *autodiff.GradientTape
}

// Trajectory is the sequence of intermediate states produced by sampling,
// ordered from pure noise to the final image.
type Trajectory[B tensor.Backend] []*tensor.Tensor[float32, B]

// Final returns the last state of the trajectory, or nil when empty.
func (tr Trajectory[B]) Final() *tensor.Tensor[float32, B] {
	if len(tr) == 0 {
		return nil
	}
	return tr[len(tr)-1]
}

// Sampler runs the learned reverse process: starting from Gaussian noise
// it repeatedly denoises with the model until a clean image remains.
type Sampler[B tensor.Backend] struct {
	schedule *Schedule
	rng      *rand.Rand // nil uses the shared global source
	backend  B
}

// NewSampler creates a sampler over the schedule. rng seeds the initial
// state and the per-step noise; nil uses the shared global source.
func NewSampler[B tensor.Backend](schedule *Schedule, rng *rand.Rand, backend B) *Sampler[B] {
	return &Sampler[B]{schedule: schedule, rng: rng, backend: backend}
}

// Schedule returns the sampler's noise schedule.
func (s *Sampler[B]) Schedule() *Schedule {
	return s.schedule
}

// Step performs one reverse transition from x_t to x_{t-1}:
//
//	mean = 1/sqrt(alpha_t) * (x - beta_t/sqrt(1-acp_t) * eps_hat)
//
// with posterior-variance noise added for every step except t == 0.
func (s *Sampler[B]) Step(model NoiseModel[B], x *tensor.Tensor[float32, B], t int) (*tensor.Tensor[float32, B], error) {
	if t < 0 || t >= s.schedule.timesteps {
		return nil, &OutOfRangeTimestepError{Timestep: t, Timesteps: s.schedule.timesteps}
	}

	batch := x.Shape()[0]
	ts := make([]int, batch)
	for i := range ts {
		ts[i] = t
	}
	eps := model.PredictNoise(x, ts)

	epsScale := s.schedule.betas[t] / s.schedule.sqrtOneMinusAlphasCumprod[t]
	mean := x.Sub(eps.MulScalar(epsScale)).MulScalar(s.schedule.sqrtRecipAlphas[t])

	if t == 0 {
		return mean, nil
	}

	sigma := float32(math.Sqrt(float64(s.schedule.posteriorVariance[t])))
	noise := tensor.Randn(x.Shape(), s.rng, s.backend)
	return mean.Add(noise.MulScalar(sigma)), nil
}

// Sample runs the full reverse chain from pure noise and returns every
// intermediate state. Gradient recording is paused for the duration when
// the backend carries a tape.
func (s *Sampler[B]) Sample(model NoiseModel[B], imageSize, batchSize, channels int) (Trajectory[B], error) {
	if owner, ok := any(s.backend).(tapeOwner); ok {
		tape := owner.Tape()
		if tape.IsRecording() {
			tape.StopRecording()
			defer tape.StartRecording()
		}
	}

	shape := tensor.Shape{batchSize, channels, imageSize, imageSize}
	x := tensor.Randn(shape, s.rng, s.backend)

	trajectory := make(Trajectory[B], 0, s.schedule.timesteps)
	for t := s.schedule.timesteps - 1; t >= 0; t-- {
		next, err := s.Step(model, x, t)
		if err != nil {
			return nil, err
		}
		x = next
		trajectory = append(trajectory, x)
	}
	return trajectory, nil
}
