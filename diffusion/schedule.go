// Package diffusion implements a denoising diffusion probabilistic model
// (DDPM): noise schedules, the closed-form forward process, a conditional
// U-Net noise predictor, ancestral reverse sampling and a training loop.
//
// The forward process corrupts images with Gaussian noise over a fixed
// number of timesteps; the network is trained to predict that noise, and
// sampling runs the learned reverse process from pure noise back to an
// image. Reference: "Denoising Diffusion Probabilistic Models"
// (Ho et al., 2020).
package diffusion

import (
	"fmt"
	"math"
)

// ScheduleFn produces the per-timestep noise variances (betas).
type ScheduleFn func(timesteps int) []float32

// Schedule bounds for every schedule family.
const (
	betaMin = 1e-4
	betaMax = 0.9999
)

// LinearSchedule returns betas increasing linearly from 1e-4 to 0.02,
// the original DDPM schedule.
func LinearSchedule(timesteps int) []float32 {
	const (
		betaStart = 1e-4
		betaEnd   = 0.02
	)
	betas := make([]float32, timesteps)
	if timesteps == 1 {
		betas[0] = betaStart
		return betas
	}
	step := (betaEnd - betaStart) / float64(timesteps-1)
	for i := range betas {
		betas[i] = float32(betaStart + float64(i)*step)
	}
	return betas
}

// CosineSchedule returns the squared-cosine schedule from "Improved
// Denoising Diffusion Probabilistic Models" (Nichol & Dhariwal, 2021),
// with offset s = 0.008 and betas clipped to [1e-4, 0.9999].
func CosineSchedule(timesteps int) []float32 {
	const s = 0.008

	// Cumulative products of alpha on a grid of timesteps+1 points.
	cumprod := make([]float64, timesteps+1)
	for i := range cumprod {
		x := float64(i) / float64(timesteps)
		v := math.Cos((x + s) / (1 + s) * math.Pi / 2)
		cumprod[i] = v * v
	}

	betas := make([]float32, timesteps)
	for i := range betas {
		beta := 1 - cumprod[i+1]/cumprod[i]
		betas[i] = float32(min(max(beta, betaMin), betaMax))
	}
	return betas
}

// Schedule holds the betas of a diffusion process and every derived
// constant the forward process and the sampler need. All slices are
// derived once in NewSchedule; a Schedule is immutable afterwards.
type Schedule struct {
	timesteps int

	betas                     []float32
	alphas                    []float32 // 1 - beta
	alphasCumprod             []float32 // prod(alphas[:t+1])
	alphasCumprodPrev         []float32 // shifted right, prev[0] = 1
	sqrtRecipAlphas           []float32 // 1/sqrt(alpha)
	sqrtAlphasCumprod         []float32
	sqrtOneMinusAlphasCumprod []float32
	posteriorVariance         []float32 // beta * (1-acpPrev) / (1-acp)
}

// NewSchedule derives all diffusion constants for the given horizon.
// A nil fn defaults to LinearSchedule.
func NewSchedule(timesteps int, fn ScheduleFn) (*Schedule, error) {
	if timesteps <= 0 {
		return nil, fmt.Errorf("diffusion: timesteps must be positive, got %d", timesteps)
	}
	if fn == nil {
		fn = LinearSchedule
	}

	betas := fn(timesteps)
	if len(betas) != timesteps {
		return nil, fmt.Errorf("diffusion: schedule produced %d betas for %d timesteps", len(betas), timesteps)
	}
	for i, b := range betas {
		if b <= 0 || b >= 1 {
			return nil, fmt.Errorf("diffusion: beta[%d] = %g outside (0, 1)", i, b)
		}
	}

	s := &Schedule{
		timesteps:                 timesteps,
		betas:                     betas,
		alphas:                    make([]float32, timesteps),
		alphasCumprod:             make([]float32, timesteps),
		alphasCumprodPrev:         make([]float32, timesteps),
		sqrtRecipAlphas:           make([]float32, timesteps),
		sqrtAlphasCumprod:         make([]float32, timesteps),
		sqrtOneMinusAlphasCumprod: make([]float32, timesteps),
		posteriorVariance:         make([]float32, timesteps),
	}

	cumprod := 1.0
	for t := 0; t < timesteps; t++ {
		alpha := 1 - float64(betas[t])
		prev := cumprod
		cumprod *= alpha

		s.alphas[t] = float32(alpha)
		s.alphasCumprod[t] = float32(cumprod)
		if t == 0 {
			s.alphasCumprodPrev[t] = 1
		} else {
			s.alphasCumprodPrev[t] = float32(prev)
		}
		s.sqrtRecipAlphas[t] = float32(1 / math.Sqrt(alpha))
		s.sqrtAlphasCumprod[t] = float32(math.Sqrt(cumprod))
		s.sqrtOneMinusAlphasCumprod[t] = float32(math.Sqrt(1 - cumprod))
		s.posteriorVariance[t] = float32(float64(betas[t]) * (1 - float64(s.alphasCumprodPrev[t])) / (1 - cumprod))
	}

	return s, nil
}

// Timesteps returns the diffusion horizon T.
func (s *Schedule) Timesteps() int {
	return s.timesteps
}

// Betas returns the per-timestep noise variances. Callers must not mutate.
func (s *Schedule) Betas() []float32 {
	return s.betas
}

// AlphasCumprod returns the cumulative products of (1 - beta).
// Callers must not mutate.
func (s *Schedule) AlphasCumprod() []float32 {
	return s.alphasCumprod
}

// PosteriorVariance returns the variance of the reverse-process posterior.
// Callers must not mutate.
func (s *Schedule) PosteriorVariance() []float32 {
	return s.posteriorVariance
}

// validateTimesteps checks every index against [0, T).
func (s *Schedule) validateTimesteps(t []int) error {
	for _, ti := range t {
		if ti < 0 || ti >= s.timesteps {
			return &OutOfRangeTimestepError{Timestep: ti, Timesteps: s.timesteps}
		}
	}
	return nil
}
