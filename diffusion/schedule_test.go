package diffusion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinearSchedule(t *testing.T) {
	betas := LinearSchedule(1000)
	require.Len(t, betas, 1000)

	assert.InDelta(t, 1e-4, betas[0], 1e-9)
	assert.InDelta(t, 0.02, betas[999], 1e-7)
	for i := 1; i < len(betas); i++ {
		assert.Greater(t, betas[i], betas[i-1], "betas must increase at %d", i)
	}
}

func TestCosineScheduleBounds(t *testing.T) {
	betas := CosineSchedule(1000)
	require.Len(t, betas, 1000)

	for i, b := range betas {
		assert.GreaterOrEqual(t, b, float32(betaMin), "beta[%d]", i)
		assert.LessOrEqual(t, b, float32(betaMax), "beta[%d]", i)
	}
	// The clip bound is actually reached near the end of the horizon.
	assert.InDelta(t, betaMax, betas[999], 1e-6)
}

func TestNewScheduleDerivedConstants(t *testing.T) {
	s, err := NewSchedule(100, LinearSchedule)
	require.NoError(t, err)
	require.Equal(t, 100, s.Timesteps())

	assert.EqualValues(t, 1, s.alphasCumprodPrev[0])
	assert.EqualValues(t, 0, s.posteriorVariance[0])

	prev := float32(1)
	for i := 0; i < 100; i++ {
		acp := s.alphasCumprod[i]
		assert.Greater(t, acp, float32(0), "acp[%d]", i)
		assert.Less(t, acp, prev, "acp must strictly decrease at %d", i)
		prev = acp

		assert.InDelta(t, float64(acp), float64(s.sqrtAlphasCumprod[i]*s.sqrtAlphasCumprod[i]), 1e-5)
		assert.InDelta(t, float64(1-acp), float64(s.sqrtOneMinusAlphasCumprod[i]*s.sqrtOneMinusAlphasCumprod[i]), 1e-5)
		assert.InDelta(t, 1/math.Sqrt(float64(s.alphas[i])), float64(s.sqrtRecipAlphas[i]), 1e-6)

		if i > 0 {
			assert.InDelta(t, float64(s.alphasCumprod[i-1]), float64(s.alphasCumprodPrev[i]), 1e-7)
			assert.GreaterOrEqual(t, s.posteriorVariance[i], float32(0))
		}
	}
}

func TestNewScheduleDefaultsToLinear(t *testing.T) {
	s, err := NewSchedule(10, nil)
	require.NoError(t, err)

	want := LinearSchedule(10)
	assert.Equal(t, want, s.Betas())
}

func TestNewScheduleValidation(t *testing.T) {
	_, err := NewSchedule(0, LinearSchedule)
	assert.Error(t, err)

	_, err = NewSchedule(10, func(timesteps int) []float32 {
		return make([]float32, timesteps-1)
	})
	assert.Error(t, err)

	_, err = NewSchedule(10, func(timesteps int) []float32 {
		betas := make([]float32, timesteps)
		betas[3] = 1.5
		return betas
	})
	assert.Error(t, err)
}

func TestValidateTimesteps(t *testing.T) {
	s, err := NewSchedule(10, nil)
	require.NoError(t, err)

	assert.NoError(t, s.validateTimesteps([]int{0, 5, 9}))

	err = s.validateTimesteps([]int{10})
	var oor *OutOfRangeTimestepError
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, 10, oor.Timestep)
	assert.Equal(t, 10, oor.Timesteps)
}
