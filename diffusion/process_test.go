package diffusion

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drift-ml/drift/internal/autodiff"
	"github.com/drift-ml/drift/internal/backend/cpu"
	"github.com/drift-ml/drift/internal/nn"
	"github.com/drift-ml/drift/internal/tensor"
)

type testBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// zeroModel predicts zero noise regardless of the input.
type zeroModel struct {
	backend testBackend
}

func (m *zeroModel) PredictNoise(x *tensor.Tensor[float32, testBackend], t []int) *tensor.Tensor[float32, testBackend] {
	return tensor.Zeros[float32](x.Shape(), m.backend)
}

func (m *zeroModel) Parameters() []*nn.Parameter[testBackend] {
	return nil
}

func newTestProcess(t *testing.T, timesteps int, seed uint64) (*Process[testBackend], testBackend) {
	t.Helper()
	backend := autodiff.New(cpu.New())
	schedule, err := NewSchedule(timesteps, LinearSchedule)
	require.NoError(t, err)
	return NewProcess(schedule, rand.New(rand.NewPCG(seed, seed)), backend), backend
}

func TestExtract(t *testing.T) {
	backend := autodiff.New(cpu.New())
	coeffs := []float32{0.1, 0.2, 0.3}

	out, err := Extract(coeffs, []int{2, 0}, 4, backend)
	require.NoError(t, err)
	require.True(t, out.Shape().Equal(tensor.Shape{2, 1, 1, 1}), "got %v", out.Shape())
	assert.InDelta(t, 0.3, out.Data()[0], 1e-7)
	assert.InDelta(t, 0.1, out.Data()[1], 1e-7)

	_, err = Extract(coeffs, []int{3}, 4, backend)
	var oor *OutOfRangeTimestepError
	require.ErrorAs(t, err, &oor)
	assert.Equal(t, 3, oor.Timestep)
}

func TestForwardNoiseMatchesClosedForm(t *testing.T) {
	process, backend := newTestProcess(t, 100, 1)
	s := process.Schedule()

	rng := rand.New(rand.NewPCG(2, 2))
	x0 := tensor.Randn(tensor.Shape{2, 1, 4, 4}, rng, backend)
	noise := tensor.Randn(tensor.Shape{2, 1, 4, 4}, rng, backend)
	ts := []int{3, 70}

	xt, err := process.ForwardNoise(x0, noise, ts)
	require.NoError(t, err)
	require.True(t, xt.Shape().Equal(x0.Shape()))

	x0Data, noiseData, xtData := x0.Data(), noise.Data(), xt.Data()
	perSample := 16
	for i := range xtData {
		ti := ts[i/perSample]
		want := s.sqrtAlphasCumprod[ti]*x0Data[i] + s.sqrtOneMinusAlphasCumprod[ti]*noiseData[i]
		assert.InDelta(t, float64(want), float64(xtData[i]), 1e-5, "element %d", i)
	}
}

func TestForwardNoiseAtZeroKeepsImage(t *testing.T) {
	process, backend := newTestProcess(t, 1000, 3)

	x0 := tensor.Full[float32](tensor.Shape{1, 1, 4, 4}, 0.5, backend)
	noise := tensor.Randn(x0.Shape(), rand.New(rand.NewPCG(4, 4)), backend)

	xt, err := process.ForwardNoise(x0, noise, []int{0})
	require.NoError(t, err)

	// At t=0 only a sqrt(beta0)=0.01 fraction of noise is mixed in.
	for i, v := range xt.Data() {
		assert.InDelta(t, 0.5, v, 0.05, "element %d", i)
	}
}

func TestForwardNoiseValidation(t *testing.T) {
	process, backend := newTestProcess(t, 10, 5)

	x0 := tensor.Zeros[float32](tensor.Shape{2, 1, 4, 4}, backend)
	smaller := tensor.Zeros[float32](tensor.Shape{2, 1, 2, 2}, backend)
	noise := tensor.Zeros[float32](x0.Shape(), backend)

	_, err := process.ForwardNoise(x0, smaller, []int{0, 0})
	var mismatch *ShapeMismatchError
	assert.ErrorAs(t, err, &mismatch)

	_, err = process.ForwardNoise(x0, noise, []int{0})
	assert.ErrorAs(t, err, &mismatch)

	_, err = process.ForwardNoise(x0, noise, []int{0, 10})
	var oor *OutOfRangeTimestepError
	assert.ErrorAs(t, err, &oor)
}

func TestLossKinds(t *testing.T) {
	process, backend := newTestProcess(t, 50, 6)
	model := &zeroModel{backend: backend}
	x0 := tensor.Zeros[float32](tensor.Shape{2, 1, 8, 8}, backend)

	for _, kind := range []LossKind{LossL1, LossL2, LossHuber} {
		loss, err := process.Loss(model, x0, nil, []int{10, 40}, kind)
		require.NoError(t, err, "kind %v", kind)
		require.Empty(t, loss.Shape(), "loss must be scalar for %v", kind)
		assert.Greater(t, loss.Item(), float32(0), "kind %v", kind)
		assert.False(t, math.IsNaN(float64(loss.Item())), "kind %v", kind)
	}

	_, err := process.Loss(model, x0, nil, []int{10, 40}, LossKind(42))
	var unsupported *UnsupportedLossKindError
	require.ErrorAs(t, err, &unsupported)
	assert.Equal(t, LossKind(42), unsupported.Kind)
}

func TestLossL2AgainstZeroModelIsNoisePower(t *testing.T) {
	process, backend := newTestProcess(t, 50, 7)
	model := &zeroModel{backend: backend}

	// With a zero prediction the L2 loss is mean(noise^2), which
	// concentrates around 1 for standard normal noise.
	x0 := tensor.Zeros[float32](tensor.Shape{4, 1, 8, 8}, backend)
	loss, err := process.Loss(model, x0, nil, []int{10, 20, 30, 40}, LossL2)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, float64(loss.Item()), 0.3)
}

// fixedModel predicts a fixed tensor regardless of the input.
type fixedModel struct {
	out *tensor.Tensor[float32, testBackend]
}

func (m *fixedModel) PredictNoise(x *tensor.Tensor[float32, testBackend], t []int) *tensor.Tensor[float32, testBackend] {
	return m.out
}

func (m *fixedModel) Parameters() []*nn.Parameter[testBackend] {
	return nil
}

func TestLossExactWithInjectedNoise(t *testing.T) {
	process, backend := newTestProcess(t, 50, 9)

	x0 := tensor.Zeros[float32](tensor.Shape{2, 1, 4, 4}, backend)
	noise := tensor.Randn(x0.Shape(), rand.New(rand.NewPCG(10, 10)), backend)
	ts := []int{5, 25}

	// A model predicting the injected noise exactly has zero L1 loss.
	exact := &fixedModel{out: noise}
	loss, err := process.Loss(exact, x0, noise, ts, LossL1)
	require.NoError(t, err)
	assert.InDelta(t, 0, float64(loss.Item()), 1e-6)

	// A model predicting the negated noise is off by 2*|noise| per
	// element, so the L1 loss is exactly 2*mean(|noise|).
	negated := &fixedModel{out: noise.MulScalar(-1)}
	loss, err = process.Loss(negated, x0, noise, ts, LossL1)
	require.NoError(t, err)

	var meanAbs float64
	for _, v := range noise.Data() {
		meanAbs += math.Abs(float64(v))
	}
	meanAbs /= float64(len(noise.Data()))
	assert.InDelta(t, 2*meanAbs, float64(loss.Item()), 1e-5)
}

func TestForwardNoiseDrawsWhenNil(t *testing.T) {
	processA, backendA := newTestProcess(t, 10, 11)
	processB, backendB := newTestProcess(t, 10, 11)

	x0A := tensor.Zeros[float32](tensor.Shape{1, 1, 4, 4}, backendA)
	x0B := tensor.Zeros[float32](tensor.Shape{1, 1, 4, 4}, backendB)

	xtA, err := processA.ForwardNoise(x0A, nil, []int{9})
	require.NoError(t, err)
	xtB, err := processB.ForwardNoise(x0B, nil, []int{9})
	require.NoError(t, err)

	// The drawn noise comes from the process rng: same seed, same draw.
	assert.Equal(t, xtA.Data(), xtB.Data())

	var sumSq float64
	for _, v := range xtA.Data() {
		sumSq += float64(v) * float64(v)
	}
	assert.Greater(t, sumSq, 0.0, "nil noise must draw, not zero-fill")
}

func TestHuberValues(t *testing.T) {
	backend := autodiff.New(cpu.New())

	residual, err := tensor.FromSlice([]float32{0.5, -2}, tensor.Shape{2}, backend)
	require.NoError(t, err)

	// 0.5*0.25 inside the unit band, 2-0.5 outside; mean of both.
	got := huber(residual).Item()
	assert.InDelta(t, (0.125+1.5)/2, float64(got), 1e-5)
}

func TestSampleTimesteps(t *testing.T) {
	process, _ := newTestProcess(t, 25, 8)

	ts := process.SampleTimesteps(100)
	require.Len(t, ts, 100)
	for _, ti := range ts {
		assert.GreaterOrEqual(t, ti, 0)
		assert.Less(t, ti, 25)
	}
}

func TestLossKindString(t *testing.T) {
	assert.Equal(t, "l1", LossL1.String())
	assert.Equal(t, "l2", LossL2.String())
	assert.Equal(t, "huber", LossHuber.String())
	assert.Equal(t, "unknown", LossKind(9).String())
}
