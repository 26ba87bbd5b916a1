package optim_test

import (
	"math"
	"testing"

	"github.com/drift-ml/drift/internal/autodiff"
	"github.com/drift-ml/drift/internal/backend/cpu"
	"github.com/drift-ml/drift/internal/nn"
	"github.com/drift-ml/drift/internal/optim"
	"github.com/drift-ml/drift/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// quadraticStep computes the loss sum(x^2) for the parameter, runs one
// optimizer step and returns the new loss.
func quadraticStep(t *testing.T, backend Backend, param *nn.Parameter[Backend], opt optim.Optimizer) float32 {
	t.Helper()
	tape := backend.Tape()

	opt.ZeroGrad()
	tape.Clear()
	tape.StartRecording()

	x := param.Tensor()
	_ = x.Mul(x).Sum()

	seed := tensor.Ones[float32](tensor.Shape{}, backend)
	grads := tape.Backward(seed.Raw(), backend)
	tape.StopRecording()

	opt.Step(grads)

	var sum float32
	for _, v := range param.Tensor().Data() {
		sum += v * v
	}
	return sum
}

func TestSGDReducesQuadratic(t *testing.T) {
	backend := autodiff.New(cpu.New())

	start := []float32{1, -2, 3}
	x, err := tensor.FromSlice(start, tensor.Shape{3}, backend)
	if err != nil {
		t.Fatal(err)
	}
	param := nn.NewParameter("x", x)
	opt := optim.NewSGD([]*nn.Parameter[Backend]{param}, optim.SGDConfig{LR: 0.1}, backend)

	before := float32(1 + 4 + 9)
	after := quadraticStep(t, backend, param, opt)
	if after >= before {
		t.Errorf("SGD did not reduce loss: %v -> %v", before, after)
	}

	// One step of lr=0.1 on d/dx x^2 = 2x scales x by 0.8.
	want := []float32{0.8, -1.6, 2.4}
	for i, v := range param.Tensor().Data() {
		if math.Abs(float64(v-want[i])) > 1e-5 {
			t.Errorf("param[%d] = %v, want %v", i, v, want[i])
		}
	}
}

func TestSGDMomentumAccumulates(t *testing.T) {
	backend := autodiff.New(cpu.New())

	x, _ := tensor.FromSlice([]float32{1}, tensor.Shape{1}, backend)
	param := nn.NewParameter("x", x)
	opt := optim.NewSGD([]*nn.Parameter[Backend]{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)

	quadraticStep(t, backend, param, opt)
	first := param.Tensor().Data()[0]

	quadraticStep(t, backend, param, opt)
	second := param.Tensor().Data()[0]

	// With momentum the second step is larger than a plain SGD step
	// from the same point would be.
	plain := first - 0.1*2*first
	if second >= plain {
		t.Errorf("momentum step %v not larger than plain step to %v", second, plain)
	}
}

func TestAdamReducesQuadratic(t *testing.T) {
	backend := autodiff.New(cpu.New())

	x, _ := tensor.FromSlice([]float32{1, -2, 3}, tensor.Shape{3}, backend)
	param := nn.NewParameter("x", x)
	opt := optim.NewAdam([]*nn.Parameter[Backend]{param}, optim.AdamConfig{LR: 0.1}, backend)

	loss := quadraticStep(t, backend, param, opt)
	for i := 0; i < 50; i++ {
		next := quadraticStep(t, backend, param, opt)
		if next > loss+1e-4 {
			t.Fatalf("Adam loss increased at step %d: %v -> %v", i, loss, next)
		}
		loss = next
	}
	if loss > 1 {
		t.Errorf("Adam did not make progress: final loss %v", loss)
	}
}

func TestAdamFirstStepIsLR(t *testing.T) {
	backend := autodiff.New(cpu.New())

	x, _ := tensor.FromSlice([]float32{5}, tensor.Shape{1}, backend)
	param := nn.NewParameter("x", x)
	opt := optim.NewAdam([]*nn.Parameter[Backend]{param}, optim.AdamConfig{LR: 0.01}, backend)

	quadraticStep(t, backend, param, opt)

	// Bias correction makes the first Adam update approximately
	// lr * sign(grad).
	got := param.Tensor().Data()[0]
	if math.Abs(float64(got-(5-0.01))) > 1e-4 {
		t.Errorf("first Adam step moved to %v, want ~4.99", got)
	}
}

func TestZeroGradClearsParameters(t *testing.T) {
	backend := autodiff.New(cpu.New())

	x := tensor.Ones[float32](tensor.Shape{2}, backend)
	param := nn.NewParameter("x", x)
	param.SetGrad(tensor.Ones[float32](tensor.Shape{2}, backend))

	opt := optim.NewAdam([]*nn.Parameter[Backend]{param}, optim.AdamConfig{}, backend)
	opt.ZeroGrad()

	if param.Grad() != nil {
		t.Error("ZeroGrad left gradient in place")
	}
}

func TestOptimizerSkipsMissingGradients(t *testing.T) {
	backend := autodiff.New(cpu.New())

	x, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	param := nn.NewParameter("x", x)
	opt := optim.NewAdam([]*nn.Parameter[Backend]{param}, optim.AdamConfig{}, backend)

	opt.Step(map[*tensor.RawTensor]*tensor.RawTensor{})

	if param.Tensor().Data()[0] != 1 || param.Tensor().Data()[1] != 2 {
		t.Error("Step without gradients mutated the parameter")
	}
}
