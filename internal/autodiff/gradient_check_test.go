package autodiff_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/drift-ml/drift/internal/autodiff"
	"github.com/drift-ml/drift/internal/backend/cpu"
	"github.com/drift-ml/drift/internal/tensor"
)

type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// checkGradients compares the taped gradient of a scalar-valued forward
// function against central finite differences, element by element.
func checkGradients(
	t *testing.T,
	backend Backend,
	forward func() *tensor.Tensor[float32, Backend],
	inputs ...*tensor.Tensor[float32, Backend],
) {
	t.Helper()
	tape := backend.Tape()

	tape.Clear()
	tape.StartRecording()
	loss := forward()
	if len(loss.Shape()) != 0 {
		t.Fatalf("forward must produce a scalar, got shape %v", loss.Shape())
	}
	seed := tensor.Ones[float32](tensor.Shape{}, backend)
	grads := tape.Backward(seed.Raw(), backend)
	tape.StopRecording()
	tape.Clear()

	const eps = 1e-2
	const tol = 1e-2

	for n, input := range inputs {
		grad := grads[input.Raw()]
		if grad == nil {
			t.Fatalf("input %d received no gradient", n)
		}
		gradData := grad.AsFloat32()
		data := input.Data()

		for i := range data {
			orig := data[i]
			data[i] = orig + eps
			plus := forward().Item()
			data[i] = orig - eps
			minus := forward().Item()
			data[i] = orig

			numeric := (plus - minus) / (2 * eps)
			if math.Abs(float64(gradData[i]-numeric)) > tol {
				t.Errorf("input %d grad[%d] = %v, numeric %v", n, i, gradData[i], numeric)
			}
		}
	}
}

func randTensor(shape tensor.Shape, seed uint64, backend Backend) *tensor.Tensor[float32, Backend] {
	return tensor.Randn(shape, rand.New(rand.NewPCG(seed, seed)), backend)
}

func TestGradMulBroadcast(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := randTensor(tensor.Shape{2, 3}, 1, backend)
	y := randTensor(tensor.Shape{3}, 2, backend)

	checkGradients(t, backend, func() *tensor.Tensor[float32, Backend] {
		return x.Mul(y).Mean()
	}, x, y)
}

func TestGradDiv(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := randTensor(tensor.Shape{4}, 3, backend)
	y := randTensor(tensor.Shape{4}, 4, backend).Abs().AddScalar(1)

	checkGradients(t, backend, func() *tensor.Tensor[float32, Backend] {
		return x.Div(y).Sum()
	}, x)
}

func TestGradExpSqrt(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := randTensor(tensor.Shape{4}, 5, backend).Abs().AddScalar(0.5)

	checkGradients(t, backend, func() *tensor.Tensor[float32, Backend] {
		return x.Sqrt().Exp().Sum()
	}, x)
}

func TestGradAbs(t *testing.T) {
	backend := autodiff.New(cpu.New())
	// Stay away from the kink at zero.
	x, err := tensor.FromSlice([]float32{-2, -0.5, 0.5, 2}, tensor.Shape{4}, backend)
	if err != nil {
		t.Fatal(err)
	}

	checkGradients(t, backend, func() *tensor.Tensor[float32, Backend] {
		return x.Abs().Sum()
	}, x)
}

func TestGradMatMul(t *testing.T) {
	backend := autodiff.New(cpu.New())
	a := randTensor(tensor.Shape{2, 3}, 6, backend)
	b := randTensor(tensor.Shape{3, 2}, 7, backend)

	checkGradients(t, backend, func() *tensor.Tensor[float32, Backend] {
		return a.MatMul(b).Mean()
	}, a, b)
}

func TestGradBatchMatMul(t *testing.T) {
	backend := autodiff.New(cpu.New())
	a := randTensor(tensor.Shape{2, 2, 3}, 8, backend)
	b := randTensor(tensor.Shape{2, 3, 2}, 9, backend)

	checkGradients(t, backend, func() *tensor.Tensor[float32, Backend] {
		return a.BatchMatMul(b).Mean()
	}, a, b)
}

func TestGradSoftmax(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := randTensor(tensor.Shape{2, 4}, 10, backend)
	w := randTensor(tensor.Shape{2, 4}, 11, backend)

	checkGradients(t, backend, func() *tensor.Tensor[float32, Backend] {
		return x.Softmax(-1).Mul(w).Sum()
	}, x)
}

func TestGradMeanDim(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := randTensor(tensor.Shape{2, 3}, 12, backend)

	checkGradients(t, backend, func() *tensor.Tensor[float32, Backend] {
		return x.MeanDim(1, true).Sum()
	}, x)
}

func TestGradConv2D(t *testing.T) {
	backend := autodiff.New(cpu.New())
	input := randTensor(tensor.Shape{1, 1, 4, 4}, 13, backend)
	kernel := randTensor(tensor.Shape{2, 1, 3, 3}, 14, backend)

	checkGradients(t, backend, func() *tensor.Tensor[float32, Backend] {
		raw := backend.Conv2D(input.Raw(), kernel.Raw(), 1, 1, 1)
		return tensor.New[float32](raw, backend).Mean()
	}, input, kernel)
}

func TestGradConv2DDepthwise(t *testing.T) {
	backend := autodiff.New(cpu.New())
	input := randTensor(tensor.Shape{1, 2, 4, 4}, 15, backend)
	kernel := randTensor(tensor.Shape{2, 1, 3, 3}, 16, backend)

	checkGradients(t, backend, func() *tensor.Tensor[float32, Backend] {
		raw := backend.Conv2D(input.Raw(), kernel.Raw(), 1, 1, 2)
		return tensor.New[float32](raw, backend).Mean()
	}, input, kernel)
}

func TestGradConvTranspose2D(t *testing.T) {
	backend := autodiff.New(cpu.New())
	input := randTensor(tensor.Shape{1, 2, 2, 2}, 17, backend)
	kernel := randTensor(tensor.Shape{2, 1, 4, 4}, 18, backend)

	checkGradients(t, backend, func() *tensor.Tensor[float32, Backend] {
		raw := backend.ConvTranspose2D(input.Raw(), kernel.Raw(), 2, 1)
		return tensor.New[float32](raw, backend).Mean()
	}, input, kernel)
}

func TestGradSiLU(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := randTensor(tensor.Shape{5}, 19, backend)

	checkGradients(t, backend, func() *tensor.Tensor[float32, Backend] {
		raw := backend.SiLU(x.Raw())
		return tensor.New[float32](raw, backend).Sum()
	}, x)
}

func TestGradGELU(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := randTensor(tensor.Shape{5}, 20, backend)

	checkGradients(t, backend, func() *tensor.Tensor[float32, Backend] {
		raw := backend.GELU(x.Raw())
		return tensor.New[float32](raw, backend).Sum()
	}, x)
}

func TestGradCatChunk(t *testing.T) {
	backend := autodiff.New(cpu.New())
	a := randTensor(tensor.Shape{2, 2}, 21, backend)
	b := randTensor(tensor.Shape{2, 2}, 22, backend)

	checkGradients(t, backend, func() *tensor.Tensor[float32, Backend] {
		cat := tensor.Cat([]*tensor.Tensor[float32, Backend]{a, b}, 1)
		chunks := cat.Chunk(2, 1)
		return chunks[0].Mul(chunks[1]).Sum()
	}, a, b)
}

func TestGradWhere(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x, _ := tensor.FromSlice([]float32{-2, -0.5, 0.5, 2}, tensor.Shape{4}, backend)
	y := randTensor(tensor.Shape{4}, 23, backend)

	zeros := tensor.Zeros[float32](tensor.Shape{4}, backend)
	checkGradients(t, backend, func() *tensor.Tensor[float32, Backend] {
		return tensor.Where(x.Greater(zeros), x, y).Sum()
	}, x, y)
}

func TestGradReshapeTranspose(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := randTensor(tensor.Shape{2, 3}, 24, backend)
	w := randTensor(tensor.Shape{3, 2}, 25, backend)

	checkGradients(t, backend, func() *tensor.Tensor[float32, Backend] {
		return x.Transpose().Mul(w).Sum()
	}, x)
}
