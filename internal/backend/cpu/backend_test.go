package cpu_test

import (
	"math"
	"testing"

	"github.com/drift-ml/drift/internal/backend/cpu"
	"github.com/drift-ml/drift/internal/tensor"
)

func fromSlice(t *testing.T, data []float32, shape tensor.Shape) *tensor.Tensor[float32, *cpu.CPUBackend] {
	t.Helper()
	x, err := tensor.FromSlice(data, shape, cpu.New())
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	return x
}

func wantClose(t *testing.T, got, want []float32, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > tol {
			t.Errorf("data[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestAddBroadcast(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := fromSlice(t, []float32{10, 20, 30}, tensor.Shape{3})

	out := a.Add(b)
	if !out.Shape().Equal(tensor.Shape{2, 3}) {
		t.Fatalf("shape = %v, want [2 3]", out.Shape())
	}
	wantClose(t, out.Data(), []float32{11, 22, 33, 14, 25, 36}, 0)
}

func TestScalarOps(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3}, tensor.Shape{3})

	wantClose(t, x.AddScalar(1).Data(), []float32{2, 3, 4}, 0)
	wantClose(t, x.SubScalar(1).Data(), []float32{0, 1, 2}, 0)
	wantClose(t, x.MulScalar(2).Data(), []float32{2, 4, 6}, 0)
	wantClose(t, x.DivScalar(2).Data(), []float32{0.5, 1, 1.5}, 0)
}

func TestUnaryMath(t *testing.T) {
	x := fromSlice(t, []float32{-2, 0.25, 4}, tensor.Shape{3})

	wantClose(t, x.Abs().Data(), []float32{2, 0.25, 4}, 0)

	pos := fromSlice(t, []float32{0.25, 1, 4}, tensor.Shape{3})
	wantClose(t, pos.Sqrt().Data(), []float32{0.5, 1, 2}, 1e-6)
	wantClose(t, pos.Rsqrt().Data(), []float32{2, 1, 0.5}, 1e-6)
}

func TestSoftmax(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3, 1, 1, 1}, tensor.Shape{2, 3})

	out := x.Softmax(-1).Data()

	// Row sums are 1.
	for r := 0; r < 2; r++ {
		sum := out[r*3] + out[r*3+1] + out[r*3+2]
		if math.Abs(float64(sum-1)) > 1e-5 {
			t.Errorf("row %d sums to %v, want 1", r, sum)
		}
	}
	// Uniform row stays uniform.
	wantClose(t, out[3:], []float32{1.0 / 3, 1.0 / 3, 1.0 / 3}, 1e-5)
	// Larger logits get larger mass.
	if !(out[0] < out[1] && out[1] < out[2]) {
		t.Errorf("softmax not increasing with logits: %v", out[:3])
	}
}

func TestMatMul(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := fromSlice(t, []float32{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2})

	out := a.MatMul(b)
	if !out.Shape().Equal(tensor.Shape{2, 2}) {
		t.Fatalf("shape = %v, want [2 2]", out.Shape())
	}
	wantClose(t, out.Data(), []float32{58, 64, 139, 154}, 1e-5)
}

func TestBatchMatMul(t *testing.T) {
	a := fromSlice(t, []float32{
		1, 0, 0, 1, // identity
		2, 0, 0, 2, // 2*identity
	}, tensor.Shape{2, 2, 2})
	b := fromSlice(t, []float32{
		1, 2, 3, 4,
		1, 2, 3, 4,
	}, tensor.Shape{2, 2, 2})

	out := a.BatchMatMul(b)
	if !out.Shape().Equal(tensor.Shape{2, 2, 2}) {
		t.Fatalf("shape = %v, want [2 2 2]", out.Shape())
	}
	wantClose(t, out.Data(), []float32{1, 2, 3, 4, 2, 4, 6, 8}, 1e-5)
}

func TestConv2DSimple(t *testing.T) {
	input := fromSlice(t, []float32{
		1, 1, 1,
		1, 1, 1,
		1, 1, 1,
	}, tensor.Shape{1, 1, 3, 3})
	kernel := fromSlice(t, []float32{1, 1, 1, 1}, tensor.Shape{1, 1, 2, 2})

	backend := cpu.New()
	out := backend.Conv2D(input.Raw(), kernel.Raw(), 1, 0, 1)

	if !out.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("shape = %v, want [1 1 2 2]", out.Shape())
	}
	wantClose(t, out.AsFloat32(), []float32{4, 4, 4, 4}, 1e-6)
}

func TestConv2DPaddingAndStride(t *testing.T) {
	input := fromSlice(t, make([]float32, 16), tensor.Shape{1, 1, 4, 4})
	kernel := fromSlice(t, make([]float32, 16), tensor.Shape{1, 1, 4, 4})

	backend := cpu.New()
	// Downsample geometry used throughout the U-Net: k4 s2 p1 halves.
	out := backend.Conv2D(input.Raw(), kernel.Raw(), 2, 1, 1)
	if !out.Shape().Equal(tensor.Shape{1, 1, 2, 2}) {
		t.Fatalf("k4 s2 p1 shape = %v, want [1 1 2 2]", out.Shape())
	}
}

func TestConv2DDepthwise(t *testing.T) {
	input := fromSlice(t, []float32{
		1, 2, 3, 4, // channel 0
		5, 6, 7, 8, // channel 1
	}, tensor.Shape{1, 2, 2, 2})
	// One 1x1 kernel per channel: scale ch0 by 2, ch1 by 3.
	kernel := fromSlice(t, []float32{2, 3}, tensor.Shape{2, 1, 1, 1})

	backend := cpu.New()
	out := backend.Conv2D(input.Raw(), kernel.Raw(), 1, 0, 2)

	if !out.Shape().Equal(tensor.Shape{1, 2, 2, 2}) {
		t.Fatalf("shape = %v, want [1 2 2 2]", out.Shape())
	}
	wantClose(t, out.AsFloat32(), []float32{2, 4, 6, 8, 15, 18, 21, 24}, 1e-6)
}

func TestConvTranspose2DUpsamples(t *testing.T) {
	input := fromSlice(t, []float32{1, 1, 1, 1}, tensor.Shape{1, 1, 2, 2})
	kernel := fromSlice(t, []float32{1, 1, 1, 1}, tensor.Shape{1, 1, 2, 2})

	backend := cpu.New()
	// Non-overlapping stride: every output cell gets exactly one hit.
	out := backend.ConvTranspose2D(input.Raw(), kernel.Raw(), 2, 0)

	if !out.Shape().Equal(tensor.Shape{1, 1, 4, 4}) {
		t.Fatalf("shape = %v, want [1 1 4 4]", out.Shape())
	}
	for i, v := range out.AsFloat32() {
		if v != 1 {
			t.Errorf("out[%d] = %v, want 1", i, v)
		}
	}

	// Upsample geometry used in the U-Net: k4 s2 p1 doubles.
	input2 := fromSlice(t, make([]float32, 4), tensor.Shape{1, 1, 2, 2})
	kernel2 := fromSlice(t, make([]float32, 16), tensor.Shape{1, 1, 4, 4})
	out2 := backend.ConvTranspose2D(input2.Raw(), kernel2.Raw(), 2, 1)
	if !out2.Shape().Equal(tensor.Shape{1, 1, 4, 4}) {
		t.Fatalf("k4 s2 p1 shape = %v, want [1 1 4 4]", out2.Shape())
	}
}

func TestReductions(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	if got := x.Sum().Item(); got != 21 {
		t.Errorf("Sum = %v, want 21", got)
	}
	if got := x.Mean().Item(); math.Abs(float64(got-3.5)) > 1e-6 {
		t.Errorf("Mean = %v, want 3.5", got)
	}

	rows := x.SumDim(1, false)
	if !rows.Shape().Equal(tensor.Shape{2}) {
		t.Fatalf("SumDim shape = %v, want [2]", rows.Shape())
	}
	wantClose(t, rows.Data(), []float32{6, 15}, 1e-6)

	cols := x.MeanDim(0, true)
	if !cols.Shape().Equal(tensor.Shape{1, 3}) {
		t.Fatalf("MeanDim keepDim shape = %v, want [1 3]", cols.Shape())
	}
	wantClose(t, cols.Data(), []float32{2.5, 3.5, 4.5}, 1e-6)
}

func TestTranspose(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	y := x.Transpose()
	if !y.Shape().Equal(tensor.Shape{3, 2}) {
		t.Fatalf("shape = %v, want [3 2]", y.Shape())
	}
	wantClose(t, y.Data(), []float32{1, 4, 2, 5, 3, 6}, 0)

	// Swap the last two axes of a 3D tensor.
	z := fromSlice(t, []float32{1, 2, 3, 4, 5, 6, 7, 8}, tensor.Shape{2, 2, 2}).Transpose(0, 2, 1)
	wantClose(t, z.Data(), []float32{1, 3, 2, 4, 5, 7, 6, 8}, 0)
}

func TestCatChunk(t *testing.T) {
	a := fromSlice(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := fromSlice(t, []float32{5, 6, 7, 8}, tensor.Shape{2, 2})

	cat := tensor.Cat([]*tensor.Tensor[float32, *cpu.CPUBackend]{a, b}, 1)
	if !cat.Shape().Equal(tensor.Shape{2, 4}) {
		t.Fatalf("Cat shape = %v, want [2 4]", cat.Shape())
	}
	wantClose(t, cat.Data(), []float32{1, 2, 5, 6, 3, 4, 7, 8}, 0)

	chunks := cat.Chunk(2, 1)
	if len(chunks) != 2 {
		t.Fatalf("Chunk returned %d parts, want 2", len(chunks))
	}
	wantClose(t, chunks[0].Data(), a.Data(), 0)
	wantClose(t, chunks[1].Data(), b.Data(), 0)
}

func TestCompareAndWhere(t *testing.T) {
	a := fromSlice(t, []float32{1, 5, 3}, tensor.Shape{3})
	b := fromSlice(t, []float32{2, 2, 3}, tensor.Shape{3})

	gt := a.Greater(b).Data()
	want := []bool{false, true, false}
	for i := range want {
		if gt[i] != want[i] {
			t.Errorf("Greater[%d] = %v, want %v", i, gt[i], want[i])
		}
	}

	out := tensor.Where(a.Lower(b), a, b)
	wantClose(t, out.Data(), []float32{1, 2, 3}, 0)
}

func TestSqueezeUnsqueeze(t *testing.T) {
	x := fromSlice(t, []float32{1, 2, 3}, tensor.Shape{3})

	y := x.Unsqueeze(0)
	if !y.Shape().Equal(tensor.Shape{1, 3}) {
		t.Fatalf("Unsqueeze shape = %v, want [1 3]", y.Shape())
	}
	z := y.Squeeze(0)
	if !z.Shape().Equal(tensor.Shape{3}) {
		t.Fatalf("Squeeze shape = %v, want [3]", z.Shape())
	}
}
