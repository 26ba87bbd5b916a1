package diffusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drift-ml/drift/internal/autodiff"
	"github.com/drift-ml/drift/internal/backend/cpu"
	"github.com/drift-ml/drift/internal/nn"
	"github.com/drift-ml/drift/internal/tensor"
)

func TestTimeEmbedding(t *testing.T) {
	backend := autodiff.New(cpu.New())
	emb := NewTimeEmbedding(8, backend)

	require.Equal(t, 32, emb.OutDim())

	out := emb.Forward([]int{0, 10, 100})
	require.True(t, out.Shape().Equal(tensor.Shape{3, 32}), "got %v", out.Shape())

	// Same timesteps give the same embedding.
	again := emb.Forward([]int{0, 10, 100})
	assert.Equal(t, out.Data(), again.Data())

	// Different timesteps give a different embedding.
	other := emb.Forward([]int{1, 11, 101})
	assert.NotEqual(t, out.Data(), other.Data())

	assert.NotEmpty(t, emb.Parameters())
}

func TestTimeEmbeddingRejectsBadDim(t *testing.T) {
	backend := autodiff.New(cpu.New())

	assert.Panics(t, func() { NewTimeEmbedding(7, backend) })
	assert.Panics(t, func() { NewTimeEmbedding(2, backend) })
}

func TestResnetBlockShapes(t *testing.T) {
	backend := autodiff.New(cpu.New())
	block := NewResnetBlock(4, 8, 16, 4, backend)

	x := tensor.Ones[float32](tensor.Shape{2, 4, 8, 8}, backend)
	temb := tensor.Ones[float32](tensor.Shape{2, 16}, backend)

	out := block.ForwardWith(x, temb)
	assert.True(t, out.Shape().Equal(tensor.Shape{2, 8, 8, 8}), "got %v", out.Shape())

	// Unconditioned head block: nil embedding is allowed.
	head := NewResnetBlock(4, 4, 0, 4, backend)
	out = head.ForwardWith(x, nil)
	assert.True(t, out.Shape().Equal(x.Shape()))
}

func TestConvNextBlockShapes(t *testing.T) {
	backend := autodiff.New(cpu.New())
	block := NewConvNextBlock(4, 8, 16, 2, backend)

	x := tensor.Ones[float32](tensor.Shape{2, 4, 8, 8}, backend)
	temb := tensor.Ones[float32](tensor.Shape{2, 16}, backend)

	out := block.ForwardWith(x, temb)
	assert.True(t, out.Shape().Equal(tensor.Shape{2, 8, 8, 8}), "got %v", out.Shape())
}

func TestResidualAddsInput(t *testing.T) {
	backend := autodiff.New(cpu.New())

	res := NewResidual[testBackend](identityModule{})
	x := tensor.Full[float32](tensor.Shape{1, 2}, 3, backend)
	out := res.Forward(x)
	for _, v := range out.Data() {
		assert.EqualValues(t, 6, v)
	}
}

type identityModule struct{}

func (identityModule) Forward(x *tensor.Tensor[float32, testBackend]) *tensor.Tensor[float32, testBackend] {
	return x
}

func (identityModule) Parameters() []*nn.Parameter[testBackend] {
	return nil
}

func TestAttentionShapes(t *testing.T) {
	backend := autodiff.New(cpu.New())
	x := tensor.Randn(tensor.Shape{1, 8, 4, 4}, nil, backend)

	full := NewAttention(8, backend)
	out := full.Forward(x)
	assert.True(t, out.Shape().Equal(x.Shape()), "full attention got %v", out.Shape())
	assert.NotEmpty(t, full.Parameters())

	linear := NewLinearAttention(8, backend)
	out = linear.Forward(x)
	assert.True(t, out.Shape().Equal(x.Shape()), "linear attention got %v", out.Shape())
	assert.NotEmpty(t, linear.Parameters())
}

func TestUNetConfigDefaults(t *testing.T) {
	c := UNetConfig{Dim: 12}.withDefaults()

	assert.Equal(t, 8, c.InitDim) // 12/3*2
	assert.Equal(t, 1, c.Channels)
	assert.Equal(t, 1, c.OutDim)
	assert.Equal(t, []int{1, 2, 4, 8}, c.DimMults)
	assert.Equal(t, BlockResnet, c.BlockKind)
	assert.Equal(t, 2, c.ConvNextMult)
	assert.Equal(t, 8, c.ResnetGroups)

	// The zero BlockKind must resolve to the residual variant.
	assert.Equal(t, BlockResnet, UNetConfig{}.withDefaults().BlockKind)
}

func TestUNetConfigValidate(t *testing.T) {
	assert.NoError(t, UNetConfig{Dim: 8}.Validate())
	assert.Error(t, UNetConfig{Dim: 7}.Validate())
	assert.Error(t, UNetConfig{}.Validate())
	assert.Error(t, UNetConfig{Dim: 8, DimMults: []int{1, 0}}.Validate())
}

func TestUNetRoundTrip(t *testing.T) {
	backend := autodiff.New(cpu.New())

	model, err := NewUNet(UNetConfig{
		Dim:      8,
		Channels: 1,
		DimMults: []int{1, 2},
	}, backend)
	require.NoError(t, err)
	assert.Greater(t, model.NumParameters(), 0)

	x := tensor.Randn(tensor.Shape{2, 1, 8, 8}, nil, backend)
	out := model.Forward(x, []int{3, 7})
	require.True(t, out.Shape().Equal(tensor.Shape{2, 1, 8, 8}), "got %v", out.Shape())

	// PredictNoise is the NoiseModel view of Forward.
	var _ NoiseModel[testBackend] = model
}

func TestUNetResnetVariant(t *testing.T) {
	backend := autodiff.New(cpu.New())

	model, err := NewUNet(UNetConfig{
		Dim:          8,
		Channels:     1,
		DimMults:     []int{1, 2},
		BlockKind:    BlockResnet,
		ResnetGroups: 4,
	}, backend)
	require.NoError(t, err)

	x := tensor.Randn(tensor.Shape{1, 1, 8, 8}, nil, backend)
	out := model.Forward(x, []int{0})
	assert.True(t, out.Shape().Equal(tensor.Shape{1, 1, 8, 8}), "got %v", out.Shape())
}

func TestUNetInputValidation(t *testing.T) {
	backend := autodiff.New(cpu.New())

	model, err := NewUNet(UNetConfig{Dim: 8, Channels: 1, DimMults: []int{1, 2}}, backend)
	require.NoError(t, err)

	assert.Panics(t, func() {
		model.Forward(tensor.Zeros[float32](tensor.Shape{1, 3, 8, 8}, backend), []int{0})
	}, "wrong channel count")

	assert.Panics(t, func() {
		model.Forward(tensor.Zeros[float32](tensor.Shape{1, 1, 8, 8}, backend), []int{0, 1})
	}, "timestep count mismatch")

	assert.Panics(t, func() {
		model.Forward(tensor.Zeros[float32](tensor.Shape{1, 1, 7, 7}, backend), []int{0})
	}, "indivisible spatial dims")
}

func TestBlockKindString(t *testing.T) {
	assert.Equal(t, "convnext", BlockConvNext.String())
	assert.Equal(t, "resnet", BlockResnet.String())
	assert.Equal(t, "unknown", BlockKind(5).String())
}
