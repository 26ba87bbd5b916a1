package diffusion

import (
	"fmt"

	"github.com/drift-ml/drift/internal/nn"
	"github.com/drift-ml/drift/internal/tensor"
)

// UNetConfig configures the noise-predicting U-Net. Zero values pick the
// documented defaults.
//
// The network itself is schedule-free: the timestep count and noise
// schedule live on the Schedule built by NewSchedule, which NewProcess
// (training) and NewSampler (generation) consume alongside the network.
type UNetConfig struct {
	// Dim is the base channel width and the sinusoidal time embedding
	// size. Required.
	Dim int

	// InitDim is the channel width after the initial 7x7 convolution.
	// Defaults to Dim/3*2.
	InitDim int

	// OutDim is the number of output channels. Defaults to Channels.
	OutDim int

	// DimMults lists the per-resolution channel multipliers. Defaults
	// to {1, 2, 4, 8}.
	DimMults []int

	// Channels is the number of input image channels. Defaults to 1.
	Channels int

	// BlockKind selects the conditional block variant. Defaults to
	// BlockResnet.
	BlockKind BlockKind

	// ConvNextMult widens the ConvNeXt bottleneck. Defaults to 2.
	ConvNextMult int

	// ResnetGroups is the GroupNorm group count inside resnet blocks.
	// Defaults to 8.
	ResnetGroups int
}

// withDefaults returns a copy with zero fields replaced by defaults.
func (c UNetConfig) withDefaults() UNetConfig {
	if c.InitDim == 0 {
		c.InitDim = c.Dim / 3 * 2
	}
	if c.Channels == 0 {
		c.Channels = 1
	}
	if c.OutDim == 0 {
		c.OutDim = c.Channels
	}
	if len(c.DimMults) == 0 {
		c.DimMults = []int{1, 2, 4, 8}
	}
	if c.ConvNextMult == 0 {
		c.ConvNextMult = 2
	}
	if c.ResnetGroups == 0 {
		c.ResnetGroups = 8
	}
	return c
}

// Validate checks the resolved configuration.
func (c UNetConfig) Validate() error {
	r := c.withDefaults()
	if r.Dim < 4 || r.Dim%2 != 0 {
		return fmt.Errorf("diffusion: unet dim must be even and >= 4, got %d", r.Dim)
	}
	if r.InitDim <= 0 {
		return fmt.Errorf("diffusion: unet init dim must be positive, got %d", r.InitDim)
	}
	if r.Channels <= 0 {
		return fmt.Errorf("diffusion: unet channels must be positive, got %d", r.Channels)
	}
	if r.OutDim <= 0 {
		return fmt.Errorf("diffusion: unet out dim must be positive, got %d", r.OutDim)
	}
	for i, m := range r.DimMults {
		if m <= 0 {
			return fmt.Errorf("diffusion: unet dim mult[%d] must be positive, got %d", i, m)
		}
	}
	if r.ConvNextMult <= 0 {
		return fmt.Errorf("diffusion: unet convnext mult must be positive, got %d", r.ConvNextMult)
	}
	if r.ResnetGroups <= 0 {
		return fmt.Errorf("diffusion: unet resnet groups must be positive, got %d", r.ResnetGroups)
	}
	return nil
}

// downStage is one encoder resolution: two conditional blocks, linear
// attention and an optional strided downsample.
type downStage[B tensor.Backend] struct {
	block1     ConditionalBlock[B]
	block2     ConditionalBlock[B]
	attn       *Residual[B]
	downsample *nn.Conv2D[B] // nil at the lowest resolution
}

// upStage is one decoder resolution: the skip connection is concatenated
// on channels before block1.
type upStage[B tensor.Backend] struct {
	block1   ConditionalBlock[B]
	block2   ConditionalBlock[B]
	attn     *Residual[B]
	upsample *nn.ConvTranspose2D[B]
}

// UNet predicts the noise present in a corrupted image batch, conditioned
// on the diffusion timestep. The architecture follows the DDPM U-Net:
// an encoder over halving resolutions with linear attention, a bottleneck
// with full attention, and a skip-connected decoder.
type UNet[B tensor.Backend] struct {
	config UNetConfig

	initConv *nn.Conv2D[B]
	timeEmb  *TimeEmbedding[B]

	downs []downStage[B]

	midBlock1 ConditionalBlock[B]
	midAttn   *Residual[B]
	midBlock2 ConditionalBlock[B]

	ups []upStage[B]

	headBlock ConditionalBlock[B]
	headConv  *nn.Conv2D[B]

	backend B
}

// NewUNet builds a U-Net from the configuration. Zero config fields take
// the documented defaults.
func NewUNet[B tensor.Backend](config UNetConfig, backend B) (*UNet[B], error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	config = config.withDefaults()

	newBlock, err := newBlockFactory[B](config.BlockKind, config.ResnetGroups, config.ConvNextMult, backend)
	if err != nil {
		return nil, err
	}

	timeEmb := NewTimeEmbedding(config.Dim, backend)
	timeEmbDim := timeEmb.OutDim()

	dims := make([]int, 0, len(config.DimMults)+1)
	dims = append(dims, config.InitDim)
	for _, m := range config.DimMults {
		dims = append(dims, config.Dim*m)
	}

	u := &UNet[B]{
		config:   config,
		initConv: nn.NewConv2D(config.Channels, config.InitDim, 7, 7, 1, 3, 1, true, backend),
		timeEmb:  timeEmb,
		backend:  backend,
	}

	stages := len(dims) - 1
	for i := 0; i < stages; i++ {
		dimIn, dimOut := dims[i], dims[i+1]
		stage := downStage[B]{
			block1: newBlock(dimIn, dimOut, timeEmbDim),
			block2: newBlock(dimOut, dimOut, timeEmbDim),
			attn:   NewResidual[B](NewPreNorm(dimOut, NewLinearAttention(dimOut, backend), backend)),
		}
		if i < stages-1 {
			stage.downsample = nn.NewConv2D(dimOut, dimOut, 4, 4, 2, 1, 1, true, backend)
		}
		u.downs = append(u.downs, stage)
	}

	midDim := dims[len(dims)-1]
	u.midBlock1 = newBlock(midDim, midDim, timeEmbDim)
	u.midAttn = NewResidual[B](NewPreNorm(midDim, NewAttention(midDim, backend), backend))
	u.midBlock2 = newBlock(midDim, midDim, timeEmbDim)

	// Decoder stages mirror the encoder, skipping the innermost pair.
	for i := stages - 1; i >= 1; i-- {
		dimIn, dimOut := dims[i], dims[i+1]
		u.ups = append(u.ups, upStage[B]{
			block1:   newBlock(dimOut*2, dimIn, timeEmbDim),
			block2:   newBlock(dimIn, dimIn, timeEmbDim),
			attn:     NewResidual[B](NewPreNorm(dimIn, NewLinearAttention(dimIn, backend), backend)),
			upsample: nn.NewConvTranspose2D(dimIn, dimIn, 4, 4, 2, 1, true, backend),
		})
	}

	u.headBlock = newBlock(config.Dim, config.Dim, 0)
	u.headConv = nn.NewConv2D(config.Dim, config.OutDim, 1, 1, 1, 0, 1, true, backend)

	return u, nil
}

// Config returns the resolved configuration.
func (u *UNet[B]) Config() UNetConfig {
	return u.config
}

// Forward predicts the noise in x at the given per-sample timesteps.
// x: [batch, channels, height, width]; height and width must be divisible
// by 2^(stages-1). The output has OutDim channels at the input resolution.
func (u *UNet[B]) Forward(x *tensor.Tensor[float32, B], t []int) *tensor.Tensor[float32, B] {
	shape := x.Shape()
	if len(shape) != 4 {
		panic(fmt.Sprintf("diffusion: unet expects 4D input [N,C,H,W], got %dD", len(shape)))
	}
	if shape[1] != u.config.Channels {
		panic(fmt.Sprintf("diffusion: unet input channels %d != configured %d", shape[1], u.config.Channels))
	}
	if len(t) != shape[0] {
		panic(fmt.Sprintf("diffusion: unet got %d timesteps for batch %d", len(t), shape[0]))
	}
	factor := 1 << (len(u.downs) - 1)
	if shape[2]%factor != 0 || shape[3]%factor != 0 {
		panic(fmt.Sprintf("diffusion: unet spatial dims %dx%d must be divisible by %d", shape[2], shape[3], factor))
	}

	temb := u.timeEmb.Forward(t)
	h := u.initConv.Forward(x)

	skips := make([]*tensor.Tensor[float32, B], 0, len(u.downs))
	for _, stage := range u.downs {
		h = stage.block1.ForwardWith(h, temb)
		h = stage.block2.ForwardWith(h, temb)
		h = stage.attn.Forward(h)
		skips = append(skips, h)
		if stage.downsample != nil {
			h = stage.downsample.Forward(h)
		}
	}

	h = u.midBlock1.ForwardWith(h, temb)
	h = u.midAttn.Forward(h)
	h = u.midBlock2.ForwardWith(h, temb)

	for _, stage := range u.ups {
		skip := skips[len(skips)-1]
		skips = skips[:len(skips)-1]

		h = tensor.Cat([]*tensor.Tensor[float32, B]{h, skip}, 1)
		h = stage.block1.ForwardWith(h, temb)
		h = stage.block2.ForwardWith(h, temb)
		h = stage.attn.Forward(h)
		h = stage.upsample.Forward(h)
	}
	if len(skips) != 1 {
		panic(fmt.Sprintf("diffusion: unet skip accounting broken, %d left over", len(skips)))
	}

	h = u.headBlock.ForwardWith(h, nil)
	return u.headConv.Forward(h)
}

// PredictNoise implements NoiseModel.
func (u *UNet[B]) PredictNoise(x *tensor.Tensor[float32, B], t []int) *tensor.Tensor[float32, B] {
	return u.Forward(x, t)
}

// Parameters returns every trainable parameter in the network.
func (u *UNet[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	params = append(params, u.initConv.Parameters()...)
	params = append(params, u.timeEmb.Parameters()...)

	for _, stage := range u.downs {
		params = append(params, stage.block1.Parameters()...)
		params = append(params, stage.block2.Parameters()...)
		params = append(params, stage.attn.Parameters()...)
		if stage.downsample != nil {
			params = append(params, stage.downsample.Parameters()...)
		}
	}

	params = append(params, u.midBlock1.Parameters()...)
	params = append(params, u.midAttn.Parameters()...)
	params = append(params, u.midBlock2.Parameters()...)

	for _, stage := range u.ups {
		params = append(params, stage.block1.Parameters()...)
		params = append(params, stage.block2.Parameters()...)
		params = append(params, stage.attn.Parameters()...)
		params = append(params, stage.upsample.Parameters()...)
	}

	params = append(params, u.headBlock.Parameters()...)
	params = append(params, u.headConv.Parameters()...)
	return params
}

// NumParameters returns the total number of trainable scalars.
func (u *UNet[B]) NumParameters() int {
	total := 0
	for _, p := range u.Parameters() {
		total += p.NumElements()
	}
	return total
}
