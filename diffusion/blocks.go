package diffusion

import (
	"fmt"

	"github.com/drift-ml/drift/internal/nn"
	"github.com/drift-ml/drift/internal/tensor"
)

// ConditionalBlock is a convolutional block conditioned on a time
// embedding. A nil embedding skips the conditioning path (used by the
// network head).
type ConditionalBlock[B tensor.Backend] interface {
	ForwardWith(x, timeEmb *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
	Parameters() []*nn.Parameter[B]
}

// BlockKind selects the conditional block variant used throughout the
// network.
type BlockKind int

// Supported block kinds. BlockResnet is the zero value and the default.
const (
	BlockResnet BlockKind = iota
	BlockConvNext
)

// String returns the block kind's name.
func (k BlockKind) String() string {
	switch k {
	case BlockConvNext:
		return "convnext"
	case BlockResnet:
		return "resnet"
	default:
		return "unknown"
	}
}

// blockFactory resolves a BlockKind into a constructor once, at network
// construction time.
type blockFactory[B tensor.Backend] func(dimIn, dimOut, timeEmbDim int) ConditionalBlock[B]

func newBlockFactory[B tensor.Backend](kind BlockKind, groups, convNextMult int, backend B) (blockFactory[B], error) {
	switch kind {
	case BlockResnet:
		return func(dimIn, dimOut, timeEmbDim int) ConditionalBlock[B] {
			return NewResnetBlock(dimIn, dimOut, timeEmbDim, groups, backend)
		}, nil
	case BlockConvNext:
		return func(dimIn, dimOut, timeEmbDim int) ConditionalBlock[B] {
			return NewConvNextBlock(dimIn, dimOut, timeEmbDim, convNextMult, backend)
		}, nil
	default:
		return nil, fmt.Errorf("diffusion: unknown block kind %d", int(kind))
	}
}

// Residual adds the input back onto the wrapped module's output.
type Residual[B tensor.Backend] struct {
	fn nn.Module[B]
}

// NewResidual wraps fn with a skip connection.
func NewResidual[B tensor.Backend](fn nn.Module[B]) *Residual[B] {
	return &Residual[B]{fn: fn}
}

// Forward computes fn(x) + x.
func (r *Residual[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return r.fn.Forward(x).Add(x)
}

// Parameters returns the wrapped module's parameters.
func (r *Residual[B]) Parameters() []*nn.Parameter[B] {
	return r.fn.Parameters()
}

// PreNorm applies GroupNorm(1) before the wrapped module.
type PreNorm[B tensor.Backend] struct {
	norm *nn.GroupNorm[B]
	fn   nn.Module[B]
}

// NewPreNorm wraps fn with a preceding single-group normalization.
func NewPreNorm[B tensor.Backend](dim int, fn nn.Module[B], backend B) *PreNorm[B] {
	return &PreNorm[B]{
		norm: nn.NewGroupNorm(1, dim, backend),
		fn:   fn,
	}
}

// Forward computes fn(norm(x)).
func (p *PreNorm[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return p.fn.Forward(p.norm.Forward(x))
}

// Parameters returns the norm and wrapped module parameters.
func (p *PreNorm[B]) Parameters() []*nn.Parameter[B] {
	params := p.norm.Parameters()
	return append(params, p.fn.Parameters()...)
}

// convBlock is conv 3x3 -> GroupNorm -> SiLU, the unit the ResnetBlock
// is built from.
type convBlock[B tensor.Backend] struct {
	conv *nn.Conv2D[B]
	norm *nn.GroupNorm[B]
	act  *nn.SiLU[B]
}

func newConvBlock[B tensor.Backend](dimIn, dimOut, groups int, backend B) *convBlock[B] {
	return &convBlock[B]{
		conv: nn.NewConv2D(dimIn, dimOut, 3, 3, 1, 1, 1, true, backend),
		norm: nn.NewGroupNorm(groups, dimOut, backend),
		act:  nn.NewSiLU[B](),
	}
}

func (b *convBlock[B]) Forward(x *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return b.act.Forward(b.norm.Forward(b.conv.Forward(x)))
}

func (b *convBlock[B]) Parameters() []*nn.Parameter[B] {
	params := b.conv.Parameters()
	return append(params, b.norm.Parameters()...)
}

// ResnetBlock is the classic conditional residual block: two conv 3x3 +
// GroupNorm + SiLU units with the time embedding added as a per-channel
// bias between them.
//
// Reference: https://arxiv.org/abs/1512.03385 adapted for diffusion.
type ResnetBlock[B tensor.Backend] struct {
	timeProj *nn.Linear[B] // nil without conditioning
	act      *nn.SiLU[B]

	block1  *convBlock[B]
	block2  *convBlock[B]
	resConv *nn.Conv2D[B] // nil when dimIn == dimOut

	dimOut int
}

// NewResnetBlock creates a conditional residual block. timeEmbDim == 0
// disables the conditioning path.
func NewResnetBlock[B tensor.Backend](dimIn, dimOut, timeEmbDim, groups int, backend B) *ResnetBlock[B] {
	b := &ResnetBlock[B]{
		act:    nn.NewSiLU[B](),
		block1: newConvBlock(dimIn, dimOut, groups, backend),
		block2: newConvBlock(dimOut, dimOut, groups, backend),
		dimOut: dimOut,
	}
	if timeEmbDim > 0 {
		b.timeProj = nn.NewLinear(timeEmbDim, dimOut, true, backend)
	}
	if dimIn != dimOut {
		b.resConv = nn.NewConv2D(dimIn, dimOut, 1, 1, 1, 0, 1, true, backend)
	}
	return b
}

// ForwardWith computes the block output with optional conditioning.
func (b *ResnetBlock[B]) ForwardWith(x, timeEmb *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	h := b.block1.Forward(x)

	if b.timeProj != nil && timeEmb != nil {
		cond := b.timeProj.Forward(b.act.Forward(timeEmb))
		h = h.Add(cond.Reshape(cond.Shape()[0], b.dimOut, 1, 1))
	}

	h = b.block2.Forward(h)

	if b.resConv != nil {
		return h.Add(b.resConv.Forward(x))
	}
	return h.Add(x)
}

// Parameters returns all trainable parameters.
func (b *ResnetBlock[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	if b.timeProj != nil {
		params = append(params, b.timeProj.Parameters()...)
	}
	params = append(params, b.block1.Parameters()...)
	params = append(params, b.block2.Parameters()...)
	if b.resConv != nil {
		params = append(params, b.resConv.Parameters()...)
	}
	return params
}

// ConvNextBlock is the ConvNeXt-style conditional block: a depthwise 7x7
// followed by a normalized inverted bottleneck, with the time embedding
// added after the depthwise stage.
//
// Reference: https://arxiv.org/abs/2201.03545 adapted for diffusion.
type ConvNextBlock[B tensor.Backend] struct {
	timeProj *nn.Linear[B] // nil without conditioning
	act      *nn.GELU[B]

	dsConv *nn.Conv2D[B] // depthwise 7x7

	norm1   *nn.GroupNorm[B]
	expand  *nn.Conv2D[B]
	norm2   *nn.GroupNorm[B]
	project *nn.Conv2D[B]

	resConv *nn.Conv2D[B] // nil when dimIn == dimOut

	dimIn int
}

// NewConvNextBlock creates a conditional ConvNeXt block. timeEmbDim == 0
// disables the conditioning path; mult widens the bottleneck.
func NewConvNextBlock[B tensor.Backend](dimIn, dimOut, timeEmbDim, mult int, backend B) *ConvNextBlock[B] {
	if mult <= 0 {
		panic(fmt.Sprintf("diffusion: convnext mult must be positive, got %d", mult))
	}

	b := &ConvNextBlock[B]{
		act:     nn.NewGELU[B](),
		dsConv:  nn.NewConv2D(dimIn, dimIn, 7, 7, 1, 3, dimIn, true, backend),
		norm1:   nn.NewGroupNorm(1, dimIn, backend),
		expand:  nn.NewConv2D(dimIn, dimOut*mult, 3, 3, 1, 1, 1, true, backend),
		norm2:   nn.NewGroupNorm(1, dimOut*mult, backend),
		project: nn.NewConv2D(dimOut*mult, dimOut, 3, 3, 1, 1, 1, true, backend),
		dimIn:   dimIn,
	}
	if timeEmbDim > 0 {
		b.timeProj = nn.NewLinear(timeEmbDim, dimIn, true, backend)
	}
	if dimIn != dimOut {
		b.resConv = nn.NewConv2D(dimIn, dimOut, 1, 1, 1, 0, 1, true, backend)
	}
	return b
}

// ForwardWith computes the block output with optional conditioning.
func (b *ConvNextBlock[B]) ForwardWith(x, timeEmb *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	h := b.dsConv.Forward(x)

	if b.timeProj != nil && timeEmb != nil {
		cond := b.timeProj.Forward(b.act.Forward(timeEmb))
		h = h.Add(cond.Reshape(cond.Shape()[0], b.dimIn, 1, 1))
	}

	h = b.norm1.Forward(h)
	h = b.expand.Forward(h)
	h = b.act.Forward(h)
	h = b.norm2.Forward(h)
	h = b.project.Forward(h)

	if b.resConv != nil {
		return h.Add(b.resConv.Forward(x))
	}
	return h.Add(x)
}

// Parameters returns all trainable parameters.
func (b *ConvNextBlock[B]) Parameters() []*nn.Parameter[B] {
	var params []*nn.Parameter[B]
	if b.timeProj != nil {
		params = append(params, b.timeProj.Parameters()...)
	}
	params = append(params, b.dsConv.Parameters()...)
	params = append(params, b.norm1.Parameters()...)
	params = append(params, b.expand.Parameters()...)
	params = append(params, b.norm2.Parameters()...)
	params = append(params, b.project.Parameters()...)
	if b.resConv != nil {
		params = append(params, b.resConv.Parameters()...)
	}
	return params
}
