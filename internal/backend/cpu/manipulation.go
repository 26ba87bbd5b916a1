package cpu

import (
	"fmt"

	"github.com/drift-ml/drift/internal/tensor"
)

// Reshape returns a zero-copy view with the new shape.
func (c *CPUBackend) Reshape(x *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	return x.WithShape(newShape)
}

// Transpose permutes the axes. With no axes all dims are reversed.
func (c *CPUBackend) Transpose(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	requireFloat32("Transpose", x)

	shape := x.Shape()
	rank := len(shape)

	if len(axes) == 0 {
		axes = make([]int, rank)
		for i := range axes {
			axes[i] = rank - 1 - i
		}
	}
	if len(axes) != rank {
		panic(fmt.Sprintf("cpu: Transpose: got %d axes for rank %d", len(axes), rank))
	}
	seen := make([]bool, rank)
	for _, a := range axes {
		if a < 0 || a >= rank || seen[a] {
			panic(fmt.Sprintf("cpu: Transpose: invalid permutation %v for rank %d", axes, rank))
		}
		seen[a] = true
	}

	outShape := make(tensor.Shape, rank)
	for i, a := range axes {
		outShape[i] = shape[a]
	}
	out := mustRaw(outShape, tensor.Float32)

	inStrides := shape.ComputeStrides()
	outStrides := outShape.ComputeStrides()
	inData, outData := x.AsFloat32(), out.AsFloat32()

	for i := range outData {
		rem := i
		src := 0
		for d := 0; d < rank; d++ {
			coord := rem / outStrides[d]
			rem %= outStrides[d]
			src += coord * inStrides[axes[d]]
		}
		outData[i] = inData[src]
	}
	return out
}

// Cat concatenates tensors along dim. All other dims must match.
func (c *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cpu: Cat: no tensors")
	}
	requireFloat32("Cat", tensors...)

	first := tensors[0].Shape()
	dim = normalizeDim(dim, len(first), "Cat")

	catSize := 0
	for _, t := range tensors {
		s := t.Shape()
		if len(s) != len(first) {
			panic(fmt.Sprintf("cpu: Cat: rank mismatch: %v vs %v", first, s))
		}
		for d := range s {
			if d != dim && s[d] != first[d] {
				panic(fmt.Sprintf("cpu: Cat: shape mismatch on dim %d: %v vs %v", d, first, s))
			}
		}
		catSize += s[dim]
	}

	outShape := first.Clone()
	outShape[dim] = catSize
	out := mustRaw(outShape, tensor.Float32)
	outData := out.AsFloat32()

	inner := 1
	for d := dim + 1; d < len(first); d++ {
		inner *= first[d]
	}
	outer := outShape.NumElements() / (catSize * inner)

	offset := 0
	for _, t := range tensors {
		size := t.Shape()[dim]
		data := t.AsFloat32()
		block := size * inner
		for o := 0; o < outer; o++ {
			dst := outData[o*catSize*inner+offset*inner:]
			copy(dst[:block], data[o*block:(o+1)*block])
		}
		offset += size
	}
	return out
}

// Chunk splits x into chunks equal parts along dim.
func (c *CPUBackend) Chunk(x *tensor.RawTensor, chunks, dim int) []*tensor.RawTensor {
	requireFloat32("Chunk", x)

	shape := x.Shape()
	dim = normalizeDim(dim, len(shape), "Chunk")
	if chunks < 1 || shape[dim]%chunks != 0 {
		panic(fmt.Sprintf("cpu: Chunk: dim %d size %d not divisible into %d chunks", dim, shape[dim], chunks))
	}

	size := shape[dim] / chunks
	inner := 1
	for d := dim + 1; d < len(shape); d++ {
		inner *= shape[d]
	}
	outer := shape.NumElements() / (shape[dim] * inner)

	outShape := shape.Clone()
	outShape[dim] = size
	block := size * inner

	data := x.AsFloat32()
	out := make([]*tensor.RawTensor, chunks)
	for i := range out {
		chunk := mustRaw(outShape, tensor.Float32)
		chunkData := chunk.AsFloat32()
		for o := 0; o < outer; o++ {
			src := data[o*shape[dim]*inner+i*block:]
			copy(chunkData[o*block:(o+1)*block], src[:block])
		}
		out[i] = chunk
	}
	return out
}

// Unsqueeze inserts a size-1 dimension at dim.
func (c *CPUBackend) Unsqueeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	if dim < 0 {
		dim += len(shape) + 1
	}
	if dim < 0 || dim > len(shape) {
		panic(fmt.Sprintf("cpu: Unsqueeze: dim %d out of range for rank %d", dim, len(shape)))
	}
	newShape := make(tensor.Shape, 0, len(shape)+1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, 1)
	newShape = append(newShape, shape[dim:]...)
	return x.WithShape(newShape)
}

// Squeeze removes the size-1 dimension at dim.
func (c *CPUBackend) Squeeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	dim = normalizeDim(dim, len(shape), "Squeeze")
	if shape[dim] != 1 {
		panic(fmt.Sprintf("cpu: Squeeze: dim %d has size %d, not 1", dim, shape[dim]))
	}
	newShape := make(tensor.Shape, 0, len(shape)-1)
	newShape = append(newShape, shape[:dim]...)
	newShape = append(newShape, shape[dim+1:]...)
	return x.WithShape(newShape)
}
