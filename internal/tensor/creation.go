package tensor

import (
	"fmt"
	"math/rand/v2"
)

// Zeros creates a tensor filled with zeros.
func Zeros[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var dummy T
	raw, err := NewRaw(shape, inferDataType(dummy), b.Device())
	if err != nil {
		panic(fmt.Sprintf("Zeros: %v", err))
	}
	return New[T, B](raw, b)
}

// Ones creates a tensor filled with ones.
func Ones[T DType, B Backend](shape Shape, b B) *Tensor[T, B] {
	var one T
	switch any(one).(type) {
	case bool:
		one = any(true).(T)
	case float32:
		one = any(float32(1)).(T)
	case int32:
		one = any(int32(1)).(T)
	case int64:
		one = any(int64(1)).(T)
	}
	return Full(shape, one, b)
}

// Full creates a tensor filled with the given value.
func Full[T DType, B Backend](shape Shape, value T, b B) *Tensor[T, B] {
	t := Zeros[T](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = value
	}
	return t
}

// Randn creates a Float32 tensor with standard normal entries drawn from rng.
// A nil rng falls back to the shared global source.
func Randn[B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[float32, B] {
	t := Zeros[float32](shape, b)
	data := t.Data()
	for i := range data {
		if rng != nil {
			data[i] = float32(rng.NormFloat64())
		} else {
			data[i] = float32(rand.NormFloat64())
		}
	}
	return t
}

// Rand creates a Float32 tensor with uniform entries in [0, 1) drawn from rng.
// A nil rng falls back to the shared global source.
func Rand[B Backend](shape Shape, rng *rand.Rand, b B) *Tensor[float32, B] {
	t := Zeros[float32](shape, b)
	data := t.Data()
	for i := range data {
		if rng != nil {
			data[i] = rng.Float32()
		} else {
			data[i] = rand.Float32()
		}
	}
	return t
}

// Arange creates a 1-D Float32 tensor with values [0, 1, ..., n-1].
func Arange[B Backend](n int, b B) *Tensor[float32, B] {
	t := Zeros[float32](Shape{n}, b)
	data := t.Data()
	for i := range data {
		data[i] = float32(i)
	}
	return t
}

// Linspace creates a 1-D Float32 tensor with n evenly spaced values
// from start to stop inclusive.
func Linspace[B Backend](start, stop float32, n int, b B) *Tensor[float32, B] {
	if n < 2 {
		panic(fmt.Sprintf("Linspace: need at least 2 points, got %d", n))
	}
	t := Zeros[float32](Shape{n}, b)
	data := t.Data()
	step := (stop - start) / float32(n-1)
	for i := range data {
		data[i] = start + float32(i)*step
	}
	data[n-1] = stop
	return t
}
