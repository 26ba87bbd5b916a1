// Copyright 2025 Drift ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"testing"

	"github.com/drift-ml/drift/backend/cpu"
	"github.com/drift-ml/drift/tensor"
)

// TestBackendInterface verifies that the CPU backend implements tensor.Backend.
func TestBackendInterface(_ *testing.T) {
	var _ tensor.Backend = (*cpu.Backend)(nil)
}

// TestPublicAPI verifies the alias layer round-trips through the internals.
func TestPublicAPI(t *testing.T) {
	backend := cpu.New()

	x := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
	y := tensor.Full[float32](tensor.Shape{2, 3}, 2, backend)

	z := x.Add(y)
	if !z.Shape().Equal(tensor.Shape{2, 3}) {
		t.Fatalf("Shape = %v, want [2 3]", z.Shape())
	}
	for i, v := range z.Data() {
		if v != 3 {
			t.Errorf("data[%d] = %v, want 3", i, v)
		}
	}

	raw, err := tensor.NewRaw(tensor.Shape{4}, tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	if raw.DType() != tensor.Float32 {
		t.Errorf("DType = %v, want Float32", raw.DType())
	}
}
