// Copyright 2025 Drift ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides neural network building blocks.
//
// # Overview
//
// This package contains:
//   - Module interface for composable network components
//   - Parameter for trainable tensors with gradient tracking
//   - Layers: Linear, Conv2D, ConvTranspose2D, GroupNorm
//   - Activations: SiLU, GELU, Identity
//
// # Basic Usage
//
//	import (
//	    "github.com/drift-ml/drift/nn"
//	    "github.com/drift-ml/drift/backend/cpu"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    conv := nn.NewConv2D(3, 32, 3, 3, 1, 1, 1, true, backend)
//	    out := conv.Forward(x)
//	}
package nn
