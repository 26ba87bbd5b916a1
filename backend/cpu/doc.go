// Copyright 2025 Drift ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the CPU compute backend.
//
// All operations are implemented in pure Go. Convolution kernels are
// parallelized over the batch dimension. Float math operations require
// Float32 tensors.
package cpu
