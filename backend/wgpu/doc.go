// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpu implements the texture engine's device interface on
// gogpu/wgpu, the Pure Go WebGPU implementation covering Vulkan, Metal
// and DX12.
//
// The backend owns the WebGPU instance, adapter, device and queue. It
// keeps a CPU staging copy of every mapped texture level, so level
// uploads work (and are testable) before the wgpu texture transfer
// path is fully wired; ReadbackLevel serves from the same staging
// copies.
//
// WebGPU has no samplable packed 16-bit formats, so the backend
// reports Caps.Packed16 = false and every texture is allocated as
// RGBA8.
package wgpu
