// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package texcache reconstructs native GPU textures from guest-format
// pixel data on demand and caches the results across frames.
//
// The engine sits between an emulated rendering pipeline and a native
// graphics device: every draw's texture bind is resolved through
// [Engine.Apply], which either reuses a cached native texture, rebuilds
// one from guest memory, or binds a live render target when the guest
// samples its own framebuffer.
//
// Guest formats cover direct 16/32-bit color, palette-indexed color
// with a separately uploaded lookup table, and DXT block compression.
// Indexed textures fold the palette hash into their cache identity, so
// palette swaps never serve stale pixels.
//
// Nothing in the engine treats a texture failure as fatal: unreadable
// source memory, allocation failures and shader pass errors degrade
// the affected draw and are logged, while emulation continues.
package texcache
