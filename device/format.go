// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Format represents the pixel format of a native texture.
//
// The 16-bit packed formats exist because emulated hardware commonly
// stores textures and palettes in them. Backends that cannot sample
// them directly report so through Caps and receive RGBA8 instead; the
// engine performs the upconversion during decode.
type Format uint8

const (
	// FormatRGBA8 is 32-bit RGBA with 8 bits per channel.
	FormatRGBA8 Format = iota

	// FormatRGBA4444 is 16-bit RGBA with 4 bits per channel.
	FormatRGBA4444

	// FormatRGBA5551 is 16-bit RGBA with 5 bits per color channel and
	// a single alpha bit.
	FormatRGBA5551

	// FormatRGB565 is 16-bit RGB with no alpha channel.
	FormatRGB565

	// formatCount is the number of formats (for internal use).
	formatCount
)

// String returns a human-readable name for the format.
func (f Format) String() string {
	switch f {
	case FormatRGBA8:
		return "RGBA8"
	case FormatRGBA4444:
		return "RGBA4444"
	case FormatRGBA5551:
		return "RGBA5551"
	case FormatRGB565:
		return "RGB565"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// IsValid returns true if the format is a known format.
func (f Format) IsValid() bool {
	return f < formatCount
}

// BytesPerPixel returns the number of bytes per pixel for the format.
func (f Format) BytesPerPixel() int {
	if f == FormatRGBA8 {
		return 4
	}
	return 2
}

// RowBytes calculates the number of bytes needed for a row of the given width.
func (f Format) RowBytes(width int) int {
	return width * f.BytesPerPixel()
}

// AlphaMask returns the bit mask covering the alpha channel of a
// packed pixel, or 0 when the format has no alpha channel.
func (f Format) AlphaMask() uint32 {
	switch f {
	case FormatRGBA8:
		return 0xFF000000
	case FormatRGBA4444:
		return 0xF000
	case FormatRGBA5551:
		return 0x8000
	default:
		return 0
	}
}

// HasAlpha returns true if the format has an alpha channel.
func (f Format) HasAlpha() bool {
	return f.AlphaMask() != 0
}

// ToWGPUFormat converts to the wgpu gputypes.TextureFormat.
// WebGPU has no packed 16-bit color formats, so those map to RGBA8;
// a backend that advertises Caps.Packed16 must handle them itself.
func (f Format) ToWGPUFormat() gputypes.TextureFormat {
	switch f {
	case FormatRGBA8, FormatRGBA4444, FormatRGBA5551, FormatRGB565:
		return gputypes.TextureFormatRGBA8Unorm
	default:
		return gputypes.TextureFormatRGBA8Unorm
	}
}
