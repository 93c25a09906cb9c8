// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"errors"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Device errors shared by all backends.
var (
	// ErrInvalidDimensions is returned when a texture descriptor has
	// non-positive width, height or depth.
	ErrInvalidDimensions = errors.New("device: invalid texture dimensions")

	// ErrTextureCreateFailed is returned when native texture allocation fails.
	ErrTextureCreateFailed = errors.New("device: texture creation failed")

	// ErrMapFailed is returned when a texture level cannot be mapped for writing.
	ErrMapFailed = errors.New("device: failed to map texture level")

	// ErrReadbackNotSupported is returned when the backend cannot read
	// texture contents back to the CPU.
	ErrReadbackNotSupported = errors.New("device: texture readback not supported")
)

// DeviceHandle provides GPU device access from the host application.
//
// Backends adopt the device through it instead of creating their own
// (see backend/wgpu InitWithDevice), which lets the emulator frontend
// share a single GPU device between the texture engine and its
// presentation layer. A backend running standalone may still create
// its own device.
//
// DeviceHandle is an alias for gpucontext.DeviceProvider, providing a
// texcache-specific name while staying compatible with the gpucontext
// ecosystem.
type DeviceHandle = gpucontext.DeviceProvider

// TextureDescriptor describes parameters for creating a native texture.
type TextureDescriptor struct {
	// Label is an optional debug label.
	Label string

	// Width and Height are the texture dimensions in pixels.
	Width  int
	Height int

	// Depth is the slice count for volumetric textures. Use 1 for 2D.
	Depth int

	// Levels is the number of mip levels to allocate.
	Levels int

	// Format is the pixel format.
	Format Format

	// Usage specifies how the texture will be used.
	// Zero means DefaultTextureUsage.
	Usage gputypes.TextureUsage
}

// DefaultTextureUsage is the usage for textures created without specific flags.
const DefaultTextureUsage = gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst | gputypes.TextureUsageTextureBinding

// Texture is a uniquely owned native texture object.
//
// The owner must call Release exactly once on every exit path; a
// released texture must not be bound or mapped again.
type Texture interface {
	Width() int
	Height() int
	Depth() int
	Levels() int
	Format() Format

	// Release frees the native resource. Safe to call more than once;
	// calls after the first are ignored.
	Release()
}

// MappedLevel is a CPU-writable view of one texture mip level.
// Stride may include native row alignment padding and can exceed
// Format.RowBytes(width). SlicePitch is the byte distance between
// depth slices for volumetric textures.
type MappedLevel struct {
	Pix        []byte
	Stride     int
	SlicePitch int
}

// LoadAction tells a render pass what to do with the previous contents
// of an attachment.
type LoadAction uint8

const (
	// LoadActionDontCare leaves previous contents undefined.
	LoadActionDontCare LoadAction = iota

	// LoadActionClear clears the attachment before rendering.
	LoadActionClear

	// LoadActionKeep preserves previous contents.
	LoadActionKeep
)

// ChannelMask selects which aspect of a render target is sampled when
// it is bound as a texture.
type ChannelMask uint8

const (
	// ChannelColor samples the color attachment.
	ChannelColor ChannelMask = 1 << iota

	// ChannelDepth samples the depth attachment.
	ChannelDepth

	// ChannelStencil samples the stencil attachment.
	ChannelStencil
)

// RenderTarget is a texture that can be rendered into.
type RenderTarget interface {
	Width() int
	Height() int
	Format() Format

	// ColorTexture exposes the color attachment for sampling.
	ColorTexture() Texture

	// Release frees the native resources.
	Release()
}

// Program is an opaque compiled vertex+pixel program pair.
type Program interface {
	Label() string
}

// Vertex is one corner of a full-screen quad in clip space with its
// texture coordinate.
type Vertex struct {
	X, Y, Z float32
	U, V    float32
}

// SamplerParams are the native filtering and addressing settings for
// one texture unit.
type SamplerParams struct {
	MinLinear bool
	MagLinear bool
	MipLinear bool

	// MipEnable gates mip sampling entirely. When false the backend
	// must restrict sampling to the top level by whatever mechanism
	// its API offers (LOD clamp, max-level, or an extreme negative
	// bias on APIs that lack both).
	MipEnable bool

	ClampS bool
	ClampT bool

	// LODBias is the mip bias in 1/256 units, matching guest encoding.
	LODBias int

	// MinLevel is the smallest (largest-resolution) mip level to sample.
	MinLevel int

	// MaxLevel is the largest mip level to sample.
	MaxLevel int

	// Anisotropy is the max anisotropic filtering level, 1 = off.
	Anisotropy int
}

// Caps describes the capabilities of a backend relevant to texture building.
type Caps struct {
	// MaxAnisotropy is the largest supported anisotropic filtering level.
	MaxAnisotropy int

	// MaxTextureSize is the largest supported texture dimension.
	MaxTextureSize int

	// Packed16 reports whether 16-bit packed formats can be sampled
	// natively. When false the engine upconverts to RGBA8.
	Packed16 bool
}

// Device is the capability interface the texture engine is programmed
// against. One implementation exists per native graphics API; the
// engine itself is backend-agnostic.
//
// All calls happen on the rendering thread; implementations do not
// need internal locking for these entry points.
type Device interface {
	Caps() Caps

	// CreateTexture allocates an uninitialized native texture.
	CreateTexture(desc TextureDescriptor) (Texture, error)

	// MapLevel exposes one mip level for CPU writes. discard allows the
	// backend to orphan previous contents.
	MapLevel(t Texture, level int, discard bool) (MappedLevel, error)

	// UnmapLevel commits writes made through MapLevel.
	UnmapLevel(t Texture, level int)

	// BindTexture binds t to a sampling unit. A nil texture unbinds.
	BindTexture(unit int, t Texture)

	// ApplySampler issues native filter/wrap/bias settings for a unit.
	ApplySampler(unit int, p SamplerParams)

	// CreateRenderTarget allocates a render target.
	CreateRenderTarget(width, height int, format Format, label string) (RenderTarget, error)

	// BindRenderTarget makes rt the current rendering destination.
	BindRenderTarget(rt RenderTarget, load LoadAction)

	// RunFullscreenProgram draws a quad with p into the currently
	// bound render target. Inputs must already be bound to texture
	// units. writeMask selects the color channels written.
	RunFullscreenProgram(p Program, verts [4]Vertex, viewportW, viewportH int, writeMask uint8) error

	// ReadbackLevel copies one mip level back to the CPU, for
	// debugging and introspection. Implementations may fall back to a
	// render-target copy when the level is not directly lockable.
	ReadbackLevel(t Texture, level int) (MappedLevel, error)
}
