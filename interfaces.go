package texcache

import "github.com/gogpu/texcache/device"

// Memory is the addressable guest memory interface. Palette and pixel
// source bytes are read through it; a read failure makes the affected
// texture unplannable for this frame.
type Memory interface {
	// Read returns n bytes starting at addr. The returned slice may
	// alias the underlying memory and must not be retained across
	// frames.
	Read(addr uint32, n int) ([]byte, error)

	// Valid reports whether the byte range [addr, addr+n) is readable,
	// without copying it.
	Valid(addr uint32, n int) bool
}

// ReplacementStatus is the result of a replacement-asset lookup.
type ReplacementStatus uint8

const (
	// ReplacementNone means no replacement exists for the key.
	ReplacementNone ReplacementStatus = iota

	// ReplacementPending means the asset exists but is still loading;
	// the caller should retry on a later bind rather than block.
	ReplacementPending

	// ReplacementReady means the level data is available.
	ReplacementReady
)

// ReplacedLevel is one mip level of a replacement asset.
type ReplacedLevel struct {
	Width  int
	Height int
	Format device.Format

	// Pixels holds Height rows of Stride bytes in Format.
	Pixels []byte
	Stride int
}

// Replacer is the replacement-asset service. Lookups are keyed by the
// opaque 64-bit value derived from the cache key and must be
// non-blocking: assets still loading report ReplacementPending.
type Replacer interface {
	Lookup(key uint64, level int) (ReplacedLevel, ReplacementStatus)
}

// ShaderProvider supplies the compiled programs and lookup textures
// the framebuffer depalettize pass needs. Implementations cache the
// palette texture by content hash to avoid re-uploading an unchanged
// palette.
type ShaderProvider interface {
	// DepalProgram returns a vertex+pixel program pair that resolves
	// indexed framebuffer texels of srcFormat through a palette of
	// clutFormat.
	DepalProgram(clutFormat PaletteFormat, srcFormat device.Format) (device.Program, error)

	// ClutTexture returns a 1-D lookup texture holding the palette
	// raw bytes. The texture stays owned by the provider.
	ClutTexture(clutFormat PaletteFormat, hash uint32, raw []byte) (device.Texture, error)
}

// ScratchPurpose identifies why a scratch render target is requested,
// so the manager can pool targets per purpose.
type ScratchPurpose uint8

const (
	// ScratchDepal is the depalettize pass destination.
	ScratchDepal ScratchPurpose = iota

	// ScratchCopy is a plain format-fix copy destination.
	ScratchCopy
)

// VirtualFramebuffer describes a live render target owned by the
// render-target manager. The engine only reads these; render-target
// lifecycle stays with the manager.
type VirtualFramebuffer struct {
	// Addr and ByteSize give the guest address range the target backs.
	Addr     uint32
	ByteSize int

	// BufferWidth and BufferHeight are the logical guest dimensions.
	BufferWidth  int
	BufferHeight int

	// RenderWidth and RenderHeight are the actual render dimensions,
	// which exceed the logical size under internal upscaling.
	RenderWidth  int
	RenderHeight int

	// Format is the native format the target was drawn in.
	Format device.Format

	// Target is the native render target.
	Target device.RenderTarget
}

// Overlaps reports whether the guest byte range [addr, addr+n)
// intersects the framebuffer's range.
func (fb *VirtualFramebuffer) Overlaps(addr uint32, n int) bool {
	end := addr + uint32(n)
	fbEnd := fb.Addr + uint32(fb.ByteSize)
	return addr < fbEnd && fb.Addr < end
}

// RenderTargetManager is the collaborating owner of all live render
// targets. The engine uses it to detect framebuffer aliasing, obtain
// scratch targets, and restore the frame's render target after a side
// pass.
type RenderTargetManager interface {
	// FramebufferAt returns the live framebuffer overlapping the byte
	// range, or nil when the range is plain memory.
	FramebufferAt(addr uint32, n int) *VirtualFramebuffer

	// ScratchTarget returns a pooled scratch render target of at least
	// the given size. The manager retains ownership.
	ScratchTarget(purpose ScratchPurpose, width, height int) (device.RenderTarget, error)

	// BindAsRenderTarget makes target the current rendering destination.
	BindAsRenderTarget(target device.RenderTarget, load device.LoadAction)

	// BindAsTexture binds a render target for sampling on a unit.
	BindAsTexture(target device.RenderTarget, unit int, channel device.ChannelMask, level int)

	// Rebind restores the frame's current render target after the
	// engine ran a side pass into a scratch target.
	Rebind()
}
