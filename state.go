package texcache

import (
	"fmt"

	"github.com/gogpu/texcache/device"
)

// TexFormat is the guest texture pixel format from the bind command.
type TexFormat uint8

const (
	// TexFormat5650 is direct 16-bit RGB, 5-6-5 bits per channel.
	TexFormat5650 TexFormat = iota

	// TexFormat5551 is direct 16-bit RGBA with one alpha bit.
	TexFormat5551

	// TexFormat4444 is direct 16-bit RGBA, 4 bits per channel.
	TexFormat4444

	// TexFormat8888 is direct 32-bit RGBA.
	TexFormat8888

	// TexFormatClut4 is 4-bit indexed color, two texels per byte.
	TexFormatClut4

	// TexFormatClut8 is 8-bit indexed color.
	TexFormatClut8

	// TexFormatClut16 is 16-bit indexed color.
	TexFormatClut16

	// TexFormatClut32 is 32-bit indexed color.
	TexFormatClut32

	// TexFormatDXT1 is BC1 block compression, 8 bytes per 4x4 block.
	TexFormatDXT1

	// TexFormatDXT3 is BC2 block compression, 16 bytes per 4x4 block.
	TexFormatDXT3

	// TexFormatDXT5 is BC3 block compression, 16 bytes per 4x4 block.
	TexFormatDXT5

	texFormatCount
)

// String returns a human-readable name for the format.
func (f TexFormat) String() string {
	switch f {
	case TexFormat5650:
		return "5650"
	case TexFormat5551:
		return "5551"
	case TexFormat4444:
		return "4444"
	case TexFormat8888:
		return "8888"
	case TexFormatClut4:
		return "CLUT4"
	case TexFormatClut8:
		return "CLUT8"
	case TexFormatClut16:
		return "CLUT16"
	case TexFormatClut32:
		return "CLUT32"
	case TexFormatDXT1:
		return "DXT1"
	case TexFormatDXT3:
		return "DXT3"
	case TexFormatDXT5:
		return "DXT5"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// IsValid returns true if the format is a known guest format.
func (f TexFormat) IsValid() bool {
	return f < texFormatCount
}

// IsIndexed returns true for palette (CLUT) formats.
func (f TexFormat) IsIndexed() bool {
	switch f {
	case TexFormatClut4, TexFormatClut8, TexFormatClut16, TexFormatClut32:
		return true
	default:
		return false
	}
}

// IsCompressed returns true for block-compressed formats.
func (f TexFormat) IsCompressed() bool {
	switch f {
	case TexFormatDXT1, TexFormatDXT3, TexFormatDXT5:
		return true
	default:
		return false
	}
}

// BitsPerTexel returns the storage density of the format.
func (f TexFormat) BitsPerTexel() int {
	switch f {
	case TexFormatClut4, TexFormatDXT1:
		return 4
	case TexFormatClut8, TexFormatDXT3, TexFormatDXT5:
		return 8
	case TexFormat8888, TexFormatClut32:
		return 32
	default:
		return 16
	}
}

// RowBytes returns the byte width of one row of texels.
// Block-compressed formats report the byte width of one block row
// divided by the block height, so RowBytes*h still sizes the level.
func (f TexFormat) RowBytes(width int) int {
	return (width*f.BitsPerTexel() + 7) / 8
}

// LevelBytes returns the source data size of one w x h mip level.
func (f TexFormat) LevelBytes(w, h int) int {
	if f.IsCompressed() {
		blocksW := (w + 3) / 4
		blocksH := (h + 3) / 4
		blockBytes := 16
		if f == TexFormatDXT1 {
			blockBytes = 8
		}
		return blocksW * blocksH * blockBytes
	}
	return f.RowBytes(w) * h
}

// PaletteFormat is the guest palette (CLUT) entry format.
type PaletteFormat uint8

const (
	// Palette565 is 16-bit RGB palette entries with no alpha.
	Palette565 PaletteFormat = iota

	// Palette5551 is 16-bit RGBA palette entries with one alpha bit.
	Palette5551

	// Palette4444 is 16-bit RGBA palette entries, 4 bits per channel.
	Palette4444

	// Palette8888 is 32-bit RGBA palette entries.
	Palette8888

	paletteFormatCount
)

// String returns a human-readable name for the palette format.
func (f PaletteFormat) String() string {
	switch f {
	case Palette565:
		return "565"
	case Palette5551:
		return "5551"
	case Palette4444:
		return "4444"
	case Palette8888:
		return "8888"
	default:
		return fmt.Sprintf("Unknown(%d)", f)
	}
}

// IsValid returns true if the format is a known palette format.
func (f PaletteFormat) IsValid() bool {
	return f < paletteFormatCount
}

// EntryBytes returns the byte size of one palette entry.
func (f PaletteFormat) EntryBytes() int {
	if f == Palette8888 {
		return 4
	}
	return 2
}

// DestFormat returns the native format that resolved palette entries
// decode into.
func (f PaletteFormat) DestFormat() device.Format {
	switch f {
	case Palette4444:
		return device.FormatRGBA4444
	case Palette5551:
		return device.FormatRGBA5551
	case Palette565:
		return device.FormatRGB565
	default:
		return device.FormatRGBA8
	}
}

// SamplerState is the guest-visible sampling configuration at bind time.
type SamplerState struct {
	MinLinear bool
	MagLinear bool
	MipLinear bool
	MipEnable bool
	ClampS    bool
	ClampT    bool

	// LODBias is the guest mip bias in 1/256 units.
	LODBias int

	// MinLevel is the lowest mip level the guest allows sampling, in
	// 1/256 units like LODBias.
	MinLevel int
}

// BindState carries the parameters of one texture bind command.
//
// Source layout: level 0 starts at Addr with Stride bytes per row
// (Stride >= RowBytes(Width)); levels 1..MaxLevel follow each other
// tightly packed. Volumetric textures (Depth > 1) have a single level
// with Depth slices laid out sequentially.
type BindState struct {
	Addr   uint32
	Stride int

	Width  int
	Height int
	Depth  int

	Format TexFormat

	// MaxLevel is the highest mip level the guest requests (0 = no mips).
	MaxLevel int

	Sampler SamplerState
}

// levelDims returns the dimensions of a mip level, clamped to 1.
func (st *BindState) levelDims(level int) (w, h int) {
	w = st.Width >> level
	h = st.Height >> level
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

// levelAddr returns the guest address of a mip level under the packed
// layout documented on BindState.
func (st *BindState) levelAddr(level int) uint32 {
	addr := st.Addr
	for i := 0; i < level; i++ {
		w, h := st.levelDims(i)
		size := st.Format.LevelBytes(w, h)
		if i == 0 && st.Stride > st.Format.RowBytes(w) {
			size = st.Stride * h
		}
		addr += uint32(size)
	}
	return addr
}

// byteSize returns the total guest byte span of level 0 including all
// depth slices, used for framebuffer overlap detection.
func (st *BindState) byteSize() int {
	w, h := st.levelDims(0)
	depth := st.Depth
	if depth < 1 {
		depth = 1
	}
	row := st.Format.RowBytes(w)
	if st.Stride > row {
		row = st.Stride
	}
	return row * h * depth
}

// VertexBounds is the sub-rectangle of UV coordinates actually drawn
// this frame, when the renderer tracked one. Valid when MinV < MaxV.
type VertexBounds struct {
	MinU, MinV int
	MaxU, MaxV int
}

// Valid reports whether the bounds were set during vertex decode.
func (b VertexBounds) Valid() bool {
	return b.MinV < b.MaxV
}

// RenderContext is the explicit mutable rendering state shared between
// the engine and the draw pipeline. It replaces hidden global device
// state: the memoized last-bound texture lives here, as do the flags
// the consuming render state needs to observe.
type RenderContext struct {
	// lastBound memoizes the texture bound to unit 0 so redundant
	// rebinds can be skipped.
	lastBound device.Texture

	// TextureFullAlpha reports whether the currently applied texture is
	// known fully opaque, letting the draw pipeline skip blending.
	TextureFullAlpha bool

	// DirtyTextureParams is set when a texture image was changed by a
	// side channel (depalettize pass, UV crop) and unit-level state
	// diffing must refresh.
	DirtyTextureParams bool

	// VertBounds is the known drawn sub-rectangle for the current
	// frame, used to crop framebuffer-as-texture passes.
	VertBounds VertexBounds

	// TexOffsetU and TexOffsetV relocate VertBounds within the
	// framebuffer when the texture points into its interior.
	TexOffsetU int
	TexOffsetV int
}

// SetTextureFullAlpha records the alpha classification of the applied
// texture for the draw pipeline.
func (rc *RenderContext) SetTextureFullAlpha(full bool) {
	rc.TextureFullAlpha = full
}

// InvalidateBoundTexture forgets the memoized binding so the next bind
// always reaches the device.
func (rc *RenderContext) InvalidateBoundTexture() {
	rc.lastBound = nil
}
