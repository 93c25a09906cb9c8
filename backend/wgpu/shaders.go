package wgpu

import (
	_ "embed"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/texcache"
	"github.com/gogpu/texcache/device"
	"github.com/gogpu/texcache/internal/cache"
)

// Embedded WGSL shader sources.
// These are compiled at build time using go:embed directives.

//go:embed shaders/depal.wgsl
var depalShaderTemplate string

// Budgets for the provider's resource caches. Palette textures churn
// with guest palette animation, so their cache is the larger one.
const (
	programBudget = 32
	clutTexBudget = 64
)

// program is a compiled vertex+fragment program pair. The SPIR-V
// blob is retained for pipeline creation.
type program struct {
	label string
	spirv []byte
}

func (p *program) Label() string { return p.label }

// programKey identifies a depalettize program variant.
type programKey struct {
	clut texcache.PaletteFormat
	src  device.Format
}

// clutKey identifies a cached palette texture. The format is part of
// the key: identical palette bytes widen differently per entry format.
type clutKey struct {
	hash   uint32
	format texcache.PaletteFormat
}

// ShaderProvider compiles and caches the depalettize programs and
// palette lookup textures the texture engine's framebuffer path needs.
// Programs are cached per palette/source format pair, palette textures
// per content hash and entry format.
type ShaderProvider struct {
	backend  *Backend
	programs *cache.Cache[programKey, device.Program]
	clutTexs *cache.Cache[clutKey, device.Texture]
}

// NewShaderProvider creates a provider over the backend.
func NewShaderProvider(b *Backend) *ShaderProvider {
	return &ShaderProvider{
		backend: b,
		programs: cache.New[programKey, device.Program](programBudget, func(device.Program) {
			// Programs hold no native handles until pipelines are
			// created from them.
		}),
		clutTexs: cache.New[clutKey, device.Texture](clutTexBudget, func(t device.Texture) {
			t.Release()
		}),
	}
}

// Close releases all cached resources.
func (sp *ShaderProvider) Close() {
	sp.programs.Clear(true)
	sp.clutTexs.Clear(true)
}

// DepalProgram returns the program resolving indexed texels of
// srcFormat through a palette of clutFormat, compiling it on first use.
func (sp *ShaderProvider) DepalProgram(clutFormat texcache.PaletteFormat, srcFormat device.Format) (device.Program, error) {
	key := programKey{clut: clutFormat, src: srcFormat}
	return sp.programs.GetOrCreate(key, func() (device.Program, error) {
		src := strings.Replace(depalShaderTemplate, "INDEX_EXPR", indexExpr(srcFormat), 1)

		spirv, err := naga.Compile(src)
		if err != nil {
			return nil, fmt.Errorf("wgpu: depal shader compile (%s from %s): %w",
				clutFormat, srcFormat, err)
		}

		label := fmt.Sprintf("depal_%s_from_%s", clutFormat, srcFormat)
		slogger().Debug("wgpu: compiled depal program", "label", label, "spirvBytes", len(spirv))
		return &program{label: label, spirv: spirv}, nil
	})
}

// indexExpr returns the WGSL expression reconstructing the palette
// index from a sampled framebuffer texel. 16-bit framebuffers pack the
// index across their color channels, so the bits are reassembled at
// each channel's stored precision.
func indexExpr(srcFormat device.Format) string {
	switch srcFormat {
	case device.FormatRGB565:
		return "(u32(color.r * 31.0 + 0.5) | (u32(color.g * 63.0 + 0.5) << 5u) | (u32(color.b * 31.0 + 0.5) << 11u)) & 0xFFu"
	case device.FormatRGBA5551:
		return "(u32(color.r * 31.0 + 0.5) | (u32(color.g * 31.0 + 0.5) << 5u) | (u32(color.b * 31.0 + 0.5) << 10u)) & 0xFFu"
	case device.FormatRGBA4444:
		return "(u32(color.r * 15.0 + 0.5) | (u32(color.g * 15.0 + 0.5) << 4u)) & 0xFFu"
	default:
		return "u32(color.r * 255.0 + 0.5)"
	}
}

// ClutTexture returns the palette lookup texture for the given raw
// palette bytes, keyed by content hash and entry format. Entries are
// widened to RGBA8 since the backend samples no packed 16-bit formats.
func (sp *ShaderProvider) ClutTexture(clutFormat texcache.PaletteFormat, hash uint32, raw []byte) (device.Texture, error) {
	return sp.clutTexs.GetOrCreate(clutKey{hash: hash, format: clutFormat}, func() (device.Texture, error) {
		entries := len(raw) / clutFormat.EntryBytes()
		if entries == 0 {
			return nil, fmt.Errorf("wgpu: empty palette upload")
		}

		tex, err := sp.backend.CreateTexture(device.TextureDescriptor{
			Label:  fmt.Sprintf("clut_%s_%08x", clutFormat, hash),
			Width:  entries,
			Height: 1,
			Depth:  1,
			Levels: 1,
			Format: device.FormatRGBA8,
		})
		if err != nil {
			return nil, fmt.Errorf("wgpu: palette texture: %w", err)
		}

		ml, err := sp.backend.MapLevel(tex, 0, true)
		if err != nil {
			tex.Release()
			return nil, fmt.Errorf("wgpu: palette texture map: %w", err)
		}
		writePaletteRGBA8(ml.Pix, raw, clutFormat, entries)
		sp.backend.UnmapLevel(tex, 0)
		return tex, nil
	})
}

// writePaletteRGBA8 widens packed palette entries into an RGBA8 row.
func writePaletteRGBA8(dst []byte, raw []byte, f texcache.PaletteFormat, entries int) {
	for i := 0; i < entries; i++ {
		var r, g, b, a uint32
		switch f {
		case texcache.Palette8888:
			v := binary.LittleEndian.Uint32(raw[i*4:])
			r, g, b, a = v&0xFF, v>>8&0xFF, v>>16&0xFF, v>>24&0xFF
		case texcache.Palette4444:
			v := uint32(binary.LittleEndian.Uint16(raw[i*2:]))
			r = (v & 0xF) * 17
			g = (v >> 4 & 0xF) * 17
			b = (v >> 8 & 0xF) * 17
			a = (v >> 12 & 0xF) * 17
		case texcache.Palette5551:
			v := uint32(binary.LittleEndian.Uint16(raw[i*2:]))
			r = expand5bit(v & 0x1F)
			g = expand5bit(v >> 5 & 0x1F)
			b = expand5bit(v >> 10 & 0x1F)
			a = (v >> 15) * 0xFF
		default: // Palette565
			v := uint32(binary.LittleEndian.Uint16(raw[i*2:]))
			r = expand5bit(v & 0x1F)
			g = v >> 5 & 0x3F << 2
			g |= g >> 6
			b = expand5bit(v >> 11 & 0x1F)
			a = 0xFF
		}
		dst[i*4+0] = byte(r)
		dst[i*4+1] = byte(g)
		dst[i*4+2] = byte(b)
		dst[i*4+3] = byte(a)
	}
}

func expand5bit(v uint32) uint32 { return v<<3 | v>>2 }
