package texcache

import (
	"github.com/cespare/xxhash/v2"
	"github.com/gogpu/texcache/device"
)

// CacheKey identifies a cache entry. Equality defines hit or miss;
// two binds with equal keys share one native texture within a cache
// generation.
type CacheKey struct {
	Addr        uint32
	Stride      uint32
	Format      TexFormat
	Width       uint16
	Height      uint16
	PaletteHash uint32 // 0 for direct formats
	Scale       uint8
}

// cacheKey derives the key for a bind. For indexed formats the current
// palette hash becomes part of the key, so a palette change simply
// makes the previous entry unreachable.
func cacheKey(st *BindState, paletteHash uint32, scale int) CacheKey {
	k := CacheKey{
		Addr:   st.Addr,
		Stride: uint32(st.Stride),
		Format: st.Format,
		Width:  uint16(st.Width),
		Height: uint16(st.Height),
		Scale:  uint8(scale),
	}
	if st.Format.IsIndexed() {
		k.PaletteHash = paletteHash
	}
	return k
}

// replacementKey folds the cache key into the opaque 64-bit key the
// replacement-asset service is addressed by.
func (k CacheKey) replacementKey() uint64 {
	var buf [16]byte
	buf[0] = byte(k.Addr)
	buf[1] = byte(k.Addr >> 8)
	buf[2] = byte(k.Addr >> 16)
	buf[3] = byte(k.Addr >> 24)
	buf[4] = byte(k.PaletteHash)
	buf[5] = byte(k.PaletteHash >> 8)
	buf[6] = byte(k.PaletteHash >> 16)
	buf[7] = byte(k.PaletteHash >> 24)
	buf[8] = byte(k.Width)
	buf[9] = byte(k.Width >> 8)
	buf[10] = byte(k.Height)
	buf[11] = byte(k.Height >> 8)
	buf[12] = byte(k.Format)
	return xxhash.Sum64(buf[:])
}

// AlphaStatus classifies the alpha channel of a built texture.
type AlphaStatus uint8

const (
	// AlphaUnknown means the texture has not been classified yet.
	AlphaUnknown AlphaStatus = iota

	// AlphaFull means every pixel is fully opaque.
	AlphaFull

	// AlphaYes means at least one pixel is not fully opaque.
	AlphaYes
)

// String returns a human-readable name for the status.
func (s AlphaStatus) String() string {
	switch s {
	case AlphaFull:
		return "full"
	case AlphaYes:
		return "yes"
	default:
		return "unknown"
	}
}

// entryStatus holds the per-entry state flags.
type entryStatus uint8

const (
	// statusNoMips marks entries whose texture has only the top level.
	statusNoMips entryStatus = 1 << iota

	// statusVolume marks volumetric (depth > 1) textures.
	statusVolume

	// statusNeedsRehash marks entries whose source bytes must be
	// re-validated on the next bind.
	statusNeedsRehash
)

// Entry is one texture cache entry. It exclusively owns its native
// texture handle; the handle is released on eviction, overwrite and
// cache clear, never shared between entries.
type Entry struct {
	Key CacheKey

	tex device.Texture

	status entryStatus

	// format and clutFormat are the guest formats the entry was built
	// from, validated on every hit since the key does not encode the
	// palette format for direct textures.
	format     TexFormat
	clutFormat PaletteFormat

	// maxLevel is the highest usable mip level of the native texture.
	maxLevel int

	alpha AlphaStatus
}

// Texture returns the native texture handle, or nil while unbuilt.
func (e *Entry) Texture() device.Texture { return e.tex }

// Alpha returns the entry's alpha classification.
func (e *Entry) Alpha() AlphaStatus { return e.alpha }

// MaxLevel returns the highest usable mip level.
func (e *Entry) MaxLevel() int { return e.maxLevel }

// effectiveMaxLevel honors the no-mips flag when sampling.
func (e *Entry) effectiveMaxLevel() int {
	if e.status&statusNoMips != 0 {
		return 0
	}
	return e.maxLevel
}

// release frees the native handle. Safe on entries that never built.
func (e *Entry) release() {
	if e.tex != nil {
		e.tex.Release()
		e.tex = nil
	}
}
