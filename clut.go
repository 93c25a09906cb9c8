package texcache

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// ClutMaxBytes is the capacity of the palette buffer: the largest
// supported palette (256 x 32-bit entries).
const ClutMaxBytes = 1024

// clutState is the engine's view of the active indexed-color table.
type clutState struct {
	raw [ClutMaxBytes]byte

	// totalBytes is the size of the last guest palette upload.
	totalBytes int

	format PaletteFormat
	hash   uint32
	loaded bool

	// Fast path for font-style palettes: a 16-entry 4444 table whose
	// entries share one base color and ramp only the alpha nibble by
	// index. Texture application may then synthesize alpha from the
	// index directly instead of resolving the full palette.
	alphaLinear      bool
	alphaLinearColor uint16
}

// LoadClut reads n palette bytes from guest memory into the bounded
// palette buffer. Uploads beyond ClutMaxBytes are truncated.
func (e *Engine) LoadClut(addr uint32, n int) error {
	if n < 0 {
		return fmt.Errorf("texcache: negative palette upload size %d", n)
	}
	if n > ClutMaxBytes {
		n = ClutMaxBytes
	}
	data, err := e.mem.Read(addr, n)
	if err != nil {
		return fmt.Errorf("texcache: palette upload read: %w", err)
	}
	copy(e.clut.raw[:n], data)
	e.clut.totalBytes = n
	e.clut.loaded = true
	return nil
}

// UpdateClut recomputes the palette hash and fast-path flags after a
// guest palette upload or format change, and returns the new hash.
//
// baseOffset is the guest's palette base in entries. The hashed range
// is the uploaded size extended by the base offset, capped at
// ClutMaxBytes. The extension hashes bytes that may predate the upload;
// that deliberately over-covers so partial uploads referencing earlier
// data never produce a stale-hash cache hit. It is a known heuristic,
// not a strict bound.
func (e *Engine) UpdateClut(format PaletteFormat, baseOffset int, indexIsSimple bool) uint32 {
	c := &e.clut
	c.format = format

	baseBytes := baseOffset * format.EntryBytes()
	extended := c.totalBytes + baseBytes
	if extended > ClutMaxBytes {
		extended = ClutMaxBytes
	}
	if extended < 0 {
		extended = 0
	}
	// Folded to 32 bits so it packs into the cache key. Stable within
	// a session, otherwise opaque.
	c.hash = uint32(xxhash.Sum64(c.raw[:extended]))

	c.alphaLinear = false
	c.alphaLinearColor = 0
	if format == Palette4444 && indexIsSimple {
		base := binary.LittleEndian.Uint16(c.raw[15*2:]) & 0x0FFF
		c.alphaLinear = true
		c.alphaLinearColor = base
		for i := 0; i < 16; i++ {
			step := base | uint16(i)<<12
			if binary.LittleEndian.Uint16(c.raw[i*2:]) != step {
				c.alphaLinear = false
				break
			}
		}
		if !c.alphaLinear {
			c.alphaLinearColor = 0
		}
	}

	return c.hash
}

// ClutHash returns the hash of the active palette.
func (e *Engine) ClutHash() uint32 { return e.clut.hash }

// ClutAlphaLinear reports the alpha-ramp fast path and its base color.
func (e *Engine) ClutAlphaLinear() (bool, uint16) {
	return e.clut.alphaLinear, e.clut.alphaLinearColor
}

// entry16 returns palette entry i as a packed 16-bit value.
func (c *clutState) entry16(i int) uint16 {
	off := i * 2
	if off+2 > ClutMaxBytes {
		return 0
	}
	return binary.LittleEndian.Uint16(c.raw[off:])
}

// entry32 returns palette entry i as a packed 32-bit value.
func (c *clutState) entry32(i int) uint32 {
	off := i * 4
	if off+4 > ClutMaxBytes {
		return 0
	}
	return binary.LittleEndian.Uint32(c.raw[off:])
}

// entries returns how many whole entries the buffer holds for the
// current format.
func (c *clutState) entries() int {
	return ClutMaxBytes / c.format.EntryBytes()
}
