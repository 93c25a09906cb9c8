package texcache

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/texcache/device"
)

// Channel expansion helpers for upconversion to 8 bits.
func expand4(v uint32) uint32 { return v * 17 }
func expand5(v uint32) uint32 { return v<<3 | v>>2 }
func expand6(v uint32) uint32 { return v<<2 | v>>4 }

// to8888 widens a packed 16-bit pixel of format f to RGBA8.
func to8888(p uint16, f device.Format) uint32 {
	v := uint32(p)
	var r, g, b, a uint32
	switch f {
	case device.FormatRGBA4444:
		r = expand4(v & 0xF)
		g = expand4(v >> 4 & 0xF)
		b = expand4(v >> 8 & 0xF)
		a = expand4(v >> 12 & 0xF)
	case device.FormatRGBA5551:
		r = expand5(v & 0x1F)
		g = expand5(v >> 5 & 0x1F)
		b = expand5(v >> 10 & 0x1F)
		a = (v >> 15) * 0xFF
	default: // FormatRGB565
		r = expand5(v & 0x1F)
		g = expand6(v >> 5 & 0x3F)
		b = expand5(v >> 11 & 0x1F)
		a = 0xFF
	}
	return r | g<<8 | b<<16 | a<<24
}

// put16 writes a 16-bit source pixel into dst as dstFmt, widening when
// the destination is 32-bit.
func put16(dst []byte, srcFmt device.Format, p uint16, dstFmt device.Format) {
	if dstFmt == device.FormatRGBA8 {
		binary.LittleEndian.PutUint32(dst, to8888(p, srcFmt))
	} else {
		binary.LittleEndian.PutUint16(dst, p)
	}
}

// clutIndex applies the palette lookup for one index, honoring the
// palette's natural 16- or 32-bit packing.
func (c *clutState) lookup16(idx int) uint16 {
	return c.entry16(idx % c.entries())
}

func (c *clutState) lookup32(idx int) uint32 {
	return c.entry32(idx % c.entries())
}

// decodeInto decodes one mip level (or one depth slice) of guest pixel
// data into dst at dstStride, converting to dstFmt. src holds h rows
// of srcStride bytes in the guest format.
func (e *Engine) decodeInto(dst []byte, dstStride int, src []byte, srcStride, w, h int, format TexFormat, dstFmt device.Format) error {
	if format.IsIndexed() && !e.clut.loaded {
		return ErrNoClut
	}

	switch format {
	case TexFormat5650, TexFormat5551, TexFormat4444:
		srcFmt := destFormat(format, e.clut.format)
		for y := 0; y < h; y++ {
			row := src[y*srcStride:]
			out := dst[y*dstStride:]
			if dstFmt == srcFmt {
				copy(out[:w*2], row[:w*2])
				continue
			}
			for x := 0; x < w; x++ {
				put16(out[x*4:], srcFmt, binary.LittleEndian.Uint16(row[x*2:]), dstFmt)
			}
		}

	case TexFormat8888:
		for y := 0; y < h; y++ {
			copy(dst[y*dstStride:][:w*4], src[y*srcStride:][:w*4])
		}

	case TexFormatClut4:
		return e.decodeClut4(dst, dstStride, src, srcStride, w, h, dstFmt)

	case TexFormatClut8:
		return e.decodeIndexed(dst, dstStride, w, h, dstFmt, func(y, x int) int {
			return int(src[y*srcStride+x])
		})

	case TexFormatClut16:
		return e.decodeIndexed(dst, dstStride, w, h, dstFmt, func(y, x int) int {
			return int(binary.LittleEndian.Uint16(src[y*srcStride+x*2:]))
		})

	case TexFormatClut32:
		return e.decodeIndexed(dst, dstStride, w, h, dstFmt, func(y, x int) int {
			return int(binary.LittleEndian.Uint32(src[y*srcStride+x*4:]))
		})

	case TexFormatDXT1, TexFormatDXT3, TexFormatDXT5:
		// Block formats decode straight to 32-bit; the planner never
		// chooses a 16-bit destination for them.
		return decodeDXT(dst, dstStride, src, w, h, format)

	default:
		return fmt.Errorf("texcache: cannot decode format %s", format)
	}
	return nil
}

// decodeClut4 resolves 4-bit indexed pixels, two per source byte, low
// nibble first.
func (e *Engine) decodeClut4(dst []byte, dstStride int, src []byte, srcStride, w, h int, dstFmt device.Format) error {
	c := &e.clut

	// Alpha-ramp palettes synthesize the pixel from the index alone.
	// Purely an optimization: the palette path below produces the same
	// values.
	if c.alphaLinear && c.format == Palette4444 {
		base := c.alphaLinearColor
		for y := 0; y < h; y++ {
			row := src[y*srcStride:]
			out := dst[y*dstStride:]
			for x := 0; x < w; x++ {
				idx := uint16(row[x/2]>>(uint(x&1)*4)) & 0xF
				p := base | idx<<12
				if dstFmt == device.FormatRGBA8 {
					binary.LittleEndian.PutUint32(out[x*4:], to8888(p, device.FormatRGBA4444))
				} else {
					binary.LittleEndian.PutUint16(out[x*2:], p)
				}
			}
		}
		return nil
	}

	return e.decodeIndexed(dst, dstStride, w, h, dstFmt, func(y, x int) int {
		return int(src[y*srcStride+x/2]>>(uint(x&1)*4)) & 0xF
	})
}

// decodeIndexed resolves indexed pixels through the active palette
// using the provided index reader.
func (e *Engine) decodeIndexed(dst []byte, dstStride, w, h int, dstFmt device.Format, index func(y, x int) int) error {
	c := &e.clut
	srcFmt := c.format.DestFormat()

	if c.format == Palette8888 {
		for y := 0; y < h; y++ {
			out := dst[y*dstStride:]
			for x := 0; x < w; x++ {
				binary.LittleEndian.PutUint32(out[x*4:], c.lookup32(index(y, x)))
			}
		}
		return nil
	}

	for y := 0; y < h; y++ {
		out := dst[y*dstStride:]
		for x := 0; x < w; x++ {
			p := c.lookup16(index(y, x))
			if dstFmt == device.FormatRGBA8 {
				binary.LittleEndian.PutUint32(out[x*4:], to8888(p, srcFmt))
			} else {
				binary.LittleEndian.PutUint16(out[x*2:], p)
			}
		}
	}
	return nil
}

// scaleNearest integer-upscales decoded pixels from src (w x h, tightly
// packed) into dst at dstStride.
func scaleNearest(dst []byte, dstStride int, src []byte, w, h, scale, bpp int) {
	srcStride := w * bpp
	for y := 0; y < h*scale; y++ {
		srow := src[(y/scale)*srcStride:]
		drow := dst[y*dstStride:]
		for x := 0; x < w*scale; x++ {
			copy(drow[x*bpp:(x+1)*bpp], srow[(x/scale)*bpp:])
		}
	}
}

// loadLevel decodes one mip level of a build into a caller-provided
// destination buffer, respecting the native stride. srcAddr addresses
// the level (or depth slice) in guest memory. A ready replacement
// level bypasses guest-format decoding entirely.
func (e *Engine) loadLevel(dst []byte, dstStride int, st *BindState, plan BuildPlan, level int, srcAddr uint32, dstFmt device.Format) error {
	if plan.ReplValid {
		repl, status := e.replacer.Lookup(plan.ReplKey, level)
		if status != ReplacementReady {
			return fmt.Errorf("texcache: replacement level %d vanished", level)
		}
		// A pack level that does not match the native mip dimensions is
		// clipped rather than trusted.
		rowBytes := min(repl.Format.RowBytes(repl.Width), dstStride)
		rows := min(repl.Height, len(dst)/dstStride)
		for y := 0; y < rows; y++ {
			copy(dst[y*dstStride:][:rowBytes], repl.Pixels[y*repl.Stride:])
		}
		return nil
	}

	w, h := st.levelDims(level)
	srcStride := st.Format.RowBytes(w)
	if level == 0 && st.Stride > srcStride && !st.Format.IsCompressed() {
		srcStride = st.Stride
	}
	srcSize := st.Format.LevelBytes(w, h)
	if srcStride > st.Format.RowBytes(w) {
		srcSize = srcStride * h
	}
	src, err := e.mem.Read(srcAddr, srcSize)
	if err != nil {
		return fmt.Errorf("texcache: level %d source read: %w", level, err)
	}

	scale := plan.ScaleFactor
	if scale <= 1 {
		return e.decodeInto(dst, dstStride, src, srcStride, w, h, st.Format, dstFmt)
	}

	// Decode at source resolution, then integer-upscale into place.
	bpp := dstFmt.BytesPerPixel()
	tmp := make([]byte, w*h*bpp)
	if err := e.decodeInto(tmp, w*bpp, src, srcStride, w, h, st.Format, dstFmt); err != nil {
		return err
	}
	scaleNearest(dst, dstStride, tmp, w, h, scale, bpp)
	e.texelsScaled += w * h
	return nil
}
