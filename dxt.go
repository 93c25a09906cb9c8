package texcache

import (
	"encoding/binary"
	"fmt"
)

// decodeDXT decompresses a DXT1/3/5 level into RGBA8 rows. Source
// blocks cover 4x4 texels; partial edge blocks are clipped to the
// level dimensions.
func decodeDXT(dst []byte, dstStride int, src []byte, w, h int, format TexFormat) error {
	blockBytes := 16
	if format == TexFormatDXT1 {
		blockBytes = 8
	}
	blocksW := (w + 3) / 4
	blocksH := (h + 3) / 4
	if len(src) < blocksW*blocksH*blockBytes {
		return fmt.Errorf("texcache: truncated %s data: %d bytes for %dx%d", format, len(src), w, h)
	}

	var block [16]uint32 // row-major 4x4 RGBA8 texels
	for by := 0; by < blocksH; by++ {
		for bx := 0; bx < blocksW; bx++ {
			raw := src[(by*blocksW+bx)*blockBytes:]
			switch format {
			case TexFormatDXT1:
				decodeColorBlock(&block, raw, true)
			case TexFormatDXT3:
				decodeColorBlock(&block, raw[8:], false)
				decodeExplicitAlpha(&block, raw)
			default: // DXT5
				decodeColorBlock(&block, raw[8:], false)
				decodeInterpolatedAlpha(&block, raw)
			}

			for ty := 0; ty < 4; ty++ {
				y := by*4 + ty
				if y >= h {
					break
				}
				out := dst[y*dstStride:]
				for tx := 0; tx < 4; tx++ {
					x := bx*4 + tx
					if x >= w {
						break
					}
					binary.LittleEndian.PutUint32(out[x*4:], block[ty*4+tx])
				}
			}
		}
	}
	return nil
}

// decodeColorBlock expands the 8-byte color portion of a block.
// oneBit enables DXT1's 3-color + transparent mode when c0 <= c1.
func decodeColorBlock(block *[16]uint32, raw []byte, oneBit bool) {
	c0 := binary.LittleEndian.Uint16(raw)
	c1 := binary.LittleEndian.Uint16(raw[2:])
	bits := binary.LittleEndian.Uint32(raw[4:])

	var palette [4]uint32
	r0, g0, b0 := rgb565(c0)
	r1, g1, b1 := rgb565(c1)
	palette[0] = packRGBA(r0, g0, b0, 0xFF)
	palette[1] = packRGBA(r1, g1, b1, 0xFF)
	if !oneBit || c0 > c1 {
		palette[2] = packRGBA((2*r0+r1)/3, (2*g0+g1)/3, (2*b0+b1)/3, 0xFF)
		palette[3] = packRGBA((r0+2*r1)/3, (g0+2*g1)/3, (b0+2*b1)/3, 0xFF)
	} else {
		palette[2] = packRGBA((r0+r1)/2, (g0+g1)/2, (b0+b1)/2, 0xFF)
		palette[3] = 0 // transparent black
	}

	for i := 0; i < 16; i++ {
		block[i] = palette[bits>>(uint(i)*2)&3]
	}
}

// decodeExplicitAlpha applies DXT3's 4-bit-per-texel alpha.
func decodeExplicitAlpha(block *[16]uint32, raw []byte) {
	alpha := binary.LittleEndian.Uint64(raw)
	for i := 0; i < 16; i++ {
		a := expand4(uint32(alpha >> (uint(i) * 4) & 0xF))
		block[i] = block[i]&0x00FFFFFF | a<<24
	}
}

// decodeInterpolatedAlpha applies DXT5's two-endpoint alpha ramp.
func decodeInterpolatedAlpha(block *[16]uint32, raw []byte) {
	a0 := uint32(raw[0])
	a1 := uint32(raw[1])

	var palette [8]uint32
	palette[0] = a0
	palette[1] = a1
	if a0 > a1 {
		for i := uint32(1); i < 7; i++ {
			palette[i+1] = ((7-i)*a0 + i*a1) / 7
		}
	} else {
		for i := uint32(1); i < 5; i++ {
			palette[i+1] = ((5-i)*a0 + i*a1) / 5
		}
		palette[6] = 0
		palette[7] = 0xFF
	}

	// 48 bits of 3-bit indices.
	bits := uint64(raw[2]) | uint64(raw[3])<<8 | uint64(raw[4])<<16 |
		uint64(raw[5])<<24 | uint64(raw[6])<<32 | uint64(raw[7])<<40
	for i := 0; i < 16; i++ {
		a := palette[bits>>(uint(i)*3)&7]
		block[i] = block[i]&0x00FFFFFF | a<<24
	}
}

func rgb565(p uint16) (r, g, b uint32) {
	v := uint32(p)
	return expand5(v >> 11 & 0x1F), expand6(v >> 5 & 0x3F), expand5(v & 0x1F)
}

func packRGBA(r, g, b, a uint32) uint32 {
	return r | g<<8 | b<<16 | a<<24
}
