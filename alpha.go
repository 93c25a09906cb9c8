package texcache

import (
	"encoding/binary"

	"github.com/gogpu/texcache/device"
)

// checkAlpha classifies the alpha usage of decoded pixel data by
// scanning for any non-opaque pixel. The scan is the hot path after
// every decode, so it bails out on the first transparent pixel found.
// Formats without an alpha channel are always fully opaque.
func checkAlpha(pix []byte, format device.Format, w, h, stride int) AlphaStatus {
	mask := format.AlphaMask()
	if mask == 0 {
		return AlphaFull
	}
	switch format.BytesPerPixel() {
	case 2:
		m := uint16(mask)
		for y := 0; y < h; y++ {
			row := pix[y*stride:]
			for x := 0; x < w; x++ {
				if binary.LittleEndian.Uint16(row[x*2:])&m != m {
					return AlphaYes
				}
			}
		}
	default:
		for y := 0; y < h; y++ {
			row := pix[y*stride:]
			for x := 0; x < w; x++ {
				if binary.LittleEndian.Uint32(row[x*4:])&mask != mask {
					return AlphaYes
				}
			}
		}
	}
	return AlphaFull
}

// checkPaletteAlpha classifies alpha analytically from the palette
// itself. The depalettize pass output is a bounded remap of the
// palette, so scanning the handful of palette alpha values replaces a
// full pixel scan of the resolved image.
func checkPaletteAlpha(c *clutState) AlphaStatus {
	dest := c.format.DestFormat()
	mask := dest.AlphaMask()
	if mask == 0 {
		return AlphaFull
	}
	n := c.totalBytes / c.format.EntryBytes()
	if c.format == Palette8888 {
		for i := 0; i < n; i++ {
			if c.entry32(i)&mask != mask {
				return AlphaYes
			}
		}
		return AlphaFull
	}
	m := uint16(mask)
	for i := 0; i < n; i++ {
		if c.entry16(i)&m != m {
			return AlphaYes
		}
	}
	return AlphaFull
}
