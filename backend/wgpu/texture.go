package wgpu

import (
	"sync/atomic"

	"github.com/gogpu/texcache/device"
	"github.com/gogpu/wgpu/core"
)

// rowAlignment is the WebGPU bytesPerRow alignment for buffer-to-texture
// copies. Staging strides honor it so the upload path never re-packs.
const rowAlignment = 256

// alignRow rounds a row byte count up to the copy alignment.
func alignRow(n int) int {
	return (n + rowAlignment - 1) &^ (rowAlignment - 1)
}

// stagingLevel is the CPU copy of one mip level. Uploads write here
// first; the GPU transfer happens on unmap.
type stagingLevel struct {
	pix        []byte
	stride     int
	slicePitch int
}

// texture is a native texture with per-level CPU staging.
type texture struct {
	// GPU resource IDs (stub - real wgpu handles once the texture
	// transfer path is wired).
	textureID core.TextureID
	viewID    core.TextureViewID

	width  int
	height int
	depth  int
	levels []stagingLevel
	format device.Format

	released atomic.Bool
	label    string
}

func (t *texture) Width() int            { return t.width }
func (t *texture) Height() int           { return t.height }
func (t *texture) Depth() int            { return t.depth }
func (t *texture) Levels() int           { return len(t.levels) }
func (t *texture) Format() device.Format { return t.format }

// Release frees the native resource and drops the staging copies.
// Safe to call more than once.
func (t *texture) Release() {
	if t.released.Swap(true) {
		return
	}
	// TODO: core.TextureDrop(t.textureID) once gogpu/wgpu exposes
	// texture destruction through the core API.
	t.levels = nil
}

// newTexture builds the logical texture and its staging levels.
func newTexture(desc device.TextureDescriptor) *texture {
	t := &texture{
		width:  desc.Width,
		height: desc.Height,
		depth:  desc.Depth,
		format: desc.Format,
		label:  desc.Label,
	}
	if t.depth < 1 {
		t.depth = 1
	}
	levels := desc.Levels
	if levels < 1 {
		levels = 1
	}
	t.levels = make([]stagingLevel, levels)
	for i := range t.levels {
		w := max(desc.Width>>i, 1)
		h := max(desc.Height>>i, 1)
		stride := alignRow(desc.Format.RowBytes(w))
		slicePitch := stride * h
		t.levels[i] = stagingLevel{
			pix:        make([]byte, slicePitch*t.depth),
			stride:     stride,
			slicePitch: slicePitch,
		}
	}
	return t
}

// renderTarget is a color attachment that can also be sampled.
type renderTarget struct {
	color    *texture
	released atomic.Bool
	label    string
}

func (rt *renderTarget) Width() int            { return rt.color.width }
func (rt *renderTarget) Height() int           { return rt.color.height }
func (rt *renderTarget) Format() device.Format { return rt.color.format }

func (rt *renderTarget) ColorTexture() device.Texture { return rt.color }

func (rt *renderTarget) Release() {
	if rt.released.Swap(true) {
		return
	}
	rt.color.Release()
}
