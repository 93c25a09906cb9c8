package texcache

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/texcache/device"
)

// applyFramebuffer binds a render target's contents as the current
// texture. Indexed guest formats sample the framebuffer through the
// palette, which needs a depalettize pass into a scratch target; direct
// formats bind the color attachment as-is.
//
// Entries are never created for framebuffer sources: the target's
// pixels change every frame and the render target manager owns them.
func (e *Engine) applyFramebuffer(rc *RenderContext, st *BindState, fb *VirtualFramebuffer) error {
	rc.InvalidateBoundTexture()

	if st.Format.IsIndexed() && e.clut.loaded && e.opts.slowFBEffects {
		if err := e.depalettize(rc, st, fb); err != nil {
			Logger().Warn("texcache: depalettize failed, binding framebuffer directly",
				slog.Any("err", err))
		} else {
			return nil
		}
	}

	e.rts.BindAsTexture(fb.Target, 0, device.ChannelColor, 0)
	e.applyFramebufferSampler(st)

	// Only 565 color buffers are provably opaque.
	rc.SetTextureFullAlpha(st.Format == TexFormat5650)
	rc.DirtyTextureParams = true
	return nil
}

// depalettize resolves an indexed view of a framebuffer by drawing it
// through the palette into a scratch target, then binding the scratch
// color attachment as the current texture.
func (e *Engine) depalettize(rc *RenderContext, st *BindState, fb *VirtualFramebuffer) error {
	if !fb.Format.IsValid() {
		return ErrNoFramebufferFormat
	}
	prog, err := e.shaders.DepalProgram(e.clut.format, fb.Format)
	if err != nil {
		return fmt.Errorf("depal program: %w", err)
	}
	clutTex, err := e.shaders.ClutTexture(e.clut.format, e.clut.hash, e.clut.raw[:e.clut.totalBytes])
	if err != nil {
		return fmt.Errorf("palette texture: %w", err)
	}

	scratch, err := e.rts.ScratchTarget(ScratchDepal, fb.RenderWidth, fb.RenderHeight)
	if err != nil {
		return fmt.Errorf("scratch target: %w", err)
	}

	e.rts.BindAsRenderTarget(scratch, device.LoadActionDontCare)
	e.rts.BindAsTexture(fb.Target, 0, device.ChannelColor, 0)
	e.dev.BindTexture(1, clutTex)

	// Both the source pixels and the palette must be sampled exactly;
	// any filtering would blend indices.
	point := device.SamplerParams{ClampS: true, ClampT: true, Anisotropy: 1}
	e.dev.ApplySampler(0, point)
	e.dev.ApplySampler(1, point)

	verts := depalQuad(rc, fb)
	if err := e.dev.RunFullscreenProgram(prog, verts, fb.RenderWidth, fb.RenderHeight, 0xF); err != nil {
		e.rts.Rebind()
		return fmt.Errorf("depal draw: %w", err)
	}

	e.dev.BindTexture(1, nil)
	e.rts.BindAsTexture(scratch, 0, device.ChannelColor, 0)
	e.rts.Rebind()

	e.applyFramebufferSampler(st)
	rc.SetTextureFullAlpha(checkPaletteAlpha(&e.clut) == AlphaFull)
	rc.DirtyTextureParams = true
	return nil
}

// depalQuad builds the quad for a depalettize pass. When the draw's
// vertex bounds are known the quad is cropped to the touched region,
// so the pass only resolves pixels the draw can sample. Texturing
// offsets relocate the bounds before the crop, moving both the output
// position and the source coordinates so resolved pixels land where
// the draw samples them.
func depalQuad(rc *RenderContext, fb *VirtualFramebuffer) [4]device.Vertex {
	u0, v0, u1, v1 := float32(0), float32(0), float32(1), float32(1)
	x0, y0, x1, y1 := float32(-1), float32(-1), float32(1), float32(1)

	if b := rc.VertBounds; b.Valid() {
		bw := float32(fb.BufferWidth)
		bh := float32(fb.BufferHeight)
		u0 = float32(b.MinU+rc.TexOffsetU) / bw
		u1 = float32(b.MaxU+rc.TexOffsetU) / bw
		v0 = float32(b.MinV+rc.TexOffsetV) / bh
		v1 = float32(b.MaxV+rc.TexOffsetV) / bh
		x0 = u0*2 - 1
		x1 = u1*2 - 1
		y0 = v0*2 - 1
		y1 = v1*2 - 1
	}

	return [4]device.Vertex{
		{X: x0, Y: y0, U: u0, V: v0},
		{X: x1, Y: y0, U: u1, V: v0},
		{X: x0, Y: y1, U: u0, V: v1},
		{X: x1, Y: y1, U: u1, V: v1},
	}
}

// applyFramebufferSampler issues sampler state for a framebuffer
// source: guest filter and wrap settings apply but mip sampling never
// does, since render targets have a single level.
func (e *Engine) applyFramebufferSampler(st *BindState) {
	ss := st.Sampler
	ss.MipEnable = false
	e.applySampler(ss, 0)
}
