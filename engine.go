package texcache

import (
	"log/slog"

	"github.com/gogpu/texcache/device"
	"github.com/gogpu/texcache/internal/cache"
)

// Engine is the texture cache engine: it translates guest texture
// state into native texture objects with deduplication, format
// negotiation and on-demand reconstruction.
//
// The engine executes on a single rendering thread; per-frame phases
// (StartFrame, then per-draw Apply calls) run strictly in order and no
// operation blocks, so no internal locking is used on the bind path.
type Engine struct {
	dev     device.Device
	mem     Memory
	rts     RenderTargetManager
	shaders ShaderProvider

	opts     options
	caps     device.Caps
	replacer Replacer

	entries *cache.Cache[CacheKey, *Entry]
	clut    clutState

	frame          uint64
	anisotropy     int
	clearNextFrame bool

	// Per-frame counters, reset in StartFrame.
	texelsScaled  int
	invalidations int
}

// New creates an engine over the given collaborators. dev, mem, rts
// and shaders are required; the replacement service is optional and
// installed through WithReplacer.
func New(dev device.Device, mem Memory, rts RenderTargetManager, shaders ShaderProvider, opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		dev:      dev,
		mem:      mem,
		rts:      rts,
		shaders:  shaders,
		opts:     o,
		caps:     dev.Caps(),
		replacer: o.replacer,
	}
	e.entries = cache.New[CacheKey, *Entry](o.maxEntries, func(ent *Entry) {
		ent.release()
	})

	e.anisotropy = o.anisotropy
	if e.caps.MaxAnisotropy > 0 && e.anisotropy > e.caps.MaxAnisotropy {
		e.anisotropy = e.caps.MaxAnisotropy
	}

	if ls, ok := dev.(loggerSetter); ok {
		ls.SetLogger(Logger())
	}

	Logger().Info("texcache: engine created",
		slog.Int("maxEntries", o.maxEntries),
		slog.Int("upscale", o.upscale),
		slog.Int("anisotropy", e.anisotropy))
	return e
}

// Frame returns the current frame number.
func (e *Engine) Frame() uint64 { return e.frame }

// StartFrame begins a new frame: it forgets the memoized binding, runs
// the deferred clear or the decimation pass, and resets the per-frame
// counters.
func (e *Engine) StartFrame(rc *RenderContext) {
	rc.InvalidateBoundTexture()

	if e.texelsScaled > 0 {
		Logger().Debug("texcache: scaled texels", slog.Int("texels", e.texelsScaled))
	}
	e.texelsScaled = 0
	e.invalidations = 0

	e.frame++
	e.entries.SetFrame(e.frame)

	if e.clearNextFrame {
		e.Clear(true)
		e.clearNextFrame = false
	} else {
		e.decimate()
	}
}

// decimate evicts entries unused for longer than the configured age.
// The entry budget is enforced afterwards in LRU order, so cache
// pressure shortens the effective lifetime.
func (e *Engine) decimate() {
	var cutoff uint64
	if e.frame > e.opts.decimateAge {
		cutoff = e.frame - e.opts.decimateAge
	}
	if n := e.entries.Decimate(cutoff); n > 0 {
		Logger().Debug("texcache: decimated entries", slog.Int("evicted", n))
	}
}

// Apply resolves the texture for one bind command: framebuffer-aliased
// sources go through the framebuffer resolver, everything else through
// cache lookup and, when stale or missing, a rebuild. On success the
// native texture is bound to unit 0 with derived sampler state.
//
// Failures are not fatal: the error is returned for logging and the
// draw proceeds with the previously bound texture.
func (e *Engine) Apply(rc *RenderContext, st *BindState) error {
	if fb := e.rts.FramebufferAt(st.Addr, st.byteSize()); fb != nil {
		return e.applyFramebuffer(rc, st, fb)
	}

	key := cacheKey(st, e.clut.hash, e.opts.upscale)

	ent, hit := e.entries.Get(key)
	if hit && e.entryFresh(ent, st) {
		e.bindEntry(rc, st, ent)
		return nil
	}

	if hit {
		// Format-compatible re-binds refresh the entry in place; the
		// old native handle is released and rebuilt under the same key.
		ent.release()
		ent.format = st.Format
		ent.clutFormat = e.clut.format
		ent.status = 0
	} else {
		ent = &Entry{
			Key:        key,
			format:     st.Format,
			clutFormat: e.clut.format,
		}
	}

	if err := e.buildTexture(ent, st); err != nil {
		if !hit {
			// Unplannable builds leave the entry absent; the next bind
			// retries the lookup from scratch.
			return err
		}
		e.entries.Delete(key)
		return err
	}

	if !hit {
		e.entries.Set(key, ent)
	}
	e.bindEntry(rc, st, ent)
	return nil
}

// entryFresh validates a key hit against the guest parameters the key
// does not fully encode.
func (e *Engine) entryFresh(ent *Entry, st *BindState) bool {
	if ent.tex == nil || ent.status&statusNeedsRehash != 0 {
		return false
	}
	if ent.format != st.Format {
		return false
	}
	if st.Format.IsIndexed() && ent.clutFormat != e.clut.format {
		return false
	}
	return true
}

// bindEntry binds the entry's texture to unit 0, skipping the native
// call when it is already bound, and applies derived sampler state.
func (e *Engine) bindEntry(rc *RenderContext, st *BindState, ent *Entry) {
	if rc.lastBound != ent.tex {
		e.dev.BindTexture(0, ent.tex)
		rc.lastBound = ent.tex
	}
	e.applySampler(st.Sampler, ent.effectiveMaxLevel())
	rc.SetTextureFullAlpha(ent.alpha == AlphaFull)
}

// Unbind releases unit 0 and forgets the memoized binding.
func (e *Engine) Unbind(rc *RenderContext) {
	e.dev.BindTexture(0, nil)
	rc.InvalidateBoundTexture()
}

// Evict removes one entry and releases its native handle.
func (e *Engine) Evict(key CacheKey) bool {
	return e.entries.Delete(key)
}

// Clear removes every entry. release=false is for context loss, where
// the native handles are already invalid.
func (e *Engine) Clear(release bool) {
	n := e.entries.Len()
	e.entries.Clear(release)
	e.invalidations++
	Logger().Info("texcache: cache cleared", slog.Int("entries", n), slog.Bool("release", release))
}

// ClearNextFrame defers a full clear to the next StartFrame, for
// cache-busting requests arriving mid-frame.
func (e *Engine) ClearNextFrame() {
	e.clearNextFrame = true
}

// Len returns the number of live cache entries.
func (e *Engine) Len() int { return e.entries.Len() }

// Stats is a snapshot of engine counters.
type Stats struct {
	// Entries is the live entry count.
	Entries int

	// Frame is the current frame number.
	Frame uint64

	// TexelsScaled counts texels upscaled so far this frame.
	TexelsScaled int

	// Invalidations counts full cache clears this frame.
	Invalidations int
}

// Stats returns a snapshot of engine counters.
func (e *Engine) Stats() Stats {
	return Stats{
		Entries:       e.entries.Len(),
		Frame:         e.frame,
		TexelsScaled:  e.texelsScaled,
		Invalidations: e.invalidations,
	}
}

// CurrentTexturePixels reads back one mip level of the currently bound
// texture for debugging. Returns ok=false without cache side effects
// when nothing is bound or the backend cannot read the level back.
func (e *Engine) CurrentTexturePixels(rc *RenderContext, level int) (pix []byte, stride int, ok bool) {
	if rc.lastBound == nil {
		return nil, 0, false
	}
	ml, err := e.dev.ReadbackLevel(rc.lastBound, level)
	if err != nil {
		Logger().Warn("texcache: texture readback failed",
			slog.Int("level", level), slog.Any("err", err))
		return nil, 0, false
	}
	return ml.Pix, ml.Stride, true
}
