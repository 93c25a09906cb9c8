package texcache

// Option configures an Engine during creation.
//
// Example:
//
//	eng := texcache.New(dev, mem, rts, shaders,
//		texcache.WithUpscaleFactor(2),
//		texcache.WithReplacer(packs))
type Option func(*options)

// options holds optional configuration for Engine creation.
type options struct {
	upscale       int
	maxEntries    int
	decimateAge   uint64
	anisotropy    int
	slowFBEffects bool
	replacer      Replacer
}

// defaultOptions returns the default engine options.
func defaultOptions() options {
	return options{
		upscale:       1,
		maxEntries:    1024,
		decimateAge:   120,
		anisotropy:    1,
		slowFBEffects: true,
	}
}

// WithUpscaleFactor sets the integer upscale multiplier applied to
// rebuilt textures. Factors above 1 force a 32-bit output format.
// Values below 1 are treated as 1.
func WithUpscaleFactor(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = 1
		}
		o.upscale = n
	}
}

// WithMaxEntries bounds the number of live cache entries. Decimation
// evicts least recently used entries beyond this budget regardless of
// age. Zero means unbounded.
func WithMaxEntries(n int) Option {
	return func(o *options) { o.maxEntries = n }
}

// WithDecimateAge sets how many frames an entry may go unused before
// the per-frame decimation pass evicts it.
func WithDecimateAge(frames int) Option {
	return func(o *options) {
		if frames < 1 {
			frames = 1
		}
		o.decimateAge = uint64(frames)
	}
}

// WithAnisotropy sets the requested anisotropic filtering level.
// The value is clamped to the device capability at engine creation.
func WithAnisotropy(level int) Option {
	return func(o *options) {
		if level < 1 {
			level = 1
		}
		o.anisotropy = level
	}
}

// WithSlowFramebufferEffects toggles the depalettize render pass for
// framebuffer-aliased indexed textures. When disabled the framebuffer
// is bound directly, trading correctness for speed.
func WithSlowFramebufferEffects(enabled bool) Option {
	return func(o *options) { o.slowFBEffects = enabled }
}

// WithReplacer installs a replacement-asset service consulted before
// every build. A nil replacer (the default) disables replacement.
func WithReplacer(r Replacer) Option {
	return func(o *options) { o.replacer = r }
}
