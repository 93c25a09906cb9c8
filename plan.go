package texcache

import (
	"github.com/gogpu/texcache/device"
)

// BuildPlan is the transient plan for one texture reconstruction.
// Two plans computed from unchanged guest state are identical.
type BuildPlan struct {
	// W, H, Depth are the final native texture dimensions, after any
	// replacement override or upscale factor.
	W, H, Depth int

	// ScaleFactor is the integer upscale applied during decode, 1 for
	// none. Always 1 when a replacement overrides the pixels.
	ScaleFactor int

	// LevelsToCreate is the mip count the native texture is allocated
	// with: the minimum of what the guest requested and what is
	// loadable from source.
	LevelsToCreate int

	// LevelsToLoad is how many levels have verifiably readable source
	// data. Never exceeds LevelsToCreate after clamping.
	LevelsToLoad int

	// BaseLevelSrc is the source level feeding native level 0.
	BaseLevelSrc int

	// Format is the chosen native pixel format.
	Format device.Format

	// ReplKey addresses the replacement-asset service for this build.
	ReplKey uint64

	// ReplValid is set when a ready replacement overrides the decoded
	// path entirely; W, H and Format then come from the replacement.
	ReplValid bool

	// ReplPending is set when a replacement exists but has not loaded
	// yet. The build proceeds from guest data and the entry is marked
	// for revalidation.
	ReplPending bool
}

// destFormat maps a guest pixel/palette format pair to the native
// format the engine decodes into. Indexed formats resolve to their
// palette's destination format; 16-bit direct formats map 1:1;
// block-compressed and 32-bit formats fall back to 32-bit uncompressed.
func destFormat(format TexFormat, clutFormat PaletteFormat) device.Format {
	switch format {
	case TexFormatClut4, TexFormatClut8, TexFormatClut16, TexFormatClut32:
		return clutFormat.DestFormat()
	case TexFormat4444:
		return device.FormatRGBA4444
	case TexFormat5551:
		return device.FormatRGBA5551
	case TexFormat5650:
		return device.FormatRGB565
	default:
		return device.FormatRGBA8
	}
}

// planBuild derives the build plan for one bind. It returns
// ErrUnplannable for degenerate geometry or unreadable source memory;
// the caller skips the build and the draw proceeds with whatever
// texture was previously bound.
func (e *Engine) planBuild(st *BindState, key CacheKey) (BuildPlan, error) {
	if st.Width <= 0 || st.Height <= 0 {
		return BuildPlan{}, ErrUnplannable
	}

	depth := st.Depth
	if depth < 1 {
		depth = 1
	}

	w, h := st.levelDims(0)
	if !e.mem.Valid(st.levelAddr(0), st.Format.LevelBytes(w, h)*depth) {
		return BuildPlan{}, ErrUnplannable
	}

	plan := BuildPlan{
		W:           w,
		H:           h,
		Depth:       depth,
		ScaleFactor: 1,
		ReplKey:     key.replacementKey(),
		Format:      destFormat(st.Format, e.clut.format),
	}

	// Volumetric textures carry their slices in one level.
	requested := st.MaxLevel + 1
	if depth > 1 {
		requested = 1
	}

	// Count contiguously loadable levels. Requesting more levels than
	// the source holds clamps silently instead of failing.
	loadable := 0
	for i := 0; i < requested; i++ {
		lw, lh := st.levelDims(i)
		if !e.mem.Valid(st.levelAddr(i), st.Format.LevelBytes(lw, lh)) {
			break
		}
		loadable++
	}
	if loadable == 0 {
		return BuildPlan{}, ErrUnplannable
	}
	plan.LevelsToLoad = loadable
	plan.LevelsToCreate = min(requested, loadable)

	// Replacement assets take precedence over everything, including
	// the decoded geometry and the upscale factor.
	if e.replacer != nil {
		repl, status := e.replacer.Lookup(plan.ReplKey, plan.BaseLevelSrc)
		switch status {
		case ReplacementReady:
			if repl.Width > 0 && repl.Height > 0 {
				plan.ReplValid = true
				plan.W = repl.Width
				plan.H = repl.Height
				plan.Format = repl.Format
				// The pack may carry its own mip chain; use as much of
				// it as the guest requested.
				levels := 1
				for levels < plan.LevelsToCreate {
					if _, s := e.replacer.Lookup(plan.ReplKey, levels); s != ReplacementReady {
						break
					}
					levels++
				}
				plan.LevelsToCreate = levels
				plan.LevelsToLoad = levels
				return plan, nil
			}
		case ReplacementPending:
			// Not ready yet. Build from guest data now; the entry is
			// flagged so a later bind retries the lookup.
			plan.ReplPending = true
		}
	}

	if e.opts.upscale > 1 {
		plan.ScaleFactor = e.opts.upscale
		plan.W *= plan.ScaleFactor
		plan.H *= plan.ScaleFactor
		plan.Format = device.FormatRGBA8
	}

	// Backends without native packed 16-bit sampling get RGBA8 and the
	// decoder upconverts.
	if !e.caps.Packed16 && plan.Format != device.FormatRGBA8 {
		plan.Format = device.FormatRGBA8
	}

	return plan, nil
}
