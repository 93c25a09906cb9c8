package texcache

import "github.com/gogpu/texcache/device"

// SamplerKey is the derived native sampling configuration for one
// bind. It is recomputed per bind from guest sampler state and the
// entry's mip availability; it is never stored long-term.
type SamplerKey struct {
	MinLinear bool
	MagLinear bool
	MipLinear bool
	MipEnable bool
	ClampS    bool
	ClampT    bool

	// LODBias is the mip bias in 1/256 units.
	LODBias int

	// MinLevel and MaxLevel bound the sampled mip range.
	MinLevel int
	MaxLevel int
}

// deriveSampler computes the sampler key for guest sampler state and
// the highest usable mip level of the bound texture. Pure; always
// succeeds on well-formed input.
//
// When guest mip-mapping is off the key still carries MipEnable=false
// rather than a structurally mip-free configuration; backends whose
// API cannot disable mip sampling directly express it as a top-level
// LOD clamp or an extreme negative bias.
func deriveSampler(ss SamplerState, maxLevel int) SamplerKey {
	k := SamplerKey{
		MinLinear: ss.MinLinear,
		MagLinear: ss.MagLinear,
		MipLinear: ss.MipLinear,
		MipEnable: ss.MipEnable && maxLevel > 0,
		ClampS:    ss.ClampS,
		ClampT:    ss.ClampT,
		MaxLevel:  maxLevel,
	}
	if k.MipEnable {
		k.LODBias = ss.LODBias
		k.MinLevel = min(max(ss.MinLevel/256, 0), maxLevel)
	} else {
		k.MaxLevel = 0
	}
	return k
}

// params converts the key into native sampler parameters with the
// engine's clamped anisotropy level.
func (k SamplerKey) params(anisotropy int) device.SamplerParams {
	return device.SamplerParams{
		MinLinear:  k.MinLinear,
		MagLinear:  k.MagLinear,
		MipLinear:  k.MipLinear,
		MipEnable:  k.MipEnable,
		ClampS:     k.ClampS,
		ClampT:     k.ClampT,
		LODBias:    k.LODBias,
		MinLevel:   k.MinLevel,
		MaxLevel:   k.MaxLevel,
		Anisotropy: anisotropy,
	}
}

// applySampler derives and issues sampler state for unit 0.
func (e *Engine) applySampler(ss SamplerState, maxLevel int) {
	key := deriveSampler(ss, maxLevel)
	e.dev.ApplySampler(0, key.params(e.anisotropy))
}
