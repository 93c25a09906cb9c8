// Package cache provides a generic keyed cache for native GPU
// resources with frame-based aging.
//
// Unlike a plain LRU, eviction is driven by the owner's frame counter:
// once per frame the owner calls Decimate with a cutoff, removing
// entries not touched since that frame, then the entry budget is
// enforced in LRU order. A release hook guarantees native handles are
// freed on every eviction path.
//
//	c := cache.New[uint32, Handle](256, func(h Handle) { h.Release() })
//	c.SetFrame(frame)
//	v, err := c.GetOrCreate(key, create)
//	c.Decimate(frame - maxAge)
package cache
