package texcache

import "errors"

// Engine errors. None of these abort emulation; callers log and draw
// with degraded visuals instead.
var (
	// ErrUnplannable is returned when a texture source has degenerate
	// geometry or its memory region cannot be read.
	ErrUnplannable = errors.New("texcache: texture source is unplannable")

	// ErrNoClut is returned when an indexed texture is bound before any
	// palette has been loaded.
	ErrNoClut = errors.New("texcache: indexed texture bound with no palette loaded")

	// ErrNoFramebufferFormat is returned when a framebuffer-aliased bind
	// has a source format the depalettizer cannot handle.
	ErrNoFramebufferFormat = errors.New("texcache: unsupported framebuffer texture format")
)
