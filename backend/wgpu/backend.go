package wgpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/texcache/device"
	"github.com/gogpu/texcache/internal/cache"
	"github.com/gogpu/wgpu/core"
)

// Backend errors.
var (
	// ErrNoGPU is returned when no suitable GPU adapter is available.
	ErrNoGPU = errors.New("wgpu: no suitable GPU adapter found")

	// ErrNotInitialized is returned when using the backend before Init.
	ErrNotInitialized = errors.New("wgpu: backend not initialized")

	// ErrInvalidLevel is returned when mapping a mip level out of range.
	ErrInvalidLevel = errors.New("wgpu: mip level out of range")

	// ErrBadDeviceHandle is returned when a host device handle does not
	// carry this backend's concrete GPU resource IDs.
	ErrBadDeviceHandle = errors.New("wgpu: device handle does not carry core IDs")
)

// maskStateLimit bounds the cached per-writeMask pipeline states.
const maskStateLimit = 32

// StubPipelineID is a placeholder for actual wgpu RenderPipelineID.
// This will be replaced with core.RenderPipelineID when wgpu support is complete.
type StubPipelineID uint64

// maskState is the cached color-write pipeline configuration for one
// program and channel mask pair.
type maskState struct {
	pipelineID StubPipelineID

	writeMask uint8
	label     string
}

// maskKey identifies a cached mask state.
type maskKey struct {
	program   string
	writeMask uint8
}

// Backend implements the texture engine's device interface on
// gogpu/wgpu. It owns the WebGPU instance, adapter, device and queue,
// and the per-writeMask pipeline state cache used by full-screen
// passes.
//
// The zero value is not usable; create with NewBackend and call Init.
type Backend struct {
	mu sync.RWMutex

	instance *core.Instance
	adapter  core.AdapterID
	device   core.DeviceID
	queue    core.QueueID

	gpuInfo *GPUInfo

	initialized bool
	adopted     bool

	maskStates *cache.Cache[maskKey, *maskState]
}

// NewBackend creates a new wgpu texture backend.
// The backend must be initialized with Init() before use.
func NewBackend() *Backend {
	return &Backend{
		maskStates: cache.New[maskKey, *maskState](maskStateLimit, nil),
	}
}

// SetLogger installs the backend's structured logger. The texture
// engine calls this during creation to propagate its own logger.
func (b *Backend) SetLogger(l *slog.Logger) {
	setLogger(l)
}

// Init initializes the backend by creating GPU resources: an instance,
// an adapter, a device and the command queue.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return nil
	}

	desc := &gputypes.InstanceDescriptor{
		Backends: gputypes.BackendsPrimary,
		Flags:    0,
	}
	b.instance = core.NewInstance(desc)

	adapterID, err := b.instance.RequestAdapter(&gputypes.RequestAdapterOptions{
		PowerPreference: gputypes.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNoGPU, err)
	}
	b.adapter = adapterID

	logGPUInfo(adapterID)
	b.gpuInfo, _ = getGPUInfo(adapterID)

	deviceID, err := createDevice(adapterID, "texcache-wgpu-device")
	if err != nil {
		return fmt.Errorf("device creation failed: %w", err)
	}
	b.device = deviceID

	queueID, err := getDeviceQueue(deviceID)
	if err != nil {
		_ = releaseDevice(deviceID)
		return fmt.Errorf("queue retrieval failed: %w", err)
	}
	b.queue = queueID

	b.initialized = true
	slogger().Info("wgpu: backend initialized")
	return nil
}

// InitWithDevice adopts the host's GPU device instead of creating one,
// so the texture engine shares a device with the host's presentation
// layer. The handle's tokens must carry this backend's core IDs. The
// host keeps ownership; Close leaves adopted resources alive.
func (b *Backend) InitWithDevice(h device.DeviceHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return nil
	}
	if h == nil {
		return fmt.Errorf("%w: nil handle", ErrBadDeviceHandle)
	}

	deviceID, ok := h.Device().(core.DeviceID)
	if !ok || deviceID.IsZero() {
		return fmt.Errorf("%w: device token %T", ErrBadDeviceHandle, h.Device())
	}
	queueID, ok := h.Queue().(core.QueueID)
	if !ok || queueID.IsZero() {
		return fmt.Errorf("%w: queue token %T", ErrBadDeviceHandle, h.Queue())
	}

	if adapterID, ok := h.Adapter().(core.AdapterID); ok && !adapterID.IsZero() {
		b.adapter = adapterID
		logGPUInfo(adapterID)
		b.gpuInfo, _ = getGPUInfo(adapterID)
	}

	b.device = deviceID
	b.queue = queueID
	b.adopted = true
	b.initialized = true
	slogger().Info("wgpu: backend adopted host device")
	return nil
}

// Close releases all backend resources.
// The backend should not be used after Close is called.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return
	}

	b.maskStates.Clear(true)

	// Release resources in reverse order of creation. The queue is
	// released when the device is dropped. Adopted resources belong to
	// the host and are left alive.
	if !b.adopted {
		if !b.device.IsZero() {
			if err := releaseDevice(b.device); err != nil {
				slogger().Warn("wgpu: error releasing device", "err", err)
			}
		}
		if !b.adapter.IsZero() {
			if err := releaseAdapter(b.adapter); err != nil {
				slogger().Warn("wgpu: error releasing adapter", "err", err)
			}
		}
	}

	b.instance = nil
	b.device = core.DeviceID{}
	b.adapter = core.AdapterID{}
	b.queue = core.QueueID{}
	b.gpuInfo = nil
	b.adopted = false
	b.initialized = false

	slogger().Info("wgpu: backend closed")
}

// Info returns information about the selected GPU, or nil before Init.
func (b *Backend) Info() *GPUInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.gpuInfo
}

// Caps reports the backend's texture capabilities. WebGPU cannot
// sample packed 16-bit formats, so Packed16 is always false.
func (b *Backend) Caps() device.Caps {
	return device.Caps{
		MaxAnisotropy:  16,
		MaxTextureSize: 8192,
		Packed16:       false,
	}
}

// CreateTexture allocates a texture with per-level CPU staging.
func (b *Backend) CreateTexture(desc device.TextureDescriptor) (device.Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 || desc.Depth < 0 {
		return nil, device.ErrInvalidDimensions
	}
	if m := b.Caps().MaxTextureSize; desc.Width > m || desc.Height > m {
		return nil, fmt.Errorf("%w: %dx%d exceeds max %d",
			device.ErrInvalidDimensions, desc.Width, desc.Height, m)
	}
	if desc.Usage == 0 {
		desc.Usage = device.DefaultTextureUsage
	}

	t := newTexture(desc)

	// TODO: allocate the core texture and view via gogpu/wgpu once the
	// texture transfer path lands; the logical texture tracks staging
	// until then.
	_ = desc.Format.ToWGPUFormat()

	return t, nil
}

// MapLevel exposes one mip level's staging memory for CPU writes.
func (b *Backend) MapLevel(dt device.Texture, level int, discard bool) (device.MappedLevel, error) {
	t, ok := dt.(*texture)
	if !ok || t.released.Load() {
		return device.MappedLevel{}, device.ErrMapFailed
	}
	if level < 0 || level >= len(t.levels) {
		return device.MappedLevel{}, fmt.Errorf("%w: level %d of %d", ErrInvalidLevel, level, len(t.levels))
	}
	sl := &t.levels[level]
	if discard {
		clear(sl.pix)
	}
	return device.MappedLevel{
		Pix:        sl.pix,
		Stride:     sl.stride,
		SlicePitch: sl.slicePitch,
	}, nil
}

// UnmapLevel commits staged writes. The GPU-side copy is issued here
// once the transfer path is wired; until then the staging copy is the
// texture's contents.
func (b *Backend) UnmapLevel(dt device.Texture, level int) {
	t, ok := dt.(*texture)
	if !ok || t.released.Load() {
		return
	}
	if level < 0 || level >= len(t.levels) {
		return
	}
	// TODO: queue.WriteTexture from t.levels[level] once available.
}

// BindTexture binds t to a sampling unit. A nil texture unbinds.
func (b *Backend) BindTexture(unit int, t device.Texture) {
	// TODO: record into the current bind group once the raster path
	// is wired.
	_ = unit
	_ = t
}

// ApplySampler issues native filter/wrap/bias settings for a unit.
func (b *Backend) ApplySampler(unit int, p device.SamplerParams) {
	// WebGPU samplers are immutable objects. A real implementation
	// caches them by params; nothing to do at the staging level.
	_ = unit
	_ = p
}

// CreateRenderTarget allocates a render target with a samplable color
// attachment.
func (b *Backend) CreateRenderTarget(width, height int, format device.Format, label string) (device.RenderTarget, error) {
	if width <= 0 || height <= 0 {
		return nil, device.ErrInvalidDimensions
	}
	color := newTexture(device.TextureDescriptor{
		Label:  label,
		Width:  width,
		Height: height,
		Depth:  1,
		Levels: 1,
		Format: format,
		Usage:  device.DefaultTextureUsage | gputypes.TextureUsageRenderAttachment,
	})
	return &renderTarget{color: color, label: label}, nil
}

// BindRenderTarget makes rt the current rendering destination.
func (b *Backend) BindRenderTarget(rt device.RenderTarget, load device.LoadAction) {
	_ = rt
	_ = load
}

// RunFullscreenProgram draws a quad with p into the current render
// target. The color-write pipeline state for the program and writeMask
// pair is resolved through a bounded cache, since WebGPU bakes the
// write mask into the pipeline object.
func (b *Backend) RunFullscreenProgram(p device.Program, verts [4]device.Vertex, viewportW, viewportH int, writeMask uint8) error {
	b.mu.RLock()
	initialized := b.initialized
	b.mu.RUnlock()
	if !initialized {
		return ErrNotInitialized
	}

	key := maskKey{program: p.Label(), writeMask: writeMask}
	state, err := b.maskStates.GetOrCreate(key, func() (*maskState, error) {
		// TODO: build the core render pipeline with the program's
		// SPIR-V modules and this color write mask.
		return &maskState{writeMask: writeMask, label: p.Label()}, nil
	})
	if err != nil {
		return fmt.Errorf("wgpu: pipeline state for %q: %w", p.Label(), err)
	}

	slogger().Debug("wgpu: fullscreen pass",
		"program", state.label,
		"viewport", fmt.Sprintf("%dx%d", viewportW, viewportH),
		"writeMask", state.writeMask)
	_ = verts
	return nil
}

// ReadbackLevel returns the staging copy of one mip level.
func (b *Backend) ReadbackLevel(dt device.Texture, level int) (device.MappedLevel, error) {
	t, ok := dt.(*texture)
	if !ok || t.released.Load() {
		return device.MappedLevel{}, device.ErrReadbackNotSupported
	}
	if level < 0 || level >= len(t.levels) {
		return device.MappedLevel{}, fmt.Errorf("%w: level %d of %d", ErrInvalidLevel, level, len(t.levels))
	}
	sl := &t.levels[level]
	return device.MappedLevel{
		Pix:        sl.pix,
		Stride:     sl.stride,
		SlicePitch: sl.slicePitch,
	}, nil
}
