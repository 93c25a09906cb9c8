package texcache

import (
	"errors"
	"fmt"
	"testing"

	"github.com/gogpu/texcache/device"
)

// fakeMemory is a guest memory window starting at base.
type fakeMemory struct {
	base uint32
	data []byte
}

func (m *fakeMemory) Read(addr uint32, n int) ([]byte, error) {
	if !m.Valid(addr, n) {
		return nil, fmt.Errorf("read outside memory: %08x+%d", addr, n)
	}
	off := addr - m.base
	return m.data[off : off+uint32(n)], nil
}

func (m *fakeMemory) Valid(addr uint32, n int) bool {
	if n < 0 || addr < m.base {
		return false
	}
	off := int(addr - m.base)
	return off+n <= len(m.data)
}

// fakeTexture keeps each level's pixels CPU-side so tests can inspect
// what the engine uploaded.
type fakeTexture struct {
	width, height, depth int
	format               device.Format
	levels               []device.MappedLevel
	released             bool
}

func (t *fakeTexture) Width() int            { return t.width }
func (t *fakeTexture) Height() int           { return t.height }
func (t *fakeTexture) Depth() int            { return t.depth }
func (t *fakeTexture) Levels() int           { return len(t.levels) }
func (t *fakeTexture) Format() device.Format { return t.format }
func (t *fakeTexture) Release()              { t.released = true }

type fakeRenderTarget struct {
	color *fakeTexture
}

func (rt *fakeRenderTarget) Width() int                   { return rt.color.width }
func (rt *fakeRenderTarget) Height() int                  { return rt.color.height }
func (rt *fakeRenderTarget) Format() device.Format        { return rt.color.format }
func (rt *fakeRenderTarget) ColorTexture() device.Texture { return rt.color }
func (rt *fakeRenderTarget) Release()                     { rt.color.released = true }

// fakeDevice records calls and serves textures from memory.
type fakeDevice struct {
	caps device.Caps

	created  []*fakeTexture
	bound    map[int]device.Texture
	samplers map[int]device.SamplerParams

	failCreate    bool
	failMapAbove  int // fail MapLevel for levels > this; -1 = never
	drawCount     int
	readbackError error
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		caps:         device.Caps{MaxAnisotropy: 16, MaxTextureSize: 4096, Packed16: true},
		bound:        make(map[int]device.Texture),
		samplers:     make(map[int]device.SamplerParams),
		failMapAbove: -1,
	}
}

func (d *fakeDevice) Caps() device.Caps { return d.caps }

func (d *fakeDevice) CreateTexture(desc device.TextureDescriptor) (device.Texture, error) {
	if d.failCreate {
		return nil, device.ErrTextureCreateFailed
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, device.ErrInvalidDimensions
	}
	t := &fakeTexture{
		width:  desc.Width,
		height: desc.Height,
		depth:  max(desc.Depth, 1),
		format: desc.Format,
	}
	for i := 0; i < max(desc.Levels, 1); i++ {
		w := max(desc.Width>>i, 1)
		h := max(desc.Height>>i, 1)
		stride := desc.Format.RowBytes(w)
		t.levels = append(t.levels, device.MappedLevel{
			Pix:        make([]byte, stride*h*t.depth),
			Stride:     stride,
			SlicePitch: stride * h,
		})
	}
	d.created = append(d.created, t)
	return t, nil
}

func (d *fakeDevice) MapLevel(dt device.Texture, level int, discard bool) (device.MappedLevel, error) {
	t := dt.(*fakeTexture)
	if d.failMapAbove >= 0 && level > d.failMapAbove {
		return device.MappedLevel{}, device.ErrMapFailed
	}
	if level >= len(t.levels) {
		return device.MappedLevel{}, device.ErrMapFailed
	}
	return t.levels[level], nil
}

func (d *fakeDevice) UnmapLevel(device.Texture, int) {}

func (d *fakeDevice) BindTexture(unit int, t device.Texture) {
	if t == nil {
		delete(d.bound, unit)
		return
	}
	d.bound[unit] = t
}

func (d *fakeDevice) ApplySampler(unit int, p device.SamplerParams) {
	d.samplers[unit] = p
}

func (d *fakeDevice) CreateRenderTarget(w, h int, f device.Format, label string) (device.RenderTarget, error) {
	t, err := d.CreateTexture(device.TextureDescriptor{Width: w, Height: h, Depth: 1, Levels: 1, Format: f})
	if err != nil {
		return nil, err
	}
	return &fakeRenderTarget{color: t.(*fakeTexture)}, nil
}

func (d *fakeDevice) BindRenderTarget(device.RenderTarget, device.LoadAction) {}

func (d *fakeDevice) RunFullscreenProgram(device.Program, [4]device.Vertex, int, int, uint8) error {
	d.drawCount++
	return nil
}

func (d *fakeDevice) ReadbackLevel(dt device.Texture, level int) (device.MappedLevel, error) {
	if d.readbackError != nil {
		return device.MappedLevel{}, d.readbackError
	}
	t := dt.(*fakeTexture)
	if level >= len(t.levels) {
		return device.MappedLevel{}, device.ErrReadbackNotSupported
	}
	return t.levels[level], nil
}

// fakeRTS owns no framebuffers unless a test registers one.
type fakeRTS struct {
	dev      *fakeDevice
	fbs      []*VirtualFramebuffer
	scratch  device.RenderTarget
	rebinds  int
	asTex    int
	asTarget int
}

func (r *fakeRTS) FramebufferAt(addr uint32, n int) *VirtualFramebuffer {
	for _, fb := range r.fbs {
		if fb.Overlaps(addr, n) {
			return fb
		}
	}
	return nil
}

func (r *fakeRTS) ScratchTarget(_ ScratchPurpose, w, h int) (device.RenderTarget, error) {
	if r.scratch == nil {
		rt, err := r.dev.CreateRenderTarget(w, h, device.FormatRGBA8, "scratch")
		if err != nil {
			return nil, err
		}
		r.scratch = rt
	}
	return r.scratch, nil
}

func (r *fakeRTS) BindAsRenderTarget(device.RenderTarget, device.LoadAction) { r.asTarget++ }

func (r *fakeRTS) BindAsTexture(device.RenderTarget, int, device.ChannelMask, int) { r.asTex++ }

func (r *fakeRTS) Rebind() { r.rebinds++ }

type fakeProgram struct{ label string }

func (p *fakeProgram) Label() string { return p.label }

type fakeShaders struct {
	programs int
	clutTexs int
	dev      *fakeDevice
}

func (s *fakeShaders) DepalProgram(PaletteFormat, device.Format) (device.Program, error) {
	s.programs++
	return &fakeProgram{label: "depal"}, nil
}

func (s *fakeShaders) ClutTexture(_ PaletteFormat, _ uint32, _ []byte) (device.Texture, error) {
	s.clutTexs++
	t, err := s.dev.CreateTexture(device.TextureDescriptor{Width: 256, Height: 1, Depth: 1, Levels: 1, Format: device.FormatRGBA8})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// testEngine wires an engine over fakes with 64 KiB of guest memory at
// 0x04000000.
func testEngine(t *testing.T, opts ...Option) (*Engine, *fakeDevice, *fakeMemory, *fakeRTS) {
	t.Helper()
	dev := newFakeDevice()
	mem := &fakeMemory{base: 0x04000000, data: make([]byte, 64*1024)}
	rts := &fakeRTS{dev: dev}
	sh := &fakeShaders{dev: dev}
	return New(dev, mem, rts, sh, opts...), dev, mem, rts
}

func TestApplyCachesByKey(t *testing.T) {
	eng, dev, mem, _ := testEngine(t)
	rc := &RenderContext{}

	for i := range mem.data[:512] {
		mem.data[i] = byte(i)
	}

	st := &BindState{
		Addr:   0x04000000,
		Stride: 64,
		Width:  16,
		Height: 16,
		Format: TexFormat8888,
	}

	if err := eng.Apply(rc, st); err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	if got, want := len(dev.created), 1; got != want {
		t.Fatalf("created textures = %d, want %d", got, want)
	}
	if eng.Len() != 1 {
		t.Fatalf("cache len = %d, want 1", eng.Len())
	}

	if err := eng.Apply(rc, st); err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if got, want := len(dev.created), 1; got != want {
		t.Errorf("rebind created %d textures, want %d (cache hit expected)", got, want)
	}
}

func TestApplySkipsRedundantBind(t *testing.T) {
	eng, dev, _, _ := testEngine(t)
	rc := &RenderContext{}

	st := &BindState{Addr: 0x04000000, Stride: 64, Width: 16, Height: 16, Format: TexFormat8888}

	if err := eng.Apply(rc, st); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	bound := dev.bound[0]

	// Unbinding the unit behind the engine's back: the memoized state
	// still says bound, so the device call is skipped.
	dev.bound[0] = nil
	if err := eng.Apply(rc, st); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if dev.bound[0] != nil {
		t.Errorf("redundant rebind reached the device")
	}

	rc.InvalidateBoundTexture()
	if err := eng.Apply(rc, st); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if dev.bound[0] != bound {
		t.Errorf("bind after invalidation did not reach the device")
	}
}

func TestPaletteChangeMissesCache(t *testing.T) {
	eng, dev, mem, _ := testEngine(t)
	rc := &RenderContext{}

	copy(mem.data[0x1000:], []byte{0x00, 0xF0, 0xFF, 0xFF}) // 2 palette entries
	if err := eng.LoadClut(0x04001000, 32); err != nil {
		t.Fatalf("LoadClut: %v", err)
	}
	eng.UpdateClut(Palette4444, 0, false)

	st := &BindState{Addr: 0x04000000, Stride: 8, Width: 16, Height: 16, Format: TexFormatClut4}
	if err := eng.Apply(rc, st); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	// Changing the palette changes the key, so the same bind builds a
	// second texture.
	mem.data[0x1000] = 0xAA
	if err := eng.LoadClut(0x04001000, 32); err != nil {
		t.Fatalf("LoadClut: %v", err)
	}
	eng.UpdateClut(Palette4444, 0, false)
	if err := eng.Apply(rc, st); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if got, want := len(dev.created), 2; got != want {
		t.Errorf("created textures = %d, want %d", got, want)
	}
	if got, want := eng.Len(), 2; got != want {
		t.Errorf("cache len = %d, want %d", got, want)
	}
}

func TestApplyUnplannable(t *testing.T) {
	eng, _, _, _ := testEngine(t)
	rc := &RenderContext{}

	st := &BindState{Addr: 0x09000000, Stride: 64, Width: 16, Height: 16, Format: TexFormat8888}
	err := eng.Apply(rc, st)
	if !errors.Is(err, ErrUnplannable) {
		t.Fatalf("Apply outside memory = %v, want ErrUnplannable", err)
	}
	if eng.Len() != 0 {
		t.Errorf("failed build left %d cache entries", eng.Len())
	}
}

func TestApplyCreateFailureDegrades(t *testing.T) {
	eng, dev, _, _ := testEngine(t)
	rc := &RenderContext{}
	dev.failCreate = true

	st := &BindState{Addr: 0x04000000, Stride: 64, Width: 16, Height: 16, Format: TexFormat8888}
	err := eng.Apply(rc, st)
	if !errors.Is(err, device.ErrTextureCreateFailed) {
		t.Fatalf("Apply = %v, want ErrTextureCreateFailed", err)
	}
	if eng.Len() != 0 {
		t.Errorf("failed build left %d cache entries", eng.Len())
	}

	// Recovery: creation works again on the next bind.
	dev.failCreate = false
	if err := eng.Apply(rc, st); err != nil {
		t.Fatalf("Apply after recovery: %v", err)
	}
}

func TestMipMapFailureKeepsTopLevel(t *testing.T) {
	eng, dev, _, _ := testEngine(t)
	rc := &RenderContext{}
	dev.failMapAbove = 0

	st := &BindState{Addr: 0x04000000, Stride: 64, Width: 16, Height: 16, Format: TexFormat8888, MaxLevel: 3}
	if err := eng.Apply(rc, st); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if dev.bound[0] == nil {
		t.Fatalf("no texture bound after partial upload")
	}
	if got := dev.samplers[0].MaxLevel; got != 0 {
		t.Errorf("sampler MaxLevel = %d, want 0 after abandoned mips", got)
	}
}

func TestStartFrameDecimates(t *testing.T) {
	eng, _, _, _ := testEngine(t, WithDecimateAge(2))
	rc := &RenderContext{}

	st := &BindState{Addr: 0x04000000, Stride: 64, Width: 16, Height: 16, Format: TexFormat8888}
	if err := eng.Apply(rc, st); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	for i := 0; i < 4; i++ {
		eng.StartFrame(rc)
	}
	if eng.Len() != 0 {
		t.Errorf("stale entry survived decimation, cache len = %d", eng.Len())
	}
}

func TestStartFrameKeepsFreshEntries(t *testing.T) {
	eng, dev, _, _ := testEngine(t, WithDecimateAge(4))
	rc := &RenderContext{}

	st := &BindState{Addr: 0x04000000, Stride: 64, Width: 16, Height: 16, Format: TexFormat8888}
	for i := 0; i < 8; i++ {
		eng.StartFrame(rc)
		if err := eng.Apply(rc, st); err != nil {
			t.Fatalf("Apply frame %d: %v", i, err)
		}
	}
	if got, want := len(dev.created), 1; got != want {
		t.Errorf("created %d textures across frames, want %d", got, want)
	}
}

func TestClearNextFrame(t *testing.T) {
	eng, _, _, _ := testEngine(t)
	rc := &RenderContext{}

	st := &BindState{Addr: 0x04000000, Stride: 64, Width: 16, Height: 16, Format: TexFormat8888}
	if err := eng.Apply(rc, st); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	eng.ClearNextFrame()
	if eng.Len() != 1 {
		t.Fatalf("clear happened before frame start")
	}
	eng.StartFrame(rc)
	if eng.Len() != 0 {
		t.Errorf("deferred clear did not run, cache len = %d", eng.Len())
	}
}

func TestApplyFramebufferDirect(t *testing.T) {
	eng, dev, _, rts := testEngine(t)
	rc := &RenderContext{}

	fbTex, _ := dev.CreateTexture(device.TextureDescriptor{Width: 512, Height: 272, Depth: 1, Levels: 1, Format: device.FormatRGBA8})
	rts.fbs = append(rts.fbs, &VirtualFramebuffer{
		Addr:         0x04000000,
		ByteSize:     512 * 272 * 2,
		BufferWidth:  512,
		BufferHeight: 272,
		RenderWidth:  512,
		RenderHeight: 272,
		Format:       device.FormatRGB565,
		Target:       &fakeRenderTarget{color: fbTex.(*fakeTexture)},
	})

	st := &BindState{Addr: 0x04000000, Stride: 1024, Width: 512, Height: 272, Format: TexFormat5650}
	if err := eng.Apply(rc, st); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if eng.Len() != 0 {
		t.Errorf("framebuffer bind created %d cache entries, want 0", eng.Len())
	}
	if rts.asTex == 0 {
		t.Errorf("framebuffer was not bound as texture")
	}
	if !rc.TextureFullAlpha {
		t.Errorf("565 framebuffer should report full alpha")
	}
	if dev.drawCount != 0 {
		t.Errorf("direct bind ran %d draw passes, want 0", dev.drawCount)
	}
}

func TestApplyFramebufferDepal(t *testing.T) {
	eng, dev, mem, rts := testEngine(t)
	rc := &RenderContext{}

	// Palette with a transparent entry, so full-alpha must be off.
	copy(mem.data[0x1000:], []byte{0xFF, 0x0F, 0xFF, 0xFF})
	if err := eng.LoadClut(0x04001000, 32); err != nil {
		t.Fatalf("LoadClut: %v", err)
	}
	eng.UpdateClut(Palette4444, 0, false)

	fbTex, _ := dev.CreateTexture(device.TextureDescriptor{Width: 512, Height: 272, Depth: 1, Levels: 1, Format: device.FormatRGBA8})
	rts.fbs = append(rts.fbs, &VirtualFramebuffer{
		Addr:         0x04000000,
		ByteSize:     512 * 272 * 2,
		BufferWidth:  512,
		BufferHeight: 272,
		RenderWidth:  512,
		RenderHeight: 272,
		Format:       device.FormatRGB565,
		Target:       &fakeRenderTarget{color: fbTex.(*fakeTexture)},
	})

	st := &BindState{Addr: 0x04000000, Stride: 256, Width: 512, Height: 272, Format: TexFormatClut8}
	if err := eng.Apply(rc, st); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if dev.drawCount != 1 {
		t.Fatalf("depalettize ran %d draw passes, want 1", dev.drawCount)
	}
	if rts.rebinds == 0 {
		t.Errorf("render target was not restored after the side pass")
	}
	if rc.TextureFullAlpha {
		t.Errorf("palette with transparency reported full alpha")
	}
	if !rc.DirtyTextureParams {
		t.Errorf("DirtyTextureParams not set after depalettize")
	}
}

func TestApplyFramebufferDepalDisabled(t *testing.T) {
	eng, dev, mem, rts := testEngine(t, WithSlowFramebufferEffects(false))
	rc := &RenderContext{}

	copy(mem.data[0x1000:], []byte{0xFF, 0xFF})
	if err := eng.LoadClut(0x04001000, 32); err != nil {
		t.Fatalf("LoadClut: %v", err)
	}
	eng.UpdateClut(Palette4444, 0, false)

	fbTex, _ := dev.CreateTexture(device.TextureDescriptor{Width: 512, Height: 272, Depth: 1, Levels: 1, Format: device.FormatRGBA8})
	rts.fbs = append(rts.fbs, &VirtualFramebuffer{
		Addr: 0x04000000, ByteSize: 512 * 272 * 2,
		BufferWidth: 512, BufferHeight: 272,
		RenderWidth: 512, RenderHeight: 272,
		Format: device.FormatRGB565,
		Target: &fakeRenderTarget{color: fbTex.(*fakeTexture)},
	})

	st := &BindState{Addr: 0x04000000, Stride: 256, Width: 512, Height: 272, Format: TexFormatClut8}
	if err := eng.Apply(rc, st); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if dev.drawCount != 0 {
		t.Errorf("depalettize ran with slow effects disabled")
	}
}

func TestUnbind(t *testing.T) {
	eng, dev, _, _ := testEngine(t)
	rc := &RenderContext{}

	st := &BindState{Addr: 0x04000000, Stride: 64, Width: 16, Height: 16, Format: TexFormat8888}
	if err := eng.Apply(rc, st); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	eng.Unbind(rc)
	if dev.bound[0] != nil {
		t.Errorf("texture still bound after Unbind")
	}
}

func TestCurrentTexturePixels(t *testing.T) {
	eng, dev, mem, _ := testEngine(t)
	rc := &RenderContext{}

	mem.data[0] = 0xAB
	st := &BindState{Addr: 0x04000000, Stride: 64, Width: 16, Height: 16, Format: TexFormat8888}
	if err := eng.Apply(rc, st); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	pix, stride, ok := eng.CurrentTexturePixels(rc, 0)
	if !ok {
		t.Fatalf("readback failed")
	}
	if stride <= 0 || len(pix) == 0 {
		t.Fatalf("readback returned empty level")
	}
	if pix[0] != 0xAB {
		t.Errorf("readback pix[0] = %#x, want 0xAB", pix[0])
	}

	dev.readbackError = device.ErrReadbackNotSupported
	if _, _, ok := eng.CurrentTexturePixels(rc, 0); ok {
		t.Errorf("readback succeeded despite device error")
	}

	rc.InvalidateBoundTexture()
	dev.readbackError = nil
	if _, _, ok := eng.CurrentTexturePixels(rc, 0); ok {
		t.Errorf("readback succeeded with nothing bound")
	}
}

// levelReplacer serves a fixed chain of ready levels and records which
// levels were fetched.
type levelReplacer struct {
	levels  []ReplacedLevel
	lookups map[int]int
}

func (r *levelReplacer) Lookup(_ uint64, level int) (ReplacedLevel, ReplacementStatus) {
	if r.lookups == nil {
		r.lookups = make(map[int]int)
	}
	r.lookups[level]++
	if level >= len(r.levels) {
		return ReplacedLevel{}, ReplacementNone
	}
	return r.levels[level], ReplacementReady
}

func replLevel(w, h int, fill byte) ReplacedLevel {
	pix := make([]byte, w*h*4)
	for i := range pix {
		pix[i] = fill
	}
	return ReplacedLevel{Width: w, Height: h, Format: device.FormatRGBA8, Pixels: pix, Stride: w * 4}
}

func TestApplyReplacementMipChain(t *testing.T) {
	repl := &levelReplacer{levels: []ReplacedLevel{
		replLevel(32, 32, 0x11),
		replLevel(16, 16, 0x22),
	}}
	eng, dev, _, _ := testEngine(t, WithReplacer(repl))
	rc := &RenderContext{}

	st := &BindState{
		Addr: 0x04000000, Stride: 32, Width: 16, Height: 16,
		Format: TexFormat4444, MaxLevel: 1,
		Sampler: SamplerState{MipEnable: true},
	}
	if err := eng.Apply(rc, st); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	tex := dev.created[0]
	if got, want := len(tex.levels), 2; got != want {
		t.Fatalf("native levels = %d, want %d", got, want)
	}
	if repl.lookups[1] == 0 {
		t.Errorf("replacement level 1 never fetched")
	}
	if tex.levels[0].Pix[0] != 0x11 || tex.levels[1].Pix[0] != 0x22 {
		t.Errorf("replacement pixels not uploaded: level 0 %#x, level 1 %#x",
			tex.levels[0].Pix[0], tex.levels[1].Pix[0])
	}
	if got := dev.samplers[0].MaxLevel; got != 1 {
		t.Errorf("sampler MaxLevel = %d, want 1", got)
	}
}

func TestApplyReplacementPartialChainClamps(t *testing.T) {
	repl := &levelReplacer{levels: []ReplacedLevel{
		replLevel(32, 32, 0x11),
	}}
	eng, dev, _, _ := testEngine(t, WithReplacer(repl))
	rc := &RenderContext{}

	// The guest asks for four levels but the pack carries one; the
	// native texture only allocates what the pack can fill.
	st := &BindState{Addr: 0x04000000, Stride: 32, Width: 16, Height: 16, Format: TexFormat4444, MaxLevel: 3}
	if err := eng.Apply(rc, st); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got, want := len(dev.created[0].levels), 1; got != want {
		t.Errorf("native levels = %d, want %d", got, want)
	}
}

func TestApplyVolumeUploadsSlices(t *testing.T) {
	eng, dev, mem, _ := testEngine(t)
	rc := &RenderContext{}

	// Two 4x4 4444 slices: the first fully opaque, the second with one
	// transparent texel.
	for i := 0; i < 64; i += 2 {
		mem.data[i] = 0xFF
		mem.data[i+1] = 0xFF
	}
	mem.data[32+1] = 0x0F // slice 1, texel 0: alpha nibble zero

	st := &BindState{Addr: 0x04000000, Stride: 8, Width: 4, Height: 4, Depth: 2, Format: TexFormat4444, MaxLevel: 3}
	if err := eng.Apply(rc, st); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	tex := dev.created[0]
	if tex.depth != 2 || len(tex.levels) != 1 {
		t.Fatalf("volume texture = depth %d, levels %d; want depth 2 with a single level", tex.depth, len(tex.levels))
	}
	lvl := tex.levels[0]
	if lvl.Pix[lvl.SlicePitch] != 0xFF || lvl.Pix[lvl.SlicePitch+1] != 0x0F {
		t.Errorf("slice 1 texel 0 = % x, want ff 0f", lvl.Pix[lvl.SlicePitch:lvl.SlicePitch+2])
	}
	if rc.TextureFullAlpha {
		t.Errorf("transparent texel in a later slice reported full alpha")
	}
}

func TestApplyVolumeFullAlpha(t *testing.T) {
	eng, _, mem, _ := testEngine(t)
	rc := &RenderContext{}

	for i := 0; i < 64; i += 2 {
		mem.data[i] = 0xFF
		mem.data[i+1] = 0xFF
	}

	st := &BindState{Addr: 0x04000000, Stride: 8, Width: 4, Height: 4, Depth: 2, Format: TexFormat4444}
	if err := eng.Apply(rc, st); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !rc.TextureFullAlpha {
		t.Errorf("fully opaque volume not reported full alpha")
	}
}

func TestDepalQuadBoundsOffset(t *testing.T) {
	fb := &VirtualFramebuffer{BufferWidth: 512, BufferHeight: 256}
	rc := &RenderContext{
		VertBounds: VertexBounds{MinU: 0, MinV: 0, MaxU: 256, MaxV: 128},
		TexOffsetU: 128,
		TexOffsetV: 64,
	}

	verts := depalQuad(rc, fb)

	// The offset relocates the whole region: positions stay coupled to
	// the source coordinates so resolved pixels land where the draw
	// samples them.
	if got, want := verts[0].U, float32(0.25); got != want {
		t.Errorf("U0 = %v, want %v", got, want)
	}
	if got, want := verts[0].X, float32(-0.5); got != want {
		t.Errorf("X0 = %v, want %v", got, want)
	}
	for i, v := range verts {
		if v.X != v.U*2-1 || v.Y != v.V*2-1 {
			t.Errorf("vertex %d position decoupled from source coordinates: %+v", i, v)
		}
	}
}

func TestStatsCounters(t *testing.T) {
	eng, _, _, _ := testEngine(t, WithUpscaleFactor(2))
	rc := &RenderContext{}

	st := &BindState{Addr: 0x04000000, Stride: 64, Width: 16, Height: 16, Format: TexFormat8888}
	if err := eng.Apply(rc, st); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	s := eng.Stats()
	if s.Entries != 1 {
		t.Errorf("Stats.Entries = %d, want 1", s.Entries)
	}
	if s.TexelsScaled != 16*16 {
		t.Errorf("Stats.TexelsScaled = %d, want %d", s.TexelsScaled, 16*16)
	}

	eng.StartFrame(rc)
	if got := eng.Stats().TexelsScaled; got != 0 {
		t.Errorf("TexelsScaled = %d after frame start, want 0", got)
	}
	if got := eng.Stats().Frame; got != 1 {
		t.Errorf("Frame = %d, want 1", got)
	}
}
