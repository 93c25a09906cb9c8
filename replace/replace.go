// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package replace loads texture replacement packs from disk.
//
// A pack is a directory of image files named by the 16-digit hex
// replacement key the engine derives for each texture, with an
// optional _N suffix for mip levels:
//
//	textures/
//	    00a1b2c3d4e5f607.png
//	    00a1b2c3d4e5f607_1.png
//	    3f00aa11bb22cc33.bmp
//
// PNG and BMP files are supported. The directory is indexed once at
// pack creation; lookups for unknown keys are immediate misses and
// known assets decode on a background goroutine, so the engine's bind
// path never blocks on disk I/O.
package replace

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/gogpu/texcache"
	"github.com/gogpu/texcache/device"
)

// DefaultMaxDim is the default bound on replacement dimensions.
// Larger images are downscaled on load.
const DefaultMaxDim = 4096

// maxLoaders bounds concurrent background decodes.
const maxLoaders = 4

// asset is one replacement texture with its decoded mip levels.
type asset struct {
	paths  []string // per level, index = mip level
	levels []texcache.ReplacedLevel
	status texcache.ReplacementStatus
}

// Pack is an on-disk replacement pack implementing the engine's
// replacement service. Safe for concurrent use.
type Pack struct {
	dir    string
	maxDim int

	mu     sync.Mutex
	assets map[uint64]*asset

	sem chan struct{}
}

// Option configures a Pack.
type Option func(*Pack)

// WithMaxDimension bounds replacement image dimensions; larger images
// are downscaled preserving aspect ratio.
func WithMaxDimension(n int) Option {
	return func(p *Pack) {
		if n > 0 {
			p.maxDim = n
		}
	}
}

// NewPack indexes the replacement directory. A missing directory is an
// error; an empty one is a valid pack that never replaces anything.
func NewPack(dir string, opts ...Option) (*Pack, error) {
	p := &Pack{
		dir:    dir,
		maxDim: DefaultMaxDim,
		assets: make(map[uint64]*asset),
		sem:    make(chan struct{}, maxLoaders),
	}
	for _, opt := range opts {
		opt(p)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("replace: reading pack directory: %w", err)
	}
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		key, level, ok := parseName(ent.Name())
		if !ok {
			continue
		}
		a := p.assets[key]
		if a == nil {
			a = &asset{}
			p.assets[key] = a
		}
		for len(a.paths) <= level {
			a.paths = append(a.paths, "")
		}
		a.paths[level] = filepath.Join(dir, ent.Name())
	}

	texcache.Logger().Info("replace: pack indexed",
		"dir", dir, "assets", len(p.assets))
	return p, nil
}

// parseName extracts the replacement key and mip level from a pack
// file name such as "00a1b2c3d4e5f607_1.png".
func parseName(name string) (key uint64, level int, ok bool) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext != ".png" && ext != ".bmp" {
		return 0, 0, false
	}
	base := strings.TrimSuffix(name, filepath.Ext(name))

	if i := strings.IndexByte(base, '_'); i >= 0 {
		n, err := strconv.Atoi(base[i+1:])
		if err != nil || n < 0 || n > 12 {
			return 0, 0, false
		}
		level = n
		base = base[:i]
	}
	if len(base) != 16 {
		return 0, 0, false
	}
	key, err := strconv.ParseUint(base, 16, 64)
	if err != nil {
		return 0, 0, false
	}
	return key, level, true
}

// Lookup reports the replacement for a key and level. Unknown keys
// miss immediately; known assets return pending until a background
// decode completes.
func (p *Pack) Lookup(key uint64, level int) (texcache.ReplacedLevel, texcache.ReplacementStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()

	a, ok := p.assets[key]
	if !ok {
		return texcache.ReplacedLevel{}, texcache.ReplacementNone
	}

	switch a.status {
	case texcache.ReplacementReady:
		if level >= len(a.levels) {
			return texcache.ReplacedLevel{}, texcache.ReplacementNone
		}
		return a.levels[level], texcache.ReplacementReady
	case texcache.ReplacementPending:
		return texcache.ReplacedLevel{}, texcache.ReplacementPending
	}

	a.status = texcache.ReplacementPending
	go p.load(key, a)
	return texcache.ReplacedLevel{}, texcache.ReplacementPending
}

// load decodes every level of an asset off the bind path.
func (p *Pack) load(key uint64, a *asset) {
	p.sem <- struct{}{}
	defer func() { <-p.sem }()

	levels := make([]texcache.ReplacedLevel, 0, len(a.paths))
	for i, path := range a.paths {
		if path == "" {
			break
		}
		lv, err := p.loadLevel(path)
		if err != nil {
			texcache.Logger().Warn("replace: level decode failed",
				"key", fmt.Sprintf("%016x", key), "level", i, "err", err)
			break
		}
		levels = append(levels, lv)
	}

	p.mu.Lock()
	if len(levels) == 0 {
		// A failed decode demotes the asset to a permanent miss rather
		// than retrying every bind.
		delete(p.assets, key)
	} else {
		a.levels = levels
		a.status = texcache.ReplacementReady
	}
	p.mu.Unlock()
}

// loadLevel decodes one image file into RGBA8 pixels, downscaling
// anything beyond the dimension bound.
func (p *Pack) loadLevel(path string) (texcache.ReplacedLevel, error) {
	f, err := os.Open(path)
	if err != nil {
		return texcache.ReplacedLevel{}, err
	}
	defer f.Close()

	var img image.Image
	if strings.EqualFold(filepath.Ext(path), ".bmp") {
		img, err = bmp.Decode(f)
	} else {
		img, err = png.Decode(f)
	}
	if err != nil {
		return texcache.ReplacedLevel{}, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}

	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return texcache.ReplacedLevel{}, fmt.Errorf("empty image %s", filepath.Base(path))
	}

	dw, dh := w, h
	for dw > p.maxDim || dh > p.maxDim {
		dw = max(dw/2, 1)
		dh = max(dh/2, 1)
	}

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	if dw == w && dh == h {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	}

	return texcache.ReplacedLevel{
		Width:  dw,
		Height: dh,
		Format: device.FormatRGBA8,
		Pixels: dst.Pix,
		Stride: dst.Stride,
	}, nil
}
