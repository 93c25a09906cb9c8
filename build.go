package texcache

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/texcache/device"
)

// buildTexture reconstructs the native texture for an entry: it plans
// the build, allocates the native object and decodes every loadable
// level into it. On success ent owns the new handle and carries its
// alpha classification.
//
// Errors degrade rather than abort: an allocation failure leaves the
// entry without a texture, and a level upload failure past level 0
// keeps the texture with mip sampling disabled.
func (e *Engine) buildTexture(ent *Entry, st *BindState) error {
	plan, err := e.planBuild(st, ent.Key)
	if err != nil {
		return err
	}

	tex, err := e.dev.CreateTexture(device.TextureDescriptor{
		Label:  fmt.Sprintf("tex %08x %s", st.Addr, st.Format),
		Width:  plan.W,
		Height: plan.H,
		Depth:  plan.Depth,
		Levels: plan.LevelsToCreate,
		Format: plan.Format,
	})
	if err != nil {
		Logger().Warn("texcache: texture allocation failed",
			slog.Int("w", plan.W), slog.Int("h", plan.H),
			slog.String("format", plan.Format.String()),
			slog.Any("err", err))
		return fmt.Errorf("%w: %dx%d %s", device.ErrTextureCreateFailed, plan.W, plan.H, plan.Format)
	}

	ent.tex = tex
	ent.maxLevel = plan.LevelsToCreate - 1
	ent.status = 0
	if plan.Depth > 1 {
		ent.status |= statusVolume
	}
	if plan.ReplPending {
		ent.status |= statusNeedsRehash
	}
	ent.alpha = AlphaUnknown

	if plan.Depth > 1 {
		return e.uploadVolume(ent, st, plan)
	}

	for level := 0; level < plan.LevelsToCreate; level++ {
		ml, err := e.dev.MapLevel(tex, level, true)
		if err != nil {
			if level == 0 {
				ent.release()
				return fmt.Errorf("%w: level 0", device.ErrMapFailed)
			}
			// A partially mipped texture still renders; restrict
			// sampling to the levels that made it.
			Logger().Warn("texcache: mip upload abandoned",
				slog.Int("level", level), slog.Any("err", err))
			ent.status |= statusNoMips
			ent.maxLevel = level - 1
			break
		}

		err = e.loadLevel(ml.Pix, ml.Stride, st, plan, level, st.levelAddr(level), plan.Format)
		if err == nil && level == 0 {
			lw, lh := plan.W, plan.H
			ent.alpha = checkAlpha(ml.Pix, plan.Format, lw, lh, ml.Stride)
		}
		e.dev.UnmapLevel(tex, level)
		if err != nil {
			if level == 0 {
				ent.release()
				return err
			}
			ent.status |= statusNoMips
			ent.maxLevel = level - 1
			break
		}
	}
	return nil
}

// uploadVolume decodes the slices of a volumetric texture. All slices
// live in one mip level, packed sequentially in guest memory.
func (e *Engine) uploadVolume(ent *Entry, st *BindState, plan BuildPlan) error {
	ml, err := e.dev.MapLevel(ent.tex, 0, true)
	if err != nil {
		ent.release()
		return fmt.Errorf("%w: volume level 0", device.ErrMapFailed)
	}
	defer e.dev.UnmapLevel(ent.tex, 0)

	w, h := st.levelDims(0)
	sliceBytes := st.Format.LevelBytes(w, h)
	for z := 0; z < plan.Depth; z++ {
		dst := ml.Pix[z*ml.SlicePitch:]
		addr := st.Addr + uint32(z*sliceBytes)
		if err := e.loadLevel(dst, ml.Stride, st, plan, 0, addr, plan.Format); err != nil {
			if z == 0 {
				ent.release()
				return err
			}
			Logger().Warn("texcache: volume slice upload abandoned",
				slog.Int("slice", z), slog.Any("err", err))
			break
		}
		if z == 0 {
			ent.alpha = checkAlpha(ml.Pix, plan.Format, plan.W, plan.H, ml.Stride)
		} else if ent.alpha == AlphaFull {
			if checkAlpha(dst, plan.Format, plan.W, plan.H, ml.Stride) == AlphaYes {
				ent.alpha = AlphaYes
			}
		}
	}
	return nil
}
