package texture

import (
	"errors"
	"fmt"

	"github.com/richinsley/goangle/device"
	"github.com/richinsley/goangle/diag"
)

func (t *Texture) nativeDesc() device.TextureDesc {
	base := &t.images[0][0]
	levels := 1
	if mipmapped(t.sampler.MinFilter) {
		levels = t.validLevels()
	}
	return device.TextureDesc{
		Kind:         t.kind.native(),
		Format:       selectFormat(base.Format, base.Type),
		Width:        base.Width,
		Height:       base.Height,
		Levels:       levels,
		RenderTarget: t.renderTarget,
	}
}

func (t *Texture) markDirty() {
	for f := range t.kind.Faces() {
		for l := range MaxTextureLevels {
			if t.images[f][l].Present() {
				t.images[f][l].dirty = true
			}
		}
	}
}

func (t *Texture) dropNative() {
	if t.native != nil {
		t.native.Release()
		t.native = nil
	}
	t.markDirty()
}

func (t *Texture) needsUpdate(levels int) bool {
	for f := range t.kind.Faces() {
		for l := range levels {
			if t.images[f][l].dirty {
				return true
			}
		}
	}
	return false
}

// update makes the native texture reflect the stored images, rebuilding it
// when its description no longer matches. Any failure leaves the texture
// without a native object and every level dirty.
func (t *Texture) update() error {
	if !t.IsComplete() {
		return ErrIncomplete
	}
	desc := t.nativeDesc()
	if t.native != nil && t.native.Desc() != desc {
		diag.Logger().Info("texture: rebuilding native texture", "kind", t.kind, "width", desc.Width, "height", desc.Height, "levels", desc.Levels)
		t.dropNative()
	}
	if t.native != nil && !t.needsUpdate(desc.Levels) {
		return nil
	}

	if t.native == nil {
		tex, err := t.dev.NewTexture(desc)
		if err != nil {
			diag.Logger().Warn("texture: allocation failed", "err", err)
			if errors.Is(err, device.ErrDeviceLost) {
				return err
			}
			return fmt.Errorf("%w: %w", ErrAllocationFailed, err)
		}
		t.native = tex
		t.markDirty()
	}

	for f := range t.kind.Faces() {
		for l := range desc.Levels {
			img := &t.images[f][l]
			if !img.dirty {
				continue
			}
			if err := t.native.Upload(f, l, convert(img)); err != nil {
				diag.Logger().Warn("texture: upload failed", "face", f, "level", l, "err", err)
				t.dropNative()
				if errors.Is(err, device.ErrDeviceLost) {
					return err
				}
				return fmt.Errorf("%w: face %d level %d: %w", ErrAllocationFailed, f, l, err)
			}
		}
	}
	for f := range t.kind.Faces() {
		for l := range desc.Levels {
			t.images[f][l].dirty = false
		}
	}
	return nil
}

// GetTexture returns the native texture, building or refreshing it first.
// The result is borrowed from t.
func (t *Texture) GetTexture() (device.Texture, error) {
	if err := t.update(); err != nil {
		return nil, err
	}
	return t.native, nil
}

// GetRenderTarget returns a render target view of level 0 of face. The
// native texture is rebuilt with render target usage if it lacks it. The
// caller owns the returned reference.
func (t *Texture) GetRenderTarget(face Face) (device.Object, error) {
	if int(face) < 0 || int(face) >= t.kind.Faces() {
		return nil, fmt.Errorf("%w: %d for %s texture", ErrInvalidFace, face, t.kind)
	}
	t.renderTarget = true
	if err := t.update(); err != nil {
		return nil, err
	}
	return t.native.RenderTarget(int(face), 0)
}

// Native returns the current native texture without building it, or nil.
func (t *Texture) Native() device.Texture { return t.native }

// DeviceLost forgets the native texture without touching the device. The
// next use rebuilds it from the stored images.
func (t *Texture) DeviceLost() {
	t.native = nil
	t.markDirty()
}

// SetDevice moves t to dev. The native texture of the old device is released
// unless that device is lost.
func (t *Texture) SetDevice(dev device.Device) {
	if t.dev != nil && !t.dev.Lost() {
		t.dropNative()
	} else {
		t.DeviceLost()
	}
	t.dev = dev
}

// Release drops the native texture.
func (t *Texture) Release() {
	if t.dev != nil && t.dev.Lost() {
		t.DeviceLost()
		return
	}
	t.dropNative()
}
