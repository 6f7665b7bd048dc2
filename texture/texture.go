// Package texture models 2D and cube map textures: per-face, per-level image
// storage, completeness, and the native texture built lazily from it.
package texture

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/richinsley/goangle/device"
)

// MaxTextureLevels is the number of mip levels a texture can hold.
const MaxTextureLevels = 11

// Filter, wrap, format and type values. They use the numeric values of the
// portable API so callers can pass its enums through unchanged.
const (
	Nearest              uint32 = 0x2600
	Linear               uint32 = 0x2601
	NearestMipmapNearest uint32 = 0x2700
	LinearMipmapNearest  uint32 = 0x2701
	NearestMipmapLinear  uint32 = 0x2702
	LinearMipmapLinear   uint32 = 0x2703

	Repeat         uint32 = 0x2901
	ClampToEdge    uint32 = 0x812F
	MirroredRepeat uint32 = 0x8370

	Alpha          uint32 = 0x1906
	RGB            uint32 = 0x1907
	RGBA           uint32 = 0x1908
	Luminance      uint32 = 0x1909
	LuminanceAlpha uint32 = 0x190A

	UnsignedByte      uint32 = 0x1401
	Float             uint32 = 0x1406
	HalfFloat         uint32 = 0x8D61
	UnsignedShort4444 uint32 = 0x8033
	UnsignedShort5551 uint32 = 0x8034
	UnsignedShort565  uint32 = 0x8363
)

var (
	ErrIncomplete       = errors.New("texture: incomplete")
	ErrAllocationFailed = errors.New("texture: native allocation failed")
	ErrInvalidLevel     = errors.New("texture: invalid level")
	ErrInvalidFace      = errors.New("texture: invalid face")
	ErrInvalidValue     = errors.New("texture: invalid value")
	ErrInvalidEnum      = errors.New("texture: invalid enum")
)

// Kind is the target shape of a texture.
type Kind int

const (
	TwoD Kind = iota
	CubeMap
)

// Faces returns the number of faces of kind k.
func (k Kind) Faces() int {
	if k == CubeMap {
		return 6
	}
	return 1
}

func (k Kind) String() string {
	if k == CubeMap {
		return "cube map"
	}
	return "2d"
}

func (k Kind) native() device.TextureKind {
	if k == CubeMap {
		return device.TextureCube
	}
	return device.Texture2D
}

// Face selects a cube map face. 2D textures only have FacePositiveX.
type Face int

const (
	FacePositiveX Face = iota
	FaceNegativeX
	FacePositiveY
	FaceNegativeY
	FacePositiveZ
	FaceNegativeZ
)

// MipImage is one face/level of a texture.
type MipImage struct {
	InternalFormat uint32
	Width          int
	Height         int
	Format         uint32
	Type           uint32

	pixels []byte
	dirty  bool
}

// Present reports whether the image has been given a non-empty size.
func (m *MipImage) Present() bool { return m.Width > 0 && m.Height > 0 }

// Pixels returns the stored pixel data. It must not be modified.
func (m *MipImage) Pixels() []byte { return m.pixels }

// Dirty reports whether the image changed since the last upload.
func (m *MipImage) Dirty() bool { return m.dirty }

func (m *MipImage) sameFormat(o *MipImage) bool {
	return m.InternalFormat == o.InternalFormat && m.Format == o.Format && m.Type == o.Type
}

// SamplerState is the filtering and wrapping of a texture.
type SamplerState struct {
	MinFilter uint32
	MagFilter uint32
	WrapS     uint32
	WrapT     uint32
}

// Texture is a 2D texture or a cube map.
//
// A Texture exclusively owns its native texture. The handle returned by
// GetTexture is borrowed and stays valid until the next call that rebuilds
// it or until the texture is released.
type Texture struct {
	kind Kind
	dev  device.Device

	sampler SamplerState
	images  [6][MaxTextureLevels]MipImage

	native       device.Texture
	renderTarget bool
}

// New creates an empty texture of kind on dev with the default sampler
// state of the portable API.
func New(dev device.Device, kind Kind) *Texture {
	return &Texture{
		kind: kind,
		dev:  dev,
		sampler: SamplerState{
			MinFilter: NearestMipmapLinear,
			MagFilter: Linear,
			WrapS:     Repeat,
			WrapT:     Repeat,
		},
	}
}

// Kind returns the texture's shape.
func (t *Texture) Kind() Kind { return t.kind }

// SetMinFilter sets the minification filter.
func (t *Texture) SetMinFilter(f uint32) error {
	switch f {
	case Nearest, Linear, NearestMipmapNearest, LinearMipmapNearest, NearestMipmapLinear, LinearMipmapLinear:
		t.sampler.MinFilter = f
		return nil
	}
	return fmt.Errorf("%w: min filter 0x%04x", ErrInvalidEnum, f)
}

// SetMagFilter sets the magnification filter.
func (t *Texture) SetMagFilter(f uint32) error {
	switch f {
	case Nearest, Linear:
		t.sampler.MagFilter = f
		return nil
	}
	return fmt.Errorf("%w: mag filter 0x%04x", ErrInvalidEnum, f)
}

func validWrap(w uint32) bool {
	return w == Repeat || w == ClampToEdge || w == MirroredRepeat
}

// SetWrapS sets the wrap mode of the s coordinate.
func (t *Texture) SetWrapS(w uint32) error {
	if !validWrap(w) {
		return fmt.Errorf("%w: wrap 0x%04x", ErrInvalidEnum, w)
	}
	t.sampler.WrapS = w
	return nil
}

// SetWrapT sets the wrap mode of the t coordinate.
func (t *Texture) SetWrapT(w uint32) error {
	if !validWrap(w) {
		return fmt.Errorf("%w: wrap 0x%04x", ErrInvalidEnum, w)
	}
	t.sampler.WrapT = w
	return nil
}

func (t *Texture) MinFilter() uint32 { return t.sampler.MinFilter }
func (t *Texture) MagFilter() uint32 { return t.sampler.MagFilter }
func (t *Texture) WrapS() uint32     { return t.sampler.WrapS }
func (t *Texture) WrapT() uint32     { return t.sampler.WrapT }

// Sampler returns the full sampler state.
func (t *Texture) Sampler() SamplerState { return t.sampler }

// SamplerDesc converts the sampler state to a native sampler description.
func (s SamplerState) SamplerDesc() device.SamplerDesc {
	desc := device.SamplerDesc{
		AddressU:  addressMode(s.WrapS),
		AddressV:  addressMode(s.WrapT),
		MagFilter: gputypes.FilterModeLinear,
		MinFilter: gputypes.FilterModeLinear,
	}
	if s.MagFilter == Nearest {
		desc.MagFilter = gputypes.FilterModeNearest
	}
	switch s.MinFilter {
	case Nearest, NearestMipmapNearest, NearestMipmapLinear:
		desc.MinFilter = gputypes.FilterModeNearest
	}
	switch s.MinFilter {
	case NearestMipmapNearest, LinearMipmapNearest:
		desc.MipmapFilter = gputypes.MipmapFilterModeNearest
	case NearestMipmapLinear, LinearMipmapLinear:
		desc.MipmapFilter = gputypes.MipmapFilterModeLinear
	}
	return desc
}

func addressMode(wrap uint32) gputypes.AddressMode {
	switch wrap {
	case ClampToEdge:
		return gputypes.AddressModeClampToEdge
	case MirroredRepeat:
		return gputypes.AddressModeMirrorRepeat
	}
	return gputypes.AddressModeRepeat
}

func mipmapped(minFilter uint32) bool {
	return minFilter != Nearest && minFilter != Linear
}

// Image returns the stored image of face and level, or nil if out of range.
func (t *Texture) Image(face Face, level int) *MipImage {
	if int(face) < 0 || int(face) >= t.kind.Faces() || level < 0 || level >= MaxTextureLevels {
		return nil
	}
	return &t.images[face][level]
}

// SetImage stores a copy of pixels as face/level. pixels is tightly packed
// in format and typ; nil leaves the level zero-filled. Nothing is sent to
// the device until the texture is next used.
func (t *Texture) SetImage(face Face, level int, internalFormat uint32, width, height int, format, typ uint32, pixels []byte) error {
	if level < 0 || level >= MaxTextureLevels {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	if int(face) < 0 || int(face) >= t.kind.Faces() {
		return fmt.Errorf("%w: %d for %s texture", ErrInvalidFace, face, t.kind)
	}
	if width < 0 || height < 0 || width > 1<<(MaxTextureLevels-1) || height > 1<<(MaxTextureLevels-1) {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidValue, width, height)
	}
	if t.kind == CubeMap && width != height {
		return fmt.Errorf("%w: cube map face %dx%d is not square", ErrInvalidValue, width, height)
	}
	ps := pixelSize(format, typ)
	if ps == 0 {
		return fmt.Errorf("%w: format 0x%04x type 0x%04x", ErrInvalidEnum, format, typ)
	}
	size := width * height * ps
	if pixels != nil && len(pixels) < size {
		return fmt.Errorf("%w: %d bytes for %dx%d, want %d", ErrInvalidValue, len(pixels), width, height, size)
	}

	buf := make([]byte, size)
	copy(buf, pixels)
	t.images[face][level] = MipImage{
		InternalFormat: internalFormat,
		Width:          width,
		Height:         height,
		Format:         format,
		Type:           typ,
		pixels:         buf,
		dirty:          true,
	}
	return nil
}

// LevelCount returns the length of a full mip chain for a w×h base level.
func LevelCount(w, h int) int {
	n := 1
	for s := max(w, h); s > 1; s >>= 1 {
		n++
	}
	return min(n, MaxTextureLevels)
}

// IsComplete reports whether the texture may be sampled with its current
// min filter. Every face must hold a base level matching face 0, and with a
// mipmapping filter every level of the chain must be present with halved
// dimensions and the base level's format.
func (t *Texture) IsComplete() bool {
	base := &t.images[0][0]
	if !base.Present() {
		return false
	}
	levels := 1
	if mipmapped(t.sampler.MinFilter) {
		levels = LevelCount(base.Width, base.Height)
	}
	for f := range t.kind.Faces() {
		for l := range levels {
			img := &t.images[f][l]
			w, h := device.LevelSize(base.Width, base.Height, l)
			if img.Width != w || img.Height != h || !img.sameFormat(base) {
				return false
			}
			if t.kind == CubeMap && img.Width != img.Height {
				return false
			}
		}
	}
	return true
}

// validLevels returns how many levels from 0 form a consistent chain on
// every face. It is at least 1 for a complete texture.
func (t *Texture) validLevels() int {
	base := &t.images[0][0]
	n := LevelCount(base.Width, base.Height)
	for l := 1; l < n; l++ {
		w, h := device.LevelSize(base.Width, base.Height, l)
		for f := range t.kind.Faces() {
			img := &t.images[f][l]
			if img.Width != w || img.Height != h || !img.sameFormat(base) {
				return l
			}
		}
	}
	return n
}
