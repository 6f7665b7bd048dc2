package memdevice

import (
	"fmt"

	"github.com/richinsley/goangle/device"
)

// Texture is an in-memory texture.
type Texture struct {
	Object
	desc   device.TextureDesc
	levels [][][]byte
}

// Desc returns the creation description.
func (t *Texture) Desc() device.TextureDesc { return t.desc }

// Upload replaces the contents of one face/level.
func (t *Texture) Upload(face, level int, data []byte) error {
	if face < 0 || face >= len(t.levels) || level < 0 || level >= t.desc.Levels {
		return fmt.Errorf("memdevice: upload face %d level %d out of range", face, level)
	}
	dst := t.levels[face][level]
	if len(data) != len(dst) {
		return fmt.Errorf("memdevice: upload face %d level %d: got %d bytes, want %d", face, level, len(data), len(dst))
	}
	if err := t.dev.upload(); err != nil {
		return err
	}
	copy(dst, data)
	return nil
}

// Level returns the stored contents of one face/level.
func (t *Texture) Level(face, level int) []byte { return t.levels[face][level] }

// View is a render target or shader resource view. It keeps its texture
// alive.
type View struct {
	Object
	Texture *Texture
	Face    int
	Level   int
}

func (t *Texture) newView(kind string, face, level int) *View {
	t.AddRef()
	v := &View{Object: t.dev.newObject(kind), Texture: t, Face: face, Level: level}
	v.destroy = t.Release
	return v
}

// RenderTarget returns a new render target view of one face/level.
func (t *Texture) RenderTarget(face, level int) (device.Object, error) {
	if !t.desc.RenderTarget {
		return nil, fmt.Errorf("memdevice: texture created without render target usage: %w", device.ErrUnsupported)
	}
	if face < 0 || face >= len(t.levels) || level < 0 || level >= t.desc.Levels {
		return nil, fmt.Errorf("memdevice: render target face %d level %d out of range", face, level)
	}
	if err := t.dev.allocate(); err != nil {
		return nil, err
	}
	return t.newView("rtv", face, level), nil
}

// ShaderResource returns a new view of the whole texture.
func (t *Texture) ShaderResource() (device.Object, error) {
	if err := t.dev.allocate(); err != nil {
		return nil, err
	}
	return t.newView("srv", 0, 0), nil
}

// Shader is an in-memory stage object.
type Shader struct {
	Object
	stage     device.StageKind
	code      []byte
	constants []byte
}

// Stage returns the stage kind.
func (s *Shader) Stage() device.StageKind { return s.stage }

// Code returns the code the shader was created from.
func (s *Shader) Code() []byte { return s.code }

// SetConstants copies data into the constant storage.
func (s *Shader) SetConstants(offset uint32, typ device.ValueType, count int, data []byte) error {
	if s.dev.lost {
		return device.ErrDeviceLost
	}
	n := typ.Size() * count
	if n > len(data) {
		return fmt.Errorf("memdevice: %d bytes of %s×%d, have %d", n, typ, count, len(data))
	}
	if int(offset)+n > len(s.constants) {
		return fmt.Errorf("memdevice: constant write [%d,%d) past storage of %d bytes", offset, int(offset)+n, len(s.constants))
	}
	copy(s.constants[offset:], data[:n])
	return nil
}

// Constants returns n bytes of constant storage starting at offset.
func (s *Shader) Constants(offset uint32, n int) []byte {
	out := make([]byte, n)
	copy(out, s.constants[offset:])
	return out
}

// Sampler is an in-memory sampler state object.
type Sampler struct {
	Object
	Desc device.SamplerDesc
}
