package gldevice

import (
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/richinsley/goangle/device"
)

// Texture is a GL texture.
type Texture struct {
	object
	dev    *Device
	desc   device.TextureDesc
	format glFormat
	target uint32
	id     uint32
}

// Desc returns the creation description.
func (t *Texture) Desc() device.TextureDesc { return t.desc }

// ID returns the GL texture name.
func (t *Texture) ID() uint32 { return t.id }

func (t *Texture) faceTarget(face int) uint32 {
	if t.target == gl.TEXTURE_CUBE_MAP {
		return gl.TEXTURE_CUBE_MAP_POSITIVE_X + uint32(face)
	}
	return t.target
}

func (t *Texture) inRange(face, level int) bool {
	return face >= 0 && face < t.desc.Kind.Faces() && level >= 0 && level < t.desc.Levels
}

// Upload replaces one face/level with tightly packed rows.
func (t *Texture) Upload(face, level int, data []byte) error {
	if t.dev.lost {
		return device.ErrDeviceLost
	}
	if !t.inRange(face, level) {
		return fmt.Errorf("gldevice: upload face %d level %d out of range", face, level)
	}
	w, h := device.LevelSize(t.desc.Width, t.desc.Height, level)
	if want := w * h * device.FormatSize(t.desc.Format); want == 0 || len(data) != want {
		return fmt.Errorf("gldevice: upload face %d level %d: got %d bytes, want %d", face, level, len(data), want)
	}
	gl.BindTexture(t.target, t.id)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexSubImage2D(t.faceTarget(face), int32(level), 0, 0, int32(w), int32(h), t.format.format, t.format.typ, gl.Ptr(data))
	gl.BindTexture(t.target, 0)
	return glError("upload texture")
}

// View is a render target view of one face/level, or a shader resource view
// of the whole texture. It keeps its texture alive.
type View struct {
	object
	tex   *Texture
	face  int
	level int
}

// Texture returns the viewed texture.
func (v *View) Texture() *Texture { return v.tex }

func (t *Texture) newView(face, level int) *View {
	t.AddRef()
	return &View{object: object{refs: 1, destroy: t.Release}, tex: t, face: face, level: level}
}

// RenderTarget returns a view that SetRenderTargets attaches to the
// context's framebuffer.
func (t *Texture) RenderTarget(face, level int) (device.Object, error) {
	if t.dev.lost {
		return nil, device.ErrDeviceLost
	}
	if !t.desc.RenderTarget {
		return nil, fmt.Errorf("gldevice: texture created without render target usage: %w", device.ErrUnsupported)
	}
	if !t.inRange(face, level) {
		return nil, fmt.Errorf("gldevice: render target face %d level %d out of range", face, level)
	}
	return t.newView(face, level), nil
}

// ShaderResource returns a view that SetShaderResources binds to a texture
// unit.
func (t *Texture) ShaderResource() (device.Object, error) {
	if t.dev.lost {
		return nil, device.ErrDeviceLost
	}
	return t.newView(0, 0), nil
}

// Buffer is a GL buffer object.
type Buffer struct {
	object
	id   uint32
	size int
}

// Size returns the size of the buffer in bytes.
func (b *Buffer) Size() int { return b.size }

// Sampler is a GL sampler object.
type Sampler struct {
	object
	desc device.SamplerDesc
	id   uint32
}

// Desc returns the creation description.
func (s *Sampler) Desc() device.SamplerDesc { return s.desc }

// ID returns the GL sampler name.
func (s *Sampler) ID() uint32 { return s.id }

type constant struct {
	offset   uint32
	location int32
}

// Shader is a separable GL program for one stage. Its constant storage is
// the program's default uniform block.
type Shader struct {
	object
	dev       *Device
	stage     device.StageKind
	program   uint32
	bit       uint32
	constants []constant
}

// Stage returns the stage kind.
func (s *Shader) Stage() device.StageKind { return s.stage }

// Program returns the GL program name.
func (s *Shader) Program() uint32 { return s.program }

// SetConstants writes the uniform declared at offset. Uniforms the GL
// compiler optimized out are skipped.
func (s *Shader) SetConstants(offset uint32, typ device.ValueType, count int, data []byte) error {
	if s.dev.lost {
		return device.ErrDeviceLost
	}
	if n := typ.Size() * count; count <= 0 || n > len(data) {
		return fmt.Errorf("gldevice: %d bytes of %s×%d, have %d", n, typ, count, len(data))
	}
	loc := int32(-1)
	for _, c := range s.constants {
		if c.offset == offset {
			loc = c.location
			break
		}
	}
	if loc < 0 {
		return nil
	}

	n := int32(count)
	f := (*float32)(gl.Ptr(data))
	switch typ {
	case device.TypeFloat:
		gl.ProgramUniform1fv(s.program, loc, n, f)
	case device.TypeVec2:
		gl.ProgramUniform2fv(s.program, loc, n, f)
	case device.TypeVec3:
		gl.ProgramUniform3fv(s.program, loc, n, f)
	case device.TypeVec4:
		gl.ProgramUniform4fv(s.program, loc, n, f)
	case device.TypeMat2:
		gl.ProgramUniformMatrix2fv(s.program, loc, n, false, f)
	case device.TypeMat3:
		gl.ProgramUniformMatrix3fv(s.program, loc, n, false, f)
	case device.TypeMat4:
		gl.ProgramUniformMatrix4fv(s.program, loc, n, false, f)
	case device.TypeInt:
		gl.ProgramUniform1iv(s.program, loc, n, (*int32)(gl.Ptr(data)))
	default:
		return fmt.Errorf("gldevice: constant of type %s: %w", typ, device.ErrUnsupported)
	}
	return glError("set constants")
}
