// Package gldevice implements the device interfaces on an OpenGL 4.1 core
// profile context.
//
// Stage objects are separable programs attached to one program pipeline.
// Every method must be called on the goroutine that owns the current GL
// context, the same one that called New.
package gldevice

import (
	"fmt"
	"strings"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/gogpu/gputypes"
	"github.com/richinsley/goangle/device"
	"github.com/richinsley/goangle/diag"
)

// object is the reference count shared by every native object.
type object struct {
	refs    int32
	destroy func()
}

func (o *object) AddRef() { o.refs++ }

func (o *object) Release() {
	o.refs--
	switch {
	case o.refs == 0:
		if o.destroy != nil {
			o.destroy()
		}
	case o.refs < 0:
		panic("gldevice: object released too many times")
	}
}

// Device wraps the GL context that is current when New is called.
type Device struct {
	ctx  *Context
	lost bool
	live int
}

var _ device.Device = (*Device)(nil)

// New loads the GL entry points and creates the immediate context.
func New() (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("gldevice: init GL: %w", err)
	}
	d := &Device{}
	ctx, err := newContext(d)
	if err != nil {
		return nil, err
	}
	d.ctx = ctx
	diag.Logger().Info("gldevice: created", "version", gl.GoStr(gl.GetString(gl.VERSION)))
	return d, nil
}

// Immediate returns the immediate context.
func (d *Device) Immediate() device.Context { return d.ctx }

// Context returns the immediate context with its concrete type.
func (d *Device) Context() *Context { return d.ctx }

// Lost reports whether Lose was called.
func (d *Device) Lost() bool { return d.lost }

// Lose marks the device lost. The host calls it when the GL context is
// destroyed or reset; objects released afterwards free no GL names.
func (d *Device) Lose() {
	d.lost = true
	diag.Logger().Info("gldevice: lost", "live", d.live)
}

// Live returns the number of native objects not yet destroyed.
func (d *Device) Live() int { return d.live }

// Close releases the context's bindings and its GL names.
func (d *Device) Close() {
	d.ctx.close()
}

// track counts a new object and returns its reference count.
func (d *Device) track(free func()) object {
	d.live++
	return object{refs: 1, destroy: func() {
		d.live--
		free()
	}}
}

// glError drains the GL error queue and returns the first error.
func glError(op string) error {
	var first uint32
	for range 8 {
		e := gl.GetError()
		if e == gl.NO_ERROR {
			break
		}
		if first == 0 {
			first = e
		}
	}
	switch first {
	case 0:
		return nil
	case gl.OUT_OF_MEMORY:
		return fmt.Errorf("gldevice: %s: %w", op, device.ErrOutOfMemory)
	}
	return fmt.Errorf("gldevice: %s: GL error 0x%x", op, first)
}

type glFormat struct {
	internal int32
	format   uint32
	typ      uint32
}

var formats = map[gputypes.TextureFormat]glFormat{
	gputypes.TextureFormatR8Unorm:             {gl.R8, gl.RED, gl.UNSIGNED_BYTE},
	gputypes.TextureFormatRG8Unorm:            {gl.RG8, gl.RG, gl.UNSIGNED_BYTE},
	gputypes.TextureFormatRGBA8Unorm:          {gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE},
	gputypes.TextureFormatBGRA8Unorm:          {gl.RGBA8, gl.BGRA, gl.UNSIGNED_BYTE},
	gputypes.TextureFormatRGBA16Float:         {gl.RGBA16F, gl.RGBA, gl.HALF_FLOAT},
	gputypes.TextureFormatRGBA32Float:         {gl.RGBA32F, gl.RGBA, gl.FLOAT},
	gputypes.TextureFormatDepth24PlusStencil8: {gl.DEPTH24_STENCIL8, gl.DEPTH_STENCIL, gl.UNSIGNED_INT_24_8},
}

// NewTexture allocates every face and level of a texture.
func (d *Device) NewTexture(desc device.TextureDesc) (device.Texture, error) {
	if d.lost {
		return nil, device.ErrDeviceLost
	}
	f, ok := formats[desc.Format]
	if !ok {
		return nil, fmt.Errorf("gldevice: texture format %v: %w", desc.Format, device.ErrUnsupported)
	}
	levels := max(1, desc.Levels)
	t := &Texture{dev: d, desc: desc, format: f, target: gl.TEXTURE_2D}
	t.desc.Levels = levels
	if desc.Kind == device.TextureCube {
		t.target = gl.TEXTURE_CUBE_MAP
	}

	gl.GenTextures(1, &t.id)
	gl.BindTexture(t.target, t.id)
	gl.TexParameteri(t.target, gl.TEXTURE_MAX_LEVEL, int32(levels-1))
	if levels > 1 {
		gl.TexParameteri(t.target, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_LINEAR)
	} else {
		gl.TexParameteri(t.target, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	}
	gl.TexParameteri(t.target, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	for face := range desc.Kind.Faces() {
		for l := range levels {
			w, h := device.LevelSize(desc.Width, desc.Height, l)
			gl.TexImage2D(t.faceTarget(face), int32(l), f.internal, int32(w), int32(h), 0, f.format, f.typ, nil)
		}
	}
	gl.BindTexture(t.target, 0)
	if err := glError("allocate texture"); err != nil {
		gl.DeleteTextures(1, &t.id)
		return nil, err
	}

	id := t.id
	t.object = d.track(func() {
		if !d.lost {
			gl.DeleteTextures(1, &id)
		}
	})
	return t, nil
}

// NewBuffer creates a buffer holding data, for use as an index buffer.
func (d *Device) NewBuffer(data []byte) (*Buffer, error) {
	if d.lost {
		return nil, device.ErrDeviceLost
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("gldevice: empty buffer")
	}
	b := &Buffer{size: len(data)}
	gl.GenBuffers(1, &b.id)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.id)
	gl.BufferData(gl.ARRAY_BUFFER, len(data), gl.Ptr(data), gl.STATIC_DRAW)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	if err := glError("allocate buffer"); err != nil {
		gl.DeleteBuffers(1, &b.id)
		return nil, err
	}
	id := b.id
	b.object = d.track(func() {
		if !d.lost {
			gl.DeleteBuffers(1, &id)
		}
	})
	return b, nil
}

// NewSampler creates a GL sampler object.
func (d *Device) NewSampler(desc device.SamplerDesc) (device.Object, error) {
	if d.lost {
		return nil, device.ErrDeviceLost
	}
	smp := &Sampler{desc: desc}
	gl.GenSamplers(1, &smp.id)
	gl.SamplerParameteri(smp.id, gl.TEXTURE_WRAP_S, wrapMode(desc.AddressU))
	gl.SamplerParameteri(smp.id, gl.TEXTURE_WRAP_T, wrapMode(desc.AddressV))
	gl.SamplerParameteri(smp.id, gl.TEXTURE_WRAP_R, wrapMode(desc.AddressV))
	gl.SamplerParameteri(smp.id, gl.TEXTURE_MIN_FILTER, minFilter(desc.MinFilter, desc.MipmapFilter))
	gl.SamplerParameteri(smp.id, gl.TEXTURE_MAG_FILTER, magFilter(desc.MagFilter))
	if err := glError("create sampler"); err != nil {
		gl.DeleteSamplers(1, &smp.id)
		return nil, err
	}
	id := smp.id
	smp.object = d.track(func() {
		if !d.lost {
			gl.DeleteSamplers(1, &id)
		}
	})
	return smp, nil
}

func wrapMode(m gputypes.AddressMode) int32 {
	switch m {
	case gputypes.AddressModeClampToEdge:
		return gl.CLAMP_TO_EDGE
	case gputypes.AddressModeMirrorRepeat:
		return gl.MIRRORED_REPEAT
	}
	return gl.REPEAT
}

func magFilter(f gputypes.FilterMode) int32 {
	if f == gputypes.FilterModeNearest {
		return gl.NEAREST
	}
	return gl.LINEAR
}

func minFilter(f gputypes.FilterMode, mip gputypes.MipmapFilterMode) int32 {
	nearest := f == gputypes.FilterModeNearest
	switch mip {
	case gputypes.MipmapFilterModeNearest:
		if nearest {
			return gl.NEAREST_MIPMAP_NEAREST
		}
		return gl.LINEAR_MIPMAP_NEAREST
	case gputypes.MipmapFilterModeLinear:
		if nearest {
			return gl.NEAREST_MIPMAP_LINEAR
		}
		return gl.LINEAR_MIPMAP_LINEAR
	}
	return magFilter(f)
}

// samplerBase is the first texture unit a stage's sampler registers map to.
func samplerBase(k device.StageKind) int {
	if k == device.StageVertex {
		return device.SamplerSlots
	}
	return 0
}

func shaderType(k device.StageKind) (typ, bit uint32, ok bool) {
	switch k {
	case device.StageVertex:
		return gl.VERTEX_SHADER, gl.VERTEX_SHADER_BIT, true
	case device.StagePixel:
		return gl.FRAGMENT_SHADER, gl.FRAGMENT_SHADER_BIT, true
	}
	return 0, 0, false
}

const perVertex = "out gl_PerVertex { vec4 gl_Position; };\n"

// redeclarePerVertex adds the gl_PerVertex block separable vertex programs
// need, after the leading preprocessor lines.
func redeclarePerVertex(src string) string {
	if strings.Contains(src, "gl_PerVertex") {
		return src
	}
	pos := 0
	for pos < len(src) {
		end := strings.IndexByte(src[pos:], '\n')
		if end < 0 {
			end = len(src) - pos
		}
		line := strings.TrimSpace(src[pos : pos+end])
		if line != "" && !strings.HasPrefix(line, "#") {
			break
		}
		pos = min(len(src), pos+end+1)
	}
	if pos > 0 && src[pos-1] != '\n' {
		return src + "\n" + perVertex
	}
	return src[:pos] + perVertex + src[pos:]
}

// NewShader links Code, GLSL 4.10 text, into a separable program and points
// its sampler uniforms at their texture units.
func (d *Device) NewShader(desc device.ShaderDesc) (device.Shader, error) {
	if d.lost {
		return nil, device.ErrDeviceLost
	}
	typ, bit, ok := shaderType(desc.Stage)
	if !ok {
		return nil, fmt.Errorf("gldevice: %s stage: %w", desc.Stage, device.ErrUnsupported)
	}
	src := string(desc.Code)
	if desc.Stage == device.StageVertex {
		src = redeclarePerVertex(src)
	}

	csources, free := gl.Strs(src + "\x00")
	prog := gl.CreateShaderProgramv(typ, 1, csources)
	free()
	if prog == 0 {
		return nil, glErrorOr(fmt.Sprintf("create %s program", desc.Stage))
	}
	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLength)
		logText := strings.Repeat("\x00", int(logLength+1))
		gl.GetProgramInfoLog(prog, logLength, nil, gl.Str(logText))
		gl.DeleteProgram(prog)
		return nil, fmt.Errorf("gldevice: link %s program: %s", desc.Stage, strings.TrimRight(logText, "\x00"))
	}

	s := &Shader{dev: d, stage: desc.Stage, program: prog, bit: bit}
	for _, c := range desc.Constants {
		s.constants = append(s.constants, constant{offset: c.Offset, location: uniformLocation(prog, c)})
	}
	base := samplerBase(desc.Stage)
	for _, c := range desc.Samplers {
		loc := uniformLocation(prog, c)
		if loc < 0 {
			continue
		}
		units := make([]int32, c.Count)
		for i := range units {
			units[i] = int32(base + int(c.Offset) + i)
		}
		gl.ProgramUniform1iv(prog, loc, int32(len(units)), &units[0])
	}
	if err := glError("bind sampler units"); err != nil {
		gl.DeleteProgram(prog)
		return nil, err
	}

	s.object = d.track(func() {
		if !d.lost {
			gl.DeleteProgram(prog)
		}
	})
	return s, nil
}

func glErrorOr(op string) error {
	if err := glError(op); err != nil {
		return err
	}
	return fmt.Errorf("gldevice: %s failed", op)
}

func uniformLocation(prog uint32, c device.ConstantDesc) int32 {
	name := c.Name
	if c.Symbol != "" {
		name = c.Symbol
	}
	return gl.GetUniformLocation(prog, gl.Str(name+"\x00"))
}
