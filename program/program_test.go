package program

import (
	"encoding/binary"
	"fmt"
	"math"
	"testing"

	"github.com/richinsley/goangle/compiler"
	"github.com/richinsley/goangle/device"
	"github.com/richinsley/goangle/device/memdevice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var vertexBinary = &compiler.Binary{
	Stage: device.StageVertex,
	Code:  []byte("vs"),
	Reflection: compiler.ReflectionTable{
		Inputs: []compiler.Input{
			{Name: "position", Type: device.TypeVec4},
			{Name: "color", Type: device.TypeVec4},
		},
		Constants: []compiler.Constant{
			{Name: "uFloat", Type: device.TypeFloat, Offset: 0, ArrayLength: 1},
			{Name: "uVec2", Type: device.TypeVec2, Offset: 16, ArrayLength: 1},
			{Name: "uVec3", Type: device.TypeVec3, Offset: 32, ArrayLength: 1},
			{Name: "uVec4", Type: device.TypeVec4, Offset: 48, ArrayLength: 1},
			{Name: "uMat2", Type: device.TypeMat2, Offset: 64, ArrayLength: 1},
			{Name: "uMat3", Type: device.TypeMat3, Offset: 80, ArrayLength: 1},
			{Name: "uMat4", Type: device.TypeMat4, Offset: 128, ArrayLength: 1},
			{Name: "uInt", Type: device.TypeInt, Offset: 192, ArrayLength: 2},
		},
	},
}

var pixelBinary = &compiler.Binary{
	Stage: device.StagePixel,
	Code:  []byte("ps"),
	Reflection: compiler.ReflectionTable{
		Constants: []compiler.Constant{
			{Name: "uVec4", Type: device.TypeVec4, Offset: 0, ArrayLength: 1},
			{Name: "tex", Type: device.TypeSampler2D, Offset: 0, ArrayLength: 1},
			{Name: "env", Type: device.TypeSamplerCube, Offset: 1, ArrayLength: 1},
			{Name: "uTint", Type: device.TypeVec4, Offset: 16, ArrayLength: 1},
		},
	},
}

// scripted returns a compiler that maps source text to canned binaries.
func scripted(bins map[string]*compiler.Binary) compiler.Compiler {
	return compiler.Func(func(src string, profile compiler.Profile) (*compiler.Binary, error) {
		stage, _ := profile.Stage()
		b, ok := bins[src]
		if !ok {
			return nil, &compiler.CompileError{Stage: stage, Log: fmt.Sprintf("%s: syntax error", src)}
		}
		return b, nil
	})
}

var defaultBinaries = map[string]*compiler.Binary{"vs": vertexBinary, "ps": pixelBinary}

func shader(t *testing.T, c compiler.Compiler, stage device.StageKind, src string) *Shader {
	t.Helper()
	s := NewShader(stage)
	s.SetSource(src)
	require.NoError(t, s.Compile(c))
	return s
}

func newLinked(t *testing.T, dev device.Device, bins map[string]*compiler.Binary, vs, ps string) *Program {
	t.Helper()
	c := scripted(bins)
	p := New(dev, c, Options{})
	require.True(t, p.AttachShader(shader(t, c, device.StageVertex, vs)))
	require.True(t, p.AttachShader(shader(t, c, device.StagePixel, ps)))
	require.NoError(t, p.Link())
	return p
}

func floats(n int, start float32) []float32 {
	v := make([]float32, n)
	for i := range v {
		v[i] = start + float32(i)
	}
	return v
}

func floatBytes(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(f))
	}
	return b
}

func constants(t *testing.T, p *Program, stage device.StageKind, off uint32, n int) []byte {
	t.Helper()
	exe, ok := p.Executable(stage).(*memdevice.Shader)
	require.True(t, ok)
	return exe.Constants(off, n)
}

func TestLinkUniformLocations(t *testing.T) {
	dev := memdevice.New()
	p := newLinked(t, dev, defaultBinaries, "vs", "ps")

	assert.True(t, p.IsLinked())
	assert.Equal(t, Linked, p.State())
	seen := map[int]bool{}
	for _, name := range []string{"uFloat", "uVec2", "uVec3", "uVec4", "uMat2", "uMat3", "uMat4", "uInt", "uTint"} {
		loc := p.GetUniformLocation(name)
		require.GreaterOrEqual(t, loc, 0, name)
		assert.False(t, seen[loc], "duplicate location for %s", name)
		seen[loc] = true
		assert.Equal(t, name, p.Uniform(loc).Name)
	}
	assert.Equal(t, p.GetUniformLocation("uInt"), p.GetUniformLocation("uInt[0]"))
	assert.Equal(t, -1, p.GetUniformLocation("missing"))
	assert.Equal(t, -1, p.GetUniformLocation("tex"), "samplers are not uniforms")
	assert.Len(t, p.Uniforms(), 9)

	u := p.Uniform(p.GetUniformLocation("uVec4"))
	assert.True(t, u.Active(device.StageVertex))
	assert.True(t, u.Active(device.StagePixel))
	assert.False(t, p.Uniform(p.GetUniformLocation("uTint")).Active(device.StageVertex))
}

func TestSetAndApplyUniforms(t *testing.T) {
	dev := memdevice.New()
	p := newLinked(t, dev, defaultBinaries, "vs", "ps")

	tests := []struct {
		name   string
		offset uint32
		set    func(loc int, v []float32) bool
		n      int
	}{
		{"uFloat", 0, func(l int, v []float32) bool { return p.SetUniform1fv(l, 1, v) }, 1},
		{"uVec2", 16, func(l int, v []float32) bool { return p.SetUniform2fv(l, 1, v) }, 2},
		{"uVec3", 32, func(l int, v []float32) bool { return p.SetUniform3fv(l, 1, v) }, 3},
		{"uVec4", 48, func(l int, v []float32) bool { return p.SetUniform4fv(l, 1, v) }, 4},
		{"uMat2", 64, func(l int, v []float32) bool { return p.SetUniformMatrix2fv(l, 1, v) }, 4},
		{"uMat3", 80, func(l int, v []float32) bool { return p.SetUniformMatrix3fv(l, 1, v) }, 9},
		{"uMat4", 128, func(l int, v []float32) bool { return p.SetUniformMatrix4fv(l, 1, v) }, 16},
	}
	for i, tt := range tests {
		v := floats(tt.n, float32(10*i+1))
		require.True(t, tt.set(p.GetUniformLocation(tt.name), v), tt.name)
	}
	ints := []int32{7, -3}
	require.True(t, p.SetUniform1iv(p.GetUniformLocation("uInt"), 2, ints))

	require.NoError(t, p.ApplyUniforms())

	for i, tt := range tests {
		want := floatBytes(floats(tt.n, float32(10*i+1)))
		assert.Equal(t, want, constants(t, p, device.StageVertex, tt.offset, len(want)), tt.name)
	}
	intBytes := make([]byte, 8)
	binary.LittleEndian.PutUint32(intBytes, 7)
	binary.LittleEndian.PutUint32(intBytes[4:], uint32(0xfffffffd))
	assert.Equal(t, intBytes, constants(t, p, device.StageVertex, 192, 8))

	// uVec4 lives in both stages at different offsets.
	assert.Equal(t, floatBytes(floats(4, 31)), constants(t, p, device.StagePixel, 0, 16))
}

func TestSetUniformRejected(t *testing.T) {
	dev := memdevice.New()
	p := newLinked(t, dev, defaultBinaries, "vs", "ps")
	loc := p.GetUniformLocation("uVec4")
	require.True(t, p.SetUniform4fv(loc, 1, []float32{1, 2, 3, 4}))
	before := p.Uniform(loc).Bytes()

	assert.False(t, p.SetUniform4fv(loc, 2, floats(8, 0)), "count overflows the declared size")
	assert.False(t, p.SetUniform3fv(loc, 1, floats(3, 0)), "vector width mismatch")
	assert.False(t, p.SetUniformMatrix2fv(loc, 1, floats(4, 0)), "matrix vs vector")
	assert.False(t, p.SetUniform1iv(loc, 1, []int32{1}), "int vs float")
	assert.False(t, p.SetUniform4fv(loc, 1, []float32{1, 2}), "short value slice")
	assert.False(t, p.SetUniform4fv(-1, 1, floats(4, 0)), "unknown location")
	assert.False(t, p.SetUniform4fv(1000, 1, floats(4, 0)), "unknown location")
	assert.Equal(t, before, p.Uniform(loc).Bytes())

	require.NoError(t, p.ApplyUniforms())
	assert.Equal(t, floatBytes([]float32{1, 2, 3, 4}), constants(t, p, device.StageVertex, 48, 16))
}

func TestRelinkInvalidatesLocations(t *testing.T) {
	dev := memdevice.New()
	other := &compiler.Binary{
		Stage: device.StageVertex,
		Reflection: compiler.ReflectionTable{
			Inputs: []compiler.Input{{Name: "pos", Type: device.TypeVec2}},
			Constants: []compiler.Constant{
				{Name: "uScale", Type: device.TypeFloat, Offset: 0, ArrayLength: 1},
				{Name: "uOffset", Type: device.TypeVec2, Offset: 16, ArrayLength: 1},
			},
		},
	}
	bins := map[string]*compiler.Binary{"vs": vertexBinary, "ps": pixelBinary, "vs2": other}
	p := newLinked(t, dev, bins, "vs", "ps")

	var old []int
	for _, u := range p.Uniforms() {
		old = append(old, p.GetUniformLocation(u.Name))
	}
	oldVertex := p.Executable(device.StageVertex).(*memdevice.Shader)
	live := dev.Live()

	vs, _ := p.AttachedShaders()
	vs.SetSource("vs2")
	require.NoError(t, vs.Compile(p.comp))
	require.NoError(t, p.Link())

	assert.Equal(t, live, dev.Live(), "old stages are released")
	assert.Equal(t, 0, oldVertex.Refs())
	for _, loc := range old {
		assert.Nil(t, p.Uniform(loc), "location %d still resolves", loc)
		assert.False(t, p.SetUniform1fv(loc, 1, []float32{1}))
	}
	assert.GreaterOrEqual(t, p.GetUniformLocation("uScale"), 0)
	assert.Equal(t, -1, p.GetUniformLocation("uMat4"))
	assert.Equal(t, 0, p.GetAttributeLocation("pos"))
	assert.Equal(t, -1, p.GetAttributeLocation("position"))
}

func TestLinkAttributes(t *testing.T) {
	dev := memdevice.New()
	c := scripted(defaultBinaries)
	p := New(dev, c, Options{})
	require.True(t, p.AttachShader(shader(t, c, device.StageVertex, "vs")))
	require.True(t, p.AttachShader(shader(t, c, device.StagePixel, "ps")))

	assert.False(t, p.BindAttributeLocation(MaxVertexAttribs, "color"))
	assert.False(t, p.BindAttributeLocation(0, "gl_Vertex"))
	require.True(t, p.BindAttributeLocation(5, "color"))
	require.True(t, p.BindAttributeLocation(9, "normal"))
	require.NoError(t, p.Link())

	assert.Equal(t, 0, p.GetAttributeLocation("position"))
	assert.Equal(t, 5, p.GetAttributeLocation("color"))
	assert.Equal(t, -1, p.GetAttributeLocation("normal"), "requested but inactive")
	assert.True(t, p.IsActiveAttribute(5))
	assert.False(t, p.IsActiveAttribute(9))
	assert.False(t, p.IsActiveAttribute(-1))
	assert.Equal(t, 1, p.InputMapping(5))
	assert.Equal(t, 0, p.InputMapping(0))
	assert.Equal(t, -1, p.InputMapping(9))
}

func TestTooManyAttributes(t *testing.T) {
	dev := memdevice.New()
	wide := &compiler.Binary{Stage: device.StageVertex}
	for i := range MaxVertexAttribs + 1 {
		wide.Reflection.Inputs = append(wide.Reflection.Inputs, compiler.Input{Name: fmt.Sprintf("a%d", i), Type: device.TypeVec4})
	}
	bins := map[string]*compiler.Binary{"vs": vertexBinary, "ps": pixelBinary, "wide": wide}
	p := newLinked(t, dev, bins, "vs", "ps")
	exe := p.Executable(device.StageVertex)

	vs, _ := p.AttachedShaders()
	vs.SetSource("wide")
	require.NoError(t, vs.Compile(p.comp))
	err := p.Link()
	require.ErrorIs(t, err, ErrTooManyAttributes)
	assert.Equal(t, LinkFailed, p.State())
	assert.False(t, p.IsLinked())
	assert.NotEmpty(t, p.InfoLog())

	assert.Equal(t, 0, p.GetAttributeLocation("position"), "previous table kept")
	assert.Equal(t, -1, p.GetAttributeLocation("a0"))
	assert.Same(t, exe, p.Executable(device.StageVertex))
	assert.ErrorIs(t, p.ApplyUniforms(), ErrNotLinked)
}

func TestLinkFailures(t *testing.T) {
	t.Run("missing stage", func(t *testing.T) {
		c := scripted(defaultBinaries)
		p := New(memdevice.New(), c, Options{})
		require.True(t, p.AttachShader(shader(t, c, device.StageVertex, "vs")))
		assert.ErrorIs(t, p.Link(), ErrMissingStage)
		assert.Equal(t, LinkFailed, p.State())
	})

	t.Run("uncompiled stage", func(t *testing.T) {
		c := scripted(defaultBinaries)
		p := New(memdevice.New(), c, Options{})
		require.True(t, p.AttachShader(shader(t, c, device.StageVertex, "vs")))
		require.True(t, p.AttachShader(NewShader(device.StagePixel)))
		assert.ErrorIs(t, p.Link(), ErrMissingStage)
	})

	t.Run("compile failure", func(t *testing.T) {
		dev := memdevice.New()
		p := newLinked(t, dev, defaultBinaries, "vs", "ps")
		live := dev.Live()
		_, ps := p.AttachedShaders()
		ps.SetSource("broken")
		require.NoError(t, ps.Compile(p.comp))

		err := p.Link()
		require.ErrorIs(t, err, compiler.ErrCompileFailure)
		var ce *compiler.CompileError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, device.StagePixel, ce.Stage)
		assert.Equal(t, "broken: syntax error", p.InfoLog())
		assert.Equal(t, live, dev.Live())
		assert.NotNil(t, p.Executable(device.StagePixel))
	})

	t.Run("uniform type conflict", func(t *testing.T) {
		ps := &compiler.Binary{
			Stage: device.StagePixel,
			Reflection: compiler.ReflectionTable{Constants: []compiler.Constant{
				{Name: "uVec4", Type: device.TypeVec3, Offset: 0, ArrayLength: 1},
			}},
		}
		c := scripted(map[string]*compiler.Binary{"vs": vertexBinary, "ps": ps})
		p := New(memdevice.New(), c, Options{})
		p.AttachShader(shader(t, c, device.StageVertex, "vs"))
		p.AttachShader(shader(t, c, device.StagePixel, "ps"))
		assert.ErrorIs(t, p.Link(), ErrUniformTypeConflict)
	})

	t.Run("uniform redeclared in one stage", func(t *testing.T) {
		ps := &compiler.Binary{
			Stage: device.StagePixel,
			Reflection: compiler.ReflectionTable{Constants: []compiler.Constant{
				{Name: "dup", Type: device.TypeVec4, Offset: 0, ArrayLength: 1},
				{Name: "dup", Type: device.TypeVec3, Offset: 16, ArrayLength: 1},
			}},
		}
		c := scripted(map[string]*compiler.Binary{"vs": vertexBinary, "ps": ps})
		p := New(memdevice.New(), c, Options{})
		p.AttachShader(shader(t, c, device.StageVertex, "vs"))
		p.AttachShader(shader(t, c, device.StagePixel, "ps"))
		err := p.Link()
		require.ErrorIs(t, err, ErrUniformTypeConflict)
		assert.Contains(t, err.Error(), `"dup" is vec4[1] in the pixel stage and vec3[1] in the pixel stage`)
	})

	t.Run("too many samplers", func(t *testing.T) {
		ps := &compiler.Binary{
			Stage: device.StagePixel,
			Reflection: compiler.ReflectionTable{Constants: []compiler.Constant{
				{Name: "textures", Type: device.TypeSampler2D, Offset: 0, ArrayLength: MaxTextureImageUnits + 1},
			}},
		}
		c := scripted(map[string]*compiler.Binary{"vs": vertexBinary, "ps": ps})
		p := New(memdevice.New(), c, Options{})
		p.AttachShader(shader(t, c, device.StageVertex, "vs"))
		p.AttachShader(shader(t, c, device.StagePixel, "ps"))
		assert.ErrorIs(t, p.Link(), ErrTooManySamplers)
	})

	t.Run("allocation failure", func(t *testing.T) {
		dev := memdevice.New()
		c := scripted(defaultBinaries)
		p := New(dev, c, Options{})
		p.AttachShader(shader(t, c, device.StageVertex, "vs"))
		p.AttachShader(shader(t, c, device.StagePixel, "ps"))
		dev.FailAllocationAfter(1)
		assert.ErrorIs(t, p.Link(), device.ErrOutOfMemory)
		assert.Equal(t, 0, dev.Live(), "vertex stage released")
		assert.Nil(t, p.Executable(device.StageVertex))
	})
}

func TestSamplerTable(t *testing.T) {
	p := newLinked(t, memdevice.New(), defaultBinaries, "vs", "ps")

	tex := p.SamplerLocation("tex")
	env := p.SamplerLocation("env")
	require.Equal(t, 0, tex)
	require.Equal(t, 1, env)
	assert.Equal(t, -1, p.SamplerLocation("uVec4"))
	assert.Equal(t, 0, p.SamplerMapping(env))

	assert.True(t, p.SetSamplerUnit(env, 3))
	assert.False(t, p.SetSamplerUnit(env, MaxTextureImageUnits))
	assert.False(t, p.SetSamplerUnit(7, 0))
	assert.Equal(t, 3, p.SamplerMapping(env))
	assert.Equal(t, -1, p.SamplerMapping(7))

	info := p.Samplers()[env]
	assert.Equal(t, device.TypeSamplerCube, info.Type)
	assert.Equal(t, 1, info.Register(device.StagePixel))
	assert.Equal(t, -1, info.Register(device.StageVertex))
}

func TestDeviceLost(t *testing.T) {
	dev := memdevice.New()
	p := newLinked(t, dev, defaultBinaries, "vs", "ps")

	dev.Lose()
	p.DeviceLost()
	assert.Nil(t, p.Executable(device.StageVertex))
	assert.Nil(t, p.Executable(device.StagePixel))
	assert.Equal(t, Unlinked, p.State())
	assert.ErrorIs(t, p.ApplyUniforms(), ErrNotLinked)

	fresh := memdevice.New()
	p.SetDevice(fresh)
	require.NoError(t, p.Link())
	assert.Equal(t, 2, fresh.Live())
}

func TestShaderLifecycle(t *testing.T) {
	c := scripted(defaultBinaries)
	p := New(memdevice.New(), c, Options{})
	vs := shader(t, c, device.StageVertex, "vs")

	require.True(t, p.AttachShader(vs))
	assert.False(t, p.AttachShader(shader(t, c, device.StageVertex, "vs")), "slot taken")
	assert.False(t, p.AttachShader(NewShader(device.StageGeometry)))

	vs.FlagForDeletion()
	assert.True(t, vs.IsFlaggedForDeletion())
	assert.False(t, vs.IsDeleted(), "still attached")

	require.True(t, p.DetachShader(vs))
	assert.False(t, p.DetachShader(vs))
	assert.True(t, vs.IsDeleted())

	empty := NewShader(device.StagePixel)
	assert.ErrorIs(t, empty.Compile(c), compiler.ErrCompileFailure)
	assert.False(t, empty.IsCompiled())
	assert.Equal(t, "empty source", empty.InfoLog())
}

func TestProgramDestroy(t *testing.T) {
	dev := memdevice.New()
	p := newLinked(t, dev, defaultBinaries, "vs", "ps")
	vs, ps := p.AttachedShaders()

	p.FlagForDeletion()
	assert.True(t, p.IsFlaggedForDeletion())
	p.Destroy()
	assert.Equal(t, 0, dev.Live())
	assert.False(t, p.IsLinked())
	assert.Equal(t, 0, vs.attached)
	assert.Equal(t, 0, ps.attached)
}
