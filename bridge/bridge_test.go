package bridge

import (
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/richinsley/goangle/compiler"
	"github.com/richinsley/goangle/device"
	"github.com/richinsley/goangle/device/memdevice"
	"github.com/richinsley/goangle/program"
	"github.com/richinsley/goangle/texture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var binaries = map[string]*compiler.Binary{
	"vs": {
		Stage: device.StageVertex,
		Reflection: compiler.ReflectionTable{
			Inputs:    []compiler.Input{{Name: "position", Type: device.TypeVec2}},
			Constants: []compiler.Constant{{Name: "scale", Type: device.TypeFloat, Offset: 0, ArrayLength: 1}},
		},
	},
	"ps": {
		Stage: device.StagePixel,
		Reflection: compiler.ReflectionTable{
			Constants: []compiler.Constant{
				{Name: "tint", Type: device.TypeVec4, Offset: 0, ArrayLength: 1},
				{Name: "tex", Type: device.TypeSampler2D, Offset: 2, ArrayLength: 1},
			},
		},
	},
}

var scripted = compiler.Func(func(src string, profile compiler.Profile) (*compiler.Binary, error) {
	if b, ok := binaries[src]; ok {
		return b, nil
	}
	stage, _ := profile.Stage()
	return nil, &compiler.CompileError{Stage: stage, Log: "unknown source"}
})

func linkedProgram(t *testing.T, b *Bridge) *program.Program {
	t.Helper()
	p := b.NewProgram(scripted, program.Options{})
	for stage, src := range map[device.StageKind]string{device.StageVertex: "vs", device.StagePixel: "ps"} {
		s := program.NewShader(stage)
		s.SetSource(src)
		require.NoError(t, s.Compile(scripted))
		require.True(t, p.AttachShader(s))
	}
	require.NoError(t, p.Link())
	return p
}

func TestRenderingRestoresHostState(t *testing.T) {
	dev := memdevice.New()
	ctx := dev.Context()
	hostShader := dev.NewObject("host-vs")
	ctx.Stage(device.StageVertex).SetShader(hostShader, nil)
	hostShader.Release()
	ctx.SetViewports([]device.Viewport{{Width: 800, Height: 600, MaxDepth: 1}})
	host := ctx.Dump()

	b := New(dev)
	p := linkedProgram(t, b)

	require.NoError(t, b.BeginRendering())
	assert.ErrorIs(t, b.BeginRendering(), ErrAlreadyRendering)
	assert.True(t, b.Rendering())

	require.NoError(t, b.UseProgram(p))
	ctx.SetViewports([]device.Viewport{{Width: 64, Height: 64}})
	require.NoError(t, b.Draw(3, 0))
	require.Len(t, ctx.Draws, 1)
	assert.Equal(t, device.Object(p.Executable(device.StageVertex)), ctx.Draws[0].Vertex)
	assert.Equal(t, device.Object(p.Executable(device.StagePixel)), ctx.Draws[0].Pixel)

	require.NoError(t, b.EndRendering())
	assert.Equal(t, host, ctx.Dump())
	assert.ErrorIs(t, b.EndRendering(), ErrNotRendering)
}

func TestDrawPushesUniformsAndTextures(t *testing.T) {
	dev := memdevice.New()
	b := New(dev)
	p := linkedProgram(t, b)

	tex := b.NewTexture(texture.TwoD)
	require.NoError(t, tex.SetMinFilter(texture.Nearest))
	require.NoError(t, tex.SetImage(0, 0, texture.RGBA, 1, 1, texture.RGBA, texture.UnsignedByte, []byte{1, 2, 3, 4}))
	require.NoError(t, b.BindTexture(1, tex))
	assert.ErrorIs(t, b.BindTexture(program.MaxTextureImageUnits, tex), ErrInvalidUnit)
	require.True(t, p.SetSamplerUnit(p.SamplerLocation("tex"), 1))
	require.True(t, p.SetUniform1fv(p.GetUniformLocation("scale"), 1, []float32{2}))

	assert.ErrorIs(t, b.Draw(3, 0), ErrNoProgram)
	require.NoError(t, b.UseProgram(p))
	require.NoError(t, b.Draw(3, 0))

	vs := p.Executable(device.StageVertex).(*memdevice.Shader)
	assert.Equal(t, []byte{0, 0, 0, 0x40}, vs.Constants(0, 4))

	srv := dev.Context().Dump().Stages[device.StagePixel].Resources[2]
	require.NotNil(t, srv)
	view := srv.(*memdevice.View)
	assert.Same(t, tex.Native(), device.Texture(view.Texture))
	assert.Equal(t, 1, view.Refs(), "only the context holds the view")
}

func TestUseProgramRefusesFailedLink(t *testing.T) {
	b := New(memdevice.New())
	p := linkedProgram(t, b)
	_, ps := p.AttachedShaders()
	ps.SetSource("broken")
	require.NoError(t, ps.Compile(scripted))
	require.Error(t, p.Link())

	assert.ErrorIs(t, b.UseProgram(p), ErrNotLinked)
	assert.Nil(t, b.Current())
}

func TestDeleteCurrentProgram(t *testing.T) {
	dev := memdevice.New()
	b := New(dev)
	p := linkedProgram(t, b)
	require.NoError(t, b.UseProgram(p))

	b.DeleteProgram(p)
	assert.True(t, p.IsFlaggedForDeletion())
	assert.True(t, p.IsLinked(), "still current")

	require.NoError(t, b.UseProgram(nil))
	assert.False(t, p.IsLinked())
	assert.Equal(t, 0, dev.Live())

	other := linkedProgram(t, b)
	b.DeleteProgram(other)
	assert.False(t, other.IsLinked(), "not current, destroyed at once")
}

func TestDeviceLossAndRestore(t *testing.T) {
	dev := memdevice.New()
	b := New(dev)
	p := linkedProgram(t, b)
	tex := b.NewTexture(texture.TwoD)
	require.NoError(t, tex.SetMinFilter(texture.Linear))
	require.NoError(t, tex.SetImage(0, 0, texture.RGBA, 1, 1, texture.RGBA, texture.UnsignedByte, nil))
	require.NoError(t, b.BindTexture(0, tex))
	require.NoError(t, b.UseProgram(p))
	require.NoError(t, b.BeginRendering())
	require.NoError(t, b.Draw(3, 0))

	dev.Lose()
	b.NotifyDeviceLost()
	assert.Nil(t, p.Executable(device.StageVertex))
	assert.Nil(t, tex.Native())
	assert.False(t, b.Rendering())

	fresh := memdevice.New()
	require.NoError(t, b.RestoreDevice(fresh))
	assert.Same(t, fresh, b.Device())
	assert.True(t, p.IsLinked())
	assert.Same(t, p, b.Current())

	require.NoError(t, b.Draw(3, 0))
	assert.NotNil(t, tex.Native())
	require.Len(t, fresh.Context().Draws, 1)
	assert.Equal(t, device.Object(p.Executable(device.StagePixel)), fresh.Context().Draws[0].Pixel)
}

func TestDeleteTexture(t *testing.T) {
	dev := memdevice.New()
	b := New(dev)
	tex := b.NewTexture(texture.TwoD)
	require.NoError(t, tex.SetMinFilter(texture.Linear))
	require.NoError(t, tex.SetImage(0, 0, texture.RGBA, 1, 1, texture.RGBA, texture.UnsignedByte, nil))
	_, err := tex.GetTexture()
	require.NoError(t, err)
	require.NoError(t, b.BindTexture(3, tex))

	b.DeleteTexture(tex)
	assert.Equal(t, 0, dev.Live())
	assert.Nil(t, b.units[3])
}

func TestSecondScopeRebindsProgram(t *testing.T) {
	dev := memdevice.New()
	ctx := dev.Context()
	b := New(dev)
	p := linkedProgram(t, b)

	require.NoError(t, b.BeginRendering())
	require.NoError(t, b.UseProgram(p))
	require.NoError(t, b.Draw(3, 0))
	require.NoError(t, b.EndRendering())
	assert.Nil(t, ctx.Dump().Stages[device.StageVertex].Shader, "host state has no shader")

	require.NoError(t, b.BeginRendering())
	require.NoError(t, b.Draw(3, 0))
	require.Len(t, ctx.Draws, 2)
	assert.Equal(t, device.Object(p.Executable(device.StageVertex)), ctx.Draws[1].Vertex)
	assert.Equal(t, device.Object(p.Executable(device.StagePixel)), ctx.Draws[1].Pixel)
	require.NoError(t, b.EndRendering())
}

func TestDrawAfterRelinkUsesNewStages(t *testing.T) {
	dev := memdevice.New()
	ctx := dev.Context()
	b := New(dev)
	p := linkedProgram(t, b)
	require.NoError(t, b.UseProgram(p))
	old := p.Executable(device.StageVertex)

	require.NoError(t, p.Link())
	require.NotSame(t, old, p.Executable(device.StageVertex))
	require.True(t, p.SetUniform1fv(p.GetUniformLocation("scale"), 1, []float32{2}))
	require.NoError(t, b.Draw(3, 0))

	require.Len(t, ctx.Draws, 1)
	assert.Equal(t, device.Object(p.Executable(device.StageVertex)), ctx.Draws[0].Vertex)
	assert.Equal(t, device.Object(p.Executable(device.StagePixel)), ctx.Draws[0].Pixel)
	vs := p.Executable(device.StageVertex).(*memdevice.Shader)
	assert.Equal(t, []byte{0, 0, 0, 0x40}, vs.Constants(0, 4))
}

func TestDrawBindsSamplerState(t *testing.T) {
	dev := memdevice.New()
	b := New(dev)
	p := linkedProgram(t, b)

	tex := b.NewTexture(texture.TwoD)
	require.NoError(t, tex.SetMinFilter(texture.Nearest))
	require.NoError(t, tex.SetMagFilter(texture.Nearest))
	require.NoError(t, tex.SetWrapS(texture.ClampToEdge))
	require.NoError(t, tex.SetWrapT(texture.MirroredRepeat))
	require.NoError(t, tex.SetImage(0, 0, texture.RGBA, 1, 1, texture.RGBA, texture.UnsignedByte, []byte{1, 2, 3, 4}))
	require.NoError(t, b.BindTexture(0, tex))
	require.NoError(t, b.UseProgram(p))
	require.NoError(t, b.Draw(3, 0))

	smp, ok := dev.Context().Dump().Stages[device.StagePixel].Samplers[2].(*memdevice.Sampler)
	require.True(t, ok, "sampler bound at the register of tex")
	assert.Equal(t, device.SamplerDesc{
		AddressU:  gputypes.AddressModeClampToEdge,
		AddressV:  gputypes.AddressModeMirrorRepeat,
		MagFilter: gputypes.FilterModeNearest,
		MinFilter: gputypes.FilterModeNearest,
	}, smp.Desc)

	require.NoError(t, b.Draw(3, 0))
	assert.Same(t, smp, dev.Context().Dump().Stages[device.StagePixel].Samplers[2], "one sampler object per state")

	b.Close()
	assert.Equal(t, 1, smp.Refs(), "the context keeps its own reference")
}

func TestDrawClearsUnusedSlots(t *testing.T) {
	dev := memdevice.New()
	ctx := dev.Context()
	b := New(dev)
	p := linkedProgram(t, b)

	stray := dev.NewObject("srv")
	strays := make([]device.Object, 6)
	strays[5] = stray
	ctx.Stage(device.StagePixel).SetShaderResources(strays)
	ctx.Stage(device.StageVertex).SetShaderResources(strays)
	stray.Release()

	require.NoError(t, b.UseProgram(p))
	require.NoError(t, b.Draw(3, 0))
	assert.Nil(t, ctx.Dump().Stages[device.StagePixel].Resources[5])
	assert.Nil(t, ctx.Dump().Stages[device.StageVertex].Resources[5])
	assert.Zero(t, stray.Refs())
}
