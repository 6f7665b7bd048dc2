package shader

import (
	"testing"

	"github.com/richinsley/goangle/compiler/wgsl"
	"github.com/richinsley/goangle/device"
	"github.com/richinsley/goangle/device/memdevice"
	"github.com/richinsley/goangle/program"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWGSLSourcesLink(t *testing.T) {
	comp := wgsl.New()
	p := program.New(memdevice.New(), comp, program.Options{})
	for stage, src := range map[device.StageKind]string{
		device.StageVertex: VertexSource(WGSL),
		device.StagePixel:  FragmentSource(WGSL),
	} {
		s := program.NewShader(stage)
		s.SetSource(src)
		require.NoError(t, s.Compile(comp), s.InfoLog())
		require.True(t, p.AttachShader(s))
	}
	require.NoError(t, p.Link(), p.InfoLog())

	assert.NotEqual(t, -1, p.GetUniformLocation(TransformUniform))
	assert.NotEqual(t, -1, p.GetUniformLocation(TintUniform))
	assert.NotEqual(t, -1, p.SamplerLocation(CheckerSampler))
	assert.Equal(t, -1, p.GetAttributeLocation("index"), "builtins are not attributes")
}

func TestGLSLESSourcesDeclareSharedNames(t *testing.T) {
	assert.Contains(t, VertexSource(GLSLES), "uniform mat4 "+TransformUniform)
	assert.Contains(t, FragmentSource(GLSLES), "uniform vec4 "+TintUniform)
	assert.Contains(t, FragmentSource(GLSLES), "uniform sampler2D "+CheckerSampler)
	assert.Equal(t, "glsles", GLSLES.String())
}
