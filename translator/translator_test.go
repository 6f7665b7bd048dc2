package translator

import (
	"testing"

	"github.com/richinsley/goangle/compiler"
	"github.com/richinsley/goangle/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vertexSource = `#version 300 es
precision highp float;

// uniform float commentedOut;
layout(location = 0) in vec2 position;
in highp vec3 color;

uniform mat4 transform;
uniform highp float scale, bias[3];
/* uniform vec2 alsoCommented; */
uniform sampler2D heightMap;

out vec3 vColor;

void main() {
	vColor = color;
	gl_Position = transform * vec4(position * scale, 0.0, 1.0);
}
`

func TestReflectVertexSource(t *testing.T) {
	refl, err := reflectSource(vertexSource, device.StageVertex, map[string]string{"transform": "_utransform"})
	require.NoError(t, err)

	assert.Equal(t, []compiler.Input{
		{Name: "position", Type: device.TypeVec2},
		{Name: "color", Type: device.TypeVec3},
	}, refl.Inputs)

	assert.Equal(t, []compiler.Constant{
		{Name: "transform", Type: device.TypeMat4, Offset: 0, ArrayLength: 1, Symbol: "_utransform"},
		{Name: "scale", Type: device.TypeFloat, Offset: 64, ArrayLength: 1},
		{Name: "bias", Type: device.TypeFloat, Offset: 80, ArrayLength: 3},
		{Name: "heightMap", Type: device.TypeSampler2D, Offset: 0, ArrayLength: 1},
	}, refl.Constants)
}

func TestReflectFragmentSource(t *testing.T) {
	src := `#version 300 es
precision mediump float;
in vec3 vColor;
uniform samplerCube sky;
uniform sampler2D albedo[2];
uniform vec4 tint;
out vec4 fragColor;
void main() { fragColor = vec4(vColor, 1.0) * tint; }
`
	refl, err := reflectSource(src, device.StagePixel, nil)
	require.NoError(t, err)
	assert.Empty(t, refl.Inputs, "fragment inputs are varyings")
	assert.Equal(t, []compiler.Constant{
		{Name: "sky", Type: device.TypeSamplerCube, Offset: 0, ArrayLength: 1},
		{Name: "albedo", Type: device.TypeSampler2D, Offset: 1, ArrayLength: 2},
		{Name: "tint", Type: device.TypeVec4, Offset: 0, ArrayLength: 1},
	}, refl.Constants)
}

func TestReflectUnsupported(t *testing.T) {
	_, err := reflectSource("uniform sampler3D volume;\n", device.StagePixel, nil)
	var ce *compiler.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Log, "sampler3D")
}

func TestStageName(t *testing.T) {
	name, ok := stageName(device.StagePixel)
	assert.True(t, ok)
	assert.Equal(t, "fragment", name)
	_, ok = stageName(device.StageGeometry)
	assert.False(t, ok)
}
