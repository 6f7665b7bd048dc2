package gldevice

import (
	"testing"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/gogpu/gputypes"
	"github.com/richinsley/goangle/device"
	"github.com/stretchr/testify/assert"
)

func TestRedeclarePerVertex(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "after version and extensions",
			src:  "#version 410\n#extension GL_ARB_foo : enable\n\nvoid main() {}\n",
			want: "#version 410\n#extension GL_ARB_foo : enable\n\n" + perVertex + "void main() {}\n",
		},
		{
			name: "no preprocessor",
			src:  "void main() {}\n",
			want: perVertex + "void main() {}\n",
		},
		{
			name: "only a version line",
			src:  "#version 410",
			want: "#version 410\n" + perVertex,
		},
		{
			name: "already declared",
			src:  "#version 410\nout gl_PerVertex { vec4 gl_Position; float gl_PointSize; };\n",
			want: "#version 410\nout gl_PerVertex { vec4 gl_Position; float gl_PointSize; };\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, redeclarePerVertex(tt.src))
		})
	}
}

func TestDrawMode(t *testing.T) {
	mode, ok := drawMode(gputypes.PrimitiveTopologyTriangleList)
	assert.True(t, ok)
	assert.Equal(t, uint32(gl.TRIANGLES), mode)
	mode, ok = drawMode(gputypes.PrimitiveTopologyLineStrip)
	assert.True(t, ok)
	assert.Equal(t, uint32(gl.LINE_STRIP), mode)
}

func TestSamplerUnits(t *testing.T) {
	assert.Equal(t, 0, samplerBase(device.StagePixel))
	assert.Equal(t, textureUnits, samplerBase(device.StageVertex))
}

func TestUploadFormats(t *testing.T) {
	for f := range formats {
		if f == gputypes.TextureFormatDepth24PlusStencil8 {
			continue
		}
		assert.NotZero(t, device.FormatSize(f), "%v", f)
	}
}

func TestObjectRelease(t *testing.T) {
	var d Device
	freed := 0
	o := d.track(func() { freed++ })
	assert.Equal(t, 1, d.Live())
	o.AddRef()
	o.Release()
	assert.Zero(t, freed)
	o.Release()
	assert.Equal(t, 1, freed)
	assert.Zero(t, d.Live())
	assert.Panics(t, o.Release)
}

func TestSamplerParameters(t *testing.T) {
	assert.Equal(t, int32(gl.CLAMP_TO_EDGE), wrapMode(gputypes.AddressModeClampToEdge))
	assert.Equal(t, int32(gl.MIRRORED_REPEAT), wrapMode(gputypes.AddressModeMirrorRepeat))
	assert.Equal(t, int32(gl.REPEAT), wrapMode(gputypes.AddressModeRepeat))

	assert.Equal(t, int32(gl.NEAREST), magFilter(gputypes.FilterModeNearest))
	assert.Equal(t, int32(gl.NEAREST), minFilter(gputypes.FilterModeNearest, gputypes.MipmapFilterModeUndefined))
	assert.Equal(t, int32(gl.LINEAR_MIPMAP_NEAREST), minFilter(gputypes.FilterModeLinear, gputypes.MipmapFilterModeNearest))
	assert.Equal(t, int32(gl.NEAREST_MIPMAP_LINEAR), minFilter(gputypes.FilterModeNearest, gputypes.MipmapFilterModeLinear))
}
