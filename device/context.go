package device

import (
	"image"

	"github.com/gogpu/gputypes"
)

// Slot counts of the pipeline state vocabulary.
// Backends may expose fewer slots than these maxima.
const (
	RenderTargetSlots   = 8
	VertexBufferSlots   = 32
	ViewportSlots       = 16
	SamplerSlots        = 16
	ResourceSlots       = 128
	ConstantBufferSlots = 14
	ClassInstanceSlots  = 256
)

// Viewport is a pipeline viewport.
type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

// Context is the immediate context of a device.
//
// Every getter that returns an Object adds one reference to it on behalf of
// the caller. Slice getters fill the provided slices from slot 0 and leave
// unbound slots nil. Setters bind exactly the given slots starting at 0.
type Context interface {
	BlendState() (state Object, factor [4]float32, sampleMask uint32)
	SetBlendState(state Object, factor [4]float32, sampleMask uint32)

	DepthStencilState() (state Object, stencilRef uint32)
	SetDepthStencilState(state Object, stencilRef uint32)

	RasterizerState() Object
	SetRasterizerState(state Object)

	RenderTargets(views []Object) (depth Object)
	SetRenderTargets(views []Object, depth Object)

	PrimitiveTopology() gputypes.PrimitiveTopology
	SetPrimitiveTopology(topology gputypes.PrimitiveTopology)

	InputLayout() Object
	SetInputLayout(layout Object)

	IndexBuffer() (buf Object, format gputypes.IndexFormat, offset uint32)
	SetIndexBuffer(buf Object, format gputypes.IndexFormat, offset uint32)

	VertexBuffers(bufs []Object, strides, offsets []uint32)
	SetVertexBuffers(bufs []Object, strides, offsets []uint32)

	Viewports() []Viewport
	SetViewports(vps []Viewport)

	ScissorRects() []image.Rectangle
	SetScissorRects(rects []image.Rectangle)

	// Stage returns the accessor of a programmable stage, or nil if the
	// device has no such stage.
	Stage(kind StageKind) StageState

	Draw(vertexCount, firstVertex int) error
	DrawIndexed(indexCount, firstIndex, baseVertex int) error
}

// StageLimits are the per-stage slot counts of a device.
type StageLimits struct {
	Samplers        int
	Resources       int
	ConstantBuffers int
}

// StageState accesses the bindings of one programmable stage.
type StageState interface {
	Kind() StageKind
	Limits() StageLimits

	Shader() (shader Object, instances []Object)
	SetShader(shader Object, instances []Object)

	Samplers(dst []Object)
	SetSamplers(src []Object)

	ShaderResources(dst []Object)
	SetShaderResources(src []Object)

	ConstantBuffers(dst []Object)
	SetConstantBuffers(src []Object)
}
