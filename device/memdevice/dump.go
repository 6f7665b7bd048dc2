package memdevice

import (
	"image"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/richinsley/goangle/device"
)

// StageDump is a plain copy of one stage's bindings.
type StageDump struct {
	Shader    device.Object
	Instances []device.Object
	Samplers  [device.SamplerSlots]device.Object
	Resources [device.ResourceSlots]device.Object
	Constants [device.ConstantBufferSlots]device.Object
}

// Dump is a plain copy of the whole pipeline state. Taking it adds no
// references, and two dumps compare equal with == semantics on every field.
type Dump struct {
	Blend        device.Object
	BlendFactor  [4]float32
	SampleMask   uint32
	DepthStencil device.Object
	StencilRef   uint32
	Rasterizer   device.Object
	RenderTarget [device.RenderTargetSlots]device.Object
	DepthTarget  device.Object
	Topology     gputypes.PrimitiveTopology
	InputLayout  device.Object
	Index        device.Object
	IndexFormat  gputypes.IndexFormat
	IndexOffset  uint32
	Vertex       [device.VertexBufferSlots]device.Object
	Strides      [device.VertexBufferSlots]uint32
	Offsets      [device.VertexBufferSlots]uint32
	Viewports    []device.Viewport
	Scissors     []image.Rectangle
	Stages       map[device.StageKind]StageDump
}

// Dump reads the current state without going through the Context getters.
func (c *Context) Dump() Dump {
	d := Dump{
		Blend:        c.blend,
		BlendFactor:  c.blendFactor,
		SampleMask:   c.sampleMask,
		DepthStencil: c.depthStencil,
		StencilRef:   c.stencilRef,
		Rasterizer:   c.rasterizer,
		RenderTarget: c.rtvs,
		DepthTarget:  c.dsv,
		Topology:     c.topology,
		InputLayout:  c.layout,
		Index:        c.index,
		IndexFormat:  c.indexFormat,
		IndexOffset:  c.indexOffset,
		Vertex:       c.vbs,
		Strides:      c.vbStrides,
		Offsets:      c.vbOffsets,
		Viewports:    slices.Clone(c.viewports),
		Scissors:     slices.Clone(c.scissors),
		Stages:       make(map[device.StageKind]StageDump, len(c.stages)),
	}
	for k, s := range c.stages {
		d.Stages[k] = StageDump{
			Shader:    s.shader,
			Instances: slices.Clone(s.instances),
			Samplers:  s.samplers,
			Resources: s.resources,
			Constants: s.cbs,
		}
	}
	return d
}
