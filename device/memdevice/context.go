package memdevice

import (
	"image"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/richinsley/goangle/device"
)

// bind stores o in slot, holding a reference for as long as it stays bound.
func bind(slot *device.Object, o device.Object) {
	if o != nil {
		o.AddRef()
	}
	if *slot != nil {
		(*slot).Release()
	}
	*slot = o
}

// ref returns o with a reference added for the caller.
func ref(o device.Object) device.Object {
	if o != nil {
		o.AddRef()
	}
	return o
}

// DrawCall records one draw issued on the context.
type DrawCall struct {
	Indexed bool
	Count   int
	Vertex  device.Object
	Pixel   device.Object
}

// Context is the immediate context of a Device.
type Context struct {
	dev *Device

	blend       device.Object
	blendFactor [4]float32
	sampleMask  uint32

	depthStencil device.Object
	stencilRef   uint32

	rasterizer device.Object

	rtvs [device.RenderTargetSlots]device.Object
	dsv  device.Object

	topology gputypes.PrimitiveTopology
	layout   device.Object

	index       device.Object
	indexFormat gputypes.IndexFormat
	indexOffset uint32

	vbs       [device.VertexBufferSlots]device.Object
	vbStrides [device.VertexBufferSlots]uint32
	vbOffsets [device.VertexBufferSlots]uint32

	viewports []device.Viewport
	scissors  []image.Rectangle

	stages map[device.StageKind]*stageState

	// Draws lists every draw issued so far.
	Draws []DrawCall
}

func newContext(d *Device) *Context {
	c := &Context{
		dev:        d,
		sampleMask: 0xffffffff,
		topology:   gputypes.PrimitiveTopologyTriangleList,
		stages:     make(map[device.StageKind]*stageState),
	}
	for _, k := range device.Stages {
		c.stages[k] = newStageState(k)
	}
	return c
}

func (c *Context) BlendState() (device.Object, [4]float32, uint32) {
	return ref(c.blend), c.blendFactor, c.sampleMask
}

func (c *Context) SetBlendState(state device.Object, factor [4]float32, sampleMask uint32) {
	bind(&c.blend, state)
	c.blendFactor = factor
	c.sampleMask = sampleMask
}

func (c *Context) DepthStencilState() (device.Object, uint32) {
	return ref(c.depthStencil), c.stencilRef
}

func (c *Context) SetDepthStencilState(state device.Object, stencilRef uint32) {
	bind(&c.depthStencil, state)
	c.stencilRef = stencilRef
}

func (c *Context) RasterizerState() device.Object { return ref(c.rasterizer) }

func (c *Context) SetRasterizerState(state device.Object) { bind(&c.rasterizer, state) }

func (c *Context) RenderTargets(views []device.Object) device.Object {
	for i := range views {
		views[i] = nil
		if i < len(c.rtvs) {
			views[i] = ref(c.rtvs[i])
		}
	}
	return ref(c.dsv)
}

func (c *Context) SetRenderTargets(views []device.Object, depth device.Object) {
	for i := range c.rtvs {
		var v device.Object
		if i < len(views) {
			v = views[i]
		}
		bind(&c.rtvs[i], v)
	}
	bind(&c.dsv, depth)
}

func (c *Context) PrimitiveTopology() gputypes.PrimitiveTopology { return c.topology }

func (c *Context) SetPrimitiveTopology(t gputypes.PrimitiveTopology) { c.topology = t }

func (c *Context) InputLayout() device.Object { return ref(c.layout) }

func (c *Context) SetInputLayout(layout device.Object) { bind(&c.layout, layout) }

func (c *Context) IndexBuffer() (device.Object, gputypes.IndexFormat, uint32) {
	return ref(c.index), c.indexFormat, c.indexOffset
}

func (c *Context) SetIndexBuffer(buf device.Object, format gputypes.IndexFormat, offset uint32) {
	bind(&c.index, buf)
	c.indexFormat = format
	c.indexOffset = offset
}

func (c *Context) VertexBuffers(bufs []device.Object, strides, offsets []uint32) {
	for i := range bufs {
		bufs[i] = nil
		if i < len(c.vbs) {
			bufs[i] = ref(c.vbs[i])
		}
	}
	copy(strides, c.vbStrides[:])
	copy(offsets, c.vbOffsets[:])
}

func (c *Context) SetVertexBuffers(bufs []device.Object, strides, offsets []uint32) {
	for i := 0; i < len(bufs) && i < len(c.vbs); i++ {
		bind(&c.vbs[i], bufs[i])
		if i < len(strides) {
			c.vbStrides[i] = strides[i]
		}
		if i < len(offsets) {
			c.vbOffsets[i] = offsets[i]
		}
	}
}

func (c *Context) Viewports() []device.Viewport { return slices.Clone(c.viewports) }

func (c *Context) SetViewports(vps []device.Viewport) {
	c.viewports = slices.Clone(vps[:min(len(vps), device.ViewportSlots)])
}

func (c *Context) ScissorRects() []image.Rectangle { return slices.Clone(c.scissors) }

func (c *Context) SetScissorRects(rects []image.Rectangle) {
	c.scissors = slices.Clone(rects[:min(len(rects), device.ViewportSlots)])
}

func (c *Context) Stage(kind device.StageKind) device.StageState {
	if s, ok := c.stages[kind]; ok {
		return s
	}
	return nil
}

func (c *Context) draw(indexed bool, count int) error {
	if c.dev.lost {
		return device.ErrDeviceLost
	}
	d := DrawCall{Indexed: indexed, Count: count}
	if s, ok := c.stages[device.StageVertex]; ok {
		d.Vertex = s.shader
	}
	if s, ok := c.stages[device.StagePixel]; ok {
		d.Pixel = s.shader
	}
	c.Draws = append(c.Draws, d)
	return nil
}

func (c *Context) Draw(vertexCount, firstVertex int) error { return c.draw(false, vertexCount) }

func (c *Context) DrawIndexed(indexCount, firstIndex, baseVertex int) error {
	return c.draw(true, indexCount)
}

type stageState struct {
	kind      device.StageKind
	shader    device.Object
	instances []device.Object
	samplers  [device.SamplerSlots]device.Object
	resources [device.ResourceSlots]device.Object
	cbs       [device.ConstantBufferSlots]device.Object
}

func newStageState(k device.StageKind) *stageState { return &stageState{kind: k} }

func (s *stageState) Kind() device.StageKind { return s.kind }

func (s *stageState) Limits() device.StageLimits {
	return device.StageLimits{
		Samplers:        len(s.samplers),
		Resources:       len(s.resources),
		ConstantBuffers: len(s.cbs),
	}
}

func (s *stageState) Shader() (device.Object, []device.Object) {
	var inst []device.Object
	for _, o := range s.instances {
		inst = append(inst, ref(o))
	}
	return ref(s.shader), inst
}

func (s *stageState) SetShader(shader device.Object, instances []device.Object) {
	bind(&s.shader, shader)
	for _, o := range instances {
		if o != nil {
			o.AddRef()
		}
	}
	for _, o := range s.instances {
		if o != nil {
			o.Release()
		}
	}
	s.instances = nil
	if len(instances) > 0 {
		s.instances = slices.Clone(instances)
	}
}

func getSlots(dst []device.Object, slots []device.Object) {
	for i := range dst {
		dst[i] = nil
		if i < len(slots) {
			dst[i] = ref(slots[i])
		}
	}
}

func setSlots(slots []device.Object, src []device.Object) {
	for i := 0; i < len(src) && i < len(slots); i++ {
		bind(&slots[i], src[i])
	}
}

func (s *stageState) Samplers(dst []device.Object)        { getSlots(dst, s.samplers[:]) }
func (s *stageState) SetSamplers(src []device.Object)     { setSlots(s.samplers[:], src) }
func (s *stageState) ShaderResources(dst []device.Object) { getSlots(dst, s.resources[:]) }
func (s *stageState) SetShaderResources(src []device.Object) {
	setSlots(s.resources[:], src)
}
func (s *stageState) ConstantBuffers(dst []device.Object)    { getSlots(dst, s.cbs[:]) }
func (s *stageState) SetConstantBuffers(src []device.Object) { setSlots(s.cbs[:], src) }
