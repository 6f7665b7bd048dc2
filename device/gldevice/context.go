package gldevice

import (
	"fmt"
	"image"
	"slices"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/gogpu/gputypes"
	"github.com/richinsley/goangle/device"
)

// textureUnits is the number of texture units each stage may use.
const textureUnits = device.SamplerSlots

func bind(slot *device.Object, o device.Object) {
	if o != nil {
		o.AddRef()
	}
	if *slot != nil {
		(*slot).Release()
	}
	*slot = o
}

func ref(o device.Object) device.Object {
	if o != nil {
		o.AddRef()
	}
	return o
}

// Context is the immediate context of a Device. It keeps every binding on
// the Go side, so getters never query GL, and applies the bindings GL has an
// equivalent for as they are set.
//
// Input layouts, vertex buffers, blend, depth-stencil and rasterizer objects
// are held but not interpreted.
type Context struct {
	dev      *Device
	pipeline uint32
	vao      uint32
	fbo      uint32

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

	vertex *stageState
	pixel  *stageState
}

var _ device.Context = (*Context)(nil)

func newContext(d *Device) (*Context, error) {
	c := &Context{
		dev:        d,
		sampleMask: 0xffffffff,
		topology:   gputypes.PrimitiveTopologyTriangleList,
	}
	c.vertex = &stageState{ctx: c, kind: device.StageVertex, bit: gl.VERTEX_SHADER_BIT}
	c.pixel = &stageState{ctx: c, kind: device.StagePixel, bit: gl.FRAGMENT_SHADER_BIT}
	gl.GenProgramPipelines(1, &c.pipeline)
	gl.GenVertexArrays(1, &c.vao)
	gl.GenFramebuffers(1, &c.fbo)
	if err := glError("create context"); err != nil {
		c.deleteNames()
		return nil, err
	}
	return c, nil
}

func (c *Context) deleteNames() {
	gl.DeleteProgramPipelines(1, &c.pipeline)
	gl.DeleteVertexArrays(1, &c.vao)
	gl.DeleteFramebuffers(1, &c.fbo)
}

func (c *Context) close() {
	for _, s := range []*stageState{c.vertex, c.pixel} {
		s.SetShader(nil, nil)
		s.SetSamplers(make([]device.Object, len(s.samplers)))
		s.SetShaderResources(make([]device.Object, len(s.resources)))
	}
	c.SetBlendState(nil, [4]float32{}, 0xffffffff)
	c.SetDepthStencilState(nil, 0)
	c.SetRasterizerState(nil)
	c.SetRenderTargets(nil, nil)
	c.SetInputLayout(nil)
	c.SetIndexBuffer(nil, 0, 0)
	c.SetVertexBuffers(make([]device.Object, len(c.vbs)), nil, nil)
	if !c.dev.lost {
		c.deleteNames()
	}
}

func (c *Context) BlendState() (device.Object, [4]float32, uint32) {
	return ref(c.blend), c.blendFactor, c.sampleMask
}

func (c *Context) SetBlendState(state device.Object, factor [4]float32, sampleMask uint32) {
	bind(&c.blend, state)
	c.blendFactor = factor
	c.sampleMask = sampleMask
	if c.dev.lost {
		return
	}
	gl.BlendColor(factor[0], factor[1], factor[2], factor[3])
	gl.SampleMaski(0, sampleMask)
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

// SetRenderTargets attaches the views to the context's framebuffer, or binds
// the default framebuffer when every slot is empty.
func (c *Context) SetRenderTargets(views []device.Object, depth device.Object) {
	for i := range c.rtvs {
		var v device.Object
		if i < len(views) {
			v = views[i]
		}
		bind(&c.rtvs[i], v)
	}
	bind(&c.dsv, depth)
	if !c.dev.lost {
		c.applyRenderTargets()
	}
}

func attach(attachment uint32, o device.Object) {
	if v, ok := o.(*View); ok {
		gl.FramebufferTexture2D(gl.DRAW_FRAMEBUFFER, attachment, v.tex.faceTarget(v.face), v.tex.id, int32(v.level))
		return
	}
	gl.FramebufferTexture2D(gl.DRAW_FRAMEBUFFER, attachment, gl.TEXTURE_2D, 0, 0)
}

func (c *Context) applyRenderTargets() {
	empty := c.dsv == nil
	for _, v := range c.rtvs {
		empty = empty && v == nil
	}
	if empty {
		gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
		return
	}
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, c.fbo)
	var drawBuffers [device.RenderTargetSlots]uint32
	for i, v := range c.rtvs {
		attach(gl.COLOR_ATTACHMENT0+uint32(i), v)
		drawBuffers[i] = gl.NONE
		if v != nil {
			drawBuffers[i] = gl.COLOR_ATTACHMENT0 + uint32(i)
		}
	}
	gl.DrawBuffers(int32(len(drawBuffers)), &drawBuffers[0])
	attach(gl.DEPTH_STENCIL_ATTACHMENT, c.dsv)
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
	if c.dev.lost {
		return
	}
	for i, vp := range c.viewports {
		gl.ViewportIndexedf(uint32(i), vp.X, vp.Y, vp.Width, vp.Height)
		gl.DepthRangeIndexed(uint32(i), float64(vp.MinDepth), float64(vp.MaxDepth))
	}
}

func (c *Context) ScissorRects() []image.Rectangle { return slices.Clone(c.scissors) }

// SetScissorRects enables the scissor test for the given rectangles, or
// disables it when there are none.
func (c *Context) SetScissorRects(rects []image.Rectangle) {
	c.scissors = slices.Clone(rects[:min(len(rects), device.ViewportSlots)])
	if c.dev.lost {
		return
	}
	if len(c.scissors) == 0 {
		gl.Disable(gl.SCISSOR_TEST)
		return
	}
	gl.Enable(gl.SCISSOR_TEST)
	for i, r := range c.scissors {
		gl.ScissorIndexed(uint32(i), int32(r.Min.X), int32(r.Min.Y), int32(r.Dx()), int32(r.Dy()))
	}
}

// Stage returns the vertex or pixel stage. GL stages beyond those two are
// not exposed.
func (c *Context) Stage(kind device.StageKind) device.StageState {
	switch kind {
	case device.StageVertex:
		return c.vertex
	case device.StagePixel:
		return c.pixel
	}
	return nil
}

func drawMode(t gputypes.PrimitiveTopology) (uint32, bool) {
	switch t {
	case gputypes.PrimitiveTopologyPointList:
		return gl.POINTS, true
	case gputypes.PrimitiveTopologyLineList:
		return gl.LINES, true
	case gputypes.PrimitiveTopologyLineStrip:
		return gl.LINE_STRIP, true
	case gputypes.PrimitiveTopologyTriangleList:
		return gl.TRIANGLES, true
	case gputypes.PrimitiveTopologyTriangleStrip:
		return gl.TRIANGLE_STRIP, true
	}
	return 0, false
}

func (c *Context) prepareDraw() (uint32, error) {
	if c.dev.lost {
		return 0, device.ErrDeviceLost
	}
	mode, ok := drawMode(c.topology)
	if !ok {
		return 0, fmt.Errorf("gldevice: topology %v: %w", c.topology, device.ErrUnsupported)
	}
	gl.UseProgram(0)
	gl.BindProgramPipeline(c.pipeline)
	gl.BindVertexArray(c.vao)
	return mode, nil
}

func (c *Context) Draw(vertexCount, firstVertex int) error {
	mode, err := c.prepareDraw()
	if err != nil {
		return err
	}
	gl.DrawArrays(mode, int32(firstVertex), int32(vertexCount))
	return glError("draw")
}

// DrawIndexed draws with the bound index buffer, which must come from
// Device.NewBuffer.
func (c *Context) DrawIndexed(indexCount, firstIndex, baseVertex int) error {
	mode, err := c.prepareDraw()
	if err != nil {
		return err
	}
	buf, ok := c.index.(*Buffer)
	if !ok {
		return fmt.Errorf("gldevice: draw indexed without a gldevice index buffer: %w", device.ErrUnsupported)
	}
	typ, size := uint32(gl.UNSIGNED_SHORT), 2
	if c.indexFormat == gputypes.IndexFormatUint32 {
		typ, size = gl.UNSIGNED_INT, 4
	}
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, buf.id)
	gl.DrawElementsBaseVertex(mode, int32(indexCount), typ, gl.PtrOffset(int(c.indexOffset)+firstIndex*size), int32(baseVertex))
	return glError("draw indexed")
}

type stageState struct {
	ctx       *Context
	kind      device.StageKind
	bit       uint32
	shader    device.Object
	instances []device.Object
	samplers  [textureUnits]device.Object
	resources [textureUnits]device.Object
}

func (s *stageState) Kind() device.StageKind { return s.kind }

func (s *stageState) Limits() device.StageLimits {
	return device.StageLimits{Samplers: len(s.samplers), Resources: len(s.resources)}
}

func (s *stageState) Shader() (device.Object, []device.Object) {
	var inst []device.Object
	for _, o := range s.instances {
		inst = append(inst, ref(o))
	}
	return ref(s.shader), inst
}

// SetShader attaches a *Shader of this stage to the context's pipeline.
// Class instances are held but have no GL meaning.
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
	if s.ctx.dev.lost {
		return
	}
	var prog uint32
	if sh, ok := shader.(*Shader); ok {
		prog = sh.program
	}
	gl.UseProgramStages(s.ctx.pipeline, s.bit, prog)
}

func getSlots(dst []device.Object, slots []device.Object) {
	for i := range dst {
		dst[i] = nil
		if i < len(slots) {
			dst[i] = ref(slots[i])
		}
	}
}

func setSlots(slots []device.Object, src []device.Object) int {
	n := min(len(src), len(slots))
	for i := range n {
		bind(&slots[i], src[i])
	}
	return n
}

func (s *stageState) Samplers(dst []device.Object) { getSlots(dst, s.samplers[:]) }

// SetSamplers binds each sampler object to the texture unit of its slot.
func (s *stageState) SetSamplers(src []device.Object) {
	n := setSlots(s.samplers[:], src)
	if s.ctx.dev.lost {
		return
	}
	base := samplerBase(s.kind)
	for i := range n {
		var id uint32
		if smp, ok := s.samplers[i].(*Sampler); ok {
			id = smp.id
		}
		gl.BindSampler(uint32(base+i), id)
	}
}

func (s *stageState) ShaderResources(dst []device.Object) { getSlots(dst, s.resources[:]) }

// SetShaderResources binds each view to the texture unit of its slot.
func (s *stageState) SetShaderResources(src []device.Object) {
	n := setSlots(s.resources[:], src)
	if s.ctx.dev.lost {
		return
	}
	base := samplerBase(s.kind)
	for i := range n {
		gl.ActiveTexture(gl.TEXTURE0 + uint32(base+i))
		if v, ok := s.resources[i].(*View); ok {
			gl.BindTexture(v.tex.target, v.tex.id)
			continue
		}
		gl.BindTexture(gl.TEXTURE_2D, 0)
		gl.BindTexture(gl.TEXTURE_CUBE_MAP, 0)
	}
	gl.ActiveTexture(gl.TEXTURE0)
}

func (s *stageState) ConstantBuffers(dst []device.Object) { getSlots(dst, nil) }

func (s *stageState) SetConstantBuffers([]device.Object) {}
