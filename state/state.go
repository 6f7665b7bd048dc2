// Package state captures and restores the complete pipeline state of a
// device context, so two independent users can share one context.
package state

import (
	"image"

	"github.com/gogpu/gputypes"
	"github.com/richinsley/goangle/device"
)

// stageRecord is the captured state of one programmable stage.
type stageRecord struct {
	kind      device.StageKind
	shader    device.Object
	instances []device.Object
	samplers  []device.Object
	resources []device.Object
	cbs       []device.Object
}

func (r *stageRecord) capture(st device.StageState) {
	lim := st.Limits()
	r.kind = st.Kind()
	r.shader, r.instances = st.Shader()
	r.samplers = make([]device.Object, lim.Samplers)
	r.resources = make([]device.Object, lim.Resources)
	r.cbs = make([]device.Object, lim.ConstantBuffers)
	st.Samplers(r.samplers)
	st.ShaderResources(r.resources)
	st.ConstantBuffers(r.cbs)
}

func (r *stageRecord) apply(st device.StageState) {
	st.SetShader(r.shader, r.instances)
	st.SetSamplers(r.samplers)
	st.SetShaderResources(r.resources)
	st.SetConstantBuffers(r.cbs)
}

func (r *stageRecord) release() {
	release(r.shader)
	releaseAll(r.instances)
	releaseAll(r.samplers)
	releaseAll(r.resources)
	releaseAll(r.cbs)
	*r = stageRecord{}
}

// Snapshot holds a captured pipeline state. Every captured object is held
// by one reference until Apply or Release.
//
// The zero value is an empty snapshot.
type Snapshot struct {
	captured bool

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

	stages []stageRecord
}

// Captured reports whether s holds a capture.
func (s *Snapshot) Captured() bool { return s.captured }

// Capture reads the full state of ctx. Capturing into a snapshot that
// already holds a capture panics; Apply or Release it first.
func (s *Snapshot) Capture(ctx device.Context) {
	if s.captured {
		panic("state: Capture on a snapshot that already holds a capture")
	}

	s.blend, s.blendFactor, s.sampleMask = ctx.BlendState()
	s.depthStencil, s.stencilRef = ctx.DepthStencilState()
	s.rasterizer = ctx.RasterizerState()
	s.dsv = ctx.RenderTargets(s.rtvs[:])
	s.topology = ctx.PrimitiveTopology()
	s.layout = ctx.InputLayout()
	s.index, s.indexFormat, s.indexOffset = ctx.IndexBuffer()
	ctx.VertexBuffers(s.vbs[:], s.vbStrides[:], s.vbOffsets[:])
	s.viewports = ctx.Viewports()
	s.scissors = ctx.ScissorRects()

	s.stages = s.stages[:0]
	for _, k := range device.Stages {
		st := ctx.Stage(k)
		if st == nil {
			continue
		}
		var r stageRecord
		r.capture(st)
		s.stages = append(s.stages, r)
	}
	s.captured = true
}

// Apply writes the captured state back to ctx and releases the capture.
// It does nothing if s holds no capture.
func (s *Snapshot) Apply(ctx device.Context) {
	if !s.captured {
		return
	}

	ctx.SetBlendState(s.blend, s.blendFactor, s.sampleMask)
	ctx.SetDepthStencilState(s.depthStencil, s.stencilRef)
	ctx.SetRasterizerState(s.rasterizer)
	ctx.SetRenderTargets(s.rtvs[:], s.dsv)
	ctx.SetPrimitiveTopology(s.topology)
	ctx.SetInputLayout(s.layout)
	ctx.SetIndexBuffer(s.index, s.indexFormat, s.indexOffset)
	ctx.SetVertexBuffers(s.vbs[:], s.vbStrides[:], s.vbOffsets[:])
	ctx.SetViewports(s.viewports)
	ctx.SetScissorRects(s.scissors)

	for i := range s.stages {
		r := &s.stages[i]
		if st := ctx.Stage(r.kind); st != nil {
			r.apply(st)
		}
	}
	s.Release()
}

// Release drops every captured reference without touching the device. It
// may be called on an empty snapshot.
func (s *Snapshot) Release() {
	if !s.captured {
		return
	}
	release(s.blend)
	release(s.depthStencil)
	release(s.rasterizer)
	releaseAll(s.rtvs[:])
	release(s.dsv)
	release(s.layout)
	release(s.index)
	releaseAll(s.vbs[:])
	for i := range s.stages {
		s.stages[i].release()
	}
	stages := s.stages[:0]
	*s = Snapshot{stages: stages}
}

func release(o device.Object) {
	if o != nil {
		o.Release()
	}
}

func releaseAll(objs []device.Object) {
	for i, o := range objs {
		release(o)
		objs[i] = nil
	}
}

// Preserve runs fn and restores the state ctx had before it, whatever fn
// leaves behind.
func Preserve(ctx device.Context, fn func() error) error {
	var s Snapshot
	s.Capture(ctx)
	defer s.Apply(ctx)
	return fn()
}
