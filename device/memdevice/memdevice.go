// Package memdevice implements device.Device entirely in host memory.
//
// It keeps real reference counts, the complete pipeline state and the
// contents of every texture level and constant store, so tests can observe
// exactly what the engine pushed to the device. Allocation failures and device
// loss can be injected.
package memdevice

import (
	"fmt"
	"sync/atomic"

	"github.com/richinsley/goangle/device"
)

// Object is a reference-counted native object.
type Object struct {
	dev  *Device
	id   uint64
	kind string
	refs int32

	// destroy runs once the last reference is dropped.
	destroy func()
}

// AddRef adds a reference.
func (o *Object) AddRef() {
	if atomic.AddInt32(&o.refs, 1) <= 1 {
		panic(fmt.Sprintf("memdevice: AddRef on destroyed %s", o))
	}
}

// Release drops a reference. Releasing a destroyed object panics.
func (o *Object) Release() {
	n := atomic.AddInt32(&o.refs, -1)
	switch {
	case n == 0:
		o.dev.live.Add(-1)
		if o.destroy != nil {
			o.destroy()
		}
	case n < 0:
		panic(fmt.Sprintf("memdevice: Release on destroyed %s", o))
	}
}

// Refs returns the current reference count.
func (o *Object) Refs() int { return int(atomic.LoadInt32(&o.refs)) }

// Kind returns the kind name given at creation.
func (o *Object) Kind() string { return o.kind }

func (o *Object) String() string { return fmt.Sprintf("%s#%d", o.kind, o.id) }

// Device is an in-memory device.
type Device struct {
	ctx    *Context
	nextID atomic.Uint64
	live   atomic.Int64
	lost   bool

	// failAllocs counts allocations left before one fails; 0 disables.
	failAllocs int
	failUpload int
}

// Option configures a Device.
type Option func(*Device)

// WithStages restricts the programmable stages the device exposes.
func WithStages(kinds ...device.StageKind) Option {
	return func(d *Device) {
		d.ctx.stages = make(map[device.StageKind]*stageState)
		for _, k := range kinds {
			d.ctx.stages[k] = newStageState(k)
		}
	}
}

// New creates a device exposing every stage kind.
func New(opts ...Option) *Device {
	d := &Device{}
	d.ctx = newContext(d)
	for _, o := range opts {
		o(d)
	}
	return d
}

func (d *Device) newObject(kind string) Object {
	d.live.Add(1)
	return Object{dev: d, id: d.nextID.Add(1), kind: kind, refs: 1}
}

// NewObject creates a generic object of the given kind with one reference
// owned by the caller. It stands in for state objects, views and buffers.
func (d *Device) NewObject(kind string) *Object {
	o := d.newObject(kind)
	return &o
}

// Live returns the number of objects that have not been destroyed.
func (d *Device) Live() int { return int(d.live.Load()) }

// Immediate returns the immediate context.
func (d *Device) Immediate() device.Context { return d.ctx }

// Context returns the immediate context with its concrete type.
func (d *Device) Context() *Context { return d.ctx }

// Lost reports whether Lose was called.
func (d *Device) Lost() bool { return d.lost }

// Lose simulates device loss. Every later allocation or write fails with
// device.ErrDeviceLost.
func (d *Device) Lose() { d.lost = true }

// FailAllocationAfter makes the (n+1)-th next allocation fail with
// device.ErrOutOfMemory. Passing a negative n clears the fault.
func (d *Device) FailAllocationAfter(n int) { d.failAllocs = n + 1 }

// FailUploadAfter makes the (n+1)-th next texture upload fail with
// device.ErrOutOfMemory. Passing a negative n clears the fault.
func (d *Device) FailUploadAfter(n int) { d.failUpload = n + 1 }

func (d *Device) allocate() error {
	if d.lost {
		return device.ErrDeviceLost
	}
	if d.failAllocs > 0 {
		d.failAllocs--
		if d.failAllocs == 0 {
			return device.ErrOutOfMemory
		}
	}
	return nil
}

func (d *Device) upload() error {
	if d.lost {
		return device.ErrDeviceLost
	}
	if d.failUpload > 0 {
		d.failUpload--
		if d.failUpload == 0 {
			return device.ErrOutOfMemory
		}
	}
	return nil
}

// NewTexture allocates a texture.
func (d *Device) NewTexture(desc device.TextureDesc) (device.Texture, error) {
	bpp := device.FormatSize(desc.Format)
	if bpp == 0 || desc.Width <= 0 || desc.Height <= 0 || desc.Levels <= 0 {
		return nil, fmt.Errorf("memdevice: texture %+v: %w", desc, device.ErrUnsupported)
	}
	if err := d.allocate(); err != nil {
		return nil, err
	}
	t := &Texture{Object: d.newObject("texture"), desc: desc}
	t.levels = make([][][]byte, desc.Kind.Faces())
	for f := range t.levels {
		t.levels[f] = make([][]byte, desc.Levels)
		for l := range t.levels[f] {
			w, h := device.LevelSize(desc.Width, desc.Height, l)
			t.levels[f][l] = make([]byte, w*h*bpp)
		}
	}
	return t, nil
}

// NewShader creates a stage object whose constant storage is sized to hold
// every described constant.
func (d *Device) NewShader(desc device.ShaderDesc) (device.Shader, error) {
	if err := d.allocate(); err != nil {
		return nil, err
	}
	var size uint32
	for _, c := range desc.Constants {
		end := c.Offset + uint32(c.Type.Size()*max(1, c.Count))
		size = max(size, end)
	}
	code := make([]byte, len(desc.Code))
	copy(code, desc.Code)
	return &Shader{
		Object:    d.newObject(desc.Stage.String() + "-shader"),
		stage:     desc.Stage,
		code:      code,
		constants: make([]byte, size),
	}, nil
}

// NewSampler creates a sampler state object.
func (d *Device) NewSampler(desc device.SamplerDesc) (device.Object, error) {
	if err := d.allocate(); err != nil {
		return nil, err
	}
	return &Sampler{Object: d.newObject("sampler"), Desc: desc}, nil
}
