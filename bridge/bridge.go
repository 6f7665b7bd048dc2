// Package bridge lets the engine share one device context with a host
// application. The host brackets engine work with BeginRendering and
// EndRendering; in between, the engine binds programs and textures and
// draws, and the host's state is put back afterwards.
package bridge

import (
	"errors"
	"fmt"

	"github.com/richinsley/goangle/compiler"
	"github.com/richinsley/goangle/device"
	"github.com/richinsley/goangle/diag"
	"github.com/richinsley/goangle/program"
	"github.com/richinsley/goangle/state"
	"github.com/richinsley/goangle/texture"
)

var (
	ErrAlreadyRendering = errors.New("bridge: BeginRendering called twice")
	ErrNotRendering     = errors.New("bridge: not inside BeginRendering")
	ErrNotLinked        = errors.New("bridge: program is not linked")
	ErrNoProgram        = errors.New("bridge: no current program")
	ErrInvalidUnit      = errors.New("bridge: invalid texture unit")
)

// Bridge owns the engine side of a shared device context.
//
// A Bridge is not safe for concurrent use.
type Bridge struct {
	dev device.Device

	snapshot  state.Snapshot
	rendering bool

	current  *program.Program
	programs map[*program.Program]struct{}
	textures map[*texture.Texture]struct{}
	units    [program.MaxTextureImageUnits]*texture.Texture

	// samplers caches one sampler object per distinct sampler state.
	samplers map[device.SamplerDesc]device.Object
}

// New creates a bridge over dev.
func New(dev device.Device) *Bridge {
	return &Bridge{
		dev:      dev,
		programs: make(map[*program.Program]struct{}),
		textures: make(map[*texture.Texture]struct{}),
		samplers: make(map[device.SamplerDesc]device.Object),
	}
}

// drawStages are the stages a program binds.
var drawStages = [...]device.StageKind{device.StageVertex, device.StagePixel}

// Device returns the current device.
func (b *Bridge) Device() device.Device { return b.dev }

// BeginRendering saves the host's pipeline state.
func (b *Bridge) BeginRendering() error {
	if b.rendering {
		return ErrAlreadyRendering
	}
	b.snapshot.Capture(b.dev.Immediate())
	b.rendering = true
	return nil
}

// EndRendering restores the pipeline state saved by BeginRendering.
func (b *Bridge) EndRendering() error {
	if !b.rendering {
		return ErrNotRendering
	}
	b.snapshot.Apply(b.dev.Immediate())
	b.rendering = false
	return nil
}

// Rendering reports whether the bridge is between BeginRendering and
// EndRendering.
func (b *Bridge) Rendering() bool { return b.rendering }

// NewProgram creates a program on the bridge's device and registers it.
func (b *Bridge) NewProgram(comp compiler.Compiler, opts program.Options) *program.Program {
	p := program.New(b.dev, comp, opts)
	b.programs[p] = struct{}{}
	return p
}

// NewTexture creates a texture of kind on the bridge's device and
// registers it.
func (b *Bridge) NewTexture(kind texture.Kind) *texture.Texture {
	t := texture.New(b.dev, kind)
	b.textures[t] = struct{}{}
	return t
}

// DeleteProgram flags p for deletion. It is destroyed now if it is not
// current, or when it stops being current.
func (b *Bridge) DeleteProgram(p *program.Program) {
	p.FlagForDeletion()
	if p != b.current {
		b.destroy(p)
	}
}

func (b *Bridge) destroy(p *program.Program) {
	p.Destroy()
	delete(b.programs, p)
}

// DeleteTexture releases t and unbinds it from every unit.
func (b *Bridge) DeleteTexture(t *texture.Texture) {
	for i, u := range b.units {
		if u == t {
			b.units[i] = nil
		}
	}
	t.Release()
	delete(b.textures, t)
}

// Current returns the current program, or nil.
func (b *Bridge) Current() *program.Program { return b.current }

// UseProgram makes p current and binds its stages. A program whose last link
// failed is refused. Passing nil unbinds the current program. A previous
// program flagged for deletion is destroyed once replaced.
func (b *Bridge) UseProgram(p *program.Program) error {
	if p != nil && !p.IsLinked() {
		return fmt.Errorf("%w: %s", ErrNotLinked, p.State())
	}
	b.bindStages(p)

	prev := b.current
	b.current = p
	if prev != nil && prev != p && prev.IsFlaggedForDeletion() {
		b.destroy(prev)
	}
	return nil
}

// bindStages puts p's stage objects on the context, or clears the stages
// when p is nil.
func (b *Bridge) bindStages(p *program.Program) {
	ctx := b.dev.Immediate()
	for _, k := range drawStages {
		st := ctx.Stage(k)
		if st == nil {
			continue
		}
		var exe device.Object
		if p != nil {
			exe = p.Executable(k)
		}
		st.SetShader(exe, nil)
	}
}

// BindTexture attaches t to a texture unit. nil clears the unit.
func (b *Bridge) BindTexture(unit int, t *texture.Texture) error {
	if unit < 0 || unit >= len(b.units) {
		return fmt.Errorf("%w: %d", ErrInvalidUnit, unit)
	}
	b.units[unit] = t
	return nil
}

// sampler returns the cached sampler object for desc, creating it on first
// use. The cache keeps the only reference.
func (b *Bridge) sampler(desc device.SamplerDesc) (device.Object, error) {
	if smp, ok := b.samplers[desc]; ok {
		return smp, nil
	}
	smp, err := b.dev.NewSampler(desc)
	if err != nil {
		return nil, err
	}
	b.samplers[desc] = smp
	return smp, nil
}

func (b *Bridge) releaseSamplers() {
	for desc, smp := range b.samplers {
		smp.Release()
		delete(b.samplers, desc)
	}
}

// bindSamplers binds the texture and sampler state of every sampler of p's
// table to the slot each stage reads it from. Slots p does not use are
// cleared.
func (b *Bridge) bindSamplers(p *program.Program) error {
	ctx := b.dev.Immediate()
	type slots struct {
		samplers []device.Object
		views    []device.Object
	}
	bound := make(map[device.StageKind]*slots)
	for _, k := range drawStages {
		if st := ctx.Stage(k); st != nil {
			lim := st.Limits()
			bound[k] = &slots{
				samplers: make([]device.Object, lim.Samplers),
				views:    make([]device.Object, lim.Resources),
			}
		}
	}
	var owned []device.Object
	defer func() {
		for _, v := range owned {
			v.Release()
		}
	}()

	for _, s := range p.Samplers() {
		t := b.units[s.Unit]
		if t == nil {
			continue
		}
		nt, err := t.GetTexture()
		if err != nil {
			return fmt.Errorf("bridge: sampler %q: %w", s.Name, err)
		}
		srv, err := nt.ShaderResource()
		if err != nil {
			return fmt.Errorf("bridge: sampler %q: %w", s.Name, err)
		}
		owned = append(owned, srv)
		smp, err := b.sampler(t.Sampler().SamplerDesc())
		if err != nil {
			return fmt.Errorf("bridge: sampler %q: %w", s.Name, err)
		}
		for k, sl := range bound {
			reg := s.Register(k)
			if reg < 0 {
				continue
			}
			if reg < len(sl.views) {
				sl.views[reg] = srv
			}
			if reg < len(sl.samplers) {
				sl.samplers[reg] = smp
			}
		}
	}
	for k, sl := range bound {
		st := ctx.Stage(k)
		st.SetSamplers(sl.samplers)
		st.SetShaderResources(sl.views)
	}
	return nil
}

// prepareDraw binds the current program's stages, pushes its uniforms and
// binds its textures. The host or a relink may have replaced the stage
// objects on the context since the last draw.
func (b *Bridge) prepareDraw() error {
	p := b.current
	if p == nil {
		return ErrNoProgram
	}
	b.bindStages(p)
	if err := p.ApplyUniforms(); err != nil {
		return err
	}
	return b.bindSamplers(p)
}

// Draw pushes the current program's uniforms and textures and draws
// vertexCount vertices.
func (b *Bridge) Draw(vertexCount, firstVertex int) error {
	if err := b.prepareDraw(); err != nil {
		return err
	}
	return b.dev.Immediate().Draw(vertexCount, firstVertex)
}

// DrawIndexed is Draw for indexed geometry.
func (b *Bridge) DrawIndexed(indexCount, firstIndex, baseVertex int) error {
	if err := b.prepareDraw(); err != nil {
		return err
	}
	return b.dev.Immediate().DrawIndexed(indexCount, firstIndex, baseVertex)
}

// Close unbinds the current program and releases the bridge's sampler
// objects. Registered programs and textures stay with their owners.
func (b *Bridge) Close() {
	_ = b.UseProgram(nil)
	b.releaseSamplers()
}

// NotifyDeviceLost drops every native object held by registered programs
// and textures and any saved host state.
func (b *Bridge) NotifyDeviceLost() {
	for p := range b.programs {
		p.DeviceLost()
	}
	for t := range b.textures {
		t.DeviceLost()
	}
	b.releaseSamplers()
	b.snapshot.Release()
	b.rendering = false
	diag.Logger().Info("bridge: device lost", "programs", len(b.programs), "textures", len(b.textures))
}

// RestoreDevice moves every registered object to dev and relinks the
// programs that have both shaders compiled. Textures rebuild on next use.
func (b *Bridge) RestoreDevice(dev device.Device) error {
	b.dev = dev
	for t := range b.textures {
		t.SetDevice(dev)
	}
	var errs []error
	for p := range b.programs {
		p.SetDevice(dev)
		vs, ps := p.AttachedShaders()
		if vs == nil || ps == nil || !vs.IsCompiled() || !ps.IsCompiled() {
			continue
		}
		if err := p.Link(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.current != nil {
		if err := b.UseProgram(b.current); err != nil {
			b.current = nil
			errs = append(errs, err)
		}
	}
	diag.Logger().Info("bridge: device restored", "programs", len(b.programs), "textures", len(b.textures))
	return errors.Join(errs...)
}
