// Package program links vertex and pixel shader objects into programs,
// builds their attribute, sampler and uniform tables from compiler
// reflection, and stages uniform values for the native constant storage.
package program

import (
	"errors"
	"strings"

	"github.com/richinsley/goangle/compiler"
	"github.com/richinsley/goangle/device"
	"github.com/richinsley/goangle/diag"
)

const (
	// MaxVertexAttribs is the number of vertex attribute slots.
	MaxVertexAttribs = 16

	// MaxTextureImageUnits is the number of sampler table entries and
	// logical texture units.
	MaxTextureImageUnits = 16
)

var (
	ErrMissingStage        = errors.New("program: vertex and pixel shaders must be attached and compiled")
	ErrTooManyAttributes   = errors.New("program: too many active vertex attributes")
	ErrTooManySamplers     = errors.New("program: too many active samplers")
	ErrUniformTypeConflict = errors.New("program: uniform declared with different types")
	ErrNotLinked           = errors.New("program: not linked")
)

// LinkState is the outcome of the last link.
type LinkState int

const (
	Unlinked LinkState = iota
	Linked
	LinkFailed
)

func (s LinkState) String() string {
	switch s {
	case Linked:
		return "linked"
	case LinkFailed:
		return "link failed"
	}
	return "unlinked"
}

// program stages, in table order.
const (
	vertexStage = iota
	pixelStage
	numStages
)

var stageKinds = [numStages]device.StageKind{device.StageVertex, device.StagePixel}

func stageIndex(k device.StageKind) (int, bool) {
	switch k {
	case device.StageVertex:
		return vertexStage, true
	case device.StagePixel:
		return pixelStage, true
	}
	return 0, false
}

// Options configures a Program.
type Options struct {
	// VertexProfile and PixelProfile are passed to the compiler. They default
	// to "vs_5_0" and "ps_5_0".
	VertexProfile compiler.Profile
	PixelProfile  compiler.Profile
}

func (o Options) profile(stage int) compiler.Profile {
	if stage == vertexStage {
		if o.VertexProfile != "" {
			return o.VertexProfile
		}
		return "vs_5_0"
	}
	if o.PixelProfile != "" {
		return o.PixelProfile
	}
	return "ps_5_0"
}

// SamplerInfo describes one entry of the sampler table.
type SamplerInfo struct {
	Name string
	Type device.ValueType

	// Unit is the logical texture unit the sampler reads.
	Unit int

	// Registers holds the sampler register per stage, -1 where the sampler
	// is not used.
	Registers [numStages]int
}

// Register returns the sampler register used by stage, or -1.
func (s SamplerInfo) Register(stage device.StageKind) int {
	if i, ok := stageIndex(stage); ok {
		return s.Registers[i]
	}
	return -1
}

// Program is a shader program.
//
// A Program is not safe for concurrent use.
type Program struct {
	dev  device.Device
	comp compiler.Compiler
	opts Options

	shaders [numStages]*Shader
	exes    [numStages]device.Shader

	// bindings holds the slots requested by BindAttributeLocation.
	bindings map[string]int

	attribs  [MaxVertexAttribs]string
	inputMap [MaxVertexAttribs]int

	samplers []SamplerInfo
	uniforms []*Uniform

	// base is added to uniform ordinals to form locations. It grows on every
	// successful link so locations are never reused.
	base int

	state         LinkState
	deletePending bool
	infoLog       string
}

// New creates an empty program whose stages are compiled by comp and created
// on dev.
func New(dev device.Device, comp compiler.Compiler, opts Options) *Program {
	p := &Program{
		dev:      dev,
		comp:     comp,
		opts:     opts,
		bindings: make(map[string]int),
	}
	for i := range p.inputMap {
		p.inputMap[i] = -1
	}
	return p
}

// AttachShader attaches s to the slot of its stage. It fails if that slot is
// already taken or the stage is not vertex or pixel.
func (p *Program) AttachShader(s *Shader) bool {
	i, ok := stageIndex(s.stage)
	if !ok || p.shaders[i] != nil {
		return false
	}
	p.shaders[i] = s
	s.attached++
	return true
}

// DetachShader detaches s. It fails if s is not attached to p.
func (p *Program) DetachShader(s *Shader) bool {
	i, ok := stageIndex(s.stage)
	if !ok || p.shaders[i] != s {
		return false
	}
	p.shaders[i] = nil
	s.attached--
	return true
}

// AttachedShaders returns the attached vertex and pixel shaders, either of
// which may be nil.
func (p *Program) AttachedShaders() (vertex, pixel *Shader) {
	return p.shaders[vertexStage], p.shaders[pixelStage]
}

// BindAttributeLocation requests slot for the vertex input name. The request
// takes effect at the next link.
func (p *Program) BindAttributeLocation(slot int, name string) bool {
	if slot < 0 || slot >= MaxVertexAttribs || name == "" || strings.HasPrefix(name, "gl_") {
		return false
	}
	p.bindings[name] = slot
	return true
}

// GetAttributeLocation returns the slot of the active input name, or -1.
func (p *Program) GetAttributeLocation(name string) int {
	if name == "" {
		return -1
	}
	for slot, n := range p.attribs {
		if n == name {
			return slot
		}
	}
	return -1
}

// IsActiveAttribute reports whether slot holds an active input.
func (p *Program) IsActiveAttribute(slot int) bool {
	return slot >= 0 && slot < MaxVertexAttribs && p.attribs[slot] != ""
}

// InputMapping returns the vertex stage input ordinal fed by slot, or -1.
func (p *Program) InputMapping(slot int) int {
	if slot < 0 || slot >= MaxVertexAttribs {
		return -1
	}
	return p.inputMap[slot]
}

// GetUniformLocation returns the location of the uniform name, or -1. An
// array may be named with or without a trailing "[0]".
func (p *Program) GetUniformLocation(name string) int {
	if p.state != Linked {
		return -1
	}
	name = strings.TrimSuffix(name, "[0]")
	for i, u := range p.uniforms {
		if u.Name == name {
			return p.base + i
		}
	}
	return -1
}

// Uniform returns the uniform at location, or nil.
func (p *Program) Uniform(location int) *Uniform {
	i := location - p.base
	if location < 0 || i < 0 || i >= len(p.uniforms) {
		return nil
	}
	return p.uniforms[i]
}

// Uniforms returns the uniform sequence in location order.
func (p *Program) Uniforms() []*Uniform {
	return append([]*Uniform(nil), p.uniforms...)
}

// SamplerLocation returns the sampler table ordinal of name, or -1.
func (p *Program) SamplerLocation(name string) int {
	name = strings.TrimSuffix(name, "[0]")
	for i, s := range p.samplers {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// SetSamplerUnit points the sampler at ordinal to a logical texture unit.
func (p *Program) SetSamplerUnit(ordinal, unit int) bool {
	if ordinal < 0 || ordinal >= len(p.samplers) || unit < 0 || unit >= MaxTextureImageUnits {
		diag.Logger().Debug("program: sampler unit ignored", "ordinal", ordinal, "unit", unit)
		return false
	}
	p.samplers[ordinal].Unit = unit
	return true
}

// SamplerMapping returns the texture unit read by the sampler at ordinal, or
// -1 if there is no such sampler.
func (p *Program) SamplerMapping(ordinal int) int {
	if ordinal < 0 || ordinal >= len(p.samplers) {
		return -1
	}
	return p.samplers[ordinal].Unit
}

// Samplers returns the sampler table.
func (p *Program) Samplers() []SamplerInfo {
	return append([]SamplerInfo(nil), p.samplers...)
}

// Executable returns the native stage object of stage, or nil before a
// successful link.
func (p *Program) Executable(stage device.StageKind) device.Shader {
	if i, ok := stageIndex(stage); ok {
		return p.exes[i]
	}
	return nil
}

// State returns the link state.
func (p *Program) State() LinkState { return p.state }

// IsLinked reports whether the last link succeeded.
func (p *Program) IsLinked() bool { return p.state == Linked }

// InfoLog returns the diagnostic text of the last failed link.
func (p *Program) InfoLog() string { return p.infoLog }

// FlagForDeletion marks p for deletion. The owner destroys it once it is no
// longer current.
func (p *Program) FlagForDeletion() { p.deletePending = true }

// IsFlaggedForDeletion reports whether FlagForDeletion was called.
func (p *Program) IsFlaggedForDeletion() bool { return p.deletePending }

// Destroy releases the native stage objects and detaches both shaders.
func (p *Program) Destroy() {
	p.releaseExecutables()
	for _, s := range p.shaders {
		if s != nil {
			p.DetachShader(s)
		}
	}
	p.state = Unlinked
}

func (p *Program) releaseExecutables() {
	for i, e := range p.exes {
		if e != nil {
			e.Release()
		}
		p.exes[i] = nil
	}
}

// DeviceLost drops every native stage object without touching the device.
// The program becomes Unlinked and must be linked again.
func (p *Program) DeviceLost() {
	p.exes = [numStages]device.Shader{}
	if p.state == Linked {
		p.state = Unlinked
	}
	diag.Logger().Info("program: native stages dropped on device loss")
}

// SetDevice moves p to dev. Native stage objects of the old device are
// released and the program must be linked again.
func (p *Program) SetDevice(dev device.Device) {
	if p.dev != nil && !p.dev.Lost() {
		p.releaseExecutables()
	} else {
		p.exes = [numStages]device.Shader{}
	}
	p.dev = dev
	if p.state == Linked {
		p.state = Unlinked
	}
}

func (p *Program) setUniform(location, count int, typ device.ValueType, n int, write func([]byte)) bool {
	u := p.Uniform(location)
	switch {
	case u == nil:
		diag.Logger().Debug("program: uniform write to unknown location", "location", location)
		return false
	case u.Type != typ:
		diag.Logger().Debug("program: uniform type mismatch", "name", u.Name, "have", u.Type, "set", typ)
		return false
	case count < 0 || count > u.Count:
		diag.Logger().Debug("program: uniform count out of range", "name", u.Name, "count", count, "size", u.Count)
		return false
	case n < count*typ.Components():
		diag.Logger().Debug("program: uniform value too short", "name", u.Name, "count", count, "values", n)
		return false
	}
	write(u.data[:count*typ.Size()])
	return true
}

func (p *Program) setFloats(location, count int, typ device.ValueType, v []float32) bool {
	return p.setUniform(location, count, typ, len(v), func(dst []byte) {
		putFloats(dst, v[:count*typ.Components()])
	})
}

// SetUniform1fv stages count float values.
func (p *Program) SetUniform1fv(location, count int, v []float32) bool {
	return p.setFloats(location, count, device.TypeFloat, v)
}

// SetUniform2fv stages count vec2 values.
func (p *Program) SetUniform2fv(location, count int, v []float32) bool {
	return p.setFloats(location, count, device.TypeVec2, v)
}

// SetUniform3fv stages count vec3 values.
func (p *Program) SetUniform3fv(location, count int, v []float32) bool {
	return p.setFloats(location, count, device.TypeVec3, v)
}

// SetUniform4fv stages count vec4 values.
func (p *Program) SetUniform4fv(location, count int, v []float32) bool {
	return p.setFloats(location, count, device.TypeVec4, v)
}

// SetUniformMatrix2fv stages count column-major 2x2 matrices.
func (p *Program) SetUniformMatrix2fv(location, count int, v []float32) bool {
	return p.setFloats(location, count, device.TypeMat2, v)
}

// SetUniformMatrix3fv stages count column-major 3x3 matrices.
func (p *Program) SetUniformMatrix3fv(location, count int, v []float32) bool {
	return p.setFloats(location, count, device.TypeMat3, v)
}

// SetUniformMatrix4fv stages count column-major 4x4 matrices.
func (p *Program) SetUniformMatrix4fv(location, count int, v []float32) bool {
	return p.setFloats(location, count, device.TypeMat4, v)
}

// SetUniform1iv stages count int values.
func (p *Program) SetUniform1iv(location, count int, v []int32) bool {
	return p.setUniform(location, count, device.TypeInt, len(v), func(dst []byte) {
		putInts(dst, v[:count])
	})
}

// ApplyUniforms pushes every staged uniform value to the constant storage of
// each stage that uses it. Call it after making p current and after any
// uniform change.
func (p *Program) ApplyUniforms() error {
	if p.state != Linked {
		return ErrNotLinked
	}
	var firstErr error
	for _, u := range p.uniforms {
		for i, off := range u.offsets {
			if off < 0 {
				continue
			}
			err := p.exes[i].SetConstants(uint32(off), u.Type, u.Count, u.data)
			if errors.Is(err, device.ErrDeviceLost) {
				return err
			}
			if err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
