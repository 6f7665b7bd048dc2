package program

import (
	"errors"
	"fmt"

	"github.com/richinsley/goangle/compiler"
	"github.com/richinsley/goangle/device"
	"github.com/richinsley/goangle/diag"
)

// Link compiles both attached shaders and rebuilds every table of p.
//
// On failure p becomes LinkFailed, the diagnostic is kept in InfoLog and the
// tables and native stages of the previous link are left as they were. On
// success the previous native stages are released and everything is
// replaced.
func (p *Program) Link() error {
	if err := p.link(); err != nil {
		p.state = LinkFailed
		p.infoLog = err.Error()
		var ce *compiler.CompileError
		if errors.As(err, &ce) {
			p.infoLog = ce.Log
		}
		diag.Logger().Warn("program: link failed", "err", err)
		return err
	}
	return nil
}

func (p *Program) link() error {
	for _, s := range p.shaders {
		if s == nil || !s.isCompiled {
			return ErrMissingStage
		}
	}

	var bins [numStages]*compiler.Binary
	for i, s := range p.shaders {
		b, err := p.comp.Compile(s.compiled, p.opts.profile(i))
		if err != nil {
			return fmt.Errorf("program: compile %s stage: %w", stageKinds[i], err)
		}
		if b.Stage != stageKinds[i] {
			return fmt.Errorf("program: compiler returned a %s stage for the %s shader: %w", b.Stage, stageKinds[i], compiler.ErrCompileFailure)
		}
		bins[i] = b
	}

	attribs, inputMap, err := p.linkAttributes(bins[vertexStage].Reflection)
	if err != nil {
		return err
	}
	samplers, uniforms, err := linkUniforms(bins[vertexStage].Reflection, bins[pixelStage].Reflection)
	if err != nil {
		return err
	}

	var exes [numStages]device.Shader
	for i, b := range bins {
		exe, err := p.dev.NewShader(b.ShaderDesc())
		if err != nil {
			for _, e := range exes[:i] {
				e.Release()
			}
			return fmt.Errorf("program: create %s stage: %w", stageKinds[i], err)
		}
		exes[i] = exe
	}

	p.releaseExecutables()
	p.exes = exes
	p.attribs = attribs
	p.inputMap = inputMap
	p.samplers = samplers
	p.base += len(p.uniforms)
	p.uniforms = uniforms
	p.state = Linked
	p.infoLog = ""
	diag.Logger().Info("program: linked", "attributes", len(bins[vertexStage].Reflection.Inputs), "uniforms", len(uniforms), "samplers", len(samplers))
	return nil
}

// linkAttributes assigns a slot to every active vertex input. Requested slots
// win; the rest take the lowest free slot. A request for a slot already taken
// by an earlier input falls back to a free slot.
func (p *Program) linkAttributes(refl compiler.ReflectionTable) ([MaxVertexAttribs]string, [MaxVertexAttribs]int, error) {
	var names [MaxVertexAttribs]string
	var mapping [MaxVertexAttribs]int
	for i := range mapping {
		mapping[i] = -1
	}
	if len(refl.Inputs) > MaxVertexAttribs {
		return names, mapping, fmt.Errorf("%w: %d active, limit %d", ErrTooManyAttributes, len(refl.Inputs), MaxVertexAttribs)
	}

	var pending []int
	for i, in := range refl.Inputs {
		if slot, ok := p.bindings[in.Name]; ok && names[slot] == "" {
			names[slot] = in.Name
			mapping[slot] = i
			continue
		}
		pending = append(pending, i)
	}

	slot := 0
	for _, i := range pending {
		for slot < MaxVertexAttribs && names[slot] != "" {
			slot++
		}
		if slot == MaxVertexAttribs {
			return names, mapping, fmt.Errorf("%w: no free slot for %q", ErrTooManyAttributes, refl.Inputs[i].Name)
		}
		names[slot] = refl.Inputs[i].Name
		mapping[slot] = i
	}
	return names, mapping, nil
}

// linkUniforms merges the constants of both stages. Samplers go to the
// sampler table, everything else to the uniform sequence in first-seen
// order.
func linkUniforms(stages ...compiler.ReflectionTable) ([]SamplerInfo, []*Uniform, error) {
	var samplers []SamplerInfo
	var uniforms []*Uniform
	samplerIndex := make(map[string]int)
	type declared struct{ index, stage int }
	uniformIndex := make(map[string]declared)

	for s, refl := range stages {
		for _, c := range refl.Constants {
			n := max(1, c.ArrayLength)

			if c.Type.IsSampler() {
				for r := range n {
					name := c.Name
					if n > 1 {
						name = fmt.Sprintf("%s[%d]", c.Name, r)
					}
					i, ok := samplerIndex[name]
					if !ok {
						if len(samplers) == MaxTextureImageUnits {
							return nil, nil, fmt.Errorf("%w: limit %d", ErrTooManySamplers, MaxTextureImageUnits)
						}
						i = len(samplers)
						samplerIndex[name] = i
						samplers = append(samplers, SamplerInfo{Name: name, Type: c.Type, Registers: [numStages]int{-1, -1}})
					} else if samplers[i].Type != c.Type {
						return nil, nil, fmt.Errorf("%w: sampler %q is %s and %s", ErrUniformTypeConflict, name, samplers[i].Type, c.Type)
					}
					samplers[i].Registers[s] = int(c.Offset) + r
				}
				continue
			}

			d, ok := uniformIndex[c.Name]
			if !ok {
				d = declared{index: len(uniforms), stage: s}
				uniformIndex[c.Name] = d
				uniforms = append(uniforms, newUniform(c.Type, c.Name, n))
			} else if u := uniforms[d.index]; u.Type != c.Type || u.Count != n {
				return nil, nil, fmt.Errorf("%w: %q is %s[%d] in the %s stage and %s[%d] in the %s stage",
					ErrUniformTypeConflict, c.Name, u.Type, u.Count, stageKinds[d.stage], c.Type, n, stageKinds[s])
			}
			uniforms[d.index].offsets[s] = int64(c.Offset)
		}
	}
	return samplers, uniforms, nil
}
