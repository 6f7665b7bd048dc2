// Package wgsl compiles WGSL stages to HLSL with naga and reflects their
// interface from the naga IR.
package wgsl

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/hlsl"
	"github.com/gogpu/naga/ir"
	"github.com/richinsley/goangle/compiler"
	"github.com/richinsley/goangle/device"
)

// Compiler compiles WGSL source. The zero value is ready to use.
type Compiler struct {
	// FakeMissingBindings lets naga assign HLSL registers to resources
	// without an explicit binding map. It defaults to true in New.
	FakeMissingBindings bool
}

// New returns a Compiler with naga's default HLSL options.
func New() *Compiler {
	return &Compiler{FakeMissingBindings: true}
}

var _ compiler.Compiler = (*Compiler)(nil)
var _ compiler.Validator = (*Compiler)(nil)

func shaderModel(p compiler.Profile) hlsl.ShaderModel {
	_, suffix, _ := strings.Cut(string(p), "_")
	switch suffix {
	case "5_0":
		return hlsl.ShaderModel5_0
	case "6_0":
		return hlsl.ShaderModel6_0
	}
	return hlsl.ShaderModel5_1
}

func irStage(k device.StageKind) (ir.ShaderStage, bool) {
	switch k {
	case device.StageVertex:
		return ir.StageVertex, true
	case device.StagePixel:
		return ir.StageFragment, true
	case device.StageCompute:
		return ir.StageCompute, true
	}
	return 0, false
}

// lower parses and validates source, returning the module and the entry
// point for stage.
func lower(source string, stage device.StageKind) (*ir.Module, *ir.EntryPoint, error) {
	fail := func(format string, args ...any) error {
		return &compiler.CompileError{Stage: stage, Log: fmt.Sprintf(format, args...)}
	}
	want, ok := irStage(stage)
	if !ok {
		return nil, nil, fail("WGSL has no %s stage", stage)
	}
	ast, err := naga.Parse(source)
	if err != nil {
		return nil, nil, fail("%v", err)
	}
	module, err := naga.LowerWithSource(ast, source)
	if err != nil {
		return nil, nil, fail("%v", err)
	}
	verrs, err := naga.Validate(module)
	if err != nil {
		return nil, nil, fail("%v", err)
	}
	if len(verrs) > 0 {
		msgs := make([]string, len(verrs))
		for i := range verrs {
			msgs[i] = verrs[i].Error()
		}
		return nil, nil, fail("%s", strings.Join(msgs, "\n"))
	}
	for i := range module.EntryPoints {
		if module.EntryPoints[i].Stage == want {
			return module, &module.EntryPoints[i], nil
		}
	}
	return nil, nil, fail("no %s entry point", stage)
}

// Validate checks that source parses, validates and has an entry point for
// stage.
func (c *Compiler) Validate(source string, stage device.StageKind) error {
	_, _, err := lower(source, stage)
	return err
}

// Compile compiles source for profile.
func (c *Compiler) Compile(source string, profile compiler.Profile) (*compiler.Binary, error) {
	stage, ok := profile.Stage()
	if !ok {
		return nil, fmt.Errorf("wgsl: unknown profile %q", profile)
	}
	module, ep, err := lower(source, stage)
	if err != nil {
		return nil, err
	}

	opts := hlsl.DefaultOptions()
	opts.ShaderModel = shaderModel(profile)
	opts.EntryPoint = ep.Name
	opts.FakeMissingBindings = c.FakeMissingBindings
	code, _, err := hlsl.Compile(module, opts)
	if err != nil {
		return nil, &compiler.CompileError{Stage: stage, Log: err.Error()}
	}

	refl, err := reflectStage(module, ep, stage)
	if err != nil {
		return nil, err
	}
	return &compiler.Binary{Stage: stage, Code: []byte(code), Reflection: refl}, nil
}

func reflectStage(m *ir.Module, ep *ir.EntryPoint, stage device.StageKind) (compiler.ReflectionTable, error) {
	var refl compiler.ReflectionTable
	if stage == device.StageVertex {
		refl.Inputs = inputs(m, &m.Functions[ep.Function])
	}

	var base, sampler uint32
	for _, g := range m.GlobalVariables {
		switch g.Space {
		case ir.SpaceUniform:
			switch t := m.Types[g.Type].Inner.(type) {
			case ir.StructType:
				for _, mem := range t.Members {
					typ, n := valueType(m, mem.Type)
					if typ == device.TypeInvalid {
						return refl, &compiler.CompileError{Stage: stage, Log: fmt.Sprintf("uniform member %s.%s has an unsupported type", g.Name, mem.Name)}
					}
					refl.Constants = append(refl.Constants, compiler.Constant{
						Name:        mem.Name,
						Type:        typ,
						Offset:      base + mem.Offset,
						ArrayLength: n,
					})
				}
				base += align16(t.Span)
			default:
				typ, n := valueType(m, g.Type)
				if typ == device.TypeInvalid {
					return refl, &compiler.CompileError{Stage: stage, Log: fmt.Sprintf("uniform %s has an unsupported type", g.Name)}
				}
				refl.Constants = append(refl.Constants, compiler.Constant{
					Name:        g.Name,
					Type:        typ,
					Offset:      base,
					ArrayLength: n,
				})
				base += align16(uint32(typ.Size() * n))
			}
		case ir.SpaceHandle:
			img, ok := m.Types[g.Type].Inner.(ir.ImageType)
			if !ok || img.Class == ir.ImageClassStorage {
				continue
			}
			typ := device.TypeSampler2D
			if img.Dim == ir.DimCube {
				typ = device.TypeSamplerCube
			}
			refl.Constants = append(refl.Constants, compiler.Constant{
				Name:        g.Name,
				Type:        typ,
				Offset:      sampler,
				ArrayLength: 1,
			})
			sampler++
		}
	}
	return refl, nil
}

type located struct {
	loc uint32
	in  compiler.Input
}

// inputs collects the location-bound arguments of fn, in location order.
func inputs(m *ir.Module, fn *ir.Function) []compiler.Input {
	var list []located
	add := func(name string, th ir.TypeHandle, b *ir.Binding) {
		if b == nil {
			return
		}
		lb, ok := (*b).(ir.LocationBinding)
		if !ok {
			return
		}
		typ, _ := valueType(m, th)
		list = append(list, located{lb.Location, compiler.Input{Name: name, Type: typ}})
	}
	for _, arg := range fn.Arguments {
		if st, ok := m.Types[arg.Type].Inner.(ir.StructType); ok {
			for _, mem := range st.Members {
				add(mem.Name, mem.Type, mem.Binding)
			}
			continue
		}
		add(arg.Name, arg.Type, arg.Binding)
	}
	sort.SliceStable(list, func(i, j int) bool { return list[i].loc < list[j].loc })
	out := make([]compiler.Input, len(list))
	for i, l := range list {
		out[i] = l.in
	}
	return out
}

// valueType maps an IR type to a device type and array length.
func valueType(m *ir.Module, h ir.TypeHandle) (device.ValueType, int) {
	switch t := m.Types[h].Inner.(type) {
	case ir.ScalarType:
		if t.Kind == ir.ScalarFloat {
			return device.TypeFloat, 1
		}
		return device.TypeInt, 1
	case ir.VectorType:
		if t.Scalar.Kind != ir.ScalarFloat {
			return device.TypeInvalid, 0
		}
		switch t.Size {
		case ir.Vec2:
			return device.TypeVec2, 1
		case ir.Vec3:
			return device.TypeVec3, 1
		case ir.Vec4:
			return device.TypeVec4, 1
		}
	case ir.MatrixType:
		if t.Columns != t.Rows {
			return device.TypeInvalid, 0
		}
		switch t.Columns {
		case ir.Vec2:
			return device.TypeMat2, 1
		case ir.Vec3:
			return device.TypeMat3, 1
		case ir.Vec4:
			return device.TypeMat4, 1
		}
	case ir.ArrayType:
		if t.Size.Constant == nil {
			return device.TypeInvalid, 0
		}
		base, _ := valueType(m, t.Base)
		return base, int(*t.Size.Constant)
	}
	return device.TypeInvalid, 0
}

func align16(n uint32) uint32 { return (n + 15) &^ 15 }
