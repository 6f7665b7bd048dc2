// Package translator compiles GLSL ES stages with goshadertranslator, for
// devices that consume desktop GLSL.
package translator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/richinsley/goangle/compiler"
	"github.com/richinsley/goangle/device"
	gst "github.com/richinsley/goshadertranslator"
)

var (
	defaultOnce       sync.Once
	defaultCompiler   *Compiler
	defaultCompileErr error
)

// Default returns a process-wide Compiler, creating it on first use.
func Default() (*Compiler, error) {
	defaultOnce.Do(func() {
		defaultCompiler, defaultCompileErr = New(context.Background())
	})
	return defaultCompiler, defaultCompileErr
}

// Compiler translates WebGL 2 flavored GLSL ES to GLSL 4.10, or to ESSL when
// ES is set.
type Compiler struct {
	mu sync.Mutex
	tr *gst.ShaderTranslator

	// ES selects ESSL output for GLES contexts.
	ES bool
}

// New creates a Compiler with its own translator instance.
func New(ctx context.Context) (*Compiler, error) {
	tr, err := gst.NewShaderTranslator(ctx)
	if err != nil {
		return nil, fmt.Errorf("translator: create shader translator: %w", err)
	}
	return &Compiler{tr: tr}, nil
}

var _ compiler.Compiler = (*Compiler)(nil)
var _ compiler.Validator = (*Compiler)(nil)

func stageName(k device.StageKind) (string, bool) {
	switch k {
	case device.StageVertex:
		return "vertex", true
	case device.StagePixel:
		return "fragment", true
	}
	return "", false
}

type translation struct {
	code    string
	symbols map[string]string
}

func (c *Compiler) translate(source string, stage device.StageKind) (*translation, error) {
	name, ok := stageName(stage)
	if !ok {
		return nil, &compiler.CompileError{Stage: stage, Log: fmt.Sprintf("no GLSL ES %s stage", stage)}
	}
	outputFormat := gst.OutputFormatGLSL410
	if c.ES {
		outputFormat = gst.OutputFormatESSL
	}

	c.mu.Lock()
	res, err := c.tr.TranslateShader(source, name, gst.ShaderSpecWebGL2, outputFormat)
	c.mu.Unlock()
	if err != nil {
		return nil, &compiler.CompileError{Stage: stage, Log: err.Error()}
	}

	t := &translation{code: res.Code, symbols: make(map[string]string, len(res.Variables))}
	for n, v := range res.Variables {
		t.symbols[n] = v.MappedName
	}
	return t, nil
}

// Validate translates source and discards the result.
func (c *Compiler) Validate(source string, stage device.StageKind) error {
	_, err := c.translate(source, stage)
	return err
}

// Compile translates source for the stage of profile.
func (c *Compiler) Compile(source string, profile compiler.Profile) (*compiler.Binary, error) {
	stage, ok := profile.Stage()
	if !ok {
		return nil, fmt.Errorf("translator: unknown profile %q", profile)
	}
	t, err := c.translate(source, stage)
	if err != nil {
		return nil, err
	}
	refl, err := reflectSource(source, stage, t.symbols)
	if err != nil {
		return nil, err
	}
	return &compiler.Binary{Stage: stage, Code: []byte(t.code), Reflection: refl}, nil
}

var (
	comments   = regexp.MustCompile(`(?s)/\*.*?\*/|//[^\n]*`)
	uniforms   = regexp.MustCompile(`(?m)^\s*uniform\s+(?:(?:lowp|mediump|highp)\s+)?(\w+)\s+([^;{]+);`)
	inputs     = regexp.MustCompile(`(?m)^\s*(?:layout\s*\([^)]*\)\s*)?(?:in|attribute)\s+(?:(?:lowp|mediump|highp)\s+)?(\w+)\s+([^;]+);`)
	declarator = regexp.MustCompile(`^\s*(\w+)\s*(?:\[\s*(\d+)\s*\])?\s*$`)
)

var glslTypes = map[string]device.ValueType{
	"float":       device.TypeFloat,
	"vec2":        device.TypeVec2,
	"vec3":        device.TypeVec3,
	"vec4":        device.TypeVec4,
	"mat2":        device.TypeMat2,
	"mat3":        device.TypeMat3,
	"mat4":        device.TypeMat4,
	"int":         device.TypeInt,
	"bool":        device.TypeInt,
	"sampler2D":   device.TypeSampler2D,
	"samplerCube": device.TypeSamplerCube,
}

type declaration struct {
	typ   device.ValueType
	name  string
	count int
}

func declarations(re *regexp.Regexp, source string, stage device.StageKind) ([]declaration, error) {
	var out []declaration
	for _, m := range re.FindAllStringSubmatch(source, -1) {
		typ, ok := glslTypes[m[1]]
		if !ok {
			return nil, &compiler.CompileError{Stage: stage, Log: fmt.Sprintf("unsupported type %s in %q", m[1], strings.TrimSpace(m[0]))}
		}
		for _, d := range strings.Split(m[2], ",") {
			dm := declarator.FindStringSubmatch(d)
			if dm == nil {
				return nil, &compiler.CompileError{Stage: stage, Log: fmt.Sprintf("cannot reflect declarator %q", strings.TrimSpace(d))}
			}
			count := 1
			if dm[2] != "" {
				count, _ = strconv.Atoi(dm[2])
			}
			out = append(out, declaration{typ: typ, name: dm[1], count: count})
		}
	}
	return out, nil
}

// reflectSource builds the reflection table from the declarations of the
// source. Constants are packed in declaration order, each starting on a
// 16-byte boundary; samplers take consecutive registers.
func reflectSource(source string, stage device.StageKind, symbols map[string]string) (compiler.ReflectionTable, error) {
	var refl compiler.ReflectionTable
	source = comments.ReplaceAllString(source, "")

	if stage == device.StageVertex {
		ins, err := declarations(inputs, source, stage)
		if err != nil {
			return refl, err
		}
		for _, d := range ins {
			refl.Inputs = append(refl.Inputs, compiler.Input{Name: d.name, Type: d.typ})
		}
	}

	decls, err := declarations(uniforms, source, stage)
	if err != nil {
		return refl, err
	}
	var offset, register uint32
	for _, d := range decls {
		c := compiler.Constant{Name: d.name, Type: d.typ, ArrayLength: d.count, Symbol: symbols[d.name]}
		if d.typ.IsSampler() {
			c.Offset = register
			register += uint32(d.count)
		} else {
			c.Offset = offset
			offset += (uint32(d.typ.Size()*d.count) + 15) &^ 15
		}
		refl.Constants = append(refl.Constants, c)
	}
	return refl, nil
}
