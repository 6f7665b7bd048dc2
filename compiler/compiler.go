// Package compiler defines the contract of the shader compiler collaborator.
//
// A Compiler turns one stage's source text into device code plus a
// ReflectionTable describing the stage's active inputs and constants. The
// engine never looks inside the code; it only needs the reflection to build
// attribute, sampler and uniform tables.
package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/richinsley/goangle/device"
)

// ErrCompileFailure is matched by every *CompileError.
var ErrCompileFailure = errors.New("compiler: compile failure")

// CompileError carries the diagnostic text of a failed compilation.
type CompileError struct {
	Stage device.StageKind
	Log   string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compiler: %s stage: %s", e.Stage, strings.TrimSpace(e.Log))
}

// Is reports whether target is ErrCompileFailure.
func (e *CompileError) Is(target error) bool { return target == ErrCompileFailure }

// Profile selects the stage and target the source is compiled for,
// e.g. "vs_5_0" or "ps_5_0".
type Profile string

// Stage returns the stage a profile targets, from its two-letter prefix.
func (p Profile) Stage() (device.StageKind, bool) {
	prefix, _, _ := strings.Cut(string(p), "_")
	switch prefix {
	case "vs":
		return device.StageVertex, true
	case "ps", "fs":
		return device.StagePixel, true
	case "gs":
		return device.StageGeometry, true
	case "hs":
		return device.StageHull, true
	case "ds":
		return device.StageDomain, true
	case "cs":
		return device.StageCompute, true
	}
	return 0, false
}

// Input is an active stage input.
type Input struct {
	Name string
	Type device.ValueType
}

// Constant is an active stage constant. For samplers Offset is the sampler
// register and ArrayLength the number of consecutive registers.
type Constant struct {
	Name        string
	Type        device.ValueType
	Offset      uint32
	ArrayLength int

	// Symbol is the name in the generated code, if the compiler renamed it.
	Symbol string
}

// ReflectionTable describes the active interface of one compiled stage.
type ReflectionTable struct {
	Inputs    []Input
	Constants []Constant
}

// Binary is the result of a successful compilation.
type Binary struct {
	Stage      device.StageKind
	Code       []byte
	Reflection ReflectionTable
}

// ShaderDesc returns the description of a native stage object built from b.
// Sampler constants are listed apart from the constant storage.
func (b *Binary) ShaderDesc() device.ShaderDesc {
	desc := device.ShaderDesc{Stage: b.Stage, Code: b.Code}
	for _, c := range b.Reflection.Constants {
		cd := device.ConstantDesc{
			Name:   c.Name,
			Type:   c.Type,
			Offset: c.Offset,
			Count:  max(1, c.ArrayLength),
			Symbol: c.Symbol,
		}
		if c.Type.IsSampler() {
			desc.Samplers = append(desc.Samplers, cd)
			continue
		}
		desc.Constants = append(desc.Constants, cd)
	}
	return desc
}

// Compiler compiles source text for a target profile.
type Compiler interface {
	Compile(source string, profile Profile) (*Binary, error)
}

// Validator is implemented by compilers that can check source text without
// producing code. Shader objects use it when they are compiled on their own,
// before any program links them.
type Validator interface {
	Validate(source string, stage device.StageKind) error
}

// Func adapts a function to the Compiler interface.
type Func func(source string, profile Profile) (*Binary, error)

// Compile calls f.
func (f Func) Compile(source string, profile Profile) (*Binary, error) { return f(source, profile) }
