package program

import (
	"errors"
	"fmt"

	"github.com/richinsley/goangle/compiler"
	"github.com/richinsley/goangle/device"
)

// Shader is a shader object: the source text of one stage, compiled on its
// own before programs link it.
type Shader struct {
	stage    device.StageKind
	source   string
	compiled string

	isCompiled bool
	infoLog    string

	attached      int
	deletePending bool
}

// NewShader creates an empty shader object for stage.
func NewShader(stage device.StageKind) *Shader {
	return &Shader{stage: stage}
}

// Stage returns the shader's stage.
func (s *Shader) Stage() device.StageKind { return s.stage }

// SetSource replaces the source text. It does not affect what programs link
// until Compile is called again.
func (s *Shader) SetSource(src string) { s.source = src }

// Source returns the current source text.
func (s *Shader) Source() string { return s.source }

// Compile snapshots the source for linking. If c can validate source on its
// own, the source is checked first and a failure leaves the shader
// uncompiled with the diagnostic in InfoLog.
func (s *Shader) Compile(c compiler.Compiler) error {
	s.isCompiled = false
	s.infoLog = ""
	if s.source == "" {
		s.infoLog = "empty source"
		return &compiler.CompileError{Stage: s.stage, Log: s.infoLog}
	}
	if v, ok := c.(compiler.Validator); ok {
		if err := v.Validate(s.source, s.stage); err != nil {
			var ce *compiler.CompileError
			if errors.As(err, &ce) {
				s.infoLog = ce.Log
			} else {
				s.infoLog = err.Error()
			}
			return fmt.Errorf("program: compile %s shader: %w", s.stage, err)
		}
	}
	s.compiled = s.source
	s.isCompiled = true
	return nil
}

// IsCompiled reports whether the last Compile succeeded.
func (s *Shader) IsCompiled() bool { return s.isCompiled }

// InfoLog returns the diagnostic text of the last Compile.
func (s *Shader) InfoLog() string { return s.infoLog }

// FlagForDeletion marks the shader for deletion once no program has it
// attached.
func (s *Shader) FlagForDeletion() { s.deletePending = true }

// IsFlaggedForDeletion reports whether FlagForDeletion was called.
func (s *Shader) IsFlaggedForDeletion() bool { return s.deletePending }

// IsDeleted reports whether the shader is flagged and no longer attached.
func (s *Shader) IsDeleted() bool { return s.deletePending && s.attached == 0 }
