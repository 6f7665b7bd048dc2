// Package device defines the vocabulary of the native device collaborator.
//
// The engine never talks to a graphics API directly. Everything it needs from
// the foreign device (resource creation, constant storage, pipeline state) is
// expressed through the interfaces in this package, so the same program,
// texture and snapshot code runs against the in-memory device used in tests and
// against a real backend.
package device

import (
	"errors"

	"github.com/gogpu/gputypes"
)

// ErrDeviceLost means that the device was lost or reset. Every object created
// from it is dead; owners must drop their references and rebuild once a new
// device is available.
var ErrDeviceLost = errors.New("device: device lost")

// ErrOutOfMemory means that a native allocation failed.
var ErrOutOfMemory = errors.New("device: out of memory")

// ErrUnsupported means that the device cannot create the requested object.
var ErrUnsupported = errors.New("device: unsupported")

// Object is a reference-counted native object.
//
// Getters on Context return objects with one reference added on behalf of the
// caller, who must call Release exactly once. Setters never take over the
// caller's reference.
type Object interface {
	AddRef()
	Release()
}

// Device creates native objects and owns the immediate context.
type Device interface {
	// Immediate returns the device's single immediate context.
	Immediate() Context

	// NewTexture allocates a native texture with uninitialized contents.
	NewTexture(desc TextureDesc) (Texture, error)

	// NewShader creates a native stage object from compiled code.
	NewShader(desc ShaderDesc) (Shader, error)

	// NewSampler creates a sampler state object.
	NewSampler(desc SamplerDesc) (Object, error)

	// Lost reports whether the device has been lost.
	Lost() bool
}

// TextureKind is the shape of a native texture.
type TextureKind int

const (
	Texture2D TextureKind = iota
	TextureCube
)

// Faces returns the number of faces of a texture of kind k.
func (k TextureKind) Faces() int {
	if k == TextureCube {
		return 6
	}
	return 1
}

func (k TextureKind) String() string {
	if k == TextureCube {
		return "cube"
	}
	return "2d"
}

// TextureDesc describes a native texture.
type TextureDesc struct {
	Kind         TextureKind
	Format       gputypes.TextureFormat
	Width        int
	Height       int
	Levels       int
	RenderTarget bool
}

// Texture is a native texture.
type Texture interface {
	Object

	// Desc returns the description the texture was created with.
	Desc() TextureDesc

	// Upload replaces the contents of one face/level.
	// data is tightly packed in the texture's format.
	Upload(face, level int, data []byte) error

	// RenderTarget returns a referenced render target view of one face/level.
	RenderTarget(face, level int) (Object, error)

	// ShaderResource returns a referenced view for sampling the whole texture.
	ShaderResource() (Object, error)
}

// SamplerDesc describes a sampler state object. A MipmapFilter of
// gputypes.MipmapFilterModeUndefined samples the base level only.
type SamplerDesc struct {
	AddressU     gputypes.AddressMode
	AddressV     gputypes.AddressMode
	MagFilter    gputypes.FilterMode
	MinFilter    gputypes.FilterMode
	MipmapFilter gputypes.MipmapFilterMode
}

// ConstantDesc describes one active constant of a stage object.
type ConstantDesc struct {
	Name   string
	Type   ValueType
	Offset uint32
	Count  int

	// Symbol is the constant's name in Code when it differs from Name.
	Symbol string
}

// ShaderDesc describes a native stage object.
type ShaderDesc struct {
	Stage     StageKind
	Code      []byte
	Constants []ConstantDesc

	// Samplers lists the sampler constants. Their Offset is the sampler
	// register.
	Samplers []ConstantDesc
}

// Shader is a compiled native stage object together with its constant
// storage.
type Shader interface {
	Object

	// Stage returns the stage the object was compiled for.
	Stage() StageKind

	// SetConstants writes count elements of typ to the constant storage at
	// offset. data is tightly packed, 4 bytes per component.
	SetConstants(offset uint32, typ ValueType, count int, data []byte) error
}
