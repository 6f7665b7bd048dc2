package device

import "fmt"

// StageKind identifies a programmable pipeline stage.
type StageKind int

const (
	StageCompute StageKind = iota
	StageVertex
	StageGeometry
	StageHull
	StageDomain
	StagePixel
)

// Stages lists every programmable stage kind.
var Stages = [...]StageKind{
	StageCompute,
	StageVertex,
	StageGeometry,
	StageHull,
	StageDomain,
	StagePixel,
}

func (k StageKind) String() string {
	switch k {
	case StageCompute:
		return "compute"
	case StageVertex:
		return "vertex"
	case StageGeometry:
		return "geometry"
	case StageHull:
		return "hull"
	case StageDomain:
		return "domain"
	case StagePixel:
		return "pixel"
	}
	return fmt.Sprintf("StageKind(%d)", int(k))
}

// ValueType is the type of a shader input or constant.
type ValueType int

const (
	TypeInvalid ValueType = iota
	TypeFloat
	TypeVec2
	TypeVec3
	TypeVec4
	TypeMat2
	TypeMat3
	TypeMat4
	TypeInt
	TypeSampler2D
	TypeSamplerCube
)

// Components returns the number of 32-bit components of one element.
func (t ValueType) Components() int {
	switch t {
	case TypeFloat, TypeInt, TypeSampler2D, TypeSamplerCube:
		return 1
	case TypeVec2:
		return 2
	case TypeVec3:
		return 3
	case TypeVec4, TypeMat2:
		return 4
	case TypeMat3:
		return 9
	case TypeMat4:
		return 16
	}
	return 0
}

// Size returns the tightly packed byte size of one element.
func (t ValueType) Size() int { return 4 * t.Components() }

// IsSampler reports whether t is a sampler type.
func (t ValueType) IsSampler() bool {
	return t == TypeSampler2D || t == TypeSamplerCube
}

func (t ValueType) String() string {
	switch t {
	case TypeFloat:
		return "float"
	case TypeVec2:
		return "vec2"
	case TypeVec3:
		return "vec3"
	case TypeVec4:
		return "vec4"
	case TypeMat2:
		return "mat2"
	case TypeMat3:
		return "mat3"
	case TypeMat4:
		return "mat4"
	case TypeInt:
		return "int"
	case TypeSampler2D:
		return "sampler2D"
	case TypeSamplerCube:
		return "samplerCube"
	}
	return "invalid"
}
