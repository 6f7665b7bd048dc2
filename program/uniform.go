package program

import (
	"encoding/binary"
	"math"

	"github.com/richinsley/goangle/device"
)

// Uniform is one entry of a linked program's uniform sequence. Its type and
// size are fixed at link time; only the staged bytes change.
type Uniform struct {
	Type  device.ValueType
	Name  string
	Count int

	data []byte

	// offsets holds the constant storage offset per program stage, -1 where
	// the uniform is not active.
	offsets [numStages]int64
}

func newUniform(typ device.ValueType, name string, count int) *Uniform {
	u := &Uniform{Type: typ, Name: name, Count: count}
	u.data = make([]byte, typ.Size()*count)
	for i := range u.offsets {
		u.offsets[i] = -1
	}
	return u
}

// ByteSize returns the size of the staged value.
func (u *Uniform) ByteSize() int { return len(u.data) }

// Bytes returns a copy of the staged value.
func (u *Uniform) Bytes() []byte {
	out := make([]byte, len(u.data))
	copy(out, u.data)
	return out
}

// Active reports whether the uniform is used by stage.
func (u *Uniform) Active(stage device.StageKind) bool {
	i, ok := stageIndex(stage)
	return ok && u.offsets[i] >= 0
}

func putFloats(dst []byte, v []float32) {
	for i, f := range v {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(f))
	}
}

func putInts(dst []byte, v []int32) {
	for i, n := range v {
		binary.LittleEndian.PutUint32(dst[i*4:], uint32(n))
	}
}
