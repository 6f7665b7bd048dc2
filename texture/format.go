package texture

import (
	"encoding/binary"

	"github.com/gogpu/gputypes"
)

func components(format uint32) int {
	switch format {
	case Alpha, Luminance:
		return 1
	case LuminanceAlpha:
		return 2
	case RGB:
		return 3
	case RGBA:
		return 4
	}
	return 0
}

// pixelSize returns the size in bytes of one source pixel, or 0 if the
// combination is not accepted.
func pixelSize(format, typ uint32) int {
	switch typ {
	case UnsignedByte:
		return components(format)
	case Float:
		return components(format) * 4
	case HalfFloat:
		return components(format) * 2
	case UnsignedShort565:
		if format == RGB {
			return 2
		}
	case UnsignedShort4444, UnsignedShort5551:
		if format == RGBA {
			return 2
		}
	}
	return 0
}

// selectFormat picks the native format a source format/type is converted to.
func selectFormat(format, typ uint32) gputypes.TextureFormat {
	switch typ {
	case Float:
		return gputypes.TextureFormatRGBA32Float
	case HalfFloat:
		return gputypes.TextureFormatRGBA16Float
	}
	return gputypes.TextureFormatBGRA8Unorm
}

// convert expands the pixels of img to the native format selected for it.
func convert(img *MipImage) []byte {
	n := img.Width * img.Height
	switch img.Type {
	case Float:
		return expand(img.pixels, n, img.Format, 4, []byte{0x00, 0x00, 0x80, 0x3f})
	case HalfFloat:
		return expand(img.pixels, n, img.Format, 2, []byte{0x00, 0x3c})
	case UnsignedShort565, UnsignedShort4444, UnsignedShort5551:
		return unpackShorts(img.pixels, n, img.Type)
	}
	return toBGRA(expand(img.pixels, n, img.Format, 1, []byte{0xff}))
}

// expand widens n pixels of format, with size bytes per component, to RGBA
// order. one is the encoding of 1.0 for the missing alpha.
func expand(src []byte, n int, format uint32, size int, one []byte) []byte {
	dst := make([]byte, n*4*size)
	comps := components(format)
	for i := range n {
		s := src[i*comps*size:]
		d := dst[i*4*size:]
		c := func(k int) []byte { return s[k*size : (k+1)*size] }
		put := func(k int, v []byte) { copy(d[k*size:], v) }
		switch format {
		case Alpha:
			put(3, c(0))
		case Luminance:
			put(0, c(0))
			put(1, c(0))
			put(2, c(0))
			put(3, one)
		case LuminanceAlpha:
			put(0, c(0))
			put(1, c(0))
			put(2, c(0))
			put(3, c(1))
		case RGB:
			put(0, c(0))
			put(1, c(1))
			put(2, c(2))
			put(3, one)
		case RGBA:
			copy(d, s[:4*size])
		}
	}
	return dst
}

// toBGRA swaps the red and blue bytes of RGBA8 pixels in place.
func toBGRA(p []byte) []byte {
	for i := 0; i+3 < len(p); i += 4 {
		p[i], p[i+2] = p[i+2], p[i]
	}
	return p
}

// widen scales a bits-wide channel value to 8 bits.
func widen(v uint16, bits uint) byte {
	v &= 1<<bits - 1
	return byte(uint32(v) * 255 / (1<<bits - 1))
}

// unpackShorts converts packed 16-bit pixels to BGRA8.
func unpackShorts(src []byte, n int, typ uint32) []byte {
	dst := make([]byte, n*4)
	for i := range n {
		v := binary.LittleEndian.Uint16(src[i*2:])
		var r, g, b, a byte
		switch typ {
		case UnsignedShort565:
			r, g, b, a = widen(v>>11, 5), widen(v>>5, 6), widen(v, 5), 0xff
		case UnsignedShort4444:
			r, g, b, a = widen(v>>12, 4), widen(v>>8, 4), widen(v>>4, 4), widen(v, 4)
		case UnsignedShort5551:
			r, g, b, a = widen(v>>11, 5), widen(v>>6, 5), widen(v>>1, 5), widen(v, 1)
		}
		dst[i*4+0] = b
		dst[i*4+1] = g
		dst[i*4+2] = r
		dst[i*4+3] = a
	}
	return dst
}
