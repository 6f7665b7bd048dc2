package device

import "github.com/gogpu/gputypes"

// FormatSize returns the size in bytes of one texel of f, or 0 if f is not
// a format the engine uploads.
func FormatSize(f gputypes.TextureFormat) int {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRG8Unorm:
		return 2
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
		return 4
	case gputypes.TextureFormatRGBA16Float:
		return 8
	case gputypes.TextureFormatRGBA32Float:
		return 16
	}
	return 0
}

// LevelSize returns the dimensions of mip level l of a w×h image.
func LevelSize(w, h, l int) (int, int) {
	w >>= l
	h >>= l
	return max(1, w), max(1, h)
}
