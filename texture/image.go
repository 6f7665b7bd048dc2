package texture

import (
	"fmt"
	"image"
	"image/draw"
)

// vflip reverses the row order of img in place, matching the bottom-up rows
// of the portable API.
func vflip(img *image.RGBA) {
	row := make([]byte, img.Rect.Dx()*4)
	for top, bottom := 0, img.Rect.Dy()-1; top < bottom; top, bottom = top+1, bottom-1 {
		a := img.Pix[top*img.Stride:][:len(row)]
		b := img.Pix[bottom*img.Stride:][:len(row)]
		copy(row, a)
		copy(a, b)
		copy(b, row)
	}
}

// SetImageFromImage stores img as RGBA8 data of face/level, optionally
// flipped vertically.
func (t *Texture) SetImageFromImage(face Face, level int, img image.Image, flipY bool) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", ErrInvalidValue)
	}
	rgba := image.NewRGBA(image.Rect(0, 0, img.Bounds().Dx(), img.Bounds().Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, img.Bounds().Min, draw.Src)
	if flipY {
		vflip(rgba)
	}
	size := rgba.Rect.Size()
	return t.SetImage(face, level, RGBA, size.X, size.Y, RGBA, UnsignedByte, rgba.Pix)
}

// ParseWrap maps a wrap name ("repeat", "clamp" or "mirror") to a wrap mode.
// Unknown names give Repeat.
func ParseWrap(wrap string) uint32 {
	switch wrap {
	case "clamp":
		return ClampToEdge
	case "mirror":
		return MirroredRepeat
	default:
		return Repeat
	}
}

// ParseFilter maps a filter name ("mipmap", "linear" or "nearest") to min
// and mag filters. Unknown names give linear filtering.
func ParseFilter(filter string) (minFilter, magFilter uint32) {
	switch filter {
	case "mipmap":
		return LinearMipmapLinear, Linear
	case "nearest":
		return Nearest, Nearest
	default:
		return Linear, Linear
	}
}
