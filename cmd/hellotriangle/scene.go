package main

import (
	"fmt"
	"image"
	"image/color"

	"github.com/chewxy/math32"
	"github.com/richinsley/goangle/bridge"
	"github.com/richinsley/goangle/compiler"
	"github.com/richinsley/goangle/device"
	"github.com/richinsley/goangle/program"
	"github.com/richinsley/goangle/shader"
	"github.com/richinsley/goangle/texture"
)

// checkerUnit is the texture unit the checker texture is bound to.
const checkerUnit = 0

// scene is the engine side of the sample: one program and one texture
// driven through a bridge.
type scene struct {
	b       *bridge.Bridge
	prog    *program.Program
	checker *texture.Texture

	transform int
	tint      int
}

func newScene(b *bridge.Bridge, comp compiler.Compiler, lang shader.Language, filter, wrap string) (*scene, error) {
	s := &scene{b: b}
	s.prog = b.NewProgram(comp, program.Options{})
	for stage, src := range map[device.StageKind]string{
		device.StageVertex: shader.VertexSource(lang),
		device.StagePixel:  shader.FragmentSource(lang),
	} {
		sh := program.NewShader(stage)
		sh.SetSource(src)
		if err := sh.Compile(comp); err != nil {
			return nil, fmt.Errorf("compile %s shader: %w", stage, err)
		}
		s.prog.AttachShader(sh)
	}
	if err := s.prog.Link(); err != nil {
		return nil, fmt.Errorf("link: %w", err)
	}
	s.transform = s.prog.GetUniformLocation(shader.TransformUniform)
	s.tint = s.prog.GetUniformLocation(shader.TintUniform)
	if sampler := s.prog.SamplerLocation(shader.CheckerSampler); sampler >= 0 {
		s.prog.SetSamplerUnit(sampler, checkerUnit)
	}

	checker, err := newChecker(b, 64, filter, wrap)
	if err != nil {
		return nil, err
	}
	s.checker = checker
	if err := b.BindTexture(checkerUnit, checker); err != nil {
		return nil, err
	}
	return s, nil
}

// checkerImage draws a size×size two-color checkerboard of 8×8 cells.
func checkerImage(size int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cell := max(1, size/8)
	for y := range size {
		for x := range size {
			c := color.RGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff}
			if (x/cell+y/cell)%2 == 1 {
				c = color.RGBA{R: 0x30, G: 0x30, B: 0x40, A: 0xff}
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// newChecker builds the checker texture. A mipmapped filter gets the full
// chain so the texture is complete.
func newChecker(b *bridge.Bridge, size int, filter, wrap string) (*texture.Texture, error) {
	t := b.NewTexture(texture.TwoD)
	minFilter, magFilter := texture.ParseFilter(filter)
	if err := t.SetMinFilter(minFilter); err != nil {
		return nil, err
	}
	if err := t.SetMagFilter(magFilter); err != nil {
		return nil, err
	}
	if err := t.SetWrapS(texture.ParseWrap(wrap)); err != nil {
		return nil, err
	}
	if err := t.SetWrapT(texture.ParseWrap(wrap)); err != nil {
		return nil, err
	}

	levels := 1
	if filter == "mipmap" {
		levels = texture.LevelCount(size, size)
	}
	for l := range levels {
		w, _ := device.LevelSize(size, size, l)
		if err := t.SetImageFromImage(texture.FacePositiveX, l, checkerImage(w), true); err != nil {
			return nil, fmt.Errorf("checker level %d: %w", l, err)
		}
	}
	if !t.IsComplete() {
		return nil, fmt.Errorf("checker: %w", texture.ErrIncomplete)
	}
	return t, nil
}

// transformMatrix rotates by angle about Z and squeezes x by the aspect
// ratio, column-major.
func transformMatrix(angle float32, width, height int) [16]float32 {
	sin, cos := math32.Sin(angle), math32.Cos(angle)
	ax := float32(1)
	if width > 0 {
		ax = float32(height) / float32(width)
	}
	return [16]float32{
		cos * ax, sin, 0, 0,
		-sin * ax, cos, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// tintColor cycles the tint through hues over time.
func tintColor(t float32) [4]float32 {
	const third = 2 * math32.Pi / 3
	return [4]float32{
		0.6 + 0.4*math32.Cos(t),
		0.6 + 0.4*math32.Cos(t-third),
		0.6 + 0.4*math32.Cos(t+third),
		1,
	}
}

// draw renders the triangle into the viewport vp, inside a rendering scope
// that gives the host its pipeline state back afterwards.
func (s *scene) draw(t, speed float32, vp device.Viewport) error {
	if err := s.b.BeginRendering(); err != nil {
		return err
	}
	defer s.b.EndRendering()

	s.b.Device().Immediate().SetViewports([]device.Viewport{vp})
	if err := s.b.UseProgram(s.prog); err != nil {
		return err
	}
	m := transformMatrix(t*speed, int(vp.Width), int(vp.Height))
	s.prog.SetUniformMatrix4fv(s.transform, 1, m[:])
	tint := tintColor(t)
	s.prog.SetUniform4fv(s.tint, 1, tint[:])
	return s.b.Draw(3, 0)
}

// release deletes the scene's objects.
func (s *scene) release() {
	s.b.DeleteProgram(s.prog)
	s.b.DeleteTexture(s.checker)
	s.b.Close()
}
