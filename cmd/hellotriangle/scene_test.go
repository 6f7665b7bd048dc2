package main

import (
	"bytes"
	"testing"

	"github.com/chewxy/math32"
	"github.com/richinsley/goangle/device"
	options "github.com/richinsley/goangle/options"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headlessOptions(filter string) *options.SampleOptions {
	w, h, frames, fps := 320, 200, 2, 60
	headless, verbose := true, false
	out, ffmpegPath, codec, wrap := "", "", "h264", "clamp"
	speed := 1.0
	return &options.SampleOptions{
		Width: &w, Height: &h, Headless: &headless, Frames: &frames, FPS: &fps,
		OutputFile: &out, FFMPEGPath: &ffmpegPath, Codec: &codec,
		Filter: &filter, Wrap: &wrap, Speed: &speed, Verbose: &verbose,
	}
}

func TestRunHeadless(t *testing.T) {
	for _, filter := range []string{"linear", "mipmap"} {
		t.Run(filter, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, runHeadless(headlessOptions(filter), &out))
			assert.Contains(t, out.String(), "frame 0: 3 vertices")
			assert.Contains(t, out.String(), "frame 1: 3 vertices")
			assert.Contains(t, out.String(), "Width:320 Height:200", "host viewport is restored")
		})
	}
}

func TestTransformMatrix(t *testing.T) {
	m := transformMatrix(0, 200, 100)
	assert.Equal(t, [16]float32{0.5, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}, m)

	m = transformMatrix(math32.Pi/2, 100, 100)
	assert.InDelta(t, 0, m[0], 1e-6)
	assert.InDelta(t, 1, m[1], 1e-6)
	assert.InDelta(t, -1, m[4], 1e-6)
}

func TestInsetViewport(t *testing.T) {
	vp := insetViewport(device.Viewport{Width: 400, Height: 200, MaxDepth: 1})
	assert.Equal(t, device.Viewport{X: 120, Y: 20, Width: 160, Height: 160, MaxDepth: 1}, vp)
}

func TestCheckerImage(t *testing.T) {
	img := checkerImage(16)
	assert.NotEqual(t, img.RGBAAt(0, 0), img.RGBAAt(2, 0))
	assert.Equal(t, img.RGBAAt(0, 0), img.RGBAAt(2, 2))

	one := checkerImage(1)
	assert.Equal(t, 1, one.Bounds().Dx())
}
