package main

import (
	"fmt"
	"io"

	"github.com/richinsley/goangle/bridge"
	"github.com/richinsley/goangle/compiler/wgsl"
	"github.com/richinsley/goangle/device"
	"github.com/richinsley/goangle/device/memdevice"
	options "github.com/richinsley/goangle/options"
	"github.com/richinsley/goangle/shader"
)

// headlessFrames is the frame count used when -frames is not given.
const headlessFrames = 3

// runHeadless renders on the in-memory device and reports each draw and
// the uniform values the vertex stage received.
func runHeadless(opts *options.SampleOptions, w io.Writer) error {
	dev := memdevice.New()
	ctx := dev.Context()
	b := bridge.New(dev)

	s, err := newScene(b, wgsl.New(), shader.WGSL, *opts.Filter, *opts.Wrap)
	if err != nil {
		return err
	}
	defer s.release()

	host := device.Viewport{Width: float32(*opts.Width), Height: float32(*opts.Height), MaxDepth: 1}
	ctx.SetViewports([]device.Viewport{host})

	frames := *opts.Frames
	if frames == 0 {
		frames = headlessFrames
	}
	for i := range frames {
		t := float32(i) / 60
		if err := s.draw(t, float32(*opts.Speed), insetViewport(host)); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		draw := ctx.Draws[len(ctx.Draws)-1]
		vs := s.prog.Executable(device.StageVertex).(*memdevice.Shader)
		fmt.Fprintf(w, "frame %d: %d vertices, vertex %v, pixel %v, transform[0]=% x\n",
			i, draw.Count, draw.Vertex, draw.Pixel, vs.Constants(0, 4))
	}
	fmt.Fprintf(w, "host viewport after %d frames: %+v\n", frames, ctx.Viewports())
	return nil
}

// insetViewport is the centered square the engine draws into.
func insetViewport(host device.Viewport) device.Viewport {
	side := min(host.Width, host.Height) * 0.8
	return device.Viewport{
		X:        host.X + (host.Width-side)/2,
		Y:        host.Y + (host.Height-side)/2,
		Width:    side,
		Height:   side,
		MaxDepth: 1,
	}
}
