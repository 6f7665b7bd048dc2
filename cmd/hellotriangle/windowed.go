package main

import (
	"fmt"
	"log"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	glfw "github.com/go-gl/glfw/v3.3/glfw"
	"github.com/richinsley/goangle/bridge"
	"github.com/richinsley/goangle/device"
	"github.com/richinsley/goangle/device/gldevice"
	"github.com/richinsley/goangle/encoder"
	"github.com/richinsley/goangle/glfwcontext"
	"github.com/richinsley/goangle/graphics"
	options "github.com/richinsley/goangle/options"
	"github.com/richinsley/goangle/shader"
	"github.com/richinsley/goangle/translator"
)

// runWindowed opens a GLFW window and renders until it closes, or for
// -frames frames. With -record the window is hidden and every frame is read
// back and encoded.
func runWindowed(opts *options.SampleOptions) error {
	if err := glfwcontext.InitGraphics(); err != nil {
		return err
	}
	defer glfwcontext.TerminateGraphics()

	win, err := glfwcontext.New(opts)
	if err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	defer win.Shutdown()
	win.MakeCurrent()

	dev, err := gldevice.New()
	if err != nil {
		return err
	}
	b := bridge.New(dev)
	comp, err := translator.Default()
	if err != nil {
		return err
	}
	s, err := newScene(b, comp, shader.GLSLES, *opts.Filter, *opts.Wrap)
	if err != nil {
		return err
	}

	paused := false
	win.RegisterKeyCallback(glfw.KeySpace, func() { paused = !paused })
	win.RegisterKeyCallback(glfw.KeyL, func() {
		if err := simulateDeviceLoss(b, dev); err != nil {
			log.Printf("Device restore failed: %v", err)
			return
		}
		dev = b.Device().(*gldevice.Device)
	})

	var rec *encoder.Recorder
	if opts.Recording() {
		// The readback is framebuffer sized, which differs from the
		// window size on high-DPI displays.
		*opts.Width, *opts.Height = win.GetFramebufferSize()
		rec = encoder.NewRecorder(opts)
		log.Printf("Recording %dx%d to %s", *opts.Width, *opts.Height, *opts.OutputFile)
	}

	err = loop(win, s, opts, &paused, rec)
	s.release()
	dev.Close()
	if rec != nil {
		if cerr := rec.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func loop(win graphics.Context, s *scene, opts *options.SampleOptions, paused *bool, rec *encoder.Recorder) error {
	var t float32
	last := win.Time()
	for frame := 0; !win.ShouldClose(); frame++ {
		if *opts.Frames > 0 && frame >= *opts.Frames {
			break
		}
		now := win.Time()
		if rec != nil {
			now = last + 1/float64(*opts.FPS)
		}
		if !*paused {
			t += float32(now - last)
		}
		last = now

		// Host frame: the host owns the full-window viewport.
		w, h := win.GetFramebufferSize()
		host := device.Viewport{Width: float32(w), Height: float32(h), MaxDepth: 1}
		s.b.Device().Immediate().SetViewports([]device.Viewport{host})
		gl.ClearColor(0.1, 0.1, 0.12, 1)
		gl.Clear(gl.COLOR_BUFFER_BIT)

		if err := s.draw(t, float32(*opts.Speed), insetViewport(host)); err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}

		if rec != nil {
			if err := rec.Submit(readFrame(int64(frame), w, h)); err != nil {
				return err
			}
		}
		win.EndFrame()
	}
	return nil
}

// readFrame reads the default framebuffer back as RGBA, bottom row first.
func readFrame(pts int64, w, h int) *encoder.Frame {
	pixels := make([]byte, w*h*4)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	return &encoder.Frame{Pixels: pixels, PTS: pts}
}

// simulateDeviceLoss walks the engine through a device reset on the same GL
// context: every native object is dropped, then rebuilt on a fresh device.
func simulateDeviceLoss(b *bridge.Bridge, old *gldevice.Device) error {
	old.Lose()
	b.NotifyDeviceLost()
	dev, err := gldevice.New()
	if err != nil {
		return err
	}
	if err := b.RestoreDevice(dev); err != nil {
		return err
	}
	log.Printf("Device restored")
	return nil
}
