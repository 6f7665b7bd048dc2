// Command hellotriangle shares one device context between a host
// application and the engine. The host clears the frame and owns the
// viewport; the engine draws a textured, rotating triangle in between, and
// the host's state is put back after every engine frame.
//
// With -headless the sample runs on the in-memory device with the WGSL
// compiler and prints what was drawn.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"runtime"

	"github.com/richinsley/goangle/diag"
	options "github.com/richinsley/goangle/options"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	opts := &options.SampleOptions{
		Help:       flag.Bool("help", false, "Show help message"),
		Width:      flag.Int("width", 800, "Width of the window"),
		Height:     flag.Int("height", 600, "Height of the window"),
		Headless:   flag.Bool("headless", false, "Render on the in-memory device without a window"),
		Frames:     flag.Int("frames", 0, "Number of frames to render (0 = until the window closes)"),
		FPS:        flag.Int("fps", 60, "Frames per second for recording"),
		OutputFile: flag.String("record", "", "Record the frames to this video file"),
		FFMPEGPath: flag.String("ffmpeg", "", "Path to ffmpeg executable"),
		Codec:      flag.String("codec", "h264", "Recording codec: h264 or hevc"),
		Filter:     flag.String("filter", "linear", "Checker texture filter: nearest, linear or mipmap"),
		Wrap:       flag.String("wrap", "repeat", "Checker texture wrap: clamp, repeat or mirror"),
		Speed:      flag.Float64("speed", 1.0, "Rotation speed in radians per second"),
		Verbose:    flag.Bool("verbose", false, "Log engine activity"),
	}
	flag.Parse()

	if *opts.Help {
		fmt.Println("goangle hello triangle")
		flag.PrintDefaults()
		return
	}
	if err := opts.Validate(); err != nil {
		log.Fatalf("Invalid options: %v", err)
	}
	if *opts.Verbose {
		diag.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	if *opts.Headless {
		if err := runHeadless(opts, os.Stdout); err != nil {
			log.Fatalf("Headless run failed: %v", err)
		}
		return
	}
	if err := runWindowed(opts); err != nil {
		log.Fatalf("Render loop failed: %v", err)
	}
}
