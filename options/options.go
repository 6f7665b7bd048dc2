package options

import (
	"errors"
	"fmt"
	"strings"
)

// SampleOptions is the hellotriangle command line.
type SampleOptions struct {
	Help       *bool
	Width      *int
	Height     *int
	Headless   *bool    // Render through the in-memory device and the WGSL compiler, with no window.
	Frames     *int     // Number of frames to render; 0 runs until the window closes.
	FPS        *int     // Frame rate of the recording.
	OutputFile *string  // Record the window to this file with ffmpeg. Empty disables recording.
	FFMPEGPath *string  // Optional path to the ffmpeg executable.
	Codec      *string  // h264 or hevc
	Filter     *string  // Checker texture filter: nearest, linear or mipmap.
	Wrap       *string  // Checker texture wrap: clamp, repeat or mirror.
	Speed      *float64 // Rotation speed in radians per second.
	Verbose    *bool
}

// Recording reports whether frames are sent to an encoder.
func (o *SampleOptions) Recording() bool {
	return o.OutputFile != nil && *o.OutputFile != ""
}

// Validate checks the option combination before any window is created.
func (o *SampleOptions) Validate() error {
	if *o.Width <= 0 || *o.Height <= 0 {
		return fmt.Errorf("invalid size %dx%d", *o.Width, *o.Height)
	}
	if *o.Frames < 0 {
		return fmt.Errorf("invalid frame count %d", *o.Frames)
	}
	if o.Recording() {
		if *o.Headless {
			return errors.New("recording needs a GL window; drop -headless")
		}
		if *o.FPS <= 0 {
			return fmt.Errorf("invalid frame rate %d", *o.FPS)
		}
		switch strings.ToLower(*o.Codec) {
		case "h264", "hevc":
		default:
			return fmt.Errorf("unknown codec %q", *o.Codec)
		}
	}
	return nil
}
