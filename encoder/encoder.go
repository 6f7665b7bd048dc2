// Package encoder records rendered RGBA frames to a video file by piping
// them to an ffmpeg process.
package encoder

import (
	"fmt"
	"io"
	"log"
	"runtime"
	"strings"

	"github.com/richinsley/goangle/options"
	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Frame is one rendered frame, bottom row first as GL reads it back.
type Frame struct {
	Pixels []byte
	PTS    int64
}

// Recorder consumes frames on a goroutine and feeds them to ffmpeg.
type Recorder struct {
	width  int
	height int
	frames chan *Frame
	done   chan error
}

func inputArgs(opts *options.SampleOptions) ffmpeg.KwArgs {
	return ffmpeg.KwArgs{
		"f":         "rawvideo",
		"pix_fmt":   "rgba",
		"s":         fmt.Sprintf("%dx%d", *opts.Width, *opts.Height),
		"framerate": *opts.FPS,
	}
}

// outputArgs picks the encoder for the platform, the way the shadertoy
// renderer does, and flips the image upright.
func outputArgs(opts *options.SampleOptions, goos string) ffmpeg.KwArgs {
	hevc := strings.EqualFold(*opts.Codec, "hevc")
	args := ffmpeg.KwArgs{
		"vf":      "vflip",
		"pix_fmt": "yuv420p",
	}
	switch goos {
	case "darwin":
		args["c:v"] = "h264_videotoolbox"
		if hevc {
			args["c:v"] = "hevc_videotoolbox"
		}
	default:
		args["c:v"] = "libx264"
		if hevc {
			args["c:v"] = "libx265"
		}
	}
	if hevc && strings.HasSuffix(*opts.OutputFile, ".mp4") {
		args["tag:v"] = "hvc1"
	}
	return args
}

// NewRecorder starts ffmpeg writing to opts.OutputFile.
func NewRecorder(opts *options.SampleOptions) *Recorder {
	r := &Recorder{
		width:  *opts.Width,
		height: *opts.Height,
		frames: make(chan *Frame, 3),
		done:   make(chan error, 1),
	}

	pipeReader, pipeWriter := io.Pipe()
	cmd := ffmpeg.Input("pipe:", inputArgs(opts)).
		Output(*opts.OutputFile, outputArgs(opts, runtime.GOOS)).
		OverWriteOutput().WithInput(pipeReader).ErrorToStdOut()
	if *opts.FFMPEGPath != "" {
		cmd = cmd.SetFfmpegPath(*opts.FFMPEGPath)
	}

	errc := make(chan error, 1)
	go func() {
		err := cmd.Run()
		pipeReader.CloseWithError(io.ErrClosedPipe)
		errc <- err
	}()
	go r.run(pipeWriter, errc)
	return r
}

func (r *Recorder) run(w *io.PipeWriter, errc <-chan error) {
	for frame := range r.frames {
		if _, err := w.Write(frame.Pixels); err != nil {
			log.Printf("Error writing frame %d to ffmpeg: %v", frame.PTS, err)
			break
		}
	}
	// Drain so Submit never blocks after a write failure.
	for range r.frames {
	}
	w.Close()
	r.done <- <-errc
}

// FrameSize returns the byte size of one frame.
func (r *Recorder) FrameSize() int { return r.width * r.height * 4 }

// Submit queues a frame. Pixels must hold FrameSize bytes.
func (r *Recorder) Submit(f *Frame) error {
	if len(f.Pixels) != r.FrameSize() {
		return fmt.Errorf("encoder: frame %d has %d bytes, want %d", f.PTS, len(f.Pixels), r.FrameSize())
	}
	r.frames <- f
	return nil
}

// Close flushes the queued frames and waits for ffmpeg to exit.
func (r *Recorder) Close() error {
	close(r.frames)
	return <-r.done
}
