package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"os/exec"
	"sync"

	"github.com/ivlev/screenzoom/internal/system"
)

// Source provides decoded frames of the recording. The image returned by
// Frame is only valid until the next call.
type Source interface {
	Frame(ctx context.Context, t float64) (image.Image, error)
	Size() image.Point
	Close() error
}

// seekThreshold is the forward jump, in seconds, above which FFmpegSource
// restarts ffmpeg with a seek instead of decoding through.
const seekThreshold = 5.0

// FFmpegSource decodes a video through an ffmpeg rawvideo pipe at a fixed
// rate. Forward access is sequential; going backwards restarts the decoder.
// The decoder process is bound to the context of the call that started it
// and is restarted once that context is done.
type FFmpegSource struct {
	path string
	info system.VideoInfo
	fps  float64

	mu     sync.Mutex
	cmd    *exec.Cmd
	cmdCtx context.Context
	stdout io.ReadCloser
	reader *bufio.Reader
	next   int // Index of the next frame on the pipe
	frame  *image.RGBA
	have   int // Index held in frame, -1 if none
}

// NewFFmpegSource opens path for decoding at fps. info is the probed stream.
func NewFFmpegSource(path string, info system.VideoInfo, fps float64) (*FFmpegSource, error) {
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("invalid video size %dx%d", info.Width, info.Height)
	}
	if fps <= 0 {
		fps = info.FPS
	}
	if fps <= 0 {
		return nil, fmt.Errorf("unknown frame rate for %s", path)
	}
	return &FFmpegSource{
		path:  path,
		info:  info,
		fps:   fps,
		frame: image.NewRGBA(image.Rect(0, 0, info.Width, info.Height)),
		have:  -1,
	}, nil
}

// Size returns the frame size in pixels.
func (s *FFmpegSource) Size() image.Point {
	return image.Pt(s.info.Width, s.info.Height)
}

// Frame returns the frame shown at t. Past the end of the stream the last
// decoded frame is repeated.
func (s *FFmpegSource) Frame(ctx context.Context, t float64) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := max(0, int(math.Round(t*s.fps)))
	if idx == s.have {
		return s.frame, nil
	}
	if s.cmd == nil || s.cmdCtx.Err() != nil || idx < s.next || float64(idx-s.next)/s.fps > seekThreshold {
		if err := s.restart(ctx, idx); err != nil {
			return nil, err
		}
	}

	for s.next <= idx {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		_, err := io.ReadFull(s.reader, s.frame.Pix)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if s.have >= 0 {
				system.Logger().Debug("video ended before requested frame", "frame", idx, "last", s.have)
				return s.frame, nil
			}
			return nil, fmt.Errorf("no frame at %.3fs in %s", t, s.path)
		}
		if err != nil {
			return nil, fmt.Errorf("read frame: %w", err)
		}
		s.have = s.next
		s.next++
	}
	return s.frame, nil
}

func (s *FFmpegSource) restart(ctx context.Context, idx int) error {
	s.stop()

	seek := float64(idx) / s.fps
	args := []string{
		"-v", "error",
		"-ss", fmt.Sprintf("%f", seek),
		"-i", s.path,
		"-an",
		"-vf", fmt.Sprintf("fps=%g", s.fps),
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-",
	}
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w", err)
	}
	system.Logger().Debug("decoder started", "path", s.path, "seek", seek)

	s.cmd = cmd
	s.cmdCtx = ctx
	s.stdout = stdout
	s.reader = bufio.NewReaderSize(stdout, len(s.frame.Pix))
	s.next = idx
	s.have = -1
	return nil
}

func (s *FFmpegSource) stop() {
	if s.cmd == nil {
		return
	}
	s.stdout.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	s.cmd.Wait()
	s.cmd = nil
	s.cmdCtx = nil
	s.stdout = nil
	s.reader = nil
}

// Close stops the decoder.
func (s *FFmpegSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stop()
	return nil
}

// Open picks a source for path: image files and directories of images use
// ImageSource, anything else is decoded with ffmpeg.
func Open(ctx context.Context, path string, fps float64) (Source, error) {
	if isImagePath(path) {
		return NewImageSource(path, fps)
	}
	info, err := system.ProbeVideo(ctx, path)
	if err != nil {
		return nil, err
	}
	return NewFFmpegSource(path, info, fps)
}
