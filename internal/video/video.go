package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/ivlev/screenzoom/internal/system"
)

// Options describe one encoding run.
type Options struct {
	Output      string
	Width       int
	Height      int
	FPS         float64
	EncoderName string // ffmpeg encoder, e.g. libx264 or h264_videotoolbox
	Bitrate     int    // Target bits per second
	CRF         int    // Constant quality for encoders that support it

	AudioSource string  // Optional file whose audio track is muxed in
	AudioOffset float64 // Seconds into AudioSource where the output starts
}

// FFmpegEncoder streams raw RGBA frames into one ffmpeg process.
type FFmpegEncoder struct {
	opts   Options
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *bytes.Buffer
	frames int

	mu   sync.Mutex
	done bool
}

// NewFFmpegEncoder starts ffmpeg writing to opts.Output.
func NewFFmpegEncoder(ctx context.Context, opts Options) (*FFmpegEncoder, error) {
	if opts.Width <= 0 || opts.Height <= 0 || opts.Width%2 != 0 || opts.Height%2 != 0 {
		return nil, fmt.Errorf("frame size must be positive and even, got %dx%d", opts.Width, opts.Height)
	}
	if opts.FPS <= 0 {
		return nil, fmt.Errorf("fps must be positive, got %v", opts.FPS)
	}
	if opts.EncoderName == "" {
		opts.EncoderName = system.GetBestH264Encoder()
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", buildFFmpegArgs(opts)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}
	system.Logger().Debug("encoder started", "output", opts.Output, "encoder", opts.EncoderName, "bitrate", opts.Bitrate)
	return &FFmpegEncoder{opts: opts, cmd: cmd, stdin: stdin, stderr: stderr}, nil
}

func buildFFmpegArgs(opts Options) []string {
	args := []string{
		"-y",
		"-v", "error",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"-framerate", fmt.Sprintf("%g", opts.FPS),
		"-i", "-",
	}
	if opts.AudioSource != "" {
		args = append(args, "-ss", fmt.Sprintf("%f", opts.AudioOffset), "-i", opts.AudioSource,
			"-map", "0:v", "-map", "1:a?", "-c:a", "aac", "-shortest")
	}
	args = append(args,
		"-pix_fmt", "yuv420p",
		"-c:v", opts.EncoderName,
	)
	args = append(args, qualityArgs(opts)...)
	args = append(args, opts.Output)
	return args
}

// qualityArgs maps the target quality onto each encoder's rate control.
func qualityArgs(opts Options) []string {
	kbps := fmt.Sprintf("%dk", max(opts.Bitrate/1000, 1))
	switch {
	case strings.HasSuffix(opts.EncoderName, "_videotoolbox"):
		// VideoToolbox часто не поддерживает -q:v напрямую на всех версиях. Используем битрейт.
		return []string{"-b:v", kbps}
	case strings.HasSuffix(opts.EncoderName, "_nvenc"):
		return []string{"-cq", fmt.Sprintf("%d", opts.CRF), "-b:v", kbps}
	default: // libx264 / libx265
		return []string{"-crf", fmt.Sprintf("%d", opts.CRF), "-preset", "medium", "-maxrate", kbps, "-bufsize", fmt.Sprintf("%dk", max(opts.Bitrate/500, 1))}
	}
}

// WriteFrame pipes one frame to the encoder.
func (e *FFmpegEncoder) WriteFrame(ctx context.Context, img image.Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if b := img.Bounds(); b.Dx() != e.opts.Width || b.Dy() != e.opts.Height {
		return fmt.Errorf("frame size %dx%d does not match output %dx%d", b.Dx(), b.Dy(), e.opts.Width, e.opts.Height)
	}
	if err := writeRawRGBA(e.stdin, img); err != nil {
		return fmt.Errorf("write raw error: %w%s", err, e.stderrTail())
	}
	e.frames++
	return nil
}

func writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix[:bounds.Dx()*bounds.Dy()*4])
	return err
}

// Finalize closes the stream and waits for ffmpeg to write the container.
func (e *FFmpegEncoder) Finalize(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return "", errors.New("encoder already closed")
	}
	e.done = true

	e.stdin.Close()
	if err := e.cmd.Wait(); err != nil {
		return "", fmt.Errorf("ffmpeg wait error: %w%s", err, e.stderrTail())
	}
	system.Logger().Debug("encoder finished", "output", e.opts.Output, "frames", e.frames)
	return e.opts.Output, nil
}

// Abort stops ffmpeg and removes the partial output.
func (e *FFmpegEncoder) Abort() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done {
		return nil
	}
	e.done = true

	e.stdin.Close()
	if e.cmd.Process != nil {
		e.cmd.Process.Kill()
	}
	e.cmd.Wait()
	if err := os.Remove(e.opts.Output); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove partial output: %w", err)
	}
	return nil
}

// Frames returns how many frames were written.
func (e *FFmpegEncoder) Frames() int {
	return e.frames
}

func (e *FFmpegEncoder) stderrTail() string {
	s := strings.TrimSpace(e.stderr.String())
	if s == "" {
		return ""
	}
	if len(s) > 500 {
		s = s[len(s)-500:]
	}
	return ", output: " + s
}

// RenderPreview renders input through a zoompan filter in a single ffmpeg
// call, without per-frame compositing.
func RenderPreview(ctx context.Context, input, output, filter string, start, duration float64, opts Options) error {
	args := []string{"-y", "-v", "error"}
	if start > 0 {
		args = append(args, "-ss", fmt.Sprintf("%f", start))
	}
	args = append(args, "-i", input)
	if duration > 0 {
		args = append(args, "-t", fmt.Sprintf("%f", duration))
	}
	if filter != "" {
		args = append(args, "-vf", filter)
	}
	if opts.EncoderName == "" {
		opts.EncoderName = system.GetBestH264Encoder()
	}
	args = append(args, "-pix_fmt", "yuv420p", "-c:v", opts.EncoderName)
	args = append(args, qualityArgs(opts)...)
	args = append(args, output)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg preview error: %v, output: %s", err, string(out))
	}
	return nil
}
