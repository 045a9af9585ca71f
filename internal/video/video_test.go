package video

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"strings"
	"testing"
)

func TestBuildFFmpegArgsQuality(t *testing.T) {
	tests := []struct {
		encoder string
		want    string
		absent  string
	}{
		{"h264_videotoolbox", "-b:v 8294k", "-crf"},
		{"hevc_videotoolbox", "-b:v 8294k", "-crf"},
		{"h264_nvenc", "-cq 23 -b:v 8294k", "-crf"},
		{"libx264", "-crf 23 -preset medium -maxrate 8294k -bufsize 16588k", "-cq"},
		{"libx265", "-crf 23 -preset medium", "-cq"},
	}
	for _, tt := range tests {
		t.Run(tt.encoder, func(t *testing.T) {
			opts := Options{Output: "out.mp4", Width: 1920, Height: 1080, FPS: 30, EncoderName: tt.encoder, Bitrate: 1920 * 1080 * 4, CRF: 23}
			args := strings.Join(buildFFmpegArgs(opts), " ")
			if !strings.Contains(args, tt.want) {
				t.Errorf("args %q should contain %q", args, tt.want)
			}
			if strings.Contains(args, tt.absent) {
				t.Errorf("args %q should not contain %q", args, tt.absent)
			}
			if !strings.HasPrefix(args, "-y -v error -f rawvideo -pixel_format rgba -video_size 1920x1080 -framerate 30 -i -") {
				t.Errorf("unexpected input args: %q", args)
			}
			if !strings.HasSuffix(args, " out.mp4") {
				t.Errorf("output must be last: %q", args)
			}
		})
	}
}

func TestBuildFFmpegArgsAudio(t *testing.T) {
	opts := Options{Output: "o.mp4", Width: 2, Height: 2, FPS: 25, EncoderName: "libx264", AudioSource: "rec.mov", AudioOffset: 1.5}
	args := strings.Join(buildFFmpegArgs(opts), " ")
	for _, want := range []string{"-ss 1.500000 -i rec.mov", "-map 0:v -map 1:a?", "-shortest"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q should contain %q", args, want)
		}
	}
}

func TestWriteRawRGBA(t *testing.T) {
	src := image.NewNRGBA(image.Rect(10, 10, 12, 11))
	src.Set(10, 10, color.NRGBA{R: 255, A: 255})
	src.Set(11, 10, color.NRGBA{G: 255, A: 255})

	var buf bytes.Buffer
	if err := writeRawRGBA(&buf, src); err != nil {
		t.Fatalf("writeRawRGBA: %v", err)
	}
	want := []byte{255, 0, 0, 255, 0, 255, 0, 255}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("raw = %v, want %v", buf.Bytes(), want)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, 4, 4))
	buf.Reset()
	if err := writeRawRGBA(&buf, rgba); err != nil {
		t.Fatalf("writeRawRGBA: %v", err)
	}
	if buf.Len() != 4*4*4 {
		t.Errorf("wrote %d bytes, want %d", buf.Len(), 4*4*4)
	}
}

func TestNewFFmpegEncoderValidation(t *testing.T) {
	tests := []Options{
		{Width: 0, Height: 100, FPS: 30},
		{Width: 101, Height: 100, FPS: 30},
		{Width: 100, Height: 100, FPS: 0},
	}
	for _, opts := range tests {
		if _, err := NewFFmpegEncoder(context.Background(), opts); err == nil {
			t.Errorf("Expected an error for %+v", opts)
		}
	}
}
