package engine

import (
	"fmt"
	"math"

	zerr "github.com/ivlev/screenzoom/internal/errors"
	"github.com/ivlev/screenzoom/internal/system"
)

// Quality selects the export bitrate and constant-quality level.
type Quality string

const (
	QualityLow      Quality = "low"
	QualityMedium   Quality = "medium"
	QualityHigh     Quality = "high"
	QualityOriginal Quality = "original"
)

// Codec is the output video codec.
type Codec string

const (
	CodecH264 Codec = "h264"
	CodecH265 Codec = "h265"
)

// RenderSettings configure one export.
type RenderSettings struct {
	FPS         float64 `yaml:"fps"`
	Width       int     `yaml:"width,omitempty"`  // 0 = source width
	Height      int     `yaml:"height,omitempty"` // 0 = source height
	Quality     Quality `yaml:"quality"`
	Codec       Codec   `yaml:"codec"`
	Encoder     string  `yaml:"encoder,omitempty"` // ffmpeg encoder override
	Output      string  `yaml:"output,omitempty"`
	KeepPartial bool    `yaml:"keep_partial,omitempty"`
	MaxRetries  int     `yaml:"max_retries"`
	Debug       bool    `yaml:"debug,omitempty"`
	AudioSource string  `yaml:"audio_source,omitempty"`
}

// DefaultRenderSettings returns 30 fps, high quality H.264 at source size.
func DefaultRenderSettings() RenderSettings {
	return RenderSettings{
		FPS:        30,
		Quality:    QualityHigh,
		Codec:      CodecH264,
		MaxRetries: 2,
	}
}

// Validate reports settings the exporter cannot run with.
func (s RenderSettings) Validate() error {
	if math.IsNaN(s.FPS) || math.IsInf(s.FPS, 0) || s.FPS <= 0 {
		return zerr.NewInvalidSettings(fmt.Sprintf("fps must be positive, got %v", s.FPS))
	}
	if s.Width < 0 || s.Height < 0 {
		return zerr.NewInvalidSettings(fmt.Sprintf("invalid output size %dx%d", s.Width, s.Height))
	}
	if (s.Width == 0) != (s.Height == 0) {
		return zerr.NewInvalidSettings("width and height must be set together")
	}
	switch s.Quality {
	case QualityLow, QualityMedium, QualityHigh, QualityOriginal:
	default:
		return zerr.NewInvalidSettings(fmt.Sprintf("unknown quality %q", s.Quality))
	}
	switch s.Codec {
	case CodecH264, CodecH265, "":
	default:
		return zerr.NewInvalidSettings(fmt.Sprintf("unknown codec %q", s.Codec))
	}
	if s.Output == "" {
		return zerr.NewInvalidSettings("output path is required")
	}
	if s.MaxRetries < 0 {
		return zerr.NewInvalidSettings(fmt.Sprintf("max_retries must not be negative, got %d", s.MaxRetries))
	}
	return nil
}

// Bitrate returns the target bits per second for a w×h output.
func (s RenderSettings) Bitrate(w, h int) int {
	factor := 4
	switch s.Quality {
	case QualityLow:
		factor = 2
	case QualityHigh:
		factor = 8
	case QualityOriginal:
		factor = 12
	}
	return w * h * factor
}

// CRF returns the constant-quality level for encoders that support it.
func (s RenderSettings) CRF() int {
	switch s.Quality {
	case QualityLow:
		return 28
	case QualityHigh:
		return 18
	case QualityOriginal:
		return 14
	default:
		return 23
	}
}

// EncoderName returns the override or the best available encoder for the codec.
func (s RenderSettings) EncoderName() string {
	if s.Encoder != "" {
		return s.Encoder
	}
	codec := s.Codec
	if codec == "" {
		codec = CodecH264
	}
	return system.GetBestEncoder(string(codec))
}

// FrameCount returns the number of frames exported for a trimmed span.
func FrameCount(trimmed, fps float64) int {
	if trimmed <= 0 || fps <= 0 {
		return 0
	}
	return int(math.Floor(trimmed*fps + 1e-9))
}
