package analyzer

import (
	"context"
	"image"
)

// BlockKind is a coarse guess at what a detected region contains.
type BlockKind string

const (
	BlockText    BlockKind = "text"
	BlockHeader  BlockKind = "header"
	BlockImage   BlockKind = "image"
	BlockUnknown BlockKind = "unknown"
)

// Block represents a detected region of interest in a frame
type Block struct {
	Rect       image.Rectangle
	Kind       BlockKind
	Confidence float64 // 0.0-1.0
}

// Center returns the block center in coordinates normalized to bounds.
func (b Block) Center(bounds image.Rectangle) (x, y float64) {
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	x = (float64(b.Rect.Min.X+b.Rect.Max.X)/2 - float64(bounds.Min.X)) / w
	y = (float64(b.Rect.Min.Y+b.Rect.Max.Y)/2 - float64(bounds.Min.Y)) / h
	return x, y
}

// Detector is the interface for frame analysis strategies
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]Block, error)
}
