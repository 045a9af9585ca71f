package analyzer

import (
	"context"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// ContrastDetector finds UI regions with a Sobel edge pass, dilation and
// connected components on a downscaled grayscale copy of the frame.
type ContrastDetector struct {
	MinBlockArea  int     // Minimum area in source pixels²
	EdgeThreshold float64 // Gradient magnitude threshold
	MaxSide       int     // Longest side of the analysis image, 0 = full size
	DilateSize    int
	DilatePasses  int
}

// NewContrastDetector creates a new contrast-based detector with default settings
func NewContrastDetector() *ContrastDetector {
	return &ContrastDetector{
		MinBlockArea:  500,  // ~22x22 pixels minimum
		EdgeThreshold: 30.0, // Moderate sensitivity
		MaxSide:       640,
		DilateSize:    5,
		DilatePasses:  2,
	}
}

// mask is a binary image stored row-major.
type mask struct {
	w, h int
	pix  []bool
}

func newMask(w, h int) *mask {
	return &mask{w: w, h: h, pix: make([]bool, w*h)}
}

func (m *mask) at(x, y int) bool { return m.pix[y*m.w+x] }

// Detect returns the regions of interest in img, in img's coordinates.
func (d *ContrastDetector) Detect(ctx context.Context, img image.Image) ([]Block, error) {
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, nil
	}

	gray, scale := d.analysisImage(img)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	edges := sobel(gray, d.EdgeThreshold)
	for i := 0; i < d.DilatePasses; i++ {
		edges = dilate(edges, d.DilateSize/2)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	frameH := float64(bounds.Dy())
	var blocks []Block
	for _, c := range components(edges) {
		r := image.Rect(
			bounds.Min.X+int(math.Floor(float64(c.rect.Min.X)*scale)),
			bounds.Min.Y+int(math.Floor(float64(c.rect.Min.Y)*scale)),
			bounds.Min.X+int(math.Ceil(float64(c.rect.Max.X)*scale)),
			bounds.Min.Y+int(math.Ceil(float64(c.rect.Max.Y)*scale)),
		).Intersect(bounds)
		if r.Dx()*r.Dy() < d.MinBlockArea {
			continue
		}
		density := float64(c.pixels) / float64(c.rect.Dx()*c.rect.Dy())
		blocks = append(blocks, Block{
			Rect:       r,
			Kind:       classify(r, bounds.Min.Y, frameH, density),
			Confidence: math.Min(1, 0.4+density*0.6),
		})
	}
	return blocks, nil
}

// analysisImage converts img to grayscale, downscaled so that its longest
// side is at most MaxSide. scale maps analysis pixels back to source pixels.
func (d *ContrastDetector) analysisImage(img image.Image) (*image.Gray, float64) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	scale := 1.0
	if longest := max(w, h); d.MaxSide > 0 && longest > d.MaxSide {
		scale = float64(longest) / float64(d.MaxSide)
		w = max(1, int(float64(w)/scale))
		h = max(1, int(float64(h)/scale))
	}
	gray := image.NewGray(image.Rect(0, 0, w, h))
	if scale == 1 {
		draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	} else {
		draw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, b, draw.Src, nil)
	}
	return gray, float64(b.Dx()) / float64(w)
}

// sobel marks pixels whose gradient magnitude exceeds threshold.
func sobel(gray *image.Gray, threshold float64) *mask {
	w, h := gray.Rect.Dx(), gray.Rect.Dy()
	m := newMask(w, h)
	px := func(x, y int) float64 { return float64(gray.Pix[y*gray.Stride+x]) }
	limit := threshold * threshold

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := -px(x-1, y-1) + px(x+1, y-1) - 2*px(x-1, y) + 2*px(x+1, y) - px(x-1, y+1) + px(x+1, y+1)
			gy := -px(x-1, y-1) - 2*px(x, y-1) - px(x+1, y-1) + px(x-1, y+1) + 2*px(x, y+1) + px(x+1, y+1)
			m.pix[y*w+x] = gx*gx+gy*gy > limit
		}
	}
	return m
}

// dilate grows set pixels by radius in every direction.
func dilate(m *mask, radius int) *mask {
	if radius <= 0 {
		return m
	}
	out := newMask(m.w, m.h)
	for y := 0; y < m.h; y++ {
		for x := 0; x < m.w; x++ {
			if !m.at(x, y) {
				continue
			}
			for yy := max(0, y-radius); yy <= min(m.h-1, y+radius); yy++ {
				row := out.pix[yy*m.w:]
				for xx := max(0, x-radius); xx <= min(m.w-1, x+radius); xx++ {
					row[xx] = true
				}
			}
		}
	}
	return out
}

type component struct {
	rect   image.Rectangle
	pixels int
}

// components returns bounding rectangles of 4-connected set regions.
func components(m *mask) []component {
	visited := make([]bool, len(m.pix))
	var out []component
	var stack []int

	for start, set := range m.pix {
		if !set || visited[start] {
			continue
		}
		c := component{rect: image.Rect(m.w, m.h, 0, 0)}
		stack = append(stack[:0], start)
		visited[start] = true
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%m.w, i/m.w
			c.pixels++
			c.rect.Min.X = min(c.rect.Min.X, x)
			c.rect.Min.Y = min(c.rect.Min.Y, y)
			c.rect.Max.X = max(c.rect.Max.X, x+1)
			c.rect.Max.Y = max(c.rect.Max.Y, y+1)

			for _, n := range [4]int{i - 1, i + 1, i - m.w, i + m.w} {
				if n < 0 || n >= len(m.pix) || visited[n] || !m.pix[n] {
					continue
				}
				if (n == i-1 && x == 0) || (n == i+1 && x == m.w-1) {
					continue
				}
				visited[n] = true
				stack = append(stack, n)
			}
		}
		out = append(out, c)
	}
	return out
}

// classify guesses the block kind from its shape, position and edge density.
func classify(r image.Rectangle, top int, frameH, density float64) BlockKind {
	w, h := float64(r.Dx()), float64(r.Dy())
	aspect := w / h
	switch {
	case aspect > 3 && float64(r.Min.Y-top) < frameH*0.15:
		return BlockHeader
	case aspect > 4 && h < frameH*0.08:
		return BlockText
	case density < 0.35 && h > frameH*0.2:
		return BlockImage
	default:
		return BlockUnknown
	}
}
