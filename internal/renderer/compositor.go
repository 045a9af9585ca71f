package renderer

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/gogpu/gg"
	"github.com/skip2/go-qrcode"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/screenzoom/internal/system"
	"github.com/ivlev/screenzoom/internal/timeline"
)

const (
	rippleRadius  = 0.06  // Of the shorter source side, at full intensity
	cursorRadius  = 0.004 // Of the source width, per unit of cursor scale
	pillPadding   = 8
	pillGap       = 6
	debugQRFactor = 8 // QR side is the shorter output side divided by this
)

// Compositor draws effects onto source frames and applies the camera crop.
type Compositor struct {
	Width  int  // Output width, 0 = source width
	Height int  // Output height, 0 = source height
	Debug  bool // Stamp a QR code with the frame time

	pool *system.ImagePool
}

// NewCompositor creates a Compositor producing frames of the given size.
func NewCompositor(width, height int, debug bool) *Compositor {
	return &Compositor{Width: width, Height: height, Debug: debug, pool: system.NewImagePool()}
}

// Compose renders one output frame. The returned image may come from an
// internal pool; hand it back with Release once it has been encoded.
func (c *Compositor) Compose(src image.Image, st RenderState) (*image.RGBA, error) {
	if src == nil {
		return nil, fmt.Errorf("compose: no source frame")
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("compose: empty source frame")
	}

	annotated, err := c.drawSourceEffects(src, st)
	if err != nil {
		return nil, err
	}

	ow, oh := c.Width, c.Height
	if ow <= 0 || oh <= 0 {
		ow, oh = b.Dx(), b.Dy()
	}
	out := c.getPool().Get(image.Rect(0, 0, ow, oh))

	crop := CropRect(b, st.Transform.Transform)
	var scaler draw.Interpolator = draw.CatmullRom
	if st.Transform.Zoom < 1.5 {
		scaler = draw.ApproxBiLinear
	}
	scaler.Scale(out, out.Bounds(), annotated, crop, draw.Src, nil)

	if len(st.ActiveKeystrokes) > 0 {
		out, err = c.drawKeystrokes(out, st.ActiveKeystrokes)
		if err != nil {
			return nil, err
		}
	}
	if c.Debug {
		if err := stampDebug(out, st.Time); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Release returns a composed frame to the pool.
func (c *Compositor) Release(img *image.RGBA) {
	c.getPool().Put(img)
}

func (c *Compositor) getPool() *system.ImagePool {
	if c.pool == nil {
		c.pool = system.NewImagePool()
	}
	return c.pool
}

// CropRect returns the source region shown at the given camera. The center
// is clamped so the crop never leaves the frame; zoom below 1 shows the
// whole frame.
func CropRect(bounds image.Rectangle, tr timeline.Transform) image.Rectangle {
	zoom := tr.Zoom
	if !(zoom > 1) {
		return bounds
	}
	half := 0.5 / zoom
	cx := math.Min(math.Max(tr.Center.X, half), 1-half)
	cy := math.Min(math.Max(tr.Center.Y, half), 1-half)

	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	x0 := int(math.Round((cx - half) * w))
	y0 := int(math.Round((cy - half) * h))
	x1 := max(int(math.Round((cx+half)*w)), x0+1)
	y1 := max(int(math.Round((cy+half)*h)), y0+1)
	return image.Rect(x0, y0, x1, y1).Add(bounds.Min).Intersect(bounds)
}

// drawSourceEffects paints ripples and the cursor in source coordinates.
func (c *Compositor) drawSourceEffects(src image.Image, st RenderState) (image.Image, error) {
	cur := st.Cursor.Cursor
	showCursor := cur.Visible && cur.Position != nil
	if len(st.ActiveRipples) == 0 && !showCursor {
		return src, nil
	}

	b := src.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	dc := gg.NewContextForImage(src)
	defer dc.Close()

	for _, r := range st.ActiveRipples {
		alpha := r.Alpha()
		if alpha <= 0 {
			continue
		}
		cr, cg, cb, ca := r.Ripple.Color.RGBA()
		radius := rippleRadius * math.Min(w, h) * (0.5 + r.Ripple.Intensity/2) * r.Progress
		if radius < 1 {
			continue
		}
		x, y := r.Ripple.Position.X*w, r.Ripple.Position.Y*h

		dc.SetRGBA(cr, cg, cb, ca*alpha*0.35)
		dc.DrawCircle(x, y, radius)
		if err := dc.Fill(); err != nil {
			return nil, fmt.Errorf("ripple fill: %w", err)
		}
		dc.SetRGBA(cr, cg, cb, ca*alpha)
		dc.SetLineWidth(math.Max(2, radius*0.08))
		dc.DrawCircle(x, y, radius)
		if err := dc.Stroke(); err != nil {
			return nil, fmt.Errorf("ripple stroke: %w", err)
		}
	}

	if showCursor {
		x, y := cur.Position.X*w, cur.Position.Y*h
		radius := math.Max(2, cursorRadius*w*cur.Scale)
		if cur.Style == timeline.CursorIBeam || cur.Style == timeline.CursorCrosshair {
			radius *= 0.6
		}
		dc.SetRGBA(1, 1, 1, 0.9)
		dc.DrawCircle(x, y, radius)
		if err := dc.Fill(); err != nil {
			return nil, fmt.Errorf("cursor fill: %w", err)
		}
		dc.SetRGBA(0, 0, 0, 0.8)
		dc.SetLineWidth(math.Max(1, radius*0.2))
		dc.DrawCircle(x, y, radius)
		if err := dc.Stroke(); err != nil {
			return nil, fmt.Errorf("cursor stroke: %w", err)
		}
	}

	return dc.Image(), nil
}

// drawKeystrokes paints overlay pills in output coordinates. Overlays that
// share a position stack upwards, newest at the bottom.
func (c *Compositor) drawKeystrokes(out *image.RGBA, keys []ActiveKeystroke) (*image.RGBA, error) {
	face := basicfont.Face7x13
	w, h := float64(out.Rect.Dx()), float64(out.Rect.Dy())
	lineH := float64(face.Height) + 2*pillPadding

	type pill struct {
		x, y, w float64
		text    string
		opacity float64
	}
	pills := make([]pill, 0, len(keys))
	stack := make(map[timeline.Point]int)
	for i := len(keys) - 1; i >= 0; i-- {
		k := keys[i]
		pos := k.Keystroke.Position
		textW := float64(font.MeasureString(face, k.Keystroke.Text).Ceil())
		pw := textW + 2*pillPadding
		n := stack[pos]
		stack[pos] = n + 1

		x := math.Min(math.Max(pos.X*w-pw/2, 0), math.Max(w-pw, 0))
		y := pos.Y*h - lineH - float64(n)*(lineH+pillGap)
		y = math.Min(math.Max(y, 0), math.Max(h-lineH, 0))
		pills = append(pills, pill{x: x, y: y, w: pw, text: k.Keystroke.Text, opacity: k.Opacity})
	}

	dc := gg.NewContextForImage(out)
	for _, p := range pills {
		dc.SetRGBA(0, 0, 0, 0.7*p.opacity)
		dc.DrawRoundedRectangle(p.x, p.y, p.w, lineH, lineH/2)
		if err := dc.Fill(); err != nil {
			dc.Close()
			return nil, fmt.Errorf("keystroke pill: %w", err)
		}
	}
	drawn := toRGBA(dc.Image())
	dc.Close()
	c.Release(out)

	for _, p := range pills {
		d := &font.Drawer{
			Dst:  drawn,
			Src:  image.NewUniform(color.NRGBA{R: 255, G: 255, B: 255, A: uint8(math.Round(255 * p.opacity))}),
			Face: face,
			Dot:  fixed.P(int(p.x)+pillPadding, int(p.y)+pillPadding+face.Ascent),
		}
		d.DrawString(p.text)
	}
	return drawn, nil
}

// stampDebug draws a QR code with the frame time into the top-right corner.
func stampDebug(out *image.RGBA, t float64) error {
	side := min(out.Rect.Dx(), out.Rect.Dy()) / debugQRFactor
	if side < 21 {
		return nil
	}
	q, err := qrcode.New(fmt.Sprintf("t=%.3f", t), qrcode.Low)
	if err != nil {
		return fmt.Errorf("debug stamp: %w", err)
	}
	img := q.Image(side)
	r := image.Rect(out.Rect.Max.X-side, out.Rect.Min.Y, out.Rect.Max.X, out.Rect.Min.Y+side)
	draw.Draw(out, r, img, img.Bounds().Min, draw.Src)
	return nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	return rgba
}
