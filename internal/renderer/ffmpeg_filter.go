package renderer

import (
	"fmt"
	"math"

	"github.com/ivlev/screenzoom/internal/timeline"
)

// ZoomPanFilter builds an FFmpeg zoompan filter that follows the transform
// track without per-frame compositing. Segments are linear, so easing is
// approximated; it is meant for fast previews.
func ZoomPanFilter(tr timeline.Track[timeline.Transform], fps, width, height int) string {
	if !tr.Enabled || len(tr.Keyframes) == 0 || fps <= 0 {
		return ""
	}

	zoomExpr := piecewiseExpression(tr.Keyframes, fps, func(v timeline.Transform) float64 { return math.Max(v.Zoom, 1) })
	xExpr := piecewiseExpression(tr.Keyframes, fps, func(v timeline.Transform) float64 { return v.Center.X })
	yExpr := piecewiseExpression(tr.Keyframes, fps, func(v timeline.Transform) float64 { return v.Center.Y })

	return fmt.Sprintf("zoompan=z='%s':x='clip(iw*(%s)-iw/zoom/2,0,iw-iw/zoom)':y='clip(ih*(%s)-ih/zoom/2,0,ih-ih/zoom)':d=1:s=%dx%d:fps=%d",
		zoomExpr, xExpr, yExpr, width, height, fps)
}

// piecewiseExpression creates a nested if() expression over the output
// frame number that linearly interpolates field between keyframes.
func piecewiseExpression(kfs []timeline.Keyframe[timeline.Transform], fps int, field func(timeline.Transform) float64) string {
	frame := func(t float64) int { return int(math.Round(t * float64(fps))) }

	last := kfs[len(kfs)-1]
	expr := fmt.Sprintf("%.6f", field(last.Value))
	for i := len(kfs) - 2; i >= 0; i-- {
		f0, f1 := frame(kfs[i].Time), frame(kfs[i+1].Time)
		v0, v1 := field(kfs[i].Value), field(kfs[i+1].Value)
		if f1 <= f0 {
			continue
		}
		slope := (v1 - v0) / float64(f1-f0)
		expr = fmt.Sprintf("if(lte(on,%d),%.6f+(on-%d)*%.6f,%s)", f1, v0, f0, slope, expr)
	}

	first := kfs[0]
	if f := frame(first.Time); f > 0 {
		expr = fmt.Sprintf("if(lt(on,%d),%.6f,%s)", f, field(first.Value), expr)
	}
	return expr
}
