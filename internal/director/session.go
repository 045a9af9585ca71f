package director

import (
	"math"

	"github.com/ivlev/screenzoom/internal/timeline"
)

// Session is a cluster of nearby activities forming one point of interest.
type Session struct {
	Start      float64
	End        float64
	Activities []Activity

	centroid    timeline.Point
	totalWeight float64
}

// Centroid returns the weighted centroid of the session's activities.
func (s *Session) Centroid() timeline.Point {
	return s.centroid
}

func (s *Session) add(a Activity) {
	w := a.Weight
	if w <= 0 {
		w = 1e-6
	}
	total := s.totalWeight + w
	s.centroid = timeline.Point{
		X: (s.centroid.X*s.totalWeight + a.Position.X*w) / total,
		Y: (s.centroid.Y*s.totalWeight + a.Position.Y*w) / total,
	}
	s.totalWeight = total
	s.Activities = append(s.Activities, a)
	s.End = a.Time
}

func newSession(a Activity) Session {
	s := Session{Start: a.Time}
	s.add(a)
	return s
}

// Cluster folds time-ordered activities into sessions in a single pass. An
// activity joins the current session when it is within SessionGap of the
// session's last activity and within SessionDistance of its centroid.
func Cluster(activities []Activity, z ZoomSettings) []Session {
	if len(activities) == 0 {
		return nil
	}
	sessions := []Session{newSession(activities[0])}
	for _, a := range activities[1:] {
		cur := &sessions[len(sessions)-1]
		gap := a.Time - cur.End
		if gap <= z.SessionGap && a.Position.Distance(cur.centroid) <= z.SessionDistance {
			cur.add(a)
			continue
		}
		sessions = append(sessions, newSession(a))
	}
	return sessions
}

// Bounds returns the padded bounding box of the session, clamped to the frame.
func (s *Session) Bounds(margin float64) (lo, hi timeline.Point) {
	lo = timeline.Point{X: math.Inf(1), Y: math.Inf(1)}
	hi = timeline.Point{X: math.Inf(-1), Y: math.Inf(-1)}
	for _, a := range s.Activities {
		lo.X = math.Min(lo.X, a.Position.X)
		lo.Y = math.Min(lo.Y, a.Position.Y)
		hi.X = math.Max(hi.X, a.Position.X)
		hi.Y = math.Max(hi.Y, a.Position.Y)
	}
	lo = timeline.Point{X: lo.X - margin, Y: lo.Y - margin}.Clamped()
	hi = timeline.Point{X: hi.X + margin, Y: hi.Y + margin}.Clamped()
	return lo, hi
}

// Zoom is the factor that makes the session bbox fill TargetCoverage of the
// frame, clamped to [MinZoom, MaxZoom].
func (s *Session) Zoom(z ZoomSettings) float64 {
	lo, hi := s.Bounds(z.Margin)
	size := math.Max(hi.X-lo.X, hi.Y-lo.Y)
	zoom := z.MaxZoom
	if size > 0.01 {
		zoom = z.TargetCoverage / size
	}
	return math.Max(z.MinZoom, math.Min(z.MaxZoom, zoom))
}

// ClampCenter keeps a zoomed viewport inside the frame.
func ClampCenter(c timeline.Point, zoom float64) timeline.Point {
	if zoom <= 1 {
		return timeline.Center
	}
	half := 0.5 / zoom
	return timeline.Point{
		X: math.Max(half, math.Min(1-half, c.X)),
		Y: math.Max(half, math.Min(1-half, c.Y)),
	}
}
