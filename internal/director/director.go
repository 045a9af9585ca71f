// Package director turns recorded activity into timeline tracks: a smart
// camera path from clustered points of interest plus click ripples,
// keystroke overlays and a smoothed cursor path.
package director

import (
	"context"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/screenzoom/internal/activity"
	"github.com/ivlev/screenzoom/internal/system"
	"github.com/ivlev/screenzoom/internal/timeline"
)

// SaliencyProvider may replace a session's centroid with a better pan
// center, for example the UI element under the activity.
type SaliencyProvider interface {
	Center(ctx context.Context, s *Session) (timeline.Point, bool)
}

// Director generates timelines from recordings.
type Director struct {
	Settings Settings
	Saliency SaliencyProvider // Optional
}

// NewDirector creates a Director with default settings
func NewDirector() *Director {
	return &Director{Settings: DefaultSettings()}
}

// Report summarizes one generation run.
type Report struct {
	Activities int
	Sessions   int
	Counts     map[timeline.Kind]int
	Elapsed    time.Duration
}

// Generate builds a timeline from rec with settings s and no saliency provider.
func Generate(ctx context.Context, rec *activity.Recording, s Settings) (timeline.Timeline, Report) {
	d := &Director{Settings: s}
	return d.Generate(ctx, rec)
}

// Generate runs the four generators in parallel. It never fails: empty or
// degenerate input yields empty tracks and zero counts. Identical input
// yields an identical timeline, IDs included.
func (d *Director) Generate(ctx context.Context, rec *activity.Recording) (timeline.Timeline, Report) {
	started := time.Now()
	if rec == nil {
		rec = &activity.Recording{}
	}
	duration := rec.End()
	s := d.Settings

	var (
		transform []timeline.Keyframe[timeline.Transform]
		ripples   []timeline.Keyframe[timeline.Ripple]
		cursor    []timeline.Keyframe[timeline.Cursor]
		keys      []timeline.Keyframe[timeline.Keystroke]
		report    Report
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		activities := CollectActivities(rec, s)
		sessions := Cluster(activities, s.Zoom)
		centers := d.resolveCenters(gctx, sessions)
		transform = transformKeyframes(sessions, centers, s.Zoom, duration)
		report.Activities = len(activities)
		report.Sessions = len(sessions)
		return nil
	})
	g.Go(func() error {
		ripples = rippleKeyframes(rec.Clicks, s.Ripple)
		return nil
	})
	g.Go(func() error {
		cursor = cursorKeyframes(rec, s.Cursor)
		return nil
	})
	g.Go(func() error {
		keys = keystrokeKeyframes(rec.Keyboard, s.TypingTimeout, s.Keystroke)
		return nil
	})
	g.Wait()

	tl := timeline.New(duration)
	for _, e := range []timeline.Edit{
		timeline.ReplaceTrack[timeline.Transform]{Keyframes: transform},
		timeline.ReplaceTrack[timeline.Ripple]{Keyframes: ripples},
		timeline.ReplaceTrack[timeline.Cursor]{Keyframes: cursor},
		timeline.ReplaceTrack[timeline.Keystroke]{Keyframes: keys},
	} {
		next, err := tl.Apply(e)
		if err != nil {
			system.Logger().Error("generated track rejected", "error", err)
			continue
		}
		tl = next
	}

	report.Counts = tl.Counts()
	report.Elapsed = time.Since(started)
	system.Logger().Info("timeline generated",
		"sessions", report.Sessions,
		"transform", report.Counts[timeline.KindTransform],
		"ripple", report.Counts[timeline.KindRipple],
		"cursor", report.Counts[timeline.KindCursor],
		"keystroke", report.Counts[timeline.KindKeystroke],
		"elapsed", report.Elapsed)
	return tl, report
}

func (d *Director) resolveCenters(ctx context.Context, sessions []Session) []timeline.Point {
	centers := make([]timeline.Point, len(sessions))
	for i := range sessions {
		centers[i] = sessions[i].Centroid()
		if d.Saliency == nil {
			continue
		}
		if c, ok := d.Saliency.Center(ctx, &sessions[i]); ok && !math.IsNaN(c.X) && !math.IsNaN(c.Y) {
			system.Logger().Debug("session center from saliency", "session", i, "x", c.X, "y", c.Y)
			centers[i] = c.Clamped()
		}
	}
	return centers
}

// Regenerate returns one edit that replaces every track of the current
// document with freshly generated ones. It is a single undo step.
func Regenerate(generated timeline.Timeline) timeline.Edit {
	return timeline.Batch{Edits: []timeline.Edit{
		timeline.ReplaceTrack[timeline.Transform]{Keyframes: generated.Transform.Keyframes},
		timeline.ReplaceTrack[timeline.Ripple]{Keyframes: generated.Ripple.Keyframes},
		timeline.ReplaceTrack[timeline.Cursor]{Keyframes: generated.Cursor.Keyframes},
		timeline.ReplaceTrack[timeline.Keystroke]{Keyframes: generated.Keystroke.Keyframes},
	}}
}
