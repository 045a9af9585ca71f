package engine

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"

	zerr "github.com/ivlev/screenzoom/internal/errors"
	"github.com/ivlev/screenzoom/internal/history"
	"github.com/ivlev/screenzoom/internal/renderer"
	"github.com/ivlev/screenzoom/internal/system"
	"github.com/ivlev/screenzoom/internal/timeline"
	"github.com/ivlev/screenzoom/internal/video"
)

const (
	progressBuffer = 16
	etaWindow      = 30  // Frames in the ETA moving average
	diskHeadroom   = 1.2 // Safety factor on the estimated output size
	maxAutoWorkers = 8
)

var errCancelled = errors.New("export cancelled")

// FrameSource provides recording frames. The image returned by Frame is
// only valid until the next call.
type FrameSource interface {
	Frame(ctx context.Context, t float64) (image.Image, error)
	Size() image.Point
}

// Compositor turns a source frame and a render state into an output frame.
type Compositor interface {
	Compose(src image.Image, st renderer.RenderState) (*image.RGBA, error)
	Release(img *image.RGBA)
}

// Encoder consumes output frames in order.
type Encoder interface {
	WriteFrame(ctx context.Context, img image.Image) error
	Finalize(ctx context.Context) (string, error)
	Abort() error
}

// EncoderFactory starts an encoder for one run.
type EncoderFactory func(ctx context.Context, opts video.Options) (Encoder, error)

// Recorder stores finished runs.
type Recorder interface {
	Record(ctx context.Context, run history.Run) error
}

// State is the lifecycle state of an export.
type State int32

const (
	Idle State = iota
	Running
	Completed
	Failed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Progress reports the last written frame.
type Progress struct {
	Frame    int // Frames written so far
	Total    int
	Fraction float64
	ETA      time.Duration
}

// Event is the terminal outcome of a run.
type Event struct {
	State   State
	Path    string // Output file, set on Completed and on a kept partial
	Err     error  // Set on Failed
	Frames  int
	Total   int
	Elapsed time.Duration
}

// Handle controls one running export.
type Handle struct {
	ProjectID string

	progress   chan Progress
	done       chan Event
	cancel     chan struct{}
	cancelOnce sync.Once
	state      atomic.Int32
}

func newHandle(projectID string) *Handle {
	return &Handle{
		ProjectID: projectID,
		progress:  make(chan Progress, progressBuffer),
		done:      make(chan Event, 1),
		cancel:    make(chan struct{}),
	}
}

// Progress returns the progress stream. Updates are dropped when the reader
// falls behind; the channel is closed before the terminal event is sent.
func (h *Handle) Progress() <-chan Progress { return h.progress }

// Done delivers exactly one terminal event and is then closed.
func (h *Handle) Done() <-chan Event { return h.done }

// Cancel asks the run to stop after the current frame. Safe to call repeatedly.
func (h *Handle) Cancel() {
	h.cancelOnce.Do(func() { close(h.cancel) })
}

// State returns the current lifecycle state.
func (h *Handle) State() State { return State(h.state.Load()) }

func (h *Handle) setState(s State) { h.state.Store(int32(s)) }

func (h *Handle) sendProgress(p Progress) {
	select {
	case h.progress <- p:
	default:
	}
}

// Exporter renders timelines to video, one run per project at a time.
type Exporter struct {
	Source        FrameSource
	NewCompositor func(width, height int, debug bool) Compositor
	NewEncoder    EncoderFactory
	History       Recorder // Optional
	DiskFree      func(path string) (uint64, error)
	Workers       int // Compose workers, 0 = CPU count capped at 8

	mu      sync.Mutex
	running map[string]*Handle
}

// NewExporter creates an Exporter backed by the compositor and ffmpeg encoder.
func NewExporter(src FrameSource) *Exporter {
	return &Exporter{
		Source: src,
		NewCompositor: func(w, h int, debug bool) Compositor {
			return renderer.NewCompositor(w, h, debug)
		},
		NewEncoder: func(ctx context.Context, opts video.Options) (Encoder, error) {
			return video.NewFFmpegEncoder(ctx, opts)
		},
		DiskFree: system.DiskFree,
	}
}

// Start launches an export of tl and returns at once. A second Start for a
// project that is still running fails with ALREADY_RUNNING.
func (e *Exporter) Start(ctx context.Context, projectID string, tl timeline.Timeline, settings RenderSettings) (*Handle, error) {
	e.mu.Lock()
	if e.running == nil {
		e.running = make(map[string]*Handle)
	}
	if _, ok := e.running[projectID]; ok {
		e.mu.Unlock()
		return nil, zerr.NewAlreadyRunning(projectID)
	}
	h := newHandle(projectID)
	h.setState(Running)
	e.running[projectID] = h
	e.mu.Unlock()

	go e.run(ctx, h, tl, settings)
	return h, nil
}

// Running returns the handle of a project's active export.
func (e *Exporter) Running(projectID string) (*Handle, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.running[projectID]
	return h, ok
}

func (e *Exporter) unregister(h *Handle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running[h.ProjectID] == h {
		delete(e.running, h.ProjectID)
	}
}

func (e *Exporter) workers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return min(system.CPUCount(), maxAutoWorkers)
}

type job struct {
	index int
	t     float64
	frame *image.RGBA
}

type composed struct {
	index int
	img   *image.RGBA
}

type frameError struct {
	frame int
	err   error
}

func (e *frameError) Error() string { return fmt.Sprintf("frame %d: %v", e.frame, e.err) }
func (e *frameError) Unwrap() error { return e.err }

func (e *Exporter) run(ctx context.Context, h *Handle, tl timeline.Timeline, settings RenderSettings) {
	start := time.Now()
	ev := e.export(ctx, h, tl, settings)
	ev.Elapsed = time.Since(start)

	log := system.Logger()
	switch ev.State {
	case Completed:
		log.Info("export completed", "project", h.ProjectID, "output", ev.Path, "frames", ev.Frames, "elapsed", ev.Elapsed)
	case Cancelled:
		log.Info("export cancelled", "project", h.ProjectID, "frames", ev.Frames, "total", ev.Total)
	default:
		log.Warn("export failed", "project", h.ProjectID, "frames", ev.Frames, "error", ev.Err)
	}

	if e.History != nil {
		run := history.Run{
			ProjectID: h.ProjectID,
			State:     ev.State.String(),
			Output:    ev.Path,
			Frames:    ev.Frames,
			Total:     ev.Total,
			FPS:       settings.FPS,
			Quality:   string(settings.Quality),
			StartedAt: start,
			Elapsed:   ev.Elapsed,
		}
		if ev.Err != nil {
			run.Error = ev.Err.Error()
		}
		if err := e.History.Record(context.WithoutCancel(ctx), run); err != nil {
			log.Warn("history record failed", "project", h.ProjectID, "error", err)
		}
	}

	h.setState(ev.State)
	e.unregister(h)
	close(h.progress)
	h.done <- ev
	close(h.done)
}

func failed(err error, frames, total int) Event {
	return Event{State: Failed, Err: err, Frames: frames, Total: total}
}

func (e *Exporter) export(ctx context.Context, h *Handle, tl timeline.Timeline, settings RenderSettings) Event {
	if err := settings.Validate(); err != nil {
		return failed(err, 0, 0)
	}
	total := FrameCount(tl.TrimmedDuration(), settings.FPS)
	if total == 0 {
		return failed(zerr.NewInvalidSettings("trimmed duration yields no frames"), 0, 0)
	}
	if e.Source == nil {
		return failed(zerr.NewInvalidSettings("no frame source"), 0, total)
	}

	w, hgt := settings.Width, settings.Height
	if w == 0 {
		size := e.Source.Size()
		w, hgt = size.X, size.Y
	}
	w, hgt = w&^1, hgt&^1
	if w <= 0 || hgt <= 0 {
		return failed(zerr.NewInvalidSettings(fmt.Sprintf("invalid output size %dx%d", w, hgt)), 0, total)
	}

	bitrate := settings.Bitrate(w, hgt)
	if err := e.preflight(settings.Output, bitrate, tl.TrimmedDuration()); err != nil {
		return failed(err, 0, total)
	}

	select {
	case <-h.cancel:
		return Event{State: Cancelled, Total: total}
	default:
	}

	opts := video.Options{
		Output:      settings.Output,
		Width:       w,
		Height:      hgt,
		FPS:         settings.FPS,
		EncoderName: settings.EncoderName(),
		Bitrate:     bitrate,
		CRF:         settings.CRF(),
		AudioSource: settings.AudioSource,
		AudioOffset: tl.EffectiveTrimStart(),
	}
	enc, err := e.NewEncoder(context.WithoutCancel(ctx), opts)
	if err != nil {
		return failed(zerr.NewExportFailed(0, err), 0, total)
	}

	comp := e.NewCompositor(w, hgt, settings.Debug)
	system.Logger().Info("export started", "project", h.ProjectID, "frames", total, "size", fmt.Sprintf("%dx%d", w, hgt),
		"fps", settings.FPS, "encoder", opts.EncoderName, "workers", e.workers())

	runCtx, cancelRun := context.WithCancelCause(ctx)
	defer cancelRun(nil)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-h.cancel:
			cancelRun(errCancelled)
		case <-stop:
		}
	}()

	written, err := e.pipeline(runCtx, h, tl, settings, comp, enc, total)

	if err == nil {
		path, ferr := enc.Finalize(context.WithoutCancel(ctx))
		if ferr != nil {
			return failed(zerr.NewExportFailed(written, ferr), written, total)
		}
		return Event{State: Completed, Path: path, Frames: written, Total: total}
	}

	path := e.cleanup(ctx, enc, settings.KeepPartial)
	if errors.Is(err, errCancelled) || errors.Is(context.Cause(runCtx), errCancelled) || ctx.Err() != nil {
		return Event{State: Cancelled, Path: path, Frames: written, Total: total}
	}
	frame := written
	var fe *frameError
	if errors.As(err, &fe) {
		frame = fe.frame
		err = fe.err
	}
	ev := failed(zerr.NewExportFailed(frame, err), written, total)
	ev.Path = path
	return ev
}

// cleanup finishes an interrupted run. A kept partial is finalized and its
// path returned; otherwise the output is removed.
func (e *Exporter) cleanup(ctx context.Context, enc Encoder, keepPartial bool) string {
	if keepPartial {
		path, err := enc.Finalize(context.WithoutCancel(ctx))
		if err != nil {
			system.Logger().Warn("finalize partial output failed", "error", err)
			return ""
		}
		return path
	}
	if err := enc.Abort(); err != nil {
		system.Logger().Warn("abort encoder failed", "error", err)
	}
	return ""
}

func (e *Exporter) preflight(output string, bitrate int, duration float64) error {
	if e.DiskFree == nil {
		return nil
	}
	free, err := e.DiskFree(filepath.Dir(output))
	if err != nil {
		system.Logger().Warn("disk preflight skipped", "error", err)
		return nil
	}
	need := uint64(float64(bitrate) / 8 * duration * diskHeadroom)
	if free < need {
		return zerr.NewExportFailed(0, fmt.Errorf("not enough disk space: need %d MB, have %d MB", need>>20, free>>20))
	}
	return nil
}

// pipeline decodes on one goroutine, composes on a worker pool and writes in
// frame order. It returns the number of frames written.
func (e *Exporter) pipeline(ctx context.Context, h *Handle, tl timeline.Timeline, settings RenderSettings, comp Compositor, enc Encoder, total int) (int, error) {
	workers := min(e.workers(), total)
	attempts := 1 + settings.MaxRetries
	trimStart := tl.EffectiveTrimStart()

	g, gctx := errgroup.WithContext(ctx)
	jobs := make(chan job, workers)
	results := make(chan composed, workers)
	// Frames in flight between decode and write.
	tokens := make(chan struct{}, 2*workers)

	g.Go(func() error {
		defer close(jobs)
		for i := 0; i < total; i++ {
			select {
			case tokens <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			t := trimStart + float64(i)/settings.FPS

			var frame *image.RGBA
			err := retry(gctx, attempts, func() error {
				img, err := e.Source.Frame(gctx, t)
				if err != nil {
					return err
				}
				frame = cloneFrame(img)
				return nil
			})
			if err != nil {
				return &frameError{frame: i, err: fmt.Errorf("decode: %w", err)}
			}

			select {
			case jobs <- job{index: i, t: t, frame: frame}:
			case <-gctx.Done():
				system.PutImage(frame)
				return gctx.Err()
			}
		}
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			defer wg.Done()
			for j := range jobs {
				st := renderer.Evaluate(tl, j.t)
				var out *image.RGBA
				err := retry(gctx, attempts, func() error {
					var err error
					out, err = comp.Compose(j.frame, st)
					return err
				})
				system.PutImage(j.frame)
				if err != nil {
					return &frameError{frame: j.index, err: fmt.Errorf("compose: %w", err)}
				}
				select {
				case results <- composed{index: j.index, img: out}:
				case <-gctx.Done():
					comp.Release(out)
					return gctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		wg.Wait()
		close(results)
		return nil
	})

	var written int
	g.Go(func() error {
		pending := make(map[int]*image.RGBA)
		durations := make([]time.Duration, 0, etaWindow)
		last := time.Now()

		for r := range results {
			pending[r.index] = r.img
			for {
				img, ok := pending[written]
				if !ok {
					break
				}
				select {
				case <-h.cancel:
					return errCancelled
				default:
				}
				if err := gctx.Err(); err != nil {
					return err
				}
				delete(pending, written)
				err := retry(gctx, attempts, func() error {
					return enc.WriteFrame(gctx, img)
				})
				comp.Release(img)
				if err != nil {
					return &frameError{frame: written, err: fmt.Errorf("encode: %w", err)}
				}
				<-tokens
				written++

				now := time.Now()
				if len(durations) == etaWindow {
					durations = durations[1:]
				}
				durations = append(durations, now.Sub(last))
				last = now
				h.sendProgress(Progress{
					Frame:    written,
					Total:    total,
					Fraction: float64(written) / float64(total),
					ETA:      average(durations) * time.Duration(total-written),
				})
			}
		}
		if written < total {
			if err := gctx.Err(); err != nil {
				return err
			}
			return &frameError{frame: written, err: errors.New("frame stream ended early")}
		}
		return nil
	})

	err := g.Wait()
	return written, err
}

func retry(ctx context.Context, attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		system.Logger().Debug("frame step failed", "attempt", i+1, "of", attempts, "error", err)
	}
	return err
}

func cloneFrame(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := system.GetImage(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

func average(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range ds {
		sum += d
	}
	return sum / time.Duration(len(ds))
}
