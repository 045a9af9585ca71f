package timeline

import (
	"sync"
	"sync/atomic"
)

// HistoryLimit is the number of undo steps kept.
const HistoryLimit = 50

// Document is the single mutable timeline: lock-free snapshots for readers,
// serialized edits for writers, bounded undo/redo.
type Document struct {
	mu      sync.Mutex
	current atomic.Pointer[Timeline]
	undo    []*Timeline
	redo    []*Timeline
}

func NewDocument(tl Timeline) *Document {
	d := &Document{}
	d.current.Store(&tl)
	return d
}

// Snapshot returns the current timeline. The returned value shares
// keyframe slices with the document and must not be modified in place.
func (d *Document) Snapshot() Timeline {
	return *d.current.Load()
}

// Apply applies e and, for undoable edits that change something, records
// the previous snapshot. A Load clears both stacks.
func (d *Document) Apply(e Edit) (Timeline, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.current.Load()
	next, changed, err := e.apply(*prev)
	if err != nil {
		return *prev, err
	}
	if !changed {
		return *prev, nil
	}

	if e.undoable() {
		d.undo = push(d.undo, prev)
		d.redo = nil
	} else {
		d.undo = nil
		d.redo = nil
	}
	d.current.Store(&next)
	return next, nil
}

// Undo restores the previous snapshot. ok is false when there is nothing to undo.
func (d *Document) Undo() (Timeline, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.undo) == 0 {
		return *d.current.Load(), false
	}
	prev := d.undo[len(d.undo)-1]
	d.undo = d.undo[:len(d.undo)-1]
	d.redo = push(d.redo, d.current.Load())
	d.current.Store(prev)
	return *prev, true
}

// Redo reapplies the most recently undone snapshot.
func (d *Document) Redo() (Timeline, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.redo) == 0 {
		return *d.current.Load(), false
	}
	next := d.redo[len(d.redo)-1]
	d.redo = d.redo[:len(d.redo)-1]
	d.undo = push(d.undo, d.current.Load())
	d.current.Store(next)
	return *next, true
}

func (d *Document) CanUndo() bool { return d.UndoDepth() > 0 }
func (d *Document) CanRedo() bool { return d.RedoDepth() > 0 }

func (d *Document) UndoDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.undo)
}

func (d *Document) RedoDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.redo)
}

func push(stack []*Timeline, tl *Timeline) []*Timeline {
	stack = append(stack, tl)
	if len(stack) > HistoryLimit {
		stack = append(stack[:0:0], stack[len(stack)-HistoryLimit:]...)
	}
	return stack
}
