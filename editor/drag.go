package editor

// Dragger is the drag-to-reorder capability of an editor, independent of any
// pointer events.
type Dragger interface {
	BeginDrag(index int)
	DragOver(index int)
	DragLeave(index int)
	Drop(index int) error
	Cancel()
}

type dragState struct {
	from, over       int
	hasFrom, hasOver bool
}

// Drag exposes the editor's drag capability.
type Drag struct {
	e *Editor
}

var _ Dragger = (*Drag)(nil)

func (e *Editor) Drag() *Drag {
	return &Drag{e: e}
}

// BeginDrag records index as the drag source. Ignored while disabled or for an
// index outside the list.
func (d *Drag) BeginDrag(index int) {
	e := d.e
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.disabled || index < 0 || index >= len(e.list) {
		return
	}
	e.drag.from, e.drag.hasFrom = index, true
}

// DragOver highlights index as the current drop target.
func (d *Drag) DragOver(index int) {
	e := d.e
	e.mu.Lock()
	defer e.mu.Unlock()
	e.drag.over, e.drag.hasOver = index, true
}

// DragLeave clears the highlight if it is on index.
func (d *Drag) DragLeave(index int) {
	e := d.e
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.drag.hasOver && e.drag.over == index {
		e.drag.hasOver = false
	}
}

// Drop moves the drag source to index. Without a source, with a target outside
// the list, or when source and target are the same, nothing changes.
func (d *Drag) Drop(index int) error {
	e := d.e
	e.mu.Lock()
	from, ok := e.drag.from, e.drag.hasFrom
	n := len(e.list)
	e.drag = dragState{}
	e.mu.Unlock()

	if !ok || from == index || index < 0 || index >= n {
		return nil
	}
	return e.Reorder(from, index)
}

func (d *Drag) Cancel() {
	e := d.e
	e.mu.Lock()
	e.drag = dragState{}
	e.mu.Unlock()
}

// OverIndex returns the highlighted drop target, if any.
func (d *Drag) OverIndex() (int, bool) {
	e := d.e
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drag.over, e.drag.hasOver
}

// Source returns the index being dragged, if any.
func (d *Drag) Source() (int, bool) {
	e := d.e
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drag.from, e.drag.hasFrom
}
