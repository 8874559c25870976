package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrag_DropReorders(t *testing.T) {
	h := newHarness(t, []string{"a", "b", "c"}, 0)
	d := h.ed.Drag()

	d.BeginDrag(0)
	d.DragOver(2)
	over, ok := d.OverIndex()
	require.True(t, ok)
	assert.Equal(t, 2, over)

	require.NoError(t, d.Drop(2))
	assert.Equal(t, []string{"b", "c", "a"}, h.ed.Value())

	_, ok = d.Source()
	assert.False(t, ok, "drop clears the drag state")
	_, ok = d.OverIndex()
	assert.False(t, ok)
}

func TestDrag_DropWithoutSourceIsNoop(t *testing.T) {
	h := newHarness(t, []string{"a", "b"}, 0)
	require.NoError(t, h.ed.Drag().Drop(1))
	assert.Equal(t, []string{"a", "b"}, h.ed.Value())
	assert.Empty(t, h.changes.all())
}

func TestDrag_DropOnSelfIsNoop(t *testing.T) {
	h := newHarness(t, []string{"a", "b"}, 0)
	d := h.ed.Drag()
	d.BeginDrag(1)
	require.NoError(t, d.Drop(1))
	assert.Empty(t, h.changes.all())
}

func TestDrag_LeaveAndCancel(t *testing.T) {
	h := newHarness(t, []string{"a", "b", "c"}, 0)
	d := h.ed.Drag()

	d.BeginDrag(0)
	d.DragOver(1)
	d.DragLeave(2)
	_, ok := d.OverIndex()
	assert.True(t, ok, "leaving another index keeps the highlight")
	d.DragLeave(1)
	_, ok = d.OverIndex()
	assert.False(t, ok)

	d.Cancel()
	require.NoError(t, d.Drop(2))
	assert.Equal(t, []string{"a", "b", "c"}, h.ed.Value())
}

func TestDrag_IgnoredWhileDisabled(t *testing.T) {
	h := newHarness(t, []string{"a", "b"}, 0)
	h.ed.SetDisabled(true)
	d := h.ed.Drag()

	d.BeginDrag(0)
	_, ok := d.Source()
	assert.False(t, ok)

	d.BeginDrag(5)
	_, ok = d.Source()
	assert.False(t, ok)
}

func TestDrag_DropOutsideListIsNoop(t *testing.T) {
	h := newHarness(t, []string{"a", "b"}, 0)
	d := h.ed.Drag()

	d.BeginDrag(0)
	require.NoError(t, d.Drop(2))
	d.BeginDrag(1)
	require.NoError(t, d.Drop(-1))

	assert.Equal(t, []string{"a", "b"}, h.ed.Value())
	assert.Empty(t, h.changes.all())
	_, ok := d.Source()
	assert.False(t, ok)
}
