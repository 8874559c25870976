package editor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviews_ResolvesOnlyUncachedIDs(t *testing.T) {
	h := newHarness(t, []string{"cloud://shop/products/a.jpg", "https://img.test/b.png"}, 0)
	h.ed.Wait()

	require.Equal(t, [][]string{{"cloud://shop/products/a.jpg"}}, h.store.resolutions())
	assert.Equal(t, "https://cdn.test/shop/products/a.jpg", h.ed.Preview("cloud://shop/products/a.jpg"))
	assert.Equal(t, "https://img.test/b.png", h.ed.Preview("https://img.test/b.png"))

	report, err := h.ed.Upload(context.Background(), files("c.jpg"))
	require.NoError(t, err)
	h.ed.Wait()

	calls := h.store.resolutions()
	require.Len(t, calls, 2)
	assert.Equal(t, report.Added, calls[1], "cached ids must not be requested again")
}

func TestPreviews_PrimaryIsFirst(t *testing.T) {
	h := newHarness(t, []string{"https://img.test/a.png", "cloud://shop/products/b.jpg"}, 0)
	h.ed.Wait()

	previews := h.ed.Previews()
	require.Len(t, previews, 2)
	assert.True(t, previews[0].Primary)
	assert.False(t, previews[1].Primary)
	assert.Equal(t, "https://cdn.test/shop/products/b.jpg", previews[1].URL)

	require.NoError(t, h.ed.Reorder(1, 0))
	previews = h.ed.Previews()
	assert.Equal(t, "cloud://shop/products/b.jpg", previews[0].Ref)
	assert.True(t, previews[0].Primary)
}

func TestPreviews_FailureLeavesEntryWithoutURL(t *testing.T) {
	store := &fakeStorage{tempErr: errors.New("presign failed")}
	ed, err := New(Config{Storage: store, Value: []string{"cloud://shop/products/a.jpg"}})
	require.NoError(t, err)
	defer ed.Close()
	ed.Wait()

	assert.Equal(t, "", ed.Preview("cloud://shop/products/a.jpg"))
	assert.Equal(t, []string{"cloud://shop/products/a.jpg"}, ed.Value())

	// a later sync retries ids that never resolved
	store.mu.Lock()
	store.tempErr = nil
	store.mu.Unlock()
	ed.SyncPreviews(context.Background())
	assert.Equal(t, "https://cdn.test/shop/products/a.jpg", ed.Preview("cloud://shop/products/a.jpg"))
}

func TestPreviews_NoStorageCallWithoutFileIDs(t *testing.T) {
	h := newHarness(t, []string{"https://img.test/a.png"}, 0)
	h.ed.Wait()
	assert.Empty(t, h.store.resolutions())
}

func TestSyncPreviews_AfterCloseIsNoop(t *testing.T) {
	store := &fakeStorage{}
	ed, err := New(Config{Storage: store})
	require.NoError(t, err)
	ed.Close()

	require.ErrorIs(t, ed.SetValue([]string{"cloud://shop/x.jpg"}), ErrClosed)
	ed.SyncPreviews(context.Background())
	assert.Empty(t, store.resolutions())
}
