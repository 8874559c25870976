package editor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smiley-admin/imagecrop"
	"smiley-admin/notify"
	"smiley-admin/storage"
)

// fakeStorage records uploads and resolutions. Upload call i fails when fail[i] is
// set and returns an empty id when empty[i] is set.
type fakeStorage struct {
	mu        sync.Mutex
	keys      []string
	data      [][]byte
	types     []string
	fail      map[int]bool
	empty     map[int]bool
	tempCalls [][]string
	tempErr   error

	entered chan struct{}
	release chan struct{}
}

func (f *fakeStorage) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.keys)
	f.keys = append(f.keys, key)
	f.data = append(f.data, data)
	f.types = append(f.types, contentType)
	if f.fail[i] {
		return "", errors.New("upload rejected")
	}
	if f.empty[i] {
		return "", nil
	}
	return storage.FileID("shop", key), nil
}

func (f *fakeStorage) TempURLs(ctx context.Context, ids []string) ([]storage.TempURL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tempCalls = append(f.tempCalls, append([]string(nil), ids...))
	if f.tempErr != nil {
		return nil, f.tempErr
	}
	out := make([]storage.TempURL, 0, len(ids))
	for _, id := range ids {
		out = append(out, storage.TempURL{FileID: id, URL: "https://cdn.test/" + strings.TrimPrefix(id, storage.Scheme)})
	}
	return out, nil
}

func (f *fakeStorage) uploads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.keys)
}

func (f *fakeStorage) resolutions() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.tempCalls...)
}

type fakeSession struct {
	err   error
	calls int
}

func (s *fakeSession) EnsureAuthenticated(context.Context) error {
	s.calls++
	return s.err
}

type changes struct {
	mu   sync.Mutex
	seen [][]string
}

func (c *changes) record(next []string) {
	c.mu.Lock()
	c.seen = append(c.seen, next)
	c.mu.Unlock()
}

func (c *changes) all() [][]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]string(nil), c.seen...)
}

func keepOriginal(data []byte, contentType string) imagecrop.Result {
	return imagecrop.Result{Data: data, ContentType: contentType}
}

type harness struct {
	ed      *Editor
	store   *fakeStorage
	session *fakeSession
	notes   *notify.Recorder
	changes *changes
	settled int
}

func newHarness(t *testing.T, value []string, max int) *harness {
	t.Helper()
	h := &harness{
		store:   &fakeStorage{},
		session: &fakeSession{},
		notes:   &notify.Recorder{},
		changes: &changes{},
	}
	ed, err := New(Config{
		Storage:  h.store,
		Session:  h.session,
		Notifier: h.notes,
		Value:    value,
		Max:      max,
		OnChange: h.changes.record,
		OnSettle: func() { h.settled++ },
		Crop:     keepOriginal,
		Now:      func() time.Time { return time.UnixMilli(1700000000000) },
	})
	require.NoError(t, err)
	h.ed = ed
	t.Cleanup(ed.Close)
	return h
}

func files(names ...string) []File {
	out := make([]File, len(names))
	for i, n := range names {
		out[i] = File{Name: n, ContentType: "image/jpeg", Data: []byte(n)}
	}
	return out
}

func TestNew_RequiresStorage(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	h := newHarness(t, []string{"a", "b", "c", "d"}, 0)

	require.NoError(t, h.ed.Remove(1))
	assert.Equal(t, []string{"a", "c", "d"}, h.ed.Value())
	assert.Equal(t, [][]string{{"a", "c", "d"}}, h.changes.all())

	assert.ErrorIs(t, h.ed.Remove(3), ErrIndexOutOfRange)
	assert.ErrorIs(t, h.ed.Remove(-1), ErrIndexOutOfRange)
	assert.Len(t, h.changes.all(), 1)
}

func TestReorder(t *testing.T) {
	h := newHarness(t, []string{"a", "b", "c", "d"}, 0)

	require.NoError(t, h.ed.Reorder(0, 2))
	assert.Equal(t, []string{"b", "c", "a", "d"}, h.ed.Value())

	require.NoError(t, h.ed.Reorder(3, 0))
	assert.Equal(t, []string{"d", "b", "c", "a"}, h.ed.Value())

	require.NoError(t, h.ed.Reorder(1, 1))
	assert.Len(t, h.changes.all(), 2, "equal indices must not emit")

	assert.ErrorIs(t, h.ed.Reorder(0, 4), ErrIndexOutOfRange)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, h.ed.Value())
}

func TestClearAll(t *testing.T) {
	h := newHarness(t, []string{"a", "b"}, 0)

	require.NoError(t, h.ed.ClearAll())
	assert.Empty(t, h.ed.Value())
	assert.Equal(t, [][]string{{}}, h.changes.all())
}

func TestSetValue_DoesNotEmit(t *testing.T) {
	h := newHarness(t, nil, 0)

	require.NoError(t, h.ed.SetValue([]string{"x", "y"}))
	assert.Equal(t, []string{"x", "y"}, h.ed.Value())
	assert.Empty(t, h.changes.all())
}

func TestValueIsACopy(t *testing.T) {
	h := newHarness(t, []string{"a"}, 0)
	v := h.ed.Value()
	v[0] = "mutated"
	assert.Equal(t, []string{"a"}, h.ed.Value())
}

func TestUpload_AppendsInSubmissionOrder(t *testing.T) {
	h := newHarness(t, []string{"https://cdn.test/old.jpg"}, 0)

	report, err := h.ed.Upload(context.Background(), files("one.JPG", "two.png", "three"))
	require.NoError(t, err)

	require.Len(t, report.Added, 3)
	assert.Equal(t, 0, report.Skipped)
	value := h.ed.Value()
	assert.Equal(t, "https://cdn.test/old.jpg", value[0])
	assert.Equal(t, report.Added, value[1:])

	require.Len(t, h.store.keys, 3)
	assert.True(t, strings.HasPrefix(h.store.keys[0], "products/1700000000000_"))
	assert.True(t, strings.HasSuffix(h.store.keys[0], ".jpg"))
	assert.True(t, strings.HasSuffix(h.store.keys[1], ".png"))
	assert.True(t, strings.HasSuffix(h.store.keys[2], ".jpg"))

	assert.Equal(t, 1, h.session.calls)
	assert.Equal(t, 1, h.settled)
	assert.Equal(t, Idle, h.ed.State())
	assert.Len(t, h.changes.all(), 1)
	assert.Equal(t, []notify.Message{{Level: notify.LevelSuccess, Text: "Images uploaded"}}, h.notes.Messages())
}

func TestUpload_AtCapacityMakesNoCalls(t *testing.T) {
	h := newHarness(t, []string{"a", "b"}, 2)

	_, err := h.ed.Upload(context.Background(), files("c.jpg"))
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	assert.Equal(t, 0, h.store.uploads())
	assert.Equal(t, 0, h.session.calls)
	assert.Equal(t, []string{"a", "b"}, h.ed.Value())
	assert.Empty(t, h.changes.all())
	require.Len(t, h.notes.Messages(), 1)
	assert.Equal(t, notify.LevelWarning, h.notes.Messages()[0].Level)
	assert.False(t, h.ed.CanAddMore())
}

func TestUpload_TruncatesToRemainingCapacity(t *testing.T) {
	h := newHarness(t, []string{"a", "b"}, 3)

	report, err := h.ed.Upload(context.Background(), files("c.jpg", "d.jpg", "e.jpg"))
	require.NoError(t, err)

	assert.Len(t, report.Added, 1)
	assert.Equal(t, 2, report.Dropped)
	assert.Equal(t, 1, h.store.uploads())
	assert.Len(t, h.ed.Value(), 3)
	assert.Equal(t, notify.LevelWarning, h.notes.Messages()[0].Level)
}

func TestUpload_PartialFailureStillSucceeds(t *testing.T) {
	h := newHarness(t, nil, 0)
	h.store.fail = map[int]bool{0: true}
	h.store.empty = map[int]bool{2: true}

	report, err := h.ed.Upload(context.Background(), files("a.jpg", "b.jpg", "c.jpg"))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Skipped)
	require.Len(t, report.Added, 1)
	assert.Equal(t, report.Added, h.ed.Value())
	assert.Contains(t, report.Added[0], h.store.keys[1])
	assert.Equal(t, notify.LevelSuccess, h.notes.Messages()[0].Level)
}

func TestUpload_AllFailed(t *testing.T) {
	h := newHarness(t, []string{"keep"}, 0)
	h.store.fail = map[int]bool{0: true, 1: true}
	h.store.empty = map[int]bool{2: true}

	_, err := h.ed.Upload(context.Background(), files("a.jpg", "b.jpg", "c.jpg"))
	assert.ErrorIs(t, err, ErrBatchEmpty)

	assert.Equal(t, []string{"keep"}, h.ed.Value())
	assert.Empty(t, h.changes.all())
	assert.Equal(t, []notify.Message{{Level: notify.LevelError, Text: "Image upload failed: no file id returned"}}, h.notes.Messages())
	assert.Equal(t, 1, h.settled)
	assert.Equal(t, Idle, h.ed.State())
}

func TestUpload_SessionFailureAbortsBatch(t *testing.T) {
	h := newHarness(t, nil, 0)
	h.session.err = errors.New("storage credentials rejected")

	_, err := h.ed.Upload(context.Background(), files("a.jpg"))
	assert.ErrorIs(t, err, ErrSession)

	assert.Equal(t, 0, h.store.uploads())
	assert.Equal(t, []notify.Message{{Level: notify.LevelError, Text: "storage credentials rejected"}}, h.notes.Messages())
	assert.Equal(t, 1, h.settled)
	assert.True(t, h.ed.CanAddMore())
}

func TestUpload_EmptyBatchIsNoop(t *testing.T) {
	h := newHarness(t, nil, 0)
	report, err := h.ed.Upload(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Added)
	assert.Equal(t, 0, h.settled)
}

func TestUpload_UsesCroppedBytes(t *testing.T) {
	store := &fakeStorage{}
	ed, err := New(Config{
		Storage: store,
		Crop: func(data []byte, _ string) imagecrop.Result {
			return imagecrop.Result{Data: append([]byte("sq:"), data...), ContentType: "image/png", Cropped: true}
		},
		Namespace: "banners/",
	})
	require.NoError(t, err)
	defer ed.Close()

	_, err = ed.Upload(context.Background(), []File{{Name: "wide.png", ContentType: "image/png", Data: []byte("px")}})
	require.NoError(t, err)

	assert.Equal(t, []byte("sq:px"), store.data[0])
	assert.Equal(t, "image/png", store.types[0])
	assert.True(t, strings.HasPrefix(store.keys[0], "banners/"))
}

func TestUpload_SecondBatchRejectedWhileUploading(t *testing.T) {
	h := newHarness(t, []string{"a", "b"}, 0)
	h.store.entered = make(chan struct{}, 1)
	h.store.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.ed.Upload(context.Background(), files("c.jpg"))
		done <- err
	}()
	<-h.store.entered

	assert.Equal(t, Uploading, h.ed.State())
	assert.False(t, h.ed.CanAddMore())
	_, err := h.ed.Upload(context.Background(), files("d.jpg"))
	assert.ErrorIs(t, err, ErrUploadInProgress)

	// list editing stays available during an upload
	require.NoError(t, h.ed.Reorder(0, 1))

	close(h.store.release)
	require.NoError(t, <-done)

	value := h.ed.Value()
	require.Len(t, value, 3)
	assert.Equal(t, []string{"b", "a"}, value[:2])
	assert.Equal(t, Idle, h.ed.State())
}

func TestUpload_ResultsDiscardedAfterClose(t *testing.T) {
	h := newHarness(t, nil, 0)
	h.store.entered = make(chan struct{}, 1)
	h.store.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.ed.Upload(context.Background(), files("a.jpg"))
		done <- err
	}()
	<-h.store.entered
	h.ed.Close()
	close(h.store.release)

	assert.ErrorIs(t, <-done, ErrClosed)
	assert.Empty(t, h.changes.all())
	assert.ErrorIs(t, h.ed.Remove(0), ErrClosed)
}

func TestUpload_CloseStopsRemainingFiles(t *testing.T) {
	h := newHarness(t, nil, 0)
	h.store.entered = make(chan struct{}, 1)
	h.store.release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := h.ed.Upload(context.Background(), files("a.jpg", "b.jpg", "c.jpg"))
		done <- err
	}()
	<-h.store.entered
	h.ed.Close()
	close(h.store.release)

	assert.ErrorIs(t, <-done, ErrClosed)
	assert.Equal(t, 1, h.store.uploads(), "files after close are not sent")
	assert.Empty(t, h.notes.Messages())
}

func TestDisabled(t *testing.T) {
	h := newHarness(t, []string{"a", "b"}, 0)
	h.ed.SetDisabled(true)

	assert.False(t, h.ed.CanAddMore())
	assert.ErrorIs(t, h.ed.Remove(0), ErrDisabled)
	assert.ErrorIs(t, h.ed.Reorder(0, 1), ErrDisabled)
	assert.ErrorIs(t, h.ed.ClearAll(), ErrDisabled)
	_, err := h.ed.Upload(context.Background(), files("c.jpg"))
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Equal(t, 0, h.store.uploads())
}

func TestCanAddMore(t *testing.T) {
	assert.True(t, newHarness(t, []string{"a"}, 0).ed.CanAddMore())
	assert.True(t, newHarness(t, []string{"a"}, 2).ed.CanAddMore())
	assert.False(t, newHarness(t, []string{"a", "b"}, 2).ed.CanAddMore())
}

func TestObjectKey(t *testing.T) {
	now := time.UnixMilli(42)
	cases := map[string]string{
		"photo.JPEG": ".jpeg",
		"photo.png":  ".png",
		"photo":      ".jpg",
		"photo.":     ".jpg",
		"":           ".jpg",
	}
	for name, ext := range cases {
		key := ObjectKey("products", name, now)
		assert.True(t, strings.HasPrefix(key, "products/42_"), key)
		assert.True(t, strings.HasSuffix(key, ext), "%s -> %s", name, key)
	}
	assert.NotEqual(t, ObjectKey("p", "a.jpg", now), ObjectKey("p", "a.jpg", now))
}
