package editor

import (
	"context"

	"github.com/rs/zerolog/log"

	"smiley-admin/storage"
)

// Preview is one list entry prepared for display.
type Preview struct {
	Ref string `json:"ref"`
	// URL is empty when no preview is available yet.
	URL     string `json:"url"`
	Primary bool   `json:"primary"`
}

// Preview returns a displayable URL for ref: the resolved temporary URL for opaque
// file IDs ("" when unresolved) or ref itself otherwise.
func (e *Editor) Preview(ref string) string {
	if !storage.IsFileID(ref) {
		return ref
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.urls[ref]
}

func (e *Editor) Previews() []Preview {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Preview, len(e.list))
	for i, ref := range e.list {
		u := ref
		if storage.IsFileID(ref) {
			u = e.urls[ref]
		}
		out[i] = Preview{Ref: ref, URL: u, Primary: i == 0}
	}
	return out
}

// SyncPreviews resolves every opaque file ID in the list that is neither cached
// nor already being resolved, in one storage call. Failures are swallowed; the
// affected entries simply have no preview.
func (e *Editor) SyncPreviews(ctx context.Context) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	var ids []string
	for _, ref := range e.list {
		if !storage.IsFileID(ref) {
			continue
		}
		if _, ok := e.urls[ref]; ok {
			continue
		}
		if _, ok := e.resolving[ref]; ok {
			continue
		}
		e.resolving[ref] = struct{}{}
		ids = append(ids, ref)
	}
	e.mu.Unlock()

	if len(ids) == 0 {
		return
	}

	resolved, err := e.storage.TempURLs(ctx, ids)

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, id := range ids {
		delete(e.resolving, id)
	}
	if err != nil {
		log.Debug().Err(err).Int("ids", len(ids)).Msg("editor: preview resolution failed")
		return
	}
	if e.closed {
		return
	}
	for _, r := range resolved {
		if r.FileID != "" && r.URL != "" {
			e.urls[r.FileID] = r.URL
		}
	}
}

// Wait blocks until background preview resolutions scheduled so far have finished.
func (e *Editor) Wait() {
	e.wg.Wait()
}

func (e *Editor) schedulePreviewSync() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	// Add under the lock so Close never waits on a counter that may still grow.
	e.wg.Add(1)
	e.mu.Unlock()
	go func() {
		defer e.wg.Done()
		e.SyncPreviews(e.ctx)
	}()
}
