package editor

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// File is one locally selected image.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadReport describes a settled batch.
type UploadReport struct {
	// Added holds the new file IDs in submission order.
	Added []string `json:"added"`
	// Skipped counts files that produced no file ID.
	Skipped int `json:"skipped"`
	// Dropped counts files cut from the batch because the limit was reached.
	Dropped int `json:"dropped"`
}

// Upload crops and stores files one at a time, in order, and appends the returned
// file IDs to the end of the list. Individual failures are skipped; the batch fails
// only when the limit is already reached, the session cannot be established, or no
// file at all produced an ID.
func (e *Editor) Upload(ctx context.Context, files []File) (*UploadReport, error) {
	if len(files) == 0 {
		return &UploadReport{}, nil
	}

	batch, dropped, err := e.begin(files)
	if err != nil {
		return nil, err
	}
	defer e.settle()

	if e.session != nil {
		if err := e.session.EnsureAuthenticated(ctx); err != nil {
			e.notifier.Error(err.Error())
			return nil, fmt.Errorf("%w: %w", ErrSession, err)
		}
	}

	ids := make([]string, 0, len(batch))
	skipped := 0
	for _, f := range batch {
		// stop once the editor is closed
		if ctx.Err() != nil || e.ctx.Err() != nil {
			skipped++
			continue
		}
		id, err := e.uploadOne(ctx, f)
		if err != nil || id == "" {
			log.Warn().Err(err).Str("name", f.Name).Msg("editor: upload produced no file id")
			skipped++
			continue
		}
		ids = append(ids, id)
	}

	if e.ctx.Err() != nil {
		return nil, ErrClosed
	}
	if len(ids) == 0 {
		e.notifier.Error("Image upload failed: no file id returned")
		if cerr := ctx.Err(); cerr != nil {
			return nil, errors.Join(ErrBatchEmpty, cerr)
		}
		return nil, ErrBatchEmpty
	}

	err = e.apply(false, func(list []string) ([]string, error) {
		next := make([]string, 0, len(list)+len(ids))
		next = append(next, list...)
		return append(next, ids...), nil
	})
	if err != nil {
		return nil, err
	}

	e.notifier.Success("Images uploaded")
	return &UploadReport{Added: ids, Skipped: skipped, Dropped: dropped}, nil
}

// begin enforces the single-batch and capacity rules and moves to Uploading.
// A batch larger than the remaining capacity is truncated to fit.
func (e *Editor) begin(files []File) ([]File, int, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, 0, ErrClosed
	}
	if e.disabled {
		e.mu.Unlock()
		return nil, 0, ErrDisabled
	}
	if e.state == Uploading {
		e.mu.Unlock()
		return nil, 0, ErrUploadInProgress
	}

	dropped := 0
	limit := e.max
	if limit > 0 {
		remain := max(0, limit-len(e.list))
		if remain == 0 {
			e.mu.Unlock()
			e.notifier.Warning(fmt.Sprintf("At most %d images can be uploaded", limit))
			return nil, 0, ErrCapacityExceeded
		}
		if len(files) > remain {
			dropped = len(files) - remain
			files = files[:remain]
		}
	}
	e.state = Uploading
	e.mu.Unlock()

	if dropped > 0 {
		e.notifier.Warning(fmt.Sprintf("At most %d images can be uploaded; %d file(s) were not uploaded", limit, dropped))
	}
	return files, dropped, nil
}

func (e *Editor) settle() {
	e.mu.Lock()
	e.state = Idle
	e.mu.Unlock()
	if e.onSettle != nil {
		e.onSettle()
	}
}

func (e *Editor) uploadOne(ctx context.Context, f File) (string, error) {
	res := e.crop(f.Data, f.ContentType)
	key := ObjectKey(e.namespace, f.Name, e.now())

	log.Info().
		Str("key", key).
		Str("name", f.Name).
		Str("type", res.ContentType).
		Str("size", humanize.Bytes(uint64(len(res.Data)))).
		Bool("cropped", res.Cropped).
		Msg("editor: uploading")

	return e.storage.Upload(ctx, key, res.Data, res.ContentType)
}

// ObjectKey builds <namespace>/<unix millis>_<random>.<ext>. The extension comes
// from name, lowercased, and defaults to "jpg".
func ObjectKey(namespace, name string, now time.Time) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if ext == "" {
		ext = "jpg"
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("%s/%d_%s.%s", strings.TrimSuffix(namespace, "/"), now.UnixMilli(), suffix, ext)
}
