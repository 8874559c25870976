// Package editor maintains an ordered, reorderable list of image references and
// uploads new images into it.
//
// Index 0 of the list is the primary image. Every mutation hands the complete new
// list to Config.OnChange; the owning form persists it. Opaque file IDs in the list
// are resolved to temporary preview URLs in the background after each mutation.
package editor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"smiley-admin/imagecrop"
	"smiley-admin/notify"
	"smiley-admin/storage"
)

var (
	ErrCapacityExceeded = errors.New("editor: image limit reached")
	ErrSession          = errors.New("editor: could not establish storage session")
	ErrBatchEmpty       = errors.New("editor: no file id returned for any image")
	ErrUploadInProgress = errors.New("editor: an upload is already in progress")
	ErrDisabled         = errors.New("editor: disabled")
	ErrClosed           = errors.New("editor: closed")
	ErrIndexOutOfRange  = errors.New("editor: index out of range")
)

// DefaultNamespace is the object key prefix for uploaded images.
const DefaultNamespace = "products"

// Storage is the blob store the editor uploads to and resolves previews from.
type Storage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	TempURLs(ctx context.Context, fileIDs []string) ([]storage.TempURL, error)
}

// Authenticator establishes the storage session before uploads.
type Authenticator interface {
	EnsureAuthenticated(ctx context.Context) error
}

// CropFunc transforms an image before upload.
type CropFunc func(data []byte, contentType string) imagecrop.Result

type Config struct {
	Storage Storage
	// Session may be nil when the storage needs no separate sign-in.
	Session  Authenticator
	Notifier notify.Notifier

	// Value is the initial list.
	Value []string
	// Max limits the number of images; zero or negative means unlimited.
	Max      int
	Disabled bool
	// Namespace prefixes generated object keys. Defaults to DefaultNamespace.
	Namespace string

	// OnChange receives the full list after every mutation. It must not mutate the
	// editor synchronously.
	OnChange func(next []string)
	// OnSettle runs when an upload batch finishes, successfully or not.
	OnSettle func()

	Crop CropFunc
	Now  func() time.Time
}

type State int

const (
	Idle State = iota
	Uploading
)

func (s State) String() string {
	if s == Uploading {
		return "uploading"
	}
	return "idle"
}

type Editor struct {
	storage   Storage
	session   Authenticator
	notifier  notify.Notifier
	namespace string
	onChange  func([]string)
	onSettle  func()
	crop      CropFunc
	now       func() time.Time

	// emitMu keeps change notifications in mutation order.
	emitMu sync.Mutex

	mu        sync.Mutex
	list      []string
	max       int
	disabled  bool
	state     State
	closed    bool
	urls      map[string]string
	resolving map[string]struct{}
	drag      dragState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config) (*Editor, error) {
	if cfg.Storage == nil {
		return nil, fmt.Errorf("editor: storage is required")
	}
	e := &Editor{
		storage:   cfg.Storage,
		session:   cfg.Session,
		notifier:  notify.Safe(cfg.Notifier),
		namespace: cfg.Namespace,
		onChange:  cfg.OnChange,
		onSettle:  cfg.OnSettle,
		crop:      cfg.Crop,
		now:       cfg.Now,
		list:      slices.Clone(cfg.Value),
		max:       cfg.Max,
		disabled:  cfg.Disabled,
		urls:      make(map[string]string),
		resolving: make(map[string]struct{}),
	}
	if e.list == nil {
		e.list = []string{}
	}
	if e.namespace == "" {
		e.namespace = DefaultNamespace
	}
	if e.crop == nil {
		e.crop = imagecrop.Square
	}
	if e.now == nil {
		e.now = time.Now
	}
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.schedulePreviewSync()
	return e, nil
}

// Value returns a copy of the current list.
func (e *Editor) Value() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.list)
}

func (e *Editor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.list)
}

func (e *Editor) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Editor) Max() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.max
}

func (e *Editor) Disabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disabled
}

func (e *Editor) SetDisabled(disabled bool) {
	e.mu.Lock()
	e.disabled = disabled
	e.mu.Unlock()
}

// CanAddMore reports whether another upload may be started.
func (e *Editor) CanAddMore() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closed && !e.disabled && e.state == Idle && (e.max <= 0 || len(e.list) < e.max)
}

// SetValue replaces the list with a value supplied by the owning form. No change
// notification is emitted.
func (e *Editor) SetValue(value []string) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.list = slices.Clone(value)
	if e.list == nil {
		e.list = []string{}
	}
	e.mu.Unlock()
	e.schedulePreviewSync()
	return nil
}

// Remove drops the entry at index.
func (e *Editor) Remove(index int) error {
	return e.apply(true, func(list []string) ([]string, error) {
		if index < 0 || index >= len(list) {
			return nil, fmt.Errorf("%w: remove %d of %d", ErrIndexOutOfRange, index, len(list))
		}
		return slices.Delete(slices.Clone(list), index, index+1), nil
	})
}

// Reorder moves the entry at from so that it ends up at position to. Equal indices
// are a no-op and emit nothing.
func (e *Editor) Reorder(from, to int) error {
	return e.apply(true, func(list []string) ([]string, error) {
		if from < 0 || from >= len(list) || to < 0 || to >= len(list) {
			return nil, fmt.Errorf("%w: move %d to %d of %d", ErrIndexOutOfRange, from, to, len(list))
		}
		if from == to {
			return nil, nil
		}
		next := slices.Clone(list)
		moved := next[from]
		next = slices.Delete(next, from, from+1)
		return slices.Insert(next, to, moved), nil
	})
}

// ClearAll empties the list.
func (e *Editor) ClearAll() error {
	return e.apply(true, func([]string) ([]string, error) {
		return []string{}, nil
	})
}

// Close tears the editor down. Results of work still in flight are discarded.
func (e *Editor) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.cancel()
	e.wg.Wait()
}

// apply runs fn against the current list under the lock. A nil list from fn means
// "nothing changed". On change the new list is emitted in mutation order and a
// preview sync is scheduled.
func (e *Editor) apply(checkDisabled bool, fn func(list []string) ([]string, error)) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if checkDisabled && e.disabled {
		e.mu.Unlock()
		return ErrDisabled
	}
	next, err := fn(e.list)
	if err != nil || next == nil {
		e.mu.Unlock()
		return err
	}
	e.list = next
	snapshot := slices.Clone(next)

	e.emitMu.Lock()
	e.mu.Unlock()
	if e.onChange != nil {
		e.onChange(snapshot)
	}
	e.emitMu.Unlock()

	e.schedulePreviewSync()
	return nil
}
