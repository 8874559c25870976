package adminserver

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"smiley-admin/catalog"
	"smiley-admin/editor"
	"smiley-admin/notify"
)

const persistTimeout = 10 * time.Second

type editorKey struct {
	spuID string
	field catalog.ImageField
}

func (k editorKey) String() string {
	return k.spuID + "/" + string(k.field)
}

// editorEntry is one live image editor plus the notifications it raised since the
// last request drained them.
type editorEntry struct {
	ed    *editor.Editor
	notes *notify.Recorder
}

// editorRegistry keeps the most recently used product image editors open. Evicted
// editors are closed.
type editorRegistry struct {
	mu    sync.Mutex
	cache *lru.Cache[editorKey, *editorEntry]
	open  func(ctx context.Context, key editorKey) (*editorEntry, error)
}

func newEditorRegistry(size int, open func(ctx context.Context, key editorKey) (*editorEntry, error)) (*editorRegistry, error) {
	cache, err := lru.NewWithEvict[editorKey, *editorEntry](size, func(key editorKey, e *editorEntry) {
		log.Debug().Str("editor", key.String()).Msg("closing image editor")
		e.ed.Close()
	})
	if err != nil {
		return nil, fmt.Errorf("editor registry: %w", err)
	}
	return &editorRegistry{cache: cache, open: open}, nil
}

// get returns the editor for key, opening it on first use.
func (r *editorRegistry) get(ctx context.Context, key editorKey) (*editorEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.cache.Get(key); ok {
		return e, nil
	}
	e, err := r.open(ctx, key)
	if err != nil {
		return nil, err
	}
	r.cache.Add(key, e)
	return e, nil
}

// peek returns an already open editor without touching recency.
func (r *editorRegistry) peek(key editorKey) (*editorEntry, bool) {
	return r.cache.Peek(key)
}

// forget closes every editor of a product.
func (r *editorRegistry) forget(spuID string) {
	r.cache.Remove(editorKey{spuID, catalog.FieldImages})
	r.cache.Remove(editorKey{spuID, catalog.FieldDescriptionImages})
}

// refresh pushes externally saved image lists into open editors.
func (r *editorRegistry) refresh(p *catalog.Product) {
	r.sync(editorKey{p.SpuID, catalog.FieldImages}, p.Images)
	r.sync(editorKey{p.SpuID, catalog.FieldDescriptionImages}, p.DescriptionImages)
}

// sync replaces the list of the editor for key, if one is open. An editor closed
// by eviction in the meantime is skipped.
func (r *editorRegistry) sync(key editorKey, value []string) {
	e, ok := r.peek(key)
	if !ok {
		return
	}
	if err := e.ed.SetValue(value); err != nil {
		log.Debug().Err(err).Str("editor", key.String()).Msg("skipped image list refresh")
	}
}

func (r *editorRegistry) close() {
	r.cache.Purge()
}

func namespaceFor(field catalog.ImageField) string {
	if field == catalog.FieldDescriptionImages {
		return "products/detail"
	}
	return editor.DefaultNamespace
}

// openEditor loads the stored list and binds a new editor to it. Every change the
// editor emits is written back to the product.
func (s *Server) openEditor(ctx context.Context, key editorKey) (*editorEntry, error) {
	images, err := s.store.Products.Images(ctx, key.spuID, key.field)
	if err != nil {
		return nil, err
	}

	limit := 0
	if key.field == catalog.FieldImages {
		limit = s.imageMax
	}
	notes := &notify.Recorder{}
	ed, err := editor.New(editor.Config{
		Storage:   s.blobs,
		Session:   s.session,
		Notifier:  notify.Multi(notify.Log, notes),
		Value:     images,
		Max:       limit,
		Namespace: namespaceFor(key.field),
		OnChange: func(next []string) {
			s.persistImages(key, next)
		},
	})
	if err != nil {
		return nil, err
	}
	log.Debug().Str("editor", key.String()).Int("images", len(images)).Msg("opened image editor")
	return &editorEntry{ed: ed, notes: notes}, nil
}

func (s *Server) persistImages(key editorKey, next []string) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.store.Products.UpdateImages(ctx, key.spuID, key.field, next); err != nil {
		log.Error().Err(err).Str("editor", key.String()).Msg("failed to persist image list")
	}
}
