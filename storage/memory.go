package storage

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// Memory keeps objects in process memory. Temporary URLs point at BaseURL, which is
// expected to be served by the admin server's object proxy. Used in development and tests.
type Memory struct {
	Bucket  string
	BaseURL string
	Expiry  time.Duration

	mu      sync.RWMutex
	objects map[string]*Object
}

var (
	_ Service = (*Memory)(nil)
	_ Reader  = (*Memory)(nil)
	_ Lister  = (*Memory)(nil)
)

func NewMemory(bucket, baseURL string) *Memory {
	return &Memory{
		Bucket:  bucket,
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Expiry:  DefaultPresignExpiry,
		objects: make(map[string]*Object),
	}
}

func (m *Memory) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	buf := make([]byte, len(data))
	copy(buf, data)

	m.mu.Lock()
	m.objects[key] = &Object{Key: key, ContentType: contentType, Size: int64(len(buf)), Data: buf}
	m.mu.Unlock()
	return FileID(m.Bucket, key), nil
}

func (m *Memory) TempURLs(ctx context.Context, fileIDs []string) ([]TempURL, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	keys := keysFor(m.Bucket, fileIDs)
	expires := time.Now().Add(m.Expiry)

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]TempURL, 0, len(keys))
	for _, id := range fileIDs {
		key, ok := keys[id]
		if !ok {
			continue
		}
		if _, exists := m.objects[key]; !exists {
			continue
		}
		u := fmt.Sprintf("%s/objects/%s?expires=%d", m.BaseURL, escapeKey(key), expires.Unix())
		out = append(out, TempURL{FileID: id, URL: u, ExpiresAt: expires})
	}
	return out, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *Memory) Get(ctx context.Context, key string) (*Object, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return obj, nil
}

func (m *Memory) List(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
