// Package storage uploads image binaries to an object store and turns the opaque
// file IDs it hands out back into time-limited fetch URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Scheme prefixes every opaque file ID. A file ID looks like cloud://<bucket>/<key>.
const Scheme = "cloud://"

const DefaultPresignExpiry = 2 * time.Hour

var (
	ErrEmptyKey      = errors.New("storage: object key is required")
	ErrInvalidFileID = errors.New("storage: invalid file id")
	ErrNotFound      = errors.New("storage: object not found")
)

// TempURL is a resolved, directly fetchable URL for one file ID.
type TempURL struct {
	FileID    string    `json:"fileId"`
	URL       string    `json:"tempFileUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service is the blob storage contract used by the image editor.
type Service interface {
	// Upload stores data under key and returns its opaque file ID.
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// TempURLs resolves file IDs. Partial results are acceptable; IDs that cannot be
	// resolved are simply absent from the result.
	TempURLs(ctx context.Context, fileIDs []string) ([]TempURL, error)
	// Ping verifies credentials and bucket access.
	Ping(ctx context.Context) error
}

// Object is a stored binary as returned by Reader.
type Object struct {
	Key         string
	ContentType string
	Size        int64
	Data        []byte
}

// Reader is implemented by backends that can stream objects back through this server.
type Reader interface {
	Get(ctx context.Context, key string) (*Object, error)
}

// Lister is implemented by backends that can enumerate stored keys.
type Lister interface {
	List(ctx context.Context, prefix string) ([]string, error)
}

// FileID builds the opaque ID for key in bucket.
func FileID(bucket, key string) string {
	return Scheme + bucket + "/" + strings.TrimPrefix(key, "/")
}

// IsFileID reports whether ref is an opaque file ID rather than a usable URL.
func IsFileID(ref string) bool {
	return strings.HasPrefix(ref, Scheme)
}

// ParseFileID splits an opaque ID into bucket and key.
func ParseFileID(id string) (bucket, key string, err error) {
	if !IsFileID(id) {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidFileID, id)
	}
	rest := strings.TrimPrefix(id, Scheme)
	i := strings.Index(rest, "/")
	if i <= 0 || i == len(rest)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidFileID, id)
	}
	return rest[:i], rest[i+1:], nil
}

// keysFor parses ids belonging to bucket, dropping anything else.
func keysFor(bucket string, ids []string) map[string]string {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		b, key, err := ParseFileID(id)
		if err != nil || b != bucket {
			continue
		}
		out[id] = key
	}
	return out
}
