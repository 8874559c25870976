package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog/log"
)

type MinioConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PresignExpiry time.Duration
}

// minioAPI is the subset of *minio.Client used here, so tests can fake it.
type minioAPI interface {
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucket, object string, expires time.Duration, params map[string][]string) (string, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	GetObject(ctx context.Context, bucket, object string) (*Object, error)
}

// Minio stores images in a MinIO (or any S3-compatible) bucket via minio-go.
type Minio struct {
	api    minioAPI
	bucket string
	expiry time.Duration
}

var (
	_ Service = (*Minio)(nil)
	_ Reader  = (*Minio)(nil)
	_ Lister  = (*Minio)(nil)
)

func NewMinio(cfg MinioConfig) (*Minio, error) {
	cfg.Endpoint = strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	if i := strings.Index(cfg.Endpoint, "/"); i != -1 {
		cfg.Endpoint = cfg.Endpoint[:i]
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("minio: bucket is required")
	}

	// Higher idle limits avoid connection churn when a product page resolves many previews.
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: new client: %w", err)
	}
	return newMinio(&minioClient{Client: client}, cfg.Bucket, cfg.PresignExpiry), nil
}

func newMinio(api minioAPI, bucket string, expiry time.Duration) *Minio {
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}
	return &Minio{api: api, bucket: bucket, expiry: expiry}
}

func (m *Minio) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := m.api.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("minio: put %q: %w", key, err)
	}
	return FileID(m.bucket, key), nil
}

func (m *Minio) TempURLs(ctx context.Context, fileIDs []string) ([]TempURL, error) {
	keys := keysFor(m.bucket, fileIDs)
	out := make([]TempURL, 0, len(keys))
	var lastErr error
	for _, id := range fileIDs {
		key, ok := keys[id]
		if !ok {
			continue
		}
		u, err := m.api.PresignedGetObject(ctx, m.bucket, key, m.expiry, nil)
		if err != nil {
			log.Debug().Err(err).Str("key", key).Msg("minio: presign failed")
			lastErr = err
			continue
		}
		out = append(out, TempURL{FileID: id, URL: u, ExpiresAt: time.Now().Add(m.expiry)})
	}
	if len(out) == 0 && lastErr != nil {
		return nil, fmt.Errorf("minio: presign: %w", lastErr)
	}
	return out, nil
}

func (m *Minio) Ping(ctx context.Context) error {
	ok, err := m.api.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("minio: bucket %q: %w", m.bucket, err)
	}
	if !ok {
		return fmt.Errorf("minio: bucket %q does not exist", m.bucket)
	}
	return nil
}

func (m *Minio) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range m.api.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("minio: list %q: %w", prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func (m *Minio) Get(ctx context.Context, key string) (*Object, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	return m.api.GetObject(ctx, m.bucket, key)
}

// minioClient adapts *minio.Client to minioAPI.
type minioClient struct {
	*minio.Client
}

func (c *minioClient) PresignedGetObject(ctx context.Context, bucket, object string, expires time.Duration, params map[string][]string) (string, error) {
	u, err := c.Client.PresignedGetObject(ctx, bucket, object, expires, params)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (c *minioClient) GetObject(ctx context.Context, bucket, object string) (*Object, error) {
	// StatObject can intermittently return "Access Denied" under concurrent load.
	var info minio.ObjectInfo
	var err error
	for attempt := 0; attempt < statRetries; attempt++ {
		info, err = c.Client.StatObject(ctx, bucket, object, minio.StatObjectOptions{})
		if err == nil || !strings.Contains(err.Error(), "Access Denied") {
			break
		}
		if attempt < statRetries-1 {
			time.Sleep(statRetryDelay)
		}
	}
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" || strings.Contains(err.Error(), "does not exist") {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, object)
		}
		return nil, fmt.Errorf("minio: stat %q: %w", object, err)
	}

	obj, err := c.Client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio: get %q: %w", object, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("minio: read %q: %w", object, err)
	}
	return &Object{Key: object, ContentType: info.ContentType, Size: info.Size, Data: data}, nil
}

const (
	statRetries    = 3
	statRetryDelay = 50 * time.Millisecond
)
