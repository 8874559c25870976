// Package adminserver is the HTTP surface of the admin console: operator login,
// catalog collections, per-product image editors and object access.
package adminserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"smiley-admin/catalog"
	"smiley-admin/session"
	"smiley-admin/storage"
)

type Config struct {
	Listen        string
	StorageDriver string
	Minio         storage.MinioConfig
	S3            storage.S3Config
	// PublicBaseURL is where this server is reachable; the memory backend points
	// temporary URLs at it.
	PublicBaseURL string

	SQLitePath      string
	AdminSessionTTL time.Duration
	AdminVerifyCode string
	ProductImageMax int
	EditorCacheSize int
}

const (
	DriverMinio  = "minio"
	DriverS3     = "s3"
	DriverMemory = "memory"

	memoryBucket = "local"

	DefaultProductImageMax = 9
	DefaultEditorCacheSize = 128
)

// Options are the dependencies of a Server.
type Options struct {
	Store   *catalog.Store
	Storage storage.Service
	Bucket  string

	AdminTTL        time.Duration
	ProductImageMax int
	EditorCacheSize int
}

type Server struct {
	store   *catalog.Store
	blobs   storage.Service
	reader  storage.Reader
	lister  storage.Lister
	bucket  string
	session *session.Manager
	admins  *session.AdminStore
	editors *editorRegistry

	imageMax int
}

func New(opts Options) (*Server, error) {
	if opts.Store == nil || opts.Storage == nil {
		return nil, fmt.Errorf("adminserver: store and storage are required")
	}
	s := &Server{
		store:    opts.Store,
		blobs:    opts.Storage,
		bucket:   opts.Bucket,
		session:  session.NewManager(opts.Storage.Ping),
		admins:   session.NewAdminStore(opts.AdminTTL),
		imageMax: opts.ProductImageMax,
	}
	// zero picks the default; a negative limit disables it
	if s.imageMax == 0 {
		s.imageMax = DefaultProductImageMax
	}
	if r, ok := opts.Storage.(storage.Reader); ok {
		s.reader = r
	}
	if l, ok := opts.Storage.(storage.Lister); ok {
		s.lister = l
	}

	size := opts.EditorCacheSize
	if size <= 0 {
		size = DefaultEditorCacheSize
	}
	reg, err := newEditorRegistry(size, s.openEditor)
	if err != nil {
		return nil, err
	}
	s.editors = reg
	return s, nil
}

// Handler returns the routed and wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)

	mux.HandleFunc("POST /api/login", s.login)
	mux.HandleFunc("POST /api/logout", s.logout)
	mux.HandleFunc("GET /api/dashboard", s.dashboard)

	mux.HandleFunc("GET /api/products", s.listProducts)
	mux.HandleFunc("POST /api/products", s.saveProduct)
	mux.HandleFunc("GET /api/products/{id}", s.getProduct)
	mux.HandleFunc("DELETE /api/products/{id}", s.deleteProduct)
	mux.HandleFunc("POST /api/products/{id}/descriptionImages/import", s.importDescriptionImages)

	mux.HandleFunc("GET /api/products/{id}/images/{field}", s.getImages)
	mux.HandleFunc("POST /api/products/{id}/images/{field}", s.uploadImages)
	mux.HandleFunc("DELETE /api/products/{id}/images/{field}", s.clearImages)
	mux.HandleFunc("DELETE /api/products/{id}/images/{field}/{index}", s.removeImage)
	mux.HandleFunc("POST /api/products/{id}/images/{field}/reorder", s.reorderImages)
	mux.HandleFunc("POST /api/products/{id}/images/{field}/drag", s.dragImage)

	mux.HandleFunc("GET /api/categories", s.listCategories)
	mux.HandleFunc("POST /api/categories", s.createCategory)
	mux.HandleFunc("PUT /api/categories/{id}", s.updateCategory)
	mux.HandleFunc("POST /api/categories/{id}/status", s.toggleCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.deleteCategory)

	mux.HandleFunc("GET /api/tags", s.listTags)
	mux.HandleFunc("POST /api/tags", s.createTag)
	mux.HandleFunc("PUT /api/tags/{id}", s.updateTag)
	mux.HandleFunc("DELETE /api/tags/{id}", s.deleteTag)

	mux.HandleFunc("GET /api/users", s.listUsers)
	mux.HandleFunc("POST /api/users/{openid}/admin", s.setAdmin)

	mux.HandleFunc("GET /api/system-config", s.getSystemConfig)
	mux.HandleFunc("PUT /api/system-config/{key}", s.setSystemConfig)

	mux.HandleFunc("GET /api/debug/objects", debugList(s.lister, s.bucket))
	mux.HandleFunc("GET /objects/{key...}", proxyGet(s.reader))

	return Chain(recoverMiddleware, corsMiddleware, logMiddleware, adminAuthMiddleware(s.admins))(mux)
}

// Close releases every open editor.
func (s *Server) Close() {
	s.editors.close()
}

// Run wires storage, database and HTTP server from cfg and serves until failure.
func Run(cfg Config) error {
	blobs, bucket, err := openStorage(cfg)
	if err != nil {
		return err
	}

	store, err := catalog.OpenStore(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if cfg.AdminVerifyCode != "" {
		if err := store.Seed(context.Background(), catalog.KeyAdminVerifyCode, cfg.AdminVerifyCode); err != nil {
			return fmt.Errorf("seed admin verify code: %w", err)
		}
	}

	srv, err := New(Options{
		Store:           store,
		Storage:         blobs,
		Bucket:          bucket,
		AdminTTL:        cfg.AdminSessionTTL,
		ProductImageMax: cfg.ProductImageMax,
		EditorCacheSize: cfg.EditorCacheSize,
	})
	if err != nil {
		return err
	}
	defer srv.Close()

	log.Info().
		Str("listen", cfg.Listen).
		Str("driver", cfg.StorageDriver).
		Str("bucket", bucket).
		Msg("admin server listening")
	return http.ListenAndServe(cfg.Listen, srv.Handler())
}

func openStorage(cfg Config) (storage.Service, string, error) {
	switch cfg.StorageDriver {
	case "", DriverMinio:
		m, err := storage.NewMinio(cfg.Minio)
		if err != nil {
			return nil, "", err
		}
		return m, cfg.Minio.Bucket, nil
	case DriverS3:
		s, err := storage.NewS3(cfg.S3)
		if err != nil {
			return nil, "", err
		}
		return s, cfg.S3.Bucket, nil
	case DriverMemory:
		log.Warn().Msg("using in-memory storage; uploads are lost on restart")
		return storage.NewMemory(memoryBucket, cfg.PublicBaseURL), memoryBucket, nil
	default:
		return nil, "", fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
