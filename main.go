package main

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"smiley-admin/adminserver"
	"smiley-admin/golib"
	"smiley-admin/session"
	"smiley-admin/storage"
)

func main() {
	_ = godotenv.Load()
	golib.SetupLogger(golib.GetEnv("LOG_LEVEL", "info"), golib.GetEnvBool("LOG_PRETTY", false))

	presign := golib.GetEnvDuration("PRESIGN_EXPIRY", time.Hour)
	cfg := adminserver.Config{
		Listen:        golib.GetEnv("LISTEN_ADDR", ":8080"),
		StorageDriver: golib.GetEnv("STORAGE_DRIVER", adminserver.DriverMinio),
		Minio: storage.MinioConfig{
			Endpoint:      golib.GetEnv("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey:     golib.GetEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey:     golib.GetEnv("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:        golib.GetEnv("MINIO_BUCKET", "smiley"),
			UseSSL:        golib.GetEnvBool("MINIO_USE_SSL", false),
			PresignExpiry: presign,
		},
		S3: storage.S3Config{
			Endpoint:      golib.GetEnv("S3_ENDPOINT", ""),
			Region:        golib.GetEnv("S3_REGION", "us-east-1"),
			AccessKey:     golib.GetEnv("S3_ACCESS_KEY", ""),
			SecretKey:     golib.GetEnv("S3_SECRET_KEY", ""),
			Bucket:        golib.GetEnv("S3_BUCKET", "smiley"),
			UseSSL:        golib.GetEnvBool("S3_USE_SSL", true),
			UsePathStyle:  golib.GetEnvBool("S3_PATH_STYLE", false),
			PresignExpiry: presign,
		},
		PublicBaseURL:   golib.GetEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		SQLitePath:      golib.GetEnv("SQLITE_DB_PATH", "./smiley-admin.db"),
		AdminSessionTTL: golib.GetEnvDuration("ADMIN_SESSION_TTL", session.DefaultAdminTTL),
		AdminVerifyCode: golib.GetEnv("ADMIN_VERIFY_CODE", ""),
		ProductImageMax: golib.GetEnvInt("PRODUCT_IMAGE_MAX", adminserver.DefaultProductImageMax),
		EditorCacheSize: golib.GetEnvInt("EDITOR_CACHE_SIZE", adminserver.DefaultEditorCacheSize),
	}

	if err := adminserver.Run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
