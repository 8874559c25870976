package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

type S3Config struct {
	Endpoint      string
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	UsePathStyle  bool
	PresignExpiry time.Duration
}

// s3API and s3Presigner are the subsets of *s3.Client and *s3.PresignClient used
// here, so tests can fake them.
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type s3Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3 stores images through the AWS SDK v2. It works against AWS S3 and
// S3-compatible services (MinIO, RustFS, ...).
type S3 struct {
	client  s3API
	presign s3Presigner
	bucket  string
	expiry  time.Duration
}

var _ Service = (*S3)(nil)

func NewS3(cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("s3: access key and secret key are required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("s3: load config: %w", err)
	}

	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		if cfg.UseSSL {
			endpoint = "https://" + endpoint
		} else {
			endpoint = "http://" + endpoint
		}
	}
	if endpoint != "" {
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("s3: invalid endpoint: %w", err)
		}
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return newS3(client, s3.NewPresignClient(client), cfg.Bucket, cfg.PresignExpiry), nil
}

func newS3(client s3API, presign s3Presigner, bucket string, expiry time.Duration) *S3 {
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}
	return &S3{client: client, presign: presign, bucket: bucket, expiry: expiry}
}

func (s *S3) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("s3: put %q: %w", key, err)
	}
	return FileID(s.bucket, key), nil
}

func (s *S3) TempURLs(ctx context.Context, fileIDs []string) ([]TempURL, error) {
	keys := keysFor(s.bucket, fileIDs)
	out := make([]TempURL, 0, len(keys))
	var lastErr error
	for _, id := range fileIDs {
		key, ok := keys[id]
		if !ok {
			continue
		}
		req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		}, s3.WithPresignExpires(s.expiry))
		if err != nil {
			log.Debug().Err(err).Str("key", key).Msg("s3: presign failed")
			lastErr = err
			continue
		}
		out = append(out, TempURL{FileID: id, URL: req.URL, ExpiresAt: time.Now().Add(s.expiry)})
	}
	if len(out) == 0 && lastErr != nil {
		return nil, fmt.Errorf("s3: presign: %w", lastErr)
	}
	return out, nil
}

func (s *S3) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		return fmt.Errorf("s3: head bucket %q: %w", s.bucket, err)
	}
	return nil
}
