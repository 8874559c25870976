package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFileID(t *testing.T) {
	bucket, key, err := ParseFileID("cloud://shop/products/1_a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "shop", bucket)
	assert.Equal(t, "products/1_a.jpg", key)

	for _, bad := range []string{"", "https://x/y.jpg", "cloud://", "cloud://shop", "cloud://shop/", "cloud:///key"} {
		_, _, err := ParseFileID(bad)
		assert.ErrorIs(t, err, ErrInvalidFileID, bad)
	}
}

func TestFileIDRoundTrip(t *testing.T) {
	id := FileID("shop", "/products/a.png")
	assert.Equal(t, "cloud://shop/products/a.png", id)
	assert.True(t, IsFileID(id))
	assert.False(t, IsFileID("https://cdn.example.com/a.png"))
}

func TestMemory_UploadResolveAndRead(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("shop", "http://localhost:8080/")

	id, err := m.Upload(ctx, "products/a.png", []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "cloud://shop/products/a.png", id)

	urls, err := m.TempURLs(ctx, []string{id, "cloud://shop/missing.png", "cloud://other/a.png", "https://x"})
	require.NoError(t, err)
	require.Len(t, urls, 1)
	assert.Equal(t, id, urls[0].FileID)
	assert.True(t, strings.HasPrefix(urls[0].URL, "http://localhost:8080/objects/products/a.png?expires="))

	obj, err := m.Get(ctx, "products/a.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", obj.ContentType)
	assert.Equal(t, []byte("png"), obj.Data)

	_, err = m.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	keys, err := m.List(ctx, "products/")
	require.NoError(t, err)
	assert.Equal(t, []string{"products/a.png"}, keys)
}

func TestMemory_UploadRejectsEmptyKey(t *testing.T) {
	_, err := NewMemory("shop", "").Upload(context.Background(), "", nil, "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

// fakeMinio implements minioAPI in memory.
type fakeMinio struct {
	objects    []minio.ObjectInfo
	puts       map[string]string
	presignErr map[string]error
	exists     bool
	existsErr  error
}

func (f *fakeMinio) PutObject(_ context.Context, _, object string, r io.Reader, _ int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if _, err := io.ReadAll(r); err != nil {
		return minio.UploadInfo{}, err
	}
	if f.puts == nil {
		f.puts = map[string]string{}
	}
	f.puts[object] = opts.ContentType
	return minio.UploadInfo{Key: object}, nil
}

func (f *fakeMinio) PresignedGetObject(_ context.Context, bucket, object string, _ time.Duration, _ map[string][]string) (string, error) {
	if err := f.presignErr[object]; err != nil {
		return "", err
	}
	return "https://minio.local/" + bucket + "/" + object + "?X-Amz-Signature=sig", nil
}

func (f *fakeMinio) BucketExists(context.Context, string) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeMinio) ListObjects(_ context.Context, _ string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	ch := make(chan minio.ObjectInfo, len(f.objects)+1)
	for _, obj := range f.objects {
		if opts.Prefix == "" || strings.HasPrefix(obj.Key, opts.Prefix) {
			ch <- obj
		}
	}
	close(ch)
	return ch
}

func (f *fakeMinio) GetObject(_ context.Context, _, object string) (*Object, error) {
	if _, ok := f.puts[object]; !ok {
		return nil, ErrNotFound
	}
	return &Object{Key: object, ContentType: f.puts[object]}, nil
}

func TestMinio_UploadReturnsFileID(t *testing.T) {
	api := &fakeMinio{}
	m := newMinio(api, "shop", 0)

	id, err := m.Upload(context.Background(), "products/x.jpg", []byte{1, 2}, "")
	require.NoError(t, err)
	assert.Equal(t, "cloud://shop/products/x.jpg", id)
	assert.Equal(t, "application/octet-stream", api.puts["products/x.jpg"])
	assert.Equal(t, DefaultPresignExpiry, m.expiry)
}

func TestMinio_TempURLsPartial(t *testing.T) {
	api := &fakeMinio{presignErr: map[string]error{"b.jpg": errors.New("boom")}}
	m := newMinio(api, "shop", time.Minute)

	urls, err := m.TempURLs(context.Background(), []string{"cloud://shop/a.jpg", "cloud://shop/b.jpg", "cloud://other/c.jpg"})
	require.NoError(t, err)
	require.Len(t, urls, 1)
	assert.Equal(t, "cloud://shop/a.jpg", urls[0].FileID)
	assert.Contains(t, urls[0].URL, "/shop/a.jpg")
}

func TestMinio_TempURLsAllFailed(t *testing.T) {
	api := &fakeMinio{presignErr: map[string]error{"a.jpg": errors.New("boom")}}
	m := newMinio(api, "shop", time.Minute)

	_, err := m.TempURLs(context.Background(), []string{"cloud://shop/a.jpg"})
	assert.Error(t, err)
}

func TestMinio_Ping(t *testing.T) {
	assert.NoError(t, newMinio(&fakeMinio{exists: true}, "shop", 0).Ping(context.Background()))
	assert.Error(t, newMinio(&fakeMinio{exists: false}, "shop", 0).Ping(context.Background()))
	assert.Error(t, newMinio(&fakeMinio{existsErr: errors.New("denied")}, "shop", 0).Ping(context.Background()))
}

func TestMinio_ListWithPrefix(t *testing.T) {
	api := &fakeMinio{objects: []minio.ObjectInfo{
		{Key: "products/1.jpg"},
		{Key: "products/2.jpg"},
		{Key: "banners/1.jpg"},
	}}
	m := newMinio(api, "shop", 0)

	keys, err := m.List(context.Background(), "products/")
	require.NoError(t, err)
	assert.Equal(t, []string{"products/1.jpg", "products/2.jpg"}, keys)
}

func TestMinio_ListPropagatesError(t *testing.T) {
	api := &fakeMinio{objects: []minio.ObjectInfo{{Key: "a"}, {Err: errors.New("list failed")}}}
	_, err := newMinio(api, "shop", 0).List(context.Background(), "")
	assert.Error(t, err)
}

// fakeS3 implements s3API and s3Presigner in memory.
type fakeS3 struct {
	puts       map[string]string
	presignErr map[string]error
	headErr    error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if _, err := io.ReadAll(in.Body); err != nil {
		return nil, err
	}
	if f.puts == nil {
		f.puts = map[string]string{}
	}
	f.puts[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) PresignGetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	key := aws.ToString(in.Key)
	if err := f.presignErr[key]; err != nil {
		return nil, err
	}
	return &v4.PresignedHTTPRequest{
		URL:    "https://s3.local/" + aws.ToString(in.Bucket) + "/" + key + "?X-Amz-Signature=sig",
		Method: "GET",
	}, nil
}

func TestS3_UploadReturnsFileID(t *testing.T) {
	api := &fakeS3{}
	s := newS3(api, api, "shop", 0)

	id, err := s.Upload(context.Background(), "products/x.jpg", []byte{1, 2}, "")
	require.NoError(t, err)
	assert.Equal(t, "cloud://shop/products/x.jpg", id)
	assert.Equal(t, "application/octet-stream", api.puts["products/x.jpg"])
	assert.Equal(t, DefaultPresignExpiry, s.expiry)

	_, err = s.Upload(context.Background(), "", []byte{1}, "image/png")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestS3_TempURLsPartial(t *testing.T) {
	api := &fakeS3{presignErr: map[string]error{"b.jpg": errors.New("boom")}}
	s := newS3(api, api, "shop", time.Minute)

	urls, err := s.TempURLs(context.Background(), []string{"cloud://shop/a.jpg", "cloud://shop/b.jpg", "cloud://other/c.jpg"})
	require.NoError(t, err)
	require.Len(t, urls, 1)
	assert.Equal(t, "cloud://shop/a.jpg", urls[0].FileID)
	assert.Contains(t, urls[0].URL, "/shop/a.jpg")
	assert.WithinDuration(t, time.Now().Add(time.Minute), urls[0].ExpiresAt, 5*time.Second)
}

func TestS3_TempURLsAllFailed(t *testing.T) {
	api := &fakeS3{presignErr: map[string]error{"a.jpg": errors.New("boom")}}
	s := newS3(api, api, "shop", time.Minute)

	_, err := s.TempURLs(context.Background(), []string{"cloud://shop/a.jpg"})
	assert.Error(t, err)

	urls, err := s.TempURLs(context.Background(), []string{"https://cdn.test/a.jpg"})
	require.NoError(t, err)
	assert.Empty(t, urls)
}

func TestS3_Ping(t *testing.T) {
	ok := &fakeS3{}
	assert.NoError(t, newS3(ok, ok, "shop", 0).Ping(context.Background()))

	denied := &fakeS3{headErr: errors.New("denied")}
	assert.Error(t, newS3(denied, denied, "shop", 0).Ping(context.Background()))
}
