package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/leca/photophriend/internal/model"
)

var _ Storage = (*Minio)(nil)

// MinioConfig holds the connection settings for an S3-compatible bucket.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Minio implements Storage using an S3-compatible object store. Keys are used
// as object names unchanged.
type Minio struct {
	client *minio.Client
	bucket string
}

// NewMinio connects to the object store and creates the bucket if it does not exist.
func NewMinio(ctx context.Context, cfg MinioConfig) (*Minio, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, model.ErrStorage.Wrap(fmt.Errorf("creating minio client: %w", err))
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, model.ErrStorage.Wrap(fmt.Errorf("checking bucket %s: %w", cfg.Bucket, err))
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, model.ErrStorage.Wrap(fmt.Errorf("creating bucket %s: %w", cfg.Bucket, err))
		}
	}

	return &Minio{client: client, bucket: cfg.Bucket}, nil
}

// Store uploads data under key. Readers that report their length are uploaded
// in one request; others are streamed as a multipart upload.
func (m *Minio) Store(key string, data io.Reader) (int64, error) {
	size := int64(-1)
	if l, ok := data.(interface{ Len() int }); ok {
		size = int64(l.Len())
	}
	info, err := m.client.PutObject(context.Background(), m.bucket, key, data, size, minio.PutObjectOptions{
		ContentType: mime.TypeByExtension(path.Ext(key)),
	})
	if err != nil {
		return 0, model.ErrStorage.Wrap(fmt.Errorf("uploading %s: %w", key, err))
	}
	return info.Size, nil
}

// Retrieve returns the object stored under key.
func (m *Minio) Retrieve(key string) (io.ReadCloser, error) {
	ctx := context.Background()
	if _, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil, model.ErrNotFound.New("file %s", key)
		}
		return nil, model.ErrStorage.Wrap(fmt.Errorf("stat %s: %w", key, err))
	}
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, model.ErrStorage.Wrap(fmt.Errorf("getting %s: %w", key, err))
	}
	return obj, nil
}

// Delete removes the object. S3 reports success for missing objects.
func (m *Minio) Delete(key string) error {
	if err := m.client.RemoveObject(context.Background(), m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if isNoSuchKey(err) {
			return nil
		}
		return model.ErrStorage.Wrap(fmt.Errorf("removing %s: %w", key, err))
	}
	return nil
}

// Exists checks whether an object is stored under key.
func (m *Minio) Exists(key string) (bool, error) {
	_, err := m.client.StatObject(context.Background(), m.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNoSuchKey(err) {
		return false, nil
	}
	return false, model.ErrStorage.Wrap(fmt.Errorf("stat %s: %w", key, err))
}

func isNoSuchKey(err error) bool {
	return minio.ToErrorResponse(err).Code == "NoSuchKey"
}
