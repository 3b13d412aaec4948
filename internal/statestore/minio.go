package statestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinIOStore keeps state files in an S3-compatible bucket.
type MinIOStore struct {
	Client   *minio.Client
	Bucket   string
	BasePath string
}

// NewMinIOStore initializes a MinIO client and ensures the bucket exists.
func NewMinIOStore(ctx context.Context, endpoint, accessKey, secretKey, bucket, basePath string, useSSL bool) (*MinIOStore, error) {
	if endpoint == "" || bucket == "" {
		return nil, fmt.Errorf("endpoint and bucket required")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, err
	}
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}
	return &MinIOStore{Client: client, Bucket: bucket, BasePath: basePath}, nil
}

func (m *MinIOStore) object(key string) string {
	if m.BasePath == "" {
		return key
	}
	return path.Join(m.BasePath, key)
}

// Put uploads data to bucket/key.
func (m *MinIOStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := m.Client.PutObject(ctx, m.Bucket, m.object(key), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	return err
}

// Get downloads bucket/key.
func (m *MinIOStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.Client.GetObject(ctx, m.Bucket, m.object(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, err
	}
	return data, nil
}
