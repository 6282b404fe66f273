package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"
)

// Store caches rendered reports in a MinIO/S3 bucket
type Store struct {
	client     *minio.Client
	bucketName string
	region     string
}

// New connects to MinIO and makes sure the bucket exists
func New(ctx context.Context, endpoint, region, bucket, accessKey, secretKey string, useSSL bool) (*Store, error) {
	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, eris.Wrap(err, "minio: new client")
	}

	exists, err := cli.BucketExists(ctx, bucket)
	if err != nil {
		return nil, eris.Wrap(err, "minio: bucket exists")
	}
	if !exists {
		if err := cli.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, eris.Wrap(err, "minio: make bucket")
		}
	}

	return &Store{client: cli, bucketName: bucket, region: region}, nil
}

// Put uploads data under key and returns the object URL
func (s *Store) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", eris.Wrapf(err, "minio: put %s", key)
	}

	// public URL (if bucket is public); private buckets need a presigned URL
	return fmt.Sprintf("%s/%s/%s", s.client.EndpointURL().String(), s.bucketName, key), nil
}

// Get downloads an object. A missing object returns (nil, nil).
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, eris.Wrapf(err, "minio: get %s", key)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "minio: read %s", key)
	}
	return data, nil
}

// Remove deletes an object; removing a missing object is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{})
	return eris.Wrapf(err, "minio: remove %s", key)
}

// Check reports whether the bucket is reachable; used by the health endpoint.
func (s *Store) Check(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucketName)
	return eris.Wrap(err, "minio: bucket exists")
}
