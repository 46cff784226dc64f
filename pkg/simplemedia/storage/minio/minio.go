package minio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

const backendName = "minio"

// Config holds the MinIO backend settings
type Config struct {
	Endpoint  string // host:port, without scheme
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string // defaults to us-east-1; set so presigning never looks the region up
	UseSSL    bool

	EnsureBucket bool // create the bucket when missing
	PublicRead   bool // attach an anonymous GetObject policy when ensuring the bucket
}

// Backend implements simplemedia.ObjectStore on MinIO or any S3-compatible service
type Backend struct {
	client *minio.Client
	bucket string
}

// New creates a MinIO storage backend
func New(ctx context.Context, config Config) (*Backend, error) {
	if config.Endpoint == "" {
		return nil, errors.New("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}

	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKey, config.SecretKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	if config.EnsureBucket {
		if err := ensureBucket(ctx, client, config); err != nil {
			return nil, err
		}
	}

	return &Backend{client: client, bucket: config.Bucket}, nil
}

func ensureBucket(ctx context.Context, client *minio.Client, config Config) error {
	exists, err := client.BucketExists(ctx, config.Bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, config.Bucket, minio.MakeBucketOptions{Region: config.Region}); err != nil {
			return fmt.Errorf("create bucket %q: %w", config.Bucket, err)
		}
		slog.Info("storage: created bucket", "bucket", config.Bucket)
	}
	if config.PublicRead {
		if err := client.SetBucketPolicy(ctx, config.Bucket, publicReadPolicy(config.Bucket)); err != nil {
			return fmt.Errorf("set bucket policy: %w", err)
		}
	}
	return nil
}

func (b *Backend) storageErr(key, op string, err error) error {
	return &simplemedia.StorageError{Backend: backendName, Key: key, Op: op, Err: err}
}

// Put streams the reader to the bucket; the size is unknown so MinIO buffers parts
func (b *Backend) Put(ctx context.Context, key string, r io.Reader, opts simplemedia.PutOptions) error {
	_, err := b.client.PutObject(ctx, b.bucket, key, r, -1, minio.PutObjectOptions{
		ContentType:  opts.ContentType,
		CacheControl: opts.CacheControl,
	})
	if err != nil {
		return b.storageErr(key, "put", err)
	}
	return nil
}

// Get opens the object. GetObject is lazy, so a Stat surfaces a missing key here.
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, b.classify(key, "get", err)
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, b.classify(key, "get", err)
	}
	return obj, nil
}

// Head checks existence with StatObject
func (b *Backend) Head(ctx context.Context, key string) (bool, error) {
	_, err := b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, b.storageErr(key, "head", err)
	}
	return true, nil
}

// Delete removes the object
func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return b.storageErr(key, "delete", err)
	}
	return nil
}

// PresignPut issues a signed PUT URL with Content-Type among the signed headers
func (b *Backend) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	headers := http.Header{}
	headers.Set("Content-Type", contentType)
	u, err := b.client.PresignHeader(ctx, http.MethodPut, b.bucket, key, ttl, url.Values{}, headers)
	if err != nil {
		return "", b.storageErr(key, "presign", err)
	}
	return u.String(), nil
}

func (b *Backend) classify(key, op string, err error) error {
	if isNotFound(err) {
		return b.storageErr(key, op, simplemedia.ErrObjectNotFound)
	}
	return b.storageErr(key, op, err)
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" || resp.StatusCode == http.StatusNotFound
}

// publicReadPolicy returns an S3 bucket policy JSON that allows anonymous GET on all objects.
func publicReadPolicy(bucket string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    "s3:GetObject",
				"Resource":  fmt.Sprintf("arn:aws:s3:::%s/*", bucket),
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}
