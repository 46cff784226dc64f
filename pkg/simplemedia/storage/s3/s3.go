package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/tendant/simple-media/pkg/simplemedia"
)

const backendName = "s3"

// Config holds the S3 backend settings
type Config struct {
	Region          string // AWS region, defaults to us-east-1
	Bucket          string // S3 bucket name
	AccessKeyID     string // AWS access key ID; empty uses the default credential chain
	SecretAccessKey string // AWS secret access key
	Endpoint        string // Optional custom endpoint for S3-compatible services
	UsePathStyle    bool   // Use path-style addressing

	CreateBucketIfNotExist bool // Create bucket if it doesn't exist
}

// objectAPI is the subset of the S3 client the backend calls
type objectAPI interface {
	manager.UploadAPIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Backend is an AWS S3 implementation of the simplemedia.ObjectStore interface
type Backend struct {
	client   objectAPI
	presign  *s3.PresignClient
	uploader *manager.Uploader
	bucket   string
}

// New creates a new S3 storage backend
func New(ctx context.Context, config Config) (*Backend, error) {
	if config.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if config.Region == "" {
		config.Region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(config.Region)}
	if config.AccessKeyID != "" && config.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if config.Endpoint != "" {
			o.BaseEndpoint = aws.String(config.Endpoint)
		}
		o.UsePathStyle = config.UsePathStyle
	})

	if config.CreateBucketIfNotExist {
		if err := createBucketIfNotExists(ctx, client, config); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return newBackend(client, s3.NewPresignClient(client), config.Bucket), nil
}

func newBackend(client objectAPI, presign *s3.PresignClient, bucket string) *Backend {
	return &Backend{
		client:   client,
		presign:  presign,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
	}
}

func createBucketIfNotExists(ctx context.Context, client *s3.Client, config Config) error {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(config.Bucket)})
	if err == nil {
		return nil
	}
	if !isNotFound(err) {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(config.Bucket)}
	if config.Region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(config.Region),
		}
	}
	_, err = client.CreateBucket(ctx, input)
	var owned *types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		return err
	}
	return nil
}

func (b *Backend) storageErr(key, op string, err error) error {
	return &simplemedia.StorageError{Backend: backendName, Key: key, Op: op, Err: err}
}

// Put uploads through the multipart manager. S3 makes the object visible
// only once the upload completes.
func (b *Backend) Put(ctx context.Context, key string, r io.Reader, opts simplemedia.PutOptions) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
		Body:   r,
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.CacheControl != "" {
		input.CacheControl = aws.String(opts.CacheControl)
	}

	if _, err := b.uploader.Upload(ctx, input); err != nil {
		return b.storageErr(key, "put", err)
	}
	return nil
}

// Get streams the object body
func (b *Backend) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, b.storageErr(key, "get", simplemedia.ErrObjectNotFound)
		}
		return nil, b.storageErr(key, "get", err)
	}
	return out.Body, nil
}

// Head checks existence with HeadObject; no body is transferred
func (b *Backend) Head(ctx context.Context, key string) (bool, error) {
	_, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, b.storageErr(key, "head", err)
	}
	return true, nil
}

// Delete removes the object; S3 treats a missing key as success
func (b *Backend) Delete(ctx context.Context, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return b.storageErr(key, "delete", err)
	}
	return nil
}

// PresignPut issues a SigV4 URL for one PUT. The content type is part of
// the signed headers, so the client must send the same value.
func (b *Backend) PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error) {
	req, err := b.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", b.storageErr(key, "presign", err)
	}
	return req.URL, nil
}

// isNotFound reports whether err is an S3 missing key or bucket response
func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return true
	}
	return strings.Contains(err.Error(), "StatusCode: 404")
}
