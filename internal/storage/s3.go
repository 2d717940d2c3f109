package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	objectContentType = "application/octet-stream"

	// streamPartSize is the multipart chunk used when the object size is
	// unknown; minio-go would otherwise size parts for a 5 TiB object.
	streamPartSize = 64 << 20
)

// S3Config encapsulates the connection info for S3-compatible storage.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// S3Store implements Store for S3-compatible services using minio-go.
type S3Store struct {
	client *minio.Client
	bucket string
}

// NewS3Store connects to the endpoint and verifies that bucket exists.
func NewS3Store(ctx context.Context, cfg S3Config, bucket string) (*S3Store, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint must be provided")
	}
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket must be provided")
	}

	endpoint, secure := normalizeEndpoint(cfg.Endpoint, cfg.UseSSL)

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	opts := &minio.Options{
		Secure: secure,
		Region: region,
	}
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		opts.Creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		opts.Creds = credentials.NewEnvAWS()
	}

	client, err := minio.New(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	ok, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if !ok {
		return nil, fmt.Errorf("bucket %s does not exist", bucket)
	}

	return &S3Store{client: client, bucket: bucket}, nil
}

// normalizeEndpoint strips an explicit http(s) scheme, which also decides TLS.
func normalizeEndpoint(endpoint string, useSSL bool) (string, bool) {
	endpoint = strings.TrimSpace(endpoint)
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "https://"), "/"), true
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimSuffix(strings.TrimPrefix(endpoint, "http://"), "/"), false
	}
	return strings.TrimSuffix(strings.TrimPrefix(endpoint, "//"), "/"), useSSL
}

func objectKey(p string) string {
	return strings.TrimPrefix(p, "/")
}

func (s *S3Store) Exists(ctx context.Context, p string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, objectKey(p), minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("s3 stat %s failed: %w", p, err)
}

func (s *S3Store) Delete(ctx context.Context, p string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectKey(p), minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("s3 delete %s failed: %w", p, err)
	}
	return nil
}

// Create streams writes into a single multipart PutObject. Close waits for the upload.
func (s *S3Store) Create(ctx context.Context, p string) (io.WriteCloser, error) {
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		_, err := s.client.PutObject(ctx, s.bucket, objectKey(p), pr, -1, streamPutOptions())
		pr.CloseWithError(err)
		done <- err
	}()
	return &pipeHandle{pw: pw, done: done, key: p}, nil
}

func (s *S3Store) CopyFromLocal(ctx context.Context, localPath, p string) error {
	_, err := s.client.FPutObject(ctx, s.bucket, objectKey(p), localPath,
		minio.PutObjectOptions{ContentType: objectContentType})
	if err != nil {
		return fmt.Errorf("s3 upload %s failed: %w", localPath, err)
	}
	return nil
}

func streamPutOptions() minio.PutObjectOptions {
	return minio.PutObjectOptions{
		ContentType: objectContentType,
		PartSize:    streamPartSize,
	}
}

type pipeHandle struct {
	pw   *io.PipeWriter
	done chan error
	key  string
}

func (h *pipeHandle) Write(b []byte) (int, error) {
	return h.pw.Write(b)
}

func (h *pipeHandle) Close() error {
	if err := h.pw.Close(); err != nil {
		return err
	}
	if err := <-h.done; err != nil {
		return fmt.Errorf("s3 upload %s failed: %w", h.key, err)
	}
	return nil
}

var _ Store = (*S3Store)(nil)
