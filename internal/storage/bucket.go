package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	cmstorage "github.com/chartmuseum/storage"
)

// BucketStore implements Store on a chartmuseum storage backend (GCS for gs://).
// Those backends only offer whole-object puts, so handles buffer in memory until Close.
type BucketStore struct {
	backend cmstorage.Backend
}

// NewBucketStore wraps an existing chartmuseum backend.
func NewBucketStore(backend cmstorage.Backend) *BucketStore {
	return &BucketStore{backend: backend}
}

// NewGCSStore builds a BucketStore backed by Google Cloud Storage.
// Credentials come from the environment (GOOGLE_APPLICATION_CREDENTIALS).
func NewGCSStore(bucket, prefix string) (*BucketStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket must be provided")
	}
	return NewBucketStore(cmstorage.NewGoogleCSBackend(bucket, prefix)), nil
}

// Exists reports whether p can be fetched. The backends do not distinguish a
// missing object from a failed read, so any error counts as absent.
func (s *BucketStore) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := s.backend.GetObject(objectKey(p)); err != nil {
		return false, nil
	}
	return true, nil
}

func (s *BucketStore) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.backend.DeleteObject(objectKey(p)); err != nil {
		return fmt.Errorf("bucket delete %s failed: %w", p, err)
	}
	return nil
}

func (s *BucketStore) Create(ctx context.Context, p string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &bufferHandle{backend: s.backend, key: objectKey(p)}, nil
}

func (s *BucketStore) CopyFromLocal(ctx context.Context, localPath, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	content, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("failed reading %s: %w", localPath, err)
	}
	if err := s.backend.PutObject(objectKey(p), content); err != nil {
		return fmt.Errorf("bucket upload %s failed: %w", localPath, err)
	}
	return nil
}

type bufferHandle struct {
	backend cmstorage.Backend
	key     string
	buf     bytes.Buffer
	closed  bool
}

func (h *bufferHandle) Write(b []byte) (int, error) {
	if h.closed {
		return 0, os.ErrClosed
	}
	return h.buf.Write(b)
}

func (h *bufferHandle) Close() error {
	if h.closed {
		return os.ErrClosed
	}
	h.closed = true
	if err := h.backend.PutObject(h.key, h.buf.Bytes()); err != nil {
		return fmt.Errorf("bucket upload %s failed: %w", h.key, err)
	}
	h.buf = bytes.Buffer{}
	return nil
}

var _ Store = (*BucketStore)(nil)
