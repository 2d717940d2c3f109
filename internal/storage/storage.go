package storage

import (
	"context"
	"errors"
	"io"
)

// ErrUnsupportedScheme is returned when an output location uses a scheme no store handles.
var ErrUnsupportedScheme = errors.New("unsupported output scheme")

// Store captures the minimal target-store operations the uploader needs.
// Paths are slash-separated and relative to the store root (bucket or filesystem root).
type Store interface {
	Exists(ctx context.Context, p string) (bool, error)
	// Delete removes p. Deleting a missing path is an error for some stores,
	// callers check Exists first.
	Delete(ctx context.Context, p string) error
	// Create opens a fresh append-only handle at p. Data is durable once Close returns nil.
	Create(ctx context.Context, p string) (io.WriteCloser, error)
	// CopyFromLocal copies the local file byte for byte to p, creating parents as needed.
	CopyFromLocal(ctx context.Context, localPath, p string) error
}
