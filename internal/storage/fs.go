package storage

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

const fsBufferSize = 64 * 1024

// FSStore implements Store on top of an afero filesystem. It backs file://
// outputs with the OS filesystem and tests with an in-memory one.
type FSStore struct {
	fs afero.Fs
}

// NewFSStore wraps fs.
func NewFSStore(fs afero.Fs) *FSStore {
	return &FSStore{fs: fs}
}

func (s *FSStore) Exists(ctx context.Context, p string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return afero.Exists(s.fs, p)
}

func (s *FSStore) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.fs.RemoveAll(p); err != nil {
		return fmt.Errorf("failed deleting %s: %w", p, err)
	}
	return nil
}

func (s *FSStore) Create(ctx context.Context, p string) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return nil, fmt.Errorf("failed creating directory for %s: %w", p, err)
	}
	f, err := s.fs.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed creating %s: %w", p, err)
	}
	return &fileHandle{f: f, w: bufio.NewWriterSize(f, fsBufferSize)}, nil
}

// CopyFromLocal writes to a sibling temp file and renames it into place.
func (s *FSStore) CopyFromLocal(ctx context.Context, localPath, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed opening %s: %w", localPath, err)
	}
	defer src.Close()

	if err := s.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", p, err)
	}

	tmp := fmt.Sprintf("%s.%s.partial", p, uuid.NewString())
	dst, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed creating %s: %w", tmp, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed copying %s: %w", localPath, err)
	}
	if err := dst.Close(); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed closing %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, p); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("failed moving %s into place: %w", p, err)
	}
	return nil
}

type fileHandle struct {
	f afero.File
	w *bufio.Writer
}

func (h *fileHandle) Write(b []byte) (int, error) {
	return h.w.Write(b)
}

func (h *fileHandle) Close() error {
	flushErr := h.w.Flush()
	closeErr := h.f.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

var _ Store = (*FSStore)(nil)
