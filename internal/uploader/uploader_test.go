package uploader

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/segpack/internal/segment"
	"github.com/andresuchdata/segpack/internal/storage"
)

// recordingStore logs the order of store operations and can fail the Nth Create.
type recordingStore struct {
	storage.Store
	ops          []string
	creates      int
	failCreateAt int
	failCopy     string
}

func (s *recordingStore) Create(ctx context.Context, p string) (io.WriteCloser, error) {
	s.creates++
	if s.creates == s.failCreateAt {
		return nil, errors.New("create refused")
	}
	h, err := s.Store.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	s.ops = append(s.ops, "create "+p)
	return &recordingHandle{WriteCloser: h, store: s, path: p}, nil
}

func (s *recordingStore) CopyFromLocal(ctx context.Context, localPath, p string) error {
	s.ops = append(s.ops, "copy "+p)
	if p == s.failCopy {
		return errors.New("upload refused")
	}
	return s.Store.CopyFromLocal(ctx, localPath, p)
}

type recordingHandle struct {
	io.WriteCloser
	store *recordingStore
	path  string
}

func (h *recordingHandle) Close() error {
	h.store.ops = append(h.store.ops, "close "+h.path)
	return h.WriteCloser.Close()
}

func writeTree(t *testing.T, files map[string]int) string {
	t.Helper()
	root := t.TempDir()
	for rel, size := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(strings.Repeat(rel[:1], size)), 0o644))
	}
	return root
}

func testOptions(root string) Options {
	nop := zerolog.Nop()
	return Options{
		InputPath:      root,
		OutputDir:      "/out",
		TempFilePrefix: "seq-",
		SizeLimit:      1024,
		BatchSizeLimit: 4096,
		Logger:         &nop,
	}
}

func readSegments(t *testing.T, fs afero.Fs, infos []segment.Info) []segment.Record {
	t.Helper()
	var out []segment.Record
	for _, info := range infos {
		f, err := fs.Open(info.Path)
		require.NoError(t, err)
		recs, err := segment.ReadAll(f)
		f.Close()
		require.NoError(t, err)
		out = append(out, recs...)
	}
	return out
}

func keys(recs []segment.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Key
	}
	return out
}

func TestRun_SmallPackedLargeCopied(t *testing.T) {
	root := writeTree(t, map[string]int{
		"a.txt":         100,
		"docs/b.txt":    200,
		"docs/big.bin":  2000,
		"z/exactly.bin": 1024,
	})
	fs := afero.NewMemMapFs()
	store := &recordingStore{Store: storage.NewFSStore(fs)}

	summary, err := New(store, testOptions(root)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Appended)
	assert.Equal(t, 2, summary.Copied)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, int64(300), summary.AppendedBytes)
	assert.Equal(t, int64(3024), summary.CopiedBytes)
	assert.NotEmpty(t, summary.RunID)
	assert.Positive(t, summary.Elapsed)

	require.Len(t, summary.Segments, 1)
	recs := readSegments(t, fs, summary.Segments)
	assert.ElementsMatch(t, []string{"a.txt", "docs/b.txt"}, keys(recs))

	big, err := afero.ReadFile(fs, "/out/docs/big.bin")
	require.NoError(t, err)
	assert.Len(t, big, 2000)
	exact, err := afero.ReadFile(fs, "/out/z/exactly.bin")
	require.NoError(t, err)
	assert.Len(t, exact, 1024)

	// the segment writer is closed before any copy starts
	require.GreaterOrEqual(t, len(store.ops), 4)
	assert.Equal(t, "create /out/seq-0", store.ops[0])
	assert.Equal(t, "close /out/seq-0", store.ops[1])
	assert.True(t, strings.HasPrefix(store.ops[2], "copy "))
	assert.True(t, strings.HasPrefix(store.ops[3], "copy "))
}

func TestRun_RotatesAcrossSegments(t *testing.T) {
	root := writeTree(t, map[string]int{
		"a1": 40, "b2": 40, "c3": 40,
	})
	fs := afero.NewMemMapFs()
	opts := testOptions(root)
	opts.SizeLimit = 100
	opts.BatchSizeLimit = 100

	summary, err := New(storage.NewFSStore(fs), opts).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Segments, 2)
	assert.Equal(t, int64(80), summary.Segments[0].Size)
	assert.Equal(t, int64(40), summary.Segments[1].Size)
	assert.Len(t, readSegments(t, fs, summary.Segments), 3)

	for _, o := range summary.Outcomes {
		assert.Equal(t, StatusAppended, o.Status)
		assert.Contains(t, []string{"/out/seq-0", "/out/seq-1"}, o.Dest)
	}
}

func TestRun_ReadFailureSkipsFile(t *testing.T) {
	root := writeTree(t, map[string]int{
		"a.txt": 10, "b.txt": 10, "c.txt": 10,
	})
	fs := afero.NewMemMapFs()
	opts := testOptions(root)
	denied := &os.PathError{Op: "open", Path: "b.txt", Err: os.ErrPermission}
	opts.ReadFile = func(name string) ([]byte, error) {
		if filepath.Base(name) == "b.txt" {
			return nil, denied
		}
		return os.ReadFile(name)
	}

	summary, err := New(storage.NewFSStore(fs), opts).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Appended)
	assert.Equal(t, 1, summary.Skipped)
	skipped := summary.SkippedOutcomes()
	require.Len(t, skipped, 1)
	assert.Equal(t, "b.txt", skipped[0].Path)
	assert.ErrorIs(t, skipped[0].Err, os.ErrPermission)

	assert.ElementsMatch(t, []string{"a.txt", "c.txt"}, keys(readSegments(t, fs, summary.Segments)))
}

func TestRun_CopyFailureSkipsFile(t *testing.T) {
	root := writeTree(t, map[string]int{
		"big1.bin": 2000, "big2.bin": 3000,
	})
	fs := afero.NewMemMapFs()
	store := &recordingStore{Store: storage.NewFSStore(fs), failCopy: "/out/big1.bin"}

	summary, err := New(store, testOptions(root)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Copied)
	assert.Equal(t, 1, summary.Skipped)
	require.Len(t, summary.SkippedOutcomes(), 1)
	assert.Equal(t, "big1.bin", summary.SkippedOutcomes()[0].Path)
	ok, err := afero.Exists(fs, "/out/big2.bin")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRun_InitializationFailureIsFatal(t *testing.T) {
	root := writeTree(t, map[string]int{"a.txt": 10, "big.bin": 2000})
	store := &recordingStore{Store: storage.NewFSStore(afero.NewMemMapFs()), failCreateAt: 1}

	_, err := New(store, testOptions(root)).Run(context.Background())
	require.ErrorIs(t, err, segment.ErrInitialization)
	assert.Empty(t, store.ops, "no large file copied after a fatal error")
}

func TestRun_RotationFailureIsFatal(t *testing.T) {
	root := writeTree(t, map[string]int{"a.txt": 600, "b.txt": 600, "big.bin": 2000})
	store := &recordingStore{Store: storage.NewFSStore(afero.NewMemMapFs()), failCreateAt: 2}
	opts := testOptions(root)
	opts.BatchSizeLimit = 1024

	summary, err := New(store, opts).Run(context.Background())
	require.ErrorIs(t, err, segment.ErrRotation)
	assert.Equal(t, 1, summary.Appended)
	for _, op := range store.ops {
		assert.False(t, strings.HasPrefix(op, "copy "), op)
	}
}

func TestRun_MissingInput(t *testing.T) {
	store := &recordingStore{Store: storage.NewFSStore(afero.NewMemMapFs())}
	_, err := New(store, testOptions(filepath.Join(t.TempDir(), "missing"))).Run(context.Background())
	assert.Error(t, err)
	assert.Empty(t, store.ops)
}

func TestRun_EmptyInputStillWritesSegmentZero(t *testing.T) {
	fs := afero.NewMemMapFs()
	summary, err := New(storage.NewFSStore(fs), testOptions(t.TempDir())).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, summary.Segments, 1)
	assert.Empty(t, readSegments(t, fs, summary.Segments))
}

func TestRun_UnreadableDirOutcomeIsRelative(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits are not enforced")
	}
	root := writeTree(t, map[string]int{"a.txt": 10, "sub/locked/c.txt": 10})
	locked := filepath.Join(root, "sub", "locked")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() { _ = os.Chmod(locked, 0o755) })

	summary, err := New(storage.NewFSStore(afero.NewMemMapFs()), testOptions(root)).Run(context.Background())
	require.NoError(t, err)

	skipped := summary.SkippedOutcomes()
	require.Len(t, skipped, 1)
	assert.Equal(t, "sub/locked", skipped[0].Path)
	assert.ErrorIs(t, skipped[0].Err, ErrUnreadableDir)
}

func TestRun_SymlinkedInputRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks need privileges on windows")
	}
	root := writeTree(t, map[string]int{"a.txt": 10, "big.bin": 2000})
	link := filepath.Join(t.TempDir(), "input")
	require.NoError(t, os.Symlink(root, link))
	fs := afero.NewMemMapFs()

	summary, err := New(storage.NewFSStore(fs), testOptions(link)).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Appended)
	assert.Equal(t, 1, summary.Copied)
	assert.Equal(t, []string{"a.txt"}, keys(readSegments(t, fs, summary.Segments)))
}
