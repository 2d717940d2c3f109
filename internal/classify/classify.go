package classify

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// SourceFile is a regular file found under the source root.
type SourceFile struct {
	// RelPath is slash-separated and relative to the root.
	RelPath string
	AbsPath string
	Size    int64
}

// Result partitions the regular files under a root by size.
type Result struct {
	Small []SourceFile
	Large []SourceFile
	// Skipped lists entries that could not be read, slash-separated and
	// relative to the root like SourceFile.RelPath.
	Skipped []string
}

// Classifier walks a tree and splits regular files at SizeLimit.
// Files strictly smaller than SizeLimit are small.
type Classifier struct {
	SizeLimit int64
	Log       zerolog.Logger
}

// IsSmall reports whether a file of the given size goes into segments.
func (c *Classifier) IsSmall(size int64) bool {
	return size < c.SizeLimit
}

// Classify walks root recursively. Symlinks and non-regular entries are
// ignored; directories that cannot be read are logged and skipped. Walk order
// is lexical but callers must not rely on it.
func (c *Classifier) Classify(ctx context.Context, root string) (*Result, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	name := filepath.Base(abs)

	// WalkDir does not descend into a root that is itself a symlink
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat input %s: %w", root, err)
	}
	if resolved != abs {
		c.Log.Info().Str("input", abs).Str("target", resolved).Msg("input is a symlink, walking its target")
		abs = resolved
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat input %s: %w", root, err)
	}

	res := &Result{}
	if info.Mode().IsRegular() {
		c.add(res, SourceFile{RelPath: name, AbsPath: abs, Size: info.Size()})
		return res, nil
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input %s is neither a directory nor a regular file", root)
	}

	err = filepath.WalkDir(abs, func(p string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if p == abs {
				return walkErr
			}
			c.Log.Warn().Err(walkErr).Str("path", p).Msg("skipping unreadable entry")
			res.Skipped = append(res.Skipped, relSlash(abs, p))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			c.Log.Warn().Err(err).Str("path", p).Msg("skipping file that vanished during walk")
			res.Skipped = append(res.Skipped, relSlash(abs, p))
			return nil
		}
		rel, err := filepath.Rel(abs, p)
		if err != nil {
			return err
		}
		c.add(res, SourceFile{RelPath: filepath.ToSlash(rel), AbsPath: p, Size: fi.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}

	return res, nil
}

func (c *Classifier) add(res *Result, f SourceFile) {
	if c.IsSmall(f.Size) {
		res.Small = append(res.Small, f)
	} else {
		res.Large = append(res.Large, f)
	}
}

func relSlash(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}
