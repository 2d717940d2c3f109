package copier

import (
	"context"
	"path"

	"github.com/rs/zerolog"

	"github.com/andresuchdata/segpack/internal/classify"
	"github.com/andresuchdata/segpack/internal/storage"
	"github.com/andresuchdata/segpack/pkg/logger"
)

// Result is the outcome of copying one file.
type Result struct {
	Dest string
	Err  error
}

// Copier mirrors large files under a destination directory of a store.
type Copier struct {
	store storage.Store
	dir   string
	log   zerolog.Logger
}

// New returns a Copier writing below dir.
func New(store storage.Store, dir string) *Copier {
	return &Copier{store: store, dir: dir, log: logger.Component("copier")}
}

// WithLogger returns a copy of c logging to l.
func (c *Copier) WithLogger(l zerolog.Logger) *Copier {
	cp := *c
	cp.log = l
	return &cp
}

// Dest returns the store path a source file is mirrored to.
func (c *Copier) Dest(f classify.SourceFile) string {
	return path.Join(c.dir, f.RelPath)
}

// Copy uploads f unmodified. Failures are reported in the result, never
// returned, so a caller can keep going with the next file.
func (c *Copier) Copy(ctx context.Context, f classify.SourceFile) Result {
	dest := c.Dest(f)
	c.log.Info().Int64("size", f.Size).Msgf("%s -> %s", f.AbsPath, dest)

	if err := c.store.CopyFromLocal(ctx, f.AbsPath, dest); err != nil {
		c.log.Error().Err(err).Str("src", f.AbsPath).Msg("copy failed, skipping")
		return Result{Dest: dest, Err: err}
	}
	return Result{Dest: dest}
}
