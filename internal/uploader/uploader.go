// Package uploader runs one ingestion: small files are packed into segments,
// large files are copied as they are.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/andresuchdata/segpack/internal/classify"
	"github.com/andresuchdata/segpack/internal/copier"
	"github.com/andresuchdata/segpack/internal/segment"
	"github.com/andresuchdata/segpack/internal/storage"
	"github.com/andresuchdata/segpack/pkg/logger"
)

// ErrUnreadableDir marks directories the classifier could not list.
var ErrUnreadableDir = errors.New("directory could not be read")

// Options holds the parameters of a run.
type Options struct {
	InputPath string
	// OutputDir is the directory inside the store that receives segments and large files.
	OutputDir      string
	TempFilePrefix string
	SizeLimit      int64
	BatchSizeLimit int64

	// ReadFile loads a small file; defaults to os.ReadFile.
	ReadFile func(name string) ([]byte, error)
	// Logger defaults to the global logger tagged with component=uploader.
	Logger *zerolog.Logger
}

// Uploader sequences classify, segment writing and large-file copies.
type Uploader struct {
	store    storage.Store
	opts     Options
	log      zerolog.Logger
	readFile func(string) ([]byte, error)
}

// New creates an Uploader writing to store.
func New(store storage.Store, opts Options) *Uploader {
	u := &Uploader{
		store:    store,
		opts:     opts,
		log:      logger.Component("uploader"),
		readFile: os.ReadFile,
	}
	if opts.Logger != nil {
		u.log = *opts.Logger
	}
	if opts.ReadFile != nil {
		u.readFile = opts.ReadFile
	}
	return u
}

// Run performs the whole ingestion. Small files are all appended and the
// segment writer closed before any large file is copied. Per-file failures
// are recorded as skipped outcomes; only classification, writer
// initialization and rotation failures abort the run.
func (u *Uploader) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: uuid.NewString(), StartedAt: start}
	defer func() {
		summary.Elapsed = time.Since(start)
		u.log.Info().Str("run_id", summary.RunID).Dur("elapsed", summary.Elapsed).
			Msgf("Elapsed time : %d", summary.Elapsed.Milliseconds())
	}()

	classifier := &classify.Classifier{SizeLimit: u.opts.SizeLimit, Log: u.log}
	res, err := classifier.Classify(ctx, u.opts.InputPath)
	if err != nil {
		return summary, err
	}
	for _, dir := range res.Skipped {
		summary.record(Outcome{Path: dir, Status: StatusSkipped, Err: ErrUnreadableDir})
	}
	u.log.Info().
		Int("small", len(res.Small)).
		Int("large", len(res.Large)).
		Msg("classified input")

	if err := u.packSmall(ctx, res.Small, summary); err != nil {
		return summary, err
	}

	u.log.Info().Msgf("Files larger than %s are directly uploaded without aggregation",
		humanize.IBytes(uint64(u.opts.SizeLimit)))

	cp := copier.New(u.store, u.opts.OutputDir).WithLogger(u.log)
	for _, f := range res.Large {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		r := cp.Copy(ctx, f)
		o := Outcome{Path: f.RelPath, Size: f.Size, Status: StatusCopied, Dest: r.Dest}
		if r.Err != nil {
			o.Status = StatusSkipped
			o.Err = r.Err
		}
		summary.record(o)
	}

	return summary, nil
}

// packSmall appends every small file to segments and closes the writer.
func (u *Uploader) packSmall(ctx context.Context, files []classify.SourceFile, summary *Summary) error {
	w, err := segment.Open(ctx, u.store, u.opts.OutputDir, u.opts.TempFilePrefix, u.opts.BatchSizeLimit,
		segment.WithLogger(u.log))
	if err != nil {
		return err
	}
	closed := false
	defer func() {
		if !closed {
			_ = w.Close(ctx)
		}
		summary.Segments = w.Segments()
	}()

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		o, err := u.appendFile(ctx, w, f)
		if err != nil {
			return err
		}
		summary.record(o)
	}

	closed = true
	if err := w.Close(ctx); err != nil {
		return fmt.Errorf("failed to close segment writer: %w", err)
	}
	return nil
}

// appendFile returns an error only when the writer itself is broken.
func (u *Uploader) appendFile(ctx context.Context, w *segment.Writer, f classify.SourceFile) (Outcome, error) {
	o := Outcome{Path: f.RelPath, Size: f.Size, Status: StatusSkipped}

	u.log.Info().Msgf("appending %s (size : %s)", f.AbsPath, humanize.IBytes(uint64(f.Size)))

	payload, err := u.readFile(f.AbsPath)
	if err != nil {
		u.log.Error().Err(err).Str("path", f.AbsPath).Msg("read failed, skipping")
		o.Err = err
		return o, nil
	}
	// the file may have changed since it was classified
	o.Size = int64(len(payload))

	if err := w.Append(ctx, f.RelPath, payload); err != nil {
		if errors.Is(err, segment.ErrRotation) {
			u.log.Error().Stack().Err(err).Msg("segment rotation failed")
			return o, err
		}
		u.log.Error().Err(err).Str("path", f.AbsPath).Msg("append failed, skipping")
		o.Err = err
		return o, nil
	}

	segs := w.Segments()
	o.Status = StatusAppended
	o.Dest = segs[len(segs)-1].Path
	return o, nil
}
