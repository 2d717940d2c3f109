// Package segment packs key/payload records into size-bounded, append-only
// container files with rotation.
package segment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"

	"github.com/dustin/go-humanize"
	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/andresuchdata/segpack/internal/storage"
	"github.com/andresuchdata/segpack/pkg/logger"
)

var (
	// ErrInitialization is returned when the first segment cannot be created.
	ErrInitialization = errors.New("segment: initialization failed")

	// ErrRotation is returned when a segment cannot be closed or the next one created.
	// A writer that returned ErrRotation is unusable.
	ErrRotation = errors.New("segment: rotation failed")

	// ErrAppend is returned when a record could not be written. The record is skipped.
	ErrAppend = errors.New("segment: append failed")

	// ErrClosed is returned by operations on a closed writer.
	ErrClosed = errors.New("segment: writer is closed")
)

// kindError tags an underlying error with one of the sentinel kinds above.
type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string        { return e.kind.Error() + ": " + e.err.Error() }
func (e *kindError) Unwrap() error        { return e.err }
func (e *kindError) Is(target error) bool { return target == e.kind }

func withKind(kind, err error) error {
	return &kindError{kind: kind, err: pkgerrors.WithStack(err)}
}

// Info describes one segment written by a Writer.
type Info struct {
	Ordinal int
	Path    string
	// Size is the sum of payload lengths appended to the segment; framing is not counted.
	Size    int64
	Records int
}

// Writer appends records to the active segment and rotates to a new one when
// the next payload would push it past the limit. A Writer is not safe for
// concurrent use.
type Writer struct {
	store  storage.Store
	dir    string
	prefix string
	limit  int64
	log    zerolog.Logger

	active   io.WriteCloser
	segments []Info
	err      error
	closed   bool

	// torn is set when the active segment ends in a partial record.
	torn bool
}

// Option configures a Writer.
type Option func(*Writer)

// WithLogger sets the logger used for rotation messages.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Writer) {
		w.log = l
	}
}

// Open creates segment 0 at dir/<prefix>0, replacing anything already there.
func Open(ctx context.Context, store storage.Store, dir, prefix string, limit int64, opts ...Option) (*Writer, error) {
	if store == nil {
		return nil, withKind(ErrInitialization, errors.New("store is nil"))
	}
	if limit <= 0 {
		return nil, withKind(ErrInitialization, fmt.Errorf("segment size limit must be positive, got %d", limit))
	}

	w := &Writer{
		store:  store,
		dir:    dir,
		prefix: prefix,
		limit:  limit,
		log:    logger.Component("segment"),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.openSegment(ctx, 0); err != nil {
		return nil, withKind(ErrInitialization, err)
	}
	return w, nil
}

// SegmentPath returns the store path of the segment with the given ordinal.
func (w *Writer) SegmentPath(ordinal int) string {
	return path.Join(w.dir, w.prefix+strconv.Itoa(ordinal))
}

// Append writes key and payload as one record. When the payload does not fit
// in the remaining room of the active segment the writer rotates first. A
// payload larger than the limit on its own still goes whole into one segment.
func (w *Writer) Append(ctx context.Context, key string, payload []byte) error {
	if w.closed {
		return ErrClosed
	}
	if w.err != nil {
		return w.err
	}

	size := int64(len(payload))
	if w.torn || w.current().Size+size > w.limit {
		if err := w.rotate(ctx); err != nil {
			w.err = withKind(ErrRotation, err)
			return w.err
		}
	}

	torn, err := writeRecord(w.active, key, payload)
	if err != nil {
		if torn {
			// nothing may follow a partial record in the same segment
			w.torn = true
			w.log.Warn().Str("path", w.current().Path).Str("key", key).
				Msg("partial record written, next append starts a new segment")
		}
		return withKind(ErrAppend, fmt.Errorf("failed writing %s to %s: %w", key, w.current().Path, err))
	}

	cur := w.current()
	cur.Size += size
	cur.Records++
	return nil
}

// Close closes the active segment. It must be called once; a second call
// returns ErrClosed and is not part of the contract.
func (w *Writer) Close(ctx context.Context) error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true

	if w.active != nil {
		err := w.active.Close()
		w.active = nil
		if err != nil {
			return withKind(ErrRotation, fmt.Errorf("failed closing %s: %w", w.current().Path, err))
		}
		w.log.Info().
			Str("path", w.current().Path).
			Int("records", w.current().Records).
			Str("size", humanize.IBytes(uint64(w.current().Size))).
			Msg("closed segment")
	}
	return w.err
}

// Segments returns accounting for every segment created so far, in ordinal order.
func (w *Writer) Segments() []Info {
	out := make([]Info, len(w.segments))
	copy(out, w.segments)
	return out
}

func (w *Writer) current() *Info {
	return &w.segments[len(w.segments)-1]
}

func (w *Writer) rotate(ctx context.Context) error {
	cur := w.current()
	err := w.active.Close()
	w.active = nil
	if err != nil {
		return fmt.Errorf("failed closing %s: %w", cur.Path, err)
	}
	w.log.Info().
		Str("path", cur.Path).
		Int("records", cur.Records).
		Str("size", humanize.IBytes(uint64(cur.Size))).
		Msg("closed segment")

	return w.openSegment(ctx, cur.Ordinal+1)
}

func (w *Writer) openSegment(ctx context.Context, ordinal int) error {
	p := w.SegmentPath(ordinal)

	exists, err := w.store.Exists(ctx, p)
	if err != nil {
		return fmt.Errorf("failed checking %s: %w", p, err)
	}
	if exists {
		if err := w.store.Delete(ctx, p); err != nil {
			return fmt.Errorf("failed deleting stale %s: %w", p, err)
		}
	}

	w.log.Info().Str("path", p).Msg("next segment")

	h, err := w.store.Create(ctx, p)
	if err != nil {
		return fmt.Errorf("failed creating %s: %w", p, err)
	}
	if _, err := io.WriteString(h, magic); err != nil {
		_ = h.Close()
		return fmt.Errorf("failed writing header of %s: %w", p, err)
	}

	w.active = h
	w.torn = false
	w.segments = append(w.segments, Info{Ordinal: ordinal, Path: p})
	return nil
}
