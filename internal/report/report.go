package report

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/andresuchdata/segpack/internal/uploader"
)

// Reporter publishes the summary of a finished run.
type Reporter interface {
	Report(ctx context.Context, s *uploader.Summary) error
}

// LogReporter writes the summary to a zerolog logger.
type LogReporter struct {
	Log zerolog.Logger
}

func (r LogReporter) Report(ctx context.Context, s *uploader.Summary) error {
	r.Log.Info().
		Str("run_id", s.RunID).
		Int("appended", s.Appended).
		Int("copied", s.Copied).
		Int("skipped", s.Skipped).
		Int("segments", len(s.Segments)).
		Str("appended_bytes", humanize.IBytes(uint64(s.AppendedBytes))).
		Str("copied_bytes", humanize.IBytes(uint64(s.CopiedBytes))).
		Dur("elapsed", s.Elapsed).
		Msg("run summary")

	for _, seg := range s.Segments {
		r.Log.Debug().
			Int("ordinal", seg.Ordinal).
			Str("path", seg.Path).
			Int("records", seg.Records).
			Int64("size", seg.Size).
			Msg("segment")
	}
	for _, o := range s.SkippedOutcomes() {
		r.Log.Warn().Err(o.Err).Str("path", o.Path).Msg("skipped")
	}
	return nil
}

// ReportAll runs every reporter. Failures are logged and never returned,
// reporting must not change the outcome of a run.
func ReportAll(ctx context.Context, log zerolog.Logger, s *uploader.Summary, reporters ...Reporter) {
	for _, r := range reporters {
		if err := r.Report(ctx, s); err != nil {
			log.Warn().Err(err).Str("run_id", s.RunID).Msg("failed to report run summary")
		}
	}
}
