package uploader

import (
	"time"

	"github.com/andresuchdata/segpack/internal/segment"
)

// Status is the per-file outcome of a run
type Status string

const (
	StatusAppended Status = "appended"
	StatusCopied   Status = "copied"
	StatusSkipped  Status = "skipped"
)

// Outcome records what happened to one source file.
type Outcome struct {
	Path   string
	Size   int64
	Status Status
	// Dest is the segment or object the file ended up in.
	Dest string
	Err  error
}

// Summary aggregates a whole run.
type Summary struct {
	RunID         string
	Appended      int
	Copied        int
	Skipped       int
	AppendedBytes int64
	CopiedBytes   int64
	Segments      []segment.Info
	Outcomes      []Outcome
	StartedAt     time.Time
	Elapsed       time.Duration
}

func (s *Summary) record(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Status {
	case StatusAppended:
		s.Appended++
		s.AppendedBytes += o.Size
	case StatusCopied:
		s.Copied++
		s.CopiedBytes += o.Size
	case StatusSkipped:
		s.Skipped++
	}
}

// SkippedOutcomes returns the outcomes of files that were not transferred.
func (s *Summary) SkippedOutcomes() []Outcome {
	var out []Outcome
	for _, o := range s.Outcomes {
		if o.Status == StatusSkipped {
			out = append(out, o)
		}
	}
	return out
}
