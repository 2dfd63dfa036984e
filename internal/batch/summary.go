package batch

import (
	"fmt"
	"time"
)

// Outcome is the result of one (video, resolution) job.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeCorruption
	OutcomeEncoderFailure
	OutcomeSkippedExists
	OutcomeSkippedBelowResolution
	OutcomeSkippedMissingSource
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeCorruption:
		return "corruption"
	case OutcomeEncoderFailure:
		return "encoder-failure"
	case OutcomeSkippedExists:
		return "skipped-exists"
	case OutcomeSkippedBelowResolution:
		return "skipped-below-resolution"
	case OutcomeSkippedMissingSource:
		return "skipped-missing-source"
	default:
		return fmt.Sprintf("unknown(%d)", int(o))
	}
}

// Summary counts what a batch run did.
type Summary struct {
	// Videos is the number of videos iterated after corrupt exclusion.
	Videos int
	// ExcludedCorrupt is the number of registered corrupt videos left out.
	ExcludedCorrupt int

	Transcoded             int
	Reused                 int
	Corrupt                int
	EncoderFailures        int
	SkippedBelowResolution int
	// SkippedMissing counts videos, not jobs.
	SkippedMissing int

	Duration time.Duration
}

func (s *Summary) add(o Outcome) {
	switch o {
	case OutcomeSuccess:
		s.Transcoded++
	case OutcomeCorruption:
		s.Corrupt++
	case OutcomeEncoderFailure:
		s.EncoderFailures++
	case OutcomeSkippedExists:
		s.Reused++
	case OutcomeSkippedBelowResolution:
		s.SkippedBelowResolution++
	case OutcomeSkippedMissingSource:
		s.SkippedMissing++
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("%d videos, %d transcoded, %d reused, %d corrupt, %d encoder failures, %d missing sources in %v",
		s.Videos, s.Transcoded, s.Reused, s.Corrupt, s.EncoderFailures, s.SkippedMissing, s.Duration.Round(time.Second))
}
