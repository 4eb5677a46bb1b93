package scraper

import (
	"time"

	"github.com/aluiziolira/go-harvest/models"
)

// OutcomeKind tags the result of one fetch attempt.
type OutcomeKind int

const (
	// OutcomeSuccess carries the extracted records.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeRecoverable is an HTTP status or connection failure, eligible for retry.
	OutcomeRecoverable
	// OutcomeFatal aborts the session.
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRecoverable:
		return "recoverable"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is produced exactly once per target per attempt.
type Outcome struct {
	Target  string
	Kind    OutcomeKind
	Records []models.Record
	Err     error
	Latency time.Duration
}

// newOutcome classifies a fetch or extraction error into an Outcome.
func newOutcome(target string, records []models.Record, err error, latency time.Duration) Outcome {
	out := Outcome{Target: target, Records: records, Err: err, Latency: latency}
	switch errorTypeLabel(err) {
	case "unknown":
		out.Kind = OutcomeSuccess
	case "http_status", "connection":
		out.Kind = OutcomeRecoverable
		out.Records = nil
	default:
		out.Kind = OutcomeFatal
		out.Records = nil
	}
	return out
}
