package sweep

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the per-event result of one sweep tick.
type Outcome string

const (
	// OutcomeAdvanced: recurring event, next occurrence exists, nextRunAt moved forward.
	OutcomeAdvanced Outcome = "advanced"
	// OutcomePosted: one-shot or exhausted recurring event, now terminal.
	OutcomePosted Outcome = "posted"
	// OutcomeSkipped: the in-transaction re-read showed the event was already
	// handled (gone, no longer scheduled, or no longer due). Not an error.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeFailed: the event's transaction failed; it stays due and will be
	// retried on a later tick.
	OutcomeFailed Outcome = "failed"
)

// ItemResult records what happened to one due candidate.
type ItemResult struct {
	EventID uuid.UUID
	Outcome Outcome
	Err     error
}

// TickReport summarizes one sweep tick.
type TickReport struct {
	StartedAt  time.Time
	Candidates int
	Results    []ItemResult
}

// Processed returns the number of candidates successfully advanced or posted.
func (r TickReport) Processed() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == OutcomeAdvanced || res.Outcome == OutcomePosted {
			n++
		}
	}
	return n
}

// Count returns the number of results with the given outcome.
func (r TickReport) Count(outcome Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == outcome {
			n++
		}
	}
	return n
}
