package metrics

import "time"

// Sink defines the interface for recording metrics.
// All methods are fire-and-forget: implementations MUST NOT block or propagate errors.
// If the metrics backend is unavailable, implementations log warnings and continue.
type Sink interface {
	// Sweep metrics
	TickStarted()
	TickCompleted(duration time.Duration, processed int, err error)
	DueBacklog(candidates int)
	EventOutcome(outcome string)

	// Change feed metrics
	SubscriberDropped()
	SubscriberCountUpdate(count int)

	// Leader election metrics
	LeaderStatusChanged(isLeader bool)
	LeaderAcquired()
	LeaderLost(reason string)
}

// Outcome constants for EventOutcome; these mirror the sweep's per-item results.
const (
	OutcomeAdvanced = "advanced"
	OutcomePosted   = "posted"
	OutcomeSkipped  = "skipped"
	OutcomeFailed   = "failed"
)
