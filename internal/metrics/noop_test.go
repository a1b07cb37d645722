package metrics

import (
	"errors"
	"testing"
	"time"
)

func TestNoopSink_AllMethods(t *testing.T) {
	// Verify that calling all methods on NoopSink does not panic.
	s := NewNoopSink()

	// Sweep metrics
	s.TickStarted()
	s.TickCompleted(100*time.Millisecond, 5, nil)
	s.TickCompleted(100*time.Millisecond, 0, errors.New("boom"))
	s.DueBacklog(10)
	s.EventOutcome(OutcomeAdvanced)
	s.EventOutcome(OutcomeFailed)

	// Change feed metrics
	s.SubscriberDropped()
	s.SubscriberCountUpdate(3)

	// Leader election metrics
	s.LeaderStatusChanged(true)
	s.LeaderStatusChanged(false)
	s.LeaderAcquired()
	s.LeaderLost("shutdown")
}

// Verify NoopSink implements Sink interface.
var _ Sink = (*NoopSink)(nil)

// Verify PrometheusSink implements Sink interface.
var _ Sink = (*PrometheusSink)(nil)
