package metrics

import "time"

// NoopSink is a no-op implementation of Sink.
// Used when metrics are disabled to avoid nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) TickStarted()                                                   {}
func (n *NoopSink) TickCompleted(duration time.Duration, processed int, err error) {}
func (n *NoopSink) DueBacklog(candidates int)                                      {}
func (n *NoopSink) EventOutcome(outcome string)                                    {}
func (n *NoopSink) SubscriberDropped()                                             {}
func (n *NoopSink) SubscriberCountUpdate(count int)                                {}
func (n *NoopSink) LeaderStatusChanged(isLeader bool)                              {}
func (n *NoopSink) LeaderAcquired()                                                {}
func (n *NoopSink) LeaderLost(reason string)                                       {}
