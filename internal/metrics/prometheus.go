package metrics

import (
	"log"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink implements Sink using the Prometheus client library.
// All methods are non-blocking and fire-and-forget.
// Registration errors are logged but never propagated.
type PrometheusSink struct {
	// Sweep metrics
	ticksTotal           prometheus.Counter
	tickErrorsTotal      prometheus.Counter
	eventsProcessedTotal prometheus.Counter
	tickDuration         prometheus.Histogram
	dueBacklog           prometheus.Gauge
	eventOutcomesTotal   *prometheus.CounterVec

	// Change feed metrics
	subscriberDropsTotal prometheus.Counter
	subscribers          prometheus.Gauge

	// Leader election metrics
	leaderStatus        prometheus.Gauge
	leaderAcquiredTotal prometheus.Counter
	leaderLostTotal     *prometheus.CounterVec
}

// NewPrometheusSink creates a new Prometheus metrics sink.
// Metrics that fail to register are logged and left unexported.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{}
	s.initSweepMetrics(reg)
	s.initFeedMetrics(reg)
	s.initLeaderMetrics(reg)
	return s
}

func (s *PrometheusSink) initSweepMetrics(reg prometheus.Registerer) {
	s.ticksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agendad_sweep_ticks_total",
		Help: "Total number of sweep ticks started.",
	})
	s.tickErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agendad_sweep_tick_errors_total",
		Help: "Total number of sweep ticks aborted by a query failure.",
	})
	s.eventsProcessedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agendad_sweep_events_processed_total",
		Help: "Total number of due events successfully advanced or posted.",
	})
	s.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "agendad_sweep_tick_duration_seconds",
		Help:    "Duration of each sweep tick in seconds.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})
	s.dueBacklog = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agendad_sweep_due_candidates",
		Help: "Number of due candidates returned by the most recent sweep query.",
	})
	s.eventOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agendad_sweep_event_outcomes_total",
		Help: "Per-event sweep outcomes.",
	}, []string{"outcome"})

	s.register(reg, s.ticksTotal, "agendad_sweep_ticks_total")
	s.register(reg, s.tickErrorsTotal, "agendad_sweep_tick_errors_total")
	s.register(reg, s.eventsProcessedTotal, "agendad_sweep_events_processed_total")
	s.register(reg, s.tickDuration, "agendad_sweep_tick_duration_seconds")
	s.register(reg, s.dueBacklog, "agendad_sweep_due_candidates")
	s.register(reg, s.eventOutcomesTotal, "agendad_sweep_event_outcomes_total")
}

func (s *PrometheusSink) initFeedMetrics(reg prometheus.Registerer) {
	s.subscriberDropsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agendad_changefeed_subscriber_drops_total",
		Help: "Total number of changes dropped for slow subscribers.",
	})
	s.subscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agendad_changefeed_subscribers",
		Help: "Number of active change feed subscribers.",
	})

	s.register(reg, s.subscriberDropsTotal, "agendad_changefeed_subscriber_drops_total")
	s.register(reg, s.subscribers, "agendad_changefeed_subscribers")
}

func (s *PrometheusSink) initLeaderMetrics(reg prometheus.Registerer) {
	s.leaderStatus = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "agendad_leader_status",
		Help: "1 when this instance holds the sweep leader lock, 0 otherwise.",
	})
	s.leaderAcquiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "agendad_leader_acquired_total",
		Help: "Total number of times leadership was acquired.",
	})
	s.leaderLostTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agendad_leader_lost_total",
		Help: "Total number of times leadership was lost.",
	}, []string{"reason"})

	s.register(reg, s.leaderStatus, "agendad_leader_status")
	s.register(reg, s.leaderAcquiredTotal, "agendad_leader_acquired_total")
	s.register(reg, s.leaderLostTotal, "agendad_leader_lost_total")
}

// register attempts to register a collector, logging any errors without propagating them.
func (s *PrometheusSink) register(reg prometheus.Registerer, c prometheus.Collector, name string) {
	if err := reg.Register(c); err != nil {
		log.Printf("metrics: failed to register %s: %v", name, err)
	}
}

// Sweep metrics implementation

func (s *PrometheusSink) TickStarted() {
	s.ticksTotal.Inc()
}

func (s *PrometheusSink) TickCompleted(duration time.Duration, processed int, err error) {
	s.tickDuration.Observe(duration.Seconds())
	s.eventsProcessedTotal.Add(float64(processed))
	if err != nil {
		s.tickErrorsTotal.Inc()
	}
}

func (s *PrometheusSink) DueBacklog(candidates int) {
	s.dueBacklog.Set(float64(candidates))
}

func (s *PrometheusSink) EventOutcome(outcome string) {
	s.eventOutcomesTotal.WithLabelValues(outcome).Inc()
}

// Change feed metrics implementation

func (s *PrometheusSink) SubscriberDropped() {
	s.subscriberDropsTotal.Inc()
}

func (s *PrometheusSink) SubscriberCountUpdate(count int) {
	s.subscribers.Set(float64(count))
}

// Leader election metrics implementation

func (s *PrometheusSink) LeaderStatusChanged(isLeader bool) {
	if isLeader {
		s.leaderStatus.Set(1)
	} else {
		s.leaderStatus.Set(0)
	}
}

func (s *PrometheusSink) LeaderAcquired() {
	s.leaderAcquiredTotal.Inc()
}

func (s *PrometheusSink) LeaderLost(reason string) {
	s.leaderLostTotal.WithLabelValues(reason).Inc()
}
