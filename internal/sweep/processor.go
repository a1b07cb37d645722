// Package sweep implements the due-event processor.
//
// On each tick it queries the store for scheduled events whose nextRunAt has
// passed, then advances or finalizes each one inside its own single-row
// transaction. Candidates are processed sequentially to bound write
// contention; one bad event never aborts the tick. Idempotency comes from
// the in-transaction re-read: an event that a concurrent edit or an earlier
// tick already handled is skipped, not failed.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"agendad/internal/domain"
	"agendad/internal/metrics"
)

// MaxBatchSize caps the number of due candidates per tick; anything beyond
// it waits for the next tick.
const MaxBatchSize = 200

// Store is the slice of the event store the sweep needs.
type Store interface {
	// DueEvents returns up to limit events with status=scheduled and
	// nextRunAt <= now, across all owners.
	DueEvents(ctx context.Context, now time.Time, limit int) ([]domain.Event, error)

	// AdvanceEvent re-reads the event by id inside a single-row transaction
	// and calls decide with the current state. If decide returns apply=true
	// the patch is committed; otherwise the transaction is rolled back.
	// Returns domain.ErrEventNotFound if the record no longer exists, and
	// applied=false when decide declined.
	AdvanceEvent(ctx context.Context, id uuid.UUID, decide func(domain.Event) (domain.EventPatch, bool)) (applied bool, err error)
}

// RuleSource parses recurrence rules; Rule steps through occurrences.
// Both are satisfied by internal/recurrence via a small adapter.
type RuleSource interface {
	Parse(ruleText string, dtstart time.Time) (Rule, bool)
}

type Rule interface {
	NextAfter(ref time.Time, inclusive bool) (time.Time, bool)
}

// Schedule yields tick fire times; robfig/cron schedules satisfy it.
type Schedule interface {
	Next(after time.Time) time.Time
}

// Recorder receives completed tick reports (e.g. Redis analytics).
type Recorder interface {
	RecordTick(ctx context.Context, report TickReport) error
}

type Config struct {
	// Schedule drives tick cadence, reference "@every 1m".
	Schedule Schedule

	// BatchSize is clamped to MaxBatchSize.
	BatchSize int
}

// Processor finds due events and advances or finalizes them.
type Processor struct {
	config   Config
	store    Store
	rules    RuleSource
	clock    func() time.Time
	metrics  metrics.Sink
	recorder Recorder
}

func New(config Config, store Store, rules RuleSource) *Processor {
	if config.BatchSize <= 0 || config.BatchSize > MaxBatchSize {
		config.BatchSize = MaxBatchSize
	}
	return &Processor{
		config:  config,
		store:   store,
		rules:   rules,
		clock:   time.Now,
		metrics: metrics.NewNoopSink(),
	}
}

// WithMetrics attaches a metrics sink.
func (p *Processor) WithMetrics(sink metrics.Sink) *Processor {
	p.metrics = sink
	return p
}

// WithRecorder attaches a tick analytics recorder.
func (p *Processor) WithRecorder(rec Recorder) *Processor {
	p.recorder = rec
	return p
}

// Run executes ticks on the configured schedule until ctx is cancelled.
// Ticks never overlap: each fire waits for the previous tick to finish.
func (p *Processor) Run(ctx context.Context) error {
	log.Printf("sweep: started (batch=%d)", p.config.BatchSize)

	for {
		next := p.config.Schedule.Next(p.clock())
		timer := time.NewTimer(next.Sub(p.clock()))

		select {
		case <-ctx.Done():
			timer.Stop()
			log.Println("sweep: stopped")
			return ctx.Err()
		case <-timer.C:
		}

		if _, err := p.Tick(ctx); err != nil {
			log.Printf("sweep: tick error: %v", err)
		}
	}
}

// Tick runs one sweep pass. A query failure aborts the tick and is returned;
// per-event failures are contained in the report.
func (p *Processor) Tick(ctx context.Context) (TickReport, error) {
	now := p.clock().UTC()
	report := TickReport{StartedAt: now}

	p.metrics.TickStarted()
	started := time.Now()

	candidates, err := p.store.DueEvents(ctx, now, p.config.BatchSize)
	if err != nil {
		var cfgErr *domain.StoreConfigError
		if errors.As(err, &cfgErr) {
			// Missing table or index: the sweep cannot run at all.
			// Loud and distinct from per-event failures.
			log.Printf("sweep: STORE MISCONFIGURED, tick aborted (check schema/indexes): %v", err)
		} else {
			log.Printf("sweep: due query failed, tick aborted: %v", err)
		}
		p.metrics.TickCompleted(time.Since(started), 0, err)
		return report, fmt.Errorf("query due events: %w", err)
	}

	report.Candidates = len(candidates)
	p.metrics.DueBacklog(len(candidates))

	if len(candidates) == 0 {
		p.metrics.TickCompleted(time.Since(started), 0, nil)
		return report, nil
	}

	// Sequential on purpose: predictable store contention beats throughput here.
	for _, ev := range candidates {
		res := p.processEvent(ctx, ev, now)
		report.Results = append(report.Results, res)
		p.metrics.EventOutcome(string(res.Outcome))

		if res.Outcome == OutcomeFailed {
			log.Printf("sweep: event %s failed: %v", res.EventID, res.Err)
		}
	}

	p.metrics.TickCompleted(time.Since(started), report.Processed(), nil)
	log.Printf("sweep: tick complete (candidates=%d advanced=%d posted=%d skipped=%d failed=%d)",
		report.Candidates,
		report.Count(OutcomeAdvanced), report.Count(OutcomePosted),
		report.Count(OutcomeSkipped), report.Count(OutcomeFailed))

	if p.recorder != nil {
		if err := p.recorder.RecordTick(ctx, report); err != nil {
			log.Printf("sweep: analytics record failed: %v", err)
		}
	}

	return report, nil
}

// processEvent advances or finalizes one candidate inside its own
// transaction. The decide callback sees the re-read state, so a record that
// was edited or handled since the candidate query is skipped cleanly.
func (p *Processor) processEvent(ctx context.Context, ev domain.Event, now time.Time) ItemResult {
	var outcome Outcome

	applied, err := p.store.AdvanceEvent(ctx, ev.ID, func(cur domain.Event) (domain.EventPatch, bool) {
		if cur.Status != domain.EventStatusScheduled || cur.NextRunAt.After(now) {
			return domain.EventPatch{}, false
		}

		patch := domain.EventPatch{LastPostedAt: &now}

		if cur.RecurrenceRule != "" {
			dtstart := cur.StartAt.In(p.eventLocation(cur))
			if rule, ok := p.rules.Parse(cur.RecurrenceRule, dtstart); ok {
				if next, ok := rule.NextAfter(now, false); ok {
					nextUTC := next.UTC()
					patch.NextRunAt = &nextUTC
					outcome = OutcomeAdvanced
					return patch, true
				}
			} else {
				// Malformed rule: treated as no recurrence, event posts.
				log.Printf("sweep: event %s has malformed recurrence rule %q", cur.ID, cur.RecurrenceRule)
			}
		}

		posted := domain.EventStatusPosted
		patch.Status = &posted
		patch.PostedAt = &now
		outcome = OutcomePosted
		return patch, true
	})

	switch {
	case errors.Is(err, domain.ErrEventNotFound):
		return ItemResult{EventID: ev.ID, Outcome: OutcomeSkipped}
	case err != nil:
		return ItemResult{EventID: ev.ID, Outcome: OutcomeFailed, Err: err}
	case !applied:
		return ItemResult{EventID: ev.ID, Outcome: OutcomeSkipped}
	}

	return ItemResult{EventID: ev.ID, Outcome: outcome}
}

// eventLocation resolves the event's timezone, falling back to UTC.
func (p *Processor) eventLocation(ev domain.Event) *time.Location {
	if ev.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(ev.Timezone)
	if err != nil {
		log.Printf("sweep: event %s has unknown timezone %q, using UTC", ev.ID, ev.Timezone)
		return time.UTC
	}
	return loc
}
