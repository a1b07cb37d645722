// Package analytics records sweep tick outcomes in Redis as time-bucketed
// counters, giving a cheap per-window view of how many events each tick
// advanced, posted, skipped, or failed.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"agendad/internal/sweep"
)

type RedisSink struct {
	client    *redis.Client
	window    time.Duration
	retention time.Duration
}

func NewRedisSink(client *redis.Client, window, retention time.Duration) *RedisSink {
	return &RedisSink{client: client, window: window, retention: retention}
}

// RecordTick increments one counter per outcome observed in the report,
// bucketed by the tick's start time. A tick with no processed events still
// records a ticks counter so gaps are distinguishable from idle periods.
func (s *RedisSink) RecordTick(ctx context.Context, report sweep.TickReport) error {
	bucket := truncateToBucket(report.StartedAt, s.window)

	pipe := s.client.Pipeline()
	pipe.Incr(ctx, buildKey("ticks", bucket))
	pipe.Expire(ctx, buildKey("ticks", bucket), s.retention)

	for _, outcome := range []sweep.Outcome{
		sweep.OutcomeAdvanced,
		sweep.OutcomePosted,
		sweep.OutcomeSkipped,
		sweep.OutcomeFailed,
	} {
		n := report.Count(outcome)
		if n == 0 {
			continue
		}
		key := buildKey(string(outcome), bucket)
		pipe.IncrBy(ctx, key, int64(n))
		pipe.Expire(ctx, key, s.retention)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

func buildKey(counter, bucket string) string {
	return fmt.Sprintf("sweep:%s:%s", counter, bucket)
}

func truncateToBucket(t time.Time, window time.Duration) string {
	t = t.UTC()
	switch window {
	case time.Minute:
		return t.Format("200601021504")
	case 5 * time.Minute:
		minute := (t.Minute() / 5) * 5
		return t.Format("2006010215") + fmt.Sprintf("%02d", minute)
	case time.Hour:
		return t.Format("2006010215")
	default:
		return t.Format("200601021504")
	}
}

var _ sweep.Recorder = (*RedisSink)(nil)
