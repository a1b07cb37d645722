// Package leaderelection gates the sweep behind a Postgres advisory lock so
// that only one instance processes due events at a time.
//
// The lock is session-scoped: it lives as long as the dedicated database
// connection that took it, with no renewal or TTL. When that connection dies
// Postgres releases the lock server-side. The heartbeat ping only detects
// local connection death so the leader can stop sweeping promptly; it does
// not renew anything.
package leaderelection

import (
	"context"
	"database/sql"
	"log"
	"time"

	"agendad/internal/metrics"
)

const (
	// Demotion reasons reported to the metrics sink.
	ReasonShutdown = "shutdown"
	ReasonConnLost = "conn_lost"
)

// Elector competes for a Postgres advisory lock and runs leader duties while
// holding it.
type Elector struct {
	db                *sql.DB
	lockKey           int64
	retryInterval     time.Duration // follower: how often to attempt the lock
	heartbeatInterval time.Duration // leader: how often to ping the dedicated conn
	onElected         func(ctx context.Context)
	onDemoted         func()
	metrics           metrics.Sink
}

// New creates an Elector.
//
// onElected runs in its own goroutine once the lock is acquired; its context
// is cancelled on demotion. It should start the sweep loop and return
// quickly. onDemoted runs synchronously on demotion, must be idempotent, and
// should block until leader duties have fully stopped.
func New(db *sql.DB, lockKey int64, retryInterval, heartbeatInterval time.Duration, onElected func(ctx context.Context), onDemoted func()) *Elector {
	return &Elector{
		db:                db,
		lockKey:           lockKey,
		retryInterval:     retryInterval,
		heartbeatInterval: heartbeatInterval,
		onElected:         onElected,
		onDemoted:         onDemoted,
		metrics:           metrics.NewNoopSink(),
	}
}

// WithMetrics attaches a metrics sink to the elector.
func (e *Elector) WithMetrics(sink metrics.Sink) *Elector {
	e.metrics = sink
	return e
}

// Run blocks until ctx is cancelled, alternating between competing for the
// lock and holding it.
func (e *Elector) Run(ctx context.Context) {
	log.Printf("leader: election loop started (lock_key=%d, retry=%s, heartbeat=%s)",
		e.lockKey, e.retryInterval, e.heartbeatInterval)

	for ctx.Err() == nil {
		if reason := e.compete(ctx); reason != "" && ctx.Err() == nil {
			log.Printf("leader: demoted (reason=%s), retrying in %s", reason, e.retryInterval)
		}

		select {
		case <-ctx.Done():
		case <-time.After(e.retryInterval):
		}
	}

	log.Println("leader: election loop stopped")
}

// compete makes one attempt to take the lock and, if successful, holds it
// until demotion. Returns the demotion reason, or "" when the lock was not
// acquired.
func (e *Elector) compete(ctx context.Context) string {
	// The advisory lock is bound to a session, so a pooled *sql.DB query
	// will not do: take a dedicated connection for the lock's lifetime.
	conn, err := e.db.Conn(ctx)
	if err != nil {
		log.Printf("leader: dedicated connection unavailable: %v", err)
		return ""
	}
	defer conn.Close()

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", e.lockKey).Scan(&acquired); err != nil {
		log.Printf("leader: advisory lock query failed: %v", err)
		return ""
	}
	if !acquired {
		return ""
	}

	log.Printf("leader: acquired advisory lock %d", e.lockKey)
	e.metrics.LeaderStatusChanged(true)
	e.metrics.LeaderAcquired()

	leaderCtx, cancelLeader := context.WithCancel(ctx)
	go e.onElected(leaderCtx)

	reason := e.holdLock(ctx, conn)

	cancelLeader()
	e.onDemoted()

	e.metrics.LeaderStatusChanged(false)
	e.metrics.LeaderLost(reason)

	log.Printf("leader: released advisory lock %d", e.lockKey)
	return reason
}

// holdLock pings the dedicated connection until ctx ends or the connection
// dies, and reports which one happened.
func (e *Elector) holdLock(ctx context.Context, conn *sql.Conn) string {
	ticker := time.NewTicker(e.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ReasonShutdown
		case <-ticker.C:
			if err := conn.PingContext(ctx); err != nil {
				if ctx.Err() != nil {
					return ReasonShutdown
				}
				log.Printf("leader: heartbeat ping failed: %v", err)
				return ReasonConnLost
			}
		}
	}
}
