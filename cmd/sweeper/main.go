// Command sweeper runs the due-event sweep without the HTTP API. Useful for
// deployments that split the serving and processing roles: point any number
// of sweepers at the same database with LEADER_ELECTION_ENABLED=true and
// exactly one of them processes due events at a time.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"agendad/internal/analytics"
	"agendad/internal/config"
	"agendad/internal/leaderelection"
	"agendad/internal/recurrence"
	"agendad/internal/store/postgres"
	"agendad/internal/sweep"

	_ "github.com/lib/pq"
)

// ruleSourceAdapter adapts internal/recurrence to the sweep.RuleSource interface.
type ruleSourceAdapter struct{}

func (ruleSourceAdapter) Parse(ruleText string, dtstart time.Time) (sweep.Rule, bool) {
	rule := recurrence.Parse(ruleText, dtstart)
	if rule == nil {
		return nil, false
	}
	return rule, true
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()

	// The sweeper never serves requests, so AUTH_SECRET is not needed here.
	if cfg.DatabaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		return 2
	}

	schedule, err := cron.ParseStandard(cfg.SweepSchedule)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid SWEEP_SCHEDULE: %v\n", err)
		return 2
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		return 1
	}

	store := postgres.New(db, cfg.DBOpTimeout)

	processor := sweep.New(
		sweep.Config{Schedule: schedule, BatchSize: cfg.SweepBatchSize},
		store,
		ruleSourceAdapter{},
	)

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		sink := analytics.NewRedisSink(redisClient, cfg.AnalyticsWindow, cfg.AnalyticsRetention)
		processor = processor.WithRecorder(sink)
		log.Printf("sweeper: analytics enabled (redis=%s)", cfg.RedisAddr)
	} else {
		log.Println("sweeper: REDIS_ADDR not set; analytics disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	if cfg.LeaderElectionEnabled {
		var leaderWg sync.WaitGroup
		elector := leaderelection.New(
			db,
			cfg.LeaderLockKey,
			cfg.LeaderRetryInterval,
			cfg.LeaderHeartbeatInterval,
			func(leaderCtx context.Context) {
				leaderWg.Add(1)
				defer leaderWg.Done()
				processor.Run(leaderCtx)
			},
			func() {
				leaderWg.Wait()
			},
		)

		wg.Add(1)
		go func() {
			defer wg.Done()
			elector.Run(ctx)
		}()
		log.Printf("sweeper: leader election enabled (lock_key=%d)", cfg.LeaderLockKey)
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()
			processor.Run(ctx)
		}()
	}

	log.Printf("sweeper: started (sweep=%q)", cfg.SweepSchedule)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("sweeper: received signal %v, shutting down", received)

	cancel()
	wg.Wait()

	log.Println("sweeper: stopped")
	return 0
}
