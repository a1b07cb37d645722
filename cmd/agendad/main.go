package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"agendad/internal/analytics"
	"agendad/internal/api"
	"agendad/internal/auth"
	"agendad/internal/config"
	"agendad/internal/facade"
	"agendad/internal/leaderelection"
	"agendad/internal/metrics"
	"agendad/internal/quickadd"
	"agendad/internal/recurrence"
	"agendad/internal/store/postgres"
	"agendad/internal/sweep"
	"agendad/internal/transport/changefeed"

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

// Build-time variables set via -ldflags
var (
	version = "dev"
	commit  = "unknown"
)

const (
	exitSuccess       = 0
	exitRuntimeError  = 1
	exitInvalidConfig = 2
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitRuntimeError)
	}

	cmd := os.Args[1]

	switch cmd {
	case "serve":
		os.Exit(runServe())
	case "validate":
		os.Exit(runValidate())
	case "config":
		os.Exit(runConfig())
	case "token":
		os.Exit(runToken())
	case "version":
		os.Exit(runVersion())
	case "--help", "-h", "help":
		printUsage()
		os.Exit(exitSuccess)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(exitRuntimeError)
	}
}

func printUsage() {
	fmt.Println(`agendad - recurring event scheduling service

Usage:
  agendad <command>

Commands:
  serve      Start the API server and due-event sweep
  validate   Validate configuration (no connections made)
  config     Print effective configuration as JSON (secrets masked)
  token      Issue a bearer token for a subject (agendad token <subject>)
  version    Print version information

Environment Variables:
  DATABASE_URL              PostgreSQL connection string (required)
  AUTH_SECRET               HS256 signing secret for bearer tokens (required)
  REDIS_ADDR                Redis address for sweep analytics (optional)
  HTTP_ADDR                 HTTP server address (default: ":8080")
  SWEEP_SCHEDULE            Sweep cadence, cron expression or @every (default: "@every 1m")
  SWEEP_BATCH_SIZE          Max due events per sweep tick (default: "200", max: "200")

  DB_OP_TIMEOUT             Database operation timeout (default: "5s")
  DB_MAX_OPEN_CONNS         Max open database connections (default: "25")
  DB_MAX_IDLE_CONNS         Max idle database connections (default: "5")
  DB_CONN_MAX_LIFETIME      Max connection lifetime (default: "30m")
  DB_CONN_MAX_IDLE_TIME     Max connection idle time (default: "5m")

  HTTP_SHUTDOWN_TIMEOUT     Graceful HTTP shutdown timeout (default: "10s")
  CHANGEFEED_BUFFER_SIZE    Per-subscriber change buffer (default: "100")

  METRICS_ENABLED           Enable Prometheus metrics (default: "false")
  METRICS_PATH              Metrics endpoint path (default: "/metrics")
  METRICS_PORT              Metrics server port (default: "9090")

  ANALYTICS_RETENTION       Redis tick counter retention (default: "24h")
  ANALYTICS_WINDOW          Redis tick counter bucket size (default: "1m")

  LEADER_ELECTION_ENABLED   Run the sweep only on the elected leader (default: "false")
  LEADER_LOCK_KEY           Advisory lock key shared by all instances (default: "918273")
  LEADER_RETRY_INTERVAL     Follower lock retry interval (default: "5s")
  LEADER_HEARTBEAT_INTERVAL Leader connection heartbeat (default: "2s")`)
}

func runServe() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return exitInvalidConfig
	}

	schedule, err := cron.ParseStandard(cfg.SweepSchedule)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid SWEEP_SCHEDULE: %v\n", err)
		return exitInvalidConfig
	}

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		return exitRuntimeError
	}
	defer db.Close()

	// Configure connection pool
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	db.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.DBConnMaxIdleTime)

	log.Printf("agendad: db pool configured (max_open=%d, max_idle=%d, max_lifetime=%s, max_idle_time=%s)",
		cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.DBConnMaxLifetime, cfg.DBConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		return exitRuntimeError
	}

	// Initialize metrics sink (optional)
	var metricsSink *metrics.PrometheusSink
	var metricsServer *http.Server

	if cfg.MetricsEnabled {
		metricsSink = metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		log.Printf("agendad: metrics enabled (port=%s, path=%s)", cfg.MetricsPort, cfg.MetricsPath)

		// Start metrics HTTP server on separate port
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.MetricsPath, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    ":" + cfg.MetricsPort,
			Handler: metricsMux,
		}
		go func() {
			log.Printf("agendad: metrics server listening on :%s", cfg.MetricsPort)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("agendad: metrics server error: %v", err)
			}
		}()
	} else {
		log.Println("agendad: METRICS_ENABLED not set; metrics disabled")
	}

	// Create change feed with optional metrics
	var feedOpts []changefeed.Option
	if metricsSink != nil {
		feedOpts = append(feedOpts, changefeed.WithMetrics(metricsSink))
	}
	feed := changefeed.New(cfg.ChangefeedBufferSize, feedOpts...)

	store := postgres.New(db, cfg.DBOpTimeout).WithFeed(feed)

	if err := store.EnsureSchema(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to ensure schema: %v\n", err)
		return exitRuntimeError
	}

	schedFacade := facade.New(store, feed)
	resolver := auth.NewResolver([]byte(cfg.AuthSecret))
	quickAdd := quickadd.NewParser()

	processor := sweep.New(
		sweep.Config{Schedule: schedule, BatchSize: cfg.SweepBatchSize},
		store,
		ruleSourceAdapter{},
	)
	if metricsSink != nil {
		processor = processor.WithMetrics(metricsSink)
	}

	// Wire analytics if Redis is configured
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
		})
		sink := analytics.NewRedisSink(redisClient, cfg.AnalyticsWindow, cfg.AnalyticsRetention)
		processor = processor.WithRecorder(sink)
		log.Printf("agendad: analytics enabled (redis=%s)", cfg.RedisAddr)
	} else {
		log.Println("agendad: REDIS_ADDR not set; analytics disabled")
	}

	apiHandler := api.NewHandler(schedFacade, quickAdd, resolver).WithHealthChecker(db)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: apiHandler,
	}

	go func() {
		log.Printf("agendad: http server listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("agendad: http server error: %v", err)
		}
	}()

	// The sweep runs either unconditionally or gated behind leader election.
	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	var sweepWg sync.WaitGroup

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
		if metricsSink != nil {
			elector = elector.WithMetrics(metricsSink)
		}

		sweepWg.Add(1)
		go func() {
			defer sweepWg.Done()
			elector.Run(sweepCtx)
		}()
		log.Printf("agendad: leader election enabled (lock_key=%d)", cfg.LeaderLockKey)
	} else {
		sweepWg.Add(1)
		go func() {
			defer sweepWg.Done()
			processor.Run(sweepCtx)
		}()
		log.Println("agendad: LEADER_ELECTION_ENABLED not set; sweeping unconditionally")
	}

	log.Printf("agendad: started (sweep=%q, http=%s)", cfg.SweepSchedule, cfg.HTTPAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	received := <-sig

	log.Printf("agendad: received signal %v, shutting down", received)

	// Phase 1: Stop the sweep (no new event mutations from ticks)
	log.Println("agendad: stopping sweep...")
	cancelSweep()
	sweepWg.Wait()
	log.Println("agendad: sweep stopped")

	// Phase 2: Stop HTTP server with graceful shutdown (open watch streams
	// are closed by their request contexts)
	log.Println("agendad: stopping http server...")
	httpShutdownCtx, httpShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
	defer httpShutdownCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		log.Printf("agendad: http server shutdown error: %v", err)
	}
	log.Println("agendad: http server stopped")

	// Phase 3: Stop metrics server if running (with same timeout)
	if metricsServer != nil {
		log.Println("agendad: stopping metrics server...")
		metricsShutdownCtx, metricsShutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPShutdownTimeout)
		defer metricsShutdownCancel()
		if err := metricsServer.Shutdown(metricsShutdownCtx); err != nil {
			log.Printf("agendad: metrics server shutdown error: %v", err)
		}
		log.Println("agendad: metrics server stopped")
	}

	log.Println("agendad: stopped")
	return exitSuccess
}

func runValidate() int {
	cfg := config.Load()

	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return exitInvalidConfig
	}

	fmt.Println("configuration valid")
	return exitSuccess
}

func runConfig() int {
	cfg := config.Load()

	data, err := cfg.MaskedJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal config: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(string(data))
	return exitSuccess
}

func runToken() int {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: agendad token <subject>")
		return exitRuntimeError
	}

	secret := os.Getenv("AUTH_SECRET")
	if secret == "" {
		fmt.Fprintln(os.Stderr, "AUTH_SECRET is required")
		return exitInvalidConfig
	}

	token, err := auth.NewResolver([]byte(secret)).Sign(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to sign token: %v\n", err)
		return exitRuntimeError
	}

	fmt.Println(token)
	return exitSuccess
}

func runVersion() int {
	fmt.Printf("agendad version %s (commit: %s)\n", version, commit)
	return exitSuccess
}
