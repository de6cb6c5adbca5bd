// Package main is the entry point for the progress engine: the scheduling
// and progress core behind the interview-prep portal. It wires the
// ingestion gateway to its collaborators (PostgreSQL state store, Redis
// dedupe index and view cache, event bus, audit trail) and runs the
// midnight day-rollover job until shut down.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/elzatona/progress-engine/config"
	"github.com/elzatona/progress-engine/internal/application/eventhandler"
	"github.com/elzatona/progress-engine/internal/application/gateway"
	"github.com/elzatona/progress-engine/internal/domain/progress"
	"github.com/elzatona/progress-engine/internal/domain/shared"
	"github.com/elzatona/progress-engine/internal/infrastructure/audit"
	"github.com/elzatona/progress-engine/internal/infrastructure/messaging"
	"github.com/elzatona/progress-engine/internal/infrastructure/persistence/postgres"
	redisinfra "github.com/elzatona/progress-engine/internal/infrastructure/persistence/redis"
	"github.com/elzatona/progress-engine/internal/infrastructure/scheduler"
	"github.com/elzatona/progress-engine/internal/infrastructure/scheduler/jobs"
	"github.com/elzatona/progress-engine/pkg/circuitbreaker"
	"github.com/elzatona/progress-engine/pkg/logger"
	"github.com/elzatona/progress-engine/pkg/retry"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting progress engine",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"debug", cfg.App.Debug,
	)

	appLog := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		AddCaller: cfg.App.Debug,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 3. DATABASE
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("connecting to database...")
	dbConn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		log.Info("closing database connection...")
		dbConn.Close()
	}()

	log.Info("checking database migrations...")
	migrator := postgres.NewMigrator(dbConn)
	if err := migrator.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	log.Info("database schema is up to date")

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS (optional fast path)
	// ─────────────────────────────────────────────────────────────────────────
	var (
		dedupeIndex gateway.DedupeIndex
		viewCache   *redisinfra.ViewCache
	)
	if !cfg.Redis.Disabled {
		log.Info("connecting to Redis...")
		redisClient, err := redisinfra.NewClient(redisinfra.Config{
			Host:         cfg.Redis.Host,
			Port:         cfg.Redis.Port,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			// The ledger's applied-event set covers correctness on its own.
			log.Warn("failed to connect to Redis, fast paths disabled", "error", err)
		} else {
			defer redisClient.Close()
			dedupeIndex = redisinfra.NewDedupeIndex(redisClient, cfg.Redis.DedupeTTL)
			viewCache = redisinfra.NewViewCache(redisClient, 0)
			log.Info("Redis connection established")
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. REPOSITORIES
	// ─────────────────────────────────────────────────────────────────────────
	stateRepo := postgres.NewLearnerStateRepository(dbConn)
	templateRepo := postgres.NewTemplateRepository(dbConn)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. EVENT BUS AND HANDLERS
	// ─────────────────────────────────────────────────────────────────────────
	busConfig := messaging.DefaultConfig()
	busConfig.Logger = log
	eventBus := messaging.NewInMemoryEventBus(busConfig)
	defer func() {
		log.Info("closing event bus...")
		_ = eventBus.Close()
	}()

	achievementHandler := eventhandler.NewOnAchievementHandler(nil, log, eventhandler.DefaultAchievementConfig())
	if err := achievementHandler.Register(eventBus.Subscribe); err != nil {
		return fmt.Errorf("failed to register achievement handler: %w", err)
	}

	var invalidator eventhandler.ViewInvalidator
	if viewCache != nil {
		invalidator = viewCache
	}
	planHandler := eventhandler.NewOnPlanLifecycleHandler(invalidator, log)
	if err := planHandler.Register(eventBus.Subscribe); err != nil {
		return fmt.Errorf("failed to register plan lifecycle handler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. AUDIT TRAIL
	// ─────────────────────────────────────────────────────────────────────────
	auditEmitter := audit.NewBreakerEmitter(
		postgres.NewAuditRepository(dbConn),
		circuitbreaker.Config{
			FailureThreshold: cfg.Observability.AuditBreakerThreshold,
			OpenTimeout:      cfg.Observability.AuditBreakerTimeout,
		},
		log,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 8. INGESTION GATEWAY
	// ─────────────────────────────────────────────────────────────────────────
	gw := gateway.New(
		gateway.Config{
			Lanes:         cfg.Gateway.Lanes,
			LaneQueueSize: cfg.Gateway.LaneQueueSize,
			Retry: retry.Config{
				MaxAttempts:  cfg.Gateway.PersistMaxAttempts,
				InitialDelay: cfg.Gateway.PersistInitialDelay,
				MaxDelay:     cfg.Gateway.PersistMaxDelay,
			},
		},
		scoringRules(cfg.Scoring),
		templateRepo,
		stateRepo,
		dedupeIndex,
		eventBus,
		auditEmitter,
		appLog,
	)
	defer func() {
		log.Info("draining ingestion gateway...")
		gw.Close()
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 9. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Scheduler.Enabled {
		sched := scheduler.NewScheduler(scheduler.SchedulerConfig{Logger: log})
		rollover := jobs.NewDayRollover(gw)
		if err := sched.Register(rollover, scheduler.NewDailySchedule(cfg.Scheduler.RolloverGrace)); err != nil {
			return fmt.Errorf("failed to register rollover job: %w", err)
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			log.Info("stopping scheduler...")
			_ = sched.Stop()
		}()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. RUN UNTIL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("progress engine is running",
		"lanes", cfg.Gateway.Lanes,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		log.Info("context cancelled")
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// scoringRules converts the configured scoring table to domain rules.
func scoringRules(cfg config.ScoringConfig) progress.Rules {
	return progress.Rules{
		BasePoints: map[shared.Difficulty]int{
			shared.DifficultyEasy:   cfg.EasyPoints,
			shared.DifficultyMedium: cfg.MediumPoints,
			shared.DifficultyHard:   cfg.HardPoints,
		},
		AttemptPenalty:     cfg.AttemptPenalty,
		ChallengeMaxPoints: cfg.ChallengeMaxPoints,
		MinMasterySample:   cfg.MinMasterySample,
		LevelStep:          cfg.LevelStep,
	}
}

// setupLogger configures structured logging.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "json" || cfg.IsProduction() {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
