package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/retrack-engine/retrack/internal/config"
	"github.com/retrack-engine/retrack/internal/domain"
	"github.com/retrack-engine/retrack/internal/fetch"
	"github.com/retrack-engine/retrack/internal/jsruntime"
	"github.com/retrack-engine/retrack/internal/netguard"
	"github.com/retrack-engine/retrack/internal/revisions"
	"github.com/retrack-engine/retrack/internal/scheduler"
	sqlstorage "github.com/retrack-engine/retrack/internal/storage/sql"
	"github.com/retrack-engine/retrack/internal/tasks"
	"github.com/retrack-engine/retrack/internal/webscraper"
	"github.com/retrack-engine/retrack/pkg/observability"
)

var (
	cfgPath string
	port    int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "retrack",
		Short: "retrack fetches, diffs, and notifies on remote resource changes",
		RunE:  runEngine,
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&cfgPath, "config", "c", envOr("RETRACK_CONFIG", "retrack.toml"), "config file path")
	flags.IntVarP(&port, "port", "p", envOrInt("RETRACK_PORT", 0), "admin HTTP port (0 = use config)")
	pflag.CommandLine = flags

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func runEngine(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if port > 0 {
		cfg.Port = port
	}

	ctx, cancel := signalContext()
	defer cancel()

	lp, logger, err := observability.InitLogger(ctx, "retrack", true)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer shutdownWithTimeout(lp.Shutdown)
	slog.SetDefault(logger)

	tp, err := observability.InitTracerProvider(ctx, "retrack", true)
	if err != nil {
		return fmt.Errorf("init tracer provider: %w", err)
	}
	defer shutdownWithTimeout(tp.Shutdown)

	mp, err := observability.InitMeterProvider(ctx, "retrack", true)
	if err != nil {
		return fmt.Errorf("init meter provider: %w", err)
	}
	defer shutdownWithTimeout(mp.Shutdown)

	slog.InfoContext(ctx, "starting retrack engine", "port", cfg.Port)

	store, err := sqlstorage.NewStore(ctx, sqlstorage.DBConfig{
		Driver:       "pgx",
		DSN:          postgresDSN(cfg.DB),
		MaxOpenConns: cfg.DB.MaxConnections,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer store.DB().Close()

	runtime := jsruntime.New(cfg.JSRuntime.QueueSize)
	guard := netguard.New(nil)
	revisionStore := revisions.New(store)
	scraper := webscraper.New(cfg.Components.WebScraperURL, cfg.Trackers.MaxTimeout)

	throttle := tasks.NewSMTPThrottle(time.Second)
	emailExec := tasks.NewEmailExecutor(smtpConfig(cfg.SMTP), throttle, nil)
	httpExec := tasks.NewHTTPExecutor(&http.Client{Timeout: 30 * time.Second})

	taskQueue := tasks.New(store, map[domain.TaskTypeKind]tasks.Executor{
		domain.TaskKindEmail: emailExec,
		domain.TaskKindHTTP:  httpExec,
	}).WithRecorder(store).WithRetryStrategies(map[domain.TaskTypeKind]*domain.RetryStrategy{
		domain.TaskKindEmail: cfg.Tasks.Email.RetryStrategy.RetryStrategy(),
		domain.TaskKindHTTP:  cfg.Tasks.HTTP.RetryStrategy.RetryStrategy(),
	})

	pipeline := &fetch.Pipeline{
		Runtime:    runtime,
		Guard:      guard,
		Revisions:  revisionStore,
		Tasks:      taskQueue,
		Jobs:       store,
		HTTP:       &http.Client{Timeout: cfg.Trackers.MaxTimeout},
		WebScraper: scraper,
		Budget: jsruntime.Budget{
			MaxHeapBytes: cfg.JSRuntime.MaxHeapSize,
			MaxWall:      cfg.JSRuntime.MaxScriptExecutionTime,
		},
	}

	sched := scheduler.New(scheduler.Config{
		TrackersScheduleCron: cfg.Scheduler.TrackersSchedule,
		TrackersRunCron:      cfg.Scheduler.TrackersRun,
		TasksRunCron:         cfg.Scheduler.TasksRun,
		TasksDrainBatchSize:  100,
		MinScheduleInterval:  cfg.Trackers.MinScheduleInterval,
	}, store, store, pipeline, taskQueue)

	if err := sched.Resume(ctx); err != nil {
		return fmt.Errorf("resume scheduler state: %w", err)
	}
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	slog.InfoContext(ctx, "retrack engine ready")
	<-ctx.Done()

	slog.InfoContext(context.Background(), "shutting down")
	sched.Stop(context.Background())

	return nil
}

func postgresDSN(db config.DBConfig) string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		db.Username, db.Password, db.Host, db.Port, db.Name)
}

func smtpConfig(c config.SMTPConfig) tasks.SMTPConfig {
	cfg := tasks.SMTPConfig{
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		From:     c.From,
	}
	if c.CatchAll != "" {
		if re, err := regexp.Compile(c.CatchAll); err == nil {
			cfg.CatchAllMatcher = re
			cfg.CatchAllRecipient = c.From
		}
	}
	return cfg
}

// shutdownWithTimeout runs a provider's Shutdown with a bounded timeout so
// a hung exporter never blocks process exit.
func shutdownWithTimeout(shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "provider shutdown failed", "error", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
