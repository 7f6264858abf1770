// Package config loads the engine's root configuration from a TOML file,
// environment overrides, and in-code defaults, grounded on
// IshaanNene-ScrapeGoat-And-ArchEnemy/internal/config/{config,loader,validate}.go.
package config

import "time"

// Config is the root configuration for the retrack engine.
type Config struct {
	Port       int              `mapstructure:"port"`
	PublicURL  string           `mapstructure:"public_url"`
	DB         DBConfig         `mapstructure:"db"`
	Components ComponentsConfig `mapstructure:"components"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Trackers   TrackersConfig   `mapstructure:"trackers"`
	JSRuntime  JSRuntimeConfig  `mapstructure:"js_runtime"`
	SMTP       SMTPConfig       `mapstructure:"smtp"`
	Tasks      TasksConfig      `mapstructure:"tasks"`
}

// DBConfig is the database connection block.
type DBConfig struct {
	Name           string `mapstructure:"name"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// ComponentsConfig addresses the auxiliary services the engine calls out
// to over HTTP.
type ComponentsConfig struct {
	WebScraperURL string `mapstructure:"web_scraper_url"`
}

// SchedulerConfig carries the cron source for the three fixed recurring
// jobs.
type SchedulerConfig struct {
	TrackersSchedule string `mapstructure:"trackers_schedule"`
	TrackersRun      string `mapstructure:"trackers_run"`
	TasksRun         string `mapstructure:"tasks_run"`
}

// TrackersConfig is tracker-wide policy applied at creation/validation
// time.
type TrackersConfig struct {
	MaxRevisions          int           `mapstructure:"max_revisions"`
	MaxTimeout            time.Duration `mapstructure:"max_timeout"`
	Schedules             []string      `mapstructure:"schedules"`
	MinScheduleInterval   time.Duration `mapstructure:"min_schedule_interval"`
	RestrictToPublicURLs  bool          `mapstructure:"restrict_to_public_urls"`
	MaxScriptSize         int           `mapstructure:"max_script_size"`
}

// JSRuntimeConfig bounds script execution.
type JSRuntimeConfig struct {
	MaxHeapSize            int64         `mapstructure:"max_heap_size"`
	MaxScriptExecutionTime time.Duration `mapstructure:"max_script_execution_time"`
	QueueSize              int           `mapstructure:"queue_size"`
}

// SMTPConfig is the outbound mail transport.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	CatchAll string `mapstructure:"catch_all"`
}

// TasksConfig holds the default retry strategy applied to each task
// kind's executor.
type TasksConfig struct {
	HTTP  RetryStrategyConfig `mapstructure:"http"`
	Email RetryStrategyConfig `mapstructure:"email"`
}

// RetryStrategyConfig mirrors domain.RetryStrategy's tagged shape in
// config form: Kind selects which block below applies.
type RetryStrategyConfig struct {
	RetryStrategy RetryStrategyBlock `mapstructure:"retry_strategy"`
}

// RetryStrategyBlock is one retry policy, either constant or
// exponential, selected by Kind ("constant" | "exponential").
type RetryStrategyBlock struct {
	Kind        string        `mapstructure:"kind"`
	Interval    time.Duration `mapstructure:"interval"`
	Initial     time.Duration `mapstructure:"initial"`
	Multiplier  float64       `mapstructure:"multiplier"`
	Max         time.Duration `mapstructure:"max"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// Default returns a Config populated with spec.md §6's documented
// defaults.
func Default() *Config {
	return &Config{
		Port:      7676,
		PublicURL: "http://localhost:7676/",
		DB: DBConfig{
			Name:           "retrack",
			Host:           "localhost",
			Port:           5432,
			Username:       "retrack",
			MaxConnections: 100,
		},
		Components: ComponentsConfig{
			WebScraperURL: "http://localhost:7272/",
		},
		Scheduler: SchedulerConfig{
			TrackersSchedule: "0/10 * * * * *",
			TrackersRun:      "0/10 * * * * *",
			TasksRun:         "0/30 * * * * *",
		},
		Trackers: TrackersConfig{
			MaxRevisions:         30,
			MaxTimeout:           300 * time.Second,
			MinScheduleInterval:  10 * time.Second,
			RestrictToPublicURLs: true,
			MaxScriptSize:        4 * 1024,
		},
		JSRuntime: JSRuntimeConfig{
			MaxHeapSize:            10 * 1024 * 1024,
			MaxScriptExecutionTime: 10 * time.Second,
			QueueSize:              16,
		},
		Tasks: TasksConfig{
			HTTP: RetryStrategyConfig{RetryStrategy: defaultTaskRetry()},
			Email: RetryStrategyConfig{RetryStrategy: defaultTaskRetry()},
		},
	}
}

func defaultTaskRetry() RetryStrategyBlock {
	return RetryStrategyBlock{
		Kind:        "exponential",
		Initial:     60 * time.Second,
		Multiplier:  2,
		Max:         600 * time.Second,
		MaxAttempts: 3,
	}
}
