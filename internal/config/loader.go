package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from a TOML file, environment overrides, and
// in-code defaults, following IshaanNene-ScrapeGoat-And-ArchEnemy's
// Load(configPath string): CLI-provided path > env (RETRACK_ prefix,
// `__` nesting separator) > file > Default().
func Load(configPath string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("toml")
	setDefaults(v, cfg)

	v.SetEnvPrefix("RETRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "__"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("retrack")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("port", cfg.Port)
	v.SetDefault("public_url", cfg.PublicURL)

	v.SetDefault("db.name", cfg.DB.Name)
	v.SetDefault("db.host", cfg.DB.Host)
	v.SetDefault("db.port", cfg.DB.Port)
	v.SetDefault("db.username", cfg.DB.Username)
	v.SetDefault("db.password", cfg.DB.Password)
	v.SetDefault("db.max_connections", cfg.DB.MaxConnections)

	v.SetDefault("components.web_scraper_url", cfg.Components.WebScraperURL)

	v.SetDefault("scheduler.trackers_schedule", cfg.Scheduler.TrackersSchedule)
	v.SetDefault("scheduler.trackers_run", cfg.Scheduler.TrackersRun)
	v.SetDefault("scheduler.tasks_run", cfg.Scheduler.TasksRun)

	v.SetDefault("trackers.max_revisions", cfg.Trackers.MaxRevisions)
	v.SetDefault("trackers.max_timeout", cfg.Trackers.MaxTimeout)
	v.SetDefault("trackers.schedules", cfg.Trackers.Schedules)
	v.SetDefault("trackers.min_schedule_interval", cfg.Trackers.MinScheduleInterval)
	v.SetDefault("trackers.restrict_to_public_urls", cfg.Trackers.RestrictToPublicURLs)
	v.SetDefault("trackers.max_script_size", cfg.Trackers.MaxScriptSize)

	v.SetDefault("js_runtime.max_heap_size", cfg.JSRuntime.MaxHeapSize)
	v.SetDefault("js_runtime.max_script_execution_time", cfg.JSRuntime.MaxScriptExecutionTime)
	v.SetDefault("js_runtime.queue_size", cfg.JSRuntime.QueueSize)

	v.SetDefault("smtp.host", cfg.SMTP.Host)
	v.SetDefault("smtp.port", cfg.SMTP.Port)
	v.SetDefault("smtp.username", cfg.SMTP.Username)
	v.SetDefault("smtp.password", cfg.SMTP.Password)
	v.SetDefault("smtp.from", cfg.SMTP.From)
	v.SetDefault("smtp.catch_all", cfg.SMTP.CatchAll)

	v.SetDefault("tasks.http.retry_strategy", structToMap(cfg.Tasks.HTTP.RetryStrategy))
	v.SetDefault("tasks.email.retry_strategy", structToMap(cfg.Tasks.Email.RetryStrategy))
}

func structToMap(r RetryStrategyBlock) map[string]any {
	return map[string]any{
		"kind":         r.Kind,
		"interval":     r.Interval,
		"initial":      r.Initial,
		"multiplier":   r.Multiplier,
		"max":          r.Max,
		"max_attempts": r.MaxAttempts,
	}
}
