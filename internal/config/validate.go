package config

import "fmt"

// Validate checks the configuration for invalid values, following
// IshaanNene-ScrapeGoat-And-ArchEnemy/internal/config/validate.go's
// per-field range checks.
func Validate(cfg *Config) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", cfg.Port)
	}
	if cfg.DB.MaxConnections < 1 {
		return fmt.Errorf("db.max_connections must be >= 1, got %d", cfg.DB.MaxConnections)
	}
	if cfg.Trackers.MaxRevisions < 1 {
		return fmt.Errorf("trackers.max_revisions must be >= 1, got %d", cfg.Trackers.MaxRevisions)
	}
	if cfg.Trackers.MaxTimeout <= 0 {
		return fmt.Errorf("trackers.max_timeout must be > 0")
	}
	if cfg.Trackers.MinScheduleInterval <= 0 {
		return fmt.Errorf("trackers.min_schedule_interval must be > 0")
	}
	if cfg.Trackers.MaxScriptSize <= 0 {
		return fmt.Errorf("trackers.max_script_size must be > 0")
	}
	if cfg.JSRuntime.MaxHeapSize <= 0 {
		return fmt.Errorf("js_runtime.max_heap_size must be > 0")
	}
	if cfg.JSRuntime.MaxScriptExecutionTime <= 0 {
		return fmt.Errorf("js_runtime.max_script_execution_time must be > 0")
	}
	if err := validateRetryStrategy("tasks.http.retry_strategy", cfg.Tasks.HTTP.RetryStrategy); err != nil {
		return err
	}
	if err := validateRetryStrategy("tasks.email.retry_strategy", cfg.Tasks.Email.RetryStrategy); err != nil {
		return err
	}
	return nil
}

func validateRetryStrategy(field string, r RetryStrategyBlock) error {
	if r.MaxAttempts < 1 {
		return fmt.Errorf("%s.max_attempts must be >= 1, got %d", field, r.MaxAttempts)
	}
	switch r.Kind {
	case "constant":
		if r.Interval <= 0 {
			return fmt.Errorf("%s.interval must be > 0 for kind=constant", field)
		}
	case "exponential":
		if r.Initial <= 0 {
			return fmt.Errorf("%s.initial must be > 0 for kind=exponential", field)
		}
		if r.Multiplier <= 1 {
			return fmt.Errorf("%s.multiplier must be > 1 for kind=exponential", field)
		}
		if r.Max < r.Initial {
			return fmt.Errorf("%s.max must be >= initial for kind=exponential", field)
		}
	default:
		return fmt.Errorf("%s.kind must be 'constant' or 'exponential', got %q", field, r.Kind)
	}
	return nil
}
