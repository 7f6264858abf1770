package domain

import "time"

// Tracker is a named, scheduled fetch specification: a page render or a
// sequence of API calls, transformed by user scripts, producing a bounded
// revision history and a fan-out of notification actions.
type Tracker struct {
	ID      string
	Name    string
	Enabled bool
	Tags    []string

	Target TrackerTarget
	Config TrackerConfig
	Actions []Action

	// JobID is the stored scheduler job id column. trackers-schedule does
	// not set it: it finds a tracker's per-tracker job in scheduler_jobs
	// by tracker_id, so JobID stays whatever was last persisted.
	JobID *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TrackerTarget is a tagged union: exactly one of Page or Api is non-nil,
// selected by Kind. Modeled as Kind + variant pointers rather than an
// interface hierarchy so new variants can't silently skip a switch.
type TrackerTarget struct {
	Kind TargetKind
	Page *PageTarget
	Api  *ApiTarget
}

// PageTarget fetches a single page via the headless-browser component.
type PageTarget struct {
	URL               string
	ExtractorScript   string
	UserAgent         string
	Engine            string
	TLSStrict         bool
}

// ApiTarget issues one or more HTTP requests, optionally reshaped by a
// configurator script beforehand and reduced by an extractor script after.
type ApiTarget struct {
	Requests           []APIRequest
	ConfiguratorScript string
	ExtractorScript    string
}

// APIRequest is one declared outbound HTTP call of an ApiTarget.
type APIRequest struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
}

// TrackerConfig bounds revision history and per-fetch behavior.
type TrackerConfig struct {
	Revisions             int
	Timeout               time.Duration
	Job                   *JobConfig
	RestrictToPublicURLs  bool
}

// JobConfig describes the recurring schedule and retry policy bound to a
// tracker once it has job config attached.
type JobConfig struct {
	CronPattern   string
	RetryStrategy *RetryStrategy
}

// RetryStrategy is a tagged union: exactly one of Constant or Exponential
// is non-nil, selected by Kind.
type RetryStrategy struct {
	Kind        RetryStrategyKind
	Constant    *ConstantRetry
	Exponential *ExponentialRetry
}

// ConstantRetry retries at a fixed interval up to MaxAttempts times.
type ConstantRetry struct {
	Interval    time.Duration
	MaxAttempts int
}

// ExponentialRetry retries with a multiplicatively growing delay, capped
// at Max, up to MaxAttempts times.
type ExponentialRetry struct {
	Initial     time.Duration
	Multiplier  float64
	Max         time.Duration
	MaxAttempts int
}

// NextDelay computes the delay before attempt n (1-indexed) under this
// strategy. Callers must ensure n <= the strategy's MaxAttempts; NextDelay
// does not itself enforce the attempt budget.
func (r RetryStrategy) NextDelay(attempt int) time.Duration {
	switch r.Kind {
	case RetryKindConstant:
		return r.Constant.Interval
	case RetryKindExponential:
		e := r.Exponential
		delay := float64(e.Initial)
		for i := 1; i < attempt; i++ {
			delay *= e.Multiplier
		}
		d := time.Duration(delay)
		if d > e.Max {
			d = e.Max
		}
		return d
	default:
		return 0
	}
}

// MaxAttempts returns the attempt budget for whichever variant is set.
func (r RetryStrategy) MaxAttempts() int {
	switch r.Kind {
	case RetryKindConstant:
		return r.Constant.MaxAttempts
	case RetryKindExponential:
		return r.Exponential.MaxAttempts
	default:
		return 0
	}
}

// Action is a tagged union of side-effectful notification targets. Exactly
// one of ServerLog, Email, Webhook is non-nil, selected by Kind. Formatter,
// when non-empty, is run (C1) against the revision value before fan-out.
type Action struct {
	Kind      ActionKind
	ServerLog *ServerLogAction
	Email     *EmailAction
	Webhook   *WebhookAction
	Formatter string
}

// ServerLogAction writes the (optionally formatted) revision value to the
// engine's internal log sink. It carries no fields of its own; its
// presence in the tagged union is what selects the behavior.
type ServerLogAction struct{}

// EmailAction fans out to one or more recipients via the Task Queue.
type EmailAction struct {
	To []string
}

// WebhookAction fans out an HTTP call via the Task Queue.
type WebhookAction struct {
	URL     string
	Method  string
	Headers map[string]string
}
