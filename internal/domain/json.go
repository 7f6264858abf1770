package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// This file implements explicit MarshalJSON/UnmarshalJSON for each tagged
// union so the "kind" discriminator travels on the wire and in persisted
// JSON blobs, rather than relying on Go's default struct encoding (which
// would happily serialize two non-nil variant pointers at once and give
// no error on an unknown kind at decode time).

type trackerTargetWire struct {
	Kind TargetKind `json:"kind"`
	Page *PageTarget `json:"page,omitempty"`
	Api  *ApiTarget  `json:"api,omitempty"`
}

func (t TrackerTarget) MarshalJSON() ([]byte, error) {
	return json.Marshal(trackerTargetWire{Kind: t.Kind, Page: t.Page, Api: t.Api})
}

func (t *TrackerTarget) UnmarshalJSON(b []byte) error {
	var w trackerTargetWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Kind {
	case TargetKindPage:
		if w.Page == nil {
			return fmt.Errorf("tracker target kind %q missing page field", w.Kind)
		}
	case TargetKindAPI:
		if w.Api == nil {
			return fmt.Errorf("tracker target kind %q missing api field", w.Kind)
		}
	default:
		return fmt.Errorf("unknown tracker target kind %q", w.Kind)
	}
	t.Kind, t.Page, t.Api = w.Kind, w.Page, w.Api
	return nil
}

// durationJSON marshals a time.Duration as an ISO 8601 time-duration
// string (e.g. "PT1H30M"), matching the wire format Duration uses
// elsewhere in the domain model's config/persistence surface, rather
// than Go's default raw-nanosecond integer encoding.
func durationJSON(d time.Duration) json.RawMessage {
	b, _ := json.Marshal(FormatDurationISO8601(d))
	return b
}

func parseDurationJSON(raw json.RawMessage, into *time.Duration) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return err
	}
	d, err := NewDuration(s)
	if err != nil {
		return err
	}
	*into = d.Value()
	return nil
}

type constantRetryWire struct {
	Interval    json.RawMessage `json:"interval"`
	MaxAttempts int             `json:"max_attempts"`
}

func (c ConstantRetry) MarshalJSON() ([]byte, error) {
	return json.Marshal(constantRetryWire{Interval: durationJSON(c.Interval), MaxAttempts: c.MaxAttempts})
}

func (c *ConstantRetry) UnmarshalJSON(b []byte) error {
	var w constantRetryWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if err := parseDurationJSON(w.Interval, &c.Interval); err != nil {
		return fmt.Errorf("constant retry interval: %w", err)
	}
	c.MaxAttempts = w.MaxAttempts
	return nil
}

type exponentialRetryWire struct {
	Initial     json.RawMessage `json:"initial"`
	Multiplier  float64         `json:"multiplier"`
	Max         json.RawMessage `json:"max"`
	MaxAttempts int             `json:"max_attempts"`
}

func (e ExponentialRetry) MarshalJSON() ([]byte, error) {
	return json.Marshal(exponentialRetryWire{
		Initial: durationJSON(e.Initial), Multiplier: e.Multiplier,
		Max: durationJSON(e.Max), MaxAttempts: e.MaxAttempts,
	})
}

func (e *ExponentialRetry) UnmarshalJSON(b []byte) error {
	var w exponentialRetryWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if err := parseDurationJSON(w.Initial, &e.Initial); err != nil {
		return fmt.Errorf("exponential retry initial: %w", err)
	}
	if err := parseDurationJSON(w.Max, &e.Max); err != nil {
		return fmt.Errorf("exponential retry max: %w", err)
	}
	e.Multiplier, e.MaxAttempts = w.Multiplier, w.MaxAttempts
	return nil
}

type retryStrategyWire struct {
	Kind        RetryStrategyKind `json:"kind"`
	Constant    *ConstantRetry    `json:"constant,omitempty"`
	Exponential *ExponentialRetry `json:"exponential,omitempty"`
}

func (r RetryStrategy) MarshalJSON() ([]byte, error) {
	return json.Marshal(retryStrategyWire{Kind: r.Kind, Constant: r.Constant, Exponential: r.Exponential})
}

func (r *RetryStrategy) UnmarshalJSON(b []byte) error {
	var w retryStrategyWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Kind {
	case RetryKindConstant:
		if w.Constant == nil {
			return fmt.Errorf("retry strategy kind %q missing constant field", w.Kind)
		}
	case RetryKindExponential:
		if w.Exponential == nil {
			return fmt.Errorf("retry strategy kind %q missing exponential field", w.Kind)
		}
	default:
		return fmt.Errorf("unknown retry strategy kind %q", w.Kind)
	}
	r.Kind, r.Constant, r.Exponential = w.Kind, w.Constant, w.Exponential
	return nil
}

type actionWire struct {
	Kind      ActionKind       `json:"kind"`
	ServerLog *ServerLogAction `json:"server_log,omitempty"`
	Email     *EmailAction     `json:"email,omitempty"`
	Webhook   *WebhookAction   `json:"webhook,omitempty"`
	Formatter string           `json:"formatter,omitempty"`
}

func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(actionWire{
		Kind: a.Kind, ServerLog: a.ServerLog, Email: a.Email, Webhook: a.Webhook,
		Formatter: a.Formatter,
	})
}

func (a *Action) UnmarshalJSON(b []byte) error {
	var w actionWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Kind {
	case ActionKindServerLog:
		if w.ServerLog == nil {
			w.ServerLog = &ServerLogAction{}
		}
	case ActionKindEmail:
		if w.Email == nil {
			return fmt.Errorf("action kind %q missing email field", w.Kind)
		}
	case ActionKindWebhook:
		if w.Webhook == nil {
			return fmt.Errorf("action kind %q missing webhook field", w.Kind)
		}
	default:
		return fmt.Errorf("unknown action kind %q", w.Kind)
	}
	a.Kind, a.ServerLog, a.Email, a.Webhook, a.Formatter = w.Kind, w.ServerLog, w.Email, w.Webhook, w.Formatter
	return nil
}

type taskTypeWire struct {
	Kind  TaskTypeKind `json:"kind"`
	Email *EmailTask   `json:"email,omitempty"`
	HTTP  *HTTPTask    `json:"http,omitempty"`
}

func (t TaskType) MarshalJSON() ([]byte, error) {
	return json.Marshal(taskTypeWire{Kind: t.Kind, Email: t.Email, HTTP: t.HTTP})
}

func (t *TaskType) UnmarshalJSON(b []byte) error {
	var w taskTypeWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Kind {
	case TaskKindEmail:
		if w.Email == nil {
			return fmt.Errorf("task type kind %q missing email field", w.Kind)
		}
	case TaskKindHTTP:
		if w.HTTP == nil {
			return fmt.Errorf("task type kind %q missing http field", w.Kind)
		}
	default:
		return fmt.Errorf("unknown task type kind %q", w.Kind)
	}
	t.Kind, t.Email, t.HTTP = w.Kind, w.Email, w.HTTP
	return nil
}

type trackerConfigWire struct {
	Revisions            int             `json:"revisions"`
	Timeout              json.RawMessage `json:"timeout"`
	Job                  *JobConfig      `json:"job,omitempty"`
	RestrictToPublicURLs bool            `json:"restrict_to_public_urls"`
}

func (c TrackerConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(trackerConfigWire{
		Revisions: c.Revisions, Timeout: durationJSON(c.Timeout),
		Job: c.Job, RestrictToPublicURLs: c.RestrictToPublicURLs,
	})
}

func (c *TrackerConfig) UnmarshalJSON(b []byte) error {
	var w trackerConfigWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	if err := parseDurationJSON(w.Timeout, &c.Timeout); err != nil {
		return fmt.Errorf("tracker config timeout: %w", err)
	}
	c.Revisions, c.Job, c.RestrictToPublicURLs = w.Revisions, w.Job, w.RestrictToPublicURLs
	return nil
}

type emailContentWire struct {
	Kind     EmailContentKind `json:"kind"`
	Literal  *LiteralEmail    `json:"literal,omitempty"`
	Template *TemplateEmail   `json:"template,omitempty"`
}

func (c EmailContent) MarshalJSON() ([]byte, error) {
	return json.Marshal(emailContentWire{Kind: c.Kind, Literal: c.Literal, Template: c.Template})
}

func (c *EmailContent) UnmarshalJSON(b []byte) error {
	var w emailContentWire
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	switch w.Kind {
	case EmailContentKindLiteral:
		if w.Literal == nil {
			return fmt.Errorf("email content kind %q missing literal field", w.Kind)
		}
	case EmailContentKindTemplate:
		if w.Template == nil {
			return fmt.Errorf("email content kind %q missing template field", w.Kind)
		}
	default:
		return fmt.Errorf("unknown email content kind %q", w.Kind)
	}
	c.Kind, c.Literal, c.Template = w.Kind, w.Literal, w.Template
	return nil
}
