package domain

import "time"

// Task is a queued, retriable unit of side-effectful work dispatched by
// the Task Queue. A failed task is left in place (unchanged ScheduledAt)
// unless a retry strategy is configured for its kind, in which case it is
// rescheduled until its attempts run out and then removed; there is no
// separate dead-letter queue.
type Task struct {
	ID           string
	Type         TaskType
	Tags         []string
	ScheduledAt  time.Time
	RetryAttempt *int
}

// TaskType is a tagged union: exactly one of Email or HTTP is non-nil,
// selected by Kind.
type TaskType struct {
	Kind  TaskTypeKind
	Email *EmailTask
	HTTP  *HTTPTask
}

// EmailTask carries the recipient list and the content to render.
type EmailTask struct {
	To      []string
	Content EmailContent
}

// EmailContent is a tagged union: exactly one of Literal or Template is
// non-nil, selected by Kind.
type EmailContent struct {
	Kind     EmailContentKind
	Literal  *LiteralEmail
	Template *TemplateEmail
}

// LiteralEmail is a fully rendered message body, ready to send.
type LiteralEmail struct {
	Subject string
	Body    string
	HTML    bool
}

// TemplateEmail references a named template plus data to render it with.
// Rendering is performed by the injected template renderer (out of scope
// for the engine; see spec §1).
type TemplateEmail struct {
	TemplateName string
	Data         map[string]any
}

// HTTPTask issues an outbound HTTP call via the Task Queue's HTTPExecutor.
type HTTPTask struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
}
