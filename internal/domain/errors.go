package domain

import (
	"errors"
	"fmt"
)

// Domain errors returned by repository implementations and checked by
// the engine's components.
var (
	// ErrNotFound indicates the requested tracker, revision, task, or
	// scheduler job does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidID indicates the provided ID format is invalid.
	ErrInvalidID = errors.New("invalid ID format")

	// ErrEmptyUpdateMask is returned when an update request carries no
	// fields to change.
	ErrEmptyUpdateMask = errors.New("update mask must not be empty")

	// ErrUnknownField is returned when an update mask names a field the
	// target type does not have.
	ErrUnknownField = errors.New("unknown update mask field")

	// ErrNameRequired is returned when a tracker's name is masked for
	// update but the replacement value is nil.
	ErrNameRequired = errors.New("name is required when included in update mask")

	// ErrTargetRequired is returned when a tracker's target is masked
	// for update but the replacement value is nil.
	ErrTargetRequired = errors.New("target is required when included in update mask")

	// ErrCronTooFrequent is returned when a job config's cron pattern
	// schedules occurrences closer together than the configured minimum
	// schedule interval.
	ErrCronTooFrequent = errors.New("cron pattern's minimum interval is below the configured minimum schedule interval")

	// ErrAmbiguousConfiguratorResult is returned by the script runtime
	// when a configurator script's returned object carries both a
	// rewritten-requests shape and a synthesized-response shape.
	ErrAmbiguousConfiguratorResult = errors.New("ambiguous configurator result: both requests and response present")

	// ErrDurationEmpty is returned when an ISO 8601 duration string is
	// empty.
	ErrDurationEmpty = errors.New("duration string must not be empty")

	// ErrInvalidDurationFormat is returned when a duration string isn't
	// a valid ISO 8601 time duration.
	ErrInvalidDurationFormat = errors.New("invalid ISO 8601 duration format")
)

// ErrorKind classifies an engine error for retry and reporting purposes.
// It mirrors the closed kind taxonomy used throughout the fetch pipeline,
// task executors, and script runtime.
type ErrorKind int

const (
	KindClient ErrorKind = iota
	KindFetch
	KindScript
	KindPersistence
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindClient:
		return "client"
	case KindFetch:
		return "fetch"
	case KindScript:
		return "script"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// EngineError wraps an underlying error with a Kind, so callers can branch
// on classification with errors.As without losing the original cause.
type EngineError struct {
	Kind ErrorKind
	Err  error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError wraps err with the given kind. A nil err yields a nil
// *EngineError so callers can write `return domain.NewEngineError(...)`
// unconditionally inside error-returning helpers.
func NewEngineError(kind ErrorKind, err error) error {
	if err == nil {
		return nil
	}
	return &EngineError{Kind: kind, Err: err}
}

// IsRetryable reports whether an error's kind should be retried under a
// tracker's own retry strategy. Fetch and script failures are transient by
// nature (remote flakiness, script timeouts); client and persistence
// failures are handled elsewhere (by the next scheduler tick, not the
// tracker's retry budget) and unknown errors are treated conservatively
// as non-retryable.
func IsRetryable(err error) bool {
	var ee *EngineError
	if !errors.As(err, &ee) {
		return false
	}
	switch ee.Kind {
	case KindFetch, KindScript:
		return true
	default:
		return false
	}
}
