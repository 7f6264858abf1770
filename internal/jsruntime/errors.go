package jsruntime

import "errors"

// ErrRuntimeBusy is returned by Execute when the submission queue is full.
// Callers should treat this the same as a script error for retry purposes.
var ErrRuntimeBusy = errors.New("script runtime queue full")

// ScriptError classifies why a script execution failed: memory limit, wall
// clock limit, or a script-level failure (exception, bad return shape).
type ScriptError struct {
	Reason string // "memory", "time", or "script"
	Err    error
}

func (e *ScriptError) Error() string {
	return "script error (" + e.Reason + "): " + e.Err.Error()
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

func memoryError(err error) error { return &ScriptError{Reason: "memory", Err: err} }
func timeError(err error) error   { return &ScriptError{Reason: "time", Err: err} }
func scriptError(err error) error { return &ScriptError{Reason: "script", Err: err} }
