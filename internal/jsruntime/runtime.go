// Package jsruntime executes user-supplied JavaScript under hard
// wall-clock and heap budgets, funneling every execution through a single
// dedicated worker so isolate/interpreter state is never shared across
// goroutines and termination semantics stay deterministic.
package jsruntime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dop251/goja"
)

// watchdogInterval is how often the heap watchdog samples runtime memory
// state; the wall-clock limit is enforced by a one-shot timer instead.
const watchdogInterval = 2 * time.Second

// Budget bounds a single script execution.
type Budget struct {
	MaxHeapBytes int64
	MaxWall      time.Duration
}

// Runtime owns one dedicated goroutine that drains a bounded queue of
// script executions, one at a time. This is the "single worker" required
// by the contract: it prevents interpreter-pool exhaustion and keeps
// watchdog termination unambiguous (there is never more than one running
// script to terminate).
type Runtime struct {
	queue chan *scriptTask
}

type scriptTask struct {
	ctx    context.Context
	source string
	args   any
	budget Budget
	result chan taskResult
}

type taskResult struct {
	value json.RawMessage
	err   error
}

// New starts a Runtime with the given bounded queue capacity. Execute
// returns ErrRuntimeBusy immediately once the queue is full rather than
// blocking the caller.
func New(queueSize int) *Runtime {
	if queueSize <= 0 {
		queueSize = 1
	}
	r := &Runtime{queue: make(chan *scriptTask, queueSize)}
	go r.loop()
	return r
}

func (r *Runtime) loop() {
	for task := range r.queue {
		r.run(task)
	}
}

// Execute submits source for execution with args exposed as the global
// `context` value (after a JSON round trip, so the script-visible shape
// matches the JSON contract exactly), and blocks for the result or for ctx
// cancellation, whichever comes first.
func (r *Runtime) Execute(ctx context.Context, source string, args any, budget Budget) (json.RawMessage, error) {
	task := &scriptTask{
		ctx:    ctx,
		source: source,
		args:   args,
		budget: budget,
		result: make(chan taskResult, 1),
	}

	select {
	case r.queue <- task:
	default:
		return nil, ErrRuntimeBusy
	}

	select {
	case res := <-task.result:
		return res.value, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Runtime) run(task *scriptTask) {
	vm := goja.New()

	argsJSON, err := json.Marshal(task.args)
	if err != nil {
		task.result <- taskResult{err: scriptError(fmt.Errorf("marshal args: %w", err))}
		return
	}
	var ctxVal any
	if err := json.Unmarshal(argsJSON, &ctxVal); err != nil {
		task.result <- taskResult{err: scriptError(fmt.Errorf("unmarshal args: %w", err))}
		return
	}
	if err := vm.Set("context", ctxVal); err != nil {
		task.result <- taskResult{err: scriptError(fmt.Errorf("install context: %w", err))}
		return
	}

	stop := make(chan struct{})
	defer close(stop)

	heapExceeded := make(chan struct{})
	go watchHeap(vm, task.budget.MaxHeapBytes, stop, heapExceeded)

	timedOut := make(chan struct{})
	wallTimer := time.AfterFunc(task.budget.MaxWall, func() {
		vm.Interrupt("time limit exceeded")
		close(timedOut)
	})
	defer wallTimer.Stop()

	value, runErr := vm.RunString(task.source)
	if runErr != nil {
		task.result <- taskResult{err: classifyRunError(runErr, heapExceeded, timedOut)}
		return
	}

	exported, err := exportValue(vm, value)
	if err != nil {
		task.result <- taskResult{err: classifyRunError(err, heapExceeded, timedOut)}
		return
	}

	out, err := json.Marshal(exported)
	if err != nil {
		task.result <- taskResult{err: scriptError(fmt.Errorf("marshal result: %w", err))}
		return
	}
	task.result <- taskResult{value: out}
}

// exportValue drains a returned promise to settlement (goja resolves
// microtasks as part of RunString/RunProgram; a script returning a
// promise from its top-level expression needs its jobs pumped until the
// promise settles) and returns the plain exported value.
func exportValue(vm *goja.Runtime, value goja.Value) (any, error) {
	promise, ok := value.Export().(*goja.Promise)
	if !ok {
		return value.Export(), nil
	}
	for promise.State() == goja.PromiseStatePending {
		// goja queues promise reactions on its job queue; draining an
		// empty statement advances pending jobs scheduled via Then/native
		// code without re-entering user script.
		if _, err := vm.RunString(""); err != nil {
			return nil, err
		}
	}
	if promise.State() == goja.PromiseStateRejected {
		return nil, fmt.Errorf("promise rejected: %v", promise.Result())
	}
	return promise.Result().Export(), nil
}

// classifyRunError attributes a goja interrupt/exception to the watchdog
// that fired, if any, falling back to a plain script error.
func classifyRunError(err error, heapExceeded, timedOut <-chan struct{}) error {
	select {
	case <-heapExceeded:
		return memoryError(err)
	default:
	}
	select {
	case <-timedOut:
		return timeError(err)
	default:
	}
	return scriptError(err)
}
