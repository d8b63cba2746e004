// Package repl implements the sandboxed JavaScript REPL runtime (spec.md
// §4.2): a process-isolated evaluator exposing a capability-restricted API,
// hoisting user declarations across calls, and capping/sentinel-wrapping
// every result that crosses back out to the Loop Controller.
package repl

import (
	"context"
	"fmt"
	"time"

	"github.com/dop251/goja"

	"rlm/internal/driver"
)

const (
	// DefaultMemoryLimitBytes is the default isolate memory cap (spec.md §6).
	DefaultMemoryLimitBytes = 128 * 1024 * 1024
	// DefaultExecTimeout is the default per-block evaluation timeout.
	DefaultExecTimeout = 30 * time.Second
	// DefaultExecInTabTimeout bounds a single execInTab call.
	DefaultExecInTabTimeout = 10 * time.Second
	// SleepCapMs is the hard cap applied to sleep(ms).
	SleepCapMs = 10_000
	// LogMaxChars caps a single log(msg) call.
	LogMaxChars = 5_000
)

// Options configures a REPL instance.
type Options struct {
	Driver               driver.Driver
	Callbacks            EngineCallbacks
	ConfirmGate          driver.ConfirmationGate
	ConfirmationsEnabled bool
	MemoryLimitBytes     int64
	ExecTimeout          time.Duration
	ExecInTabTimeout     time.Duration
	// SubAgent disables llm_query/llm_batch when true (spec.md §4.1:
	// sub-agents get an identical API except recursion is disabled).
	SubAgent bool
	Data     any // injected as __data when SubAgent is true and Data != nil
}

// REPL is one isolated evaluator. Created at Task start, destroyed at Task
// end; persistent top-level bindings survive across Execute calls within
// the same REPL (spec.md §3).
type REPL struct {
	vm          *goja.Runtime
	opts        Options
	docs        *docStore
	hoisted     map[string]bool
	finalCalled bool
	finalValue  any
	subCallSeq  int
	ctx         context.Context
}

// New builds a REPL and wires its capability API. activeTab() reads the
// driver's ActiveTabID.
func New(opts Options) *REPL {
	if opts.MemoryLimitBytes == 0 {
		opts.MemoryLimitBytes = DefaultMemoryLimitBytes
	}
	if opts.ExecTimeout == 0 {
		opts.ExecTimeout = DefaultExecTimeout
	}
	if opts.ExecInTabTimeout == 0 {
		opts.ExecInTabTimeout = DefaultExecInTabTimeout
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	// Best-effort isolate memory cap; goja reports ErrMemoryLimitExceeded
	// out of RunProgram once the threshold is crossed.
	vm.SetMemoryLimit(opts.MemoryLimitBytes)

	r := &REPL{
		vm:      vm,
		opts:    opts,
		docs:    newDocStore(),
		hoisted: make(map[string]bool),
	}
	r.installAPI()
	if opts.SubAgent && opts.Data != nil {
		_ = vm.Set("__data", opts.Data)
	}
	return r
}

// FinalCalled reports whether setFinal was invoked during the most recent
// Execute call.
func (r *REPL) FinalCalled() bool { return r.finalCalled }

// FinalValue returns the value passed to the most recent setFinal call.
func (r *REPL) FinalValue() any { return r.finalValue }

// Execute runs one code block (spec.md §4.2 steps 1-5) and returns the
// block's capped result value (the caller reduces it to metadata with
// FormatResultMetadata), plus errMsg "ERROR" if the block raised an
// uncaught exception; the result is then an ErrorSentinel and nothing is
// propagated to the Go caller as an error.
func (r *REPL) Execute(ctx context.Context, code string) (result any, errMsg string) {
	r.finalCalled = false
	r.ctx = ctx

	for _, name := range hoistNames(code) {
		if !r.hoisted[name] {
			r.hoisted[name] = true
			_, _ = r.vm.RunString("var " + name + ";")
		}
	}
	rewritten := rewriteDeclarations(code)
	wrapped := "(async () => {\n" + rewritten + "\n})()"

	execCtx, cancel := context.WithTimeout(ctx, r.opts.ExecTimeout)
	defer cancel()
	done := make(chan struct{})
	go func() {
		select {
		case <-execCtx.Done():
			r.vm.Interrupt("execution timed out")
		case <-done:
		}
	}()

	val, err := r.vm.RunString(wrapped)
	close(done)

	if err != nil {
		sentinel := newErrorSentinel(err.Error(), err.Error())
		return sentinel, "ERROR"
	}

	resolved, rejErr := resolvePromise(val)
	if rejErr != nil {
		sentinel := newErrorSentinel(rejErr.Error(), rejErr.Error())
		return sentinel, "ERROR"
	}

	capped, capErr := capResult(exportValue(resolved))
	if capErr != nil {
		sentinel := newErrorSentinel(capErr.Error(), "")
		return sentinel, "ERROR"
	}
	return capped, ""
}

// resolvePromise drains a goja Promise returned by the top-level async IIFE.
// Host callbacks are synchronous from Go's perspective, so by the time
// RunString returns the promise has already settled.
func resolvePromise(v goja.Value) (goja.Value, error) {
	if v == nil {
		return nil, nil
	}
	promise, ok := v.Export().(*goja.Promise)
	if !ok {
		return v, nil
	}
	switch promise.State() {
	case goja.PromiseStateRejected:
		reason := promise.Result()
		return nil, fmt.Errorf("%s", reason.String())
	default:
		return promise.Result(), nil
	}
}

func exportValue(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) {
		return nil
	}
	return v.Export()
}

// Dispose releases the REPL's resources. Called at Task end (success,
// error, or cancel) per spec.md §3 Lifecycles.
func (r *REPL) Dispose() {
	r.vm.ClearInterrupt()
}
