package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	contextpkg "rlm/internal/context"
	"rlm/internal/costs"
	"rlm/internal/driver"
	"rlm/internal/events"
	"rlm/internal/extractor"
	"rlm/internal/llm"
	"rlm/internal/metrics"
	"rlm/internal/repl"
	"rlm/internal/tabdiff"
	"rlm/internal/task"
	"rlm/internal/tracker"
)

// Loop is the Loop Controller: one instance drives one Task end to end
// (spec.md §4.1). It owns the REPL's lifecycle and is called back by it
// through the callbacks type below, which breaks the cyclic ownership
// spec.md §9 describes.
type Loop struct {
	cfg         Config
	driver      driver.Driver
	client      llm.Client
	subClient   llm.Client
	bus         *events.Bus
	confirmGate driver.ConfirmationGate
	registry    *metrics.Registry
	costs       *costs.Tracker
}

// New builds a Loop Controller. client drives the main loop (cfg.PrimaryModel);
// subClient drives llm_query/llm_batch sub-agent calls (cfg.SubModel) and is
// expected to already carry the spec.md §4.6 retry policy (llm.WithRetry),
// since the Loop Controller itself is retry-agnostic. If subClient is nil,
// client is reused for sub-agent calls as well. registry may be nil to
// disable Prometheus export (every Registry method and costs.NewTracker
// tolerate a nil receiver/Recorder).
func New(cfg Config, drv driver.Driver, client, subClient llm.Client, bus *events.Bus, gate driver.ConfirmationGate, registry *metrics.Registry) *Loop {
	if subClient == nil {
		subClient = client
	}
	return &Loop{
		cfg: cfg.Normalize(), driver: drv, client: client, subClient: subClient, bus: bus, confirmGate: gate,
		registry: registry, costs: costs.NewTracker(registry),
	}
}

// run is the mutable state threaded through one Task's Run call.
type run struct {
	task       *task.Task
	tracker    *tracker.Tracker
	differ     *tabdiff.Differ
	builder    *contextpkg.Builder
	history    []llm.Message
	subCallSeq int
	subCallMu  sync.Mutex
}

// Run drives t from Idle to a terminal state, emitting events on l.bus. ctx
// cancellation is cooperative (spec.md §5): checked before sending to the
// model, after the stream ends, and between code blocks.
func (l *Loop) Run(ctx context.Context, t *task.Task) {
	t.SetStatus(task.StatusRunning)

	r := &run{
		task:    t,
		tracker: tracker.New(),
		differ:  tabdiff.NewDiffer(),
		builder: contextpkg.NewBuilder(),
	}

	rp := repl.New(repl.Options{
		Driver:               l.driver,
		Callbacks:            &callbacks{loop: l, run: r},
		ConfirmGate:          l.confirmGate,
		ConfirmationsEnabled: l.cfg.ConfirmationsEnabled,
	})
	defer rp.Dispose()

	consecutiveNoCode := 0

	for iter := 1; iter <= t.MaxIterations; iter++ {
		if ctx.Err() != nil {
			l.finishCancelled(t)
			return
		}

		l.bus.Emit(events.NewIterationStart(iter, t.OriginalMessage))
		started := time.Now()

		changes := l.captureAndDiff(ctx, r)
		if len(changes) > 0 {
			l.bus.Emit(events.NewPageChanges(toPageChangeTuples(changes)))
		}

		env := rp.EnvMetadata()
		if encoded, err := json.Marshal(env); err == nil {
			l.bus.Emit(events.NewEnvUpdate(string(encoded)))
		}
		tabCount, activeTab := l.tabSummary(ctx)

		userTurn := r.builder.Build(contextpkg.Input{
			Task:        t,
			Tracker:     r.tracker,
			Iteration:   iter,
			PageChanges: changes,
			Env:         env,
			TabCount:    tabCount,
			ActiveTabID: activeTab,
		})
		r.history = append(r.history, llm.Message{Role: "user", Content: userTurn})

		fullText, err := l.streamModel(ctx, r, iter)
		if err != nil {
			if ctx.Err() != nil {
				l.finishCancelled(t)
				return
			}
			l.bus.Emit(events.NewError(err.Error()))
			t.SetStatus(task.StatusError)
			l.bus.Emit(events.NewComplete(nil))
			return
		}

		if ctx.Err() != nil {
			l.finishCancelled(t)
			return
		}

		blocks := extractor.Extract(fullText)
		r.history = append(r.history, llm.Message{Role: "assistant", Content: fullText})

		if len(blocks) == 0 {
			consecutiveNoCode++
			record := task.IterationRecord{
				Index: iter, StartedAt: started, Duration: time.Since(started),
				OneLiner: "no executable code found", NoCode: true, PageChanges: changes,
			}
			r.tracker.Append(record)
			t.AppendIteration(record)
			l.registry.RecordIteration("no-code", time.Since(started).Seconds())

			if consecutiveNoCode >= MaxNoCodeContinuations {
				t.SetStatus(task.StatusError)
				l.bus.Emit(events.NewError("no executable code found in 3 consecutive responses"))
				l.bus.Emit(events.NewComplete(nil))
				return
			}
			r.history = append(r.history, llm.Message{Role: "user", Content: continuationPrompt})
			continue
		}
		consecutiveNoCode = 0

		blockResults, finalHit := l.executeBlocks(ctx, rp, blocks)

		record := buildIterationRecord(iter, started, blockResults, changes)
		r.tracker.Append(record)
		t.AppendIteration(record)

		if finalHit {
			l.registry.RecordIteration("final", time.Since(started).Seconds())
			final := rp.FinalValue()
			t.SetFinal(final)
			t.SetStatus(task.StatusComplete)
			l.bus.Emit(events.NewComplete(final))
			return
		}
		l.registry.RecordIteration("ok", time.Since(started).Seconds())

		if ctx.Err() != nil {
			l.finishCancelled(t)
			return
		}
	}

	t.SetStatus(task.StatusComplete)
	msg := fmt.Sprintf("Reached maximum iterations (%d). Partial results may be available.", t.MaxIterations)
	l.bus.Emit(events.NewComplete(msg))
}

func (l *Loop) finishCancelled(t *task.Task) {
	t.SetStatus(task.StatusCancelled)
	l.bus.Emit(events.NewComplete("Task cancelled by user."))
}

// captureAndDiff snapshots current tab state and diffs it against the last
// capture (Tab Diff, spec.md §4.7). Driver errors are treated as "no tabs"
// rather than aborting the Task — tab state is advisory context, not a
// correctness dependency.
func (l *Loop) captureAndDiff(ctx context.Context, r *run) []task.PageChange {
	infos, err := l.driver.CaptureSnapshot(ctx)
	if err != nil {
		return nil
	}
	snap := make(task.Snapshot, len(infos))
	for id, info := range infos {
		snap[id] = task.TabState{URL: info.URL, Title: info.Title, Status: info.Status}
	}
	return r.differ.Capture(snap)
}

func (l *Loop) tabSummary(ctx context.Context) (int, string) {
	tabs, err := l.driver.ListTabs(ctx)
	if err != nil {
		return 0, ""
	}
	active, _ := l.driver.ActiveTabID(ctx)
	return len(tabs), active
}

// streamModel streams the model's response for the current history,
// forwarding each token as a stream-token event, and returns the
// concatenated text. Streaming responses rarely carry provider-reported
// usage (the SSE formats internal/llm speaks fold it into the final event,
// if at all), so cost accounting here estimates both sides with
// costs.Tracker.Count rather than waiting on Usage that may never arrive.
func (l *Loop) streamModel(ctx context.Context, r *run, iteration int) (string, error) {
	messages := append([]llm.Message{{Role: "system", Content: mainSystemPrompt}}, r.history...)
	ch, err := l.client.Stream(ctx, llm.NewChatRequest(messages))
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			return "", chunk.Err
		}
		if chunk.Text != "" {
			b.WriteString(chunk.Text)
			l.bus.Emit(events.NewStreamToken(chunk.Text, iteration))
		}
		if chunk.Done {
			break
		}
	}
	fullText := b.String()
	if info := l.client.ModelInfo(); info != nil {
		var promptText strings.Builder
		for _, m := range messages {
			promptText.WriteString(m.Content)
		}
		l.costs.Record(r.task.ID, costs.Usage{
			Model: info.ID, Provider: info.Provider,
			InputTokens:  l.costs.Count(info.ID, promptText.String()),
			OutputTokens: l.costs.Count(info.ID, fullText),
		})
	}
	return fullText, nil
}

// executeBlocks runs each extracted block in order, stopping early if
// setFinal fired or the context was cancelled (spec.md §4.1 step 8).
func (l *Loop) executeBlocks(ctx context.Context, rp *repl.REPL, blocks []extractor.Block) ([]task.BlockResult, bool) {
	var results []task.BlockResult
	finalHit := false
	for i, block := range blocks {
		l.bus.Emit(events.NewCodeGenerated(block.Code, i))

		result, errMsg := rp.Execute(ctx, block.Code)
		metadata := repl.FormatResultMetadata(result, errMsg)
		l.bus.Emit(events.NewCodeResult(metadata, i, errMsg))

		if errMsg != "" {
			l.registry.RecordREPLEvaluation("error")
		} else {
			l.registry.RecordREPLEvaluation("ok")
		}
		if _, truncated := result.(repl.TruncatedSentinel); truncated {
			l.registry.RecordTruncation("exec-result")
		}

		results = append(results, task.BlockResult{Code: block.Code, Metadata: metadata, Error: errMsg})

		if rp.FinalCalled() {
			finalHit = true
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return results, finalHit
}

func buildIterationRecord(iter int, started time.Time, results []task.BlockResult, changes []task.PageChange) task.IterationRecord {
	var full strings.Builder
	multi := len(results) > 1
	for i, res := range results {
		if multi {
			fmt.Fprintf(&full, "Block %d: ", i)
		}
		full.WriteString(res.Metadata)
		full.WriteString("\n")
	}
	oneLiner := "ran a code block"
	if len(results) > 0 {
		last := results[len(results)-1]
		oneLiner = tracker.OneLiner(last.Code, last.Error)
	}
	return task.IterationRecord{
		Index: iter, StartedAt: started, Duration: time.Since(started),
		Blocks: results, OneLiner: oneLiner, FullMetadata: full.String(), PageChanges: changes,
	}
}

func toPageChangeTuples(changes []task.PageChange) []events.PageChangeTuple {
	out := make([]events.PageChangeTuple, 0, len(changes))
	for _, c := range changes {
		out = append(out, events.PageChangeTuple{TabID: c.TabID, Field: string(c.Field), Old: c.Old, New: c.New})
	}
	return out
}
