package engine

import (
	"context"
	"fmt"
	"strings"

	"rlm/internal/costs"
	"rlm/internal/events"
	"rlm/internal/extractor"
	"rlm/internal/llm"
	"rlm/internal/repl"
)

// callbacks implements repl.EngineCallbacks for one Task's main REPL,
// closing the cyclic-ownership seam spec.md §9 calls for: the Loop owns the
// REPL's lifecycle, and the REPL calls back into the Loop for logs,
// setFinal, and sub-agent spawns.
type callbacks struct {
	loop *Loop
	run  *run
}

func (c *callbacks) OnLog(message string) {
	c.loop.bus.Emit(events.NewLog(message))
}

// OnSetFinal is a notification hook; the Loop reads the authoritative value
// via repl.REPL.FinalValue() after Execute returns, so this only exists to
// satisfy the interface spec.md §9 names.
func (c *callbacks) OnSetFinal(value any) {}

func (c *callbacks) OnSubCall(ctx context.Context, prompt string, data any) string {
	idx, ok := c.reserveSubCall()
	if !ok {
		c.loop.registry.RecordSubCall("rejected")
		return "[SUB-CALL ERROR] Maximum sub-call limit reached."
	}
	result := c.loop.runSubAgent(ctx, c.run, prompt, data, idx)
	c.loop.registry.RecordSubCall(subCallOutcome(result))
	return result
}

func subCallOutcome(result string) string {
	switch {
	case strings.HasPrefix(result, "[SUB-CALL CANCELLED]"):
		return "cancelled"
	case strings.HasPrefix(result, "[SUB-CALL ERROR]"):
		return "rejected"
	default:
		return "fulfilled"
	}
}

func (c *callbacks) OnSubBatch(ctx context.Context, prompts []string) []repl.BatchOutcome {
	outcomes := make([]repl.BatchOutcome, len(prompts))
	results := make(chan struct {
		i int
		o repl.BatchOutcome
	}, len(prompts))

	for i, prompt := range prompts {
		i, prompt := i, prompt
		go func() {
			idx, ok := c.reserveSubCall()
			if !ok {
				c.loop.registry.RecordSubCall("rejected")
				results <- struct {
					i int
					o repl.BatchOutcome
				}{i, repl.BatchOutcome{Status: "rejected", Error: "Maximum sub-call limit reached."}}
				return
			}
			value := c.loop.runSubAgent(ctx, c.run, prompt, nil, idx)
			c.loop.registry.RecordSubCall(subCallOutcome(value))
			if strings.HasPrefix(value, "[SUB-CALL ERROR]") || strings.HasPrefix(value, "[SUB-CALL CANCELLED]") {
				results <- struct {
					i int
					o repl.BatchOutcome
				}{i, repl.BatchOutcome{Status: "rejected", Error: value}}
				return
			}
			results <- struct {
				i int
				o repl.BatchOutcome
			}{i, repl.BatchOutcome{Status: "fulfilled", Value: value}}
		}()
	}

	for range prompts {
		r := <-results
		outcomes[r.i] = r.o
	}
	return outcomes
}

// reserveSubCall atomically checks and increments the shared sub-call
// counter against the Task's max_sub_calls bound (spec.md §4.1).
func (c *callbacks) reserveSubCall() (int, bool) {
	c.run.subCallMu.Lock()
	defer c.run.subCallMu.Unlock()
	if c.run.task.SubCallsUsed >= c.run.task.MaxSubCalls {
		return 0, false
	}
	c.run.task.SubCallsUsed++
	c.run.subCallSeq++
	return c.run.subCallSeq, true
}

// runSubAgent executes one sub-agent mini-RLM loop (spec.md §4.1) to
// completion and returns its stringified result. It never returns an error;
// every failure mode is encoded as a "[SUB-CALL ERROR] ..." or
// "[SUB-CALL CANCELLED]" string, per the EngineCallbacks contract.
func (l *Loop) runSubAgent(ctx context.Context, parent *run, prompt string, data any, subCallIndex int) string {
	l.bus.Emit(events.NewSubLLMStart(prompt, subCallIndex))
	result := l.runSubAgentLoop(ctx, parent, prompt, data)
	l.bus.Emit(events.NewSubLLMComplete(subResultMeta(result), subCallIndex))
	return result
}

// subResultMeta builds the sub-llm-complete event's resultMeta: a bounded
// preview, never the full string (spec.md §4.1 metadata-only discipline
// extended to sub-call results).
func subResultMeta(result string) string {
	const max = 200
	if strings.HasPrefix(result, "[SUB-CALL ERROR]") || strings.HasPrefix(result, "[SUB-CALL CANCELLED]") {
		return "Result: ERROR: " + preview(result, max)
	}
	return "Result: " + preview(result, max)
}

func preview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// recordSubAgentUsage attributes a sub-agent Complete() call's cost to the
// parent Task. Unlike the main loop's streamed calls, Complete() responses
// from both internal/llm client implementations set Usage when the
// provider reports it; costs.Tracker.Count is only the fallback.
func (l *Loop) recordSubAgentUsage(parent *run, messages []llm.Message, resp *llm.ChatResponse) {
	info := l.subClient.ModelInfo()
	if info == nil {
		return
	}
	u := costs.Usage{Model: info.ID, Provider: info.Provider}
	if resp.Usage != nil {
		u.InputTokens = resp.Usage.PromptTokens
		u.OutputTokens = resp.Usage.CompletionTokens
	} else {
		var promptText strings.Builder
		for _, m := range messages {
			promptText.WriteString(m.Content)
		}
		u.InputTokens = l.costs.Count(info.ID, promptText.String())
		u.OutputTokens = l.costs.Count(info.ID, resp.Content)
	}
	l.costs.Record(parent.task.ID, u)
}

func (l *Loop) runSubAgentLoop(ctx context.Context, parent *run, prompt string, data any) string {
	preExisting := l.existingTabIDs(ctx)

	sub := repl.New(repl.Options{
		Driver:   l.driver,
		SubAgent: true,
		Data:     data,
	})
	defer func() {
		sub.Dispose()
		l.closeTabsCreatedSince(ctx, preExisting)
	}()

	systemPrompt := subAgentSystemPrompt + "\n\n# Parent task\n" + parent.task.OriginalMessage +
		"\n\n# Parent progress\n" + parent.tracker.SubAgentProgressSummary() +
		"\n\n# Your sub-task\n" + prompt

	history := []llm.Message{{Role: "user", Content: prompt}}
	consecutiveTransientErrors := 0
	consecutiveNoCode := 0

	for iter := 1; iter <= MaxSubIterations; iter++ {
		if ctx.Err() != nil {
			return "[SUB-CALL CANCELLED]"
		}

		messages := append([]llm.Message{{Role: "system", Content: systemPrompt}}, history...)
		resp, err := l.subClient.Complete(ctx, llm.NewChatRequest(messages))
		if err == nil {
			l.recordSubAgentUsage(parent, messages, resp)
		}
		if err != nil {
			if ctx.Err() != nil {
				return "[SUB-CALL CANCELLED]"
			}
			consecutiveTransientErrors++
			if consecutiveTransientErrors >= 3 {
				return fmt.Sprintf("[SUB-CALL ERROR] LLM failed 3 consecutive times: %s", err.Error())
			}
			history = append(history, llm.Message{Role: "user", Content: "The model request failed: " + err.Error() + ". Please try again."})
			continue
		}
		consecutiveTransientErrors = 0

		history = append(history, llm.Message{Role: "assistant", Content: resp.Content})
		blocks := extractor.Extract(resp.Content)

		if len(blocks) == 0 {
			consecutiveNoCode++
			if consecutiveNoCode >= 3 {
				return resp.Content
			}
			history = append(history, llm.Message{Role: "user", Content: subContinuation(iter)})
			continue
		}
		consecutiveNoCode = 0

		for _, block := range blocks {
			_, _ = sub.Execute(ctx, block.Code)
			if sub.FinalCalled() {
				return stringifyFinal(sub.FinalValue())
			}
			if ctx.Err() != nil {
				return "[SUB-CALL CANCELLED]"
			}
		}

		if iter >= MaxSubIterations-1 {
			history = append(history, llm.Message{Role: "user", Content: finalDemandContinuation})
		}
	}

	return "[SUB-CALL ERROR] reached 10 iterations without calling setFinal()"
}

func subContinuation(iter int) string {
	if iter >= MaxSubIterations-1 {
		return finalDemandContinuation
	}
	return continuationPrompt
}

func stringifyFinal(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func (l *Loop) existingTabIDs(ctx context.Context) map[string]bool {
	tabs, err := l.driver.ListTabs(ctx)
	if err != nil {
		return nil
	}
	ids := make(map[string]bool, len(tabs))
	for _, t := range tabs {
		ids[t.ID] = true
	}
	return ids
}

func (l *Loop) closeTabsCreatedSince(ctx context.Context, preExisting map[string]bool) {
	tabs, err := l.driver.ListTabs(ctx)
	if err != nil {
		return
	}
	for _, t := range tabs {
		if !preExisting[t.ID] {
			_ = l.driver.CloseTab(context.Background(), t.ID)
		}
	}
}
