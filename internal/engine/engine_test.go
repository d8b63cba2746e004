package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rlm/internal/driver"
	"rlm/internal/events"
	"rlm/internal/llm"
	"rlm/internal/task"
)

// scriptedClient returns one canned response per Stream/Complete call, in
// order, looping on the last entry once exhausted.
type scriptedClient struct {
	responses []string
	i         int
	blockOn   int // if >=0, Stream on this call index blocks until ctx is done
}

func (s *scriptedClient) next() string {
	if s.i >= len(s.responses) {
		return s.responses[len(s.responses)-1]
	}
	r := s.responses[s.i]
	s.i++
	return r
}

func (s *scriptedClient) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	callIdx := s.i
	content := s.next()
	ch := make(chan llm.StreamChunk, 4)
	go func() {
		defer close(ch)
		if s.blockOn == callIdx {
			select {
			case <-ctx.Done():
				ch <- llm.StreamChunk{Err: ctx.Err(), Done: true}
			case <-time.After(5 * time.Second):
			}
			return
		}
		for _, tok := range strings.Split(content, " ") {
			ch <- llm.StreamChunk{Text: tok + " "}
		}
		ch <- llm.StreamChunk{Done: true}
	}()
	return ch, nil
}

func (s *scriptedClient) Complete(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Content: s.next()}, nil
}

func (s *scriptedClient) ModelInfo() *llm.ModelInfo { return &llm.ModelInfo{ID: "scripted"} }
func (s *scriptedClient) Close() error              { return nil }

type recordingListener struct {
	events []events.Event
}

func (r *recordingListener) OnEvent(e events.Event) { r.events = append(r.events, e) }

func (r *recordingListener) countType(t string) int {
	n := 0
	for _, e := range r.events {
		if e.EventType() == t {
			n++
		}
	}
	return n
}

func newTestLoop(client llm.Client, cfg Config) (*Loop, *recordingListener) {
	bus := events.NewBus()
	rec := &recordingListener{}
	bus.Subscribe(rec)
	l := New(cfg, driver.NewMockDriver(), client, client, bus, nil, nil)
	return l, rec
}

func TestImmediateSetFinal(t *testing.T) {
	client := &scriptedClient{responses: []string{"```repl\nsetFinal(\"hello\")\n```"}, blockOn: -1}
	l, rec := newTestLoop(client, Config{})
	tsk := task.NewTask("t1", "hi", 5, 5)

	l.Run(context.Background(), tsk)

	require.Equal(t, task.StatusComplete, tsk.Status)
	require.Equal(t, "hello", tsk.FinalValue)
	require.Equal(t, 1, rec.countType("complete"))
	require.Equal(t, 1, rec.countType("iteration-start"))
	last := rec.events[len(rec.events)-1]
	require.Equal(t, "complete", last.EventType())
}

func TestNoCodeThenCode(t *testing.T) {
	client := &scriptedClient{responses: []string{"just prose, no code here", "```repl\nsetFinal(42)\n```"}, blockOn: -1}
	l, rec := newTestLoop(client, Config{})
	tsk := task.NewTask("t1", "task", 5, 5)

	l.Run(context.Background(), tsk)

	require.Equal(t, task.StatusComplete, tsk.Status)
	require.Equal(t, int64(42), tsk.FinalValue)
	require.Equal(t, 2, rec.countType("iteration-start"))
	require.Equal(t, 1, rec.countType("code-generated"))
}

func TestThreeConsecutiveNoCodeErrors(t *testing.T) {
	client := &scriptedClient{responses: []string{"prose one", "prose two", "prose three"}, blockOn: -1}
	l, rec := newTestLoop(client, Config{})
	tsk := task.NewTask("t1", "task", 10, 5)

	l.Run(context.Background(), tsk)

	require.Equal(t, task.StatusError, tsk.Status)
	require.Equal(t, 3, rec.countType("iteration-start"))
	require.Equal(t, 1, rec.countType("error"))
	require.Equal(t, 1, rec.countType("complete"))
	last := rec.events[len(rec.events)-1].(*events.Complete)
	require.Nil(t, last.Final)
}

func TestIterationCapReachedWithoutSetFinal(t *testing.T) {
	client := &scriptedClient{responses: []string{"```repl\nenv.x = 1;\n```"}, blockOn: -1}
	l, rec := newTestLoop(client, Config{})
	tsk := task.NewTask("t1", "task", 2, 5)

	l.Run(context.Background(), tsk)

	require.Equal(t, task.StatusComplete, tsk.Status)
	require.Equal(t, 2, rec.countType("iteration-start"))
	last := rec.events[len(rec.events)-1].(*events.Complete)
	require.Contains(t, last.Final, "Reached maximum iterations (2)")
}

func TestSubCallCapReturnsErrorStringNotEngineError(t *testing.T) {
	client := &scriptedClient{responses: []string{
		"```repl\nconst r = await llm_query(\"x\"); setFinal(r);\n```",
	}, blockOn: -1}
	l, rec := newTestLoop(client, Config{})
	tsk := task.NewTask("t1", "task", 5, 0)

	l.Run(context.Background(), tsk)

	require.Equal(t, task.StatusComplete, tsk.Status)
	require.Equal(t, "[SUB-CALL ERROR] Maximum sub-call limit reached.", tsk.FinalValue)
	require.Equal(t, 0, rec.countType("error"))
}

func TestCancellationMidStream(t *testing.T) {
	client := &scriptedClient{responses: []string{"```repl\nsetFinal(1)\n```"}, blockOn: 0}
	l, rec := newTestLoop(client, Config{})
	tsk := task.NewTask("t1", "task", 5, 5)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	l.Run(ctx, tsk)

	require.Equal(t, task.StatusCancelled, tsk.Status)
	require.Equal(t, 0, rec.countType("code-generated"))
	last := rec.events[len(rec.events)-1].(*events.Complete)
	require.Equal(t, "Task cancelled by user.", last.Final)
}
