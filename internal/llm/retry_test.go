package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	failTimes int
	calls     int
	err       error
}

func (f *fakeClient) Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	f.calls++
	if f.calls <= f.failTimes {
		return nil, f.err
	}
	return &ChatResponse{Content: "ok"}, nil
}

func (f *fakeClient) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error) {
	f.calls++
	if f.calls <= f.failTimes {
		return nil, f.err
	}
	ch := make(chan StreamChunk, 1)
	ch <- StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

func (f *fakeClient) ModelInfo() *ModelInfo { return &ModelInfo{ID: "fake"} }
func (f *fakeClient) Close() error          { return nil }

func TestWithRetrySucceedsAfterTransientFailures(t *testing.T) {
	inner := &fakeClient{failTimes: 2, err: errors.New("status 503: unavailable")}
	client := WithRetry(inner, RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond}, 1)

	resp, err := client.Complete(context.Background(), &ChatRequest{})
	require.NoError(t, err)
	require.Equal(t, "ok", resp.Content)
	require.Equal(t, 3, inner.calls)
}

func TestWithRetryDoesNotRetryClientErrors(t *testing.T) {
	inner := &fakeClient{failTimes: 5, err: errors.New("API error 401: unauthorized")}
	client := WithRetry(inner, SubAgentRetryConfig, 1)

	_, err := client.Complete(context.Background(), &ChatRequest{})
	require.Error(t, err)
	require.Equal(t, 1, inner.calls)
}

func TestWithRetryGivesUpAfterMaxRetries(t *testing.T) {
	inner := &fakeClient{failTimes: 100, err: errors.New("status 503: unavailable")}
	client := WithRetry(inner, RetryConfig{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}, 1)

	_, err := client.Complete(context.Background(), &ChatRequest{})
	require.Error(t, err)
	require.Equal(t, 4, inner.calls) // initial attempt + 3 retries
}

func TestWithRetryZeroMaxRetriesReturnsInnerUnwrapped(t *testing.T) {
	inner := &fakeClient{}
	client := WithRetry(inner, RetryConfig{}, 1)
	require.Same(t, inner, client)
}
