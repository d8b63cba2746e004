package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	anthropicAPIVersion    = "2023-06-01"
	anthropicDefaultMaxTok = 4096
)

// AnthropicClient implements Client for Anthropic's Messages API.
type AnthropicClient struct {
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client
	headers    map[string]string
	modelInfo  *ModelInfo
}

// NewAnthropicClient creates a client for the Anthropic Messages API.
func NewAnthropicClient(cfg ClientConfig) *AnthropicClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = anthropicDefaultMaxTok
	}
	return &AnthropicClient{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		maxTokens:  maxTokens,
		httpClient: &http.Client{Timeout: cfg.timeout()},
		headers:    cfg.Headers,
		modelInfo: &ModelInfo{
			ID:            cfg.Model,
			Provider:      "anthropic",
			ContextWindow: cfg.ContextWindow,
		},
	}
}

func (c *AnthropicClient) buildRequest(req *ChatRequest, stream bool) ([]byte, error) {
	anthReq := map[string]any{
		"model":      c.model,
		"max_tokens": c.maxTokens,
		"stream":     stream,
	}
	if req.MaxTokens > 0 {
		anthReq["max_tokens"] = req.MaxTokens
	}
	if req.Temperature != nil {
		anthReq["temperature"] = *req.Temperature
	}
	if len(req.StopSeqs) > 0 {
		anthReq["stop_sequences"] = req.StopSeqs
	}
	system, messages := splitSystemMessages(req.Messages)
	if system != "" {
		anthReq["system"] = system
	}
	anthReq["messages"] = convertAnthropicMessages(messages)
	return json.Marshal(anthReq)
}

func (c *AnthropicClient) newHTTPRequest(ctx context.Context, body []byte) (*http.Request, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)
	if c.apiKey != "" {
		httpReq.Header.Set("x-api-key", c.apiKey)
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// Complete sends a messages request and returns the full response.
func (c *AnthropicClient) Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	body, err := c.buildRequest(req, false)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	httpReq, err := c.newHTTPRequest(ctx, body)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(errBody))
	}

	var anthResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&anthResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	result := &ChatResponse{FinishReason: mapStopReason(anthResp.StopReason)}
	for _, block := range anthResp.Content {
		if block.Type == "text" {
			result.Content += block.Text
		}
	}
	if anthResp.Usage != nil {
		result.Usage = &Usage{
			PromptTokens:     anthResp.Usage.InputTokens,
			CompletionTokens: anthResp.Usage.OutputTokens,
			TotalTokens:      anthResp.Usage.InputTokens + anthResp.Usage.OutputTokens,
		}
	}
	return result, nil
}

// Stream sends a streaming messages request and relays text deltas as they
// arrive over the Anthropic SSE event stream.
func (c *AnthropicClient) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error) {
	body, err := c.buildRequest(req, true)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}
	httpReq, err := c.newHTTPRequest(ctx, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(errBody))
	}

	ch := make(chan StreamChunk)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		var event string
		for scanner.Scan() {
			if ctx.Err() != nil {
				ch <- StreamChunk{Err: ctx.Err(), Done: true}
				return
			}
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data := strings.TrimPrefix(line, "data: ")
				if event == "content_block_delta" {
					var delta anthropicStreamDelta
					if err := json.Unmarshal([]byte(data), &delta); err == nil && delta.Delta.Text != "" {
						ch <- StreamChunk{Text: delta.Delta.Text}
					}
				}
				if event == "message_stop" {
					ch <- StreamChunk{Done: true}
					return
				}
			}
		}
		if err := scanner.Err(); err != nil {
			ch <- StreamChunk{Err: err, Done: true}
			return
		}
		ch <- StreamChunk{Done: true}
	}()

	return ch, nil
}

// ModelInfo returns information about the connected model.
func (c *AnthropicClient) ModelInfo() *ModelInfo { return c.modelInfo }

// Close releases HTTP client resources.
func (c *AnthropicClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      *anthropicUsage    `json:"usage"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicStreamDelta struct {
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
}

func splitSystemMessages(msgs []Message) (string, []Message) {
	var system string
	var rest []Message
	for _, m := range msgs {
		if m.Role == "system" {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
		} else {
			rest = append(rest, m)
		}
	}
	return system, rest
}

func convertAnthropicMessages(msgs []Message) []map[string]string {
	var result []map[string]string
	for _, m := range msgs {
		result = append(result, map[string]string{"role": m.Role, "content": m.Content})
	}
	return result
}

func mapStopReason(reason string) string {
	switch reason {
	case "end_turn", "stop_sequence":
		return "stop"
	case "max_tokens":
		return "length"
	default:
		return reason
	}
}
