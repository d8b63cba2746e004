package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rlm/internal/config"
	"rlm/internal/driver"
	"rlm/internal/llm"
	"rlm/internal/task"
)

type scriptedClient struct {
	response string
}

func (s *scriptedClient) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk, 4)
	go func() {
		defer close(ch)
		for _, tok := range strings.Split(s.response, " ") {
			ch <- llm.StreamChunk{Text: tok + " "}
		}
		ch <- llm.StreamChunk{Done: true}
	}()
	return ch, nil
}

func (s *scriptedClient) Complete(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{Content: s.response}, nil
}
func (s *scriptedClient) ModelInfo() *llm.ModelInfo { return &llm.ModelInfo{ID: "scripted"} }
func (s *scriptedClient) Close() error              { return nil }

func newTestServer() *Server {
	cfg := config.Defaults()
	client := &scriptedClient{response: "```repl\nsetFinal(\"hi\")\n```"}
	return NewServer(cfg, driver.NewMockDriver(), client, client, nil)
}

func TestSubmitTaskThenStateReachesComplete(t *testing.T) {
	srv := newTestServer()
	router := srv.Router()

	body, _ := json.Marshal(map[string]any{"message": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/api/task", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		w2 := httptest.NewRecorder()
		router.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/api/task/state", nil))
		var resp stateResponse
		require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &resp))
		return resp.Status == "complete"
	}, time.Second, 5*time.Millisecond)
}

func TestSubmitTaskRejectsWhenBusy(t *testing.T) {
	srv := newTestServer()
	busy := task.NewTask("busy", "x", 5, 5)
	busy.Status = task.StatusRunning
	srv.current = busy
	srv.cancel = func() {}
	router := srv.Router()

	body, _ := json.Marshal(map[string]any{"message": "hello"})
	req := httptest.NewRequest(http.MethodPost, "/api/task", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelWithNoTaskRunning(t *testing.T) {
	srv := newTestServer()
	router := srv.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/task/cancel", nil))
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestConfigEndpointRedactsAPIKey(t *testing.T) {
	srv := newTestServer()
	srv.cfg.APIKey = "sk-secret"
	router := srv.Router()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/config", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NotContains(t, w.Body.String(), "sk-secret")
}
