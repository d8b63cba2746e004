// rlmctl is the interactive observer client for a running rlmengine: it
// submits tasks, renders the event stream live, and gates sensitive-action
// confirmations. Grounded on the teacher's cmd/alex interactive CLI
// (readline-driven prompt, Bubble Tea TUI, glamour markdown rendering) and
// promptui for the confirmation gate.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// client talks to one rlmengine instance over HTTP + websocket.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(addr string) *client {
	return &client{baseURL: strings.TrimSuffix(addr, "/"), http: &http.Client{Timeout: 10 * time.Second}}
}

type submitResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

func (c *client) submit(message string, maxIterations, maxSubCalls int) (*submitResponse, error) {
	body, _ := json.Marshal(map[string]any{
		"message":        message,
		"max_iterations": maxIterations,
		"max_sub_calls":  maxSubCalls,
	})
	resp, err := c.http.Post(c.baseURL+"/api/task", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("rlmctl: submit failed: %s", readErr(resp.Body))
	}
	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) cancel() error {
	resp, err := c.http.Post(c.baseURL+"/api/task/cancel", "application/json", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("rlmctl: cancel failed: %s", readErr(resp.Body))
	}
	return nil
}

type stateView struct {
	TaskID     string `json:"task_id"`
	Status     string `json:"status"`
	Iterations int    `json:"iterations"`
	Final      any    `json:"final"`
}

func (c *client) state() (*stateView, error) {
	resp, err := c.http.Get(c.baseURL + "/api/task/state")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var out stateView
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) confirm(approved bool) error {
	body, _ := json.Marshal(map[string]any{"approved": approved})
	resp, err := c.http.Post(c.baseURL+"/api/task/confirmation", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("rlmctl: confirmation failed: %s", readErr(resp.Body))
	}
	return nil
}

// wireEvent mirrors events.WireEvent for decoding off the websocket, kept
// dependency-free of the engine's internal packages.
type wireEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// watch dials the event stream and delivers each decoded event to onEvent
// until the connection closes or stop is signalled.
func (c *client) watch(onEvent func(wireEvent), stop <-chan struct{}) error {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("rlmctl: connecting to event stream: %w", err)
	}
	defer conn.Close()

	go func() {
		<-stop
		_ = conn.Close()
	}()

	for {
		var ev wireEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return nil
		}
		onEvent(ev)
	}
}

func readErr(r io.Reader) string {
	b, _ := io.ReadAll(r)
	return string(b)
}
