// Package httpapi exposes the engine input API and event stream (spec.md
// §6) over HTTP: submit_task/cancel/get_state/confirmation_response as
// JSON endpoints, and the ordered event stream over a websocket. Grounded
// on the pack's codeready-toolchain-tarsy server
// (pkg/api/handlers.go's gin.Context JSON handlers driving a session
// through an async goroutine + pkg/api/handler_ws.go's WSHub broadcast
// hub), adapted from "one alert session" to "the engine's single active
// Task" (spec.md §3: at most one Task runs at a time).
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"rlm/internal/config"
	"rlm/internal/driver"
	"rlm/internal/engine"
	"rlm/internal/events"
	"rlm/internal/llm"
	"rlm/internal/metrics"
	"rlm/internal/task"
)

// ErrTaskBusy is returned by Submit when a Task is already running (spec.md
// §3's "at-most-one active Task per engine" invariant).
var ErrTaskBusy = errors.New("httpapi: a task is already running")

// Server wires an engine.Loop to HTTP. It owns the single in-flight Task
// (if any) and the websocket hub events are broadcast through.
type Server struct {
	cfg      config.Config
	loop     *engine.Loop
	hub      *Hub
	gate     *confirmationGate
	registry *metrics.Registry

	mu      sync.Mutex
	current *task.Task
	cancel  context.CancelFunc
}

// NewServer builds a Server. drv is the Browser Driver the engine consumes
// (spec.md §6); client drives the main loop (cfg.PrimaryModel) and subClient
// drives llm_query/llm_batch sub-agent calls (cfg.SubModel) — callers should
// wrap subClient in llm.WithRetry(subClient, llm.SubAgentRetryConfig, seed)
// per spec.md §4.6's 3-retry policy before passing it in. subClient may be
// nil, in which case client is reused for sub-agent calls. registry may be
// nil to disable /metrics.
func NewServer(cfg config.Config, drv driver.Driver, client, subClient llm.Client, registry *metrics.Registry) *Server {
	bus := events.NewBus()
	hub := NewHub()
	bus.Subscribe(events.ListenerFunc(func(e events.Event) { hub.Broadcast(events.ToWire(e)) }))

	gate := newConfirmationGate()
	var confirmGate driver.ConfirmationGate
	if cfg.ConfirmationsEnabled {
		confirmGate = gate
	}

	loop := engine.New(cfg.EngineConfig(), drv, client, subClient, bus, confirmGate, registry)
	return &Server{cfg: cfg, loop: loop, hub: hub, gate: gate, registry: registry}
}

// Router builds the gin engine exposing every endpoint.
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.POST("/api/task", s.handleSubmit)
	r.POST("/api/task/cancel", s.handleCancel)
	r.GET("/api/task/state", s.handleState)
	r.POST("/api/task/confirmation", s.handleConfirmation)
	r.GET("/api/config", s.handleConfig)
	r.GET("/ws", s.handleWebSocket)
	if s.registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
	return r
}

type submitRequest struct {
	Message       string `json:"message" binding:"required"`
	MaxIterations int    `json:"max_iterations"`
	MaxSubCalls   *int   `json:"max_sub_calls"`
}

func (s *Server) handleSubmit(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t, runCtx, err := s.startTask(req)
	if err != nil {
		if errors.Is(err, ErrTaskBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	go func() {
		s.loop.Run(runCtx, t)
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
	}()

	c.JSON(http.StatusAccepted, gin.H{"task_id": t.ID, "status": t.Status.String()})
}

// startTask constructs and registers a new Task under the at-most-one
// invariant, returning the cancellable context its Loop.Run should use.
func (s *Server) startTask(req submitRequest) (*task.Task, context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.Snapshot().Status == task.StatusRunning {
		return nil, nil, ErrTaskBusy
	}

	// Omitted (or non-positive) max_iterations and omitted (or negative)
	// max_sub_calls fall back to the configured defaults; an explicit
	// max_sub_calls of 0 disables sub-calls.
	maxIter := req.MaxIterations
	if maxIter <= 0 {
		maxIter = s.cfg.MaxIterations
	}
	maxSub := s.cfg.MaxSubCalls
	if req.MaxSubCalls != nil && *req.MaxSubCalls >= 0 {
		maxSub = *req.MaxSubCalls
	}
	t := task.NewTask(newTaskID(), req.Message, engine.ClampIterations(maxIter), engine.ClampSubCalls(maxSub))

	ctx, cancel := context.WithCancel(context.Background())
	s.current = t
	s.cancel = cancel
	return t, ctx, nil
}

func (s *Server) handleCancel(c *gin.Context) {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "no task is running"})
		return
	}
	cancel()
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

type stateResponse struct {
	TaskID     string `json:"task_id,omitempty"`
	Status     string `json:"status"`
	Iterations int    `json:"iterations"`
	Final      any    `json:"final,omitempty"`
}

func (s *Server) handleState(c *gin.Context) {
	s.mu.Lock()
	t := s.current
	s.mu.Unlock()

	if t == nil {
		c.JSON(http.StatusOK, stateResponse{Status: task.StatusIdle.String()})
		return
	}
	snap := t.Snapshot()
	resp := stateResponse{TaskID: t.ID, Status: snap.Status.String(), Iterations: snap.Iterations}
	if snap.FinalSet {
		resp.Final = snap.FinalValue
	}
	c.JSON(http.StatusOK, resp)
}

type confirmationRequest struct {
	Approved bool `json:"approved"`
}

func (s *Server) handleConfirmation(c *gin.Context) {
	var req confirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.gate.resolve(req.Approved)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) handleConfig(c *gin.Context) {
	dump, err := s.cfg.Dump()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.String(http.StatusOK, dump)
}

func (s *Server) handleWebSocket(c *gin.Context) {
	s.hub.Serve(c.Writer, c.Request)
}
