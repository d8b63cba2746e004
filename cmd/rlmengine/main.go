// rlmengine is the RLM execution engine's process entrypoint: it loads
// configuration, wires the Model Client Facade and a Browser Driver, and
// serves the engine input API and event stream over HTTP (spec.md §6).
// Grounded on the teacher's cmd/alex-server/main.go (flat main wiring a
// config loader into a server bootstrap call) and cmd/alex's
// cobra-root-command structure for flag/config precedence.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rlm/internal/config"
	"rlm/internal/driver"
	"rlm/internal/httpapi"
	"rlm/internal/llm"
	"rlm/internal/logging"
	"rlm/internal/metrics"
	"rlm/internal/tracing"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "rlmengine",
		Short: "Recursive Language Model execution engine",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(v.GetString("config"), v)
		},
	}
	config.BindFlags(cmd, v)
	return cmd
}

func run(configPath string, v *viper.Viper) error {
	if configPath == "" {
		configPath = os.Getenv("RLM_CONFIG_PATH")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg = cfg.ApplyFlagOverrides(v)

	level := slog.LevelInfo
	_ = level.UnmarshalText([]byte(cfg.LogLevel))
	logger := logging.New(level)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Backend:     tracing.Backend(cfg.TracingBackend),
		Endpoint:    cfg.TracingEndpoint,
		ServiceName: "rlmengine",
	})
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	registry := metrics.NewRegistry(prometheus.DefaultRegisterer)

	client, err := llm.NewClient(llm.ClientConfig{
		Provider: cfg.Provider,
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
		Model:    cfg.PrimaryModel,
	})
	if err != nil {
		return fmt.Errorf("building model client: %w", err)
	}
	defer client.Close()

	// The sub-agent client talks to cfg.SubModel (spec.md §4.6) and carries
	// the 3-retry policy llm_query/llm_batch requires; the driving loop's
	// own client is retry-agnostic (mid-stream retries would duplicate
	// tokens already surfaced as stream-token events).
	rawSubClient, err := llm.NewClient(llm.ClientConfig{
		Provider: cfg.Provider,
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
		Model:    cfg.SubModel,
	})
	if err != nil {
		return fmt.Errorf("building sub-agent model client: %w", err)
	}
	defer rawSubClient.Close()
	subClient := llm.WithRetry(rawSubClient, llm.SubAgentRetryConfig, time.Now().UnixNano())

	// The concrete Browser Driver is an external collaborator (spec.md §1);
	// this binary runs against the in-memory MockDriver until one is wired
	// in by a deployment.
	drv := driver.NewMockDriver()

	srv := httpapi.NewServer(cfg, drv, client, subClient, registry)

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("rlmengine listening", "addr", cfg.HTTPAddr)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}
