// Package config loads the engine's deployment-time configuration (spec.md
// §6): provider selection, model names, per-Task budget defaults, and the
// ambient stack (HTTP bind address, tracing backend, log level, persisted
// store path). Grounded on the teacher's cmd/alex config loading
// (cmd/cobra_cli.go's viper.SetConfigName/AddConfigPath + cmd/alex's
// cobra-flag-to-config binding), trimmed from the teacher's many YAML
// sections (apps/channels/auth/session/...) down to the one section this
// engine actually has.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"rlm/internal/engine"
)

// Config is the engine's full runtime configuration.
type Config struct {
	Provider     string `yaml:"provider" mapstructure:"provider"`
	APIKey       string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL      string `yaml:"base_url" mapstructure:"base_url"`
	PrimaryModel string `yaml:"primary_model" mapstructure:"primary_model"`
	SubModel     string `yaml:"sub_model" mapstructure:"sub_model"`

	MaxIterations        int  `yaml:"max_iterations" mapstructure:"max_iterations"`
	MaxSubCalls          int  `yaml:"max_sub_calls" mapstructure:"max_sub_calls"`
	ConfirmationsEnabled bool `yaml:"confirmations_enabled" mapstructure:"confirmations_enabled"`

	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr"`

	TracingBackend  string `yaml:"tracing_backend" mapstructure:"tracing_backend"`
	TracingEndpoint string `yaml:"tracing_endpoint" mapstructure:"tracing_endpoint"`

	LogLevel string `yaml:"log_level" mapstructure:"log_level"`

	StorePath string `yaml:"store_path" mapstructure:"store_path"`
	TracePath string `yaml:"trace_path" mapstructure:"trace_path"`
}

// Defaults returns the config populated with the teacher-style baseline: a
// loopback HTTP bind, no tracing backend, and the spec.md §6 per-Task
// budget defaults.
func Defaults() Config {
	return Config{
		Provider:      "anthropic",
		PrimaryModel:  "claude-sonnet-4-5",
		SubModel:      "claude-haiku-4-5",
		MaxIterations: engine.DefaultMaxIterations,
		MaxSubCalls:   engine.DefaultMaxSubCalls,
		HTTPAddr:      "127.0.0.1:8420",
		LogLevel:      "info",
		StorePath:     "rlm-store.json",
	}
}

// Load reads configPath (if non-empty) or searches ./rlm-config.yaml and
// $HOME/.rlm/rlm-config.yaml, then applies RLM_-prefixed environment overrides
// (e.g. RLM_API_KEY), the same config-file-then-env precedence the teacher
// uses in cmd/cobra_cli.go's viper setup.
func Load(configPath string) (Config, error) {
	v := viper.New()
	applyDefaults(v, Defaults())

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("rlm-config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.rlm")
	}

	v.SetEnvPrefix("RLM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decoding: %w", err)
	}
	return cfg.clamp(), nil
}

func applyDefaults(v *viper.Viper, d Config) {
	v.SetDefault("provider", d.Provider)
	v.SetDefault("api_key", d.APIKey)
	v.SetDefault("base_url", d.BaseURL)
	v.SetDefault("primary_model", d.PrimaryModel)
	v.SetDefault("sub_model", d.SubModel)
	v.SetDefault("max_iterations", d.MaxIterations)
	v.SetDefault("max_sub_calls", d.MaxSubCalls)
	v.SetDefault("http_addr", d.HTTPAddr)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("store_path", d.StorePath)
	v.SetDefault("confirmations_enabled", d.ConfirmationsEnabled)
	v.SetDefault("tracing_backend", d.TracingBackend)
	v.SetDefault("tracing_endpoint", d.TracingEndpoint)
	v.SetDefault("trace_path", d.TracePath)
}

// clamp bounds per-Task defaults to spec.md §6's documented ranges using
// the same clamping internal/httpapi applies to a per-submission override.
func (c Config) clamp() Config {
	c.MaxIterations = engine.ClampIterations(c.MaxIterations)
	c.MaxSubCalls = engine.ClampSubCalls(c.MaxSubCalls)
	return c
}

// BindFlags registers the CLI flags the teacher's cmd/alex exposes
// (provider/model/tokens/temperature-equivalents here) and binds each to
// viper so flag > env > file > default precedence holds.
func BindFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.PersistentFlags()
	flags.String("provider", "", "model provider (anthropic | openai-compatible)")
	flags.String("primary-model", "", "primary agent model")
	flags.String("sub-model", "", "sub-agent model")
	flags.String("api-key", "", "provider API key (or $ENV_VAR)")
	flags.String("base-url", "", "provider base URL (openai-compatible)")
	flags.Int("max-iterations", 0, "iteration cap override [1,100]")
	flags.Int("max-sub-calls", 0, "sub-call cap override [0,200]")
	flags.String("http-addr", "", "HTTP listen address")
	flags.String("config", "", "path to rlm-config.yaml")

	_ = v.BindPFlag("provider", flags.Lookup("provider"))
	_ = v.BindPFlag("primary_model", flags.Lookup("primary-model"))
	_ = v.BindPFlag("sub_model", flags.Lookup("sub-model"))
	_ = v.BindPFlag("api_key", flags.Lookup("api-key"))
	_ = v.BindPFlag("base_url", flags.Lookup("base-url"))
	_ = v.BindPFlag("max_iterations", flags.Lookup("max-iterations"))
	_ = v.BindPFlag("max_sub_calls", flags.Lookup("max-sub-calls"))
	_ = v.BindPFlag("http_addr", flags.Lookup("http-addr"))
}

// ApplyFlagOverrides layers any flag explicitly set on v (via BindFlags)
// on top of a file/env-loaded Config, giving CLI flags the highest
// precedence. Unset flags (empty string, zero int) never override.
func (c Config) ApplyFlagOverrides(v *viper.Viper) Config {
	if s := v.GetString("provider"); s != "" {
		c.Provider = s
	}
	if s := v.GetString("primary_model"); s != "" {
		c.PrimaryModel = s
	}
	if s := v.GetString("sub_model"); s != "" {
		c.SubModel = s
	}
	if s := v.GetString("api_key"); s != "" {
		c.APIKey = s
	}
	if s := v.GetString("base_url"); s != "" {
		c.BaseURL = s
	}
	if n := v.GetInt("max_iterations"); n != 0 {
		c.MaxIterations = n
	}
	if n := v.GetInt("max_sub_calls"); n != 0 {
		c.MaxSubCalls = n
	}
	if s := v.GetString("http_addr"); s != "" {
		c.HTTPAddr = s
	}
	return c.clamp()
}

// EngineConfig narrows Config to the fields engine.Loop consumes.
func (c Config) EngineConfig() engine.Config {
	return engine.Config{
		PrimaryModel:         c.PrimaryModel,
		SubModel:             c.SubModel,
		ConfirmationsEnabled: c.ConfirmationsEnabled,
	}
}

// Dump renders cfg as YAML, with APIKey redacted — used by the /api/config
// debug endpoint.
func (c Config) Dump() (string, error) {
	redacted := c
	if redacted.APIKey != "" {
		redacted.APIKey = "***redacted***"
	}
	b, err := yaml.Marshal(redacted)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
