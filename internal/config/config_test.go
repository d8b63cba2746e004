package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer func() { _ = os.Chdir(cwd) }()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "anthropic", cfg.Provider)
	require.Equal(t, 25, cfg.MaxIterations)
	require.Equal(t, 50, cfg.MaxSubCalls)
}

func TestLoadFromExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: openai-compatible\nprimary_model: gpt-x\nmax_iterations: 500\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "openai-compatible", cfg.Provider)
	require.Equal(t, "gpt-x", cfg.PrimaryModel)
	// clamped to spec.md §6's [1,100] bound.
	require.Equal(t, 100, cfg.MaxIterations)
}

func TestLoadEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: anthropic\n"), 0o644))
	t.Setenv("RLM_API_KEY", "sk-from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sk-from-env", cfg.APIKey)
}

func TestDumpRedactsAPIKey(t *testing.T) {
	cfg := Defaults()
	cfg.APIKey = "sk-secret"

	out, err := cfg.Dump()
	require.NoError(t, err)
	require.Contains(t, out, "redacted")
	require.NotContains(t, out, "sk-secret")
}

func TestEngineConfigNarrowing(t *testing.T) {
	cfg := Defaults()
	cfg.ConfirmationsEnabled = true
	ec := cfg.EngineConfig()
	require.Equal(t, cfg.PrimaryModel, ec.PrimaryModel)
	require.Equal(t, cfg.SubModel, ec.SubModel)
	require.True(t, ec.ConfirmationsEnabled)
}
