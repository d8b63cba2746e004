package llm

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewClientAnthropic(t *testing.T) {
	client, err := NewClient(ClientConfig{Provider: "anthropic", Model: "claude-x"})
	require.NoError(t, err)
	require.Equal(t, "anthropic", client.ModelInfo().Provider)
}

func TestNewClientOpenAIRequiresBaseURL(t *testing.T) {
	_, err := NewClient(ClientConfig{Provider: "openai"})
	require.Error(t, err)
}

func TestNewClientUnsupportedProvider(t *testing.T) {
	_, err := NewClient(ClientConfig{Provider: "carrier-pigeon"})
	require.Error(t, err)
}

func TestNewClientResolvesAPIKeyFromEnv(t *testing.T) {
	t.Setenv("RLM_TEST_KEY", "secret-value")
	client, err := NewClient(ClientConfig{Provider: "anthropic", Model: "claude-x", APIKey: "$RLM_TEST_KEY"})
	require.NoError(t, err)
	anth, ok := client.(*AnthropicClient)
	require.True(t, ok)
	require.Equal(t, "secret-value", anth.apiKey)
}

func TestResolveAPIKeyMissingEnvReturnsEmpty(t *testing.T) {
	os.Unsetenv("RLM_TEST_KEY_MISSING")
	require.Equal(t, "", resolveAPIKey("$RLM_TEST_KEY_MISSING"))
}
