package llm

import (
	"context"
	"regexp"
	"strings"

	"github.com/ppiankov/claimtrust/internal/model"
)

// Provider defines the interface for chat-completion backends
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete sends a single-turn prompt and returns the model's answer
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// Ping checks that the provider is configured and reachable
	Ping(ctx context.Context) error
}

// CompletionRequest contains the input for one completion
type CompletionRequest struct {
	// System is the system instruction (optional)
	System string

	// Prompt is the user message
	Prompt string

	// Model overrides the configured model (optional)
	Model string

	// MaxTokens limits the response length (0 = provider config)
	MaxTokens int

	// Temperature overrides the configured temperature when non-nil
	Temperature *float32

	// JSON asks the backend for a JSON-only answer where supported
	JSON bool
}

// CompletionResponse contains the model's answer
type CompletionResponse struct {
	// Text is the generated text, trimmed
	Text string

	// Model is the model that generated the response
	Model string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// Temperature for sampling
	Temperature float32

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:    "", // Disabled by default
		Timeout:     30,
		MaxTokens:   800,
		Temperature: 0.2,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(modelConfig model.LLMConfig, httpConfig model.HTTPConfig) Config {
	return Config{
		Provider:    modelConfig.Provider,
		Model:       modelConfig.Model,
		APIKey:      modelConfig.APIKey,
		BaseURL:     modelConfig.BaseURL,
		Timeout:     modelConfig.Timeout,
		MaxTokens:   modelConfig.MaxTokens,
		Temperature: modelConfig.Temperature,
		HTTPProxy:   httpConfig.HTTPProxy,
		HTTPSProxy:  httpConfig.HTTPSProxy,
		NoProxy:     httpConfig.NoProxy,
	}
}

var fencePattern = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// StripFences removes a surrounding Markdown code fence (```json ... ```)
// that chat models often wrap JSON answers in.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

func (c Config) maxTokens(req CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 800
}

func (c Config) temperature(req CompletionRequest) float32 {
	if req.Temperature != nil {
		return *req.Temperature
	}
	return c.Temperature
}

func (c Config) model(req CompletionRequest, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}
