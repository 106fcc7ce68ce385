// Package llm is the hosted language model boundary: chat completions, streamed
// completions and embeddings behind small interfaces.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"workout-insights/internal/common/config"
	apperrors "workout-insights/internal/common/errors"
	commonhttp "workout-insights/internal/common/http"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

var (
	ErrTimeout       = errors.New("LLM_TIMEOUT")
	ErrEmptyResponse = errors.New("LLM_EMPTY_RESPONSE")
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one completion call.
type Request struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

// Client produces a single completion.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Streamer relays completion deltas as they arrive. onDelta returning an error aborts the stream.
type Streamer interface {
	Stream(ctx context.Context, req Request, onDelta func(delta string) error) error
}

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Provider is everything a configured model backend offers.
type Provider interface {
	Client
	Streamer
	Embedder
}

// Prompt builds the common system + user message pair.
func Prompt(system, user string) []Message {
	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	}
}

// New returns the provider selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig, httpClient *commonhttp.Client) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, apperrors.NewConfigurationMissingError("llm.api_key")
	}
	if httpClient == nil {
		httpClient = commonhttp.NewClient(config.GetDuration(cfg.Timeout))
	}
	switch strings.ToLower(cfg.Provider) {
	case "azure", "openai", "":
		if strings.EqualFold(cfg.Provider, "azure") && cfg.Endpoint == "" {
			return nil, apperrors.NewConfigurationMissingError("llm.endpoint")
		}
		return NewOpenAI(cfg, httpClient), nil
	case "gemini":
		return NewGemini(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func wrapCallError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
