// internal/workers/ai-conversation/generate-title/handler.go
package generatetitle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"workout-insights/internal/common/llm"
	"workout-insights/internal/common/logger"
	"workout-insights/internal/common/metrics"
)

const TaskType = "generate-title"

const (
	untitled        = "Untitled"
	defaultFallback = "Template Request"
)

var ErrTitleGenerationFailed = errors.New("TITLE_GENERATION_FAILED")

type Handler struct {
	config *Config
	llm    llm.Client
	logger logger.Logger
}

func NewHandler(config *Config, client llm.Client, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		llm:    client,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Execute names a conversation. It always returns a title, falling back to the
// start of the last message when the model gives nothing usable.
func (h *Handler) Execute(ctx context.Context, conversation []llm.Message) string {
	done := metrics.Stage(TaskType)

	title, err := h.execute(ctx, conversation)
	if err != nil {
		done(ErrTitleGenerationFailed.Error())
		fallback := h.fallback(conversation, defaultFallback)
		h.logger.Warn("title generation failed, using fallback", map[string]interface{}{
			"error": err.Error(),
			"title": fallback,
		})
		return fallback
	}

	done("")
	if title == "" {
		return h.fallback(conversation, untitled)
	}
	return title
}

func (h *Handler) execute(ctx context.Context, conversation []llm.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	messages := make([]llm.Message, 0, len(conversation)+1)
	messages = append(messages, conversation...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: h.config.TitlePrompt})

	completion, err := h.llm.Complete(ctx, llm.Request{
		Messages:    messages,
		Temperature: h.config.Temperature,
		MaxTokens:   h.config.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTitleGenerationFailed, err)
	}

	raw := strings.TrimSpace(completion)
	if strings.HasPrefix(raw, "{{") && strings.HasSuffix(raw, "}}") {
		raw = raw[1 : len(raw)-1]
	}

	object := llm.FirstJSONObject(raw)
	if object == "" {
		return "", fmt.Errorf("%w: no JSON object in response", ErrTitleGenerationFailed)
	}

	var parsed struct {
		Title string `json:"title"`
	}
	if err := json.Unmarshal([]byte(object), &parsed); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTitleGenerationFailed, err)
	}
	return strings.TrimSpace(parsed.Title), nil
}

func (h *Handler) fallback(conversation []llm.Message, def string) string {
	if len(conversation) == 0 {
		return def
	}
	runes := []rune(conversation[len(conversation)-1].Content)
	if len(runes) > h.config.FallbackRunes {
		runes = runes[:h.config.FallbackRunes]
	}
	return string(runes)
}
