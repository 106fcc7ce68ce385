// internal/workers/workout-data/interpret-query/handler.go
package interpretquery

import (
	"context"
	"errors"
	"fmt"

	"workout-insights/internal/common/llm"
	"workout-insights/internal/common/logger"
	"workout-insights/internal/common/metrics"
	"workout-insights/internal/models"
)

const TaskType = "interpret-query"

var (
	ErrQueryGenerationFailed = errors.New("QUERY_GENERATION_FAILED")
	ErrLLMTimeout            = errors.New("LLM_TIMEOUT")
)

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

// Execute turns question into a single SQL statement. A nil schema selects the generic prompt.
func (h *Handler) Execute(ctx context.Context, question string, schema *models.SchemaSnapshot) (string, error) {
	done := metrics.Stage(TaskType)
	query, err := h.execute(ctx, question, schema)
	if err != nil {
		code := ErrQueryGenerationFailed.Error()
		if errors.Is(err, ErrLLMTimeout) {
			code = ErrLLMTimeout.Error()
		}
		done(code)
		return "", err
	}
	done("")
	return query, nil
}

func (h *Handler) execute(ctx context.Context, question string, schema *models.SchemaSnapshot) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	system := buildSystemPrompt(h.config.Table, schema, h.config.MaxExerciseList)

	completion, err := h.llm.Complete(ctx, llm.Request{
		Messages:    llm.Prompt(system, fmt.Sprintf(userPromptFormat, question)),
		Temperature: h.config.Temperature,
		MaxTokens:   h.config.MaxTokens,
	})
	if err != nil {
		if errors.Is(err, llm.ErrTimeout) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %v", ErrLLMTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrQueryGenerationFailed, err)
	}

	query := llm.StripCodeFence(completion)
	if query == "" {
		return "", fmt.Errorf("%w: empty completion", ErrQueryGenerationFailed)
	}

	h.logger.Info("query generated", map[string]interface{}{
		"withSchema": schema != nil,
		"query":      query,
	})

	return query, nil
}
