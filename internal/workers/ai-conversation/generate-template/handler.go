// internal/workers/ai-conversation/generate-template/handler.go
package generatetemplate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"workout-insights/internal/common/llm"
	"workout-insights/internal/common/logger"
	"workout-insights/internal/common/metrics"
	"workout-insights/internal/common/validation"
	"workout-insights/internal/models"
)

const TaskType = "generate-template"

var (
	ErrTemplateGenerationFailed = errors.New("TEMPLATE_GENERATION_FAILED")
	ErrTemplateValidationFailed = errors.New("TEMPLATE_VALIDATION_FAILED")
	ErrLLMTimeout               = errors.New("LLM_TIMEOUT")
)

const requestFormat = `
User Request: %s

Based on this workout data analysis:
%s

Create a structured document template that incorporates the specific data insights into the section descriptions.
`

// Output is a validated template plus its JSON encoding for the chat content field.
type Output struct {
	Template   models.DocumentTemplate
	Content    string
	Completion string
}

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

// Execute asks the model for a sectioned document template grounded in insights.
func (h *Handler) Execute(ctx context.Context, userMessage, insights string) (*Output, error) {
	done := metrics.Stage(TaskType)

	output, err := h.execute(ctx, userMessage, insights)
	if err != nil {
		done(h.mapErrorToCode(err))
		h.logger.Warn("template generation failed", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	done("")
	h.logger.Info("template generated", map[string]interface{}{
		"sections":       len(output.Template.Template),
		"insightsLength": len(insights),
	})
	return output, nil
}

func (h *Handler) execute(ctx context.Context, userMessage, insights string) (*Output, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	completion, err := h.llm.Complete(ctx, llm.Request{
		Messages:    llm.Prompt(h.config.SystemMessage, fmt.Sprintf(requestFormat, userMessage, insights)),
		Temperature: h.config.Temperature,
		MaxTokens:   h.config.MaxTokens,
	})
	if err != nil {
		if errors.Is(err, llm.ErrTimeout) {
			return nil, fmt.Errorf("%w: %v", ErrLLMTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTemplateGenerationFailed, err)
	}

	raw := []byte(llm.ExtractFenced(completion))
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%w: completion is not JSON", ErrTemplateGenerationFailed)
	}
	if err := validation.TemplateSchema.ValidateBytes(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateValidationFailed, err)
	}

	var template models.DocumentTemplate
	if err := json.Unmarshal(raw, &template); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateGenerationFailed, err)
	}

	content, err := json.Marshal(template)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateGenerationFailed, err)
	}

	return &Output{
		Template:   template,
		Content:    string(content),
		Completion: completion,
	}, nil
}

func (h *Handler) mapErrorToCode(err error) string {
	switch {
	case errors.Is(err, ErrLLMTimeout):
		return ErrLLMTimeout.Error()
	case errors.Is(err, ErrTemplateValidationFailed):
		return ErrTemplateValidationFailed.Error()
	default:
		return ErrTemplateGenerationFailed.Error()
	}
}
