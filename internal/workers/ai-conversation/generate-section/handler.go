// internal/workers/ai-conversation/generate-section/handler.go
package generatesection

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"workout-insights/internal/common/llm"
	"workout-insights/internal/common/logger"
	"workout-insights/internal/common/metrics"
	"workout-insights/internal/models"
)

const TaskType = "generate-section"

var (
	ErrSectionGenerationFailed = errors.New("SECTION_GENERATION_FAILED")
	ErrLLMTimeout              = errors.New("LLM_TIMEOUT")
)

const formatSystemPrompt = "You are a fitness document specialist. Generate detailed, data-driven content for fitness document sections."

const formatRequest = `
Section Title: %s
Section Requirements: %s

Based on this workout data analysis:
%s

Generate specific, detailed content for this section that incorporates the actual workout data insights.
Format the content professionally for inclusion in a fitness document.
Focus on providing actionable information based on the real data provided.
`

// Source tells which path produced the section content.
type Source string

const (
	SourcePipeline Source = "pipeline"
	SourceDirect   Source = "direct"
)

// Analyzer answers a workout question with an enhanced analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req models.PipelineRequest) (*models.PipelineResponse, error)
}

type Output struct {
	Content string
	Source  Source
}

type Handler struct {
	config   *Config
	analyzer Analyzer
	llm      llm.Client
	logger   logger.Logger
}

// NewHandler builds the handler. A nil analyzer skips straight to the direct prompt.
func NewHandler(config *Config, analyzer Analyzer, client llm.Client, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		analyzer: analyzer,
		llm:      client,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Execute writes the content of one document section.
func (h *Handler) Execute(ctx context.Context, title, description string) (*Output, error) {
	done := metrics.Stage(TaskType)

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	if h.analyzer != nil {
		content, err := h.fromPipeline(ctx, title, description)
		if err == nil {
			done("")
			return &Output{Content: content, Source: SourcePipeline}, nil
		}
		h.logger.Warn("pipeline section generation failed, using direct prompt", map[string]interface{}{
			"sectionTitle": title,
			"error":        err.Error(),
		})
	}

	content, err := h.direct(ctx, title, description)
	if err != nil {
		code := ErrSectionGenerationFailed.Error()
		if errors.Is(err, ErrLLMTimeout) {
			code = ErrLLMTimeout.Error()
		}
		done(code)
		return nil, err
	}

	done("")
	return &Output{Content: content, Source: SourceDirect}, nil
}

func (h *Handler) fromPipeline(ctx context.Context, title, description string) (string, error) {
	query := fmt.Sprintf("Generate detailed content for a %s section. Requirements: %s", title, description)

	resp, err := h.analyzer.Analyze(ctx, models.PipelineRequest{Query: query})
	if err != nil {
		return "", err
	}
	insights := resp.EnhancedResult.Text()

	h.logger.Info("pipeline insights for section", map[string]interface{}{
		"sectionTitle":   title,
		"insightsLength": len(insights),
	})

	return h.complete(ctx, llm.Request{
		Messages:    llm.Prompt(formatSystemPrompt, fmt.Sprintf(formatRequest, title, description, insights)),
		Temperature: h.config.FormatTemperature,
		MaxTokens:   h.config.FormatMaxTokens,
	})
}

func (h *Handler) direct(ctx context.Context, title, description string) (string, error) {
	prompt := fmt.Sprintf("%s\n    Section Title: %s\n    Section Description: %s\n    ", h.config.SectionPrompt, title, description)

	return h.complete(ctx, llm.Request{
		Messages:    llm.Prompt(h.config.SystemMessage, prompt),
		Temperature: h.config.FallbackTemperature,
		MaxTokens:   h.config.FallbackMaxTokens,
	})
}

func (h *Handler) complete(ctx context.Context, req llm.Request) (string, error) {
	completion, err := h.llm.Complete(ctx, req)
	if err != nil {
		if errors.Is(err, llm.ErrTimeout) {
			return "", fmt.Errorf("%w: %v", ErrLLMTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrSectionGenerationFailed, err)
	}
	if strings.TrimSpace(completion) == "" {
		return "", fmt.Errorf("%w: %v", ErrSectionGenerationFailed, llm.ErrEmptyResponse)
	}
	return completion, nil
}
