// internal/workers/ai-conversation/enhance-insights/handler.go
package enhanceinsights

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

const TaskType = "enhance-insights"

const FallbackAnalysis = "Unable to provide enhanced analysis due to technical issues. Please review the raw data results."

var (
	ErrLLMEnhancementFailed = errors.New("LLM_ENHANCEMENT_FAILED")
	ErrLLMTimeout           = errors.New("LLM_TIMEOUT")
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

// Execute writes a narrative analysis of the query and search results. It never
// fails: errors produce a status "error" analysis carrying the fallback text.
func (h *Handler) Execute(ctx context.Context, question string, sql *models.QueryResult, search *models.SearchResult) models.EnhancedAnalysis {
	done := metrics.Stage(TaskType)

	analysis, err := h.execute(ctx, question, sql, search)
	if err != nil {
		code := ErrLLMEnhancementFailed.Error()
		if errors.Is(err, ErrLLMTimeout) {
			code = ErrLLMTimeout.Error()
		}
		done(code)
		h.logger.Error("enhancement failed", map[string]interface{}{
			"error": err.Error(),
		})
		return models.EnhancedAnalysis{
			Status:           models.StatusError,
			Question:         question,
			Message:          fmt.Sprintf("Error in LLM enhancement: %v", err),
			FallbackAnalysis: FallbackAnalysis,
		}
	}

	done("")
	return models.EnhancedAnalysis{
		Status:           models.StatusSuccess,
		Question:         question,
		EnhancedAnalysis: analysis,
		DataSources:      dataSources(sql, search),
	}
}

func (h *Handler) execute(ctx context.Context, question string, sql *models.QueryResult, search *models.SearchResult) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	completion, err := h.llm.Complete(ctx, llm.Request{
		Messages:    llm.Prompt(systemPrompt, h.buildPrompt(question, sql, search)),
		Temperature: h.config.Temperature,
		MaxTokens:   h.config.MaxTokens,
	})
	if err != nil {
		if errors.Is(err, llm.ErrTimeout) {
			return "", fmt.Errorf("%w: %v", ErrLLMTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrLLMEnhancementFailed, err)
	}

	analysis := strings.TrimSpace(completion)
	if analysis == "" {
		return "", fmt.Errorf("%w: %v", ErrLLMEnhancementFailed, llm.ErrEmptyResponse)
	}
	return analysis, nil
}

func dataSources(sql *models.QueryResult, search *models.SearchResult) *models.DataSources {
	ds := &models.DataSources{
		SQLAvailable:    sql != nil,
		SearchAvailable: search != nil,
	}
	if sql != nil {
		ds.SQLResultsCount = sql.Count
	}
	if search != nil {
		ds.SearchResultsCount = search.ReturnedCount
	}
	return ds
}
