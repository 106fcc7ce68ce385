// internal/workers/workout-data/search-workouts/handler.go
package searchworkouts

import (
	"context"
	"errors"
	"fmt"

	"workout-insights/internal/common/llm"
	"workout-insights/internal/common/logger"
	"workout-insights/internal/common/metrics"
	"workout-insights/internal/models"
	"workout-insights/internal/workers/workout-data/search-workouts/queries"
)

const TaskType = "search-workouts"

var (
	ErrSearchQueryFailed = errors.New("SEARCH_QUERY_FAILED")
	ErrEmbeddingFailed   = errors.New("EMBEDDING_FAILED")
	ErrIndexNotFound     = errors.New("INDEX_NOT_FOUND")
	ErrSearchTimeout     = errors.New("SEARCH_TIMEOUT")
)

type Handler struct {
	config   *Config
	backend  Backend
	embedder llm.Embedder
	logger   logger.Logger
}

func NewHandler(config *Config, backend Backend, embedder llm.Embedder, log logger.Logger) *Handler {
	return &Handler{
		config:   config,
		backend:  backend,
		embedder: embedder,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Execute searches the workout index for question. Failures, including embedding
// failures, are reported in the result.
func (h *Handler) Execute(ctx context.Context, question, searchType string) models.SearchResult {
	done := metrics.Stage(TaskType)

	result, err := h.execute(ctx, question, searchType)
	if err != nil {
		done(h.mapErrorToCode(err))
		h.logger.Error("search failed", map[string]interface{}{
			"searchType": searchType,
			"error":      err.Error(),
		})
		return models.SearchResult{
			Status:     models.StatusError,
			SearchType: searchType,
			Query:      question,
			Message:    fmt.Sprintf("Error executing search: %v", err),
		}
	}

	done("")
	h.logger.Info("search completed", map[string]interface{}{
		"searchType":    searchType,
		"totalCount":    result.TotalCount,
		"returnedCount": result.ReturnedCount,
	})
	return result
}

func (h *Handler) execute(ctx context.Context, question, searchType string) (models.SearchResult, error) {
	mode, err := queries.ParseMode(searchType)
	if err != nil {
		return models.SearchResult{}, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	sq := queries.SearchQuery{
		Index:         h.config.Index,
		Mode:          mode,
		Text:          question,
		VectorField:   h.config.VectorField,
		SemanticName:  h.config.SemanticConfig,
		Size:          h.config.Size,
		K:             h.config.K,
		NumCandidates: h.config.NumCandidates,
	}

	if mode.NeedsEmbedding() {
		vector, err := h.embedder.Embed(ctx, question)
		if err != nil {
			return models.SearchResult{}, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
		}
		sq.Vector = vector
	}

	found, err := h.backend.Search(ctx, sq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return models.SearchResult{}, fmt.Errorf("%w: %v", ErrSearchTimeout, err)
		}
		if errors.Is(err, ErrIndexNotFound) {
			return models.SearchResult{}, err
		}
		return models.SearchResult{}, fmt.Errorf("%w: %v", ErrSearchQueryFailed, err)
	}

	hits := found.Hits
	if mode == queries.Semantic && len(hits) > 0 && len(hits[0].Captions) > 0 {
		hits[0].Answers = []string{hits[0].Captions[0]}
	}

	returned := hits
	if len(returned) > h.config.ReturnLimit {
		returned = returned[:h.config.ReturnLimit]
	}

	return models.SearchResult{
		Status:        models.StatusSuccess,
		SearchType:    string(mode),
		Query:         question,
		TotalCount:    found.Total,
		ReturnedCount: len(hits),
		Results:       returned,
	}, nil
}

func (h *Handler) mapErrorToCode(err error) string {
	switch {
	case errors.Is(err, ErrEmbeddingFailed):
		return ErrEmbeddingFailed.Error()
	case errors.Is(err, ErrIndexNotFound):
		return ErrIndexNotFound.Error()
	case errors.Is(err, ErrSearchTimeout):
		return ErrSearchTimeout.Error()
	default:
		return ErrSearchQueryFailed.Error()
	}
}
