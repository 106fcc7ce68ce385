// internal/workers/workout-data/run-query/handler.go
package runquery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"workout-insights/internal/common/database"
	"workout-insights/internal/common/logger"
	"workout-insights/internal/common/metrics"
	"workout-insights/internal/models"
)

const TaskType = "run-query"

var ErrQueryExecutionFailed = errors.New("QUERY_EXECUTION_FAILED")

type Handler struct {
	config *Config
	db     *database.PostgresClient
	logger logger.Logger
}

func NewHandler(config *Config, db *database.PostgresClient, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		db:     db,
		logger: log.With(map[string]interface{}{
			"taskType": TaskType,
		}),
	}
}

// Execute runs query once in a read-only transaction. Failures are reported in the
// result rather than returned.
func (h *Handler) Execute(ctx context.Context, query string) models.QueryResult {
	done := metrics.Stage(TaskType)

	result, err := h.execute(ctx, query)
	if err != nil {
		done(ErrQueryExecutionFailed.Error())
		h.logger.Error("query execution failed", map[string]interface{}{
			"query": query,
			"error": err.Error(),
		})
		return models.QueryResult{
			Status:  models.StatusError,
			Message: fmt.Sprintf("Error executing query: %v", err),
			Query:   query,
		}
	}

	done("")
	h.logger.Info("query executed", map[string]interface{}{
		"count":      result.Count,
		"totalCount": result.TotalCount,
		"aggregate":  result.Aggregate,
	})
	return result
}

func (h *Handler) execute(ctx context.Context, query string) (models.QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	result := models.QueryResult{Status: models.StatusSuccess, Query: query}

	err := h.db.ReadOnly(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		set, err := collect(rows, h.config.ResultLimit)
		if err != nil {
			return err
		}
		classify(set, &result)
		return nil
	})
	if err != nil {
		return models.QueryResult{}, err
	}
	return result, nil
}
