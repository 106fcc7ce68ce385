// internal/pipeline/local.go
package pipeline

import (
	"context"
	"fmt"

	"workout-insights/internal/common/logger"
	"workout-insights/internal/models"
)

type SchemaDiscoverer interface {
	Execute(ctx context.Context) (*models.SchemaSnapshot, error)
}

type QueryInterpreter interface {
	Execute(ctx context.Context, question string, schema *models.SchemaSnapshot) (string, error)
}

type QueryRunner interface {
	Execute(ctx context.Context, query string) models.QueryResult
}

type Searcher interface {
	Execute(ctx context.Context, question, searchType string) models.SearchResult
}

type Enhancer interface {
	Execute(ctx context.Context, question string, sql *models.QueryResult, search *models.SearchResult) models.EnhancedAnalysis
}

// Stages are the in-process steps. Search may be nil when no index is configured.
type Stages struct {
	Schema    SchemaDiscoverer
	Interpret QueryInterpreter
	Run       QueryRunner
	Search    Searcher
	Enhance   Enhancer
}

// Local runs schema discovery, interpretation, execution, search and enhancement in turn.
type Local struct {
	stages   Stages
	defaults Defaults
	logger   logger.Logger
}

func NewLocal(stages Stages, defaults Defaults, log logger.Logger) *Local {
	return &Local{
		stages:   stages,
		defaults: defaults,
		logger:   log.With(map[string]interface{}{"component": "pipeline.local"}),
	}
}

func (l *Local) Analyze(ctx context.Context, req models.PipelineRequest) (*models.PipelineResponse, error) {
	req, err := l.defaults.resolve(req)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx, l.logger)

	schema, err := l.stages.Schema.Execute(ctx)
	if err != nil {
		log.Warn("schema unavailable, using generic prompt", map[string]interface{}{
			"error": err.Error(),
		})
		schema = nil
	}

	resp := &models.PipelineResponse{}

	query, err := l.stages.Interpret.Execute(ctx, req.Query, schema)
	if err != nil {
		resp.SQLResult = &models.QueryResult{
			Status:  models.StatusError,
			Message: fmt.Sprintf("Error generating query: %v", err),
		}
	} else {
		resp.GeneratedQuery = query
		result := l.stages.Run.Execute(ctx, query)
		resp.SQLResult = &result
	}

	if *req.UseSearch && l.stages.Search != nil {
		result := l.stages.Search.Execute(ctx, req.Query, req.SearchType)
		resp.SearchResult = &result
	}

	resp.EnhancedResult = l.stages.Enhance.Execute(ctx, req.Query, resp.SQLResult, resp.SearchResult)

	log.Info("pipeline completed", map[string]interface{}{
		"sqlStatus":      resp.SQLResult.Status,
		"searchEnabled":  resp.SearchResult != nil,
		"enhancedStatus": resp.EnhancedResult.Status,
	})
	return resp, nil
}
