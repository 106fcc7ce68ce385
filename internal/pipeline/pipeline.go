// Package pipeline answers a workout question with an enhanced analysis, either
// in process or through a remote flow endpoint.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"workout-insights/internal/common/config"
	"workout-insights/internal/common/validation"
	"workout-insights/internal/models"
)

var (
	ErrInvalidRequest      = errors.New("INVALID_REQUEST")
	ErrPipelineUnavailable = errors.New("PIPELINE_UNAVAILABLE")
)

// Analyzer runs the enhancer pipeline for one question.
type Analyzer interface {
	Analyze(ctx context.Context, req models.PipelineRequest) (*models.PipelineResponse, error)
}

// Defaults fill in request fields the caller left out.
type Defaults struct {
	UseSearch  bool
	SearchType string
}

func DefaultsFrom(cfg config.PipelineConfig) Defaults {
	d := Defaults{UseSearch: cfg.UseSearch, SearchType: cfg.SearchType}
	if d.SearchType == "" {
		d.SearchType = "hybrid"
	}
	return d
}

// resolve validates req and applies defaults.
func (d Defaults) resolve(req models.PipelineRequest) (models.PipelineRequest, error) {
	if req.UseSearch == nil {
		useSearch := d.UseSearch
		req.UseSearch = &useSearch
	}
	if req.SearchType == "" {
		req.SearchType = d.SearchType
	}
	if err := validation.PipelineRequestSchema.Validate(req); err != nil {
		return req, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return req, nil
}
