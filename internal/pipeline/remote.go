// internal/pipeline/remote.go
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"workout-insights/internal/common/config"
	commonhttp "workout-insights/internal/common/http"
	"workout-insights/internal/common/logger"
	"workout-insights/internal/models"
)

// placeholderKey is the key local flow servers are configured with; it is never sent.
const placeholderKey = "dummy_local_key"

// Remote calls a deployed flow endpoint.
type Remote struct {
	endpoint string
	apiKey   string
	client   *commonhttp.Client
	defaults Defaults
	logger   logger.Logger
}

func NewRemote(cfg config.PipelineConfig, client *commonhttp.Client, log logger.Logger) *Remote {
	if client == nil {
		timeout := config.GetDuration(cfg.Timeout)
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		client = commonhttp.NewClient(timeout)
	}
	return &Remote{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   client,
		defaults: DefaultsFrom(cfg),
		logger:   log.With(map[string]interface{}{"component": "pipeline.remote"}),
	}
}

// Available reports whether the endpoint is usable. Loopback endpoints need no key.
func (r *Remote) Available() bool {
	if r.endpoint == "" {
		return false
	}
	if isLoopback(r.endpoint) {
		return true
	}
	return r.apiKey != ""
}

func (r *Remote) Analyze(ctx context.Context, req models.PipelineRequest) (*models.PipelineResponse, error) {
	if !r.Available() {
		return nil, fmt.Errorf("%w: endpoint or api key is not configured", ErrPipelineUnavailable)
	}

	req, err := r.defaults.resolve(req)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPipelineUnavailable, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPipelineUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" && r.apiKey != placeholderKey {
		httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
		httpReq.Header.Set("api-key", r.apiKey)
	}

	log := logger.FromContext(ctx, r.logger)
	log.Info("calling pipeline endpoint", map[string]interface{}{
		"endpoint":   r.endpoint,
		"searchType": req.SearchType,
	})

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: connection error: %v", ErrPipelineUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrPipelineUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: endpoint error: %d - %s", ErrPipelineUnavailable, resp.StatusCode, string(raw))
	}

	return decodeAnswer(raw), nil
}

func isLoopback(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host == "127.0.0.1" || host == "localhost"
}
