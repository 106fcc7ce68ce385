package searchworkouts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"workout-insights/internal/common/config"
	"workout-insights/internal/common/llm/llmtest"
	"workout-insights/internal/common/logger"
	"workout-insights/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeCluster answers _search requests with n hits and records the last body.
type fakeCluster struct {
	hits     int
	status   int
	requests int32
	lastBody map[string]interface{}
}

func (f *fakeCluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	atomic.AddInt32(&f.requests, 1)

	raw, _ := io.ReadAll(r.Body)
	f.lastBody = nil
	_ = json.Unmarshal(raw, &f.lastBody)

	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception"},"status":404}`))
		return
	}

	hits := make([]map[string]interface{}, 0, f.hits)
	for i := 1; i <= f.hits; i++ {
		hits = append(hits, map[string]interface{}{
			"_id":    fmt.Sprintf("entry_%d", i),
			"_score": float64(f.hits - i + 1),
			"_source": map[string]interface{}{
				"id":       fmt.Sprintf("entry_%d", i),
				"Exercise": "Squat",
				"ExType":   "Strength",
				"Reps":     8,
			},
			"highlight": map[string]interface{}{
				"SearchableText": []string{fmt.Sprintf("<em>Squat</em> %d", i)},
			},
		})
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"hits": map[string]interface{}{
			"total": map[string]interface{}{"value": 57},
			"hits":  hits,
		},
	})
}

func newESHandler(t *testing.T, cluster *fakeCluster, provider *llmtest.MockProvider) *Handler {
	t.Helper()
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	cfg := LoadConfig(config.SearchConfig{
		Index:          "workout-index",
		VectorField:    "Embedding",
		SemanticConfig: "workout-semantic-config",
	})
	return NewHandler(cfg, NewElasticsearchBackend(client), provider, logger.NewTestLogger(t))
}

func TestHandler_Execute_Modes(t *testing.T) {
	tests := []struct {
		name      string
		mode      string
		embed     bool
		wantKeys  []string
		wantAnswr bool
	}{
		{name: "keyword", mode: "keyword", wantKeys: []string{"query"}},
		{name: "semantic", mode: "semantic", wantKeys: []string{"query", "rescore", "highlight"}, wantAnswr: true},
		{name: "vector", mode: "vector", embed: true, wantKeys: []string{"knn"}},
		{name: "hybrid", mode: "hybrid", embed: true, wantKeys: []string{"query", "knn", "highlight"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cluster := &fakeCluster{hits: 20}
			provider := &llmtest.MockProvider{}
			if tt.embed {
				provider.On("Embed", mock.Anything, "squats").Return([]float32{0.1, 0.2, 0.3}, nil).Once()
			}

			h := newESHandler(t, cluster, provider)
			res := h.Execute(context.Background(), "squats", tt.mode)

			require.Equal(t, models.StatusSuccess, res.Status, res.Message)
			assert.Equal(t, tt.mode, res.SearchType)
			assert.Equal(t, 57, res.TotalCount)
			assert.Equal(t, 20, res.ReturnedCount)
			assert.Len(t, res.Results, 10)
			assert.Equal(t, "entry_1", res.Results[0].ID)

			for _, k := range tt.wantKeys {
				assert.Contains(t, cluster.lastBody, k)
			}
			assert.Equal(t, float64(20), cluster.lastBody["size"])
			assert.Equal(t, true, cluster.lastBody["track_total_hits"])

			if tt.wantAnswr {
				assert.Equal(t, []string{"<em>Squat</em> 1"}, res.Results[0].Answers)
			} else {
				assert.Empty(t, res.Results[0].Answers)
			}
			provider.AssertExpectations(t)
		})
	}
}

func TestHandler_Execute_EmbeddingFailureSendsNoSearch(t *testing.T) {
	cluster := &fakeCluster{hits: 3}
	provider := &llmtest.MockProvider{}
	provider.On("Embed", mock.Anything, "squats").Return(nil, errors.New("deployment not found"))

	h := newESHandler(t, cluster, provider)
	res := h.Execute(context.Background(), "squats", "vector")

	assert.Equal(t, models.StatusError, res.Status)
	assert.Contains(t, res.Message, "Error executing search: EMBEDDING_FAILED")
	assert.Equal(t, "squats", res.Query)
	assert.Equal(t, int32(0), atomic.LoadInt32(&cluster.requests))
}

func TestHandler_Execute_Errors(t *testing.T) {
	t.Run("unknown mode", func(t *testing.T) {
		cluster := &fakeCluster{}
		h := newESHandler(t, cluster, &llmtest.MockProvider{})
		res := h.Execute(context.Background(), "squats", "fuzzy")
		assert.Equal(t, models.StatusError, res.Status)
		assert.Contains(t, res.Message, "unknown search type")
		assert.Equal(t, int32(0), atomic.LoadInt32(&cluster.requests))
	})

	t.Run("missing index", func(t *testing.T) {
		cluster := &fakeCluster{status: http.StatusNotFound}
		h := newESHandler(t, cluster, &llmtest.MockProvider{})
		res := h.Execute(context.Background(), "squats", "keyword")
		assert.Equal(t, models.StatusError, res.Status)
		assert.Contains(t, res.Message, "INDEX_NOT_FOUND")

		raw, err := json.Marshal(res)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "results")
	})
}
