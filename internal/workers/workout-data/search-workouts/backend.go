// internal/workers/workout-data/search-workouts/backend.go
package searchworkouts

import (
	"context"
	"fmt"
	"net/http"

	"workout-insights/internal/workers/workout-data/search-workouts/queries"

	"github.com/elastic/go-elasticsearch/v8"
)

// Backend runs one prepared search against an index.
type Backend interface {
	Search(ctx context.Context, sq queries.SearchQuery) (*queries.Result, error)
}

// ElasticsearchBackend searches the workout index on an Elasticsearch cluster.
type ElasticsearchBackend struct {
	client *elasticsearch.Client
}

func NewElasticsearchBackend(client *elasticsearch.Client) *ElasticsearchBackend {
	return &ElasticsearchBackend{client: client}
}

func (b *ElasticsearchBackend) Search(ctx context.Context, sq queries.SearchQuery) (*queries.Result, error) {
	req, err := queries.BuildQuery(sq)
	if err != nil {
		return nil, err
	}

	res, err := req.Do(ctx, b.client)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, sq.Index)
	}
	if res.IsError() {
		return nil, fmt.Errorf("search query failed: %s", res.String())
	}

	return queries.DecodeResponse(res.Body)
}
