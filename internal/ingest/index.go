// internal/ingest/index.go
package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"workout-insights/internal/common/logger"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ErrIndexRequestFailed = errors.New("INDEX_REQUEST_FAILED")

// HNSW graph settings for the vector field.
const (
	hnswM              = 4
	hnswEfConstruction = 400
)

// IndexMapping is the workout index definition: keyword and text fields plus a
// cosine dense_vector.
func IndexMapping(vectorField string, dims int) map[string]interface{} {
	textWithKeyword := map[string]interface{}{
		"type": "text",
		"fields": map[string]interface{}{
			"keyword": map[string]interface{}{"type": "keyword", "ignore_above": 256},
		},
	}
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id":             map[string]interface{}{"type": "keyword"},
				"ExDate":         textWithKeyword,
				"Exercise":       textWithKeyword,
				"ExType":         textWithKeyword,
				"Set":            map[string]interface{}{"type": "integer"},
				"Reps":           map[string]interface{}{"type": "integer"},
				"Weight":         map[string]interface{}{"type": "double"},
				"SearchableText": map[string]interface{}{"type": "text", "analyzer": "standard"},
				vectorField: map[string]interface{}{
					"type":       "dense_vector",
					"dims":       dims,
					"index":      true,
					"similarity": "cosine",
					"index_options": map[string]interface{}{
						"type":            "hnsw",
						"m":               hnswM,
						"ef_construction": hnswEfConstruction,
					},
				},
			},
		},
	}
}

// IndexManager creates and deletes the workout search index.
type IndexManager struct {
	client      *elasticsearch.Client
	index       string
	vectorField string
	dims        int
	logger      logger.Logger
}

func NewIndexManager(client *elasticsearch.Client, index, vectorField string, dims int, log logger.Logger) *IndexManager {
	return &IndexManager{
		client:      client,
		index:       index,
		vectorField: vectorField,
		dims:        dims,
		logger:      log.With(map[string]interface{}{"component": "index", "index": index}),
	}
}

// Create creates the index. An existing index is left untouched.
func (m *IndexManager) Create(ctx context.Context) (bool, error) {
	exists, err := esapi.IndicesExistsRequest{Index: []string{m.index}}.Do(ctx, m.client)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrIndexRequestFailed, err)
	}
	exists.Body.Close()
	if exists.StatusCode == http.StatusOK {
		m.logger.Info("index already exists", nil)
		return false, nil
	}

	body, err := json.Marshal(IndexMapping(m.vectorField, m.dims))
	if err != nil {
		return false, err
	}
	res, err := esapi.IndicesCreateRequest{Index: m.index, Body: bytes.NewReader(body)}.Do(ctx, m.client)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrIndexRequestFailed, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return false, responseError(res)
	}

	m.logger.Info("index created", map[string]interface{}{"dims": m.dims})
	return true, nil
}

// Delete removes the index. A missing index is not an error.
func (m *IndexManager) Delete(ctx context.Context) (bool, error) {
	res, err := esapi.IndicesDeleteRequest{Index: []string{m.index}}.Do(ctx, m.client)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrIndexRequestFailed, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		m.logger.Info("index does not exist", nil)
		return false, nil
	}
	if res.IsError() {
		return false, responseError(res)
	}
	m.logger.Info("index deleted", nil)
	return true, nil
}

func responseError(res *esapi.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	return fmt.Errorf("%w: %s: %s", ErrIndexRequestFailed, res.Status(), bytes.TrimSpace(raw))
}
