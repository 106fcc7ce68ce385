// internal/workers/workout-data/search-workouts/queries/builders.go
package queries

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var (
	ErrUnknownSearchType = errors.New("unknown search type")
	ErrMissingIndex      = errors.New("index name is required")
	ErrMissingVector     = errors.New("query vector is required")
)

// Mode selects how the index is queried.
type Mode string

const (
	Keyword  Mode = "keyword"
	Semantic Mode = "semantic"
	Vector   Mode = "vector"
	Hybrid   Mode = "hybrid"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case Keyword, Semantic, Vector, Hybrid:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownSearchType, s)
	}
}

// NeedsEmbedding reports whether the question must be embedded before searching.
func (m Mode) NeedsEmbedding() bool {
	return m == Vector || m == Hybrid
}

var textFields = []string{"SearchableText", "Exercise^2", "ExType"}

// SearchQuery defines the structure of a workout search request
type SearchQuery struct {
	Index         string
	Mode          Mode
	Text          string
	Vector        []float32
	VectorField   string
	SemanticName  string
	Size          int
	K             int
	NumCandidates int
}

// BuildQuery builds an Elasticsearch search request for the query mode
func BuildQuery(sq SearchQuery) (*esapi.SearchRequest, error) {
	if sq.Index == "" {
		return nil, ErrMissingIndex
	}

	body, err := BuildBody(sq)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	return &esapi.SearchRequest{
		Index:          []string{sq.Index},
		Body:           bytes.NewReader(raw),
		TrackTotalHits: true,
	}, nil
}

// BuildBody returns the JSON body for sq.
func BuildBody(sq SearchQuery) (map[string]interface{}, error) {
	body := map[string]interface{}{
		"size":             sq.Size,
		"track_total_hits": true,
		"_source": map[string]interface{}{
			"excludes": []string{sq.VectorField},
		},
	}

	switch sq.Mode {
	case Keyword:
		body["query"] = multiMatch(sq.Text, "")
	case Semantic:
		body["query"] = multiMatch(sq.Text, sq.SemanticName)
		body["rescore"] = phraseRescore(sq)
		body["highlight"] = captionHighlight()
	case Vector:
		knn, err := knnClause(sq)
		if err != nil {
			return nil, err
		}
		body["knn"] = knn
	case Hybrid:
		knn, err := knnClause(sq)
		if err != nil {
			return nil, err
		}
		body["query"] = multiMatch(sq.Text, "")
		body["knn"] = knn
		body["highlight"] = captionHighlight()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSearchType, sq.Mode)
	}

	return body, nil
}

func multiMatch(text, name string) map[string]interface{} {
	clause := map[string]interface{}{
		"query":  text,
		"fields": textFields,
		"type":   "best_fields",
	}
	if name != "" {
		clause["_name"] = name
	}
	return map[string]interface{}{"multi_match": clause}
}

func knnClause(sq SearchQuery) (map[string]interface{}, error) {
	if len(sq.Vector) == 0 {
		return nil, ErrMissingVector
	}
	return map[string]interface{}{
		"field":          sq.VectorField,
		"query_vector":   sq.Vector,
		"k":              sq.K,
		"num_candidates": sq.NumCandidates,
	}, nil
}

// phraseRescore reorders the top window by phrase proximity on the searchable text.
func phraseRescore(sq SearchQuery) map[string]interface{} {
	return map[string]interface{}{
		"window_size": sq.Size,
		"query": map[string]interface{}{
			"rescore_query": map[string]interface{}{
				"match_phrase": map[string]interface{}{
					"SearchableText": map[string]interface{}{
						"query": sq.Text,
						"slop":  2,
					},
				},
			},
			"query_weight":         0.7,
			"rescore_query_weight": 1.2,
		},
	}
}

func captionHighlight() map[string]interface{} {
	return map[string]interface{}{
		"pre_tags":  []string{"<em>"},
		"post_tags": []string{"</em>"},
		"fields": map[string]interface{}{
			"SearchableText": map[string]interface{}{
				"fragment_size":       150,
				"number_of_fragments": 3,
			},
		},
	}
}
