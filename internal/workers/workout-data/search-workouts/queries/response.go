// internal/workers/workout-data/search-workouts/queries/response.go
package queries

import (
	"encoding/json"
	"fmt"
	"io"

	"workout-insights/internal/models"
)

// Result is the decoded outcome of one search.
type Result struct {
	Hits  []models.SearchHit
	Total int
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID        string               `json:"_id"`
			Score     *float64             `json:"_score"`
			Source    models.IndexDocument `json:"_source"`
			Highlight map[string][]string  `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
}

// DecodeResponse flattens a search response body into hits.
func DecodeResponse(body io.Reader) (*Result, error) {
	var r searchResponse
	if err := json.NewDecoder(body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	result := &Result{
		Hits:  make([]models.SearchHit, 0, len(r.Hits.Hits)),
		Total: r.Hits.Total.Value,
	}
	for _, h := range r.Hits.Hits {
		hit := NewHit(h.Source)
		if hit.ID == "" {
			hit.ID = h.ID
		}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		hit.Captions = h.Highlight["SearchableText"]
		result.Hits = append(result.Hits, hit)
	}
	return result, nil
}

// NewHit maps a stored document onto a SearchHit.
func NewHit(doc models.IndexDocument) models.SearchHit {
	text := doc.SearchableText
	if text == "" {
		text = doc.WorkoutRecord.SearchableText()
	}
	return models.SearchHit{
		ID:             doc.ID,
		Exercise:       doc.Exercise,
		ExerciseType:   doc.ExType,
		Date:           doc.ExDate,
		Weight:         doc.Weight,
		Reps:           doc.Reps,
		Set:            doc.Set,
		SearchableText: text,
	}
}
