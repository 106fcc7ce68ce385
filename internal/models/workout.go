// internal/models/workout.go
package models

import (
	"strconv"
	"strings"
)

// WorkoutRecord is one logged set. Numeric fields are stored as JSON numbers in
// both the document store and the search index.
type WorkoutRecord struct {
	ID       string  `json:"id"`
	ExDate   string  `json:"ExDate"`
	Exercise string  `json:"Exercise"`
	Set      int     `json:"Set"`
	Reps     int     `json:"Reps"`
	Weight   float64 `json:"Weight"`
	ExType   string  `json:"ExType"`
}

// SearchableText joins the populated fields, e.g.
// "Exercise: Bench Press | Type: Strength | Weight: 135 lbs | Reps: 8 | Set: 1 | Date: 2024-01-15".
func (r WorkoutRecord) SearchableText() string {
	parts := make([]string, 0, 6)
	if r.Exercise != "" {
		parts = append(parts, "Exercise: "+r.Exercise)
	}
	if r.ExType != "" {
		parts = append(parts, "Type: "+r.ExType)
	}
	if r.Weight != 0 {
		parts = append(parts, "Weight: "+strconv.FormatFloat(r.Weight, 'f', -1, 64)+" lbs")
	}
	if r.Reps != 0 {
		parts = append(parts, "Reps: "+strconv.Itoa(r.Reps))
	}
	if r.Set != 0 {
		parts = append(parts, "Set: "+strconv.Itoa(r.Set))
	}
	if r.ExDate != "" {
		parts = append(parts, "Date: "+r.ExDate)
	}
	return strings.Join(parts, " | ")
}

// IndexDocument is a WorkoutRecord as stored in the search index.
type IndexDocument struct {
	WorkoutRecord
	SearchableText string    `json:"SearchableText"`
	Embedding      []float32 `json:"Embedding,omitempty"`
}
