// internal/models/schema.go
package models

// FieldInfo describes one top level field of the sampled workout document.
type FieldInfo struct {
	Type        string `json:"type"`
	SampleValue string `json:"sample_value"`
}

// SchemaSnapshot is the sampled shape of the workout collection.
type SchemaSnapshot struct {
	Fields            map[string]FieldInfo `json:"fields"`
	CategoricalValues map[string][]string  `json:"categorical_values"`
}

// Categorical returns the distinct values sampled for field, or nil.
func (s *SchemaSnapshot) Categorical(field string) []string {
	if s == nil || s.CategoricalValues == nil {
		return nil
	}
	return s.CategoricalValues[field]
}
