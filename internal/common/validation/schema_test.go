package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateSchema(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr bool
	}{
		{
			name: "three sections",
			doc: `{"template":[
				{"section_title":"Summary","section_description":"Overview"},
				{"section_title":"Strength","section_description":"Bench press trend"},
				{"section_title":"Plan","section_description":"Next steps"}]}`,
		},
		{name: "missing template", doc: `{"sections":[]}`, wantErr: true},
		{name: "empty template", doc: `{"template":[]}`, wantErr: true},
		{name: "section without title", doc: `{"template":[{"section_description":"x"}]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := TemplateSchema.ValidateBytes([]byte(tt.doc))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.NotEmpty(t, vErr.Errors)
		})
	}
}

func TestPipelineRequestSchema(t *testing.T) {
	assert.NoError(t, PipelineRequestSchema.Validate(map[string]interface{}{
		"query": "How many jumping jacks did I do?", "use_search": true, "search_type": "hybrid",
	}))
	assert.Error(t, PipelineRequestSchema.Validate(map[string]interface{}{"query": ""}))
	assert.Error(t, PipelineRequestSchema.Validate(map[string]interface{}{"query": "x", "search_type": "fuzzy"}))
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile("broken", map[string]interface{}{"type": 12})
	assert.Error(t, err)
}
