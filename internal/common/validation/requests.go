package validation

// PipelineRequestSchema guards the /score body.
var PipelineRequestSchema = MustCompile("pipeline request", map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"query"},
	"properties": map[string]interface{}{
		"query":       map[string]interface{}{"type": "string", "minLength": 1},
		"use_search":  map[string]interface{}{"type": "boolean"},
		"search_type": map[string]interface{}{"type": "string", "enum": []interface{}{"semantic", "vector", "hybrid", "keyword"}},
	},
})

// TemplateSchema is the shape the template model must produce.
var TemplateSchema = MustCompile("document template", map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"template"},
	"properties": map[string]interface{}{
		"template": map[string]interface{}{
			"type":     "array",
			"minItems": 1,
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"section_title", "section_description"},
				"properties": map[string]interface{}{
					"section_title":       map[string]interface{}{"type": "string", "minLength": 1},
					"section_description": map[string]interface{}{"type": "string"},
				},
			},
		},
	},
})
