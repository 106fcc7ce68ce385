// internal/pipeline/answer.go
package pipeline

import (
	"bytes"
	"encoding/json"

	"workout-insights/internal/models"
)

// answerKeys are the response fields that may carry the answer, in preference order.
// "answesr" is a misspelling some deployed flows emit.
var answerKeys = []string{"answesr", "enhanced_result", "answer", "result"}

// decodeAnswer reads a flow response body. Each candidate key is tried in turn and
// the whole body is used as raw text when none is present.
func decodeAnswer(body []byte) *models.PipelineResponse {
	resp := &models.PipelineResponse{}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		resp.EnhancedResult = rawText(string(bytes.TrimSpace(body)))
		return resp
	}

	decodeOptional(fields["generated_query"], &resp.GeneratedQuery)
	if raw, ok := fields["sql_result"]; ok {
		var sql models.QueryResult
		if decodeNested(raw, &sql) {
			resp.SQLResult = &sql
		}
	}
	if raw, ok := fields["search_result"]; ok {
		var search models.SearchResult
		if decodeNested(raw, &search) {
			resp.SearchResult = &search
		}
	}

	for _, key := range answerKeys {
		if raw, ok := fields[key]; ok {
			resp.EnhancedResult = decodeAnalysis(raw)
			return resp
		}
	}

	pretty, _ := json.MarshalIndent(fields, "", "  ")
	resp.EnhancedResult = rawText(string(pretty))
	return resp
}

// decodeAnalysis accepts an analysis object, a JSON string holding one, or plain text.
func decodeAnalysis(raw json.RawMessage) models.EnhancedAnalysis {
	var analysis models.EnhancedAnalysis
	if hasAnalysis(raw) && json.Unmarshal(raw, &analysis) == nil {
		return withStatus(analysis)
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if hasAnalysis([]byte(text)) && json.Unmarshal([]byte(text), &analysis) == nil {
			return withStatus(analysis)
		}
		return rawText(text)
	}

	return rawText(string(raw))
}

func hasAnalysis(raw []byte) bool {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return false
	}
	_, ok := fields["enhanced_analysis"]
	return ok
}

func withStatus(a models.EnhancedAnalysis) models.EnhancedAnalysis {
	if a.Status == "" {
		a.Status = models.StatusSuccess
	}
	return a
}

func rawText(text string) models.EnhancedAnalysis {
	return models.EnhancedAnalysis{Status: models.StatusSuccess, EnhancedAnalysis: text}
}

// decodeNested decodes v from an object or from a JSON string holding one.
func decodeNested(raw json.RawMessage, v interface{}) bool {
	if json.Unmarshal(raw, v) == nil {
		return true
	}
	var text string
	if json.Unmarshal(raw, &text) != nil {
		return false
	}
	return json.Unmarshal([]byte(text), v) == nil
}

func decodeOptional(raw json.RawMessage, v *string) {
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, v)
	}
}
