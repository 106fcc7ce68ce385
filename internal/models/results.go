// internal/models/results.go
package models

import "encoding/json"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// QueryResult is the normalized outcome of running a generated query.
// Value is set only for single-value aggregates, in which case Results is empty
// and Aggregate is true. A NULL aggregate leaves Value nil.
type QueryResult struct {
	Status     string                   `json:"status"`
	Message    string                   `json:"message,omitempty"`
	Count      int                      `json:"count"`
	TotalCount int                      `json:"total_count"`
	Value      interface{}              `json:"value,omitempty"`
	Results    []map[string]interface{} `json:"results"`
	Query      string                   `json:"query,omitempty"`
	Aggregate  bool                     `json:"-"`
}

func (r QueryResult) OK() bool { return r.Status == StatusSuccess }

// MarshalJSON emits only status, message and query for failed runs.
func (r QueryResult) MarshalJSON() ([]byte, error) {
	if r.Status == StatusError {
		return json.Marshal(struct {
			Status  string `json:"status"`
			Message string `json:"message"`
			Query   string `json:"query"`
		}{r.Status, r.Message, r.Query})
	}
	type plain QueryResult
	p := plain(r)
	if p.Results == nil {
		p.Results = []map[string]interface{}{}
	}
	if r.Aggregate {
		return json.Marshal(struct {
			plain
			Value interface{} `json:"value"`
		}{p, p.Value})
	}
	return json.Marshal(p)
}

// SearchHit is one retrieved workout entry.
type SearchHit struct {
	ID             string   `json:"id"`
	Exercise       string   `json:"exercise"`
	ExerciseType   string   `json:"exercise_type"`
	Date           string   `json:"date"`
	Weight         float64  `json:"weight"`
	Reps           int      `json:"reps"`
	Set            int      `json:"set"`
	SearchableText string   `json:"searchable_text"`
	Score          float64  `json:"score"`
	Captions       []string `json:"captions,omitempty"`
	Answers        []string `json:"answers,omitempty"`
}

// SearchResult is the normalized outcome of a search. ReturnedCount counts every
// retrieved hit while Results holds only the top few.
type SearchResult struct {
	Status        string      `json:"status"`
	SearchType    string      `json:"search_type"`
	Query         string      `json:"query"`
	TotalCount    int         `json:"total_count"`
	ReturnedCount int         `json:"returned_count"`
	Results       []SearchHit `json:"results"`
	Message       string      `json:"message,omitempty"`
}

func (r SearchResult) OK() bool { return r.Status == StatusSuccess }

func (r SearchResult) MarshalJSON() ([]byte, error) {
	if r.Status == StatusError {
		return json.Marshal(struct {
			Status     string `json:"status"`
			SearchType string `json:"search_type"`
			Message    string `json:"message"`
			Query      string `json:"query"`
		}{r.Status, r.SearchType, r.Message, r.Query})
	}
	type plain SearchResult
	p := plain(r)
	if p.Results == nil {
		p.Results = []SearchHit{}
	}
	return json.Marshal(p)
}

type DataSources struct {
	SQLAvailable       bool `json:"sql_available"`
	SearchAvailable    bool `json:"search_available"`
	SQLResultsCount    int  `json:"sql_results_count"`
	SearchResultsCount int  `json:"search_results_count"`
}

// EnhancedAnalysis is the narrative produced from query and search results.
type EnhancedAnalysis struct {
	Status           string       `json:"status"`
	Question         string       `json:"question"`
	EnhancedAnalysis string       `json:"enhanced_analysis,omitempty"`
	DataSources      *DataSources `json:"data_sources,omitempty"`
	Message          string       `json:"message,omitempty"`
	FallbackAnalysis string       `json:"fallback_analysis,omitempty"`
}

func (a EnhancedAnalysis) OK() bool { return a.Status == StatusSuccess }

// Text is the analysis to show a user: the narrative, or the fallback on error.
func (a EnhancedAnalysis) Text() string {
	if a.EnhancedAnalysis != "" {
		return a.EnhancedAnalysis
	}
	return a.FallbackAnalysis
}

// PipelineRequest asks the enhancer pipeline to answer one question.
type PipelineRequest struct {
	Query      string `json:"query"`
	UseSearch  *bool  `json:"use_search,omitempty"`
	SearchType string `json:"search_type,omitempty"`
}

// PipelineResponse is what the enhancer pipeline produces for one question.
type PipelineResponse struct {
	EnhancedResult EnhancedAnalysis `json:"enhanced_result"`
	GeneratedQuery string           `json:"generated_query,omitempty"`
	SQLResult      *QueryResult     `json:"sql_result,omitempty"`
	SearchResult   *SearchResult    `json:"search_result,omitempty"`
}
