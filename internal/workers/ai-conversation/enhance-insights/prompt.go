// internal/workers/ai-conversation/enhance-insights/prompt.go
package enhanceinsights

import (
	"encoding/json"
	"fmt"
	"strings"

	"workout-insights/internal/models"
)

const systemPrompt = `You are a fitness data analyst AI that provides insightful analysis of workout data.

Your role is to:
1. Analyze the provided workout data and results
2. Provide clear, actionable insights about fitness patterns and trends
3. Offer personalized recommendations based on the data
4. Present information in a friendly, motivational way
5. Identify interesting patterns, achievements, or areas for improvement

When analyzing workout data, consider:
- Progress over time (strength gains, volume increases)
- Exercise variety and muscle group balance
- Frequency and consistency patterns
- Performance metrics and personal records
- Training volume and intensity

Always be encouraging and focus on helping the user improve their fitness journey.`

func (h *Handler) buildPrompt(question string, sql *models.QueryResult, search *models.SearchResult) string {
	parts := []string{
		fmt.Sprintf("User Question: %s", question),
		"\n--- SQL Query Results ---",
	}

	if sql != nil {
		if sql.OK() {
			parts = append(parts, fmt.Sprintf("Query returned %d results", sql.Count))
			if len(sql.Results) > 0 {
				data, _ := json.MarshalIndent(sql.Results, "", "  ")
				parts = append(parts, "Data:", string(data))
			} else if sql.Aggregate && sql.Value == nil {
				parts = append(parts, "Result: null")
			} else if sql.Value != nil {
				parts = append(parts, fmt.Sprintf("Result: %v", sql.Value))
			}
		} else {
			message := sql.Message
			if message == "" {
				message = "Unknown error"
			}
			parts = append(parts, fmt.Sprintf("SQL Error: %s", message))
		}
	}

	if search != nil && search.OK() {
		parts = append(parts,
			"\n--- Search Results ---",
			fmt.Sprintf("Found %d relevant entries", search.ReturnedCount),
		)
		if exercises := topExercises(search.Results, h.config.TopExercises); len(exercises) > 0 {
			parts = append(parts, fmt.Sprintf("Top exercises: %s", strings.Join(exercises, ", ")))
		}
	}

	parts = append(parts,
		"\nPlease provide an insightful analysis with:",
		"1. A clear answer to the user's question",
		"2. Key insights and patterns from the data",
		"3. Actionable recommendations for improvement",
		"4. Motivational observations about their progress",
	)
	return strings.Join(parts, "\n")
}

// topExercises returns the distinct exercise names among the first n hits, in order.
func topExercises(hits []models.SearchHit, n int) []string {
	if len(hits) > n {
		hits = hits[:n]
	}
	seen := make(map[string]bool, len(hits))
	names := make([]string, 0, len(hits))
	for _, hit := range hits {
		if hit.Exercise == "" || seen[hit.Exercise] {
			continue
		}
		seen[hit.Exercise] = true
		names = append(names, hit.Exercise)
	}
	return names
}
