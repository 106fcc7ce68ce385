// internal/workers/workout-data/interpret-query/prompt.go
package interpretquery

import (
	"fmt"
	"sort"
	"strings"

	"workout-insights/internal/models"
)

const userPromptFormat = "Convert this question to a PostgreSQL SQL query: %s"

func buildSystemPrompt(table string, schema *models.SchemaSnapshot, maxExercises int) string {
	if schema == nil {
		return buildFallbackPrompt(table)
	}

	exercises := schema.Categorical("Exercise")
	if len(exercises) > maxExercises {
		exercises = exercises[:maxExercises]
	}

	parts := []string{
		"You are a SQL query generator for a PostgreSQL database that stores workout entries as JSONB documents.",
		"Convert natural language questions into valid PostgreSQL queries.",
		"",
		fmt.Sprintf("The table %s has a single JSONB column named doc. The documents have these fields:", table),
	}
	parts = append(parts, describeFields(schema)...)
	parts = append(parts,
		"",
		"ACTUAL EXERCISE NAMES IN DATABASE: "+quoteList(exercises),
		"ACTUAL EXERCISE TYPES IN DATABASE: "+quoteList(schema.Categorical("ExType")),
		"",
		"CRITICAL: Use EXACT exercise names from the database!",
		"- For \"pushups\" use 'Pushup'",
		"- For \"jumping jacks\" use 'Jumping Jacks'",
		"- For \"bench press\" use 'Bench Press'",
		"- Always match the exact capitalization and spelling from the database",
		"- Compare with doc->>'Exercise' = 'ExactName'",
		"",
		"CRITICAL: doc->>'Field' returns text. Cast numeric fields (Reps, Weight, Set) before arithmetic:",
		fmt.Sprintf("- For counting: SELECT COUNT(*) AS value FROM %s", table),
		fmt.Sprintf("- For summing: SELECT SUM((doc->>'Reps')::numeric) AS value FROM %s", table),
		fmt.Sprintf("- For averaging: SELECT AVG((doc->>'Weight')::numeric) AS value FROM %s", table),
		"",
		"Important PostgreSQL notes:",
		fmt.Sprintf("- Select whole entries with SELECT doc FROM %s", table),
		"- Every aggregate must be a single column aliased AS value",
		"- CRITICAL: DO NOT use ORDER BY clauses",
		"- CRITICAL: Use LIMIT N to restrict results",
		"- For recent data, use LIMIT N without ORDER BY and let the client sort results",
		"",
		"Return ONLY the SQL query without any explanation or markdown formatting.",
	)
	return strings.Join(parts, "\n")
}

func buildFallbackPrompt(table string) string {
	return strings.Join([]string{
		"You are a SQL query generator for a PostgreSQL database that stores workout entries as JSONB documents.",
		"Convert natural language questions into valid PostgreSQL queries.",
		"",
		fmt.Sprintf("The table %s has a single JSONB column named doc with fields like Exercise, Set, Reps, Weight, ExType, ExDate.", table),
		"CRITICAL: doc->>'Field' returns text, cast with ::numeric for numeric operations.",
		"Return aggregates as a single column aliased AS value.",
		"Use exact case-sensitive matching for exercise names.",
		"",
		"Return ONLY the SQL query without any explanation or markdown formatting.",
	}, "\n")
}

func describeFields(schema *models.SchemaSnapshot) []string {
	names := make([]string, 0, len(schema.Fields))
	for name := range schema.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		info := schema.Fields[name]
		lines = append(lines, fmt.Sprintf("- %s: %s (e.g. %q)", name, info.Type, info.SampleValue))
	}
	return lines
}

func quoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = `"` + v + `"`
	}
	return strings.Join(quoted, ", ")
}
