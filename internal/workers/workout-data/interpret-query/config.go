// internal/workers/workout-data/interpret-query/config.go
package interpretquery

import "time"

type Config struct {
	Table           string
	Temperature     float32
	MaxTokens       int
	MaxExerciseList int
	Timeout         time.Duration
}

func LoadConfig(table string) *Config {
	if table == "" {
		table = "workouts"
	}
	return &Config{
		Table:           table,
		Temperature:     0.1,
		MaxTokens:       200,
		MaxExerciseList: 20,
		Timeout:         60 * time.Second,
	}
}
