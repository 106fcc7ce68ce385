// internal/workers/workout-data/search-workouts/config.go
package searchworkouts

import (
	"time"

	"workout-insights/internal/common/config"
)

type Config struct {
	Index          string
	VectorField    string
	SemanticConfig string
	Size           int
	K              int
	NumCandidates  int
	ReturnLimit    int
	Timeout        time.Duration
}

func LoadConfig(cfg config.SearchConfig) *Config {
	c := &Config{
		Index:          cfg.Index,
		VectorField:    cfg.VectorField,
		SemanticConfig: cfg.SemanticConfig,
		Size:           cfg.TopK,
		K:              cfg.TopK,
		NumCandidates:  cfg.NumCandidates,
		ReturnLimit:    cfg.ReturnLimit,
		Timeout:        60 * time.Second,
	}
	if c.Index == "" {
		c.Index = "workout-index"
	}
	if c.VectorField == "" {
		c.VectorField = "Embedding"
	}
	if c.Size <= 0 {
		c.Size = 20
		c.K = 20
	}
	if c.NumCandidates <= 0 {
		c.NumCandidates = 100
	}
	if c.ReturnLimit <= 0 {
		c.ReturnLimit = 10
	}
	return c
}
