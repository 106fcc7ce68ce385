// internal/workers/workout-data/run-query/config.go
package runquery

import (
	"time"

	"workout-insights/internal/common/config"
)

type Config struct {
	ResultLimit int
	Timeout     time.Duration
}

func LoadConfig(cfg config.WorkoutsConfig) *Config {
	limit := cfg.ResultLimit
	if limit <= 0 {
		limit = 100
	}
	return &Config{
		ResultLimit: limit,
		Timeout:     60 * time.Second,
	}
}
