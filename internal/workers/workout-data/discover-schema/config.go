// internal/workers/workout-data/discover-schema/config.go
package discoverschema

import (
	"time"

	"workout-insights/internal/common/config"
)

type Config struct {
	Table             string
	CategoricalFields []string
	DistinctLimit     int
	SampleValueLength int
	Timeout           time.Duration
}

func LoadConfig(cfg config.WorkoutsConfig) *Config {
	c := &Config{
		Table:             cfg.Table,
		CategoricalFields: cfg.CategoricalFields,
		DistinctLimit:     cfg.DistinctLimit,
		SampleValueLength: 50,
		Timeout:           30 * time.Second,
	}
	if c.Table == "" {
		c.Table = "workouts"
	}
	if len(c.CategoricalFields) == 0 {
		c.CategoricalFields = []string{"Exercise", "ExType"}
	}
	if c.DistinctLimit == 0 {
		c.DistinctLimit = 100
	}
	return c
}
