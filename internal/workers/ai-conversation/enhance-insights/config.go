// internal/workers/ai-conversation/enhance-insights/config.go
package enhanceinsights

import (
	"time"

	"workout-insights/internal/common/config"
)

type Config struct {
	Temperature  float32
	MaxTokens    int
	TopExercises int
	Timeout      time.Duration
}

func LoadConfig(cfg config.LLMConfig) *Config {
	timeout := config.GetDuration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Config{
		Temperature:  0.7,
		MaxTokens:    1000,
		TopExercises: 5,
		Timeout:      timeout,
	}
}
