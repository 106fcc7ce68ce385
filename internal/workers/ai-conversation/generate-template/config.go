// internal/workers/ai-conversation/generate-template/config.go
package generatetemplate

import (
	"time"

	"workout-insights/internal/common/config"
)

type Config struct {
	SystemMessage string
	Temperature   float32
	MaxTokens     int
	Timeout       time.Duration
}

func LoadConfig(cfg config.LLMConfig) *Config {
	system := cfg.Prompts.TemplateSystemMessage
	if system == "" {
		system = config.DefaultTemplateSystemMessage
	}
	timeout := config.GetDuration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Config{
		SystemMessage: system,
		Temperature:   0.7,
		MaxTokens:     1500,
		Timeout:       timeout,
	}
}
