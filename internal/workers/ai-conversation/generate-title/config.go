// internal/workers/ai-conversation/generate-title/config.go
package generatetitle

import (
	"time"

	"workout-insights/internal/common/config"
)

type Config struct {
	TitlePrompt   string
	Temperature   float32
	MaxTokens     int
	FallbackRunes int
	Timeout       time.Duration
}

func LoadConfig(cfg config.LLMConfig) *Config {
	prompt := cfg.Prompts.TitlePrompt
	if prompt == "" {
		prompt = config.DefaultTitlePrompt
	}
	return &Config{
		TitlePrompt:   prompt,
		Temperature:   1,
		MaxTokens:     64,
		FallbackRunes: 50,
		Timeout:       30 * time.Second,
	}
}
