// internal/workers/ai-conversation/generate-section/config.go
package generatesection

import (
	"time"

	"workout-insights/internal/common/config"
)

type Config struct {
	SystemMessage       string
	SectionPrompt       string
	FormatTemperature   float32
	FormatMaxTokens     int
	FallbackTemperature float32
	FallbackMaxTokens   int
	Timeout             time.Duration
}

func LoadConfig(cfg config.LLMConfig) *Config {
	c := &Config{
		SystemMessage:       cfg.Prompts.SystemMessage,
		SectionPrompt:       cfg.Prompts.GenerateSectionContent,
		FormatTemperature:   0.7,
		FormatMaxTokens:     800,
		FallbackTemperature: cfg.Temperature,
		FallbackMaxTokens:   cfg.MaxTokens,
		Timeout:             config.GetDuration(cfg.Timeout),
	}
	if c.SystemMessage == "" {
		c.SystemMessage = config.DefaultSystemMessage
	}
	if c.SectionPrompt == "" {
		c.SectionPrompt = config.DefaultGenerateSectionContent
	}
	if c.FallbackTemperature == 0 {
		c.FallbackTemperature = 0.7
	}
	if c.FallbackMaxTokens <= 0 {
		c.FallbackMaxTokens = 1000
	}
	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	return c
}
