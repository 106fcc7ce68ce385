// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "workout-insights/internal/common/errors"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultSystemMessage = "You are an AI assistant that helps people find information about their workouts."

	DefaultTemplateSystemMessage = `You generate fitness document templates.
Respond with a JSON object wrapped in a json code block, in the form
{"template": [{"section_title": string, "section_description": string}]}.
Every section_description must explain what the section covers and reference the workout data insights provided.`

	DefaultTitlePrompt = `Summarize the conversation so far into a 4-word or less title. Do not use any quotation marks or punctuation. Respond with a json object in the format {"title": string}. Do not include any other commentary or description.`

	DefaultGenerateSectionContent = `Help the user generate content for a section in a fitness document. The user has provided a section title and a brief description of the section. Use the workout data available to you to produce a detailed, factual section body. Do not include the section title in the output.`
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml and applies env overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	bindEnv(v)

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // environment overlay is optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Booleans need registered defaults so that AutomaticEnv can see them and
	// so that an absent key is distinguishable from false.
	v.SetDefault("pipeline.enabled", true)
	v.SetDefault("pipeline.use_search", true)
	v.SetDefault("chat_history.enabled", true)
	v.SetDefault("chat_history.feedback", true)
	v.SetDefault("llm.stream", true)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads the first .env found walking up from the working directory.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env", // tests in test/e2e/
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal {
				v.Set(key, expanded)
			}
		}
	}
}

// overrideEmptyConfig fills values still empty after expansion from well-known variable names.
func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.LLM.APIKey, "AZURE_OPENAI_KEY", "AZURE_OPENAI_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY")
	setIfEmpty(&cfg.LLM.Endpoint, "AZURE_OPENAI_ENDPOINT", "OPENAI_BASE_URL")
	setIfEmpty(&cfg.LLM.APIVersion, "AZURE_OPENAI_API_VERSION", "AZURE_OPENAI_PREVIEW_API_VERSION")
	setIfEmpty(&cfg.LLM.ChatDeployment, "AZURE_OPENAI_CHAT_DEPLOYMENT", "AZURE_OPENAI_MODEL")
	setIfEmpty(&cfg.LLM.EmbeddingDeployment, "AZURE_OPENAI_EMBEDDING_DEPLOYMENT")
	setIfEmpty(&cfg.LLM.Prompts.SystemMessage, "AZURE_OPENAI_SYSTEM_MESSAGE")
	setIfEmpty(&cfg.LLM.Prompts.TemplateSystemMessage, "AZURE_OPENAI_TEMPLATE_SYSTEM_MESSAGE")
	setIfEmpty(&cfg.LLM.Prompts.TitlePrompt, "AZURE_OPENAI_TITLE_PROMPT")
	setIfEmpty(&cfg.LLM.Prompts.GenerateSectionContent, "AZURE_OPENAI_GENERATE_SECTION_CONTENT_PROMPT")

	setIfEmpty(&cfg.Pipeline.Endpoint, "PROMPTFLOW_ENDPOINT")
	setIfEmpty(&cfg.Pipeline.APIKey, "PROMPTFLOW_API_KEY")

	setIfEmpty(&cfg.Database.Elasticsearch.APIKey, "ELASTICSEARCH_API_KEY")
	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
}

func setIfEmpty(dst *string, envNames ...string) {
	if *dst != "" {
		return
	}
	for _, name := range envNames {
		if val := os.Getenv(name); val != "" {
			*dst = val
			return
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "workout-insights"
	}

	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30000
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 180000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30000
	}
	if cfg.Server.SampleUserID == "" {
		cfg.Server.SampleUserID = "00000000-0000-0000-0000-000000000000"
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "azure"
	}
	if cfg.LLM.APIVersion == "" {
		cfg.LLM.APIVersion = "2024-05-01-preview"
	}
	if cfg.LLM.EmbeddingDeployment == "" {
		cfg.LLM.EmbeddingDeployment = "text-embedding-3-large"
		if cfg.LLM.Provider == "gemini" {
			cfg.LLM.EmbeddingDeployment = "text-embedding-004"
		}
	}
	if cfg.LLM.ChatDeployment == "" && cfg.LLM.Provider == "gemini" {
		cfg.LLM.ChatDeployment = "gemini-1.5-flash"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 120000
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1000
	}
	if cfg.LLM.Prompts.SystemMessage == "" {
		cfg.LLM.Prompts.SystemMessage = DefaultSystemMessage
	}
	if cfg.LLM.Prompts.TemplateSystemMessage == "" {
		cfg.LLM.Prompts.TemplateSystemMessage = DefaultTemplateSystemMessage
	}
	if cfg.LLM.Prompts.TitlePrompt == "" {
		cfg.LLM.Prompts.TitlePrompt = DefaultTitlePrompt
	}
	if cfg.LLM.Prompts.GenerateSectionContent == "" {
		cfg.LLM.Prompts.GenerateSectionContent = DefaultGenerateSectionContent
	}

	if cfg.Workouts.Table == "" {
		cfg.Workouts.Table = "workouts"
	}
	if len(cfg.Workouts.CategoricalFields) == 0 {
		cfg.Workouts.CategoricalFields = []string{"Exercise", "ExType"}
	}
	if cfg.Workouts.DistinctLimit == 0 {
		cfg.Workouts.DistinctLimit = 100
	}
	if cfg.Workouts.ResultLimit == 0 {
		cfg.Workouts.ResultLimit = 100
	}

	if cfg.Search.Backend == "" {
		cfg.Search.Backend = "elasticsearch"
	}
	if cfg.Search.Index == "" {
		cfg.Search.Index = "workout-index"
	}
	if cfg.Search.VectorField == "" {
		cfg.Search.VectorField = "Embedding"
	}
	if cfg.Search.SemanticConfig == "" {
		cfg.Search.SemanticConfig = "workout-semantic-config"
	}
	if cfg.Search.Dimensions == 0 {
		cfg.Search.Dimensions = 3072
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 20
	}
	if cfg.Search.NumCandidates == 0 {
		cfg.Search.NumCandidates = 100
	}
	if cfg.Search.ReturnLimit == 0 {
		cfg.Search.ReturnLimit = 10
	}
	if cfg.Search.BatchSize == 0 {
		cfg.Search.BatchSize = 100
	}

	if cfg.SchemaCache.Backend == "" {
		cfg.SchemaCache.Backend = "memory"
	}
	if cfg.SchemaCache.Key == "" {
		cfg.SchemaCache.Key = "workouts:schema"
	}

	if cfg.Pipeline.SearchType == "" {
		cfg.Pipeline.SearchType = "hybrid"
	}
	if cfg.Pipeline.Timeout == 0 {
		cfg.Pipeline.Timeout = 120000
	}

	if cfg.UI.Title == "" {
		cfg.UI.Title = "Workout Insights"
	}
	if cfg.UI.ChatTitle == "" {
		cfg.UI.ChatTitle = "Start chatting"
	}
	if cfg.UI.ChatDesc == "" {
		cfg.UI.ChatDesc = "Ask about your workouts or draft a fitness report"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Database.Postgres.Host == "" {
		return apperrors.NewConfigurationMissingError("database.postgres.host")
	}
	if cfg.Database.Postgres.Database == "" {
		return apperrors.NewConfigurationMissingError("database.postgres.database")
	}
	if cfg.Database.Postgres.User == "" {
		return apperrors.NewConfigurationMissingError("database.postgres.user")
	}

	switch cfg.LLM.Provider {
	case "azure", "openai", "gemini":
	default:
		return fmt.Errorf("llm.provider must be one of azure, openai, gemini (got %q)", cfg.LLM.Provider)
	}
	if cfg.LLM.APIKey == "" {
		return apperrors.NewConfigurationMissingError("llm.api_key")
	}
	if cfg.LLM.Provider == "azure" && cfg.LLM.Endpoint == "" {
		return apperrors.NewConfigurationMissingError("llm.endpoint").WithMetadata("provider", "azure")
	}
	if cfg.LLM.ChatDeployment == "" {
		return apperrors.NewConfigurationMissingError("llm.chat_deployment")
	}

	switch cfg.Search.Backend {
	case "elasticsearch":
		if len(cfg.Database.Elasticsearch.Addresses) == 0 && cfg.Database.Elasticsearch.URL == "" {
			return apperrors.NewConfigurationMissingError("database.elasticsearch.url")
		}
	case "pgvector":
	default:
		return fmt.Errorf("search.backend must be elasticsearch or pgvector (got %q)", cfg.Search.Backend)
	}

	switch cfg.SchemaCache.Backend {
	case "memory":
	case "redis":
		if cfg.Database.Redis.Address == "" {
			return apperrors.NewConfigurationMissingError("database.redis.address").WithMetadata("schema_cache", "redis")
		}
	default:
		return fmt.Errorf("schema_cache.backend must be memory or redis (got %q)", cfg.SchemaCache.Backend)
	}

	switch cfg.Pipeline.SearchType {
	case "semantic", "vector", "hybrid", "keyword":
	default:
		return fmt.Errorf("pipeline.search_type %q is not supported", cfg.Pipeline.SearchType)
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
