package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "workout-insights/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
app:
  name: workout-insights
database:
  postgres:
    host: localhost
    database: fitness
    user: fitness
    password: ${TEST_DB_PASSWORD}
  elasticsearch:
    addresses:
      - http://localhost:9200
llm:
  provider: azure
  endpoint: https://example.openai.azure.com
  api_key: test-key
  chat_deployment: gpt-4o
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "s3cret")

	cfg, err := LoadFromFile(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, "http://localhost:9200", cfg.Database.Elasticsearch.GetURL())

	assert.Equal(t, "workouts", cfg.Workouts.Table)
	assert.Equal(t, []string{"Exercise", "ExType"}, cfg.Workouts.CategoricalFields)
	assert.Equal(t, 100, cfg.Workouts.DistinctLimit)
	assert.Equal(t, 100, cfg.Workouts.ResultLimit)

	assert.Equal(t, "elasticsearch", cfg.Search.Backend)
	assert.Equal(t, "Embedding", cfg.Search.VectorField)
	assert.Equal(t, 3072, cfg.Search.Dimensions)
	assert.Equal(t, 20, cfg.Search.TopK)
	assert.Equal(t, 10, cfg.Search.ReturnLimit)

	assert.True(t, cfg.Pipeline.Enabled)
	assert.True(t, cfg.Pipeline.UseSearch)
	assert.Equal(t, "hybrid", cfg.Pipeline.SearchType)
	assert.True(t, cfg.ChatHistory.Enabled)
	assert.Equal(t, "memory", cfg.SchemaCache.Backend)

	assert.Equal(t, DefaultTitlePrompt, cfg.LLM.Prompts.TitlePrompt)
	assert.Equal(t, 120*time.Second, GetDuration(cfg.LLM.Timeout))
	assert.Equal(t, "00000000-0000-0000-0000-000000000000", cfg.Server.SampleUserID)
}

func TestLoadFromFile_EnvOverrides(t *testing.T) {
	t.Setenv("PIPELINE_ENABLED", "false")
	t.Setenv("PROMPTFLOW_ENDPOINT", "http://127.0.0.1:8081/score")
	t.Setenv("AZURE_OPENAI_TEMPLATE_SYSTEM_MESSAGE", "custom template prompt")

	cfg, err := LoadFromFile(writeConfig(t, baseYAML))
	require.NoError(t, err)

	assert.False(t, cfg.Pipeline.Enabled)
	assert.Equal(t, "http://127.0.0.1:8081/score", cfg.Pipeline.Endpoint)
	assert.Equal(t, "custom template prompt", cfg.LLM.Prompts.TemplateSystemMessage)
}

func TestValidateConfig(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.Database.Postgres = PostgresConfig{Host: "h", Database: "d", User: "u"}
		cfg.Database.Elasticsearch.URL = "http://es:9200"
		cfg.LLM = LLMConfig{Provider: "openai", APIKey: "k", ChatDeployment: "gpt-4o"}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing postgres host",
			mutate:  func(c *Config) { c.Database.Postgres.Host = "" },
			wantErr: "database.postgres.host is not configured",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.LLM.Provider = "local" },
			wantErr: "llm.provider",
		},
		{
			name:    "azure without endpoint",
			mutate:  func(c *Config) { c.LLM.Provider = "azure" },
			wantErr: "llm.endpoint is not configured",
		},
		{
			name:    "redis cache without address",
			mutate:  func(c *Config) { c.SchemaCache.Backend = "redis" },
			wantErr: "database.redis.address is not configured",
		},
		{
			name: "pgvector needs no elasticsearch",
			mutate: func(c *Config) {
				c.Search.Backend = "pgvector"
				c.Database.Elasticsearch.URL = ""
			},
		},
		{
			name:    "unsupported search type",
			mutate:  func(c *Config) { c.Pipeline.SearchType = "fuzzy" },
			wantErr: "pipeline.search_type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := validateConfig(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			if strings.HasSuffix(tt.wantErr, "is not configured") {
				var stdErr *apperrors.StandardError
				require.ErrorAs(t, err, &stdErr)
				assert.Equal(t, apperrors.ErrCodeConfigurationMissing, stdErr.Code)
			}
		})
	}
}
