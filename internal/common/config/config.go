// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Workouts    WorkoutsConfig    `mapstructure:"workouts"`
	Search      SearchConfig      `mapstructure:"search"`
	SchemaCache SchemaCacheConfig `mapstructure:"schema_cache"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	ChatHistory ChatHistoryConfig `mapstructure:"chat_history"`
	UI          UIConfig          `mapstructure:"ui"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address         string `mapstructure:"address"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
	SampleUserID    string `mapstructure:"sample_user_id"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	APIKey    string   `mapstructure:"api_key"`
	URL       string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Model provider ---

// LLMConfig selects the hosted model and carries its prompts.
type LLMConfig struct {
	Provider            string        `mapstructure:"provider"` // azure | openai | gemini
	Endpoint            string        `mapstructure:"endpoint"`
	APIKey              string        `mapstructure:"api_key"`
	APIVersion          string        `mapstructure:"api_version"`
	ChatDeployment      string        `mapstructure:"chat_deployment"`
	EmbeddingDeployment string        `mapstructure:"embedding_deployment"`
	Timeout             int           `mapstructure:"timeout"` // milliseconds
	Stream              bool          `mapstructure:"stream"`
	Temperature         float32       `mapstructure:"temperature"`
	MaxTokens           int           `mapstructure:"max_tokens"`
	Prompts             PromptsConfig `mapstructure:"prompts"`
}

type PromptsConfig struct {
	SystemMessage          string `mapstructure:"system_message"`
	TemplateSystemMessage  string `mapstructure:"template_system_message"`
	TitlePrompt            string `mapstructure:"title_prompt"`
	GenerateSectionContent string `mapstructure:"generate_section_content"`
}

// --- Workout data ---

// WorkoutsConfig describes the document table holding workout records.
type WorkoutsConfig struct {
	Table             string   `mapstructure:"table"`
	CategoricalFields []string `mapstructure:"categorical_fields"`
	DistinctLimit     int      `mapstructure:"distinct_limit"`
	ResultLimit       int      `mapstructure:"result_limit"`
}

// SearchConfig selects and tunes the search index backend.
type SearchConfig struct {
	Backend        string `mapstructure:"backend"` // elasticsearch | pgvector
	Index          string `mapstructure:"index"`
	VectorField    string `mapstructure:"vector_field"`
	SemanticConfig string `mapstructure:"semantic_config"`
	Dimensions     int    `mapstructure:"dimensions"`
	TopK           int    `mapstructure:"top_k"`
	NumCandidates  int    `mapstructure:"num_candidates"`
	ReturnLimit    int    `mapstructure:"return_limit"`
	BatchSize      int    `mapstructure:"batch_size"`
}

type SchemaCacheConfig struct {
	Backend string `mapstructure:"backend"` // memory | redis
	TTL     int    `mapstructure:"ttl"`     // milliseconds, 0 keeps entries until invalidated
	Key     string `mapstructure:"key"`
}

// PipelineConfig points at the enhancer pipeline. An empty endpoint runs it in process.
type PipelineConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Endpoint   string `mapstructure:"endpoint"`
	APIKey     string `mapstructure:"api_key"`
	UseSearch  bool   `mapstructure:"use_search"`
	SearchType string `mapstructure:"search_type"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
}

type ChatHistoryConfig struct {
	Enabled  bool `mapstructure:"enabled"`
	Feedback bool `mapstructure:"feedback"`
}

// UIConfig is served verbatim by /frontend_settings.
type UIConfig struct {
	Title         string `mapstructure:"title" json:"title"`
	ChatTitle     string `mapstructure:"chat_title" json:"chat_title"`
	ChatDesc      string `mapstructure:"chat_description" json:"chat_description"`
	ShowShareBtn  bool   `mapstructure:"show_share_button" json:"show_share_button"`
	Logo          string `mapstructure:"logo" json:"logo,omitempty"`
	SanitizeReply bool   `mapstructure:"sanitize_answer" json:"sanitize_answer"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
