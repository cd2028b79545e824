package types

import "time"

// Config is the top-level configuration loaded by the CLI from the config
// file, DINOWIKI_* environment variables and flags.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`

	Server ServerConfig `json:"server" yaml:"server" mapstructure:"server"`
	Store  StoreConfig  `json:"store" yaml:"store" mapstructure:"store"`
	Search SearchConfig `json:"search" yaml:"search" mapstructure:"search"`
	Agent  AgentConfig  `json:"agent" yaml:"agent" mapstructure:"agent"`
}

// ServerConfig holds settings for the HTTP server.
type ServerConfig struct {
	// Addr is the listen address (default ":3000").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" mapstructure:"cors_origins"`

	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout" mapstructure:"write_timeout"`

	// ResearchRate is the sustained number of research requests per second
	// accepted across all clients. Zero disables the limit.
	ResearchRate float64 `json:"research_rate" yaml:"research_rate" mapstructure:"research_rate"`

	// ResearchBurst is the token bucket size for research requests.
	ResearchBurst int `json:"research_burst" yaml:"research_burst" mapstructure:"research_burst"`
}

// StoreDriver selects the record store implementation.
type StoreDriver string

const (
	DriverSQLite   StoreDriver = "sqlite"
	DriverPostgres StoreDriver = "postgres"
)

// StoreConfig holds settings for the record store.
type StoreConfig struct {
	// Driver is sqlite (default) or postgres.
	Driver StoreDriver `json:"driver" yaml:"driver" mapstructure:"driver"`

	// Path is the sqlite database file (default "data/dinowiki.db").
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// DSN is the Postgres connection string.
	DSN string `json:"dsn,omitempty" yaml:"dsn,omitempty" mapstructure:"dsn"`
}

// CacheKind selects the search response cache.
type CacheKind string

const (
	CacheNone   CacheKind = "none"
	CacheMemory CacheKind = "memory"
	CacheRedis  CacheKind = "redis"
)

// SearchConfig holds settings for the web search client.
type SearchConfig struct {
	// MaxResults caps the results of a basic search (default 2).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`

	// Cache selects none (default), memory or redis.
	Cache CacheKind `json:"cache" yaml:"cache" mapstructure:"cache"`

	// CacheTTL is how long a cached search response stays valid (default 1h).
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl" mapstructure:"cache_ttl"`

	// RedisAddr is the redis address used when Cache is redis.
	RedisAddr string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty" mapstructure:"redis_addr"`
}

// LLMProvider selects the chat-completion backend.
type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderGemini LLMProvider = "gemini"
)

// AgentConfig holds the research agent settings. Zero values mean "not set"
// and are resolved from the environment or defaults by the agent.
type AgentConfig struct {
	// LLMProvider is openai (default) or gemini.
	LLMProvider LLMProvider `json:"llm_provider" yaml:"llm_provider" mapstructure:"llm_provider"`

	OpenAIAPIKey  string `json:"openai_api_key,omitempty" yaml:"openai_api_key,omitempty" mapstructure:"openai_api_key"`
	OpenAIModel   string `json:"openai_model" yaml:"openai_model" mapstructure:"openai_model"`
	OpenAIBaseURL string `json:"openai_base_url,omitempty" yaml:"openai_base_url,omitempty" mapstructure:"openai_base_url"`

	GeminiAPIKey string `json:"gemini_api_key,omitempty" yaml:"gemini_api_key,omitempty" mapstructure:"gemini_api_key"`
	GeminiModel  string `json:"gemini_model" yaml:"gemini_model" mapstructure:"gemini_model"`

	TavilyAPIKey string `json:"tavily_api_key,omitempty" yaml:"tavily_api_key,omitempty" mapstructure:"tavily_api_key"`

	// BackendURL is the base URL of the record store REST API.
	BackendURL string `json:"backend_url" yaml:"backend_url" mapstructure:"backend_url"`

	// MaxRetries is the attempt budget for each pipeline step (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`

	// RetryDelay is the fixed pause between attempts (default 2s).
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay" mapstructure:"retry_delay"`

	// Timeout is the per-request transport timeout (default 60s).
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`

	// IncludeFossils adds the fossil search, extraction and save steps.
	// nil means not set; an explicit false overrides the environment.
	IncludeFossils *bool `json:"include_fossils" yaml:"include_fossils" mapstructure:"include_fossils"`

	// SearchMaxResults caps the results of a basic search (default 2).
	SearchMaxResults int `json:"search_max_results" yaml:"search_max_results" mapstructure:"search_max_results"`
}

// FossilsEnabled reports whether IncludeFossils is set to true.
func (c AgentConfig) FossilsEnabled() bool {
	return c.IncludeFossils != nil && *c.IncludeFossils
}
