// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"

	"github.com/LiangCY/dinosaur-wiki/internal/extract"
	"github.com/LiangCY/dinosaur-wiki/internal/logging"
	"github.com/LiangCY/dinosaur-wiki/internal/retry"
	"github.com/LiangCY/dinosaur-wiki/internal/search"
	"github.com/LiangCY/dinosaur-wiki/pkg/types"
)

// Options configures the agent. Zero fields are resolved from the
// environment, then from defaults.
type Options = types.AgentConfig

// Defaults applied after explicit options and the environment.
const (
	DefaultBackendURL = "http://localhost:3000"
	DefaultTimeout    = 60 * time.Second
	DefaultLogLevel   = "info"
)

// envNames maps option keys to the environment variables that can set them.
// Durations are read from the environment as milliseconds.
var envNames = map[string]string{
	"llm_provider":       "AI_AGENT_LLM_PROVIDER",
	"openai_api_key":     "OPENAI_API_KEY",
	"openai_model":       "OPENAI_MODEL",
	"openai_base_url":    "OPENAI_BASE_URL",
	"gemini_api_key":     "GEMINI_API_KEY",
	"gemini_model":       "GEMINI_MODEL",
	"tavily_api_key":     "TAVILY_API_KEY",
	"backend_url":        "AI_AGENT_BACKEND_URL",
	"max_retries":        "AI_AGENT_MAX_RETRIES",
	"retry_delay_ms":     "AI_AGENT_RETRY_DELAY",
	"timeout_ms":         "AI_AGENT_TIMEOUT",
	"log_level":          "AI_AGENT_LOG_LEVEL",
	"include_fossils":    "AI_AGENT_INCLUDE_FOSSILS",
	"search_max_results": "AI_AGENT_SEARCH_MAX_RESULTS",
}

// ConfigError reports an option that is missing or malformed. It is
// returned at construction time and never retried.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// Resolve fills every zero field of explicit from the environment or the
// defaults, in that order, and validates the result.
func Resolve(explicit Options) (Options, error) {
	v := viper.New()

	v.SetDefault("llm_provider", string(types.ProviderOpenAI))
	v.SetDefault("openai_model", extract.DefaultOpenAIModel)
	v.SetDefault("gemini_model", extract.DefaultGeminiModel)
	v.SetDefault("backend_url", DefaultBackendURL)
	v.SetDefault("max_retries", retry.DefaultMaxAttempts)
	v.SetDefault("retry_delay_ms", retry.DefaultDelay.Milliseconds())
	v.SetDefault("timeout_ms", DefaultTimeout.Milliseconds())
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("include_fossils", false)
	v.SetDefault("search_max_results", search.DefaultMaxResults)

	for key, env := range envNames {
		if err := v.BindEnv(key, env); err != nil {
			return Options{}, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	setString(v, "llm_provider", string(explicit.LLMProvider))
	setString(v, "openai_api_key", explicit.OpenAIAPIKey)
	setString(v, "openai_model", explicit.OpenAIModel)
	setString(v, "openai_base_url", explicit.OpenAIBaseURL)
	setString(v, "gemini_api_key", explicit.GeminiAPIKey)
	setString(v, "gemini_model", explicit.GeminiModel)
	setString(v, "tavily_api_key", explicit.TavilyAPIKey)
	setString(v, "backend_url", explicit.BackendURL)
	setString(v, "log_level", explicit.LogLevel)
	if explicit.MaxRetries > 0 {
		v.Set("max_retries", explicit.MaxRetries)
	}
	if explicit.RetryDelay > 0 {
		v.Set("retry_delay_ms", explicit.RetryDelay.Milliseconds())
	}
	if explicit.Timeout > 0 {
		v.Set("timeout_ms", explicit.Timeout.Milliseconds())
	}
	if explicit.IncludeFossils != nil {
		v.Set("include_fossils", *explicit.IncludeFossils)
	}
	if explicit.SearchMaxResults > 0 {
		v.Set("search_max_results", explicit.SearchMaxResults)
	}

	opts := Options{
		LLMProvider:      types.LLMProvider(v.GetString("llm_provider")),
		OpenAIAPIKey:     v.GetString("openai_api_key"),
		OpenAIModel:      v.GetString("openai_model"),
		OpenAIBaseURL:    v.GetString("openai_base_url"),
		GeminiAPIKey:     v.GetString("gemini_api_key"),
		GeminiModel:      v.GetString("gemini_model"),
		TavilyAPIKey:     v.GetString("tavily_api_key"),
		BackendURL:       v.GetString("backend_url"),
		MaxRetries:       v.GetInt("max_retries"),
		RetryDelay:       time.Duration(v.GetInt64("retry_delay_ms")) * time.Millisecond,
		Timeout:          time.Duration(v.GetInt64("timeout_ms")) * time.Millisecond,
		LogLevel:         v.GetString("log_level"),
		IncludeFossils:   boolPtr(v.GetBool("include_fossils")),
		SearchMaxResults: v.GetInt("search_max_results"),
	}

	// A sub-millisecond explicit delay would round to zero above.
	if explicit.RetryDelay > 0 {
		opts.RetryDelay = explicit.RetryDelay
	}
	if explicit.Timeout > 0 {
		opts.Timeout = explicit.Timeout
	}

	return opts, validate(opts)
}

func boolPtr(b bool) *bool { return &b }

func setString(v *viper.Viper, key, val string) {
	if val != "" {
		v.Set(key, val)
	}
}

// validate checks the options New cannot work without.
func validate(o Options) error {
	switch o.LLMProvider {
	case types.ProviderOpenAI:
		if o.OpenAIAPIKey == "" {
			return &ConfigError{Field: "openai_api_key", Message: "OpenAI API Key 是必需的"}
		}
	case types.ProviderGemini:
		if o.GeminiAPIKey == "" {
			return &ConfigError{Field: "gemini_api_key", Message: "Gemini API Key 是必需的"}
		}
	default:
		return &ConfigError{Field: "llm_provider", Message: fmt.Sprintf("不支持的模型提供方: %q", o.LLMProvider)}
	}
	if o.TavilyAPIKey == "" {
		return &ConfigError{Field: "tavily_api_key", Message: "Tavily API Key 是必需的"}
	}
	if o.BackendURL == "" {
		return &ConfigError{Field: "backend_url", Message: "后端 URL 是必需的"}
	}
	if u, err := url.Parse(o.BackendURL); err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigError{Field: "backend_url", Message: fmt.Sprintf("后端 URL 无效: %q", o.BackendURL)}
	}
	if o.MaxRetries <= 0 {
		return &ConfigError{Field: "max_retries", Message: "最大重试次数必须大于 0"}
	}
	if _, err := logging.ParseLevel(o.LogLevel); err != nil {
		return &ConfigError{Field: "log_level", Message: err.Error()}
	}
	return nil
}

// redact hides all but the last four characters of a secret.
func redact(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

// Redacted returns o with its API keys masked.
func Redacted(o Options) Options {
	o.OpenAIAPIKey = redact(o.OpenAIAPIKey)
	o.GeminiAPIKey = redact(o.GeminiAPIKey)
	o.TavilyAPIKey = redact(o.TavilyAPIKey)
	return o
}
