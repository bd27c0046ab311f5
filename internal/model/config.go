package model

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds the complete claimtrust configuration
type Config struct {
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Search       SearchConfig       `yaml:"search" mapstructure:"search"`
	Embedding    EmbeddingConfig    `yaml:"embedding" mapstructure:"embedding"`
	NLI          NLIConfig          `yaml:"nli" mapstructure:"nli"`
	Translate    TranslateConfig    `yaml:"translate" mapstructure:"translate"`
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	Scoring      ScoringConfig      `yaml:"scoring" mapstructure:"scoring"`
	Sources      SourcesConfig      `yaml:"sources" mapstructure:"sources"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Output       OutputConfig       `yaml:"output" mapstructure:"output"`
	Logging      LoggingConfig      `yaml:"logging" mapstructure:"logging"`
}

// HTTPConfig configures outbound article fetching
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent" validate:"required"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes" validate:"gt=0"`
	InsecureTLS   bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CacheConfig configures the keyword-set article cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir" validate:"required_if=Enabled true"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	MaxAge    time.Duration `yaml:"max_age" mapstructure:"max_age"` // Entries older than this are pruned (0 = keep forever)
	Floor     float64       `yaml:"similarity_floor" mapstructure:"similarity_floor" validate:"gte=0,lte=1"`
	PruneCron string        `yaml:"prune_schedule" mapstructure:"prune_schedule"`
}

// SearchConfig configures news retrieval
type SearchConfig struct {
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint" validate:"required,url"`
	Language string `yaml:"language" mapstructure:"language" validate:"required"`
	Region   string `yaml:"region" mapstructure:"region" validate:"required"`
	Pages    int    `yaml:"pages" mapstructure:"pages" validate:"gte=1,lte=10"`
}

// EmbeddingConfig configures the sentence embedding backend
type EmbeddingConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider" validate:"oneof=openai ollama"`
	Model    string `yaml:"model" mapstructure:"model" validate:"required"`
	BaseURL  string `yaml:"base_url,omitempty" mapstructure:"base_url"`
	APIKey   string `yaml:"-" mapstructure:"api_key"`
	Timeout  int    `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// NLIConfig configures the entailment backend
type NLIConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider" validate:"oneof=http llm"`
	Endpoint string `yaml:"endpoint,omitempty" mapstructure:"endpoint" validate:"required_if=Provider http"`
	APIKey   string `yaml:"-" mapstructure:"api_key"`
	MaxRunes int    `yaml:"max_runes" mapstructure:"max_runes" validate:"gte=0"`
	Timeout  int    `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// TranslateConfig configures the translation service
type TranslateConfig struct {
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint" validate:"required,url"`
	APIKey   string `yaml:"-" mapstructure:"api_key"`
	Target   string `yaml:"target" mapstructure:"target" validate:"required"`
	Timeout  int    `yaml:"timeout" mapstructure:"timeout"` // seconds
}

// LLMConfig configures the chat model used for claim/keyword extraction
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" (disabled)
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"-" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
	MaxKeywords int     `yaml:"max_keywords" mapstructure:"max_keywords" validate:"gte=1,lte=10"`
}

// ScoringConfig configures evidence selection and score aggregation
type ScoringConfig struct {
	TopK            int     `yaml:"top_k" mapstructure:"top_k" validate:"gte=1"`
	SimilarityFloor float64 `yaml:"similarity_floor" mapstructure:"similarity_floor" validate:"gte=0,lte=1"`
	Sharpness       float64 `yaml:"sharpness" mapstructure:"sharpness" validate:"gt=0"`
}

// SourcesConfig lists outlet domains per tier. A domain also matches its
// subdomains. Overrides pin exact hosts and win over the lists.
type SourcesConfig struct {
	OfficialDomains []string         `yaml:"official_domains" mapstructure:"official_domains"`
	PressDomains    []string         `yaml:"press_domains" mapstructure:"press_domains"`
	Overrides       []SourceOverride `yaml:"overrides,omitempty" mapstructure:"overrides" validate:"dive"`
}

// SourceOverride pins one host to a tier
type SourceOverride struct {
	Host string `yaml:"host" mapstructure:"host" validate:"required"`
	Tier string `yaml:"tier" mapstructure:"tier" validate:"oneof=official press other"`
}

// ConcurrencyConfig configures batch parallelism
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers" validate:"gte=1"`
}

// RateLimitingConfig configures per-host request pacing
type RateLimitingConfig struct {
	RequestsPerSecond float64    `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gt=0"`
	BurstSize         int        `yaml:"burst_size" mapstructure:"burst_size" validate:"gte=1"`
	Hosts             []HostRate `yaml:"hosts,omitempty" mapstructure:"hosts" validate:"dive"`
}

// HostRate overrides the default pacing for one host
type HostRate struct {
	Host              string  `yaml:"host" mapstructure:"host" validate:"required"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gt=0"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size" validate:"gte=1"`
}

// OutputConfig configures report rendering
type OutputConfig struct {
	Verbose       bool `yaml:"verbose" mapstructure:"verbose"`
	IncludeFooter bool `yaml:"include_footer" mapstructure:"include_footer"`
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=console json"`
	File   string `yaml:"file,omitempty" mapstructure:"file"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:       20 * time.Second,
			UserAgent:     "claimtrust/0.1 (+https://github.com/ppiankov/claimtrust)",
			MaxBodyBytes:  2_000_000,
			RespectRobots: true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       defaultCacheDir(),
			MemoryTTL: 30 * time.Minute,
			Floor:     0.3,
		},
		Search: SearchConfig{
			Endpoint: "https://news.google.com/rss/search",
			Language: "ko",
			Region:   "KR",
			Pages:    1,
		},
		Embedding: EmbeddingConfig{
			Provider: "ollama",
			Model:    "bge-m3",
			BaseURL:  "http://localhost:11434",
			Timeout:  60,
		},
		NLI: NLIConfig{
			Provider: "http",
			Endpoint: "https://api-inference.huggingface.co/models/FacebookAI/roberta-large-mnli",
			MaxRunes: 1500,
			Timeout:  60,
		},
		Translate: TranslateConfig{
			Endpoint: "https://translation.googleapis.com/language/translate/v2",
			Target:   "en",
			Timeout:  15,
		},
		LLM: LLMConfig{
			Provider:    "",
			Timeout:     30,
			MaxTokens:   800,
			Temperature: 0.2,
			MaxKeywords: 6,
		},
		Scoring: ScoringConfig{
			TopK:            3,
			SimilarityFloor: 0.5,
			Sharpness:       15,
		},
		Sources: SourcesConfig{
			OfficialDomains: []string{
				"korea.kr",
				"go.kr",
				"gov",
				"europa.eu",
				"who.int",
			},
			PressDomains: []string{
				"yna.co.kr",
				"newsis.com",
				"news1.kr",
				"kbs.co.kr",
				"imbc.com",
				"sbs.co.kr",
				"chosun.com",
				"joongang.co.kr",
				"donga.com",
				"hani.co.kr",
				"khan.co.kr",
				"reuters.com",
				"apnews.com",
				"bbc.co.uk",
				"bbc.com",
			},
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond: 2,
			BurstSize:         4,
			Hosts: []HostRate{
				{Host: "news.google.com", RequestsPerSecond: 0.5, BurstSize: 2},
			},
		},
		Output: OutputConfig{
			IncludeFooter: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the configuration against its constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

func defaultCacheDir() string {
	return ".claimtrust-cache"
}
