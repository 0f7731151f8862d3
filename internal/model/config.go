package model

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the complete Evalia configuration
type Config struct {
	LLM          LLMConfig          `yaml:"llm" mapstructure:"llm"`
	HTTP         HTTPConfig         `yaml:"http" mapstructure:"http"`
	Fetch        FetchConfig        `yaml:"fetch" mapstructure:"fetch"`
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Memory       MemoryConfig       `yaml:"memory" mapstructure:"memory"`
	Sources      SourcesConfig      `yaml:"sources" mapstructure:"sources"`
	Authority    AuthorityConfig    `yaml:"authority" mapstructure:"authority"`
	Concurrency  ConcurrencyConfig  `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitingConfig `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Logging      LoggingConfig      `yaml:"logging" mapstructure:"logging"`
	Server       ServerConfig       `yaml:"server" mapstructure:"server"`
	Report       ReportConfig       `yaml:"report" mapstructure:"report"`
}

// LLMConfig configures the completion provider
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // openai, anthropic, google, ollama
	Model       string  `yaml:"model" mapstructure:"model"`
	APIKey      string  `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout     int     `yaml:"timeout" mapstructure:"timeout"` // seconds
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	Retries     int     `yaml:"retries" mapstructure:"retries"` // Extra attempts after a malformed response
}

// HTTPConfig configures outbound HTTP for URL fetches and source checks
type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	HTTPProxy    string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy   string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy      string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// FetchConfig controls how auxiliary URL text is gathered
type FetchConfig struct {
	MaxChars      int  `yaml:"max_chars" mapstructure:"max_chars"`
	RespectRobots bool `yaml:"respect_robots" mapstructure:"respect_robots"`
	Readability   bool `yaml:"readability" mapstructure:"readability"`
}

// CacheConfig controls the fetched-text cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// MemoryConfig locates the memory log
type MemoryConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// SourcesConfig controls post-scoring checks of suggested sources
type SourcesConfig struct {
	Verify  bool          `yaml:"verify" mapstructure:"verify"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// AuthorityConfig holds the domain lists used to tier sources
type AuthorityConfig struct {
	PrimaryDomains   []string          `yaml:"primary_domains" mapstructure:"primary_domains"`
	SecondaryDomains []string          `yaml:"secondary_domains" mapstructure:"secondary_domains"`
	DomainMap        map[string]string `yaml:"domain_map,omitempty" mapstructure:"domain_map"`
	PathPatterns     []PathPattern     `yaml:"path_patterns,omitempty" mapstructure:"path_patterns"`
}

// PathPattern assigns a tier to URLs whose path matches Pattern
type PathPattern struct {
	Pattern string `yaml:"pattern" mapstructure:"pattern"`
	Tier    string `yaml:"tier" mapstructure:"tier"`
}

// ConcurrencyConfig bounds parallel work
type ConcurrencyConfig struct {
	Workers           int `yaml:"workers" mapstructure:"workers"`                       // Batch evaluations in flight
	ValidationWorkers int `yaml:"validation_workers" mapstructure:"validation_workers"` // Source checks in flight
}

// RateLimitingConfig throttles outbound requests
type RateLimitingConfig struct {
	RequestsPerSecond    float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"` // Per fetched host
	BurstSize            int     `yaml:"burst_size" mapstructure:"burst_size"`
	LLMRequestsPerSecond float64 `yaml:"llm_requests_per_second" mapstructure:"llm_requests_per_second"`
}

// LoggingConfig controls the process logger
type LoggingConfig struct {
	Level      string `yaml:"level" mapstructure:"level"`
	File       string `yaml:"file" mapstructure:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	Console    bool   `yaml:"console" mapstructure:"console"`
}

// ServerConfig configures `evalia serve`
type ServerConfig struct {
	Addr           string `yaml:"addr" mapstructure:"addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

// ReportConfig configures exported artifacts
type ReportConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
	LogoPath  string `yaml:"logo_path,omitempty" mapstructure:"logo_path"`
}

// HomeDir returns the Evalia state directory (~/.evalia), falling back to ./.evalia
func HomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".evalia"
	}
	return filepath.Join(home, ".evalia")
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	dir := HomeDir()
	return &Config{
		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o",
			Timeout:     120,
			MaxTokens:   2000,
			Temperature: 0.1,
			Retries:     2,
		},
		HTTP: HTTPConfig{
			Timeout:      10 * time.Second,
			UserAgent:    "Evalia/0.3 (+https://github.com/ppiankov/evalia)",
			MaxBodyBytes: 2_000_000,
		},
		Fetch: FetchConfig{
			MaxChars:      3000,
			RespectRobots: true,
			Readability:   true,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       filepath.Join(dir, "cache"),
			MemoryTTL: 15 * time.Minute,
			DiskTTL:   24 * time.Hour,
		},
		Memory: MemoryConfig{
			File: filepath.Join(dir, "evalia_memory.json"),
		},
		Sources: SourcesConfig{
			Verify:  false,
			Timeout: 10 * time.Second,
		},
		Authority: AuthorityConfig{
			PrimaryDomains: []string{
				"gov", "gov.uk", "europa.eu", "who.int", "un.org",
				"nih.gov", "cdc.gov", "nasa.gov", "doi.org", "arxiv.org",
				"pubmed.ncbi.nlm.nih.gov", "nature.com", "science.org",
			},
			SecondaryDomains: []string{
				"wikipedia.org", "britannica.com", "reuters.com", "apnews.com",
				"bbc.co.uk", "bbc.com", "nytimes.com", "theguardian.com",
				"snopes.com", "factcheck.org", "politifact.com",
			},
		},
		Concurrency: ConcurrencyConfig{
			Workers:           4,
			ValidationWorkers: 8,
		},
		RateLimiting: RateLimitingConfig{
			RequestsPerSecond:    2,
			BurstSize:            5,
			LLMRequestsPerSecond: 1,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       filepath.Join(dir, "logs", "evalia.log"),
			MaxSizeMB:  5,
			MaxBackups: 3,
			Console:    true,
		},
		Server: ServerConfig{
			Addr:           "127.0.0.1:8501",
			MaxUploadBytes: 10 << 20,
		},
		Report: ReportConfig{
			OutputDir: ".",
		},
	}
}
