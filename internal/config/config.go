package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the kbroute API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Vector    VectorConfig    `yaml:"vector"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Routing   RoutingConfig   `yaml:"routing"`
	Audit     AuditConfig     `yaml:"audit"`
	Alerts    AlertsConfig    `yaml:"alerts"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, valkey (default: redis)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds storage settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
	// SharedCacheTTLSec bounds the lifetime of vectors in the Redis cache; 0 keeps them forever.
	SharedCacheTTLSec int `yaml:"shared_cache_ttl_sec"`
}

// LLMConfig holds the optional classification enrichment settings.
type LLMConfig struct {
	Enabled        bool    `yaml:"enabled"`
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	TimeoutMs      int     `yaml:"timeout_ms"`
	Retries        uint    `yaml:"retries"`
	RatePerSec     float64 `yaml:"rate_per_sec"`
	Burst          int     `yaml:"burst"`
	WeakConfidence float64 `yaml:"weak_confidence"`
}

// RetrievalConfig holds fusion engine settings.
type RetrievalConfig struct {
	DefaultTopK        int `yaml:"default_top_k"`
	CacheTTLSec        int `yaml:"cache_ttl_sec"`
	CacheSize          int `yaml:"cache_size"`
	EarlyStopHits      int `yaml:"early_stop_hits"`
	TimeoutMs          int `yaml:"timeout_ms"`
	PoolSize           int `yaml:"pool_size"`
	SubstringScanLimit int `yaml:"substring_scan_limit"`
}

// VectorConfig holds ANN backend and HNSW settings.
type VectorConfig struct {
	Backend         string `yaml:"backend"` // redis, qdrant (default: redis)
	EFRuntime       int    `yaml:"ef_runtime"`
	HNSWM           int    `yaml:"hnsw_m"`
	HNSWEFConstruct int    `yaml:"hnsw_ef_construction"`
}

// QdrantConfig holds the Qdrant gRPC backend settings.
type QdrantConfig struct {
	Addr       string `yaml:"addr"`
	Collection string `yaml:"collection"`
}

// RoutingConfig holds template router settings.
type RoutingConfig struct {
	ReviewConfidence   float64  `yaml:"review_confidence"`
	MinAlternatives    int      `yaml:"min_alternatives"`
	UrgentTags         []string `yaml:"urgent_tags"`
	TemplateRefreshSec int      `yaml:"template_refresh_sec"`
}

// AuditConfig holds routing audit sink settings. Empty values disable a sink.
type AuditConfig struct {
	Stream       string `yaml:"stream"`
	StreamMaxLen int64  `yaml:"stream_maxlen"`
	NATSURL      string `yaml:"nats_url"`
	NATSSubject  string `yaml:"nats_subject"`
}

// AlertsConfig holds topic overlay settings.
type AlertsConfig struct {
	Mandatory []string `yaml:"mandatory"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "kb:"
	}
	c.applyEmbeddingDefaults()
	c.applyLLMDefaults()
	c.applyRetrievalDefaults()
	if c.Vector.Backend == "" {
		c.Vector.Backend = "redis"
	}
	if c.Vector.EFRuntime <= 0 {
		c.Vector.EFRuntime = 30
	}
	if c.Vector.HNSWM <= 0 {
		c.Vector.HNSWM = 16
	}
	if c.Vector.HNSWEFConstruct <= 0 {
		c.Vector.HNSWEFConstruct = 200
	}
	if c.Qdrant.Collection == "" {
		c.Qdrant.Collection = "knowledge"
	}
	if c.Routing.ReviewConfidence <= 0 {
		c.Routing.ReviewConfidence = 0.6
	}
	if c.Routing.MinAlternatives <= 0 {
		c.Routing.MinAlternatives = 2
	}
	if len(c.Routing.UrgentTags) == 0 {
		c.Routing.UrgentTags = []string{"urgent", "緊急", "emergency"}
	}
	if c.Routing.TemplateRefreshSec <= 0 {
		c.Routing.TemplateRefreshSec = 60
	}
	if c.Audit.StreamMaxLen <= 0 {
		c.Audit.StreamMaxLen = 100000
	}
	if c.Audit.NATSSubject == "" {
		c.Audit.NATSSubject = "kbroute.routing.audit"
	}
}

func (c *Config) applyEmbeddingDefaults() {
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.CacheSize <= 0 {
		c.Embedding.CacheSize = 10000
	}
}

func (c *Config) applyLLMDefaults() {
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.TimeoutMs <= 0 {
		c.LLM.TimeoutMs = 5000
	}
	if c.LLM.Retries == 0 {
		c.LLM.Retries = 2
	}
	if c.LLM.RatePerSec <= 0 {
		c.LLM.RatePerSec = 5
	}
	if c.LLM.Burst <= 0 {
		c.LLM.Burst = 10
	}
	if c.LLM.WeakConfidence <= 0 {
		c.LLM.WeakConfidence = 0.6
	}
}

func (c *Config) applyRetrievalDefaults() {
	if c.Retrieval.DefaultTopK <= 0 {
		c.Retrieval.DefaultTopK = 4
	}
	if c.Retrieval.CacheTTLSec <= 0 {
		c.Retrieval.CacheTTLSec = 3600
	}
	if c.Retrieval.CacheSize <= 0 {
		c.Retrieval.CacheSize = 1000
	}
	if c.Retrieval.EarlyStopHits <= 0 {
		c.Retrieval.EarlyStopHits = 3
	}
	if c.Retrieval.TimeoutMs <= 0 {
		c.Retrieval.TimeoutMs = 3000
	}
	if c.Retrieval.PoolSize <= 0 {
		c.Retrieval.PoolSize = 64
	}
	if c.Retrieval.SubstringScanLimit <= 0 {
		c.Retrieval.SubstringScanLimit = 500
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.Database.Driver {
	case "redis", "valkey":
	default:
		return fmt.Errorf("database.driver must be \"redis\" or \"valkey\", got %q", c.Database.Driver)
	}
	switch c.Vector.Backend {
	case "redis":
	case "qdrant":
		if c.Qdrant.Addr == "" {
			return fmt.Errorf("qdrant.addr is required when vector.backend is \"qdrant\"")
		}
	default:
		return fmt.Errorf("vector.backend must be \"redis\" or \"qdrant\", got %q", c.Vector.Backend)
	}
	if c.LLM.WeakConfidence > 1 {
		return fmt.Errorf("llm.weak_confidence must be in (0, 1], got %v", c.LLM.WeakConfidence)
	}
	if c.Routing.ReviewConfidence > 1 {
		return fmt.Errorf("routing.review_confidence must be in (0, 1], got %v", c.Routing.ReviewConfidence)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
