package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        int              `json:"port" validate:"gte=0,lte=65535"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Database    DatabaseConfig   `json:"database"`
	Index       IndexConfig      `json:"index"`
	Chunker     ChunkerConfig    `json:"chunker"`
	Retrieval   RetrievalConfig  `json:"retrieval"`
	History     HistoryConfig    `json:"history"`
	Cache       CacheConfig      `json:"cache"`
	AI          AIConfig         `json:"ai"`
	FileStore   FileStoreConfig  `json:"file_store"`
	Upload      UploadConfig     `json:"upload"`
	Jobs        JobsConfig       `json:"jobs"`
	CORS        CORSConfig       `json:"cors"`
	RateLimitMs int              `json:"rate_limit_ms" validate:"gte=0"`
	// StorageTimeoutSeconds bounds each registry, index store and file
	// store call.
	StorageTimeoutSeconds int `json:"storage_timeout_seconds" validate:"gte=0"`
}

type DatabaseConfig struct {
	Driver string `json:"driver" validate:"oneof=sqlite postgres"`
	Path   string `json:"path" validate:"required_if=Driver sqlite"`
	DSN    string `json:"dsn" validate:"required_if=Driver postgres"`
}

type IndexConfig struct {
	Backend            string `json:"backend" validate:"oneof=sqlite pgvector"`
	Dir                string `json:"dir" validate:"required_if=Backend sqlite"`
	DSN                string `json:"dsn" validate:"required_if=Backend pgvector"`
	BuildConcurrency   int    `json:"build_concurrency" validate:"gt=0"`
	OrphanGraceMinutes int    `json:"orphan_grace_minutes" validate:"gte=0"`
}

type ChunkerConfig struct {
	Size    int `json:"size" validate:"gt=0"`
	Overlap int `json:"overlap" validate:"gte=0,ltfield=Size"`
}

type RetrievalConfig struct {
	TopK int `json:"top_k" validate:"gt=0"`
}

type HistoryConfig struct {
	WindowTurns       int `json:"window_turns" validate:"gt=0"`
	MaxTurns          int `json:"max_turns" validate:"gtefield=WindowTurns"`
	SessionTTLMinutes int `json:"session_ttl_minutes" validate:"gt=0"`
	MaxSessions       int `json:"max_sessions" validate:"gt=0"`
}

type CacheConfig struct {
	MaxEntries int `json:"max_entries" validate:"gte=0"`
}

type ProviderConfig struct {
	Provider string      `json:"provider" validate:"required"`
	Model    string      `json:"model" validate:"required"`
	Data     interface{} `json:"data"`
}

type EmbedCacheConfig struct {
	LRUSize       int  `json:"lru_size" validate:"gte=0"`
	LRUTTLMinutes int  `json:"lru_ttl_minutes" validate:"gte=0"`
	DB            bool `json:"db"`
}

type AIConfig struct {
	Generators         []ProviderConfig `json:"generator" validate:"dive"`
	Embedders          []ProviderConfig `json:"embedder" validate:"dive"`
	TimeoutSeconds     int              `json:"timeout_seconds" validate:"gt=0"`
	EmbedCache         EmbedCacheConfig `json:"embed_cache"`
	EmbedRatePerSecond float64          `json:"embed_rate_per_second" validate:"gte=0"`
	EmbedBurst         int              `json:"embed_burst" validate:"gte=0"`
}

type FileStoreConfig struct {
	Type string      `json:"type" validate:"omitempty,oneof=none local s3"`
	Data interface{} `json:"data"`
}

type UploadConfig struct {
	MaxBytes int64 `json:"max_bytes" validate:"gt=0"`
}

type JobsConfig struct {
	OrphanSweepSpec       string `json:"orphan_sweep_spec"`
	EmbedCacheCleanupSpec string `json:"embed_cache_cleanup_spec"`
	EmbedCacheMaxAgeDays  int    `json:"embed_cache_max_age_days" validate:"gte=0"`
}

type CORSConfig struct {
	AllowOrigins []string `json:"allow_origins"`
}

// Load reads a config file. JSON is the native format; yaml and toml files
// are normalised through JSON so every format shares the json tags.
// ${VAR} references are expanded from the environment first.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	data, err := normalize(filepath.Ext(path), []byte(os.ExpandEnv(string(raw))))
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalize(ext string, data []byte) ([]byte, error) {
	var generic map[string]interface{}
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("decode yaml config: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("decode toml config: %w", err)
		}
	default:
		return data, nil
	}
	out, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Index.Backend == "" {
		cfg.Index.Backend = "sqlite"
	}
	if cfg.Index.BuildConcurrency == 0 {
		cfg.Index.BuildConcurrency = 4
	}
	if cfg.Index.OrphanGraceMinutes == 0 {
		cfg.Index.OrphanGraceMinutes = 60
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 1000
		if cfg.Chunker.Overlap == 0 {
			cfg.Chunker.Overlap = 200
		}
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 4
	}
	if cfg.History.WindowTurns == 0 {
		cfg.History.WindowTurns = 3
	}
	if cfg.History.MaxTurns == 0 {
		cfg.History.MaxTurns = 50
	}
	if cfg.History.SessionTTLMinutes == 0 {
		cfg.History.SessionTTLMinutes = 24 * 60
	}
	if cfg.History.MaxSessions == 0 {
		cfg.History.MaxSessions = 10000
	}
	if cfg.StorageTimeoutSeconds == 0 {
		cfg.StorageTimeoutSeconds = 30
	}
	if cfg.AI.TimeoutSeconds == 0 {
		cfg.AI.TimeoutSeconds = 60
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "none"
	}
	if cfg.Upload.MaxBytes == 0 {
		cfg.Upload.MaxBytes = 20 * 1024 * 1024
	}
	if cfg.Jobs.EmbedCacheMaxAgeDays == 0 {
		cfg.Jobs.EmbedCacheMaxAgeDays = 30
	}
}

var validate = validator.New()

func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("invalid config: %s failed on '%s'", e.Namespace(), e.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
