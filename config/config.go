package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the application configuration.
type Config struct {
	Storage  StorageConfig  `mapstructure:"storage"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Database DatabaseConfig `mapstructure:"database"`
	Segment  SegmentConfig  `mapstructure:"segment"`
	Chunking ChunkingConfig `mapstructure:"chunking"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// StorageConfig configures the image asset store.
type StorageConfig struct {
	Type      string `mapstructure:"type"`     // storage type: local or minio
	Path      string `mapstructure:"path"`     // local storage path
	Bucket    string `mapstructure:"bucket"`   // MinIO bucket name
	Endpoint  string `mapstructure:"endpoint"` // MinIO endpoint
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// CacheConfig configures the content-hash dedup cache.
type CacheConfig struct {
	Enable   bool   `mapstructure:"enable"`   // enable the dedup cache
	Type     string `mapstructure:"type"`     // cache type: memory or redis
	Address  string `mapstructure:"address"`  // redis address
	Password string `mapstructure:"password"` // redis password
	DB       int    `mapstructure:"db"`       // redis database number
	TTL      int    `mapstructure:"ttl"`      // cache TTL in seconds
}

// QueueConfig configures the async ingestion queue.
type QueueConfig struct {
	Enable        bool   `mapstructure:"enable"`         // enable async ingestion
	Type          string `mapstructure:"type"`           // queue type: redis
	RedisAddr     string `mapstructure:"redis_addr"`     // redis address
	RedisPassword string `mapstructure:"redis_password"` // redis password
	RedisDB       int    `mapstructure:"redis_db"`       // redis database number
	Concurrency   int    `mapstructure:"concurrency"`    // concurrent tasks per worker
	RetryLimit    int    `mapstructure:"retry_limit"`    // max retries per task
	RetryDelay    int    `mapstructure:"retry_delay"`    // retry delay in seconds
}

// DatabaseConfig configures the metadata database.
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // database type: sqlite
	DSN  string `mapstructure:"dsn"`  // data source name
}

// SegmentConfig configures the fused layout pipeline.
type SegmentConfig struct {
	ChunkSize          int  `mapstructure:"chunk_size"`            // token budget per text-only group
	MinUnitSize        int  `mapstructure:"min_unit_size"`         // lower bound when enforcement is on
	EnforceMinUnitSize bool `mapstructure:"enforce_min_unit_size"` // drop undersized final groups
}

// ChunkingConfig configures the flat semantic chunker.
type ChunkingConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`     // target tokens per chunk
	ChunkOverlap int `mapstructure:"chunk_overlap"`  // approximate overlap tokens
	MinChunkSize int `mapstructure:"min_chunk_size"` // chunks below this are dropped
	MaxChunkSize int `mapstructure:"max_chunk_size"` // sections above this are split
}

// IngestConfig configures batch ingestion runs.
type IngestConfig struct {
	Workers    int  `mapstructure:"workers"`     // concurrent documents per batch run
	Force      bool `mapstructure:"force"`       // re-ingest known content hashes
	TotalPages int  `mapstructure:"total_pages"` // page count hint for flat sources
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	File       string `mapstructure:"file"`        // log file path, empty for stderr only
	MaxSizeMB  int    `mapstructure:"max_size_mb"` // rotate after this many megabytes
	MaxBackups int    `mapstructure:"max_backups"` // rotated files to keep
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Load reads configuration from a file and the environment.
func Load(configPath string) (*Config, error) {
	var config Config

	if configPath == "" {
		configPath = "config.yaml"
	}

	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			log.Printf("Warning: Config file not found at %s, using defaults", configPath)
			setDefaults(v)
			dir := filepath.Dir(configPath)
			if err := os.MkdirAll(dir, 0755); err == nil {
				if err := v.WriteConfigAs(configPath); err != nil {
					log.Printf("Warning: Could not write default config to %s: %v", configPath, err)
				}
			}
		} else {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
	} else {
		log.Printf("Using config file: %s", v.ConfigFileUsed())
	}

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	return processEnvironmentVariables(&config), nil
}

// processEnvironmentVariables resolves ${VAR} placeholders in secrets.
func processEnvironmentVariables(cfg *Config) *Config {
	cfg.Storage.AccessKey = expandEnvPlaceholder(cfg.Storage.AccessKey)
	cfg.Storage.SecretKey = expandEnvPlaceholder(cfg.Storage.SecretKey)
	cfg.Cache.Password = expandEnvPlaceholder(cfg.Cache.Password)
	cfg.Queue.RedisPassword = expandEnvPlaceholder(cfg.Queue.RedisPassword)
	return cfg
}

func expandEnvPlaceholder(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		envVar := value[2 : len(value)-1]
		if envVal := os.Getenv(envVar); envVal != "" {
			return envVal
		}
	}
	return value
}

// setDefaults fills in the default configuration values.
func setDefaults(v *viper.Viper) {
	// storage defaults
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.path", "./assets")
	v.SetDefault("storage.bucket", "manual-ingest")
	v.SetDefault("storage.use_ssl", false)

	// cache defaults
	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", 86400) // one day

	// queue defaults
	v.SetDefault("queue.enable", false)
	v.SetDefault("queue.type", "redis")
	v.SetDefault("queue.redis_addr", "localhost:6379")
	v.SetDefault("queue.redis_db", 0)
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.retry_limit", 3)
	v.SetDefault("queue.retry_delay", 60)

	// database defaults
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/ingest.db")

	// fused layout pipeline defaults
	v.SetDefault("segment.chunk_size", 600)
	v.SetDefault("segment.min_unit_size", 100)
	v.SetDefault("segment.enforce_min_unit_size", false)

	// flat chunker defaults
	v.SetDefault("chunking.chunk_size", 600)
	v.SetDefault("chunking.chunk_overlap", 100)
	v.SetDefault("chunking.min_chunk_size", 100)
	v.SetDefault("chunking.max_chunk_size", 1000)

	// batch ingestion defaults
	v.SetDefault("ingest.workers", 4)
	v.SetDefault("ingest.force", false)
	v.SetDefault("ingest.total_pages", 0)

	// logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
}
