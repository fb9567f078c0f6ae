// Package config loads server settings from PP_-prefixed environment
// variables and command-line flags.
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/leca/photophriend/internal/keywords"
	"github.com/leca/photophriend/internal/lifecycle"
	"github.com/leca/photophriend/internal/storage"
)

// Error is the class of invalid configuration.
var Error = errs.Class("config")

// Storage backends.
const (
	BackendFS    = "fs"
	BackendMinio = "minio"
)

type Config struct {
	ListenAddr     string
	DBPath         string
	StorageBackend string
	StoragePath    string
	Minio          storage.MinioConfig
	AuthToken      string
	MaxUploadBytes int64

	TrashRetention time.Duration
	PurgeSchedule  string
	PurgeEnabled   bool
	PurgeBatchSize int

	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIModel       string
	TaggerConcurrency int

	LogLevel       string
	LogDevelopment bool
}

var defaults = map[string]interface{}{
	"listen_addr":        ":8080",
	"db_path":            "./data/photo-phriend.db",
	"storage_backend":    BackendFS,
	"storage_path":       "./data/public",
	"minio_endpoint":     "",
	"minio_access_key":   "",
	"minio_secret_key":   "",
	"minio_bucket":       "photos",
	"minio_use_ssl":      false,
	"auth_token":         "",
	"max_upload_bytes":   int64(20 << 20),
	"trash_retention":    30 * 24 * time.Hour,
	"purge_schedule":     "@hourly",
	"purge_enabled":      true,
	"purge_batch_size":   100,
	"openai_api_key":     "",
	"openai_base_url":    "",
	"openai_model":       "gpt-4o-mini",
	"tagger_concurrency": 2,
	"log_level":          "info",
	"log_development":    false,
}

// flagKeys maps command-line flags to the settings they override.
var flagKeys = map[string]string{
	"listen":  "listen_addr",
	"db":      "db_path",
	"storage": "storage_path",
}

// Load reads the configuration. Flags in flags that were set on the command
// line take precedence over the environment. flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key); err != nil {
			return nil, Error.Wrap(err)
		}
	}
	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, Error.Wrap(err)
				}
			}
		}
	}

	cfg := &Config{
		ListenAddr:     v.GetString("listen_addr"),
		DBPath:         v.GetString("db_path"),
		StorageBackend: strings.ToLower(v.GetString("storage_backend")),
		StoragePath:    v.GetString("storage_path"),
		Minio: storage.MinioConfig{
			Endpoint:  v.GetString("minio_endpoint"),
			AccessKey: v.GetString("minio_access_key"),
			SecretKey: v.GetString("minio_secret_key"),
			Bucket:    v.GetString("minio_bucket"),
			UseSSL:    v.GetBool("minio_use_ssl"),
		},
		AuthToken:         v.GetString("auth_token"),
		MaxUploadBytes:    v.GetInt64("max_upload_bytes"),
		TrashRetention:    v.GetDuration("trash_retention"),
		PurgeSchedule:     v.GetString("purge_schedule"),
		PurgeEnabled:      v.GetBool("purge_enabled"),
		PurgeBatchSize:    v.GetInt("purge_batch_size"),
		OpenAIAPIKey:      v.GetString("openai_api_key"),
		OpenAIBaseURL:     v.GetString("openai_base_url"),
		OpenAIModel:       v.GetString("openai_model"),
		TaggerConcurrency: v.GetInt("tagger_concurrency"),
		LogLevel:          v.GetString("log_level"),
		LogDevelopment:    v.GetBool("log_development"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown backends and non-positive limits.
func (c *Config) Validate() error {
	var group errs.Group
	switch c.StorageBackend {
	case BackendFS:
		if c.StoragePath == "" {
			group.Add(errs.New("PP_STORAGE_PATH is required for the fs backend"))
		}
	case BackendMinio:
		if c.Minio.Endpoint == "" || c.Minio.Bucket == "" {
			group.Add(errs.New("PP_MINIO_ENDPOINT and PP_MINIO_BUCKET are required for the minio backend"))
		}
	default:
		group.Add(errs.New("unknown storage backend %q", c.StorageBackend))
	}
	if c.DBPath == "" {
		group.Add(errs.New("PP_DB_PATH is required"))
	}
	if c.MaxUploadBytes <= 0 {
		group.Add(errs.New("PP_MAX_UPLOAD_BYTES must be positive"))
	}
	if c.TrashRetention <= 0 {
		group.Add(errs.New("PP_TRASH_RETENTION must be positive"))
	}
	if c.PurgeBatchSize <= 0 {
		group.Add(errs.New("PP_PURGE_BATCH_SIZE must be positive"))
	}
	if c.TaggerConcurrency <= 0 {
		group.Add(errs.New("PP_TAGGER_CONCURRENCY must be positive"))
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		group.Add(errs.New("invalid PP_LOG_LEVEL %q", c.LogLevel))
	}
	return Error.Wrap(group.Err())
}

// Lifecycle returns the photo lifecycle settings.
func (c *Config) Lifecycle() lifecycle.Config {
	return lifecycle.Config{Retention: c.TrashRetention, PurgeBatchSize: c.PurgeBatchSize}
}

// Chore returns the purge chore settings.
func (c *Config) Chore() lifecycle.ChoreConfig {
	return lifecycle.ChoreConfig{Enabled: c.PurgeEnabled, Schedule: c.PurgeSchedule}
}

// Tagger returns the keyword model settings. ok is false when no API key is set.
func (c *Config) Tagger() (_ keywords.Config, ok bool) {
	return keywords.Config{
		APIKey:      c.OpenAIAPIKey,
		BaseURL:     c.OpenAIBaseURL,
		Model:       c.OpenAIModel,
		Concurrency: c.TaggerConcurrency,
	}, c.OpenAIAPIKey != ""
}

// NewLogger builds the process logger: JSON in production, console output in
// development.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, Error.Wrap(err)
	}
	zc := zap.NewProductionConfig()
	if c.LogDevelopment {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	log, err := zc.Build()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return log, nil
}
