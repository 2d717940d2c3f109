// segpack/internal/config/config.go
package config

import (
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Store  StoreConfig
	Upload UploadConfig
	Report ReportConfig
	Log    LogConfig
}

// StoreConfig carries the connection info for the remote stores.
type StoreConfig struct {
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
	S3UseSSL    bool
	GCSPrefix   string
}

// UploadConfig holds the defaults for the upload command flags.
type UploadConfig struct {
	TempFilePrefix string
	SizeLimit      string
	BatchSizeLimit string
	Schemes        []string
}

type ReportConfig struct {
	RedisURL   string
	TTLSeconds int
}

type LogConfig struct {
	Level string
	// Format is "console" or "json".
	Format string
}

var (
	once     sync.Once
	instance *Config
)

// Load reads .env and the process environment once and returns the shared config.
func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		instance = FromViper(viper.New())
	})

	return instance
}

// FromViper builds a Config from v, applying defaults and environment overrides.
func FromViper(v *viper.Viper) *Config {
	v.SetDefault("S3_ENDPOINT", "s3.amazonaws.com")
	v.SetDefault("S3_ACCESS_KEY", "")
	v.SetDefault("S3_SECRET_KEY", "")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("S3_USE_SSL", true)
	v.SetDefault("GCS_PREFIX", "")
	v.SetDefault("SEGPACK_TEMP_FILE_PREFIX", "seq-")
	v.SetDefault("SEGPACK_SIZE_LIMIT", "2147483647")
	v.SetDefault("SEGPACK_BATCH_SIZE_LIMIT", "2GiB")
	v.SetDefault("SEGPACK_SCHEMES", "s3://,gs://,file://")
	v.SetDefault("REPORT_REDIS_URL", "")
	v.SetDefault("REPORT_TTL_SECONDS", int((7 * 24 * time.Hour).Seconds()))
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	// Read from environment variables
	v.AutomaticEnv()

	return &Config{
		Store: StoreConfig{
			S3Endpoint:  v.GetString("S3_ENDPOINT"),
			S3AccessKey: v.GetString("S3_ACCESS_KEY"),
			S3SecretKey: v.GetString("S3_SECRET_KEY"),
			S3Region:    v.GetString("S3_REGION"),
			S3UseSSL:    v.GetBool("S3_USE_SSL"),
			GCSPrefix:   v.GetString("GCS_PREFIX"),
		},
		Upload: UploadConfig{
			TempFilePrefix: v.GetString("SEGPACK_TEMP_FILE_PREFIX"),
			SizeLimit:      v.GetString("SEGPACK_SIZE_LIMIT"),
			BatchSizeLimit: v.GetString("SEGPACK_BATCH_SIZE_LIMIT"),
			Schemes:        splitList(v.GetString("SEGPACK_SCHEMES")),
		},
		Report: ReportConfig{
			RedisURL:   v.GetString("REPORT_REDIS_URL"),
			TTLSeconds: v.GetInt("REPORT_TTL_SECONDS"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
