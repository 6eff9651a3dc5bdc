package config

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/imagekit/internal/domain"
)

type Config struct {
	API       APIConfig
	Cache     CacheConfig
	Transform TransformConfig
	S3        S3Config
	Redis     RedisConfig
}

type APIConfig struct {
	Addr   string
	Secret []byte
}

type CacheConfig struct {
	Backend string // "disk", "memory", "s3", or "redis"
	Dir     string
}

type TransformConfig struct {
	MaxInputBytes   int64
	AllowedFormats  []domain.Format
	DefaultFormat   domain.Format
	FetchTimeout    time.Duration
	Concurrency     int
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func Load() Config {
	return Config{
		API: APIConfig{
			Addr:   env("PORT", ":8080"),
			Secret: []byte(env("IMAGEKIT_SECRET", "")),
		},
		Cache: CacheConfig{
			Backend: env("IMAGEKIT_CACHE_BACKEND", "disk"),
			Dir:     env("IMAGEKIT_CACHE_DIR", "./.imagekit-cache"),
		},
		Transform: TransformConfig{
			MaxInputBytes:  envInt64("IMAGEKIT_MAX_INPUT_SIZE", 8*1024*1024),
			AllowedFormats: envFormats("IMAGEKIT_ALLOWED_FORMATS", []domain.Format{domain.FormatJPEG, domain.FormatWebP, domain.FormatAVIF}),
			DefaultFormat:  envFormat("IMAGEKIT_DEFAULT_FORMAT", domain.FormatJPEG),
			FetchTimeout:   envDuration("IMAGEKIT_FETCH_TIMEOUT", 10*time.Second),
			Concurrency:    envInt("IMAGEKIT_TRANSFORM_CONCURRENCY", max(2, runtime.NumCPU())),
		},
		S3: S3Config{
			Endpoint:  env("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: env("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env("MINIO_SECRET_KEY", "minioadmin"),
			Bucket:    env("MINIO_BUCKET", "imagekit-cache"),
			UseSSL:    envBool("MINIO_USE_SSL", false),
		},
		Redis: RedisConfig{
			Addr:     env("REDIS_ADDR", "localhost:6379"),
			Password: env("REDIS_PASSWORD", ""),
			DB:       envInt("REDIS_DB", 0),
		},
	}
}

func env(key, fallback string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	return value
}

func envInt(key string, fallback int) int {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envInt64(key string, fallback int64) int64 {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envStringSlice(key string, fallback []string) []string {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func envFormats(key string, fallback []domain.Format) []domain.Format {
	raw := envStringSlice(key, nil)
	if raw == nil {
		return fallback
	}
	out := make([]domain.Format, 0, len(raw))
	for _, r := range raw {
		if f, ok := domain.ParseFormat(r); ok {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func envFormat(key string, fallback domain.Format) domain.Format {
	value := env(key, "")
	if value == "" {
		return fallback
	}
	if f, ok := domain.ParseFormat(value); ok {
		return f
	}
	return fallback
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
