package cache

import (
	"context"
	"fmt"

	"github.com/dunamismax/imagekit/internal/config"
)

// Build constructs the Backend configured by cfg.Cache.Backend
// ("disk", "memory", "s3", or "redis").
func Build(ctx context.Context, cfg config.Config) (Backend, error) {
	switch cfg.Cache.Backend {
	case "disk", "":
		return NewDiskBackend(cfg.Cache.Dir)
	case "memory":
		return NewMemoryBackend(), nil
	case "s3":
		return NewS3Backend(ctx, S3Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Bucket:    cfg.S3.Bucket,
			UseSSL:    cfg.S3.UseSSL,
		})
	case "redis":
		return NewRedisBackend(RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported cache backend: %s", cfg.Cache.Backend)
	}
}
