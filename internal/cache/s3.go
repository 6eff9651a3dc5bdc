package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dunamismax/imagekit/internal/domain"
)

// S3Config configures an S3-compatible (minio-compatible) cache
// backend.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// S3Backend stores artifacts as objects named <key>.<ext> in a bucket
// on any S3-compatible object store.
type S3Backend struct {
	client *minio.Client
	bucket string
}

// NewS3Backend builds an S3Backend and ensures the bucket exists.
func NewS3Backend(ctx context.Context, cfg S3Config) (*S3Backend, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	b := &S3Backend{client: client, bucket: cfg.Bucket}
	if err := b.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *S3Backend) ensureBucket(ctx context.Context) error {
	exists, err := b.client.BucketExists(ctx, b.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := b.client.MakeBucket(ctx, b.bucket, minio.MakeBucketOptions{}); err != nil {
		exists, checkErr := b.client.BucketExists(ctx, b.bucket)
		if checkErr == nil && exists {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", b.bucket, err)
	}
	return nil
}

func (b *S3Backend) Get(ctx context.Context, key string) (Artifact, bool, error) {
	for _, ext := range domain.KnownExtensions() {
		objectKey := key + "." + ext
		obj, err := b.client.GetObject(ctx, b.bucket, objectKey, minio.GetObjectOptions{})
		if err != nil {
			continue
		}
		data, err := io.ReadAll(obj)
		obj.Close()
		if err != nil {
			resp := minio.ToErrorResponse(err)
			if resp.Code == "NoSuchKey" || resp.Code == "NoSuchObject" {
				continue
			}
			return Artifact{}, false, domain.Wrap(domain.KindCacheError, "read cache object", err)
		}
		if len(data) == 0 {
			continue
		}
		format, _ := domain.FormatForExtension(ext)
		return Artifact{Bytes: data, Format: format}, true, nil
	}
	return Artifact{}, false, nil
}

// Stats lists the bucket and sums object sizes. minio's ListObjects
// streams listing pages over the wire, which is the cheapest
// aggregate view the client exposes.
func (b *S3Backend) Stats(ctx context.Context) (BackendStats, error) {
	var stats BackendStats
	for obj := range b.client.ListObjects(ctx, b.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return BackendStats{}, domain.Wrap(domain.KindCacheError, "list cache objects", obj.Err)
		}
		stats.Entries++
		stats.Bytes += obj.Size
	}
	return stats, nil
}

// Put uploads data as <key>.<ext>. Object stores provide their own
// atomicity guarantee on PutObject; no local temp file is needed.
func (b *S3Backend) Put(ctx context.Context, key string, data []byte, format domain.Format) error {
	objectKey := key + "." + format.Extension()
	_, err := b.client.PutObject(
		ctx,
		b.bucket,
		objectKey,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: format.ContentType()},
	)
	if err != nil {
		return domain.Wrap(domain.KindCacheError, "write cache object", err)
	}
	return nil
}
