// Package cache implements the content-addressed transformation
// cache: key derivation, atomic storage, entity tags, and
// single-flight coordination of concurrent producers.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/dunamismax/imagekit/internal/domain"
)

// Artifact is a cache lookup hit: the stored bytes and the format
// they were encoded in.
type Artifact struct {
	Bytes  []byte
	Format domain.Format
}

// BackendStats is a backend's cheap, self-reported occupancy snapshot:
// how many artifacts it holds and how many bytes they occupy.
type BackendStats struct {
	Entries int64
	Bytes   int64
}

// Backend is the storage capability a Cache implementation provides.
// Disk, memory, S3, and Redis backends all implement this.
type Backend interface {
	// Get looks for an artifact under key, trying every known
	// extension. ok is false on a clean miss.
	Get(ctx context.Context, key string) (Artifact, bool, error)
	// Put stores data atomically under key for the given format.
	Put(ctx context.Context, key string, data []byte, format domain.Format) error
	// Stats reports occupancy as cheaply as the backend allows.
	Stats(ctx context.Context) (BackendStats, error)
}

// KeyFor derives the content-address cache key from a canonical
// parameter string.
func KeyFor(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// EtagFor produces the strong entity tag for a cache key.
func EtagFor(key string) string {
	return `"` + key + `"`
}

// ContentTypeFor returns the MIME type for an encoded format.
func ContentTypeFor(format domain.Format) string {
	return format.ContentType()
}
