package cache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dunamismax/imagekit/internal/domain"
)

// DiskBackend stores artifacts as files named <key>.<ext> under dir.
type DiskBackend struct {
	dir string
}

// NewDiskBackend builds a DiskBackend rooted at dir, creating it if
// absent.
func NewDiskBackend(dir string) (*DiskBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", dir, err)
	}
	return &DiskBackend{dir: dir}, nil
}

func (d *DiskBackend) Get(ctx context.Context, key string) (Artifact, bool, error) {
	for _, ext := range domain.KnownExtensions() {
		path := filepath.Join(d.dir, key+"."+ext)
		data, err := os.ReadFile(path)
		if err == nil {
			format, _ := domain.FormatForExtension(ext)
			return Artifact{Bytes: data, Format: format}, true, nil
		}
		if !os.IsNotExist(err) {
			return Artifact{}, false, domain.Wrap(domain.KindCacheError, "read cache artifact", err)
		}
	}
	return Artifact{}, false, nil
}

// Put writes <key>.<ext> atomically: write to a temporary sibling
// path, fsync, then rename into place, so a concurrent reader never
// observes a partially written artifact.
func (d *DiskBackend) Put(ctx context.Context, key string, data []byte, format domain.Format) error {
	finalPath := filepath.Join(d.dir, key+"."+format.Extension())

	tmp, err := os.CreateTemp(d.dir, "*.imagekit-tmp-"+key)
	if err != nil {
		return domain.Wrap(domain.KindCacheError, "create temp cache file", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return domain.Wrap(domain.KindCacheError, "write temp cache file", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return domain.Wrap(domain.KindCacheError, "fsync temp cache file", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return domain.Wrap(domain.KindCacheError, "close temp cache file", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return domain.Wrap(domain.KindCacheError, "rename cache artifact into place", err)
	}
	return nil
}

// Stats walks dir counting cache artifacts and their total size.
// Leaked temp files from an interrupted Put are excluded.
func (d *DiskBackend) Stats(ctx context.Context) (BackendStats, error) {
	var stats BackendStats
	err := filepath.WalkDir(d.dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || isTempArtifactName(entry.Name()) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		stats.Entries++
		stats.Bytes += info.Size()
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return BackendStats{}, nil
		}
		return BackendStats{}, domain.Wrap(domain.KindCacheError, "walk cache dir", err)
	}
	return stats, nil
}

// SweepTempFiles removes leaked *.imagekit-tmp-* files left by a
// process that crashed between create and rename.
func SweepTempFiles(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cache dir %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if len(name) > 0 && isTempArtifactName(name) {
			os.Remove(filepath.Join(dir, name))
		}
	}
	return nil
}

func isTempArtifactName(name string) bool {
	const marker = "imagekit-tmp-"
	for i := 0; i+len(marker) <= len(name); i++ {
		if name[i:i+len(marker)] == marker {
			return true
		}
	}
	return false
}
