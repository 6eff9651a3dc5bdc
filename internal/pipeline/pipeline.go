// Package pipeline composes Signer, Fetcher, Transformer, and Cache
// into the transform/sign/upload operations.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dunamismax/imagekit/internal/cache"
	"github.com/dunamismax/imagekit/internal/domain"
	"github.com/dunamismax/imagekit/internal/fetcher"
	"github.com/dunamismax/imagekit/internal/signer"
	"github.com/dunamismax/imagekit/internal/transformer"
)

// Config holds the immutable options the pipeline needs beyond its
// component dependencies.
type Config struct {
	Secret         []byte
	MaxInputBytes  int64
	AllowedFormats []domain.Format
	DefaultFormat  domain.Format
}

func (c Config) allows(f domain.Format) bool {
	for _, allowed := range c.AllowedFormats {
		if allowed == f {
			return true
		}
	}
	return false
}

// Pipeline is the request-driven orchestrator. CPU-bound transform
// work runs through sem, a bounded semaphore sized to
// config.Transform.Concurrency, isolating decode/resize/encode from
// the I/O scheduler so a burst of fetches can't starve CPU-bound
// work (or vice versa).
type Pipeline struct {
	cfg         Config
	fetcher     *fetcher.Fetcher
	transformer transformer.Transformer
	cache       *cache.Cache
	sem         chan struct{}
}

// New builds a Pipeline. concurrency bounds simultaneous CPU-bound
// transform calls; values less than 1 are treated as 1.
func New(cfg Config, f *fetcher.Fetcher, t transformer.Transformer, c *cache.Cache, concurrency int) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		cfg:         cfg,
		fetcher:     f,
		transformer: t,
		cache:       c,
		sem:         make(chan struct{}, concurrency),
	}
}

// TransformRequest is the parsed, not-yet-verified parameter set for
// the transform endpoint.
type TransformRequest struct {
	Params domain.Params
	Now    int64
}

// TransformResult carries the bytes to stream and the metadata needed
// for response headers and usage accounting. FetchDuration,
// TransformDuration, PixelsProcessed, and BytesSaved are zero on a
// cache hit: no fetch or transform work happened for this call.
type TransformResult struct {
	Bytes             []byte
	Format            domain.Format
	CacheKey          string
	Etag              string
	ContentType       string
	CacheHit          bool
	FetchDuration     time.Duration
	TransformDuration time.Duration
	PixelsProcessed   int64
	BytesSaved        int64
}

// computeStats is the usage accounting gathered by a single producer
// run of fetchAndTransform. It stays zero for callers that observed a
// cache hit or that deduped onto another caller's in-flight Produce.
type computeStats struct {
	fetchDuration     time.Duration
	transformDuration time.Duration
	pixelsProcessed   int64
	bytesSaved        int64
}

// Transform runs the full request pipeline: verify the signature,
// validate and derive the cache key, check the cache, and on a miss
// fetch, transform, and write the result back.
func (p *Pipeline) Transform(ctx context.Context, req TransformRequest) (TransformResult, error) {
	switch signer.Verify(req.Params, p.cfg.Secret, req.Now) {
	case signer.MissingSig:
		return TransformResult{}, domain.NewError(domain.KindMissingSignature, "signature is required")
	case signer.Invalid:
		return TransformResult{}, domain.NewError(domain.KindInvalidSignature, "signature does not match parameters")
	case signer.Expired:
		return TransformResult{}, domain.NewError(domain.KindExpired, "signature has expired")
	}

	spec, err := parseSpec(req.Params, p.cfg)
	if err != nil {
		return TransformResult{}, err
	}

	canonical := signer.Canonicalize(req.Params)
	key := cache.KeyFor(canonical)

	if artifact, ok, err := p.cache.Get(ctx, key); err != nil {
		return TransformResult{}, err
	} else if ok {
		return TransformResult{
			Bytes:       artifact.Bytes,
			Format:      artifact.Format,
			CacheKey:    key,
			Etag:        cache.EtagFor(key),
			ContentType: cache.ContentTypeFor(artifact.Format),
			CacheHit:    true,
		}, nil
	}

	var stats computeStats
	artifact, err := p.cache.Produce(ctx, key, func() (cache.Artifact, error) {
		a, s, err := p.fetchAndTransform(ctx, spec)
		stats = s
		return a, err
	})
	if err != nil {
		return TransformResult{}, err
	}

	return TransformResult{
		Bytes:             artifact.Bytes,
		Format:            artifact.Format,
		CacheKey:          key,
		Etag:              cache.EtagFor(key),
		ContentType:       cache.ContentTypeFor(artifact.Format),
		CacheHit:          false,
		FetchDuration:     stats.fetchDuration,
		TransformDuration: stats.transformDuration,
		PixelsProcessed:   stats.pixelsProcessed,
		BytesSaved:        stats.bytesSaved,
	}, nil
}

func (p *Pipeline) fetchAndTransform(ctx context.Context, spec transformSpec) (cache.Artifact, computeStats, error) {
	fetchStart := time.Now()
	res, err := p.fetcher.Fetch(ctx, spec.url, p.cfg.MaxInputBytes)
	fetchDuration := time.Since(fetchStart)
	if err != nil {
		return cache.Artifact{}, computeStats{}, err
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return cache.Artifact{}, computeStats{}, ctx.Err()
	}
	defer func() { <-p.sem }()

	transformStart := time.Now()
	result, err := p.transformer.Transform(ctx, res.Bytes, transformer.Dimensions{Width: spec.width, Height: spec.height}, spec.format, spec.quality)
	transformDuration := time.Since(transformStart)
	if err != nil {
		return cache.Artifact{}, computeStats{}, err
	}

	bytesSaved := int64(len(res.Bytes) - len(result.Bytes))
	if bytesSaved < 0 {
		bytesSaved = 0
	}

	stats := computeStats{
		fetchDuration:     fetchDuration,
		transformDuration: transformDuration,
		pixelsProcessed:   int64(result.Width) * int64(result.Height),
		bytesSaved:        bytesSaved,
	}
	return cache.Artifact{Bytes: result.Bytes, Format: spec.format}, stats, nil
}

// SignRequest is the unsigned parameter set for the sign endpoint.
type SignRequest struct {
	Params domain.Params
}

// SignResult carries the sign endpoint's JSON response fields.
type SignResult struct {
	Canonical string
	Sig       string
	SignedURL string
}

// Sign canonicalizes and signs an unsigned parameter set, returning
// the ready-to-use transform URL alongside the raw canonical/sig
// values.
func (p *Pipeline) Sign(req SignRequest, transformPath string) SignResult {
	params := req.Params.WithoutSig()
	canonical := signer.Canonicalize(params)
	sig := signer.Sign(params, p.cfg.Secret)

	return SignResult{
		Canonical: canonical,
		Sig:       sig,
		SignedURL: transformPath + "?" + canonical + "&sig=" + sig,
	}
}

// UploadRequest is the parsed multipart body for the upload endpoint.
type UploadRequest struct {
	File   []byte
	Width  int
	Height int
	Format domain.Format
	HasFmt bool
	Quality int
	HasQuality bool
}

// Upload invokes the Transformer directly on an uploaded file,
// bypassing Signer and Cache entirely: there's no source URL to
// authenticate and no repeatable key to cache under.
func (p *Pipeline) Upload(ctx context.Context, req UploadRequest) ([]byte, domain.Format, error) {
	format := p.cfg.DefaultFormat
	if req.HasFmt {
		format = req.Format
	}
	if !p.cfg.allows(format) {
		return nil, "", domain.NewError(domain.KindInvalidArgument, fmt.Sprintf("format %q is not allowed", format))
	}

	quality := 80
	if req.HasQuality {
		quality = req.Quality
	}
	if quality < 1 || quality > 100 {
		return nil, "", domain.NewError(domain.KindInvalidArgument, "q must be in 1..100")
	}

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}
	defer func() { <-p.sem }()

	result, err := p.transformer.Transform(ctx, req.File, transformer.Dimensions{Width: req.Width, Height: req.Height}, format, quality)
	if err != nil {
		return nil, "", err
	}
	return result.Bytes, format, nil
}
