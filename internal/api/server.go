// Package api exposes the gateway's HTTP surface: sign, transform,
// upload, health, metrics, and cache-stats endpoints.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dunamismax/imagekit/internal/cache"
	"github.com/dunamismax/imagekit/internal/domain"
	"github.com/dunamismax/imagekit/internal/id"
	"github.com/dunamismax/imagekit/internal/pipeline"
)

// StatsSource reports cache occupancy and hit/miss counts, used by
// /stats/cache. *cache.Cache implements this directly.
type StatsSource interface {
	Stats(ctx context.Context) (cache.Stats, error)
}

type Server struct {
	logger   *log.Logger
	pipeline *pipeline.Pipeline
	stats    StatsSource
	metrics  *metrics
	tracer   trace.Tracer
	mux      *http.ServeMux
}

func NewServer(logger *log.Logger, p *pipeline.Pipeline, stats StatsSource) *Server {
	s := &Server{
		logger:   logger,
		pipeline: p,
		stats:    stats,
		metrics:  newMetrics(),
		tracer:   otel.Tracer("imagekit/api"),
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.metrics.withHTTPMetrics(s.withTracing(s.withRequestID(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("GET /metrics", s.handleMetrics)
	s.mux.HandleFunc("GET /stats/cache", s.handleCacheStats)
	s.mux.HandleFunc("GET /sign", s.handleSign)
	s.mux.HandleFunc("GET /img", s.handleTransform)
	s.mux.HandleFunc("POST /upload", s.handleUpload)
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := id.New()
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.metricsHandler().ServeHTTP(w, r)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		writeJSON(w, http.StatusOK, cache.Stats{})
		return
	}
	stats, err := s.stats.Stats(r.Context())
	if err != nil {
		writePlainError(w, http.StatusInternalServerError, "failed to read cache stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	params := domain.ParamsFromValues(r.URL.Query()).WithoutSig()
	if params.URL() == "" {
		writePlainError(w, http.StatusBadRequest, "url is required")
		return
	}

	result := s.pipeline.Sign(pipeline.SignRequest{Params: params}, "/img")
	writeJSON(w, http.StatusOK, map[string]string{
		"canonical":  result.Canonical,
		"sig":        result.Sig,
		"signed_url": result.SignedURL,
	})
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	params := domain.ParamsFromValues(r.URL.Query())

	res, err := s.pipeline.Transform(r.Context(), pipeline.TransformRequest{
		Params: params,
		Now:    time.Now().Unix(),
	})
	if err != nil {
		s.logger.Printf("transform failed kind=%s err=%v", domain.KindOf(err), err)
		writeTypedError(w, err)
		return
	}

	if res.CacheHit {
		s.metrics.cacheResult.WithLabelValues("hit").Inc()
	} else {
		s.metrics.cacheResult.WithLabelValues("miss").Inc()
		s.metrics.fetchDuration.Observe(res.FetchDuration.Seconds())
		s.metrics.transformDuration.Observe(res.TransformDuration.Seconds())
		s.metrics.pixelsProcessedTotal.Add(float64(res.PixelsProcessed))
		s.metrics.bytesSavedTotal.Add(float64(res.BytesSaved))
	}

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("ETag", res.Etag)
	w.Header().Set("Cache-Control", "public, max-age=31536000, s-maxage=86400, immutable, stale-if-error=86400, stale-while-revalidate=60")
	w.Header().Set("CDN-Cache-Control", "max-age=86400")
	w.Header().Set("Vary", "Accept-Encoding")

	if match := r.Header.Get("If-None-Match"); match != "" && match == res.Etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write(res.Bytes)
}

const maxUploadMemory = 32 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writePlainError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		writePlainError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writePlainError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}

	req := pipeline.UploadRequest{File: data}

	if v := r.FormValue("w"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writePlainError(w, http.StatusBadRequest, "w must be a positive integer")
			return
		}
		req.Width = n
	}
	if v := r.FormValue("h"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writePlainError(w, http.StatusBadRequest, "h must be a positive integer")
			return
		}
		req.Height = n
	}
	if v := r.FormValue("f"); v != "" {
		f, ok := domain.ParseFormat(v)
		if !ok {
			writePlainError(w, http.StatusBadRequest, "f must be one of jpeg, webp, avif")
			return
		}
		req.Format = f
		req.HasFmt = true
	}
	if v := r.FormValue("q"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writePlainError(w, http.StatusBadRequest, "q must be an integer")
			return
		}
		req.Quality = n
		req.HasQuality = true
	}

	encoded, format, err := s.pipeline.Upload(r.Context(), req)
	if err != nil {
		s.logger.Printf("upload failed kind=%s err=%v", domain.KindOf(err), err)
		writeTypedError(w, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(encoded)
}

// writeTypedError renders err as a short, plaintext, non-reflective
// body at the HTTP status its Kind maps to.
func writeTypedError(w http.ResponseWriter, err error) {
	writePlainError(w, domain.HTTPStatus(err), genericMessage(domain.KindOf(err)))
}

func genericMessage(kind domain.Kind) string {
	switch kind {
	case domain.KindMissingSignature:
		return "signature is required"
	case domain.KindInvalidSignature:
		return "signature is invalid"
	case domain.KindExpired:
		return "signature has expired"
	case domain.KindInvalidArgument:
		return "request parameters are invalid"
	case domain.KindNotAnImage:
		return "source is not a valid image"
	case domain.KindTooLarge:
		return "source exceeds the configured size limit"
	case domain.KindUpstream:
		return "failed to fetch source image"
	case domain.KindTransformError:
		return "failed to process image"
	case domain.KindCacheError:
		return "internal cache error"
	default:
		return "internal error"
	}
}

func writePlainError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintln(w, message)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
