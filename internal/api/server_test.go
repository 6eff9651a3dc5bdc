package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dunamismax/imagekit/internal/cache"
	"github.com/dunamismax/imagekit/internal/domain"
	"github.com/dunamismax/imagekit/internal/fetcher"
	"github.com/dunamismax/imagekit/internal/pipeline"
	"github.com/dunamismax/imagekit/internal/transformer"
)

func fixtureJPEGServer(t *testing.T) *httptest.Server {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: uint8(y * 6), B: 80, A: 255})
		}
	}
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, nil); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	body := buf.Bytes()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(body)
	}))
}

func testServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	src := fixtureJPEGServer(t)
	t.Cleanup(src.Close)

	cfg := pipeline.Config{
		Secret:         []byte("test-secret"),
		MaxInputBytes:  1 << 20,
		AllowedFormats: []domain.Format{domain.FormatJPEG, domain.FormatWebP},
		DefaultFormat:  domain.FormatJPEG,
	}
	f := fetcher.New(fetcher.Config{Validate: func(string) error { return nil }})
	tr := transformer.New()
	c := cache.New(cache.NewMemoryBackend())
	p := pipeline.New(cfg, f, tr, c, 2)

	s := NewServer(log.New(io.Discard, "", 0), p, c)
	return s, src
}

func TestHealthz(t *testing.T) {
	s, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestSignThenTransformRoundTrip(t *testing.T) {
	s, src := testServer(t)

	signReq := httptest.NewRequest(http.MethodGet, "/sign?url="+src.URL+"&w=20", nil)
	signW := httptest.NewRecorder()
	s.Handler().ServeHTTP(signW, signReq)
	if signW.Code != http.StatusOK {
		t.Fatalf("sign: expected 200, got %d: %s", signW.Code, signW.Body.String())
	}

	var signResp struct {
		Canonical string `json:"canonical"`
		Sig       string `json:"sig"`
		SignedURL string `json:"signed_url"`
	}
	if err := json.NewDecoder(signW.Body).Decode(&signResp); err != nil {
		t.Fatalf("decode sign response: %v", err)
	}
	if signResp.Sig == "" {
		t.Fatal("expected non-empty sig")
	}

	transformReq := httptest.NewRequest(http.MethodGet, signResp.SignedURL, nil)
	transformW := httptest.NewRecorder()
	s.Handler().ServeHTTP(transformW, transformReq)
	if transformW.Code != http.StatusOK {
		t.Fatalf("transform: expected 200, got %d: %s", transformW.Code, transformW.Body.String())
	}
	if transformW.Body.Len() == 0 {
		t.Fatal("expected non-empty image body")
	}
	if transformW.Header().Get("Content-Type") != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %s", transformW.Header().Get("Content-Type"))
	}
	if transformW.Header().Get("ETag") == "" {
		t.Fatal("expected ETag header")
	}
}

func TestTransformTamperedSignatureRejected(t *testing.T) {
	s, src := testServer(t)

	signReq := httptest.NewRequest(http.MethodGet, "/sign?url="+src.URL+"&w=20", nil)
	signW := httptest.NewRecorder()
	s.Handler().ServeHTTP(signW, signReq)

	var signResp struct {
		SignedURL string `json:"signed_url"`
	}
	json.NewDecoder(signW.Body).Decode(&signResp)

	tampered := bytes.Replace([]byte(signResp.SignedURL), []byte("w=20"), []byte("w=21"), 1)
	req := httptest.NewRequest(http.MethodGet, string(tampered), nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for tampered params, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTransformMissingSignatureRejected(t *testing.T) {
	s, src := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/img?url="+src.URL, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestTransformExpiredSignatureRejected(t *testing.T) {
	s, src := testServer(t)
	signReq := httptest.NewRequest(http.MethodGet, "/sign?url="+src.URL+"&t=1", nil)
	signW := httptest.NewRecorder()
	s.Handler().ServeHTTP(signW, signReq)

	var signResp struct {
		SignedURL string `json:"signed_url"`
	}
	json.NewDecoder(signW.Body).Decode(&signResp)

	req := httptest.NewRequest(http.MethodGet, signResp.SignedURL, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusGone {
		t.Fatalf("expected 410 for expired signature, got %d: %s", w.Code, w.Body.String())
	}
}

func TestTransformCacheHitReturnsSameBytesAndConditionalGet(t *testing.T) {
	s, src := testServer(t)
	signReq := httptest.NewRequest(http.MethodGet, "/sign?url="+src.URL+"&w=16", nil)
	signW := httptest.NewRecorder()
	s.Handler().ServeHTTP(signW, signReq)

	var signResp struct {
		SignedURL string `json:"signed_url"`
	}
	json.NewDecoder(signW.Body).Decode(&signResp)

	first := httptest.NewRecorder()
	s.Handler().ServeHTTP(first, httptest.NewRequest(http.MethodGet, signResp.SignedURL, nil))
	if first.Code != http.StatusOK {
		t.Fatalf("first request: expected 200, got %d", first.Code)
	}
	etag := first.Header().Get("ETag")

	second := httptest.NewRecorder()
	s.Handler().ServeHTTP(second, httptest.NewRequest(http.MethodGet, signResp.SignedURL, nil))
	if second.Code != http.StatusOK {
		t.Fatalf("second request: expected 200, got %d", second.Code)
	}
	if !bytes.Equal(first.Body.Bytes(), second.Body.Bytes()) {
		t.Fatal("expected cache hit to return identical bytes to the original miss")
	}

	conditionalReq := httptest.NewRequest(http.MethodGet, signResp.SignedURL, nil)
	conditionalReq.Header.Set("If-None-Match", etag)
	conditional := httptest.NewRecorder()
	s.Handler().ServeHTTP(conditional, conditionalReq)
	if conditional.Code != http.StatusNotModified {
		t.Fatalf("expected 304 for matching If-None-Match, got %d", conditional.Code)
	}
	if conditional.Body.Len() != 0 {
		t.Fatal("expected empty body on 304")
	}
}

func TestCacheStatsReflectsHitsAndMisses(t *testing.T) {
	s, src := testServer(t)
	signReq := httptest.NewRequest(http.MethodGet, "/sign?url="+src.URL+"&w=12", nil)
	signW := httptest.NewRecorder()
	s.Handler().ServeHTTP(signW, signReq)

	var signResp struct {
		SignedURL string `json:"signed_url"`
	}
	json.NewDecoder(signW.Body).Decode(&signResp)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, signResp.SignedURL, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("transform %d: expected 200, got %d", i, w.Code)
		}
	}

	statsW := httptest.NewRecorder()
	s.Handler().ServeHTTP(statsW, httptest.NewRequest(http.MethodGet, "/stats/cache", nil))
	if statsW.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", statsW.Code)
	}

	var stats struct {
		Entries int64 `json:"entries"`
		Hits    int64 `json:"hits"`
		Misses  int64 `json:"misses"`
	}
	if err := json.NewDecoder(statsW.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Entries != 1 {
		t.Fatalf("expected 1 cached entry, got %d", stats.Entries)
	}
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("expected 1 hit and 1 miss, got hits=%d misses=%d", stats.Hits, stats.Misses)
	}
}

func TestUploadEncodesAndSkipsCache(t *testing.T) {
	s, _ := testServer(t)

	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	buf := new(bytes.Buffer)
	jpeg.Encode(buf, img, nil)

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "source.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write(buf.Bytes())
	writer.WriteField("w", "5")
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("expected no-store, got %s", w.Header().Get("Cache-Control"))
	}
	if w.Body.Len() == 0 {
		t.Fatal("expected non-empty encoded output")
	}
}

func TestUploadMissingFileRejected(t *testing.T) {
	s, _ := testServer(t)

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
