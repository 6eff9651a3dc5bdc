package fetcher

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dunamismax/imagekit/internal/domain"
)

func allowAll(string) error { return nil }

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, nil); err != nil {
		t.Fatalf("encode fixture jpeg: %v", err)
	}
	return buf.Bytes()
}

func TestFetchSuccess(t *testing.T) {
	body := jpegBytes(t, 4, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(body)
	}))
	defer srv.Close()

	f := New(Config{Validate: allowAll})
	res, err := f.Fetch(context.Background(), srv.URL, 1<<20)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !bytes.Equal(res.Bytes, body) {
		t.Fatal("fetched bytes do not match source")
	}
}

func TestFetchRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Config{Validate: allowAll})
	_, err := f.Fetch(context.Background(), srv.URL, 1<<20)
	if domain.KindOf(err) != domain.KindUpstream {
		t.Fatalf("expected KindUpstream, got %s (%v)", domain.KindOf(err), err)
	}
}

func TestFetchRejectsNonImageContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html></html>"))
	}))
	defer srv.Close()

	f := New(Config{Validate: allowAll})
	_, err := f.Fetch(context.Background(), srv.URL, 1<<20)
	if domain.KindOf(err) != domain.KindNotAnImage {
		t.Fatalf("expected KindNotAnImage, got %s (%v)", domain.KindOf(err), err)
	}
}

func TestFetchRejectsOversizedBody(t *testing.T) {
	body := jpegBytes(t, 64, 64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(body)
	}))
	defer srv.Close()

	f := New(Config{Validate: allowAll})
	_, err := f.Fetch(context.Background(), srv.URL, int64(len(body)-1))
	if domain.KindOf(err) != domain.KindTooLarge {
		t.Fatalf("expected KindTooLarge, got %s (%v)", domain.KindOf(err), err)
	}
}

func TestFetchRejectsTruthfulMimeWithGarbageBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("not actually an image"))
	}))
	defer srv.Close()

	f := New(Config{Validate: allowAll})
	_, err := f.Fetch(context.Background(), srv.URL, 1<<20)
	if domain.KindOf(err) != domain.KindNotAnImage {
		t.Fatalf("expected KindNotAnImage for undecodable body, got %s (%v)", domain.KindOf(err), err)
	}
}

func TestDefaultPolicyRejectsLoopback(t *testing.T) {
	if err := DefaultPolicy("http://127.0.0.1:9999/a.jpg"); err == nil {
		t.Fatal("expected loopback host to be rejected")
	}
}

func TestDefaultPolicyRejectsNonHTTPScheme(t *testing.T) {
	if err := DefaultPolicy("ftp://example.com/a.jpg"); err == nil {
		t.Fatal("expected non-http(s) scheme to be rejected")
	}
}
