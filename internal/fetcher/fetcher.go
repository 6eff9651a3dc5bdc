// Package fetcher implements bounded, validated retrieval of remote
// source images.
package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	_ "golang.org/x/image/webp"

	"github.com/dunamismax/imagekit/internal/domain"
)

// Validator may reject a URL before the request is issued. It returns
// a non-nil error to reject.
type Validator func(u string) error

// Fetcher downloads and validates a remote image.
type Fetcher struct {
	httpClient *http.Client
	validate   Validator
}

// Config configures a Fetcher.
type Config struct {
	Timeout time.Duration
	// Validate, if set, replaces the default SSRF policy.
	Validate Validator
}

// New builds a Fetcher. A zero Config applies a 30s timeout and the
// default private/loopback/link-local host rejection policy.
func New(cfg Config) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	validate := cfg.Validate
	if validate == nil {
		validate = DefaultPolicy
	}

	return &Fetcher{
		httpClient: &http.Client{Timeout: timeout},
		validate:   validate,
	}
}

// DefaultPolicy accepts only http/https schemes and rejects hosts that
// resolve to private, loopback, or link-local addresses.
func DefaultPolicy(rawURL string) error {
	u, err := parseURL(rawURL)
	if err != nil {
		return domain.NewError(domain.KindInvalidArgument, "malformed source url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return domain.NewError(domain.KindInvalidArgument, "source url scheme must be http or https")
	}

	host := u.Hostname()
	if host == "" {
		return domain.NewError(domain.KindInvalidArgument, "source url missing host")
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return domain.NewError(domain.KindInvalidArgument, "source host is not publicly routable")
		}
		return nil
	}

	addrs, err := net.LookupIP(host)
	if err != nil {
		return domain.Wrap(domain.KindUpstream, "resolve source host", err)
	}
	for _, ip := range addrs {
		if isBlockedIP(ip) {
			return domain.NewError(domain.KindInvalidArgument, "source host is not publicly routable")
		}
	}
	return nil
}

func parseURL(rawURL string) (*url.URL, error) {
	return url.Parse(rawURL)
}

func isBlockedIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified()
}

// Result is the outcome of a successful Fetch.
type Result struct {
	Bytes       []byte
	ContentType string
}

// Fetch downloads rawURL, enforcing maxBytes and an image/* content
// type, then double-validates the downloaded bytes by decoding them.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, maxBytes int64) (Result, error) {
	if err := f.validate(rawURL); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, domain.NewError(domain.KindInvalidArgument, "malformed source url")
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Result{}, domain.Wrap(domain.KindUpstream, "fetch source image", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, domain.NewError(domain.KindUpstream, fmt.Sprintf("upstream status %d", resp.StatusCode))
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return Result{}, domain.NewError(domain.KindNotAnImage, "source content-type is not an image")
	}

	if resp.ContentLength > 0 && resp.ContentLength > maxBytes {
		return Result{}, domain.NewError(domain.KindTooLarge, "source exceeds size limit")
	}

	body, err := readLimited(resp.Body, maxBytes)
	if err != nil {
		return Result{}, err
	}

	if err := validateImageBytes(body); err != nil {
		return Result{}, err
	}

	return Result{Bytes: body, ContentType: contentType}, nil
}

// readLimited reads r, aborting the moment more than max bytes have
// accumulated instead of buffering an oversized body in full first.
func readLimited(r io.Reader, max int64) ([]byte, error) {
	limited := io.LimitReader(r, max+1)
	buf := new(bytes.Buffer)
	n, err := io.Copy(buf, limited)
	if err != nil {
		return nil, domain.Wrap(domain.KindUpstream, "read source body", err)
	}
	if n > max {
		return nil, domain.NewError(domain.KindTooLarge, "source exceeds size limit")
	}
	return buf.Bytes(), nil
}

// validateImageBytes decodes the header to guard against truthful
// Content-Type headers paired with mis-typed or truncated content.
func validateImageBytes(b []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return domain.Wrap(domain.KindNotAnImage, "source does not decode as an image", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return domain.NewError(domain.KindNotAnImage, "source has zero dimensions")
	}
	return nil
}
