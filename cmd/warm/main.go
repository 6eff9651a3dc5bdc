// Command warm drives a batch of already-signed /img URLs through the
// transform pipeline directly, so the first real request against each
// is already a cache hit. Each line carries its own w/h/f/q/sig, so a
// single run can warm a heterogeneous batch of per-asset-tuned URLs.
package main

import (
	"bufio"
	"context"
	"flag"
	"log"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/dunamismax/imagekit/internal/cache"
	"github.com/dunamismax/imagekit/internal/config"
	"github.com/dunamismax/imagekit/internal/domain"
	"github.com/dunamismax/imagekit/internal/fetcher"
	"github.com/dunamismax/imagekit/internal/pipeline"
	"github.com/dunamismax/imagekit/internal/transformer"
)

func main() {
	urlsPath := flag.String("urls", "", "path to a file of newline-separated, already-signed /img URLs to warm")
	flag.Parse()

	logger := log.New(os.Stdout, "[warm] ", log.LstdFlags|log.Lmsgprefix)

	if *urlsPath == "" {
		logger.Fatal("-urls is required")
	}

	cfg := config.Load()
	if len(cfg.API.Secret) == 0 {
		logger.Fatal("IMAGEKIT_SECRET is required")
	}

	if err := transformer.Startup(); err != nil {
		logger.Fatalf("initialize image runtime: %v", err)
	}
	defer transformer.Shutdown()

	backend, err := cache.Build(context.Background(), cfg)
	if err != nil {
		logger.Fatalf("initialize cache backend: %v", err)
	}

	f := fetcher.New(fetcher.Config{Timeout: cfg.Transform.FetchTimeout})
	t := transformer.New()
	c := cache.New(backend)

	pipelineCfg := pipeline.Config{
		Secret:         cfg.API.Secret,
		MaxInputBytes:  cfg.Transform.MaxInputBytes,
		AllowedFormats: cfg.Transform.AllowedFormats,
		DefaultFormat:  cfg.Transform.DefaultFormat,
	}
	p := pipeline.New(pipelineCfg, f, t, c, cfg.Transform.Concurrency)

	lines, err := readLines(*urlsPath)
	if err != nil {
		logger.Fatalf("read urls file: %v", err)
	}

	sem := make(chan struct{}, max(1, cfg.Transform.Concurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex
	var warmed, failed int

	for _, line := range lines {
		line := line
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			if err := warmOne(p, line); err != nil {
				logger.Printf("warm failed url=%s err=%v", line, err)
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}
			mu.Lock()
			warmed++
			mu.Unlock()
		}()
	}
	wg.Wait()

	logger.Printf("done warmed=%d failed=%d total=%d", warmed, failed, len(lines))
}

// warmOne parses the query string off a signed /img URL and replays
// it through the pipeline exactly as the API handler would, so the
// line's own w/h/f/q/sig decide what gets produced and cached.
func warmOne(p *pipeline.Pipeline, signedURL string) error {
	parsed, err := url.Parse(signedURL)
	if err != nil {
		return domain.NewError(domain.KindInvalidArgument, "malformed signed url")
	}
	params := domain.ParamsFromValues(parsed.Query())

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	_, err = p.Transform(ctx, pipeline.TransformRequest{Params: params, Now: time.Now().Unix()})
	return err
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

