package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/imagekit/internal/api"
	"github.com/dunamismax/imagekit/internal/cache"
	"github.com/dunamismax/imagekit/internal/config"
	"github.com/dunamismax/imagekit/internal/fetcher"
	"github.com/dunamismax/imagekit/internal/pipeline"
	"github.com/dunamismax/imagekit/internal/telemetry"
	"github.com/dunamismax/imagekit/internal/transformer"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[imagekit] ", log.LstdFlags|log.Lmsgprefix)

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

	if cfg.Cache.Backend == "disk" {
		if err := cache.SweepTempFiles(cfg.Cache.Dir); err != nil {
			logger.Printf("startup temp sweep failed: %v", err)
		}
	}

	ctx := context.Background()
	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName: "imagekit",
		Exporter:    os.Getenv("IMAGEKIT_TRACE_EXPORTER"),
	}, logger)
	if err != nil {
		logger.Fatalf("initialize tracing: %v", err)
	}
	defer shutdownTracing(ctx)

	f := fetcher.New(fetcher.Config{Timeout: cfg.Transform.FetchTimeout})
	t := transformer.New()
	c := cache.New(backend)

	p := pipeline.New(pipeline.Config{
		Secret:         cfg.API.Secret,
		MaxInputBytes:  cfg.Transform.MaxInputBytes,
		AllowedFormats: cfg.Transform.AllowedFormats,
		DefaultFormat:  cfg.Transform.DefaultFormat,
	}, f, t, c, cfg.Transform.Concurrency)

	app := api.NewServer(logger, p, c)

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", cfg.API.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}
