package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"transitd/internal/cache"
	"transitd/internal/config"
	"transitd/internal/gtfs"
	"transitd/internal/httpapi"
	"transitd/internal/provider"
	"transitd/internal/provider/bkk"
	"transitd/internal/provider/delijn"
	"transitd/internal/provider/sncb"
	"transitd/internal/provider/stib"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting transitd server",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"enabled_providers", cfg.EnabledProviders,
	)

	store, err := cache.NewStore(filepath.Join(cfg.ProjectRoot, "data", "cache"))
	if err != nil {
		logger.Error("failed to initialize cache store", "error", err)
		os.Exit(1)
	}

	registry := provider.NewRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, name := range cfg.EnabledProviders {
		providerCfg, err := config.ProviderConfigFor(name)
		if err != nil {
			logger.Error("failed to load provider config", "provider", name, "error", err)
			os.Exit(1)
		}

		base := provider.NewBase(providerCfg, store, logger.With("provider", name))
		adapter, err := buildAdapter(name, base)
		if err != nil {
			logger.Error("unknown provider", "provider", name, "error", err)
			os.Exit(1)
		}
		registry.Register(name, adapter)

		workDir := filepath.Join(cfg.ProjectRoot, "data", name)
		go runGTFSLifecycle(ctx, base, name, providerCfg.GTFSURL, workDir, logger.With("provider", name))
	}

	httpHandler := httpapi.NewHandler(registry, logger)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpHandler.Routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

// buildAdapter wires a concrete operator adapter onto its shared Base,
// matching the provider name to the package implementing it.
func buildAdapter(name string, base *provider.Base) (provider.Adapter, error) {
	switch name {
	case "stib":
		return stib.New(base), nil
	case "delijn":
		return delijn.New(base, base.Cfg.DefaultLanguage), nil
	case "sncb":
		return sncb.New(base), nil
	case "bkk":
		return bkk.New(base), nil
	default:
		return nil, errUnknownProvider(name)
	}
}

type errUnknownProvider string

func (e errUnknownProvider) Error() string { return "unknown provider: " + string(e) }

// runGTFSLifecycle performs the initial load and then reloads the feed
// every GTFSCacheTTL, per spec.md §4.4/§5's background refresh model and
// the teacher's gtfsIng.Start(ctx) periodic-ingestor pattern.
func runGTFSLifecycle(ctx context.Context, base *provider.Base, name, url, workDir string, log *slog.Logger) {
	loader := gtfs.NewLoader(base.Cache, log)

	load := func() {
		base.Feed.BeginLoad()
		snap, err := loader.Load(ctx, name, url, workDir)
		if err != nil {
			log.Error("gtfs load failed", "error", err)
			base.Feed.FailLoad()
			return
		}
		base.Feed.Publish(snap)
		base.BuildStopIndex(snap)
		log.Info("gtfs feed ready", "stops", len(snap.Stops), "routes", len(snap.Routes))
	}

	load()

	interval := base.Cfg.GTFSCacheTTL
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			load()
		}
	}
}
