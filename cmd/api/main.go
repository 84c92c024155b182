package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"watershed/api/internal/app"
	"watershed/api/internal/chat"
	"watershed/api/internal/config"
	"watershed/api/internal/dataset"
	"watershed/api/internal/observability"
	"watershed/api/internal/replstore"
	"watershed/api/internal/search"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	systemsSource, zipsSource, err := snapshotSources(cfg)
	if err != nil {
		log.Fatalf("snapshot source configuration failed: %v", err)
	}

	redisStore, err := replstore.NewRedisStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("redis connection failed: %v", err)
	}
	defer redisStore.Close()

	metrics := observability.NewMetrics()

	var streamer chat.Streamer
	if strings.TrimSpace(cfg.ChatAPIKey) != "" {
		streamer = chat.NewOpenAIStreamer(cfg.ChatAPIKey, cfg.ChatBaseURL, cfg.ChatModel)
	} else {
		log.Printf("Chat assistant disabled: no API key configured")
	}

	service := app.NewService(redisStore, streamer, metrics, clockwork.NewRealClock())
	service.SetPinger(redisStore)

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	memory := search.NewMemory(service.Snapshot)
	service.SetSearch(search.NewService(meiliClient, memory))

	loadSnapshot(ctx, service, metrics, systemsSource, zipsSource)
	if cfg.SnapshotRefresh > 0 {
		go refreshLoop(ctx, service, metrics, systemsSource, zipsSource, cfg.SnapshotRefresh)
	}

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No WriteTimeout: annotation and chat streams stay open
		// until the client disconnects.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("Watershed API listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func snapshotSources(cfg config.Config) (dataset.Source, dataset.Source, error) {
	switch cfg.SnapshotKind {
	case "http":
		return dataset.NewHTTPSource(cfg.SystemsURL), dataset.NewHTTPSource(cfg.ZipsURL), nil
	case "s3":
		systems, err := dataset.NewObjectSource(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, "data.json", cfg.S3UseSSL)
		if err != nil {
			return nil, nil, err
		}
		zips, err := dataset.NewObjectSource(cfg.S3Endpoint, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, "zip_codes.json", cfg.S3UseSSL)
		if err != nil {
			return nil, nil, err
		}
		return systems, zips, nil
	default:
		return &dataset.FileSource{Path: cfg.SystemsPath}, &dataset.FileSource{Path: cfg.ZipsPath}, nil
	}
}

// loadSnapshot fetches and installs the dataset. A failed load keeps the
// previous snapshot (the empty one on first boot) so the dashboard
// renders an empty state instead of crashing.
func loadSnapshot(ctx context.Context, service *app.Service, metrics *observability.Metrics, systems, zips dataset.Source) {
	loadCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	ds, err := dataset.Load(loadCtx, systems, zips)
	if err != nil {
		metrics.SnapshotLoads.WithLabelValues("error").Inc()
		log.Printf("WARNING: snapshot load failed, serving empty dataset: %v", err)
		return
	}
	metrics.SnapshotLoads.WithLabelValues("ok").Inc()
	service.ReplaceDataset(ds)
	log.Printf("snapshot loaded: %d systems, %d zip centroids", len(ds.Systems), len(ds.Zips))
}

func refreshLoop(ctx context.Context, service *app.Service, metrics *observability.Metrics, systems, zips dataset.Source, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			loadSnapshot(ctx, service, metrics, systems, zips)
		}
	}
}
