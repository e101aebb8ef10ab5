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

	"tapestry/api/internal/app"
	"tapestry/api/internal/blob"
	"tapestry/api/internal/canvasrepo"
	"tapestry/api/internal/config"
	"tapestry/api/internal/enrich"
	"tapestry/api/internal/notify"
	"tapestry/api/internal/provider"
	"tapestry/api/internal/scrape"
	"tapestry/api/internal/search"
	"tapestry/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	if err := store.ApplyMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	if err := os.MkdirAll(cfg.SnapshotsDir, 0o755); err != nil {
		log.Fatalf("failed to create snapshots dir: %v", err)
	}

	dataStore := store.NewPostgresStore(db)
	snapshots := canvasrepo.New(cfg.SnapshotsDir)

	fallback := search.NewPgFallback(db)
	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.MeiliURL, cfg.MeiliMasterKey)
		defer meiliClient.Close()
	}
	searchService := search.NewService(meiliClient, fallback)

	var notifier *notify.RedisNotifier
	if strings.TrimSpace(cfg.RedisURL) != "" {
		notifier, err = notify.NewRedisNotifier(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis connection failed: %v", err)
		}
		defer notifier.Close()
	} else {
		log.Printf("No Redis configured, status notifications disabled")
	}

	var blobs *blob.Store
	if strings.TrimSpace(cfg.MinioEndpoint) != "" {
		blobs, err = blob.New(ctx, cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Printf("WARNING: blob store unavailable, ad media and generated images disabled: %v", err)
		}
	}

	social := provider.NewClient(cfg.SocialAPIURL, cfg.SocialAPIKey)
	webscrape := provider.NewClient(cfg.ScrapeAPIURL, cfg.ScrapeAPIKey)
	ads := provider.NewClient(cfg.AdLibraryAPIURL, cfg.AdLibraryAPIKey)
	imagegen := provider.NewImageGen(cfg.ImageGenAPIURL, cfg.ImageGenAPIKey)

	queue := enrich.NewQueue(cfg.EnrichWorkers, 256)
	engineDeps := enrich.EngineDeps{
		Store:         dataStore,
		Social:        social,
		WebScrape:     webscrape,
		Ads:           ads,
		Chrome:        scrape.NewChrome(),
		ImageGen:      imagegen,
		Notifier:      nil,
		Index:         searchService,
		PublicBaseURL: cfg.PublicBaseURL,
	}
	if notifier != nil {
		engineDeps.Notifier = notifier
	}
	if blobs != nil {
		engineDeps.Blobs = blobs
	}
	engine := enrich.NewEngine(engineDeps)
	engine.Bind(queue)

	queueCtx, stopQueue := context.WithCancel(ctx)
	queue.Start(queueCtx)
	defer stopQueue()

	service := app.New(cfg, dataStore, queue, snapshots, searchService, blobs, social, notifier)

	httpServer := app.NewHTTPServer(service, cfg.CORSOrigin)
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Tapestry API listening on %s", cfg.Addr)
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
	queue.Stop()
}
