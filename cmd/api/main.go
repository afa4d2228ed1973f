package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reelworks/newsreel/internal/api"
	"github.com/reelworks/newsreel/internal/config"
	"github.com/reelworks/newsreel/internal/db"
	"github.com/reelworks/newsreel/internal/media"
	"github.com/reelworks/newsreel/internal/queue"
	"github.com/reelworks/newsreel/internal/services"
	"github.com/reelworks/newsreel/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[Main] Config error: %v", err)
	}

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("[Main] Database connection failed: %v", err)
	}
	defer database.Close()

	if err := database.InitSchema(context.Background()); err != nil {
		log.Fatalf("[Main] Schema init failed: %v", err)
	}

	renderQueue, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("[Main] Redis connection failed: %v", err)
	}
	defer renderQueue.Close()

	store, err := media.NewStore(cfg.MediaDir, cfg.AssetsDir)
	if err != nil {
		log.Fatalf("[Main] Media store init failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Background worker: provider cascades, asset pipeline, compositor.
	if cfg.WorkerEnabled {
		cascades := services.BuildCascades(services.CascadeKeys{
			OpenAI:       cfg.OpenAIKey,
			UnrealSpeech: cfg.UnrealSpeechKey,
			Gemini:       cfg.GeminiKey,
			Serper:       cfg.SerperKey,
			Brave:        cfg.BraveKey,
			Pexels:       cfg.PexelsKey,
			Pixabay:      cfg.PixabayKey,
		}, cfg.ProviderTimeout)

		ffmpeg := services.NewFFmpegService(store.TempDir())
		downloader := media.NewDownloader(store.TempDir())

		pipelineCfg := media.DefaultPipelineConfig()
		pipelineCfg.ImageNominalSeconds = cfg.ImageNominalSeconds
		pipeline := media.NewPipeline(downloader, ffmpeg, store, cascades, pipelineCfg)
		compositor := media.NewCompositor(ffmpeg, store, cfg.CrossfadeSeconds, cfg.KenBurnsZoomRatio)

		var transcriber worker.Transcriber
		if cfg.OpenAIKey != "" {
			transcriber = services.NewOpenAIService(cfg.OpenAIKey)
		}

		w := worker.New(database, renderQueue, store, ffmpeg, pipeline, compositor, cascades, transcriber, cfg)
		go w.Start(ctx)
	} else {
		log.Printf("[Main] Worker disabled, serving API only")
	}

	handlers := api.NewHandlers(database, renderQueue, cfg)
	router := api.NewRouter(handlers, api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("[Main] API listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("[Main] Server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("[Main] Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Main] Shutdown error: %v", err)
	}
}
