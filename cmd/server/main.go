package main

import (
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/stepshot/stepshot/internal/align"
	"github.com/stepshot/stepshot/internal/api"
	"github.com/stepshot/stepshot/internal/cache"
	"github.com/stepshot/stepshot/internal/config"
	"github.com/stepshot/stepshot/internal/inference"
	"github.com/stepshot/stepshot/internal/procedure"
	"github.com/stepshot/stepshot/internal/segment"
	"github.com/stepshot/stepshot/internal/storage"
	"github.com/stepshot/stepshot/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting stepshot server")

	localStorage, err := storage.NewLocalStorage(cfg.UploadDir)
	fatalOnErr(err, "initialize storage")

	store, err := cache.NewStore(cache.Config{
		Backend:    cfg.CacheBackend,
		SQLitePath: cfg.CacheSQLitePath,
		BadgerPath: cfg.CacheBadgerPath,
	})
	fatalOnErr(err, "open cache store")
	defer store.Close()

	if cfg.OpenAIAPIKey == "" {
		log.Warn("OPENAI_API_KEY not set; alignment requests will fail")
	}
	openaiClient := inference.NewOpenAIClient(cfg.OpenAIAPIKey)
	cached := cache.NewClient(store, openaiClient, openaiClient, log)

	detector, err := segment.NewFFmpegDetector()
	fatalOnErr(err, "initialize scene detector")

	extractor, err := segment.NewFFmpegExtractor(cfg.FrameSize)
	fatalOnErr(err, "initialize frame extractor")
	defer extractor.Cleanup()

	segmenter := segment.NewService(detector, extractor, extractor, segment.Config{
		Threshold: cfg.SceneThreshold,
		MinFrames: cfg.MinFrames,
		MaxFrames: cfg.MaxFrames,
	}, log)

	engine := align.NewEngine(cfg.AlignJumpCost, cfg.AlignTopK, log)
	pipeline := procedure.NewService(segmenter, cached, engine, openaiClient, log)

	app := &api.App{
		Storage:       localStorage,
		Videos:        api.NewVideoRegistry(),
		Segmenter:     segmenter,
		Aligner:       pipeline,
		MaxUploadSize: cfg.MaxUploadSize,
		Logger:        log,
	}

	router := api.NewRouter(app)

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Info("server listening",
		zap.String("addr", addr),
		zap.String("upload_dir", cfg.UploadDir),
		zap.String("cache_backend", cfg.CacheBackend),
	)

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
		os.Exit(1)
	}
}
