package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/filedrive/semdex/internal/clients/hf"
	"github.com/filedrive/semdex/internal/clients/openai"
	"github.com/filedrive/semdex/internal/config"
	"github.com/filedrive/semdex/internal/embedder"
	"github.com/filedrive/semdex/internal/indexer"
	"github.com/filedrive/semdex/internal/logger"
	"github.com/filedrive/semdex/internal/media"
	"github.com/filedrive/semdex/internal/searcher"
	"github.com/filedrive/semdex/internal/server"
	"github.com/filedrive/semdex/internal/stager"
	"github.com/filedrive/semdex/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if *showVersion {
		fmt.Printf("semdex %s\n", version)
		fmt.Printf("Build Time: %s\n", buildTime)
		fmt.Printf("Build Mode: %s\n", storage.BuildMode)
		fmt.Printf("SQLite Driver: %s\n", storage.DriverName)
		os.Exit(0)
	}

	// Local development convenience; a missing .env is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", "error", err)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	emb, err := embedder.New(embedder.Config{
		Provider:     cfg.Embedder.Provider,
		HFToken:      cfg.HF.Token,
		HFURL:        cfg.HF.EmbeddingURL,
		OpenAIAPIKey: cfg.Embedder.OpenAIKey,
		Timeout:      cfg.Indexing.CallTimeout.Std(),
		CacheSize:    cfg.Embedder.CacheSize,
	})
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	defer func() { _ = emb.Close() }()
	log.Info("embedding provider selected", "provider", emb.Provider(), "dimension", emb.Dimension())

	captioner, features := inferenceCapabilities(cfg, log)
	transcriber := transcriptionCapability(cfg, log)

	tools := media.NewTools(cfg.Indexing.CallTimeout.Std(), log)
	if err := tools.AssertReady(context.Background()); err != nil {
		log.Warn("ffmpeg not available, video and audio files will not be indexable", "error", err)
	}

	fs := stager.NewLocalFS(cfg.FilesRoot)
	stage := stager.New(fs, fs, cfg.TmpDir, log)

	search := searcher.New(store, emb, log)
	idx := indexer.New(indexer.Deps{
		Stager:      stage,
		Captioner:   captioner,
		Features:    features,
		Transcriber: transcriber,
		Frames:      tools,
		Audio:       tools,
		Embedder:    emb,
		Store:       store,
		Logger:      log,
		Workers:     cfg.Indexing.Workers,
		Invalidator: search,
	})

	srv := server.New(cfg.HTTPAddr, search, idx, server.Options{
		TopK:      cfg.Search.TopK,
		Threshold: cfg.Search.Threshold,
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return srv.Run(ctx)
}

// inferenceCapabilities wires captioning and text-feature extraction, or
// disabled stand-ins when the inference endpoint is not configured. The
// pipeline treats their errors as per-branch degradation.
func inferenceCapabilities(cfg *config.Config, log *logger.Logger) (openai.Captioner, openai.FeatureExtractor) {
	client, err := openai.NewClient(openai.Config{
		BaseURL: cfg.Inference.BaseURL,
		APIKey:  cfg.Inference.APIKey,
		Timeout: cfg.Indexing.CallTimeout.Std(),
	}, log)
	if err != nil {
		log.Warn("inference endpoint not configured, captioning and feature extraction disabled")
		return disabledCaptioner{}, disabledFeatures{}
	}
	return openai.NewCaptioner(client, cfg.Inference.CaptionModel, log),
		openai.NewFeatureExtractor(client, cfg.Inference.FeatureModel, log)
}

func transcriptionCapability(cfg *config.Config, log *logger.Logger) hf.Transcriber {
	transcriber, err := hf.NewTranscriber(hf.TranscriberConfig{
		Token:   cfg.HF.Token,
		URL:     cfg.HF.TranscriptionURL,
		Timeout: cfg.Indexing.TranscriptionTimeout.Std(),
	}, log)
	if err != nil {
		log.Warn("transcription endpoint not configured, audio files will not be indexable")
		return disabledTranscriber{}
	}
	return transcriber
}

var errCapabilityDisabled = errors.New("capability not configured")

type disabledCaptioner struct{}

func (disabledCaptioner) Caption(context.Context, []byte) (string, error) {
	return "", errCapabilityDisabled
}

type disabledFeatures struct{}

func (disabledFeatures) Extract(context.Context, string) (openai.Features, error) {
	return openai.Features{}, errCapabilityDisabled
}

type disabledTranscriber struct{}

func (disabledTranscriber) Transcribe(context.Context, string) (string, error) {
	return "", errCapabilityDisabled
}
