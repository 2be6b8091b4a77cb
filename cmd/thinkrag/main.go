// Command thinkrag answers questions about local documents and web pages.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driven/ai"
	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driven/config/file"
	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driven/storage/memory"
	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driven/storage/sqlite"
	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driven/vector/flat"
	"github.com/weiranzhiqian/ThinkRAG/internal/adapters/driving/cli"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/domain"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/ports/driven"
	"github.com/weiranzhiqian/ThinkRAG/internal/core/services"
	"github.com/weiranzhiqian/ThinkRAG/internal/logger"
	"github.com/weiranzhiqian/ThinkRAG/internal/normalisers"
	"github.com/weiranzhiqian/ThinkRAG/internal/postprocessors"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// A missing .env file is fine.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli.SetVersion(version)
	cli.SetBootstrap(bootstrap)

	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// bootstrap wires the driven adapters into the core services.
func bootstrap(ctx context.Context, opts cli.Options) (*cli.Services, func(), error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, nil, fmt.Errorf("getting home directory: %w", err)
	}
	baseDir := filepath.Join(home, ".thinkrag")

	configStore, err := file.NewConfigStore(baseDir)
	if err != nil {
		return nil, nil, fmt.Errorf("opening config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())

	settings := domain.DefaultAppSettings()
	if s, err := settingsService.Get(); err == nil && s != nil {
		settings = *s
	} else if err != nil {
		logger.Warn("Reading settings, using defaults: %v", err)
	}

	prompts, err := file.NewPromptStore(filepath.Join(baseDir, "prompts"))
	if err != nil {
		return nil, nil, fmt.Errorf("opening prompts: %w", err)
	}

	var (
		docStore  driven.DocumentStore
		chatStore driven.ChatStore
		closers   []func() error
	)
	if opts.Ephemeral || settings.Storage.Backend == domain.StorageMemory {
		logger.Debug("Using in-memory storage")
		docStore = memory.NewDocumentStore()
		chatStore = memory.NewChatStore()
	} else {
		path := settings.Storage.Path
		if path == "" {
			path = filepath.Join(baseDir, "data", sqlite.DefaultFileName)
		}
		store, err := sqlite.NewStore(path)
		if err != nil {
			return nil, nil, fmt.Errorf("opening knowledge base: %w", err)
		}
		logger.Debug("Using sqlite storage at %s", store.Path())
		docStore = store.DocumentStore()
		chatStore = store.ChatStore()
		closers = append(closers, store.Close)
	}

	index := flat.New()
	aiServices := ai.Initialise(ctx, settings, prompts)

	engine := services.NewQueryEngine(docStore, index, aiServices.EmbeddingService, aiServices.LLMService, settings.Query)
	engine.SetReranker(aiServices.Reranker)
	engine.SetPromptStore(prompts)

	ingest := services.NewIngestService(
		docStore, index, aiServices.EmbeddingService,
		normalisers.NewDefaultRegistry(), postprocessors.NewDefaultRegistry(),
		settings.Ingest,
	)
	kb := services.NewKnowledgeBaseService(docStore, index)

	if n, err := kb.Warm(ctx); err != nil {
		logger.Warn("Loading index: %v", err)
	} else if n > 0 {
		logger.Debug("Loaded %d index entries", n)
	}

	release := func() {
		aiServices.Close()
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn("Closing store: %v", err)
			}
		}
	}

	return &cli.Services{
		Query:         engine,
		Sessions:      services.NewSessionManager(engine, chatStore, settings.Chat.Greeting),
		KnowledgeBase: kb,
		Ingest:        ingest,
		Watch:         services.NewWatchService(ingest, kb),
		Settings:      settingsService,
	}, release, nil
}
