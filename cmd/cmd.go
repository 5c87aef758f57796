package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xhad/docchat/internal/types"
	"github.com/xhad/docchat/pkg/chat"
	cfgPkg "github.com/xhad/docchat/pkg/config"
	"github.com/xhad/docchat/pkg/extract"
	"github.com/xhad/docchat/pkg/ingest"
	"github.com/xhad/docchat/pkg/llm"
	"github.com/xhad/docchat/pkg/logging"
	"github.com/xhad/docchat/pkg/outbound"
	"github.com/xhad/docchat/pkg/processor"
	"github.com/xhad/docchat/pkg/retrieval"
	"github.com/xhad/docchat/pkg/settings"
	"github.com/xhad/docchat/pkg/store"
	"go.uber.org/zap"
)

var (
	configPath string
	logLevel   string
	dbURL      string
)

var rootCmd = &cobra.Command{
	Use:           "docchat",
	Short:         "Chat with your documents over HTTP, WhatsApp or the terminal",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "PostgreSQL connection string (overrides DATABASE_URL)")
}

// app holds the wired components shared by every command.
type app struct {
	config       *cfgPkg.Config
	logger       *zap.Logger
	store        types.DocumentStore
	settings     *settings.Store
	gateway      *llm.Gateway
	sender       *outbound.Sender
	orchestrator *chat.Orchestrator
	ingester     *ingest.Ingester
}

func newApp(ctx context.Context) (*app, error) {
	config, err := cfgPkg.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		config.Log.Level = logLevel
	}
	if dbURL != "" {
		config.Database.URL = dbURL
	}

	if errs := config.Validate(); len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
	}

	logger, err := logging.New(config.Log.Level, config.Log.JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	var docStore types.DocumentStore
	if config.Database.URL != "" {
		pg, err := store.NewPGStore(ctx, store.PGStoreConfig{
			ConnString: config.Database.URL,
			VectorDim:  config.Database.VectorDim,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize document store: %w", err)
		}
		docStore = pg
	} else {
		logger.Warn("no database configured, documents are kept in memory")
		docStore = store.NewMemoryStore()
	}

	settingsStore := settings.NewStore(settings.ChatConfig{
		Model:        config.LLM.Model,
		SystemPrompt: config.Chat.SystemPrompt,
	})

	retriever := retrieval.New(docStore, retrieval.Config{
		Keywords:        config.Retrieval.Keywords,
		ChunkLimit:      config.Retrieval.ChunkLimit,
		DocumentLimit:   config.Retrieval.DocumentLimit,
		DocumentExcerpt: config.Retrieval.DocumentExcerpt,
	}, logger)

	gateway := llm.NewGateway(llm.Config{
		BaseURL:     config.LLM.BaseURL,
		APIKey:      config.LLM.APIKey,
		Model:       config.LLM.Model,
		Temperature: &config.LLM.Temperature,
		MaxTokens:   config.LLM.MaxTokens,
		Timeout:     config.LLM.Timeout,
		Referer:     config.LLM.Referer,
		Title:       config.LLM.Title,
	}, settingsStore, docStore, logger)

	sender := outbound.New(outbound.Config{
		BaseURL:   config.Messaging.BaseURL,
		APIKey:    config.Messaging.APIKey,
		Timeout:   config.Messaging.Timeout,
		RateLimit: config.Messaging.RateLimit,
	}, logger)

	orchestrator := chat.New(retriever, gateway, sender, settingsStore, chat.Config{
		SystemPrompt:          config.Chat.SystemPrompt,
		MessagingSystemPrompt: config.Messaging.SystemPrompt,
	}, logger)

	chunker := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    config.Processor.ChunkSize,
		ChunkOverlap: config.Processor.ChunkOverlap,
	})
	ingester := ingest.New(docStore, extract.New(config.Upload.AllowedExtensions), &chunker, logger)

	return &app{
		config:       config,
		logger:       logger,
		store:        docStore,
		settings:     settingsStore,
		gateway:      gateway,
		sender:       sender,
		orchestrator: orchestrator,
		ingester:     ingester,
	}, nil
}

func (a *app) Close() {
	a.store.Close()
	// Sync fails on terminals for stderr; ignore it
	_ = a.logger.Sync()
}
