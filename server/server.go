// Package server exposes the chat pipeline, document management and the
// messaging webhook over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xhad/docchat/internal/types"
	"github.com/xhad/docchat/pkg/chat"
	"github.com/xhad/docchat/pkg/ingest"
	"github.com/xhad/docchat/pkg/settings"
	"go.uber.org/zap"
)

// Status reports which collaborators are configured, for /health.
type Status struct {
	OpenRouter bool `json:"openrouter"`
	Database   bool `json:"database"`
	Evolution  bool `json:"evolution"`
}

type Config struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxFileSize  int64
	MaxFiles     int
	Status       Status
}

type Server struct {
	config   Config
	store    types.DocumentStore
	chat     *chat.Orchestrator
	ingester *ingest.Ingester
	settings *settings.Store
	validate *validator.Validate
	logger   *zap.Logger
	handler  http.Handler
}

func New(config Config, store types.DocumentStore, orchestrator *chat.Orchestrator, ingester *ingest.Ingester, settingsStore *settings.Store, logger *zap.Logger) *Server {
	if config.Port == "" {
		config.Port = "3001"
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 15 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 90 * time.Second
	}
	if config.MaxFileSize == 0 {
		config.MaxFileSize = 10 << 20
	}
	if config.MaxFiles == 0 {
		config.MaxFiles = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		config:   config,
		store:    store,
		chat:     orchestrator,
		ingester: ingester,
		settings: settingsStore,
		validate: validator.New(),
		logger:   logger.Named("server"),
	}
	s.handler = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /documents", s.handleListDocuments)
	mux.HandleFunc("DELETE /documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /config", s.handleGetConfig)
	mux.HandleFunc("POST /config", s.handleSetConfig)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	// the web client calls the same routes under /api
	mux.Handle("/api/", http.StripPrefix("/api", mux))

	return s.recoverPanics(s.logRequests(cors(mux)))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}
