package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xhad/docchat/pkg/llm"
	"github.com/xhad/docchat/server"
	"go.uber.org/zap"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, webhook and websocket server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "Port to listen on (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.config
	if servePort != "" {
		cfg.Server.Port = servePort
	}

	status := server.Status{
		OpenRouter: llm.ValidKey(cfg.LLM.APIKey),
		Database:   cfg.Database.URL != "",
		Evolution:  a.sender.Configured(),
	}
	a.logger.Info("collaborators",
		zap.Bool("openrouter", status.OpenRouter),
		zap.Bool("database", status.Database),
		zap.Bool("evolution", status.Evolution),
		zap.String("public_base_url", cfg.Server.PublicBaseURL))

	srv := server.New(server.Config{
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		MaxFileSize:  cfg.Upload.MaxFileSize,
		MaxFiles:     cfg.Upload.MaxFiles,
		Status:       status,
	}, a.store, a.orchestrator, a.ingester, a.settings, a.logger)

	return srv.Run(ctx)
}
