package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ragline/pkg/ai"
	"ragline/pkg/audio"
	"ragline/pkg/config"
	"ragline/pkg/logger"
	"ragline/pkg/rag"
	"ragline/pkg/webhook"
	"ragline/pkg/whatsapp"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook server",
	Long:  "Runs the WhatsApp webhook server with health and readiness endpoints.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.serve")

		if err := cfg.Validate(); err != nil {
			log.Error("Configuration invalid", "error", err)
			return
		}

		backend, err := ai.New(cfg)
		if err != nil {
			log.Error("Failed to initialize model backend", "error", err)
			return
		}

		transport, err := whatsapp.NewClient(cfg.WhatsApp, log)
		if err != nil {
			log.Error("Failed to initialize WhatsApp client", "error", err)
			return
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		engine := rag.Shared(runCtx, cfg.RAG, backend, log)
		adapter := audio.NewAdapter(backend, log)
		handler := webhook.NewHandler(transport, engine, adapter, cfg.WhatsApp.AllowFrom, log)

		server, err := webhook.NewServer(cfg, handler, backend, engine, log)
		if err != nil {
			log.Error("Failed to initialize webhook server", "error", err)
			return
		}

		log.Info("Serving", "model", cfg.OpenAI.ChatModel, "index_available", engine.Available())
		if err := server.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("Webhook server failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
