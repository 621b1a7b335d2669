/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"ragline/pkg/ai"
	"ragline/pkg/config"
	"ragline/pkg/rag"

	"github.com/spf13/cobra"
)

var promptText string

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Send a prompt or start an interactive chat",
	Long:  "Loads the configuration, builds the document index, and answers one prompt or starts an interactive chat without involving WhatsApp.",
	Run: func(cmd *cobra.Command, args []string) {
		prompt := resolvePrompt(args)

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		backend, err := ai.New(cfg)
		if err != nil {
			fmt.Printf("failed to initialize model backend: %v\n", err)
			return
		}

		ctx := context.Background()
		if err := backend.Health(ctx); err != nil {
			fmt.Printf("backend health check failed: %v\n", err)
			return
		}

		quiet := slog.New(slog.DiscardHandler)
		engine := rag.New(ctx, cfg.RAG, backend, quiet)
		if !engine.Available() {
			fmt.Println("note: document index unavailable, answering from the model alone")
		}

		if prompt != "" {
			runSinglePrompt(ctx, engine, prompt)
			return
		}

		runInteractive(ctx, engine)
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&promptText, "prompt", "p", "", "prompt text to send")
}

func resolvePrompt(args []string) string {
	if value := strings.TrimSpace(promptText); value != "" {
		return value
	}

	if len(args) == 0 {
		return ""
	}

	value := strings.TrimSpace(strings.Join(args, " "))
	if value == "" {
		return ""
	}

	return value
}

func runSinglePrompt(ctx context.Context, engine *rag.Engine, prompt string) {
	response, err := engine.Query(ctx, prompt)
	if err != nil {
		fmt.Printf("query failed: %v\n", err)
		return
	}

	fmt.Println(response)
}

func runInteractive(ctx context.Context, engine *rag.Engine) {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("👤 ")
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				fmt.Printf("input error: %v\n", err)
			}
			return
		}

		prompt := strings.TrimSpace(scanner.Text())
		if prompt == "" {
			continue
		}
		if isExitCommand(prompt) {
			return
		}

		response, err := engine.Query(ctx, prompt)
		if err != nil {
			fmt.Printf("query failed: %v\n", err)
			continue
		}

		printAssistantMessage(response)
	}
}

func printAssistantMessage(message string) {
	lines := assistantLines(message)
	for _, line := range lines {
		fmt.Printf("🤖 %s\n", line)
	}
	if len(lines) > 0 {
		fmt.Println()
	}
}

func assistantLines(message string) []string {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return nil
	}

	return strings.Split(trimmed, "\n")
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "quit", ":q":
		return true
	default:
		return false
	}
}
