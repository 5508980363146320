// Command liora is the terminal front end: chat, learning insights,
// encyclopedia lookups and an MCP stdio server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liora/internal/app"
	"liora/internal/config"
	"liora/internal/learning"
)

// cliOwner tags conversations started from the terminal.
const cliOwner = "cli"

var (
	envFile  string
	logLevel string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "liora",
	Short: "Liora - persona chat assistant with encyclopedia augmentation",
	Long: `Liora chats through a configurable persona, occasionally weaving
encyclopedia facts into its replies and learning which topics land well.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if envFile != "" {
			// A missing .env is fine; the environment may already be set.
			_ = godotenv.Load(envFile)
		}
		c, err := config.New()
		if err != nil {
			return err
		}
		if logLevel != "" {
			c.LogLevel = logLevel
		}
		l, err := app.NewLogger(c.LogLevel)
		if err != nil {
			return err
		}
		cfg, logger = c, l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(newChatCmd(), newInsightsCmd(), newWikiCmd(), newMCPCmd())
}

// build wires the application for commands that need the full assistant.
func build(ctx context.Context) (*app.App, error) {
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build assistant: %w", err)
	}
	return a, nil
}

// openLearning opens the learning state read by insights and mcp.
func openLearning() (*learning.Store, error) {
	var persister learning.Persister
	if cfg.LearningFilePath != "" {
		fs, err := learning.NewFileStore(cfg.LearningFilePath)
		if err != nil {
			return nil, fmt.Errorf("learning store: %w", err)
		}
		persister = fs
	}
	return learning.New(persister, learning.WithLogger(logger.Named("learning"))), nil
}

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		logger.Error("failed to flush learning state", zap.Error(err))
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
