package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"liora/internal/app"
	"liora/internal/auth"
	"liora/internal/config"
	"liora/internal/scheduler"
	"liora/internal/telegram"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg, err := config.New()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := app.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build assistant", zap.Error(err))
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("failed to flush learning state", zap.Error(err))
		}
	}()

	var allowRepo auth.Repository
	if cfg.UsersFilePath != "" {
		repo, err := auth.NewFileRepository(cfg.UsersFilePath)
		if err != nil {
			logger.Warn("failed to init allowlist repo", zap.Error(err))
		} else {
			allowRepo = repo
		}
	}
	authSvc, err := auth.NewWithRepo(allowRepo, cfg.AllowedUsers)
	if err != nil {
		logger.Warn("allowlist file unreadable, using env list only", zap.Error(err))
	}

	var pendingRepo auth.Repository
	if cfg.PendingUsersFilePath != "" {
		repo, err := auth.NewFileRepository(cfg.PendingUsersFilePath)
		if err != nil {
			logger.Warn("failed to init pending repo", zap.Error(err))
		} else {
			pendingRepo = repo
		}
	}

	bot, err := telegram.New(cfg.TelegramBotToken, telegram.Deps{
		Assistant:   a.Assistant,
		Auth:        authSvc,
		Pending:     pendingRepo,
		Retriever:   a.Retriever,
		Recorder:    a.Recorder,
		AdminUserID: cfg.AdminUserID,
		Logger:      logger.Named("telegram"),
	})
	if err != nil {
		logger.Fatal("failed to create bot", zap.Error(err))
	}

	sched := scheduler.New(cfg.DailyReportSpec, logger.Named("scheduler"))
	sched.SetReportFunction(bot.SendDailyReport)
	if err := sched.Start(); err != nil {
		logger.Error("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	bot.Start(ctx)
}
