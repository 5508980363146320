// Package app wires the assistant and its collaborators from configuration.
package app

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"liora/internal/assistant"
	"liora/internal/augment"
	"liora/internal/config"
	"liora/internal/conversation"
	"liora/internal/encyclopedia"
	"liora/internal/learning"
	"liora/internal/llm"
	"liora/internal/persona"
	"liora/internal/storage"
)

// NewLogger builds a production zap logger writing to stderr at level.
func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zapcore.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// globalRand draws starter questions from the shared math/rand source.
type globalRand struct{}

func (globalRand) Intn(n int) int { return rand.Intn(n) }

type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Assistant *assistant.Assistant
	Retriever *encyclopedia.Retriever
	Learning  *learning.Store
	Personas  *persona.Selector
	Recorder  storage.Recorder
}

// Option adjusts construction, mostly for tests and the CLI.
type Option func(*options)

type options struct {
	client llm.Client
}

// WithLLM skips the provider factory and uses c.
func WithLLM(c llm.Client) Option { return func(o *options) { o.client = c } }

func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	personas := persona.NewSelector(cfg.DefaultPersona)
	if cfg.PersonasFilePath != "" {
		if err := personas.LoadFile(cfg.PersonasFilePath); err != nil {
			logger.Warn("ignoring personas file", zap.String("path", cfg.PersonasFilePath), zap.Error(err))
		}
	}

	wiki := encyclopedia.NewWikipedia(
		encyclopedia.WithRateLimit(cfg.WikiRatePerSecond),
		encyclopedia.WithWikipediaLogger(logger.Named("wikipedia")),
	)
	retriever := encyclopedia.NewRetriever(wiki,
		encyclopedia.WithLanguage(cfg.WikiLanguage),
		encyclopedia.WithTimeout(cfg.WikiTimeout),
		encyclopedia.WithLogger(logger.Named("encyclopedia")),
	)

	var persister learning.Persister
	if cfg.LearningFilePath != "" {
		fs, err := learning.NewFileStore(cfg.LearningFilePath)
		if err != nil {
			return nil, fmt.Errorf("learning store: %w", err)
		}
		persister = fs
	}
	learn := learning.New(persister, learning.WithLogger(logger.Named("learning")))

	convs, err := conversation.Open(cfg.ConversationsFilePath, conversation.WithLogger(logger.Named("conversations")))
	if err != nil {
		return nil, fmt.Errorf("conversation store: %w", err)
	}

	var rec storage.Recorder
	if cfg.LogFilePath != "" {
		fr, err := storage.NewFileRecorder(cfg.LogFilePath)
		if err != nil {
			logger.Warn("failed to init file recorder", zap.Error(err))
		} else {
			rec = fr
		}
	}

	client := o.client
	if client == nil {
		client, err = llm.NewFactory(cfg).CreateClient(ctx, string(cfg.LLMProvider), cfg.Model())
		if err != nil {
			return nil, fmt.Errorf("failed to create llm client: %w", err)
		}
	}

	policy := augment.New(retriever,
		augment.WithLearner(learn),
		augment.WithLogger(logger.Named("augment")),
	)
	a, err := assistant.New(assistant.Deps{
		Conversations: convs,
		Personas:      personas,
		Policy:        policy,
		Learning:      learn,
		LLM:           client,
		Recorder:      rec,
		Logger:        logger.Named("assistant"),
	},
		assistant.WithHistoryWindow(cfg.HistoryWindow),
		assistant.WithClock(time.Now),
		assistant.WithStarterRandom(globalRand{}),
	)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		Assistant: a,
		Retriever: retriever,
		Learning:  learn,
		Personas:  personas,
		Recorder:  rec,
	}, nil
}

// Close flushes learning state.
func (a *App) Close() error {
	return a.Assistant.Close()
}
