// Package telegram is the Telegram front-end of the assistant.
package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"liora/internal/assistant"
	"liora/internal/auth"
	"liora/internal/encyclopedia"
	"liora/internal/storage"
)

const (
	newChatCmd    = "new_chat"
	openPrefix    = "open:"
	approvePrefix = "approve:"
	denyPrefix    = "deny:"
)

type Deps struct {
	Assistant   *assistant.Assistant
	Auth        *auth.Service
	Pending     auth.Repository
	Retriever   *encyclopedia.Retriever
	Recorder    storage.Recorder
	AdminUserID int64
	Logger      *zap.Logger
}

type Bot struct {
	api         *tgbotapi.BotAPI
	s           sender
	assistant   *assistant.Assistant
	authSvc     *auth.Service
	pendingRepo auth.Repository
	retriever   *encyclopedia.Retriever
	recorder    storage.Recorder
	adminUserID int64
	logger      *zap.Logger
	now         func() time.Time

	mu      sync.Mutex
	active  map[int64]string
	pending map[int64]auth.User
}

func New(botToken string, d Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	b := newBot(botAPISender{api: api}, d)
	b.api = api
	return b, nil
}

func newBot(s sender, d Deps) *Bot {
	b := &Bot{
		s:           s,
		assistant:   d.Assistant,
		authSvc:     d.Auth,
		pendingRepo: d.Pending,
		retriever:   d.Retriever,
		recorder:    d.Recorder,
		adminUserID: d.AdminUserID,
		logger:      d.Logger,
		now:         time.Now,
		active:      make(map[int64]string),
		pending:     make(map[int64]auth.User),
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	if b.authSvc == nil {
		b.authSvc, _ = auth.NewWithRepo(nil, nil)
	}
	if b.pendingRepo != nil {
		users, err := b.pendingRepo.LoadAll()
		if err != nil {
			b.logger.Warn("failed to load pending users", zap.Error(err))
		}
		for _, u := range users {
			b.pending[u.ID] = u
		}
	}
	return b
}

// Start processes updates one at a time until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("telegram bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		if update.Message.IsCommand() {
			b.handleCommand(ctx, update.Message)
			return
		}
		b.handleIncomingMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

func owner(chatID int64) string { return fmt.Sprintf("tg:%d", chatID) }

func (b *Bot) sendMessage(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) send(msg tgbotapi.MessageConfig) {
	if _, err := b.s.Send(msg); err != nil {
		b.logger.Warn("failed to send message", zap.Int64("chat_id", msg.ChatID), zap.Error(err))
	}
}

func menuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ New chat", newChatCmd),
		),
	)
}
