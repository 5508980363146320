package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"liora/internal/assistant"
	"liora/internal/auth"
	"liora/internal/conversation"
	"liora/internal/encyclopedia"
)

const wikiResults = 3

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if !b.checkAccess(msg) {
		return
	}
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start", "new":
		b.startConversation(chatID, b.currentPersona(chatID))
	case "persona":
		b.handlePersona(chatID, args)
	case "personas":
		b.sendMessage(chatID, b.personaList())
	case "insights":
		b.sendMessage(chatID, formatInsights(b.assistant.Insights()))
	case "feedback":
		b.handleFeedback(chatID, args)
	case "wiki":
		b.handleWiki(ctx, chatID, args)
	case "chats":
		b.handleChats(chatID)
	case "rename":
		b.handleRename(chatID, args)
	case "delete":
		b.handleDelete(chatID)
	case "report":
		b.handleReportCommand(ctx, msg)
	case "allowlist", "pending", "approve", "deny", "remove":
		b.handleAdminCommand(msg)
	default:
		b.sendMessage(chatID, helpText)
	}
}

const helpText = `Commands:
/new - start a new chat
/chats - switch between your chats
/rename <title> - retitle the current chat
/delete - delete the current chat
/persona <name> - change who you talk to
/personas - list personas
/insights - what I have learned so far
/feedback <text> - tell me how I did
/wiki <query> - look something up`

func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !b.checkAccess(msg) {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	chatID := msg.Chat.ID
	convID, err := b.activeConversation(chatID)
	if err != nil {
		b.logger.Error("failed to open conversation", zap.Int64("chat_id", chatID), zap.Error(err))
		b.sendMessage(chatID, "Sorry, something went wrong.")
		return
	}
	b.logger.Info("incoming message",
		zap.Int64("user_id", msg.From.ID),
		zap.String("username", msg.From.UserName),
		zap.String("conversation_id", convID))

	if _, err := b.s.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		b.logger.Debug("chat action failed", zap.Error(err))
	}

	res, err := b.assistant.Reply(ctx, assistant.Request{
		ConversationID: convID,
		Message:        text,
		UserID:         msg.From.ID,
	})
	if err != nil {
		b.logger.Error("reply failed", zap.String("conversation_id", convID), zap.Error(err))
		b.sendMessage(chatID, "Sorry, something went wrong.")
		return
	}
	out := tgbotapi.NewMessage(chatID, withEmoji(res.Persona.Emoji, res.Reply))
	out.ReplyMarkup = menuKeyboard()
	b.send(out)
}

func withEmoji(emoji, text string) string {
	if emoji == "" {
		return text
	}
	return emoji + " " + text
}

// activeConversation returns the chat's current conversation, resuming the
// most recent one after a restart or starting a fresh one.
func (b *Bot) activeConversation(chatID int64) (string, error) {
	b.mu.Lock()
	id, ok := b.active[chatID]
	b.mu.Unlock()
	if ok {
		if _, err := b.assistant.Conversations().Get(id); err == nil {
			return id, nil
		}
	}
	if owned := b.assistant.Conversations().ListOwned(owner(chatID)); len(owned) > 0 {
		b.setActive(chatID, owned[0].ID)
		return owned[0].ID, nil
	}
	c, err := b.assistant.Start(owner(chatID), "")
	if err != nil {
		return "", err
	}
	b.setActive(chatID, c.ID)
	return c.ID, nil
}

func (b *Bot) setActive(chatID int64, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active[chatID] = id
}

func (b *Bot) currentPersona(chatID int64) string {
	b.mu.Lock()
	id, ok := b.active[chatID]
	b.mu.Unlock()
	if !ok {
		return ""
	}
	c, err := b.assistant.Conversations().Get(id)
	if err != nil {
		return ""
	}
	return c.Persona
}

func (b *Bot) startConversation(chatID int64, personaID string) {
	c, err := b.assistant.Start(owner(chatID), personaID)
	if err != nil {
		b.logger.Error("failed to start conversation", zap.Int64("chat_id", chatID), zap.Error(err))
		b.sendMessage(chatID, "Sorry, I could not start a new chat.")
		return
	}
	b.setActive(chatID, c.ID)
	p := b.assistant.Personas().Get(c.Persona)
	greeting := ""
	if len(c.Messages) > 0 {
		greeting = c.Messages[len(c.Messages)-1].Content
	}
	out := tgbotapi.NewMessage(chatID, withEmoji(p.Emoji, greeting))
	out.ReplyMarkup = menuKeyboard()
	b.send(out)
}

func (b *Bot) handlePersona(chatID int64, name string) {
	personas := b.assistant.Personas()
	if name == "" {
		current := personas.Get(b.currentPersona(chatID))
		b.sendMessage(chatID, fmt.Sprintf("You are talking to %s.\n\n%s", current.Label(), b.personaList()))
		return
	}
	if !personas.Has(name) {
		b.sendMessage(chatID, fmt.Sprintf("Unknown persona %q.\n\n%s", name, b.personaList()))
		return
	}
	p := personas.Get(name)
	convID, err := b.activeConversation(chatID)
	if err == nil {
		err = b.assistant.Conversations().SetPersona(convID, p.ID)
	}
	if err != nil {
		b.logger.Error("failed to switch persona", zap.Int64("chat_id", chatID), zap.Error(err))
		b.sendMessage(chatID, "Sorry, I could not switch persona.")
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("%s here now!", p.Label()))
}

func (b *Bot) personaList() string {
	var sb strings.Builder
	sb.WriteString("Personas:\n")
	personas := b.assistant.Personas()
	for _, id := range personas.Names() {
		fmt.Fprintf(&sb, "%s - /persona %s\n", personas.Get(id).Label(), id)
	}
	return sb.String()
}

func (b *Bot) handleFeedback(chatID int64, text string) {
	if text == "" {
		b.sendMessage(chatID, "Usage: /feedback <what you thought of my last answer>")
		return
	}
	b.mu.Lock()
	convID := b.active[chatID]
	b.mu.Unlock()
	if err := b.assistant.Feedback(convID, text); err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			b.sendMessage(chatID, "There is no answer to rate yet.")
			return
		}
		b.logger.Warn("feedback failed", zap.Error(err))
		return
	}
	b.sendMessage(chatID, "Thanks for the feedback!")
}

func (b *Bot) handleWiki(ctx context.Context, chatID int64, query string) {
	if query == "" {
		b.sendMessage(chatID, "Usage: /wiki <query>")
		return
	}
	if b.retriever == nil {
		b.sendMessage(chatID, "Encyclopedia lookups are disabled.")
		return
	}
	articles := b.retriever.Search(ctx, query, wikiResults)
	info := encyclopedia.Format(articles, "about "+query)
	if info == "" {
		b.sendMessage(chatID, fmt.Sprintf("Nothing found about %q.", query))
		return
	}
	b.sendMessage(chatID, info+encyclopedia.FormatRelated(b.retriever.RelatedTopics(ctx, query)))
}

func (b *Bot) handleChats(chatID int64) {
	convs := b.assistant.Conversations().ListOwned(owner(chatID))
	if len(convs) == 0 {
		out := tgbotapi.NewMessage(chatID, "No conversations yet. Start a new chat!")
		out.ReplyMarkup = menuKeyboard()
		b.send(out)
		return
	}
	b.mu.Lock()
	active := b.active[chatID]
	b.mu.Unlock()

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, c := range convs {
		label := c.Title
		if c.ID == active {
			label = "• " + label
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, openPrefix+c.ID),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("➕ New chat", newChatCmd),
	))
	out := tgbotapi.NewMessage(chatID, "Your chats:")
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	b.send(out)
}

func (b *Bot) handleRename(chatID int64, title string) {
	if title == "" {
		b.sendMessage(chatID, "Usage: /rename <title>")
		return
	}
	convID, err := b.activeConversation(chatID)
	if err == nil {
		err = b.assistant.Rename(convID, title)
	}
	if err != nil {
		b.logger.Error("failed to rename conversation", zap.Int64("chat_id", chatID), zap.Error(err))
		b.sendMessage(chatID, "Sorry, I could not rename this chat.")
		return
	}
	b.sendMessage(chatID, fmt.Sprintf("Renamed to %q.", title))
}

// handleDelete removes the active conversation; the next message resumes
// the most recent remaining chat or starts a new one.
func (b *Bot) handleDelete(chatID int64) {
	b.mu.Lock()
	convID, ok := b.active[chatID]
	delete(b.active, chatID)
	b.mu.Unlock()
	if !ok {
		b.sendMessage(chatID, "There is no open chat to delete. Pick one with /chats.")
		return
	}
	c, err := b.assistant.Conversations().Get(convID)
	if err == nil {
		err = b.assistant.Delete(convID)
	}
	if err != nil {
		b.sendMessage(chatID, "That chat no longer exists.")
		return
	}
	out := tgbotapi.NewMessage(chatID, fmt.Sprintf("Deleted %q.", c.Title))
	out.ReplyMarkup = menuKeyboard()
	b.send(out)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := b.s.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Debug("callback ack failed", zap.Error(err))
	}
	if cb.Message == nil || cb.From == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	switch {
	case cb.Data == newChatCmd:
		if !b.isAdmin(cb.From.ID) && !b.authSvc.IsAllowed(cb.From.ID) {
			return
		}
		b.startConversation(chatID, b.currentPersona(chatID))
	case strings.HasPrefix(cb.Data, openPrefix):
		if !b.isAdmin(cb.From.ID) && !b.authSvc.IsAllowed(cb.From.ID) {
			return
		}
		b.openConversation(chatID, strings.TrimPrefix(cb.Data, openPrefix))
	case strings.HasPrefix(cb.Data, approvePrefix), strings.HasPrefix(cb.Data, denyPrefix):
		if !b.isAdmin(cb.From.ID) {
			return
		}
		approve := strings.HasPrefix(cb.Data, approvePrefix)
		idStr := strings.TrimPrefix(strings.TrimPrefix(cb.Data, approvePrefix), denyPrefix)
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			return
		}
		if approve {
			b.approveUser(id)
		} else {
			b.denyUser(id)
		}
	}
}

func (b *Bot) openConversation(chatID int64, id string) {
	c, err := b.assistant.Conversations().Get(id)
	if err != nil || c.Owner != owner(chatID) {
		b.sendMessage(chatID, "That chat no longer exists.")
		return
	}
	b.setActive(chatID, c.ID)
	text := fmt.Sprintf("Switched to %q.", c.Title)
	if n := len(c.Messages); n > 0 {
		text += "\n\n" + conversation.RenderHistory(c.Messages, 2)
	}
	b.sendMessage(chatID, text)
}

// checkAccess queues unknown users for admin approval.
func (b *Bot) checkAccess(msg *tgbotapi.Message) bool {
	if b.isAdmin(msg.From.ID) || b.authSvc.IsAllowed(msg.From.ID) {
		return true
	}
	b.logger.Warn("unauthorized access attempt",
		zap.Int64("user_id", msg.From.ID), zap.String("username", msg.From.UserName))

	b.mu.Lock()
	_, already := b.pending[msg.From.ID]
	u := auth.User{ID: msg.From.ID, Username: msg.From.UserName, FirstName: msg.From.FirstName, LastName: msg.From.LastName}
	if !already {
		b.pending[u.ID] = u
	}
	b.mu.Unlock()

	if already {
		b.sendMessage(msg.Chat.ID, "Your access request is waiting for the administrator. I will let you know once it is approved.")
		return false
	}
	if b.pendingRepo != nil {
		if err := b.pendingRepo.Upsert(u); err != nil {
			b.logger.Warn("failed to persist pending user", zap.Error(err))
		}
	}
	b.sendMessage(msg.Chat.ID, "Access request sent to the administrator. You will be notified once it is approved.")
	b.notifyAdminRequest(u)
	return false
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.adminUserID != 0 && userID == b.adminUserID
}

func (b *Bot) notifyAdminRequest(u auth.User) {
	if b.adminUserID == 0 {
		return
	}
	text := fmt.Sprintf("User @%s (id %d) wants to use the bot", u.Username, u.ID)
	msg := tgbotapi.NewMessage(b.adminUserID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("approve", approvePrefix+strconv.FormatInt(u.ID, 10)),
			tgbotapi.NewInlineKeyboardButtonData("deny", denyPrefix+strconv.FormatInt(u.ID, 10)),
		),
	)
	b.send(msg)
}

func (b *Bot) takePending(id int64) auth.User {
	b.mu.Lock()
	u, ok := b.pending[id]
	delete(b.pending, id)
	b.mu.Unlock()
	if !ok {
		u = auth.User{ID: id}
	}
	if b.pendingRepo != nil {
		if err := b.pendingRepo.Remove(id); err != nil {
			b.logger.Warn("failed to remove pending user", zap.Error(err))
		}
	}
	return u
}

func (b *Bot) approveUser(id int64) {
	u := b.takePending(id)
	if err := b.authSvc.Upsert(u); err != nil {
		b.logger.Error("failed to approve user", zap.Int64("user_id", id), zap.Error(err))
		b.sendMessage(b.adminUserID, fmt.Sprintf("Failed to approve %d: %v", id, err))
		return
	}
	b.sendMessage(b.adminUserID, fmt.Sprintf("User %d approved", id))
	b.sendMessage(id, "Access granted! Say hi or send /start.")
}

func (b *Bot) denyUser(id int64) {
	b.takePending(id)
	b.sendMessage(b.adminUserID, fmt.Sprintf("User %d denied", id))
	b.sendMessage(id, "Sorry, access was denied.")
}

func (b *Bot) handleAdminCommand(msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	if !b.isAdmin(msg.From.ID) {
		b.sendMessage(chatID, "This command is for the administrator only.")
		return
	}
	switch msg.Command() {
	case "allowlist":
		if !b.authSvc.Restricted() {
			b.sendMessage(chatID, "The allowlist is empty: everyone may chat.")
			return
		}
		var sb strings.Builder
		sb.WriteString("Allowlist:\n")
		for _, u := range b.authSvc.List() {
			fmt.Fprintf(&sb, "- id=%d, @%s %s %s\n", u.ID, u.Username, u.FirstName, u.LastName)
		}
		b.sendMessage(chatID, sb.String())
	case "pending":
		var sb strings.Builder
		sb.WriteString("Pending requests:\n")
		b.mu.Lock()
		for _, u := range b.pending {
			fmt.Fprintf(&sb, "- id=%d, @%s %s %s\n", u.ID, u.Username, u.FirstName, u.LastName)
		}
		b.mu.Unlock()
		b.sendMessage(chatID, sb.String())
	case "approve", "deny", "remove":
		args := strings.Fields(msg.CommandArguments())
		if len(args) != 1 {
			b.sendMessage(chatID, fmt.Sprintf("Usage: /%s <user_id>", msg.Command()))
			return
		}
		uid, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			b.sendMessage(chatID, "Invalid user_id")
			return
		}
		switch msg.Command() {
		case "approve":
			b.approveUser(uid)
		case "deny":
			b.denyUser(uid)
		default:
			if err := b.authSvc.Remove(uid); err != nil {
				b.sendMessage(chatID, fmt.Sprintf("Failed to remove: %v", err))
				return
			}
			b.sendMessage(chatID, fmt.Sprintf("User %d removed from the allowlist", uid))
		}
	}
}
