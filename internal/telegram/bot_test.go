package telegram

import (
	"context"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"liora/internal/assistant"
	"liora/internal/augment"
	"liora/internal/auth"
	"liora/internal/conversation"
	"liora/internal/encyclopedia"
	"liora/internal/learning"
	"liora/internal/llm"
	"liora/internal/persona"
	"liora/internal/storage"
)

type fakeSender struct {
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) last() tgbotapi.MessageConfig {
	if len(f.sent) == 0 {
		return tgbotapi.MessageConfig{}
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeSender) to(chatID int64) []string {
	var out []string
	for _, m := range f.sent {
		if m.ChatID == chatID {
			out = append(out, m.Text)
		}
	}
	return out
}

type fakeLLM struct{ reply string }

func (f fakeLLM) Generate(_ context.Context, msgs []llm.Message) (llm.Response, error) {
	if len(msgs) == 1 {
		return llm.Response{Content: "Small Talk"}, nil
	}
	return llm.Response{Content: f.reply}, nil
}

type quietRand struct{}

func (quietRand) Float64() float64 { return 0.99 }
func (quietRand) Intn(int) int     { return 0 }

type fakeProvider struct{ articles []encyclopedia.Article }

func (f fakeProvider) Search(context.Context, string, string, int) ([]encyclopedia.Article, error) {
	return f.articles, nil
}

type memRecorder struct{ events []storage.Event }

func (m *memRecorder) AppendInteraction(ev storage.Event) error {
	m.events = append(m.events, ev)
	return nil
}

func (m *memRecorder) LoadInteractions() ([]storage.Event, error) { return m.events, nil }

const adminID = int64(999)

func newTestBot(t *testing.T, allowed ...int64) (*Bot, *fakeSender) {
	t.Helper()
	convs, err := conversation.Open("")
	if err != nil {
		t.Fatalf("open conversations: %v", err)
	}
	learn := learning.New(nil)
	retriever := encyclopedia.NewRetriever(fakeProvider{articles: []encyclopedia.Article{
		{
			Title: "Go (programming language)", Summary: "Go is a language.", URL: "https://en.wikipedia.org/wiki/Go",
			Categories: []string{"Webarchive template", "Computer science"},
		},
	}})
	recorder := &memRecorder{}
	a, err := assistant.New(assistant.Deps{
		Conversations: convs,
		Personas:      persona.NewSelector(""),
		Policy:        augment.New(retriever, augment.WithLearner(learn), augment.WithRandom(quietRand{})),
		Learning:      learn,
		LLM:           fakeLLM{reply: "Nice to meet you"},
		Recorder:      recorder,
	})
	if err != nil {
		t.Fatalf("assistant: %v", err)
	}
	svc, _ := auth.NewWithRepo(nil, allowed)
	fs := &fakeSender{}
	b := newBot(fs, Deps{
		Assistant:   a,
		Auth:        svc,
		Retriever:   retriever,
		Recorder:    recorder,
		AdminUserID: adminID,
	})
	return b, fs
}

func textMsg(userID int64, text string) *tgbotapi.Message {
	m := &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID, UserName: "user"},
		Chat: &tgbotapi.Chat{ID: userID},
		Text: text,
	}
	if strings.HasPrefix(text, "/") {
		cmd := strings.Fields(text)[0]
		m.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return m
}

func deliver(b *Bot, m *tgbotapi.Message) {
	b.handleUpdate(context.Background(), tgbotapi.Update{Message: m})
}

func callback(b *Bot, userID, chatID int64, data string) {
	b.handleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}})
}

func TestStart_SendsStarterWithEmoji(t *testing.T) {
	b, fs := newTestBot(t)
	deliver(b, textMsg(1, "/start"))

	out := fs.last()
	if out.Text != "😉 "+conversation.Starter(nil) {
		t.Fatalf("unexpected greeting: %q", out.Text)
	}
	if out.ReplyMarkup == nil {
		t.Fatalf("expected New chat keyboard")
	}
}

func TestIncomingMessage_RepliesWithPersonaEmoji(t *testing.T) {
	b, fs := newTestBot(t)
	deliver(b, textMsg(1, "hello there"))

	if got := fs.last().Text; got != "😉 Nice to meet you" {
		t.Fatalf("unexpected reply: %q", got)
	}
	if len(fs.requests) == 0 {
		t.Fatalf("expected typing action")
	}
	convs := b.assistant.Conversations().ListOwned("tg:1")
	if len(convs) != 1 || convs[0].Title != "Small Talk" {
		t.Fatalf("conversation not created/titled: %+v", convs)
	}
}

func TestPersonaSwitch(t *testing.T) {
	b, fs := newTestBot(t)
	deliver(b, textMsg(1, "/persona poet"))
	if got := fs.last().Text; got != "🪶 Poet here now!" {
		t.Fatalf("unexpected switch reply: %q", got)
	}
	deliver(b, textMsg(1, "write something"))
	if got := fs.last().Text; !strings.HasPrefix(got, "🪶 ") {
		t.Fatalf("reply should carry the poet emoji: %q", got)
	}

	deliver(b, textMsg(1, "/persona pirate"))
	if got := fs.last().Text; !strings.HasPrefix(got, `Unknown persona "pirate"`) {
		t.Fatalf("unexpected reply: %q", got)
	}

	deliver(b, textMsg(1, "/personas"))
	if got := fs.last().Text; !strings.Contains(got, "/persona coach") {
		t.Fatalf("persona list incomplete: %q", got)
	}
}

func TestUnauthorizedFlow_PendingApproval(t *testing.T) {
	b, fs := newTestBot(t, 1)
	deliver(b, textMsg(2, "hi"))

	userMsgs := fs.to(2)
	if len(userMsgs) != 1 || !strings.Contains(userMsgs[0], "Access request sent") {
		t.Fatalf("pending notice not sent: %+v", userMsgs)
	}
	adminMsgs := fs.to(adminID)
	if len(adminMsgs) != 1 || !strings.Contains(adminMsgs[0], "wants to use the bot") {
		t.Fatalf("admin notify not sent: %+v", adminMsgs)
	}

	deliver(b, textMsg(2, "hi again"))
	if got := fs.last().Text; !strings.Contains(got, "waiting for the administrator") {
		t.Fatalf("unexpected repeat notice: %q", got)
	}

	// only the admin may approve
	callback(b, 1, 1, approvePrefix+"2")
	if b.authSvc.IsAllowed(2) {
		t.Fatalf("non-admin approval must be ignored")
	}
	callback(b, adminID, adminID, approvePrefix+"2")
	if !b.authSvc.IsAllowed(2) {
		t.Fatalf("user not approved")
	}
	if got := fs.to(2); !strings.Contains(got[len(got)-1], "Access granted") {
		t.Fatalf("user not notified: %+v", got)
	}
}

func TestAllowlistCommand(t *testing.T) {
	b, fs := newTestBot(t)
	deliver(b, textMsg(adminID, "/allowlist"))
	if got := fs.last().Text; got != "The allowlist is empty: everyone may chat." {
		t.Fatalf("unexpected reply: %q", got)
	}

	b, fs = newTestBot(t, 42)
	deliver(b, textMsg(adminID, "/allowlist"))
	if got := fs.last().Text; !strings.Contains(got, "id=42") {
		t.Fatalf("allowlist not listed: %q", got)
	}
}

func TestAdminCommands_RequireAdmin(t *testing.T) {
	b, fs := newTestBot(t)
	deliver(b, textMsg(1, "/allowlist"))
	if got := fs.last().Text; !strings.Contains(got, "administrator only") {
		t.Fatalf("unexpected reply: %q", got)
	}
	deliver(b, textMsg(adminID, "/remove abc"))
	if got := fs.last().Text; got != "Invalid user_id" {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestChats_SwitchBetweenConversations(t *testing.T) {
	b, fs := newTestBot(t)
	deliver(b, textMsg(1, "/start"))
	first := b.active[1]
	callback(b, 1, 1, newChatCmd)
	second := b.active[1]
	if first == second || second == "" {
		t.Fatalf("new chat not started: %q %q", first, second)
	}

	deliver(b, textMsg(1, "/chats"))
	markup, ok := fs.last().ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(markup.InlineKeyboard) != 3 {
		t.Fatalf("expected two chats and a New chat row: %+v", fs.last().ReplyMarkup)
	}

	callback(b, 1, 1, openPrefix+first)
	if b.active[1] != first {
		t.Fatalf("did not switch to first chat")
	}
	if got := fs.last().Text; !strings.HasPrefix(got, "Switched to") {
		t.Fatalf("unexpected switch reply: %q", got)
	}

	// chats of another owner cannot be opened
	callback(b, 5, 5, openPrefix+first)
	if _, ok := b.active[5]; ok {
		t.Fatalf("foreign chat must not become active")
	}
}

func TestWikiCommand(t *testing.T) {
	b, fs := newTestBot(t)
	deliver(b, textMsg(1, "/wiki"))
	if got := fs.last().Text; got != "Usage: /wiki <query>" {
		t.Fatalf("unexpected usage reply: %q", got)
	}
	deliver(b, textMsg(1, "/wiki golang"))
	got := fs.last().Text
	if !strings.Contains(got, "Go (programming language)") || !strings.Contains(got, "about golang") {
		t.Fatalf("unexpected wiki reply: %q", got)
	}
	if !strings.HasSuffix(got, "🔗 Related: Computer science\n") {
		t.Fatalf("related topics missing: %q", got)
	}
}

func TestFeedbackCommand(t *testing.T) {
	b, fs := newTestBot(t)
	deliver(b, textMsg(1, "/feedback great"))
	if got := fs.last().Text; got != "There is no answer to rate yet." {
		t.Fatalf("unexpected reply: %q", got)
	}
	deliver(b, textMsg(1, "hello"))
	deliver(b, textMsg(1, "/feedback great answer"))
	if got := fs.last().Text; got != "Thanks for the feedback!" {
		t.Fatalf("unexpected reply: %q", got)
	}
	if b.assistant.Insights().SuccessRate != 1 {
		t.Fatalf("feedback not applied: %+v", b.assistant.Insights())
	}
}

func TestSendDailyReport(t *testing.T) {
	b, fs := newTestBot(t)
	deliver(b, textMsg(1, "hello"))
	if err := b.SendDailyReport(context.Background()); err != nil {
		t.Fatalf("report: %v", err)
	}
	msgs := fs.to(adminID)
	if len(msgs) != 1 {
		t.Fatalf("expected one admin message, got %d", len(msgs))
	}
	for _, want := range []string{"Daily report", "- Messages: 1", "Learning insights", "- Interactions: 1"} {
		if !strings.Contains(msgs[0], want) {
			t.Fatalf("report missing %q:\n%s", want, msgs[0])
		}
	}
}

func TestRenameAndDeleteCommands(t *testing.T) {
	b, fs := newTestBot(t)
	deliver(b, textMsg(1, "/delete"))
	if got := fs.last().Text; !strings.HasPrefix(got, "There is no open chat to delete") {
		t.Fatalf("unexpected reply: %q", got)
	}

	deliver(b, textMsg(1, "hello"))
	deliver(b, textMsg(1, "/rename"))
	if got := fs.last().Text; got != "Usage: /rename <title>" {
		t.Fatalf("unexpected usage reply: %q", got)
	}
	deliver(b, textMsg(1, "/rename Morning talk"))
	if got := fs.last().Text; got != `Renamed to "Morning talk".` {
		t.Fatalf("unexpected rename reply: %q", got)
	}
	convs := b.assistant.Conversations().ListOwned("tg:1")
	if len(convs) != 1 || convs[0].Title != "Morning talk" {
		t.Fatalf("conversation not renamed: %+v", convs)
	}

	deliver(b, textMsg(1, "/delete"))
	if got := fs.last().Text; got != `Deleted "Morning talk".` {
		t.Fatalf("unexpected delete reply: %q", got)
	}
	if _, ok := b.active[1]; ok {
		t.Fatalf("deleted chat must not stay active")
	}
	if n := len(b.assistant.Conversations().ListOwned("tg:1")); n != 0 {
		t.Fatalf("conversation not deleted, %d left", n)
	}

	// the next message opens a fresh chat
	deliver(b, textMsg(1, "hi again"))
	if n := len(b.assistant.Conversations().ListOwned("tg:1")); n != 1 {
		t.Fatalf("expected a new chat, got %d", n)
	}
}
