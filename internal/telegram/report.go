package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"liora/internal/analytics"
	"liora/internal/learning"
)

// SendDailyReport sends today's usage stats and learning insights to the
// administrator. It is meant to be driven by the scheduler.
func (b *Bot) SendDailyReport(ctx context.Context) error {
	if b.adminUserID == 0 {
		return nil
	}
	return b.generateDailyReport(ctx, b.adminUserID)
}

func (b *Bot) generateDailyReport(_ context.Context, chatID int64) error {
	if b.recorder == nil {
		return fmt.Errorf("interaction log is not configured")
	}
	events, err := b.recorder.LoadInteractions()
	if err != nil {
		return fmt.Errorf("load interactions: %w", err)
	}
	stats := analytics.AnalyzeDailyLogs(events, b.now().UTC())
	text := "📈 Daily report\n\n" + stats.GenerateReportSummary() + "\n" + formatInsights(b.assistant.Insights())
	b.sendMessage(chatID, text)
	b.logger.Info("daily report sent", zap.String("date", stats.Date), zap.Int("messages", stats.TotalMessages))
	return nil
}

func (b *Bot) handleReportCommand(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAdmin(msg.From.ID) {
		b.sendMessage(msg.Chat.ID, "This command is for the administrator only.")
		return
	}
	if err := b.generateDailyReport(ctx, msg.Chat.ID); err != nil {
		b.logger.Error("report generation failed", zap.Error(err))
		b.sendMessage(msg.Chat.ID, fmt.Sprintf("Report generation failed: %v", err))
	}
}

func formatInsights(in learning.Insights) string {
	var sb strings.Builder
	sb.WriteString("🧠 Learning insights\n")
	fmt.Fprintf(&sb, "- Interactions: %d\n", in.TotalInteractions)
	fmt.Fprintf(&sb, "- Success rate: %.0f%%\n", in.SuccessRate*100)
	fmt.Fprintf(&sb, "- Average satisfaction: %.2f\n", in.AverageSatisfaction)
	if len(in.TopTopics) > 0 {
		topics := make([]string, len(in.TopTopics))
		for i, t := range in.TopTopics {
			topics[i] = string(t)
		}
		fmt.Fprintf(&sb, "- Favourite topics: %s\n", strings.Join(topics, ", "))
	}
	fmt.Fprintf(&sb, "- Stage: %s\n", in.Stage)
	return sb.String()
}
