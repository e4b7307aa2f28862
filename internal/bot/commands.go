package bot

import (
	"fmt"
	"html"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/studentreminder/internal/domain"
)

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return
	}

	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		b.cmdStart(chatID)
	case "pending":
		if chatID != b.chatID {
			b.reply(chatID, "⛔ This chat does not receive reminders")
			return
		}
		b.cmdPending(chatID)
	default:
		b.reply(chatID, "Unknown command. Try /pending")
	}
}

func (b *Bot) cmdStart(chatID int64) {
	text := fmt.Sprintf("👋 Chat id: <code>%d</code>\n\nSet it as telegram.chat_id to receive reminder notifications here.", chatID)
	if chatID == b.chatID {
		text = "👋 Reminder notifications are delivered to this chat.\n\n/pending lists upcoming notifications"
	}
	b.reply(chatID, text)
}

func (b *Bot) cmdPending(chatID int64) {
	if b.pending == nil {
		b.reply(chatID, "Nothing scheduled")
		return
	}
	triggers, err := b.pending.Pending()
	if err != nil {
		log.Printf("Error listing pending notifications: %v", err)
		b.reply(chatID, "❌ Could not load pending notifications")
		return
	}
	b.reply(chatID, formatPending(triggers))
}

func (b *Bot) reply(chatID int64, text string) {
	if err := b.SendMessage(chatID, text); err != nil {
		log.Printf("Error replying to %d: %v", chatID, err)
	}
}

func formatPending(triggers []domain.ScheduledTrigger) string {
	if len(triggers) == 0 {
		return "Nothing scheduled"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>Upcoming (%d):</b>\n\n", len(triggers)))
	for _, t := range triggers {
		sb.WriteString(fmt.Sprintf("⏰ %s  %s\n",
			t.FireAt.Format("02.01 15:04"),
			html.EscapeString(t.Content.Body)))
	}
	return sb.String()
}
