package bot

import (
	"context"
	"fmt"
	"log"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tazhate/studentreminder/internal/domain"
)

// PendingLister reports notifications that have not fired yet.
type PendingLister interface {
	Pending() ([]domain.ScheduledTrigger, error)
}

// Bot delivers fired reminder notifications to a Telegram chat and answers a
// few commands from that chat.
type Bot struct {
	api     *tgbotapi.BotAPI
	chatID  int64
	pending PendingLister
}

func New(token string, chatID int64) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return newBot(api, chatID), nil
}

func newWithEndpoint(token, endpoint string, client *http.Client, chatID int64) (*Bot, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return newBot(api, chatID), nil
}

func newBot(api *tgbotapi.BotAPI, chatID int64) *Bot {
	log.Printf("Authorized as @%s", api.Self.UserName)

	b := &Bot{api: api, chatID: chatID}
	b.setCommands()
	return b
}

func (b *Bot) SetPending(p PendingLister) {
	b.pending = p
}

func (b *Bot) setCommands() {
	commands := []tgbotapi.BotCommand{
		{Command: "start", Description: "Show this chat's id"},
		{Command: "pending", Description: "Upcoming reminder notifications"},
	}

	cfg := tgbotapi.NewSetMyCommands(commands...)
	if _, err := b.api.Request(cfg); err != nil {
		log.Printf("Failed to set commands: %v", err)
	}
}

// Start long-polls for updates until ctx is done.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(update)
		}
	}
}

func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
}

func (b *Bot) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	_, err := b.api.Send(msg)
	return err
}
