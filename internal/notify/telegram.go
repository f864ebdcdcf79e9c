package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Shivanand-hulikatti/mantikon-registration/internal/model"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sender is the part of *tgbotapi.BotAPI the notifier needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts a summary of each registration to the admin chat.
type TelegramNotifier struct {
	bot    Sender
	chatID int64
}

// NewTelegramNotifier sends to chatID through bot.
func NewTelegramNotifier(bot Sender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

func (t *TelegramNotifier) Name() string { return "telegram" }

func (t *TelegramNotifier) Notify(ctx context.Context, notice model.RegistrationNotice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, Message(notice))
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// Message renders the admin summary of a registration.
func Message(n model.RegistrationNotice) string {
	seats := ""
	if n.RemainingSeats != nil {
		seats = strconv.Itoa(*n.RemainingSeats)
	}
	lines := []string{
		"New registration!",
		"name: " + dash(n.Name),
		"contact: " + dash(n.Contact),
		"table: " + dash(n.TableID),
		"master: " + dash(n.MasterName),
		"system: " + dash(n.System),
		"free seats left: " + dash(seats),
	}
	return strings.Join(lines, "\n")
}

func dash(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "-"
	}
	return s
}
