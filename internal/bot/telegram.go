// Package bot is the admin side of the chat bot: the /players roster and the
// inline buttons that delete registrations.
package bot

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/mantikon-registration/internal/model"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Messenger is the outbound side of the chat.
type Messenger interface {
	SendText(chatID int64, text string) error
	SendMenu(chatID int64, text string, buttons []model.MenuButton) error
	AnswerCallback(callbackID string) error
}

// API is the part of *tgbotapi.BotAPI the client uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TelegramClient implements Messenger over the Bot API.
type TelegramClient struct {
	api API
}

// NewTelegramClient wraps an authenticated bot.
func NewTelegramClient(api API) *TelegramClient {
	return &TelegramClient{api: api}
}

func (c *TelegramClient) SendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendMenu sends text with one inline button per row.
func (c *TelegramClient) SendMenu(chatID int64, text string, buttons []model.MenuButton) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if len(buttons) > 0 {
		msg.ReplyMarkup = Keyboard(buttons)
	}
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("send menu: %w", err)
	}
	return nil
}

func (c *TelegramClient) AnswerCallback(callbackID string) error {
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, "")); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// Keyboard lays buttons out one per row.
func Keyboard(buttons []model.MenuButton) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, b := range buttons {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Action),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// RunPolling feeds long-polled updates to h until ctx is cancelled. Any
// registered webhook is removed first, since Telegram refuses getUpdates
// while one is set.
func RunPolling(ctx context.Context, api *tgbotapi.BotAPI, h *Handler) {
	if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		log.WithError(err).Warn("could not remove telegram webhook")
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := api.GetUpdatesChan(cfg)
	log.WithField("bot", api.Self.UserName).Info("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			log.Info("telegram polling stopped")
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			h.HandleUpdate(ctx, upd)
		}
	}
}
