// Package notify sends short admin notices to Telegram.
package notify

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxMessage keeps notices well below Telegram's 4096 character limit.
const maxMessage = 1000

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Reporter delivers notices to one admin chat. It is nil-safe: a nil
// Reporter, or one without a chat ID, drops every message.
type Reporter struct {
	bot    sender
	chatID int64
}

// New creates a Reporter that sends through bot.
func New(bot *tgbotapi.BotAPI, chatID int64) *Reporter {
	return &Reporter{bot: bot, chatID: chatID}
}

// Connect authenticates with the Bot API. It returns a nil Reporter when
// token or chatID is unset, so notifications stay optional.
func Connect(token string, chatID int64) (*Reporter, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	slog.Info("telegram notifications enabled", "bot", bot.Self.UserName)
	return New(bot, chatID), nil
}

// Notify sends msg. Delivery failures are logged only.
func (r *Reporter) Notify(msg string) {
	if r == nil || r.bot == nil || r.chatID == 0 {
		return
	}
	if runes := []rune(msg); len(runes) > maxMessage {
		msg = string(runes[:maxMessage]) + "…"
	}
	if _, err := r.bot.Send(tgbotapi.NewMessage(r.chatID, msg)); err != nil {
		slog.Error("failed to send telegram notice", "error", err)
	}
}
