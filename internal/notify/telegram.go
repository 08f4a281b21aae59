package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// botAPI is the part of *tgbotapi.BotAPI used for delivery.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender delivers plain-text messages to a Telegram chat. A target
// is a numeric chat id: a user id for direct messages, a group or channel
// id for the tenant fallback.
type TelegramSender struct {
	bot    botAPI
	logger *slog.Logger
}

// NewTelegramSender authenticates with the Bot API using token.
func NewTelegramSender(token string, logger *slog.Logger) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("telegram bot authorized", "username", bot.Self.UserName)
	return &TelegramSender{bot: bot, logger: logger}, nil
}

func newTelegramSender(bot botAPI, logger *slog.Logger) *TelegramSender {
	return &TelegramSender{bot: bot, logger: logger}
}

func (s *TelegramSender) Send(ctx context.Context, targetID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	chatID, err := strconv.ParseInt(targetID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", targetID, err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := s.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send to %d: %w", chatID, err)
	}

	s.logger.Debug("telegram message sent", "chat_id", chatID)
	return nil
}

// LogSender writes messages to the log instead of delivering them. It is
// used when no bot token is configured.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, targetID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("reminder", "target", targetID, "text", text)
	return nil
}
