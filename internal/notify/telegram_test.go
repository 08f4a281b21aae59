package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockBot struct {
	mock.Mock
}

func (m *mockBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTelegramSender_Send(t *testing.T) {
	bot := &mockBot{}
	bot.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == -100123 && msg.Text == "pay up"
	})).Return(nil).Once()

	err := newTelegramSender(bot, discard()).Send(context.Background(), "-100123", "pay up")

	require.NoError(t, err)
	bot.AssertExpectations(t)
}

func TestTelegramSender_Errors(t *testing.T) {
	bot := &mockBot{}
	bot.On("Send", mock.Anything).Return(errors.New("Forbidden: bot was blocked by the user"))
	sender := newTelegramSender(bot, discard())

	err := sender.Send(context.Background(), "42", "hi")
	assert.ErrorContains(t, err, "blocked")

	err = sender.Send(context.Background(), "alice", "hi")
	assert.ErrorContains(t, err, "invalid telegram chat id")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sender.Send(ctx, "42", "hi"), context.Canceled)

	bot.AssertNumberOfCalls(t, "Send", 1)
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, NewLogSender(discard()).Send(context.Background(), "42", "hi"))
}
