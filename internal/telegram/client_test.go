package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBot struct {
	failures int
	sent     []tgbotapi.MessageConfig
	calls    int
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.calls++
	if f.calls <= f.failures {
		return tgbotapi.Message{}, errors.New("429 too many requests")
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello World"},
		{"Hello_World", "Hello\\_World"},
		{"Price: $0.45", "Price: $0\\.45"},
		{"[link](url)", "\\[link\\]\\(url\\)"},
		{"+3.2%", "\\+3\\.2%"},
		{`a\b`, `a\\b`},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, escapeMarkdownV2(tt.input))
		})
	}
}

func TestNewClientInvalidChatID(t *testing.T) {
	_, err := NewClient("", "not-a-number", 3, time.Second)
	assert.Error(t, err)
}

func TestSendRetriesThenSucceeds(t *testing.T) {
	bot := &fakeBot{failures: 2}
	c := newClient(bot, 42, 3, time.Millisecond)

	require.NoError(t, c.Send(context.Background(), "", "Profit 3.1%"))
	assert.Equal(t, 3, bot.calls)
	require.Len(t, bot.sent, 1)
	assert.Equal(t, int64(42), bot.sent[0].ChatID)
	assert.Equal(t, "Profit 3\\.1%", bot.sent[0].Text)
	assert.Equal(t, tgbotapi.ModeMarkdownV2, bot.sent[0].ParseMode)
}

func TestSendGivesUp(t *testing.T) {
	bot := &fakeBot{failures: 10}
	c := newClient(bot, 42, 2, time.Millisecond)
	err := c.Send(context.Background(), "", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 2 retries")
	assert.Equal(t, 2, bot.calls)
}

func TestSendChannelOverride(t *testing.T) {
	bot := &fakeBot{}
	c := newClient(bot, 42, 1, time.Millisecond)

	require.NoError(t, c.Send(context.Background(), "-100123", "x"))
	assert.Equal(t, int64(-100123), bot.sent[0].ChatID)
	assert.Error(t, c.Send(context.Background(), "ops", "x"))
}

func TestSendHonoursCancellation(t *testing.T) {
	bot := &fakeBot{failures: 10}
	c := newClient(bot, 42, 5, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Send(ctx, "", "x")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, bot.calls)
}
