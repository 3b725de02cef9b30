package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/require"

	"github.com/set-night/terranote/internal/config"
	"github.com/set-night/terranote/internal/domain"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    []bot.SendMessageParams
	failFor map[models.ParseMode]error
	expired []bool
}

func (f *fakeSender) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, *params)
	f.expired = append(f.expired, ctx.Err() != nil)
	if err := f.failFor[params.ParseMode]; err != nil {
		return nil, err
	}
	return &models.Message{ID: len(f.sent)}, nil
}

func newLogger(sender *fakeSender, chatID int64) *TelegramLogger {
	return NewTelegramLogger(sender, &config.Config{LogTelegramChatID: chatID, LogTopicError: 3})
}

func failedSession() domain.Session {
	return domain.Session{
		ID:       "sess_1",
		UserID:   "123456789",
		Platform: domain.PlatformTelegram,
		Text:     "Hay una vía cerrada por obras.",
		Location: &domain.Location{Latitude: 4.711, Longitude: -74.0721},
	}
}

func TestPublishFailed_SendsAlertToTopic(t *testing.T) {
	sender := &fakeSender{}
	l := newLogger(sender, -100123)

	l.PublishFailed(context.Background(), failedSession(), errors.New("publish unavailable: status 503"))
	l.Wait()

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	require.Equal(t, int64(-100123), msg.ChatID)
	require.Equal(t, 3, msg.MessageThreadID)
	require.Equal(t, models.ParseModeMarkdownV1, msg.ParseMode)
	require.Contains(t, msg.Text, "123456789")
	require.Contains(t, msg.Text, "status 503")
	require.Contains(t, msg.Text, "4.711000, -74.072100")
	require.Contains(t, msg.Text, `sess\_1`)
}

func TestLog_FallsBackToPlainText(t *testing.T) {
	sender := &fakeSender{failFor: map[models.ParseMode]error{
		models.ParseModeMarkdownV1: fmt.Errorf("%w, can't parse entities", bot.ErrorBadRequest),
	}}
	l := newLogger(sender, 1)

	l.Log("*broken")

	require.Len(t, sender.sent, 2)
	require.Equal(t, models.ParseMode(""), sender.sent[1].ParseMode)
	require.Equal(t, []bool{false, false}, sender.expired, "the plain text send gets its own deadline")
}

func TestLog_NoFallbackForOtherErrors(t *testing.T) {
	for name, err := range map[string]error{
		"timeout":   context.DeadlineExceeded,
		"forbidden": fmt.Errorf("%w, bot was blocked by the user", bot.ErrorForbidden),
	} {
		t.Run(name, func(t *testing.T) {
			sender := &fakeSender{failFor: map[models.ParseMode]error{models.ParseModeMarkdownV1: err}}
			l := newLogger(sender, 1)

			l.Log("*alert*")

			require.Len(t, sender.sent, 1)
		})
	}
}

func TestLog_DisabledWithoutChat(t *testing.T) {
	sender := &fakeSender{}
	l := newLogger(sender, 0)

	l.PublishFailed(context.Background(), failedSession(), errors.New("x"))
	l.Wait()

	require.Empty(t, sender.sent)
}

func TestLog_TruncatesLongMessages(t *testing.T) {
	sender := &fakeSender{}
	l := newLogger(sender, 1)

	l.Log(strings.Repeat("ñ", config.MaxTelegramMessageLen+100))

	require.Len(t, sender.sent, 1)
	text := sender.sent[0].Text
	require.LessOrEqual(t, len([]rune(text)), config.MaxTelegramMessageLen)
	require.True(t, strings.HasSuffix(text, "(truncated)"))
}

func TestEscapeMarkdown(t *testing.T) {
	require.Equal(t, `a\_b\*c\`+"`"+`d\[e`, escapeMarkdown("a_b*c`d[e"))
}
