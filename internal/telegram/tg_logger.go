package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/set-night/terranote/internal/config"
	"github.com/set-night/terranote/internal/domain"
)

const sendTimeout = 10 * time.Second

// messageSender is the part of *bot.Bot the logger needs.
type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramLogger mirrors publish failures into an operator chat topic.
type TelegramLogger struct {
	sender  messageSender
	chatID  int64
	topicID int

	wg sync.WaitGroup
}

func NewTelegramLogger(sender messageSender, cfg *config.Config) *TelegramLogger {
	return &TelegramLogger{
		sender:  sender,
		chatID:  cfg.LogTelegramChatID,
		topicID: cfg.LogTopicError,
	}
}

// Log sends message to the alert chat. Markdown the API refuses is resent
// as plain text.
func (l *TelegramLogger) Log(message string) {
	if l.chatID == 0 {
		return
	}

	if len([]rune(message)) > config.MaxTelegramMessageLen {
		message = string([]rune(message)[:config.MaxTelegramMessageLen-20]) + "\n\n... (truncated)"
	}

	params := &bot.SendMessageParams{
		ChatID:          l.chatID,
		Text:            message,
		ParseMode:       models.ParseModeMarkdownV1,
		MessageThreadID: l.topicID,
	}
	err := l.send(params)
	if err == nil {
		return
	}
	if !errors.Is(err, bot.ErrorBadRequest) {
		slog.Error("failed to send telegram log", "error", err)
		return
	}

	slog.Warn("telegram log rejected as markdown, retrying as plain text", "error", err)
	params.ParseMode = ""
	if err := l.send(params); err != nil {
		slog.Error("failed to send telegram log", "error", err)
	}
}

func (l *TelegramLogger) send(params *bot.SendMessageParams) error {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	_, err := l.sender.SendMessage(ctx, params)
	return err
}

// PublishFailed reports a session whose note could not be created. The
// message is sent in the background so the caller is not held up by Telegram.
func (l *TelegramLogger) PublishFailed(_ context.Context, sess domain.Session, err error) {
	msg := fmt.Sprintf("❌ *Note publish failed*\n\n*User:* `%s`\n*Platform:* %s\n*Session:* `%s`\n*Text:* %s\n*Error:* %s\n*Time:* %s",
		escapeMarkdown(sess.UserID),
		sess.Platform,
		sess.ID,
		escapeMarkdown(sess.Text),
		escapeMarkdown(err.Error()),
		time.Now().UTC().Format("2006-01-02 15:04:05"),
	)
	if sess.Location != nil {
		msg += fmt.Sprintf("\n*Location:* %.6f, %.6f", sess.Location.Latitude, sess.Location.Longitude)
	}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.Log(msg)
	}()
}

// Wait blocks until queued alerts have been sent.
func (l *TelegramLogger) Wait() {
	l.wg.Wait()
}

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
