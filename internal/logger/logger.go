// Package logger builds the process logger and the update-logging middleware.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// ParseLevel maps a config level name to a slog level. Unknown names map to info.
func ParseLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates the process logger writing to stdout and installs it as the
// slog default. jsonOutput selects the JSON handler over the text one.
func NewLogger(levelStr string, jsonOutput bool) *slog.Logger {
	logger := newLogger(os.Stdout, levelStr, jsonOutput)
	slog.SetDefault(logger)
	return logger
}

func newLogger(w io.Writer, levelStr string, jsonOutput bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(levelStr)}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Middleware logs every incoming update with its type, chat, user and duration.
func Middleware(log *slog.Logger) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			startTime := time.Now()

			entry := log.With(append([]any{"update_id", update.ID}, describe(update)...)...)
			entry.DebugContext(ctx, "Processing update")

			next(ctx, b, update)

			entry.InfoContext(ctx, "Finished processing update", "duration", time.Since(startTime))
		}
	}
}

// describe returns log attributes identifying the update.
func describe(update *models.Update) []any {
	switch {
	case update.Message != nil:
		msg := update.Message
		attrs := []any{"update_type", "message", "message_id", msg.ID, "chat_id", msg.Chat.ID}
		if msg.From != nil {
			attrs = append(attrs, "user_id", msg.From.ID)
		}
		switch {
		case len(msg.NewChatMembers) > 0:
			attrs = append(attrs, "event", "new_chat_members", "count", len(msg.NewChatMembers))
		case msg.LeftChatMember != nil:
			attrs = append(attrs, "event", "left_chat_member", "member_id", msg.LeftChatMember.ID)
		case msg.Text != "":
			attrs = append(attrs, "text_preview", truncate(msg.Text, 50))
		}
		return attrs

	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		attrs := []any{"update_type", "callback_query", "callback_query_id", cq.ID, "user_id", cq.From.ID, "data", cq.Data}
		switch {
		case cq.Message.Message != nil:
			attrs = append(attrs, "chat_id", cq.Message.Message.Chat.ID)
		case cq.Message.InaccessibleMessage != nil:
			attrs = append(attrs, "chat_id", cq.Message.InaccessibleMessage.Chat.ID)
		}
		return attrs

	case update.MyChatMember != nil:
		m := update.MyChatMember
		return []any{
			"update_type", "my_chat_member",
			"chat_id", m.Chat.ID,
			"user_id", m.From.ID,
			"new_status", string(m.NewChatMember.Type),
		}

	default:
		return []any{"update_type", "other"}
	}
}

func truncate(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}
