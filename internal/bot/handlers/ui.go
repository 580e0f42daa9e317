package handlers

import (
	"context"
	"log/slog"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/rosterbot/internal/platform"
)

const progressEditTimeout = 5 * time.Second

// send posts text to chatID, attaching kb when it is not nil.
func send(ctx context.Context, b *tgbot.Bot, log *slog.Logger, chatID int64, text string, kb *models.InlineKeyboardMarkup) *models.Message {
	params := &tgbot.SendMessageParams{ChatID: chatID, Text: text}
	if kb != nil {
		params.ReplyMarkup = kb
	}
	msg, err := b.SendMessage(ctx, params)
	if err != nil {
		log.ErrorContext(ctx, "Failed to send message", "error", err, "chat_id", chatID)
		return nil
	}
	return msg
}

// edit replaces the text of an existing message, attaching kb when it is not nil.
func edit(ctx context.Context, b *tgbot.Bot, log *slog.Logger, chatID int64, messageID int, text string, kb *models.InlineKeyboardMarkup) {
	params := &tgbot.EditMessageTextParams{ChatID: chatID, MessageID: messageID, Text: text}
	if kb != nil {
		params.ReplyMarkup = kb
	}
	if _, err := b.EditMessageText(ctx, params); err != nil {
		log.WarnContext(ctx, "Failed to edit message", "error", err, "chat_id", chatID, "message_id", messageID)
	}
}

func answer(ctx context.Context, b *tgbot.Bot, log *slog.Logger, callbackID, text string, alert bool) {
	_, err := b.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	})
	if err != nil {
		log.DebugContext(ctx, "Failed to answer callback query", "error", err)
	}
}

// progressEditor reports progress by rewriting one message. Failures are
// ignored and each edit is bounded by progressEditTimeout.
func progressEditor(b *tgbot.Bot, chatID int64, messageID int, header string) platform.ProgressFunc {
	return func(ctx context.Context, text string) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), progressEditTimeout)
		defer cancel()
		_, _ = b.EditMessageText(ctx, &tgbot.EditMessageTextParams{
			ChatID:    chatID,
			MessageID: messageID,
			Text:      header + "\n\n" + text,
		})
	}
}

// callbackMessage returns the chat and message a callback query was sent from.
func callbackMessage(cq *models.CallbackQuery) (int64, int, bool) {
	if cq == nil || cq.Message.Message == nil {
		return 0, 0, false
	}
	return cq.Message.Message.Chat.ID, cq.Message.Message.ID, true
}
