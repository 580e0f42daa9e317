package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/rosterbot/internal/platform"
)

// NewAdminHandler returns a handler for the /admin command.
func NewAdminHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		log := deps.Logger.With("handler", "admin")
		if update.Message == nil {
			return
		}
		send(ctx, b, log, update.Message.Chat.ID, deps.Config.Messages.AdminPanel, adminKeyboard())
	}
}

// NewCancelHandler returns a handler for the /cancel command. It drops the
// broadcast being composed, if any.
func NewCancelHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		log := deps.Logger.With("handler", "cancel")
		if update.Message == nil || update.Message.From == nil {
			return
		}
		if deps.Sessions.Cancel(update.Message.From.ID) {
			log.InfoContext(ctx, "Broadcast composition cancelled", "user_id", update.Message.From.ID)
		}
		send(ctx, b, log, update.Message.Chat.ID, deps.Config.Messages.Cancelled, adminKeyboard())
	}
}

// NewAddChatHandler returns a handler for /addchat. Sent in a group, it makes
// that group available as a broadcast destination.
func NewAddChatHandler(deps HandlerDeps) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		log := deps.Logger.With("handler", "addchat")
		if update.Message == nil {
			return
		}

		chatID := update.Message.Chat.ID
		if !platform.ChatKind(update.Message.Chat.Type).IsGroup() {
			send(ctx, b, log, chatID, deps.Config.Messages.GroupOnly, nil)
			return
		}

		chat, err := deps.registerChat(ctx, chatID)
		if err != nil {
			log.ErrorContext(ctx, "Failed to register chat", "error", err, "chat_id", chatID)
			send(ctx, b, log, chatID, deps.Config.Messages.GeneralError, nil)
			return
		}

		log.InfoContext(ctx, "Chat registered", "chat_id", chat.ChatID, "title", chat.Title, "members", chat.MemberCount)
		send(ctx, b, log, chatID, deps.Config.Messages.ChatAdded, nil)
	}
}
