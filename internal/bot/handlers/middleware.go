// Package handlers contains the Telegram command, callback and tracking
// handlers, along with their registration logic and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// AdminOnly lets only the configured operator through. Messages from anyone
// else get the not-authorized reply; callback queries get it as an alert.
func AdminOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			log := deps.Logger.With("middleware", "AdminOnly")

			switch {
			case update.CallbackQuery != nil:
				if deps.isAdmin(update.CallbackQuery.From.ID) {
					next(ctx, bot, update)
					return
				}
				log.WarnContext(ctx, "Unauthorized callback attempt", "user_id", update.CallbackQuery.From.ID)
				_, err := bot.AnswerCallbackQuery(ctx, &tgbot.AnswerCallbackQueryParams{
					CallbackQueryID: update.CallbackQuery.ID,
					Text:            deps.Config.Messages.NotAuthorized,
					ShowAlert:       true,
				})
				if err != nil {
					log.ErrorContext(ctx, "Failed to answer unauthorized callback", "error", err)
				}

			case update.Message != nil && update.Message.From != nil:
				if deps.isAdmin(update.Message.From.ID) {
					next(ctx, bot, update)
					return
				}
				chatID := update.Message.Chat.ID
				log.WarnContext(ctx, "Unauthorized access attempt", "user_id", update.Message.From.ID, "chat_id", chatID)
				_, err := bot.SendMessage(ctx, &tgbot.SendMessageParams{
					ChatID: chatID,
					Text:   deps.Config.Messages.NotAuthorized,
				})
				if err != nil {
					log.ErrorContext(ctx, "Failed to send unauthorized message", "error", err, "chat_id", chatID)
				}

			default:
				log.DebugContext(ctx, "Dropping update without sender", "update_id", update.ID)
			}
		}
	}
}
