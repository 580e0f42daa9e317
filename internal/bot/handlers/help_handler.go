package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewHelpHandler returns a handler for the /help command.
func NewHelpHandler(deps HandlerDeps) bot.HandlerFunc {
	return helpHandler{deps}.Handle
}

// helpHandler explains the bot. The operator also gets the command reference.
type helpHandler struct {
	deps HandlerDeps
}

func (h helpHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	log := h.deps.Logger.With("handler", "help", "user_id", msg.From.ID)

	var username string
	if info := h.deps.Config.Telegram.BotInfo; info != nil {
		username = info.Username
	}
	messages := h.deps.Config.Messages
	adminHelp := ""
	if h.deps.isAdmin(msg.From.ID) {
		adminHelp = messages.AdminHelp
	}

	log.DebugContext(ctx, "Sending help", "chat_id", msg.Chat.ID, "admin", adminHelp != "")
	send(ctx, b, log, msg.Chat.ID, helpText(messages.Help, adminHelp, username), nil)
}
