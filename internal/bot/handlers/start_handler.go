package handlers

import (
	"context"
	"errors"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/rosterbot/internal/platform"
)

// NewStartHandler returns a handler for the /start command.
func NewStartHandler(deps HandlerDeps) bot.HandlerFunc {
	return startHandler{deps}.Handle
}

// startHandler greets users. The operator gets a refreshed chat directory and
// the control panel; everyone else learns whether they will receive broadcasts.
type startHandler struct {
	deps HandlerDeps
}

func (h startHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "start")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Start handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	msg := update.Message
	chatID := msg.Chat.ID
	log.InfoContext(ctx, "Handling /start command", "chat_id", chatID, "user_id", msg.From.ID)

	if platform.ChatKind(msg.Chat.Type).IsGroup() {
		h.deps.recordMember(ctx, msg.From, chatID, platform.StatusMember)
		h.deps.touchChat(ctx, chatID)
	} else {
		h.deps.recordUser(ctx, msg.From)
	}

	if h.deps.isAdmin(msg.From.ID) {
		h.openPanel(ctx, b, chatID)
		return
	}

	welcome := h.deps.Config.Messages.WelcomeNonMember
	if h.isTargetMember(ctx, msg.From) {
		welcome = h.deps.Config.Messages.WelcomeMember
	}
	send(ctx, b, log, chatID, welcome, nil)
}

// openPanel refreshes the chat directory in the background and turns the
// status message into the control panel once it is done.
func (h startHandler) openPanel(ctx context.Context, b *bot.Bot, chatID int64) {
	log := h.deps.Logger.With("handler", "start")

	status := send(ctx, b, log, chatID, "🔄 Updating chats...", nil)
	if status == nil {
		return
	}

	runCtx := context.WithoutCancel(ctx)
	go func() {
		if _, err := h.deps.Directory.Reconcile(runCtx); err != nil {
			log.ErrorContext(runCtx, "Failed to update chat directory", "error", err)
		}
		edit(runCtx, b, log, chatID, status.ID, h.deps.Config.Messages.AdminPanel, adminKeyboard())
	}()
}

// isTargetMember checks the stored roster first and falls back to asking the
// platform, recording a confirmed membership.
func (h startHandler) isTargetMember(ctx context.Context, u *models.User) bool {
	log := h.deps.Logger.With("handler", "start")
	target := h.deps.targetChatID()

	membership, err := h.deps.Store.GetMembership(ctx, u.ID, target)
	if err != nil {
		log.ErrorContext(ctx, "Failed to look up membership", "error", err, "user_id", u.ID)
	}
	if membership != nil && !platform.MemberStatus(membership.Status).Departed() {
		return true
	}

	status, err := h.deps.Gateway.GetMemberStatus(ctx, target, u.ID)
	switch {
	case errors.Is(err, platform.ErrNotFound):
		return false
	case err != nil:
		log.WarnContext(ctx, "Failed to check membership on Telegram", "error", err, "user_id", u.ID)
		return false
	case status.Departed():
		return false
	}

	h.deps.recordMember(ctx, u, target, status)
	return true
}
