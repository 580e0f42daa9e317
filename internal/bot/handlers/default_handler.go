package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/rosterbot/internal/compose"
	"github.com/edgard/rosterbot/internal/platform"
	"github.com/edgard/rosterbot/internal/reconcile"
)

// NewDefaultHandler returns the handler for updates no command matched. It
// keeps users, memberships and chats up to date from group traffic and
// receives the broadcast text the operator is composing.
func NewDefaultHandler(deps HandlerDeps) bot.HandlerFunc {
	return defaultHandler{deps}.Handle
}

type defaultHandler struct {
	deps HandlerDeps
}

func (h defaultHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	switch {
	case update.MyChatMember != nil:
		h.botMembership(ctx, update.MyChatMember)
	case update.Message != nil:
		h.message(ctx, b, update.Message)
	}
}

// botMembership tracks the bot being added to or removed from a chat.
func (h defaultHandler) botMembership(ctx context.Context, upd *models.ChatMemberUpdated) {
	log := h.deps.Logger.With("handler", "my_chat_member")
	chatID := upd.Chat.ID
	status := platform.MemberStatus(upd.NewChatMember.Type)

	if status.Departed() {
		log.InfoContext(ctx, "Bot removed from chat", "chat_id", chatID, "status", status)
		h.deps.forgetChat(ctx, chatID)
		return
	}
	if !platform.ChatKind(upd.Chat.Type).IsGroup() {
		return
	}

	log.InfoContext(ctx, "Bot membership changed", "chat_id", chatID, "status", status)
	if _, err := h.deps.registerChat(ctx, chatID); err != nil {
		log.WarnContext(ctx, "Failed to register chat", "error", err, "chat_id", chatID)
	}
}

func (h defaultHandler) message(ctx context.Context, b *bot.Bot, msg *models.Message) {
	kind := platform.ChatKind(msg.Chat.Type)
	switch {
	case kind.IsGroup():
		h.groupMessage(ctx, msg)
	case kind == platform.ChatKindPrivate && msg.From != nil:
		h.privateMessage(ctx, b, msg)
	}
}

func (h defaultHandler) groupMessage(ctx context.Context, msg *models.Message) {
	log := h.deps.Logger.With("handler", "tracking")
	chatID := msg.Chat.ID
	botID := h.deps.botID()

	for i := range msg.NewChatMembers {
		u := &msg.NewChatMembers[i]
		if u.ID == botID {
			log.InfoContext(ctx, "Bot added to chat", "chat_id", chatID)
			if _, err := h.deps.registerChat(ctx, chatID); err != nil {
				log.WarnContext(ctx, "Failed to register chat", "error", err, "chat_id", chatID)
			}
			continue
		}
		if u.IsBot {
			continue
		}
		h.deps.recordMember(ctx, u, chatID, platform.StatusMember)
	}

	if left := msg.LeftChatMember; left != nil {
		if left.ID == botID {
			log.InfoContext(ctx, "Bot left chat", "chat_id", chatID)
			h.deps.forgetChat(ctx, chatID)
			return
		}
		h.deps.forgetMember(ctx, left.ID, chatID)
		return
	}

	if msg.From != nil && !msg.From.IsBot {
		h.deps.recordMember(ctx, msg.From, chatID, platform.StatusMember)
	}
	h.deps.touchChat(ctx, chatID)
}

func (h defaultHandler) privateMessage(ctx context.Context, b *bot.Bot, msg *models.Message) {
	h.deps.recordUser(ctx, msg.From)

	operatorID := msg.From.ID
	if !h.deps.isAdmin(operatorID) || h.deps.Sessions.State(operatorID) != compose.StateAwaitingText {
		return
	}
	h.composeText(ctx, b, msg)
}

// composeText accepts the broadcast text, synchronizes the target roster and
// shows the recipient preview. The work continues in the background.
func (h defaultHandler) composeText(ctx context.Context, b *bot.Bot, msg *models.Message) {
	log := h.deps.Logger.With("handler", "compose")
	operatorID := msg.From.ID
	chatID := msg.Chat.ID

	if strings.TrimSpace(msg.Text) == "" {
		send(ctx, b, log, chatID, h.deps.Config.Messages.AskText, cancelKeyboard())
		return
	}
	if err := h.deps.Sessions.SubmitText(operatorID, msg.Text); err != nil {
		log.WarnContext(ctx, "Broadcast text rejected", "error", err)
		send(ctx, b, log, chatID, h.deps.Config.Messages.AskText, cancelKeyboard())
		return
	}

	const header = "🔄 Preparing broadcast"
	status := send(ctx, b, log, chatID, header+"...", nil)
	if status == nil {
		h.deps.Sessions.Cancel(operatorID)
		return
	}

	runCtx := context.WithoutCancel(ctx)
	go func() {
		progress := progressEditor(b, chatID, status.ID, header)

		roster, err := h.deps.Roster.Reconcile(runCtx, progress)
		switch {
		case errors.Is(err, reconcile.ErrRosterBusy):
			log.InfoContext(runCtx, "Member sync already running, previewing without it")
			roster = nil
		case err != nil:
			log.ErrorContext(runCtx, "Member sync before broadcast failed", "error", err)
			roster = nil
		}

		plan, err := h.deps.Dispatcher.Preview(runCtx)
		if err != nil {
			log.ErrorContext(runCtx, "Failed to resolve recipients", "error", err)
			h.deps.Sessions.Cancel(operatorID)
			edit(runCtx, b, log, chatID, status.ID, h.deps.Config.Messages.GeneralError, adminKeyboard())
			return
		}
		if plan.Total() == 0 {
			h.deps.Sessions.Cancel(operatorID)
			edit(runCtx, b, log, chatID, status.ID, h.deps.Config.Messages.NoTargets, adminKeyboard())
			return
		}

		text := previewText(msg.Text, plan, roster, h.deps.Config.Broadcast.PreviewLength, h.deps.targetChatID())
		edit(runCtx, b, log, chatID, status.ID, text, confirmKeyboard())
	}()
}
