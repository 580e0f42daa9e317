package handlers

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/rosterbot/internal/broadcast"
	"github.com/edgard/rosterbot/internal/compose"
	"github.com/edgard/rosterbot/internal/reconcile"
)

// NewCallbackHandler returns the handler for every admin panel button.
func NewCallbackHandler(deps HandlerDeps) bot.HandlerFunc {
	return callbackHandler{deps}.Handle
}

type callbackHandler struct {
	deps HandlerDeps
}

// callbackCtx carries what one button press needs to respond.
type callbackCtx struct {
	b          *bot.Bot
	log        *slog.Logger
	callbackID string
	operatorID int64
	chatID     int64
	messageID  int
	args       []string
}

func (c callbackCtx) arg(i int) string {
	if i < len(c.args) {
		return c.args[i]
	}
	return ""
}

func (c callbackCtx) intArg(i int) int {
	n, _ := strconv.Atoi(c.arg(i))
	return n
}

func (h callbackHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "callback")

	cq := update.CallbackQuery
	if cq == nil {
		return
	}
	chatID, messageID, ok := callbackMessage(cq)
	if !ok {
		log.WarnContext(ctx, "Callback query without accessible message", "callback_id", cq.ID)
		answer(ctx, b, log, cq.ID, "", false)
		return
	}

	parts := strings.Split(strings.TrimPrefix(cq.Data, callbackPrefix), ":")
	c := callbackCtx{
		b:          b,
		log:        log,
		callbackID: cq.ID,
		operatorID: cq.From.ID,
		chatID:     chatID,
		messageID:  messageID,
		args:       parts[1:],
	}

	log.DebugContext(ctx, "Handling callback", "action", parts[0], "args", c.args)

	var err error
	switch parts[0] {
	case actionCreate:
		err = h.create(ctx, c)
	case actionSettings, actionDone:
		h.showSettings(ctx, c)
	case actionToggle:
		err = h.toggle(ctx, c)
	case actionModeMenu:
		h.showModes(ctx, c)
	case actionSetMode:
		err = h.setMode(ctx, c)
	case actionSelect:
		h.showChats(ctx, c, 0)
	case actionPage:
		h.showChats(ctx, c, c.intArg(0))
	case actionChat:
		err = h.toggleChat(ctx, c)
	case actionSelectAll:
		err = h.deps.Settings.SelectAll(h.deps.targetChatID())
		if err == nil {
			h.showChats(ctx, c, c.intArg(0))
		}
	case actionClear:
		err = h.deps.Settings.ClearSelected()
		if err == nil {
			h.showChats(ctx, c, c.intArg(0))
		}
	case actionBack:
		edit(ctx, b, log, chatID, messageID, h.deps.Config.Messages.AdminPanel, adminKeyboard())
	case actionConfirm:
		err = h.confirm(ctx, c)
	case actionCancel:
		h.deps.Sessions.Cancel(c.operatorID)
		edit(ctx, b, log, chatID, messageID, h.deps.Config.Messages.Cancelled, adminKeyboard())
	case actionEdit:
		err = h.editText(ctx, c)
	case actionUpdateChats:
		h.updateChats(ctx, c)
	case actionSync:
		err = h.sync(ctx, c)
	case actionStats:
		h.stats(ctx, c)
	default:
		log.WarnContext(ctx, "Unknown callback action", "data", cq.Data)
	}

	switch {
	case errors.Is(err, broadcast.ErrRunInProgress), errors.Is(err, reconcile.ErrRosterBusy):
		answer(ctx, b, log, c.callbackID, h.deps.Config.Messages.Busy, true)
	case errors.Is(err, compose.ErrUnexpectedState):
		answer(ctx, b, log, c.callbackID, h.deps.Config.Messages.Cancelled, false)
		edit(ctx, b, log, chatID, messageID, h.deps.Config.Messages.AdminPanel, adminKeyboard())
	case err != nil:
		log.ErrorContext(ctx, "Callback action failed", "error", err, "action", parts[0])
		answer(ctx, b, log, c.callbackID, h.deps.Config.Messages.GeneralError, true)
	default:
		answer(ctx, b, log, c.callbackID, "", false)
	}
}

func (h callbackHandler) create(ctx context.Context, c callbackCtx) error {
	if h.deps.Settings.Running() {
		return broadcast.ErrRunInProgress
	}
	h.deps.Sessions.Begin(c.operatorID)
	edit(ctx, c.b, c.log, c.chatID, c.messageID, h.deps.Config.Messages.AskText, cancelKeyboard())
	return nil
}

func (h callbackHandler) editText(ctx context.Context, c callbackCtx) error {
	if err := h.deps.Sessions.EditText(c.operatorID); err != nil {
		return err
	}
	edit(ctx, c.b, c.log, c.chatID, c.messageID, h.deps.Config.Messages.AskText, cancelKeyboard())
	return nil
}

func (h callbackHandler) showSettings(ctx context.Context, c callbackCtx) {
	snap := h.deps.Settings.Snapshot()
	edit(ctx, c.b, c.log, c.chatID, c.messageID, settingsText(snap), settingsKeyboard(snap))
}

func (h callbackHandler) toggle(ctx context.Context, c callbackCtx) error {
	var err error
	switch c.arg(0) {
	case toggleMembers:
		_, err = h.deps.Settings.ToggleTargetMembers()
	case toggleChat:
		_, err = h.deps.Settings.ToggleTargetChat()
	case toggleNetwork:
		_, err = h.deps.Settings.ToggleNetwork()
	default:
		c.log.WarnContext(ctx, "Unknown toggle target", "target", c.arg(0))
		return nil
	}
	if err != nil {
		return err
	}
	h.showSettings(ctx, c)
	return nil
}

func (h callbackHandler) showModes(ctx context.Context, c callbackCtx) {
	snap := h.deps.Settings.Snapshot()
	edit(ctx, c.b, c.log, c.chatID, c.messageID, "📋 Choose how network chats are reached:", modeKeyboard(snap.Mode))
}

func (h callbackHandler) setMode(ctx context.Context, c callbackCtx) error {
	mode, err := broadcast.ParseMode(c.arg(0))
	if err != nil {
		return err
	}
	if err := h.deps.Settings.SetMode(mode); err != nil {
		return err
	}
	h.showSettings(ctx, c)
	return nil
}

func (h callbackHandler) showChats(ctx context.Context, c callbackCtx, page int) {
	snap := h.deps.Settings.Snapshot()
	kb := chatSelectionKeyboard(snap, h.deps.targetChatID(), page, h.deps.Config.Broadcast.ChatsPerPage)
	edit(ctx, c.b, c.log, c.chatID, c.messageID, chatSelectionText(snap), kb)
}

func (h callbackHandler) toggleChat(ctx context.Context, c callbackCtx) error {
	chatID, err := strconv.ParseInt(c.arg(0), 10, 64)
	if err != nil {
		return err
	}
	if _, err := h.deps.Settings.ToggleSelected(chatID); err != nil {
		return err
	}
	h.showChats(ctx, c, c.intArg(1))
	return nil
}

// confirm sends the composed broadcast. The run continues in the background
// and rewrites the panel message with progress and the final report.
func (h callbackHandler) confirm(ctx context.Context, c callbackCtx) error {
	if h.deps.Settings.Running() {
		return broadcast.ErrRunInProgress
	}
	text, err := h.deps.Sessions.Confirm(c.operatorID)
	if err != nil {
		return err
	}

	const header = "📤 Sending broadcast"
	edit(ctx, c.b, c.log, c.chatID, c.messageID, header+"...", nil)

	runCtx := context.WithoutCancel(ctx)
	go func() {
		progress := progressEditor(c.b, c.chatID, c.messageID, header)
		report, err := h.deps.Dispatcher.Dispatch(runCtx, text, progress)
		switch {
		case errors.Is(err, broadcast.ErrRunInProgress):
			edit(runCtx, c.b, c.log, c.chatID, c.messageID, h.deps.Config.Messages.Busy, adminKeyboard())
		case err != nil:
			c.log.ErrorContext(runCtx, "Broadcast failed", "error", err)
			edit(runCtx, c.b, c.log, c.chatID, c.messageID, h.deps.Config.Messages.GeneralError, adminKeyboard())
		default:
			edit(runCtx, c.b, c.log, c.chatID, c.messageID, reportText(report), adminKeyboard())
		}
	}()
	return nil
}

func (h callbackHandler) updateChats(ctx context.Context, c callbackCtx) {
	before := len(h.deps.Settings.Snapshot().Available)
	edit(ctx, c.b, c.log, c.chatID, c.messageID, "🔄 Updating chats...", nil)

	runCtx := context.WithoutCancel(ctx)
	go func() {
		result, err := h.deps.Directory.Reconcile(runCtx)
		if err != nil {
			c.log.ErrorContext(runCtx, "Chat directory update failed", "error", err)
			edit(runCtx, c.b, c.log, c.chatID, c.messageID, h.deps.Config.Messages.GeneralError, backKeyboard())
			return
		}
		edit(runCtx, c.b, c.log, c.chatID, c.messageID, directoryText(before, result), backKeyboard())
	}()
}

func (h callbackHandler) sync(ctx context.Context, c callbackCtx) error {
	if h.deps.Settings.Running() {
		return broadcast.ErrRunInProgress
	}

	const header = "👥 Member sync"
	edit(ctx, c.b, c.log, c.chatID, c.messageID, header+"...", nil)

	runCtx := context.WithoutCancel(ctx)
	go func() {
		progress := progressEditor(c.b, c.chatID, c.messageID, header)
		result, err := h.deps.Roster.Reconcile(runCtx, progress)
		switch {
		case errors.Is(err, reconcile.ErrRosterBusy):
			edit(runCtx, c.b, c.log, c.chatID, c.messageID, h.deps.Config.Messages.Busy, backKeyboard())
		case err != nil:
			c.log.ErrorContext(runCtx, "Member sync failed", "error", err)
			edit(runCtx, c.b, c.log, c.chatID, c.messageID, h.deps.Config.Messages.GeneralError, backKeyboard())
		default:
			edit(runCtx, c.b, c.log, c.chatID, c.messageID, rosterText(result), backKeyboard())
		}
	}()
	return nil
}

func (h callbackHandler) stats(ctx context.Context, c callbackCtx) {
	stats, err := h.deps.Store.GetStatistics(ctx, h.deps.targetChatID(), h.deps.Config.Broadcast.TopChats)
	if err != nil {
		c.log.ErrorContext(ctx, "Failed to load statistics", "error", err)
		edit(ctx, c.b, c.log, c.chatID, c.messageID, h.deps.Config.Messages.GeneralError, backKeyboard())
		return
	}
	edit(ctx, c.b, c.log, c.chatID, c.messageID, statsText(stats, h.deps.Settings.Snapshot()), backKeyboard())
}
