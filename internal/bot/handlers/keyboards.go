package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/rosterbot/internal/broadcast"
)

// Callback actions carried after callbackPrefix.
const (
	actionCreate      = "create"
	actionSettings    = "settings"
	actionToggle      = "toggle"
	actionModeMenu    = "mode"
	actionSetMode     = "setmode"
	actionSelect      = "select"
	actionChat        = "chat"
	actionPage        = "page"
	actionSelectAll   = "select_all"
	actionClear       = "clear"
	actionDone        = "done"
	actionBack        = "back"
	actionConfirm     = "confirm"
	actionCancel      = "cancel"
	actionEdit        = "edit"
	actionUpdateChats = "update_chats"
	actionSync        = "sync"
	actionStats       = "stats"
)

// Toggle targets.
const (
	toggleMembers = "members"
	toggleChat    = "chat"
	toggleNetwork = "network"
)

const maxButtonTitle = 25

func cb(parts ...string) string {
	return callbackPrefix + strings.Join(parts, ":")
}

func button(text string, parts ...string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{Text: text, CallbackData: cb(parts...)}
}

func adminKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{button("📝 Create broadcast", actionCreate)},
		{button("⚙️ Broadcast settings", actionSettings)},
		{button("🔄 Update chats", actionUpdateChats), button("👥 Sync members", actionSync)},
		{button("📊 Statistics", actionStats)},
	}}
}

func backKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{button("◀️ Back", actionBack)},
	}}
}

func cancelKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{button("❌ Cancel", actionCancel)},
	}}
}

func onOff(v bool) string {
	if v {
		return "✅"
	}
	return "❌"
}

func settingsKeyboard(snap broadcast.Snapshot) *models.InlineKeyboardMarkup {
	rows := [][]models.InlineKeyboardButton{
		{button(onOff(snap.TargetMembers)+" Target chat members", actionToggle, toggleMembers)},
		{button(onOff(snap.TargetChat)+" Target chat", actionToggle, toggleChat)},
		{button(onOff(snap.Network)+" Chat network", actionToggle, toggleNetwork)},
		{button("📋 Network mode: "+modeLabel(snap.Mode), actionModeMenu)},
	}
	if snap.Mode == broadcast.ModeSpecific {
		rows = append(rows, []models.InlineKeyboardButton{
			button(fmt.Sprintf("🎯 Select chats (%d)", len(snap.Selected)), actionSelect),
		})
	}
	rows = append(rows, []models.InlineKeyboardButton{button("◀️ Back", actionBack)})
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func modeKeyboard(current broadcast.Mode) *models.InlineKeyboardMarkup {
	row := func(m broadcast.Mode) []models.InlineKeyboardButton {
		label := modeLabel(m)
		if m == current {
			label = "• " + label
		}
		return []models.InlineKeyboardButton{button(label, actionSetMode, string(m))}
	}
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		row(broadcast.ModeAll),
		row(broadcast.ModeMembersOnly),
		row(broadcast.ModeSpecific),
		{button("◀️ Back", actionSettings)},
	}}
}

// chatSelectionKeyboard renders one page of selectable network chats.
// page is clamped to the valid range.
func chatSelectionKeyboard(snap broadcast.Snapshot, targetChatID int64, page, perPage int) *models.InlineKeyboardMarkup {
	var chats []int64
	titles := make(map[int64]string)
	for _, chat := range snap.AvailableChats() {
		if chat.ChatID == targetChatID {
			continue
		}
		chats = append(chats, chat.ChatID)
		titles[chat.ChatID] = chat.Title
	}

	pages := (len(chats) + perPage - 1) / perPage
	page = max(0, min(page, pages-1))
	start := page * perPage
	end := min(start+perPage, len(chats))

	var rows [][]models.InlineKeyboardButton
	for _, id := range chats[start:end] {
		label := onOff(snap.IsSelected(id)) + " " + shorten(titles[id], maxButtonTitle)
		rows = append(rows, []models.InlineKeyboardButton{
			button(label, actionChat, strconv.FormatInt(id, 10), strconv.Itoa(page)),
		})
	}

	rows = append(rows, []models.InlineKeyboardButton{
		button("✅ Select all", actionSelectAll, strconv.Itoa(page)),
		button("❌ Clear", actionClear, strconv.Itoa(page)),
	})

	var nav []models.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, button("◀️ Previous", actionPage, strconv.Itoa(page-1)))
	}
	if end < len(chats) {
		nav = append(nav, button("▶️ Next", actionPage, strconv.Itoa(page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	rows = append(rows, []models.InlineKeyboardButton{button("✅ Done", actionDone)})
	return &models.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func confirmKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{InlineKeyboard: [][]models.InlineKeyboardButton{
		{button("✅ Send", actionConfirm), button("❌ Cancel", actionCancel)},
		{button("📝 Edit text", actionEdit)},
	}}
}
