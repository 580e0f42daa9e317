package handlers

import (
	"log/slog"

	"github.com/edgard/rosterbot/internal/broadcast"
	"github.com/edgard/rosterbot/internal/compose"
	"github.com/edgard/rosterbot/internal/config"
	"github.com/edgard/rosterbot/internal/database"
	"github.com/edgard/rosterbot/internal/platform"
	"github.com/edgard/rosterbot/internal/reconcile"
)

// HandlerDeps provides dependencies for Telegram command and callback handlers.
type HandlerDeps struct {
	Logger     *slog.Logger
	Config     *config.Config
	Store      database.Store
	Gateway    platform.Gateway
	Settings   *broadcast.Settings
	Dispatcher *broadcast.Dispatcher
	Directory  *reconcile.Directory
	Roster     *reconcile.Roster
	Sessions   *compose.Registry
}

func (d HandlerDeps) isAdmin(userID int64) bool {
	return userID == d.Config.Telegram.AdminUserID
}

func (d HandlerDeps) targetChatID() int64 {
	return d.Config.Telegram.TargetChatID
}

func (d HandlerDeps) botID() int64 {
	if d.Config.Telegram.BotInfo == nil {
		return 0
	}
	return d.Config.Telegram.BotInfo.ID
}
