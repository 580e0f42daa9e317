// Package tasks implements the scheduled jobs of the bot: reconciliation of
// the chat directory and target roster, and database maintenance.
package tasks

import (
	"log/slog"

	"github.com/edgard/rosterbot/internal/config"
	"github.com/edgard/rosterbot/internal/database"
	"github.com/edgard/rosterbot/internal/reconcile"
)

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger    *slog.Logger
	Store     database.Store
	Directory *reconcile.Directory
	Roster    *reconcile.Roster
	Config    *config.Config
}
