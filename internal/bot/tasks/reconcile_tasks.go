package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/edgard/rosterbot/internal/reconcile"
)

// newDirectoryReconcileTask drops chats the bot no longer belongs to and
// refreshes the available set used by broadcasts.
func newDirectoryReconcileTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", DirectoryReconcile)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, deps.Config.Reconcile.Timeout)
		defer cancel()

		start := time.Now()
		result, err := deps.Directory.Reconcile(ctx)
		if err != nil {
			return fmt.Errorf("directory reconciliation failed: %w", err)
		}

		log.InfoContext(ctx, "Chat directory reconciled",
			"chats", len(result.Current), "evicted", result.Evicted, "duration", time.Since(start))
		return nil
	}
}

// newRosterReconcileTask removes target chat members who have left. A run
// already in progress, for example one started by the operator, is not an error.
func newRosterReconcileTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", RosterReconcile)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, deps.Config.Reconcile.Timeout)
		defer cancel()

		start := time.Now()
		result, err := deps.Roster.Reconcile(ctx, nil)
		switch {
		case errors.Is(err, reconcile.ErrRosterBusy):
			log.InfoContext(ctx, "Roster reconciliation already running, skipping")
			return nil
		case err != nil:
			return fmt.Errorf("roster reconciliation failed: %w", err)
		}

		log.InfoContext(ctx, "Target roster reconciled",
			"prior", result.Prior, "confirmed", result.Confirmed, "evicted", result.Evicted,
			"duration", time.Since(start))
		return nil
	}
}
