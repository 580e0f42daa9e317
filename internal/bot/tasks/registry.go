package tasks

import (
	"context"
)

// ScheduledTaskFunc defines the standard signature for all scheduled tasks.
// The context provided by the scheduler should be respected for cancellation.
type ScheduledTaskFunc func(ctx context.Context) error

// Task names, matching the keys of the scheduler.tasks configuration section.
const (
	DirectoryReconcile = "directory_reconcile"
	RosterReconcile    = "roster_reconcile"
	SQLMaintenance     = "sql_maintenance"
)

// RegisterAllTasks returns every scheduled task keyed by its configuration name.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		DirectoryReconcile: newDirectoryReconcileTask(deps),
		RosterReconcile:    newRosterReconcileTask(deps),
		SQLMaintenance:     newSQLMaintenanceTask(deps),
	}

	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
