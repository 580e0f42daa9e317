package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/edgard/rosterbot/internal/bot/tasks"
	"github.com/edgard/rosterbot/internal/config"
)

// Scheduler runs the configured tasks on their cron schedules. A task that is
// still running when its next run is due is rescheduled instead of overlapping.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a new scheduler instance using gocron.
func NewScheduler(logger *slog.Logger, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    logger.With("component", "scheduler"),
		cfg:       cfg,
		taskMap:   taskMap,
	}, nil
}

// Start schedules all enabled tasks and starts the scheduler. Tasks with an
// invalid schedule are logged and skipped.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	scheduled := 0
	if s.cfg == nil || len(s.cfg.Tasks) == 0 {
		s.logger.Warn("No scheduler tasks configured")
	} else {
		names := make([]string, 0, len(s.cfg.Tasks))
		for name := range s.cfg.Tasks {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if s.schedule(name, s.cfg.Tasks[name]) {
				scheduled++
			}
		}
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler started", "tasks_scheduled", scheduled)
	return nil
}

func (s *Scheduler) schedule(name string, taskCfg config.TaskConfig) bool {
	if !taskCfg.Enabled {
		s.logger.Info("Skipping disabled task", "task_name", name)
		return false
	}

	taskFunc, exists := s.taskMap[name]
	if !exists {
		s.logger.Warn("Scheduled task configured but not found in registry, skipping", "task_name", name)
		return false
	}

	_, err := s.scheduler.NewJob(
		gocron.CronJob(taskCfg.Schedule, true),
		gocron.NewTask(s.wrap(name, taskFunc)),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		s.logger.Error("Failed to schedule task", "task_name", name, "schedule", taskCfg.Schedule, "error", err)
		return false
	}

	s.logger.Info("Scheduled task", "task_name", name, "schedule", taskCfg.Schedule)
	return true
}

func (s *Scheduler) wrap(name string, taskFunc tasks.ScheduledTaskFunc) func() {
	return func() {
		ctx := context.Background()
		s.logger.InfoContext(ctx, "Running scheduled task", "task_name", name)
		start := time.Now()
		if err := taskFunc(ctx); err != nil {
			s.logger.ErrorContext(ctx, "Scheduled task failed", "task_name", name, "error", err)
		}
		s.logger.InfoContext(ctx, "Finished scheduled task", "task_name", name, "duration", time.Since(start))
	}
}

// RunNow runs a registered task once, outside its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	taskFunc, ok := s.taskMap[name]
	if !ok {
		return fmt.Errorf("unknown task %q", name)
	}
	return taskFunc(ctx)
}

// Stop shuts the scheduler down, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped")
	}

	s.running = false
	return err
}
