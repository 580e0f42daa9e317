// Package bot implements lifecycle management and component orchestration:
// the Telegram listener, the task scheduler and the optional HTTP endpoint.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/edgard/rosterbot/internal/bot/tasks"
)

// Listener receives Telegram updates until ctx is cancelled. *bot.Bot satisfies it.
type Listener interface {
	Start(ctx context.Context)
}

// Runner is a component that serves until ctx is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// Bot represents the main bot application and manages its components' lifecycle.
type Bot struct {
	logger    *slog.Logger
	listener  Listener
	scheduler *Scheduler
	http      Runner
}

// NewBot creates the orchestrator. http may be nil when the HTTP endpoint is disabled.
func NewBot(logger *slog.Logger, listener Listener, scheduler *Scheduler, http Runner) *Bot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		listener:  listener,
		scheduler: scheduler,
		http:      http,
	}
}

// Run refreshes the chat directory, then starts every component and blocks
// until ctx is cancelled or one of them fails.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator")

	if err := b.scheduler.RunNow(ctx, tasks.DirectoryReconcile); err != nil {
		b.logger.Warn("Initial chat directory reconciliation failed", "error", err)
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener")
		b.listener.Start(gCtx)
		b.logger.Info("Telegram bot listener stopped")

		if gCtx.Err() == nil {
			return fmt.Errorf("telegram listener stopped unexpectedly")
		}
		return nil
	})

	g.Go(func() error {
		if err := b.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		b.logger.Info("Shutdown signal received, stopping scheduler")
		if err := b.scheduler.Stop(); err != nil {
			b.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	if b.http != nil {
		g.Go(func() error {
			if err := b.http.Run(gCtx); err != nil {
				return fmt.Errorf("http server failed: %w", err)
			}
			return nil
		})
	}

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully")
	return nil
}
