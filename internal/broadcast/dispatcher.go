package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/edgard/rosterbot/internal/metrics"
	"github.com/edgard/rosterbot/internal/platform"
)

// ErrEmptyMessage is returned when asked to broadcast blank text.
var ErrEmptyMessage = errors.New("broadcast message is empty")

// Report counts the outcome of one run.
type Report struct {
	Attempted int
	Succeeded int
	Failed    int
}

// SuccessRate returns the percentage of successful sends, or 0 when nothing
// was attempted.
func (r Report) SuccessRate() float64 {
	if r.Attempted == 0 {
		return 0
	}
	return float64(r.Succeeded) / float64(r.Attempted) * 100
}

// DispatchOptions sets the pacing of sends.
type DispatchOptions struct {
	DirectInterval time.Duration
	ChatInterval   time.Duration
}

// Dispatcher delivers a message to the recipients resolved from Settings.
type Dispatcher struct {
	settings    *Settings
	resolver    *Resolver
	gateway     platform.Gateway
	directPacer *rate.Limiter
	chatPacer   *rate.Limiter
	logger      *slog.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(settings *Settings, resolver *Resolver, gateway platform.Gateway,
	opts DispatchOptions, logger *slog.Logger,
) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		settings:    settings,
		resolver:    resolver,
		gateway:     gateway,
		directPacer: platform.NewPacer(opts.DirectInterval),
		chatPacer:   platform.NewPacer(opts.ChatInterval),
		logger:      logger.With("component", "dispatcher"),
	}
}

// Dispatch sends text to every resolved recipient, category by category.
// Individual send failures are counted and never stop the run. Once targets
// are resolved the run ignores cancellation of ctx. Only one dispatch may run
// at a time; a concurrent call returns ErrRunInProgress.
func (d *Dispatcher) Dispatch(ctx context.Context, text string, progress platform.ProgressFunc) (Report, error) {
	if strings.TrimSpace(text) == "" {
		return Report{}, ErrEmptyMessage
	}

	snap, err := d.settings.BeginRun()
	if err != nil {
		return Report{}, err
	}
	defer d.settings.EndRun()

	if len(snap.Dropped) > 0 {
		d.logger.InfoContext(ctx, "Dropped selected chats that are no longer available", "chat_ids", snap.Dropped)
	}

	plan, err := d.resolver.Resolve(ctx, snap)
	if err != nil {
		return Report{}, fmt.Errorf("failed to resolve broadcast targets: %w", err)
	}

	ctx = context.WithoutCancel(ctx)
	report := Report{Attempted: plan.Total()}
	start := time.Now()

	d.logger.InfoContext(ctx, "Starting broadcast", "attempted", report.Attempted, "batches", len(plan.Batches))

	for _, batch := range plan.Batches {
		if len(batch.IDs) == 0 {
			continue
		}
		progress.Report(ctx, fmt.Sprintf("Sending to %s (%d)...", batch.Category, len(batch.IDs)))

		pacer := d.chatPacer
		if batch.Category.Direct() {
			pacer = d.directPacer
		}

		for _, id := range batch.IDs {
			_ = pacer.Wait(ctx) // ctx cannot be cancelled

			if err := d.gateway.SendMessage(ctx, id, text); err != nil {
				report.Failed++
				metrics.ObserveSend(string(batch.Category), false)
				d.logger.WarnContext(ctx, "Failed to deliver broadcast",
					"category", batch.Category, "recipient_id", id, "error", err)
				continue
			}
			report.Succeeded++
			metrics.ObserveSend(string(batch.Category), true)
		}
	}

	metrics.IncBroadcastRun()
	d.logger.InfoContext(ctx, "Broadcast completed",
		"attempted", report.Attempted, "succeeded", report.Succeeded, "failed", report.Failed,
		"success_rate", report.SuccessRate(), "duration", time.Since(start))

	return report, nil
}

// Preview resolves the current configuration without sending anything.
func (d *Dispatcher) Preview(ctx context.Context) (Plan, error) {
	return d.resolver.Resolve(ctx, d.settings.Snapshot())
}
