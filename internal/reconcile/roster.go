package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/edgard/rosterbot/internal/database"
	"github.com/edgard/rosterbot/internal/metrics"
	"github.com/edgard/rosterbot/internal/platform"
)

// ErrRosterBusy is returned when a roster reconciliation is already running.
var ErrRosterBusy = errors.New("roster reconciliation already in progress")

// RosterResult is the outcome of one roster pass.
type RosterResult struct {
	Evicted   int
	Confirmed int
	Prior     int
}

// Roster re-validates every stored member of the target chat.
type Roster struct {
	store        database.Store
	gateway      platform.Gateway
	targetChatID int64
	pacer        *rate.Limiter
	logger       *slog.Logger

	mu sync.Mutex
}

// NewRoster creates a roster reconciler for targetChatID. interval paces the
// per-member lookups.
func NewRoster(store database.Store, gateway platform.Gateway, targetChatID int64,
	interval time.Duration, logger *slog.Logger,
) *Roster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Roster{
		store:        store,
		gateway:      gateway,
		targetChatID: targetChatID,
		pacer:        platform.NewPacer(interval),
		logger:       logger.With("component", "roster_reconciler", "chat_id", targetChatID),
	}
}

// Reconcile checks each stored member of the target chat. Departed members and
// members whose status cannot be resolved are deleted; the rest get their status
// refreshed. progress may be nil.
func (r *Roster) Reconcile(ctx context.Context, progress platform.ProgressFunc) (*RosterResult, error) {
	if !r.mu.TryLock() {
		return nil, ErrRosterBusy
	}
	defer r.mu.Unlock()

	start := time.Now()
	defer func() { metrics.ObserveReconcile("roster", time.Since(start)) }()

	progress.Report(ctx, "Synchronizing target chat members...")

	if count, err := r.gateway.GetMemberCount(ctx, r.targetChatID); err != nil {
		r.logger.WarnContext(ctx, "Target chat member count unavailable", "error", err)
		progress.Report(ctx, "Target chat member count is unavailable.")
	} else {
		r.refreshTargetChat(ctx, count)
		progress.Report(ctx, fmt.Sprintf("Target chat has %d members on Telegram.", count))
	}

	userIDs, err := r.store.ListChatMemberIDs(ctx, r.targetChatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list target chat members: %w", err)
	}

	result := &RosterResult{Prior: len(userIDs)}
	progress.Report(ctx, fmt.Sprintf("Checking %d stored members...", result.Prior))

	for _, userID := range userIDs {
		if err := r.pacer.Wait(ctx); err != nil {
			return nil, fmt.Errorf("roster reconciliation interrupted: %w", err)
		}

		status, err := r.gateway.GetMemberStatus(ctx, r.targetChatID, userID)
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("roster reconciliation interrupted: %w", ctx.Err())
		}

		if err != nil || status.Departed() {
			if err != nil {
				r.logger.DebugContext(ctx, "Member status unresolved, evicting", "user_id", userID, "error", err)
			}
			if err := r.store.DeleteMembership(ctx, userID, r.targetChatID); err != nil {
				return nil, fmt.Errorf("failed to evict member %d: %w", userID, err)
			}
			result.Evicted++
			continue
		}

		membership := &database.Membership{UserID: userID, ChatID: r.targetChatID, Status: string(status)}
		if err := r.store.UpsertMembership(ctx, membership); err != nil {
			return nil, fmt.Errorf("failed to refresh member %d: %w", userID, err)
		}
		result.Confirmed++
	}

	metrics.AddEvictions("member", result.Evicted)
	r.logger.InfoContext(ctx, "Roster reconciliation completed",
		"prior", result.Prior, "confirmed", result.Confirmed, "evicted", result.Evicted,
		"duration", time.Since(start))
	progress.Report(ctx, fmt.Sprintf("Sync complete: %d confirmed, %d removed.", result.Confirmed, result.Evicted))

	return result, nil
}

// refreshTargetChat records the target chat's current metadata. Failures here
// never affect the roster pass.
func (r *Roster) refreshTargetChat(ctx context.Context, count int) {
	info, err := r.gateway.GetChat(ctx, r.targetChatID)
	if err != nil {
		r.logger.DebugContext(ctx, "Could not refresh target chat metadata", "error", err)
		return
	}
	chat := &database.Chat{ChatID: r.targetChatID, Title: info.Title, Type: string(info.Kind), MemberCount: count}
	if err := r.store.UpsertChat(ctx, chat); err != nil {
		r.logger.WarnContext(ctx, "Failed to store target chat metadata", "error", err)
	}
}
