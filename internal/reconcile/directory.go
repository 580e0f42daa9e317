// Package reconcile keeps the stored chat directory and target-chat roster in
// line with what Telegram reports.
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

// DirectoryCache receives the reconciled set of chats the bot occupies.
type DirectoryCache interface {
	SetAvailable(chats map[int64]database.Chat)
}

// DirectoryResult is the outcome of one directory pass.
type DirectoryResult struct {
	Current map[int64]database.Chat
	Evicted int
}

// Directory validates every stored chat against the platform and evicts the
// ones the bot no longer belongs to.
type Directory struct {
	store   database.Store
	gateway platform.Gateway
	cache   DirectoryCache
	botID   int64
	pacer   *rate.Limiter
	logger  *slog.Logger

	mu sync.Mutex
}

// NewDirectory creates a directory reconciler. botID is the bot's own user id;
// interval paces the per-chat lookups.
func NewDirectory(store database.Store, gateway platform.Gateway, cache DirectoryCache,
	botID int64, interval time.Duration, logger *slog.Logger,
) *Directory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Directory{
		store:   store,
		gateway: gateway,
		cache:   cache,
		botID:   botID,
		pacer:   platform.NewPacer(interval),
		logger:  logger.With("component", "directory_reconciler"),
	}
}

// Reconcile runs one pass over the stored directory. Only a confirmed removal
// evicts a chat; unclassified gateway errors keep it unchanged. Store errors
// abort the pass.
func (d *Directory) Reconcile(ctx context.Context) (*DirectoryResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	defer func() { metrics.ObserveReconcile("directory", time.Since(start)) }()

	chats, err := d.store.GetChats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}

	d.logger.InfoContext(ctx, "Starting chat directory reconciliation", "chats", len(chats))

	result := &DirectoryResult{Current: make(map[int64]database.Chat, len(chats))}
	for _, chat := range chats {
		if err := d.pacer.Wait(ctx); err != nil {
			return nil, fmt.Errorf("directory reconciliation interrupted: %w", err)
		}

		refreshed, keep, err := d.reconcileChat(ctx, chat)
		if err != nil {
			return nil, err
		}
		if !keep {
			result.Evicted++
			continue
		}
		result.Current[refreshed.ChatID] = refreshed
	}

	if d.cache != nil {
		d.cache.SetAvailable(result.Current)
	}
	metrics.AddEvictions("chat", result.Evicted)

	d.logger.InfoContext(ctx, "Chat directory reconciliation completed",
		"available", len(result.Current), "evicted", result.Evicted, "duration", time.Since(start))
	return result, nil
}

// reconcileChat returns the refreshed chat and whether it stays in the directory.
func (d *Directory) reconcileChat(ctx context.Context, chat database.Chat) (database.Chat, bool, error) {
	log := d.logger.With("chat_id", chat.ChatID)

	info, err := d.gateway.GetChat(ctx, chat.ChatID)
	switch {
	case errors.Is(err, platform.ErrNotFound):
		log.InfoContext(ctx, "Chat no longer exists or is inaccessible, evicting", "error", err)
		return chat, false, d.evict(ctx, chat.ChatID)
	case err != nil:
		log.WarnContext(ctx, "Failed to fetch chat, keeping cached entry", "error", err)
		return chat, true, nil
	}

	status, err := d.gateway.GetMemberStatus(ctx, chat.ChatID, d.botID)
	switch {
	case errors.Is(err, platform.ErrNotFound) || (err == nil && status.Departed()):
		log.InfoContext(ctx, "Bot is no longer in chat, evicting", "status", status, "error", err)
		return chat, false, d.evict(ctx, chat.ChatID)
	case err != nil:
		log.WarnContext(ctx, "Failed to fetch bot membership, keeping cached entry", "error", err)
		return chat, true, nil
	}

	refreshed := chat
	refreshed.Title = info.Title
	refreshed.Type = string(info.Kind)

	count, err := d.gateway.GetMemberCount(ctx, chat.ChatID)
	if err != nil {
		log.DebugContext(ctx, "Member count unavailable, keeping cached value",
			"member_count", chat.MemberCount, "error", err)
	} else {
		refreshed.MemberCount = count
	}

	if err := d.store.UpsertChat(ctx, &refreshed); err != nil {
		return chat, false, fmt.Errorf("failed to refresh chat %d: %w", chat.ChatID, err)
	}
	return refreshed, true, nil
}

func (d *Directory) evict(ctx context.Context, chatID int64) error {
	if err := d.store.DeleteChat(ctx, chatID); err != nil {
		return fmt.Errorf("failed to evict chat %d: %w", chatID, err)
	}
	return nil
}
