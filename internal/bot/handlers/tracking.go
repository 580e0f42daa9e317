package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/rosterbot/internal/database"
	"github.com/edgard/rosterbot/internal/platform"
)

// chatRefreshAge is how long chat metadata observed from group traffic stays fresh.
const chatRefreshAge = 10 * time.Minute

func toUser(u *models.User) *database.User {
	return &database.User{
		UserID:    u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsBot:     u.IsBot,
	}
}

// recordUser stores the sender. Tracking is best effort: failures are logged.
func (d HandlerDeps) recordUser(ctx context.Context, u *models.User) {
	if u == nil {
		return
	}
	if err := d.Store.UpsertUser(ctx, toUser(u)); err != nil {
		d.Logger.ErrorContext(ctx, "Failed to save user", "error", err, "user_id", u.ID)
	}
}

// recordMember stores the user and its membership in chatID.
func (d HandlerDeps) recordMember(ctx context.Context, u *models.User, chatID int64, status platform.MemberStatus) {
	if u == nil {
		return
	}
	d.recordUser(ctx, u)
	err := d.Store.UpsertMembership(ctx, &database.Membership{
		UserID: u.ID,
		ChatID: chatID,
		Status: string(status),
	})
	if err != nil {
		d.Logger.ErrorContext(ctx, "Failed to save membership", "error", err, "user_id", u.ID, "chat_id", chatID)
	}
}

func (d HandlerDeps) forgetMember(ctx context.Context, userID, chatID int64) {
	if err := d.Store.DeleteMembership(ctx, userID, chatID); err != nil {
		d.Logger.ErrorContext(ctx, "Failed to delete membership", "error", err, "user_id", userID, "chat_id", chatID)
	}
}

// registerChat fetches chat metadata, stores it and makes the chat available
// for broadcasts.
func (d HandlerDeps) registerChat(ctx context.Context, chatID int64) (database.Chat, error) {
	info, err := d.Gateway.GetChat(ctx, chatID)
	if err != nil {
		return database.Chat{}, err
	}

	chat := database.Chat{ChatID: info.ID, Title: info.Title, Type: string(info.Kind)}
	if known, ok := d.Settings.AvailableChat(chatID); ok {
		chat.MemberCount = known.MemberCount
	}
	count, err := d.Gateway.GetMemberCount(ctx, chatID)
	switch {
	case err == nil:
		chat.MemberCount = count
	case errors.Is(err, platform.ErrNotFound):
		return database.Chat{}, err
	default:
		d.Logger.WarnContext(ctx, "Member count unavailable, keeping previous value", "error", err, "chat_id", chatID)
	}

	if err := d.Store.UpsertChat(ctx, &chat); err != nil {
		return database.Chat{}, err
	}
	chat.UpdatedAt = time.Now()
	d.Settings.AddAvailable(chat)
	return chat, nil
}

// touchChat registers chatID when it is unknown or its metadata is stale.
func (d HandlerDeps) touchChat(ctx context.Context, chatID int64) {
	if known, ok := d.Settings.AvailableChat(chatID); ok && time.Since(known.UpdatedAt) < chatRefreshAge {
		return
	}
	if _, err := d.registerChat(ctx, chatID); err != nil {
		d.Logger.WarnContext(ctx, "Failed to refresh chat", "error", err, "chat_id", chatID)
	}
}

// forgetChat drops a chat the bot has left or been removed from.
func (d HandlerDeps) forgetChat(ctx context.Context, chatID int64) {
	d.Settings.RemoveAvailable(chatID)
	if err := d.Store.DeleteChat(ctx, chatID); err != nil {
		d.Logger.ErrorContext(ctx, "Failed to delete chat", "error", err, "chat_id", chatID)
	}
}
