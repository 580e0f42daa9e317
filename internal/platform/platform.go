// Package platform defines the contract between the bot's core and the messaging
// platform, together with the error taxonomy the reconcilers depend on.
package platform

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"
)

var (
	// ErrNotFound reports that a chat or member is confirmed gone, or that the bot
	// itself was removed. Reconcilers evict on this error only.
	ErrNotFound = errors.New("not found or removed")

	// ErrUnavailable reports that a secondary lookup (such as a member count)
	// failed while the entity itself is valid. Callers keep their cached value.
	ErrUnavailable = errors.New("metric unavailable")
)

// ChatKind is the platform's chat type.
type ChatKind string

// Known chat kinds.
const (
	ChatKindPrivate    ChatKind = "private"
	ChatKindGroup      ChatKind = "group"
	ChatKindSupergroup ChatKind = "supergroup"
	ChatKindChannel    ChatKind = "channel"
)

// IsGroup reports whether the chat is a group or supergroup.
func (k ChatKind) IsGroup() bool {
	return k == ChatKindGroup || k == ChatKindSupergroup
}

// MemberStatus mirrors the platform's membership states.
type MemberStatus string

// Known membership states.
const (
	StatusCreator       MemberStatus = "creator"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
)

// Departed reports whether the status is a terminal non-presence state.
func (s MemberStatus) Departed() bool {
	return s == StatusLeft || s == StatusKicked
}

// ChatInfo is the chat metadata returned by the platform.
type ChatInfo struct {
	ID    int64
	Title string
	Kind  ChatKind
}

// Gateway is the messaging-platform client used by the core.
//
// Implementations must wrap ErrNotFound when a chat or member is confirmed gone
// and ErrUnavailable when GetMemberCount cannot be answered. Any other error is
// treated as transient.
type Gateway interface {
	GetChat(ctx context.Context, chatID int64) (ChatInfo, error)
	GetMemberCount(ctx context.Context, chatID int64) (int, error)
	GetMemberStatus(ctx context.Context, chatID, userID int64) (MemberStatus, error)
	SendMessage(ctx context.Context, targetID int64, text string) error
}

// NewPacer returns a limiter allowing one call per interval. A non-positive
// interval disables pacing.
func NewPacer(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}

// ProgressFunc receives human-readable status lines from long-running operations.
// Its outcome never affects the operation.
type ProgressFunc func(ctx context.Context, text string)

// Report calls p if it is set.
func (p ProgressFunc) Report(ctx context.Context, text string) {
	if p != nil {
		p(ctx, text)
	}
}
