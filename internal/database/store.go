package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations.
// Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error

	// UpsertUser inserts a user or refreshes its display fields.
	UpsertUser(ctx context.Context, user *User) error

	// UpsertMembership inserts a membership or refreshes its status and confirmation time.
	UpsertMembership(ctx context.Context, membership *Membership) error

	// DeleteMembership removes the (user, chat) relation. Deleting a missing row is not an error.
	DeleteMembership(ctx context.Context, userID, chatID int64) error

	// GetMembership returns the (user, chat) relation. Returns nil, nil if not found.
	GetMembership(ctx context.Context, userID, chatID int64) (*Membership, error)

	// UpsertChat inserts a chat or refreshes its title, type and member count.
	UpsertChat(ctx context.Context, chat *Chat) error

	// DeleteChat removes a chat from the directory.
	DeleteChat(ctx context.Context, chatID int64) error

	// GetChats lists every chat the bot believes it occupies.
	GetChats(ctx context.Context) ([]Chat, error)

	// ListNonBotUserIDs lists every known human user.
	ListNonBotUserIDs(ctx context.Context) ([]int64, error)

	// ListChatMemberIDs lists the user ids stored as members of chatID.
	ListChatMemberIDs(ctx context.Context, chatID int64) ([]int64, error)

	// ListDialogUserIDs lists distinct human users that are members of targetChatID
	// and have a user record, i.e. can be reached by direct message.
	ListDialogUserIDs(ctx context.Context, targetChatID int64) ([]int64, error)

	// GetStatistics aggregates counters for the operator, including the topN largest chats.
	GetStatistics(ctx context.Context, targetChatID int64, topN int) (*Statistics, error)
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
// It requires a connected sqlx.DB instance and a logger.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunSQLMaintenance executes a VACUUM command. It must run outside a transaction
// on both SQLite and PostgreSQL.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	_, err := s.db.ExecContext(ctx, "VACUUM")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}

// UpsertUser inserts a user or refreshes its display fields on conflict.
func (s *sqlxStore) UpsertUser(ctx context.Context, user *User) error {
	if user == nil {
		return fmt.Errorf("cannot save nil user")
	}
	if user.UserID == 0 {
		return fmt.Errorf("user must have a non-zero user_id")
	}

	now := time.Now().UTC()
	user.UpdatedAt = now
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}

	query := `
        INSERT INTO users (user_id, username, first_name, last_name, is_bot, created_at, updated_at)
        VALUES (:user_id, :username, :first_name, :last_name, :is_bot, :created_at, :updated_at)
        ON CONFLICT (user_id) DO UPDATE SET
            username = excluded.username,
            first_name = excluded.first_name,
            last_name = excluded.last_name,
            is_bot = excluded.is_bot,
            updated_at = excluded.updated_at;
    `

	if _, err := s.db.NamedExecContext(ctx, query, user); err != nil {
		s.logger.ErrorContext(ctx, "Error saving user", "user_id", user.UserID, "error", err)
		return fmt.Errorf("failed to save user %d: %w", user.UserID, err)
	}

	s.logger.DebugContext(ctx, "User saved successfully", "user_id", user.UserID)
	return nil
}

// UpsertMembership inserts a membership or refreshes its status on conflict.
func (s *sqlxStore) UpsertMembership(ctx context.Context, membership *Membership) error {
	if membership == nil {
		return fmt.Errorf("cannot save nil membership")
	}
	if membership.UserID == 0 || membership.ChatID == 0 {
		return fmt.Errorf("membership must have non-zero user_id and chat_id")
	}
	if membership.Status == "" {
		membership.Status = "member"
	}

	now := time.Now().UTC()
	membership.UpdatedAt = now
	if membership.CreatedAt.IsZero() {
		membership.CreatedAt = now
	}

	query := `
        INSERT INTO chat_members (user_id, chat_id, status, created_at, updated_at)
        VALUES (:user_id, :chat_id, :status, :created_at, :updated_at)
        ON CONFLICT (user_id, chat_id) DO UPDATE SET
            status = excluded.status,
            updated_at = excluded.updated_at;
    `

	if _, err := s.db.NamedExecContext(ctx, query, membership); err != nil {
		s.logger.ErrorContext(ctx, "Error saving membership",
			"user_id", membership.UserID, "chat_id", membership.ChatID, "error", err)
		return fmt.Errorf("failed to save membership (user %d, chat %d): %w", membership.UserID, membership.ChatID, err)
	}

	s.logger.DebugContext(ctx, "Membership saved successfully",
		"user_id", membership.UserID, "chat_id", membership.ChatID, "status", membership.Status)
	return nil
}

// DeleteMembership removes the (user, chat) relation.
func (s *sqlxStore) DeleteMembership(ctx context.Context, userID, chatID int64) error {
	query := s.db.Rebind(`DELETE FROM chat_members WHERE user_id = ? AND chat_id = ?`)
	result, err := s.db.ExecContext(ctx, query, userID, chatID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting membership", "user_id", userID, "chat_id", chatID, "error", err)
		return fmt.Errorf("failed to delete membership (user %d, chat %d): %w", userID, chatID, err)
	}

	affected, _ := result.RowsAffected()
	s.logger.DebugContext(ctx, "Membership deleted", "user_id", userID, "chat_id", chatID, "affected", affected)
	return nil
}

// GetMembership returns the (user, chat) relation. Returns nil, nil if not found.
func (s *sqlxStore) GetMembership(ctx context.Context, userID, chatID int64) (*Membership, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var membership Membership
	query := s.db.Rebind(`SELECT user_id, chat_id, status, created_at, updated_at
	          FROM chat_members WHERE user_id = ? AND chat_id = ?`)

	err := s.db.GetContext(ctx, &membership, query, userID, chatID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil

	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching membership",
			"user_id", userID, "chat_id", chatID, "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting membership", "user_id", userID, "chat_id", chatID, "error", err)
		return nil, fmt.Errorf("failed to get membership (user %d, chat %d): %w", userID, chatID, err)
	}

	return &membership, nil
}

// UpsertChat inserts a chat or refreshes its metadata on conflict.
func (s *sqlxStore) UpsertChat(ctx context.Context, chat *Chat) error {
	if chat == nil {
		return fmt.Errorf("cannot save nil chat")
	}
	if chat.ChatID == 0 {
		return fmt.Errorf("chat must have a non-zero chat_id")
	}

	now := time.Now().UTC()
	chat.UpdatedAt = now
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = now
	}

	query := `
        INSERT INTO bot_chats (chat_id, title, chat_type, member_count, created_at, updated_at)
        VALUES (:chat_id, :title, :chat_type, :member_count, :created_at, :updated_at)
        ON CONFLICT (chat_id) DO UPDATE SET
            title = excluded.title,
            chat_type = excluded.chat_type,
            member_count = excluded.member_count,
            updated_at = excluded.updated_at;
    `

	if _, err := s.db.NamedExecContext(ctx, query, chat); err != nil {
		s.logger.ErrorContext(ctx, "Error saving chat", "chat_id", chat.ChatID, "error", err)
		return fmt.Errorf("failed to save chat %d: %w", chat.ChatID, err)
	}

	s.logger.DebugContext(ctx, "Chat saved successfully",
		"chat_id", chat.ChatID, "chat_type", chat.Type, "member_count", chat.MemberCount)
	return nil
}

// DeleteChat removes a chat from the directory. Its memberships are left for
// the roster reconciler; stale rows there are harmless.
func (s *sqlxStore) DeleteChat(ctx context.Context, chatID int64) error {
	query := s.db.Rebind(`DELETE FROM bot_chats WHERE chat_id = ?`)
	result, err := s.db.ExecContext(ctx, query, chatID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting chat", "chat_id", chatID, "error", err)
		return fmt.Errorf("failed to delete chat %d: %w", chatID, err)
	}

	affected, _ := result.RowsAffected()
	s.logger.InfoContext(ctx, "Chat deleted", "chat_id", chatID, "affected", affected)
	return nil
}

// GetChats lists every chat in the directory ordered by id.
func (s *sqlxStore) GetChats(ctx context.Context) ([]Chat, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var chats []Chat
	query := `SELECT chat_id, title, chat_type, member_count, created_at, updated_at
	          FROM bot_chats ORDER BY chat_id`

	if err := s.db.SelectContext(ctx, &chats, query); err != nil {
		s.logger.ErrorContext(ctx, "Error getting chats", "error", err)
		return nil, fmt.Errorf("failed to get chats: %w", err)
	}

	s.logger.DebugContext(ctx, "Fetched chats successfully", "count", len(chats))
	return chats, nil
}

// ListNonBotUserIDs lists every known human user.
func (s *sqlxStore) ListNonBotUserIDs(ctx context.Context) ([]int64, error) {
	return s.selectIDs(ctx, "non-bot users",
		`SELECT user_id FROM users WHERE is_bot = ? ORDER BY user_id`, false)
}

// ListChatMemberIDs lists the user ids stored as members of chatID.
func (s *sqlxStore) ListChatMemberIDs(ctx context.Context, chatID int64) ([]int64, error) {
	return s.selectIDs(ctx, "chat members",
		`SELECT user_id FROM chat_members WHERE chat_id = ? ORDER BY user_id`, chatID)
}

// ListDialogUserIDs lists human members of targetChatID that also have a user record.
func (s *sqlxStore) ListDialogUserIDs(ctx context.Context, targetChatID int64) ([]int64, error) {
	return s.selectIDs(ctx, "dialog users", `
        SELECT DISTINCT cm.user_id
        FROM chat_members cm
        JOIN users u ON cm.user_id = u.user_id
        WHERE cm.chat_id = ? AND u.is_bot = ?
        ORDER BY cm.user_id`, targetChatID, false)
}

func (s *sqlxStore) selectIDs(ctx context.Context, what, query string, args ...any) ([]int64, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	ids := []int64{}
	err := s.db.SelectContext(ctx, &ids, s.db.Rebind(query), args...)

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while listing ids", "what", what, "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error listing ids", "what", what, "error", err)
		return nil, fmt.Errorf("failed to list %s: %w", what, err)
	}

	s.logger.DebugContext(ctx, "Listed ids successfully", "what", what, "count", len(ids))
	return ids, nil
}

// GetStatistics aggregates operator counters in a single transaction
// so the numbers are consistent with each other.
func (s *sqlxStore) GetStatistics(ctx context.Context, targetChatID int64, topN int) (*Statistics, error) {
	if topN <= 0 {
		topN = 5
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for statistics", "error", err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
		}
	}()

	stats := &Statistics{}
	counters := []struct {
		dest  *int
		query string
		args  []any
	}{
		{&stats.UserCount, `SELECT COUNT(*) FROM users WHERE is_bot = ?`, []any{false}},
		{&stats.TargetMembers, `SELECT COUNT(*) FROM chat_members WHERE chat_id = ?`, []any{targetChatID}},
		{&stats.TargetDialogUsers, `
            SELECT COUNT(DISTINCT cm.user_id)
            FROM chat_members cm
            JOIN users u ON cm.user_id = u.user_id
            WHERE cm.chat_id = ? AND u.is_bot = ?`, []any{targetChatID, false}},
		{&stats.ChatCount, `SELECT COUNT(*) FROM bot_chats`, nil},
	}
	for _, c := range counters {
		if err := tx.GetContext(ctx, c.dest, tx.Rebind(c.query), c.args...); err != nil {
			s.logger.ErrorContext(ctx, "Error computing statistics", "error", err)
			return nil, fmt.Errorf("failed to compute statistics: %w", err)
		}
	}

	query := tx.Rebind(`SELECT chat_id, title, chat_type, member_count, created_at, updated_at
	          FROM bot_chats ORDER BY member_count DESC, chat_id LIMIT ?`)
	if err := tx.SelectContext(ctx, &stats.TopChats, query, topN); err != nil {
		s.logger.ErrorContext(ctx, "Error getting top chats", "error", err)
		return nil, fmt.Errorf("failed to get top chats: %w", err)
	}

	s.logger.DebugContext(ctx, "Computed statistics",
		"users", stats.UserCount, "target_members", stats.TargetMembers, "chats", stats.ChatCount)
	return stats, nil
}
