package database

import "time"

// User is a Telegram account the bot has observed. Users are never deleted:
// leaving a chat does not remove the account.
type User struct {
	UserID    int64     `db:"user_id"`
	Username  string    `db:"username"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	IsBot     bool      `db:"is_bot"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Membership links a user to a chat with the status last reported by Telegram.
// UpdatedAt is the time the status was last confirmed.
type Membership struct {
	UserID    int64     `db:"user_id"`
	ChatID    int64     `db:"chat_id"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Chat is a conversation the bot believes it occupies.
// UpdatedAt is the time of the last successful reconciliation.
type Chat struct {
	ChatID      int64     `db:"chat_id"      json:"chat_id"`
	Title       string    `db:"title"        json:"title"`
	Type        string    `db:"chat_type"    json:"chat_type"`
	MemberCount int       `db:"member_count" json:"member_count"`
	CreatedAt   time.Time `db:"created_at"   json:"-"`
	UpdatedAt   time.Time `db:"updated_at"   json:"updated_at"`
}

// Statistics aggregates counters shown to the operator.
type Statistics struct {
	UserCount         int    `json:"user_count"`
	TargetMembers     int    `json:"target_chat_members"`
	TargetDialogUsers int    `json:"target_chat_dialog_users"`
	ChatCount         int    `json:"chat_count"`
	TopChats          []Chat `json:"top_chats"`
}
