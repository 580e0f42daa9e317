// Package config loads the bot configuration from a YAML file, BOT_* environment
// variables and built-in defaults, and validates it.
package config

import (
	"errors"
	"time"

	"github.com/go-telegram/bot/models"
)

// ErrConfiguration wraps every loading or validation failure.
var ErrConfiguration = errors.New("configuration error")

// Config is the complete bot configuration. It is immutable after LoadConfig
// returns, except for Telegram.BotInfo which is filled in at startup.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

type TelegramConfig struct {
	Token          string        `mapstructure:"token"           validate:"required"`
	AdminUserID    int64         `mapstructure:"admin_user_id"   validate:"required,gt=0"`
	TargetChatID   int64         `mapstructure:"target_chat_id"  validate:"required,ne=0"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=1s"`
	MaxRetries     int           `mapstructure:"max_retries"     validate:"min=0,max=10"`
	MaxRetryAfter  time.Duration `mapstructure:"max_retry_after" validate:"min=0"`
	ParseMode      string        `mapstructure:"parse_mode"      validate:"omitempty,oneof=HTML Markdown MarkdownV2"`

	// BotInfo is populated from getMe at startup.
	BotInfo *models.User `mapstructure:"-"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=sqlite postgres"`
	DSN    string `mapstructure:"dsn"    validate:"required"`
}

// BroadcastConfig holds dispatch pacing, preview and the initial broadcast settings.
type BroadcastConfig struct {
	DirectInterval time.Duration `mapstructure:"direct_interval" validate:"min=0"`
	ChatInterval   time.Duration `mapstructure:"chat_interval"   validate:"min=0"`
	PreviewLength  int           `mapstructure:"preview_length"  validate:"min=1"`
	ChatsPerPage   int           `mapstructure:"chats_per_page"  validate:"min=1,max=50"`
	TopChats       int           `mapstructure:"top_chats"       validate:"min=1,max=50"`

	TargetMembers bool   `mapstructure:"target_members"`
	TargetChat    bool   `mapstructure:"target_chat"`
	Network       bool   `mapstructure:"network"`
	Mode          string `mapstructure:"mode" validate:"required,oneof=all members_only specific"`
}

type ReconcileConfig struct {
	MemberInterval time.Duration `mapstructure:"member_interval" validate:"min=0"`
	ChatInterval   time.Duration `mapstructure:"chat_interval"   validate:"min=0"`
	Timeout        time.Duration `mapstructure:"timeout"         validate:"min=1s"`
}

type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

type HTTPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true"`
}

// MessagesConfig holds the user-facing texts that are not generated.
type MessagesConfig struct {
	WelcomeMember    string `mapstructure:"welcome_member"     validate:"required"`
	WelcomeNonMember string `mapstructure:"welcome_non_member" validate:"required"`
	NotAuthorized    string `mapstructure:"not_authorized"     validate:"required"`
	GeneralError     string `mapstructure:"general_error"      validate:"required"`
	AdminPanel       string `mapstructure:"admin_panel"        validate:"required"`
	AskText          string `mapstructure:"ask_text"           validate:"required"`
	Cancelled        string `mapstructure:"cancelled"          validate:"required"`
	NoTargets        string `mapstructure:"no_targets"         validate:"required"`
	Busy             string `mapstructure:"busy"               validate:"required"`
	GroupOnly        string `mapstructure:"group_only"         validate:"required"`
	ChatAdded        string `mapstructure:"chat_added"         validate:"required"`
	Help             string `mapstructure:"help"               validate:"required"`
	AdminHelp        string `mapstructure:"admin_help"         validate:"required"`
}
