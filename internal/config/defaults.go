package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration
const (
	DefaultLogLevel = "info"

	DefaultDatabaseDriver = "sqlite"
	DefaultDatabaseDSN    = "rosterbot.db"

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRetries     = 3
	DefaultMaxRetryAfter  = 30 * time.Second

	DefaultDirectInterval = 50 * time.Millisecond  // pause between direct messages
	DefaultChatInterval   = 100 * time.Millisecond // pause between chat posts
	DefaultPreviewLength  = 200
	DefaultChatsPerPage   = 8
	DefaultTopChats       = 5
	DefaultMode           = "all"

	DefaultMemberInterval   = 100 * time.Millisecond // pause between member lookups
	DefaultReconcileChat    = 50 * time.Millisecond
	DefaultReconcileTimeout = 30 * time.Minute

	DefaultHTTPAddr = ":8080"
)

// defaultTasks lists the scheduled tasks and their cron schedules (with seconds).
var defaultTasks = map[string]TaskConfig{
	"directory_reconcile": {Enabled: true, Schedule: "0 0 */6 * * *"},
	"roster_reconcile":    {Enabled: true, Schedule: "0 30 3 * * *"},
	"sql_maintenance":     {Enabled: true, Schedule: "0 0 4 * * 0"},
}

var defaultMessages = map[string]string{
	"welcome_member":     "Hi! You are a member of our community, so you will receive our announcements here.",
	"welcome_non_member": "Hi! Join our community chat to receive announcements.",
	"not_authorized":     "You are not authorized to use this command.",
	"general_error":      "An error occurred. Please try again later.",
	"admin_panel":        "Broadcast control panel",
	"ask_text":           "Send the text of the broadcast. Use /cancel to abort.",
	"cancelled":          "Broadcast cancelled.",
	"no_targets":         "There are no recipients for the current settings.",
	"busy":               "Another operation is in progress. Please wait until it finishes.",
	"group_only":         "This command only works in groups.",
	"chat_added":         "This chat is now available for broadcasts.",
	"help":               "This bot delivers announcements from @botname. Send /start to check your subscription.",
	"admin_help":         "/admin opens the control panel.\n/addchat (in a group) makes the group available for broadcasts.\n/cancel aborts the broadcast being composed.",
}

// setDefaults registers default values on v. Keys without a sensible default are
// registered empty so that BOT_* environment variables are picked up for them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", false)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_user_id", 0)
	v.SetDefault("telegram.target_chat_id", 0)
	v.SetDefault("telegram.request_timeout", DefaultRequestTimeout)
	v.SetDefault("telegram.max_retries", DefaultMaxRetries)
	v.SetDefault("telegram.max_retry_after", DefaultMaxRetryAfter)
	v.SetDefault("telegram.parse_mode", "")

	v.SetDefault("database.driver", DefaultDatabaseDriver)
	v.SetDefault("database.dsn", DefaultDatabaseDSN)

	v.SetDefault("broadcast.direct_interval", DefaultDirectInterval)
	v.SetDefault("broadcast.chat_interval", DefaultChatInterval)
	v.SetDefault("broadcast.preview_length", DefaultPreviewLength)
	v.SetDefault("broadcast.chats_per_page", DefaultChatsPerPage)
	v.SetDefault("broadcast.top_chats", DefaultTopChats)
	v.SetDefault("broadcast.target_members", true)
	v.SetDefault("broadcast.target_chat", false)
	v.SetDefault("broadcast.network", false)
	v.SetDefault("broadcast.mode", DefaultMode)

	v.SetDefault("reconcile.member_interval", DefaultMemberInterval)
	v.SetDefault("reconcile.chat_interval", DefaultReconcileChat)
	v.SetDefault("reconcile.timeout", DefaultReconcileTimeout)

	for name, task := range defaultTasks {
		v.SetDefault("scheduler.tasks."+name+".enabled", task.Enabled)
		v.SetDefault("scheduler.tasks."+name+".schedule", task.Schedule)
	}

	v.SetDefault("http.enabled", false)
	v.SetDefault("http.addr", DefaultHTTPAddr)

	for key, text := range defaultMessages {
		v.SetDefault("messages."+key, text)
	}
}
