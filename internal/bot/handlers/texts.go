package handlers

import (
	"fmt"
	"strings"

	"github.com/edgard/rosterbot/internal/broadcast"
	"github.com/edgard/rosterbot/internal/database"
	"github.com/edgard/rosterbot/internal/reconcile"
)

func modeLabel(m broadcast.Mode) string {
	switch m {
	case broadcast.ModeAll:
		return "All chats"
	case broadcast.ModeMembersOnly:
		return "Target chat members only"
	case broadcast.ModeSpecific:
		return "Selected chats"
	default:
		return string(m)
	}
}

func categoryLabel(c broadcast.Category) string {
	switch c {
	case broadcast.CategoryTargetMembers:
		return "👤 Target chat members"
	case broadcast.CategoryTargetChat:
		return "💬 Target chat"
	case broadcast.CategoryNetworkChats:
		return "🌐 Network chats"
	case broadcast.CategoryNetworkMembers:
		return "🌐 Network members"
	default:
		return string(c)
	}
}

func unitLabel(c broadcast.Category, n int) string {
	switch {
	case c.Direct() && n == 1:
		return "user"
	case c.Direct():
		return "users"
	case n == 1:
		return "chat"
	default:
		return "chats"
	}
}

// shorten cuts s to maxRunes runes, marking the cut with an ellipsis.
func shorten(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes]) + "..."
}

func settingsText(snap broadcast.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("⚙️ Broadcast settings\n\n")
	fmt.Fprintf(&sb, "👤 Target chat members: %s\n", onOff(snap.TargetMembers))
	fmt.Fprintf(&sb, "💬 Target chat: %s\n", onOff(snap.TargetChat))
	fmt.Fprintf(&sb, "🌐 Chat network: %s\n", onOff(snap.Network))
	fmt.Fprintf(&sb, "📋 Network mode: %s\n", modeLabel(snap.Mode))
	fmt.Fprintf(&sb, "🎯 Selected chats: %d\n", len(snap.Selected))
	fmt.Fprintf(&sb, "📊 Available chats: %d", len(snap.Available))
	return sb.String()
}

func chatSelectionText(snap broadcast.Snapshot) string {
	return fmt.Sprintf("🎯 Select network chats\n\nSelected: %d of %d available.", len(snap.Selected), len(snap.Available))
}

func breakdownLines(plan broadcast.Plan) string {
	var sb strings.Builder
	for _, e := range plan.Breakdown() {
		fmt.Fprintf(&sb, "%s: %d %s\n", categoryLabel(e.Category), e.Count, unitLabel(e.Category, e.Count))
	}
	return sb.String()
}

// previewText renders the confirmation prompt. roster may be nil when no
// roster pass ran.
func previewText(text string, plan broadcast.Plan, roster *reconcile.RosterResult, previewLength int, targetChatID int64) string {
	var sb strings.Builder
	sb.WriteString("📋 Broadcast preview\n\n")
	if roster != nil {
		fmt.Fprintf(&sb, "🔄 Members synchronized, %d inactive removed.\n\n", roster.Evicted)
	}
	fmt.Fprintf(&sb, "Message:\n%s\n\n", shorten(text, previewLength))
	sb.WriteString("Recipients:\n")
	sb.WriteString(breakdownLines(plan))
	fmt.Fprintf(&sb, "\nTotal messages: %d\n", plan.Total())
	fmt.Fprintf(&sb, "Target chat: %d\n\n", targetChatID)
	sb.WriteString("Send this broadcast?")
	return sb.String()
}

// helpText fills the bot username into help and appends the operator section
// when there is one.
func helpText(help, adminHelp, username string) string {
	if username != "" {
		help = strings.ReplaceAll(help, "@botname", "@"+username)
	}
	if adminHelp != "" {
		help += "\n\n" + adminHelp
	}
	return help
}

func reportText(r broadcast.Report) string {
	return fmt.Sprintf("✅ Broadcast finished\n\n"+
		"Delivered: %d\n"+
		"Failed: %d\n"+
		"Attempted: %d\n"+
		"Success rate: %.1f%%",
		r.Succeeded, r.Failed, r.Attempted, r.SuccessRate())
}

func rosterText(r *reconcile.RosterResult) string {
	return fmt.Sprintf("👥 Member sync finished\n\n"+
		"Stored before: %d\n"+
		"Confirmed: %d\n"+
		"Removed: %d",
		r.Prior, r.Confirmed, r.Evicted)
}

const directoryListLimit = 5

func directoryText(before int, r *reconcile.DirectoryResult) string {
	var sb strings.Builder
	after := len(r.Current)
	if after == 0 {
		sb.WriteString("📋 Chat update finished\n\n")
		sb.WriteString("No available chats. Add the bot to a group and send /addchat there.")
		return sb.String()
	}

	sb.WriteString("✅ Chat update finished\n\n")
	fmt.Fprintf(&sb, "Chats before: %d\n", before)
	fmt.Fprintf(&sb, "Chats now: %d\n", after)
	fmt.Fprintf(&sb, "Removed: %d\n\n", r.Evicted)

	chats := broadcast.Snapshot{Available: r.Current}.AvailableChats()
	sb.WriteString("Available chats:\n")
	writeChatList(&sb, chats, directoryListLimit)
	return sb.String()
}

func statsText(stats *database.Statistics, snap broadcast.Snapshot) string {
	var sb strings.Builder
	sb.WriteString("📊 Statistics\n\n")
	fmt.Fprintf(&sb, "Users: %d\n", stats.UserCount)
	fmt.Fprintf(&sb, "Target chat members: %d\n", stats.TargetMembers)
	fmt.Fprintf(&sb, "Reachable by direct message: %d\n", stats.TargetDialogUsers)
	fmt.Fprintf(&sb, "Known chats: %d\n", stats.ChatCount)
	fmt.Fprintf(&sb, "Available chats: %d\n", len(snap.Available))
	fmt.Fprintf(&sb, "Selected chats: %d\n", len(snap.Selected))
	if len(stats.TopChats) > 0 {
		sb.WriteString("\nLargest chats:\n")
		writeChatList(&sb, stats.TopChats, len(stats.TopChats))
	}
	return sb.String()
}

func writeChatList(sb *strings.Builder, chats []database.Chat, limit int) {
	for i, chat := range chats {
		if i == limit {
			fmt.Fprintf(sb, "• ...and %d more\n", len(chats)-limit)
			break
		}
		fmt.Fprintf(sb, "• %s (%d members)\n", shorten(chat.Title, maxButtonTitle), chat.MemberCount)
	}
}
