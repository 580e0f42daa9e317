// Package broadcast owns the broadcast configuration, resolves it into a
// recipient plan and delivers messages to that plan.
package broadcast

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/edgard/rosterbot/internal/database"
)

// ErrRunInProgress is returned when a dispatch is already running, or when the
// configuration is changed while one is.
var ErrRunInProgress = errors.New("broadcast already in progress")

// Mode selects which network chats receive a broadcast.
type Mode string

// Network modes.
const (
	ModeAll         Mode = "all"
	ModeMembersOnly Mode = "members_only"
	ModeSpecific    Mode = "specific"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAll, ModeMembersOnly, ModeSpecific:
		return m, nil
	}
	return "", fmt.Errorf("unknown network mode %q", s)
}

// Options is the initial configuration.
type Options struct {
	TargetMembers bool
	TargetChat    bool
	Network       bool
	Mode          Mode
}

// Snapshot is an immutable copy of the configuration.
type Snapshot struct {
	TargetMembers bool
	TargetChat    bool
	Network       bool
	Mode          Mode
	Selected      []int64 // sorted
	Available     map[int64]database.Chat
	Dropped       []int64 // stale selections removed by BeginRun
}

// IsSelected reports whether chatID is in the specific-mode selection.
func (s Snapshot) IsSelected(chatID int64) bool {
	_, found := slices.BinarySearch(s.Selected, chatID)
	return found
}

// AvailableChats returns the available chats ordered by id.
func (s Snapshot) AvailableChats() []database.Chat {
	ids := slices.Sorted(maps.Keys(s.Available))
	chats := make([]database.Chat, 0, len(ids))
	for _, id := range ids {
		chats = append(chats, s.Available[id])
	}
	return chats
}

// Settings is the process-wide broadcast configuration. Every mutation goes
// through one mutex, which also guards the run-in-progress flag.
type Settings struct {
	mu sync.Mutex

	running       bool
	targetMembers bool
	targetChat    bool
	network       bool
	mode          Mode
	selected      map[int64]struct{}
	available     map[int64]database.Chat
}

// NewSettings creates the configuration from opts. An empty mode means ModeAll.
func NewSettings(opts Options) *Settings {
	mode := opts.Mode
	if mode == "" {
		mode = ModeAll
	}
	return &Settings{
		targetMembers: opts.TargetMembers,
		targetChat:    opts.TargetChat,
		network:       opts.Network,
		mode:          mode,
		selected:      make(map[int64]struct{}),
		available:     make(map[int64]database.Chat),
	}
}

// Snapshot returns a copy of the current configuration.
func (s *Settings) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Settings) snapshotLocked() Snapshot {
	return Snapshot{
		TargetMembers: s.targetMembers,
		TargetChat:    s.targetChat,
		Network:       s.network,
		Mode:          s.mode,
		Selected:      slices.Sorted(maps.Keys(s.selected)),
		Available:     maps.Clone(s.available),
	}
}

// Running reports whether a dispatch is in progress.
func (s *Settings) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ToggleTargetMembers flips the direct-to-target-members flag and returns the new value.
func (s *Settings) ToggleTargetMembers() (bool, error) {
	return s.toggle(&s.targetMembers)
}

// ToggleTargetChat flips the post-into-target-chat flag and returns the new value.
func (s *Settings) ToggleTargetChat() (bool, error) {
	return s.toggle(&s.targetChat)
}

// ToggleNetwork flips the network flag and returns the new value.
func (s *Settings) ToggleNetwork() (bool, error) {
	return s.toggle(&s.network)
}

func (s *Settings) toggle(flag *bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return *flag, ErrRunInProgress
	}
	*flag = !*flag
	return *flag, nil
}

// SetMode changes the network mode.
func (s *Settings) SetMode(mode Mode) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunInProgress
	}
	s.mode = mode
	return nil
}

// ToggleSelected adds or removes chatID from the specific-mode selection and
// reports whether it is now selected.
func (s *Settings) ToggleSelected(chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false, ErrRunInProgress
	}
	if _, ok := s.selected[chatID]; ok {
		delete(s.selected, chatID)
		return false, nil
	}
	s.selected[chatID] = struct{}{}
	return true, nil
}

// SelectAll selects every available chat except excludeID.
func (s *Settings) SelectAll(excludeID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunInProgress
	}
	for id := range s.available {
		if id != excludeID {
			s.selected[id] = struct{}{}
		}
	}
	return nil
}

// ClearSelected empties the selection.
func (s *Settings) ClearSelected() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrRunInProgress
	}
	clear(s.selected)
	return nil
}

// SetAvailable replaces the available-chats directory. It is allowed during a
// run; the running dispatch keeps the snapshot it started with.
func (s *Settings) SetAvailable(chats map[int64]database.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = maps.Clone(chats)
	if s.available == nil {
		s.available = make(map[int64]database.Chat)
	}
}

// AvailableChat looks up one chat in the directory.
func (s *Settings) AvailableChat(chatID int64) (database.Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.available[chatID]
	return chat, ok
}

// AddAvailable inserts or refreshes a single chat.
func (s *Settings) AddAvailable(chat database.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available[chat.ChatID] = chat
}

// RemoveAvailable drops a chat from the directory.
func (s *Settings) RemoveAvailable(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.available, chatID)
}

// BeginRun marks a dispatch as running, drops specific-mode selections that are
// no longer available and returns the snapshot the run must use.
func (s *Settings) BeginRun() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return Snapshot{}, ErrRunInProgress
	}
	s.running = true

	var dropped []int64
	if s.mode == ModeSpecific {
		for id := range s.selected {
			if _, ok := s.available[id]; !ok {
				delete(s.selected, id)
				dropped = append(dropped, id)
			}
		}
		slices.Sort(dropped)
	}

	snap := s.snapshotLocked()
	snap.Dropped = dropped
	return snap, nil
}

// EndRun clears the run-in-progress flag.
func (s *Settings) EndRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}
