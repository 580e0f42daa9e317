package handlers

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edgard/rosterbot/internal/broadcast"
	"github.com/edgard/rosterbot/internal/config"
	"github.com/edgard/rosterbot/internal/database"
	"github.com/edgard/rosterbot/internal/mocks"
	"github.com/edgard/rosterbot/internal/platform"
)

const (
	testBotID     int64 = 999
	testGroupChat int64 = -500
)

func newTrackingDeps() (HandlerDeps, *mocks.StoreMock, *mocks.GatewayMock) {
	store := new(mocks.StoreMock)
	gateway := new(mocks.GatewayMock)
	deps := HandlerDeps{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config: &config.Config{Telegram: config.TelegramConfig{
			TargetChatID: testTargetChat,
			BotInfo:      &models.User{ID: testBotID, IsBot: true, Username: "roster_bot"},
		}},
		Store:    store,
		Gateway:  gateway,
		Settings: broadcast.NewSettings(broadcast.Options{}),
	}
	return deps, store, gateway
}

// freshChat makes chatID known and recently refreshed, so group traffic does
// not trigger a metadata refresh.
func freshChat(deps HandlerDeps, chatID int64) {
	deps.Settings.AddAvailable(database.Chat{ChatID: chatID, Title: "group", UpdatedAt: time.Now()})
}

func groupUpdate(msg models.Message) *models.Update {
	msg.Chat = models.Chat{ID: testGroupChat, Type: models.ChatTypeSupergroup}
	return &models.Update{Message: &msg}
}

func TestRecordMemberStoresUserAndMembership(t *testing.T) {
	t.Parallel()

	deps, store, _ := newTrackingDeps()
	ctx := context.Background()

	store.On("UpsertUser", ctx, mock.MatchedBy(func(u *database.User) bool {
		return u.UserID == 7 && u.Username == "alice"
	})).Return(nil).Once()
	store.On("UpsertMembership", ctx, mock.MatchedBy(func(m *database.Membership) bool {
		return m.UserID == 7 && m.ChatID == testTargetChat && m.Status == "administrator"
	})).Return(nil).Once()

	deps.recordMember(ctx, &models.User{ID: 7, Username: "alice"}, testTargetChat, platform.StatusAdministrator)

	store.AssertExpectations(t)
}

func TestGroupMessageTracking(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("new member is recorded", func(t *testing.T) {
		t.Parallel()

		deps, store, _ := newTrackingDeps()
		freshChat(deps, testGroupChat)
		store.On("UpsertUser", ctx, mock.MatchedBy(func(u *database.User) bool { return u.UserID == 11 })).Return(nil).Once()
		store.On("UpsertMembership", ctx, mock.MatchedBy(func(m *database.Membership) bool {
			return m.UserID == 11 && m.ChatID == testGroupChat
		})).Return(nil).Once()

		NewDefaultHandler(deps)(ctx, nil, groupUpdate(models.Message{
			NewChatMembers: []models.User{{ID: 11}, {ID: 12, IsBot: true}},
		}))

		store.AssertExpectations(t)
	})

	t.Run("departed member is forgotten", func(t *testing.T) {
		t.Parallel()

		deps, store, _ := newTrackingDeps()
		store.On("DeleteMembership", ctx, int64(11), testGroupChat).Return(nil).Once()

		NewDefaultHandler(deps)(ctx, nil, groupUpdate(models.Message{
			From:           &models.User{ID: 11},
			LeftChatMember: &models.User{ID: 11},
		}))

		store.AssertExpectations(t)
		store.AssertNotCalled(t, "UpsertUser", mock.Anything, mock.Anything)
	})

	t.Run("bot leaving forgets the chat", func(t *testing.T) {
		t.Parallel()

		deps, store, _ := newTrackingDeps()
		freshChat(deps, testGroupChat)
		store.On("DeleteChat", ctx, testGroupChat).Return(nil).Once()

		NewDefaultHandler(deps)(ctx, nil, groupUpdate(models.Message{
			LeftChatMember: &models.User{ID: testBotID, IsBot: true},
		}))

		store.AssertExpectations(t)
		_, ok := deps.Settings.AvailableChat(testGroupChat)
		assert.False(t, ok)
	})

	t.Run("sender in a fresh chat only records membership", func(t *testing.T) {
		t.Parallel()

		deps, store, gateway := newTrackingDeps()
		freshChat(deps, testGroupChat)
		store.On("UpsertUser", ctx, mock.Anything).Return(nil).Once()
		store.On("UpsertMembership", ctx, mock.Anything).Return(nil).Once()

		NewDefaultHandler(deps)(ctx, nil, groupUpdate(models.Message{From: &models.User{ID: 11}, Text: "hi"}))

		store.AssertExpectations(t)
		gateway.AssertNotCalled(t, "GetChat", mock.Anything, mock.Anything)
	})
}

func TestBotMembershipChanges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status models.ChatMemberType
	}{
		{"kicked", models.ChatMemberTypeBanned},
		{"left", models.ChatMemberTypeLeft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			deps, store, _ := newTrackingDeps()
			freshChat(deps, testGroupChat)
			store.On("DeleteChat", ctx, testGroupChat).Return(nil).Once()

			NewDefaultHandler(deps)(ctx, nil, &models.Update{MyChatMember: &models.ChatMemberUpdated{
				Chat:          models.Chat{ID: testGroupChat, Type: models.ChatTypeSupergroup},
				NewChatMember: models.ChatMember{Type: tt.status},
			}})

			store.AssertExpectations(t)
			_, ok := deps.Settings.AvailableChat(testGroupChat)
			assert.False(t, ok)
		})
	}

	t.Run("added to group registers it", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		deps, store, gateway := newTrackingDeps()
		gateway.On("GetChat", ctx, testGroupChat).
			Return(platform.ChatInfo{ID: testGroupChat, Title: "Group", Kind: platform.ChatKindSupergroup}, nil)
		gateway.On("GetMemberCount", ctx, testGroupChat).Return(12, nil)
		store.On("UpsertChat", ctx, mock.MatchedBy(func(c *database.Chat) bool {
			return c.ChatID == testGroupChat && c.MemberCount == 12
		})).Return(nil).Once()

		NewDefaultHandler(deps)(ctx, nil, &models.Update{MyChatMember: &models.ChatMemberUpdated{
			Chat:          models.Chat{ID: testGroupChat, Type: models.ChatTypeSupergroup},
			NewChatMember: models.ChatMember{Type: models.ChatMemberTypeAdministrator},
		}})

		store.AssertExpectations(t)
		chat, ok := deps.Settings.AvailableChat(testGroupChat)
		require.True(t, ok)
		assert.Equal(t, "Group", chat.Title)
	})
}

func TestRegisterChatMemberCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		countErr  error
		wantErr   error
		wantCount int
	}{
		{name: "fresh count", wantCount: 40},
		{name: "unavailable keeps previous count", countErr: platform.ErrUnavailable, wantCount: 7},
		{name: "removed chat aborts", countErr: platform.ErrNotFound, wantErr: platform.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			deps, store, gateway := newTrackingDeps()
			deps.Settings.AddAvailable(database.Chat{ChatID: testGroupChat, Title: "old", MemberCount: 7})
			gateway.On("GetChat", ctx, testGroupChat).
				Return(platform.ChatInfo{ID: testGroupChat, Title: "new", Kind: platform.ChatKindGroup}, nil)
			count := 40
			if tt.countErr != nil {
				count = 0
			}
			gateway.On("GetMemberCount", ctx, testGroupChat).Return(count, tt.countErr)
			if tt.wantErr == nil {
				store.On("UpsertChat", ctx, mock.Anything).Return(nil).Once()
			}

			chat, err := deps.registerChat(ctx, testGroupChat)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				store.AssertNotCalled(t, "UpsertChat", mock.Anything, mock.Anything)
				known, _ := deps.Settings.AvailableChat(testGroupChat)
				assert.Equal(t, "old", known.Title)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantCount, chat.MemberCount)
			known, ok := deps.Settings.AvailableChat(testGroupChat)
			require.True(t, ok)
			assert.Equal(t, tt.wantCount, known.MemberCount)
			store.AssertExpectations(t)
		})
	}
}

func TestTouchChatRefreshesOnlyStaleChats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		known   bool
		age     time.Duration
		refresh bool
	}{
		{name: "unknown", refresh: true},
		{name: "fresh", known: true, age: time.Minute},
		{name: "stale", known: true, age: chatRefreshAge + time.Minute, refresh: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ctx := context.Background()
			deps, store, gateway := newTrackingDeps()
			if tt.known {
				deps.Settings.AddAvailable(database.Chat{ChatID: testGroupChat, UpdatedAt: time.Now().Add(-tt.age)})
			}
			if tt.refresh {
				gateway.On("GetChat", ctx, testGroupChat).
					Return(platform.ChatInfo{ID: testGroupChat, Title: "Group", Kind: platform.ChatKindGroup}, nil).Once()
				gateway.On("GetMemberCount", ctx, testGroupChat).Return(3, nil).Once()
				store.On("UpsertChat", ctx, mock.Anything).Return(nil).Once()
			}

			deps.touchChat(ctx, testGroupChat)

			if tt.refresh {
				gateway.AssertExpectations(t)
				store.AssertExpectations(t)
				return
			}
			gateway.AssertNotCalled(t, "GetChat", mock.Anything, mock.Anything)
		})
	}
}
