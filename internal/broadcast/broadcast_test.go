package broadcast_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edgard/rosterbot/internal/broadcast"
	"github.com/edgard/rosterbot/internal/database"
	"github.com/edgard/rosterbot/internal/mocks"
)

const targetChatID int64 = -100

func newStore(t *testing.T) database.Store {
	t.Helper()

	db, err := database.NewDB(database.DriverSQLite, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })

	return database.NewStore(db, nil)
}

// addDialogUsers stores ids as human users that are members of the target chat.
func addDialogUsers(t *testing.T, store database.Store, ids ...int64) {
	t.Helper()
	ctx := context.Background()
	for _, id := range ids {
		require.NoError(t, store.UpsertUser(ctx, &database.User{UserID: id, FirstName: "user"}))
		require.NoError(t, store.UpsertMembership(ctx, &database.Membership{UserID: id, ChatID: targetChatID}))
	}
}

func addMembers(t *testing.T, store database.Store, chatID int64, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, store.UpsertMembership(context.Background(), &database.Membership{UserID: id, ChatID: chatID}))
	}
}

func available(ids ...int64) map[int64]database.Chat {
	chats := make(map[int64]database.Chat, len(ids))
	for _, id := range ids {
		chats[id] = database.Chat{ChatID: id, Type: "supergroup"}
	}
	return chats
}

func sumBreakdown(plan broadcast.Plan) int {
	sum := 0
	for _, e := range plan.Breakdown() {
		sum += e.Count
	}
	return sum
}

func TestResolveMembersOnlyIntersectsDialogUsers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	addDialogUsers(t, store, 1, 2)
	require.NoError(t, store.UpsertUser(ctx, &database.User{UserID: 3}))
	addMembers(t, store, 1001, 1, 2)
	addMembers(t, store, 1002, 2, 3)

	s := broadcast.NewSettings(broadcast.Options{Network: true, Mode: broadcast.ModeMembersOnly})
	s.SetAvailable(available(1001, 1002))

	plan, err := broadcast.NewResolver(store, targetChatID).Resolve(ctx, s.Snapshot())
	require.NoError(t, err)

	require.Len(t, plan.Batches, 1)
	assert.Equal(t, broadcast.CategoryNetworkMembers, plan.Batches[0].Category)
	assert.Equal(t, []int64{1, 2}, plan.Batches[0].IDs)
	assert.Equal(t, 2, plan.Total())
}

func TestResolveNetworkModes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	addDialogUsers(t, store, 1)

	testCases := []struct {
		name     string
		mode     broadcast.Mode
		selected []int64
		want     []int64
	}{
		{name: "all includes target chat", mode: broadcast.ModeAll, want: []int64{targetChatID, 5, 7}},
		{name: "specific uses selection as configured", mode: broadcast.ModeSpecific, selected: []int64{7, 42}, want: []int64{7, 42}},
		{name: "specific with empty selection", mode: broadcast.ModeSpecific, want: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := broadcast.NewSettings(broadcast.Options{Network: true, Mode: tc.mode})
			s.SetAvailable(available(targetChatID, 5, 7))
			for _, id := range tc.selected {
				_, err := s.ToggleSelected(id)
				require.NoError(t, err)
			}

			plan, err := broadcast.NewResolver(store, targetChatID).Resolve(ctx, s.Snapshot())
			require.NoError(t, err)
			require.Len(t, plan.Batches, 1)
			assert.Equal(t, broadcast.CategoryNetworkChats, plan.Batches[0].Category)
			assert.Equal(t, tc.want, plan.Batches[0].IDs)
		})
	}
}

func TestResolveAdditivity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	addDialogUsers(t, store, 10, 20, 30)
	addMembers(t, store, 5, 10, 99)

	resolver := broadcast.NewResolver(store, targetChatID)

	full := broadcast.Options{TargetMembers: true, TargetChat: true, Network: true}
	contributions := map[string]int{"target_members": 3, "target_chat": 1, "network": 2}

	for _, mode := range []broadcast.Mode{broadcast.ModeAll, broadcast.ModeMembersOnly} {
		opts := full
		opts.Mode = mode
		s := broadcast.NewSettings(opts)
		s.SetAvailable(available(5, 6))

		plan, err := resolver.Resolve(ctx, s.Snapshot())
		require.NoError(t, err)
		assert.Equal(t, sumBreakdown(plan), plan.Total(), "mode %s", mode)

		networkCount := 2
		if mode == broadcast.ModeMembersOnly {
			networkCount = 1 // only user 10 is both a network member and a dialog user
		}
		assert.Equal(t, contributions["target_members"]+contributions["target_chat"]+networkCount, plan.Total())

		toggles := []struct {
			name   string
			toggle func() (bool, error)
			delta  int
		}{
			{"target_members", s.ToggleTargetMembers, contributions["target_members"]},
			{"target_chat", s.ToggleTargetChat, contributions["target_chat"]},
			{"network", s.ToggleNetwork, networkCount},
		}
		for _, tg := range toggles {
			_, err := tg.toggle()
			require.NoError(t, err)

			reduced, err := resolver.Resolve(ctx, s.Snapshot())
			require.NoError(t, err)
			assert.Equal(t, sumBreakdown(reduced), reduced.Total())
			assert.Equal(t, plan.Total()-tg.delta, reduced.Total(), "toggling %s in mode %s", tg.name, mode)

			_, err = tg.toggle()
			require.NoError(t, err)
		}
	}
}

func TestResolveTargetChatInNetwork(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)
	addDialogUsers(t, store, 1, 2)
	addMembers(t, store, 1001, 1)

	testCases := []struct {
		name       string
		mode       broadcast.Mode
		targetChat bool
		category   broadcast.Category
		want       []int64
	}{
		{name: "members only covers target chat members", mode: broadcast.ModeMembersOnly, category: broadcast.CategoryNetworkMembers, want: []int64{1, 2}},
		{name: "members only with target chat flag", mode: broadcast.ModeMembersOnly, targetChat: true, category: broadcast.CategoryNetworkMembers, want: []int64{1, 2}},
		{name: "all posts into target chat", mode: broadcast.ModeAll, category: broadcast.CategoryNetworkChats, want: []int64{targetChatID, 1001}},
		{name: "all skips target chat already posted", mode: broadcast.ModeAll, targetChat: true, category: broadcast.CategoryNetworkChats, want: []int64{1001}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := broadcast.NewSettings(broadcast.Options{TargetChat: tc.targetChat, Network: true, Mode: tc.mode})
			s.SetAvailable(available(targetChatID, 1001))

			plan, err := broadcast.NewResolver(store, targetChatID).Resolve(ctx, s.Snapshot())
			require.NoError(t, err)

			batch := plan.Batches[len(plan.Batches)-1]
			assert.Equal(t, tc.category, batch.Category)
			assert.Equal(t, tc.want, batch.IDs)
			assert.Equal(t, sumBreakdown(plan), plan.Total())
		})
	}
}

func TestResolveCategoryOrder(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	s := broadcast.NewSettings(broadcast.Options{TargetMembers: true, TargetChat: true, Network: true, Mode: broadcast.ModeMembersOnly})

	plan, err := broadcast.NewResolver(store, targetChatID).Resolve(context.Background(), s.Snapshot())
	require.NoError(t, err)

	var order []broadcast.Category
	for _, e := range plan.Breakdown() {
		order = append(order, e.Category)
	}
	assert.Equal(t, []broadcast.Category{
		broadcast.CategoryTargetMembers,
		broadcast.CategoryTargetChat,
		broadcast.CategoryNetworkMembers,
	}, order)
	assert.Equal(t, 1, plan.Total())
}

func TestResolveStoreFailure(t *testing.T) {
	t.Parallel()

	store := new(mocks.StoreMock)
	store.On("ListDialogUserIDs", mock.Anything, targetChatID).Return(nil, errors.New("no such table"))

	s := broadcast.NewSettings(broadcast.Options{TargetMembers: true})
	_, err := broadcast.NewResolver(store, targetChatID).Resolve(context.Background(), s.Snapshot())
	require.Error(t, err)
}

func newDispatcher(store database.Store, s *broadcast.Settings, gateway *mocks.GatewayMock) *broadcast.Dispatcher {
	return broadcast.NewDispatcher(s, broadcast.NewResolver(store, targetChatID), gateway, broadcast.DispatchOptions{}, nil)
}

func TestDispatchAccounting(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)

	s := broadcast.NewSettings(broadcast.Options{Network: true, Mode: broadcast.ModeAll})
	s.SetAvailable(available(1, 2, 3, 4, 5))

	failing := map[int64]bool{2: true, 4: true}
	gateway := new(mocks.GatewayMock)
	for id := int64(1); id <= 5; id++ {
		var err error
		if failing[id] {
			err = errors.New("Forbidden: bot was blocked")
		}
		gateway.On("SendMessage", mock.Anything, id, "hello").Return(err).Once()
	}

	report, err := newDispatcher(store, s, gateway).Dispatch(ctx, "hello", nil)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Attempted)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	assert.InDelta(t, 60.0, report.SuccessRate(), 0.001)
	gateway.AssertExpectations(t)
	assert.False(t, s.Running())
}

func TestDispatchZeroTargets(t *testing.T) {
	t.Parallel()

	s := broadcast.NewSettings(broadcast.Options{})
	gateway := new(mocks.GatewayMock)

	report, err := newDispatcher(newStore(t), s, gateway).Dispatch(context.Background(), "hello", nil)
	require.NoError(t, err)

	assert.Equal(t, broadcast.Report{}, report)
	assert.Zero(t, report.SuccessRate())
	gateway.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatchTargetMembersEndToEnd(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	addDialogUsers(t, store, 10, 20, 30)

	s := broadcast.NewSettings(broadcast.Options{TargetMembers: true})
	gateway := new(mocks.GatewayMock)
	gateway.On("SendMessage", mock.Anything, mock.Anything, "news").Return(nil)

	var progress []string
	report, err := newDispatcher(store, s, gateway).Dispatch(context.Background(), "news",
		func(_ context.Context, text string) { progress = append(progress, text) })
	require.NoError(t, err)

	assert.Equal(t, broadcast.Report{Attempted: 3, Succeeded: 3, Failed: 0}, report)
	assert.InDelta(t, 100.0, report.SuccessRate(), 0.001)
	assert.Len(t, progress, 1)
	for _, id := range []int64{10, 20, 30} {
		gateway.AssertCalled(t, "SendMessage", mock.Anything, id, "news")
	}
}

func TestDispatchFollowsCategoryOrder(t *testing.T) {
	t.Parallel()

	store := newStore(t)
	addDialogUsers(t, store, 10)

	s := broadcast.NewSettings(broadcast.Options{TargetMembers: true, TargetChat: true, Network: true})
	s.SetAvailable(available(targetChatID, 7))

	var sent []int64
	gateway := new(mocks.GatewayMock)
	gateway.On("SendMessage", mock.Anything, mock.Anything, "x").
		Run(func(args mock.Arguments) { sent = append(sent, args.Get(1).(int64)) }).
		Return(nil)

	report, err := newDispatcher(store, s, gateway).Dispatch(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Attempted)
	assert.Equal(t, []int64{10, targetChatID, 7}, sent)
}

func TestDispatchDropsStaleSelections(t *testing.T) {
	t.Parallel()

	s := broadcast.NewSettings(broadcast.Options{Network: true, Mode: broadcast.ModeSpecific})
	s.SetAvailable(available(1, 2))
	for _, id := range []int64{1, 2} {
		_, err := s.ToggleSelected(id)
		require.NoError(t, err)
	}
	s.SetAvailable(available(1))

	gateway := new(mocks.GatewayMock)
	gateway.On("SendMessage", mock.Anything, int64(1), "x").Return(nil).Once()

	report, err := newDispatcher(newStore(t), s, gateway).Dispatch(context.Background(), "x", nil)
	require.NoError(t, err)
	assert.Equal(t, broadcast.Report{Attempted: 1, Succeeded: 1}, report)
	assert.Equal(t, []int64{1}, s.Snapshot().Selected)
	gateway.AssertExpectations(t)
}

func TestDispatchRejectsConcurrentRun(t *testing.T) {
	t.Parallel()

	s := broadcast.NewSettings(broadcast.Options{TargetChat: true})
	_, err := s.BeginRun()
	require.NoError(t, err)

	_, err = newDispatcher(newStore(t), s, new(mocks.GatewayMock)).Dispatch(context.Background(), "x", nil)
	require.ErrorIs(t, err, broadcast.ErrRunInProgress)
	assert.True(t, s.Running())
}

func TestDispatchRejectsEmptyMessage(t *testing.T) {
	t.Parallel()

	s := broadcast.NewSettings(broadcast.Options{TargetChat: true})
	_, err := newDispatcher(newStore(t), s, new(mocks.GatewayMock)).Dispatch(context.Background(), "  \n", nil)
	require.ErrorIs(t, err, broadcast.ErrEmptyMessage)
}

func TestDispatchIgnoresCancellation(t *testing.T) {
	t.Parallel()

	s := broadcast.NewSettings(broadcast.Options{Network: true})
	s.SetAvailable(available(1, 2))

	ctx, cancel := context.WithCancel(context.Background())
	gateway := new(mocks.GatewayMock)
	gateway.On("SendMessage", mock.Anything, int64(1), "x").Run(func(mock.Arguments) { cancel() }).Return(nil)
	gateway.On("SendMessage", mock.Anything, int64(2), "x").Return(nil)

	report, err := newDispatcher(newStore(t), s, gateway).Dispatch(ctx, "x", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
}

func TestReportSuccessRate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		report broadcast.Report
		want   float64
	}{
		{"nothing attempted", broadcast.Report{}, 0},
		{"all succeeded", broadcast.Report{Attempted: 4, Succeeded: 4}, 100},
		{"partial", broadcast.Report{Attempted: 8, Succeeded: 6, Failed: 2}, 75},
		{"all failed", broadcast.Report{Attempted: 2, Failed: 2}, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tc.want, tc.report.SuccessRate(), 0.001)
		})
	}
}
