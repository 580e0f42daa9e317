package tasks_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edgard/rosterbot/internal/bot/tasks"
	"github.com/edgard/rosterbot/internal/config"
	"github.com/edgard/rosterbot/internal/database"
	"github.com/edgard/rosterbot/internal/mocks"
	"github.com/edgard/rosterbot/internal/platform"
	"github.com/edgard/rosterbot/internal/reconcile"
)

const targetChat int64 = -1001

func newDeps(store *mocks.StoreMock, gw *mocks.GatewayMock) tasks.TaskDeps {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{Reconcile: config.ReconcileConfig{Timeout: time.Minute}}
	return tasks.TaskDeps{
		Logger:    log,
		Store:     store,
		Directory: reconcile.NewDirectory(store, gw, nil, 99, 0, log),
		Roster:    reconcile.NewRoster(store, gw, targetChat, 0, log),
		Config:    cfg,
	}
}

func TestRegisterAllTasks(t *testing.T) {
	t.Parallel()

	registered := tasks.RegisterAllTasks(newDeps(new(mocks.StoreMock), new(mocks.GatewayMock)))

	assert.Len(t, registered, 3)
	for _, name := range []string{tasks.DirectoryReconcile, tasks.RosterReconcile, tasks.SQLMaintenance} {
		assert.Contains(t, registered, name)
	}
}

func TestSQLMaintenanceTask(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{name: "success"},
		{name: "failure", err: errors.New("disk full"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			store := new(mocks.StoreMock)
			store.On("RunSQLMaintenance", mock.Anything).Return(tt.err)

			err := tasks.RegisterAllTasks(newDeps(store, new(mocks.GatewayMock)))[tasks.SQLMaintenance](context.Background())
			if tt.wantErr {
				assert.ErrorIs(t, err, tt.err)
			} else {
				assert.NoError(t, err)
			}
			store.AssertExpectations(t)
		})
	}
}

func TestDirectoryReconcileTask(t *testing.T) {
	t.Parallel()

	store := new(mocks.StoreMock)
	gw := new(mocks.GatewayMock)
	store.On("GetChats", mock.Anything).Return([]database.Chat{{ChatID: -5, Title: "Gone"}}, nil)
	gw.On("GetChat", mock.Anything, int64(-5)).Return(nil, platform.ErrNotFound)
	store.On("DeleteChat", mock.Anything, int64(-5)).Return(nil)

	err := tasks.RegisterAllTasks(newDeps(store, gw))[tasks.DirectoryReconcile](context.Background())
	require.NoError(t, err)
	store.AssertExpectations(t)
	gw.AssertExpectations(t)
}

func TestDirectoryReconcileTaskFailure(t *testing.T) {
	t.Parallel()

	store := new(mocks.StoreMock)
	store.On("GetChats", mock.Anything).Return(nil, errors.New("db down"))

	err := tasks.RegisterAllTasks(newDeps(store, new(mocks.GatewayMock)))[tasks.DirectoryReconcile](context.Background())
	assert.ErrorContains(t, err, "db down")
}

func TestRosterReconcileTask(t *testing.T) {
	t.Parallel()

	store := new(mocks.StoreMock)
	gw := new(mocks.GatewayMock)
	gw.On("GetMemberCount", mock.Anything, targetChat).Return(0, platform.ErrUnavailable)
	store.On("ListChatMemberIDs", mock.Anything, targetChat).Return([]int64{1, 2}, nil)
	gw.On("GetMemberStatus", mock.Anything, targetChat, int64(1)).Return(platform.StatusMember, nil)
	gw.On("GetMemberStatus", mock.Anything, targetChat, int64(2)).Return(platform.StatusLeft, nil)
	store.On("UpsertMembership", mock.Anything, mock.MatchedBy(func(m *database.Membership) bool {
		return m.UserID == 1 && m.ChatID == targetChat
	})).Return(nil)
	store.On("DeleteMembership", mock.Anything, int64(2), targetChat).Return(nil)

	err := tasks.RegisterAllTasks(newDeps(store, gw))[tasks.RosterReconcile](context.Background())
	require.NoError(t, err)
	store.AssertExpectations(t)
	gw.AssertExpectations(t)
}
