// Package mocks holds testify mocks for the store and platform contracts.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/edgard/rosterbot/internal/database"
	"github.com/edgard/rosterbot/internal/platform"
)

type GatewayMock struct {
	mock.Mock
}

func (m *GatewayMock) GetChat(ctx context.Context, chatID int64) (platform.ChatInfo, error) {
	args := m.Called(ctx, chatID)
	var info platform.ChatInfo
	if val := args.Get(0); val != nil {
		info = val.(platform.ChatInfo)
	}
	return info, args.Error(1)
}

func (m *GatewayMock) GetMemberCount(ctx context.Context, chatID int64) (int, error) {
	args := m.Called(ctx, chatID)
	return args.Int(0), args.Error(1)
}

func (m *GatewayMock) GetMemberStatus(ctx context.Context, chatID, userID int64) (platform.MemberStatus, error) {
	args := m.Called(ctx, chatID, userID)
	var status platform.MemberStatus
	if val := args.Get(0); val != nil {
		status = val.(platform.MemberStatus)
	}
	return status, args.Error(1)
}

func (m *GatewayMock) SendMessage(ctx context.Context, targetID int64, text string) error {
	args := m.Called(ctx, targetID, text)
	return args.Error(0)
}

type StoreMock struct {
	mock.Mock
}

func (m *StoreMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *StoreMock) RunSQLMaintenance(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *StoreMock) UpsertUser(ctx context.Context, user *database.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *StoreMock) UpsertMembership(ctx context.Context, membership *database.Membership) error {
	args := m.Called(ctx, membership)
	return args.Error(0)
}

func (m *StoreMock) DeleteMembership(ctx context.Context, userID, chatID int64) error {
	args := m.Called(ctx, userID, chatID)
	return args.Error(0)
}

func (m *StoreMock) GetMembership(ctx context.Context, userID, chatID int64) (*database.Membership, error) {
	args := m.Called(ctx, userID, chatID)
	var membership *database.Membership
	if val := args.Get(0); val != nil {
		membership = val.(*database.Membership)
	}
	return membership, args.Error(1)
}

func (m *StoreMock) UpsertChat(ctx context.Context, chat *database.Chat) error {
	args := m.Called(ctx, chat)
	return args.Error(0)
}

func (m *StoreMock) DeleteChat(ctx context.Context, chatID int64) error {
	args := m.Called(ctx, chatID)
	return args.Error(0)
}

func (m *StoreMock) GetChats(ctx context.Context) ([]database.Chat, error) {
	args := m.Called(ctx)
	var chats []database.Chat
	if val := args.Get(0); val != nil {
		chats = val.([]database.Chat)
	}
	return chats, args.Error(1)
}

func (m *StoreMock) ListNonBotUserIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	return ids(args.Get(0)), args.Error(1)
}

func (m *StoreMock) ListChatMemberIDs(ctx context.Context, chatID int64) ([]int64, error) {
	args := m.Called(ctx, chatID)
	return ids(args.Get(0)), args.Error(1)
}

func (m *StoreMock) ListDialogUserIDs(ctx context.Context, targetChatID int64) ([]int64, error) {
	args := m.Called(ctx, targetChatID)
	return ids(args.Get(0)), args.Error(1)
}

func (m *StoreMock) GetStatistics(ctx context.Context, targetChatID int64, topN int) (*database.Statistics, error) {
	args := m.Called(ctx, targetChatID, topN)
	var stats *database.Statistics
	if val := args.Get(0); val != nil {
		stats = val.(*database.Statistics)
	}
	return stats, args.Error(1)
}

func ids(val any) []int64 {
	if val == nil {
		return nil
	}
	return val.([]int64)
}

var (
	_ platform.Gateway = (*GatewayMock)(nil)
	_ database.Store   = (*StoreMock)(nil)
)
