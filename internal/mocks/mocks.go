package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-room/internal/models"
	"chat-room/internal/repositories"
	"chat-room/internal/store"
)

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) ListMessages(ctx context.Context) ([]models.Message, error) {
	args := m.Called(ctx)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageRepositoryMock) InsertMessage(ctx context.Context, msg models.NewMessage) (models.Message, error) {
	args := m.Called(ctx, msg)
	var stored models.Message
	if val := args.Get(0); val != nil {
		stored = val.(models.Message)
	}
	return stored, args.Error(1)
}

func (m *MessageRepositoryMock) GetMessage(ctx context.Context, messageID int64) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDeleteMessage(ctx context.Context, messageID int64) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

type MessageStoreMock struct {
	mock.Mock
}

func (m *MessageStoreMock) ListMessages(ctx context.Context) ([]models.Message, error) {
	args := m.Called(ctx)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	return msgs, args.Error(1)
}

func (m *MessageStoreMock) InsertMessage(ctx context.Context, msg models.NewMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MessageStoreMock) SoftDeleteMessage(ctx context.Context, messageID int64) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

func (m *MessageStoreMock) SubscribeToChanges(cb func(models.ChangeEvent)) store.Subscription {
	args := m.Called(cb)
	if val := args.Get(0); val != nil {
		return val.(store.Subscription)
	}
	return nil
}

type SubscriptionMock struct {
	mock.Mock
}

func (m *SubscriptionMock) Release() {
	m.Called()
}

var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ store.MessageStore = (*MessageStoreMock)(nil)
var _ store.Subscription = (*SubscriptionMock)(nil)
