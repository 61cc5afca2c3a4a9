// Package mocks provides testify mocks for the protocol and persistence
// interfaces, shared across package tests.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockTaskMutator is a mock implementation of protocol.TaskMutator.
type MockTaskMutator struct {
	mock.Mock
}

func (m *MockTaskMutator) SetField(ctx context.Context, taskID, field string, value any) error {
	args := m.Called(ctx, taskID, field, value)

	return args.Error(0)
}

func (m *MockTaskMutator) Assign(ctx context.Context, taskID, userID string) error {
	args := m.Called(ctx, taskID, userID)

	return args.Error(0)
}

func (m *MockTaskMutator) GetSnapshot(ctx context.Context, taskID string) (map[string]any, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(map[string]any), args.Error(1)
}

// MockCommentService is a mock implementation of protocol.CommentService.
type MockCommentService struct {
	mock.Mock
}

func (m *MockCommentService) AddComment(ctx context.Context, taskID, authorID, text string) error {
	args := m.Called(ctx, taskID, authorID, text)

	return args.Error(0)
}

// MockNotifier is a mock implementation of protocol.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, userID, template string, data map[string]any) error {
	args := m.Called(ctx, userID, template, data)

	return args.Error(0)
}

// MockWebhookDispatcher is a mock implementation of protocol.WebhookDispatcher.
type MockWebhookDispatcher struct {
	mock.Mock
}

func (m *MockWebhookDispatcher) Enqueue(ctx context.Context, webhookID, eventType string, payload map[string]any) error {
	args := m.Called(ctx, webhookID, eventType, payload)

	return args.Error(0)
}

// MockTaskQuerier is a mock implementation of protocol.TaskQuerier.
type MockTaskQuerier struct {
	mock.Mock
}

func (m *MockTaskQuerier) DueWithin(ctx context.Context, window time.Duration) ([]map[string]any, error) {
	args := m.Called(ctx, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]map[string]any), args.Error(1)
}

func (m *MockTaskQuerier) Overdue(ctx context.Context) ([]map[string]any, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]map[string]any), args.Error(1)
}
