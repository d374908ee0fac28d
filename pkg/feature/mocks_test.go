package feature_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/featurekit/pkg/feature"
)

// MockStorage is a mock implementation of feature.Storage.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) GetFlag(ctx context.Context, key, orgID string) (*feature.Flag, error) {
	args := m.Called(ctx, key, orgID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*feature.Flag), args.Error(1)
}

func (m *MockStorage) GetRulesForFlag(ctx context.Context, flagID string) ([]feature.Rule, error) {
	args := m.Called(ctx, flagID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]feature.Rule), args.Error(1)
}

func (m *MockStorage) GetOverride(ctx context.Context, flagID, userID string) (*feature.Override, error) {
	args := m.Called(ctx, flagID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*feature.Override), args.Error(1)
}

func (m *MockStorage) ListFlags(ctx context.Context, orgID string, filter feature.ListFilter) ([]*feature.Flag, error) {
	args := m.Called(ctx, orgID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*feature.Flag), args.Error(1)
}

func (m *MockStorage) TrackEvaluation(ctx context.Context, record feature.EvaluationRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}
