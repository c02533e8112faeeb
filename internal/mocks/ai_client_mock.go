package mocks

import (
	"context"

	"chapter-server/internal/ai"

	"github.com/stretchr/testify/mock"
)

// MockAIClient is a mock type for the ai.Client type
type MockAIClient struct {
	mock.Mock
}

// Generate provides a mock function with given fields: ctx, req
func (_m *MockAIClient) Generate(ctx context.Context, req ai.Request) (string, ai.UsageInfo, error) {
	ret := _m.Called(ctx, req)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, ai.Request) string); ok {
		r0 = rf(ctx, req)
	} else {
		r0 = ret.String(0)
	}

	var r1 ai.UsageInfo
	if rf, ok := ret.Get(1).(func(context.Context, ai.Request) ai.UsageInfo); ok {
		r1 = rf(ctx, req)
	} else if ret.Get(1) != nil {
		r1 = ret.Get(1).(ai.UsageInfo)
	}

	var r2 error
	if rf, ok := ret.Get(2).(func(context.Context, ai.Request) error); ok {
		r2 = rf(ctx, req)
	} else {
		r2 = ret.Error(2)
	}

	return r0, r1, r2
}

// Ping provides a mock function with given fields: ctx
func (_m *MockAIClient) Ping(ctx context.Context) error {
	ret := _m.Called(ctx)
	if rf, ok := ret.Get(0).(func(context.Context) error); ok {
		return rf(ctx)
	}
	return ret.Error(0)
}

// Model provides a mock function with no fields
func (_m *MockAIClient) Model() string {
	ret := _m.Called()
	return ret.String(0)
}

// NewMockAIClient creates a new instance of MockAIClient. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockAIClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockAIClient {
	m := &MockAIClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ ai.Client = (*MockAIClient)(nil)
