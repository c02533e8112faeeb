package mocks

import (
	"context"

	"chapter-server/internal/workflow"

	"github.com/stretchr/testify/mock"
)

// MockEventSink is a mock type for the EventSink type
type MockEventSink struct {
	mock.Mock
}

// Publish provides a mock function with given fields: ctx, event
func (_m *MockEventSink) Publish(ctx context.Context, event workflow.StateEvent) error {
	ret := _m.Called(ctx, event)
	if rf, ok := ret.Get(0).(func(context.Context, workflow.StateEvent) error); ok {
		return rf(ctx, event)
	}
	return ret.Error(0)
}

// NewMockEventSink creates a new instance of MockEventSink. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockEventSink(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockEventSink {
	m := &MockEventSink{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ workflow.EventSink = (*MockEventSink)(nil)
