package mocks

import (
	"context"

	"chapter-server/internal/model"
	"chapter-server/internal/service"
	"chapter-server/internal/workflow"

	"github.com/stretchr/testify/mock"
)

// MockPlanner is a mock type for the Planner type
type MockPlanner struct {
	mock.Mock
}

// PlanChapters provides a mock function with given fields: ctx, req
func (_m *MockPlanner) PlanChapters(ctx context.Context, req service.PlanRequest) (*model.Outline, error) {
	ret := _m.Called(ctx, req)

	var r0 *model.Outline
	if rf, ok := ret.Get(0).(func(context.Context, service.PlanRequest) *model.Outline); ok {
		r0 = rf(ctx, req)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Outline)
	}

	return r0, ret.Error(1)
}

// NewMockPlanner creates a new instance of MockPlanner. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockPlanner(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPlanner {
	m := &MockPlanner{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ workflow.Planner = (*MockPlanner)(nil)
