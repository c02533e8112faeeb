package mocks

import (
	"context"

	"chapter-server/internal/model"
	"chapter-server/internal/workflow"

	"github.com/stretchr/testify/mock"
)

// MockPlanStore is a mock type for the PlanStore type
type MockPlanStore struct {
	mock.Mock
}

// SavePlan provides a mock function with given fields: ctx, plan
func (_m *MockPlanStore) SavePlan(ctx context.Context, plan *model.Plan) error {
	ret := _m.Called(ctx, plan)
	if rf, ok := ret.Get(0).(func(context.Context, *model.Plan) error); ok {
		return rf(ctx, plan)
	}
	return ret.Error(0)
}

// LoadPlan provides a mock function with given fields: ctx, planID
func (_m *MockPlanStore) LoadPlan(ctx context.Context, planID string) (*model.Plan, error) {
	ret := _m.Called(ctx, planID)

	var r0 *model.Plan
	if rf, ok := ret.Get(0).(func(context.Context, string) *model.Plan); ok {
		r0 = rf(ctx, planID)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Plan)
	}

	return r0, ret.Error(1)
}

// NewMockPlanStore creates a new instance of MockPlanStore. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockPlanStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockPlanStore {
	m := &MockPlanStore{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ workflow.PlanStore = (*MockPlanStore)(nil)
