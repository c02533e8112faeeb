package mocks

import (
	"context"

	"chapter-server/internal/service"

	"github.com/stretchr/testify/mock"
)

// MockScriptGenerator is a mock type for the ChapterScriptGenerator type
type MockScriptGenerator struct {
	mock.Mock
}

// GenerateChapterScript provides a mock function with given fields: ctx, req
func (_m *MockScriptGenerator) GenerateChapterScript(ctx context.Context, req service.ScriptRequest) (*service.ScriptResult, error) {
	ret := _m.Called(ctx, req)

	var r0 *service.ScriptResult
	if rf, ok := ret.Get(0).(func(context.Context, service.ScriptRequest) *service.ScriptResult); ok {
		r0 = rf(ctx, req)
	} else if ret.Get(0) != nil {
		r0 = ret.Get(0).(*service.ScriptResult)
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, service.ScriptRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockScriptGenerator creates a new instance of MockScriptGenerator. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
func NewMockScriptGenerator(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockScriptGenerator {
	m := &MockScriptGenerator{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

var _ service.ChapterScriptGenerator = (*MockScriptGenerator)(nil)
